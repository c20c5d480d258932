package docx

import (
	"github.com/catdesk/backend/internal/anchor"
	"github.com/catdesk/backend/internal/caterr"
	"github.com/catdesk/backend/internal/segment"
)

// Input is what an export strategy works from.
type Input struct {
	Tree     *anchor.Tree
	Segments []segment.Segment
}

// Output is a translated container plus the ids of segments whose target
// did not make it into the document.
type Output struct {
	Data    []byte
	Missing []int64
}

// Strategy turns the original container plus segments into a translated
// container.
type Strategy interface {
	Name() string
	Export(container []byte, in Input) (Output, error)
}

const (
	StrategyRebuild = "rebuild"
	StrategyPatch   = "patch"
)

// StrategyByName returns the named strategy. maxImageWidth only affects
// rebuild.
func StrategyByName(name string, maxImageWidth int) (Strategy, error) {
	switch name {
	case StrategyRebuild, "":
		return NewRebuild(maxImageWidth), nil
	case StrategyPatch:
		return Patch{}, nil
	}
	return nil, caterr.Field(caterr.ErrInvalidInput, "docx.StrategyByName", "strategy", name)
}

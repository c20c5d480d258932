// Package reconstruct merges segment targets back into the anchor tree.
package reconstruct

import (
	"fmt"
	"strconv"

	"golang.org/x/net/html"

	"github.com/catdesk/backend/internal/anchor"
	"github.com/catdesk/backend/internal/markup"
	"github.com/catdesk/backend/internal/segment"
)

// Mode selects what happens to anchor bookkeeping in the output.
type Mode int

const (
	// ModePreview keeps anchor attributes and marks untranslated nodes.
	ModePreview Mode = iota
	// ModeExport strips every anchor attribute.
	ModeExport
)

// Options control a reconstruction.
type Options struct {
	Mode Mode
}

// Result is the output tree plus the ids of segments that had no anchor.
type Result struct {
	Tree    *anchor.Tree
	Missing []int64
}

type step struct {
	node int
	frag *anchor.Tree
}

// Reconstruct clones tree and replaces every anchored node with its segment's
// target. The input tree is never modified. A nil tree yields Fallback.
// All targets are parsed before the clone is touched, so a parse failure
// leaves nothing half applied.
func Reconstruct(tree *anchor.Tree, segs []segment.Segment, opts Options) (Result, error) {
	if tree == nil {
		return Result{Tree: Fallback(segs)}, nil
	}
	out := tree.Clone()
	idx := out.Index()

	var missing []int64
	steps := make([]step, 0, len(segs))
	for _, s := range segs {
		node, ok := idx[strconv.FormatInt(s.ID, 10)]
		if !ok {
			missing = append(missing, s.ID)
			continue
		}
		if markup.IsBlank(s.Target) {
			steps = append(steps, step{node: node})
			continue
		}
		frag, err := anchor.ParseFragment(s.Target)
		if err != nil {
			return Result{}, fmt.Errorf("segment %d: %w", s.ID, err)
		}
		steps = append(steps, step{node: node, frag: frag})
	}

	for _, st := range steps {
		if st.frag == nil {
			out.AddClass(st.node, anchor.NeedsTranslationClass)
			continue
		}
		apply(out, st)
	}
	if opts.Mode == ModeExport {
		out.StripAttr(anchor.Attr)
	}
	return Result{Tree: out, Missing: missing}, nil
}

func apply(out *anchor.Tree, st step) {
	top := st.frag.Children(st.frag.Root())
	first := anchor.None
	for _, c := range top {
		if !st.frag.IsBlankText(c) {
			first = c
			break
		}
	}
	if first == anchor.None {
		return
	}
	if st.frag.IsElement(first) {
		n := out.Graft(st.frag, first)
		out.RemoveAttr(n, anchor.Attr)
		out.Replace(st.node, n)
		return
	}
	// Plain text target: keep the anchor element, swap its content.
	kids := make([]int, 0, len(top))
	for _, c := range top {
		kids = append(kids, out.Graft(st.frag, c))
	}
	out.SetChildren(st.node, kids)
	out.RemoveAttr(st.node, anchor.Attr)
}

// Fallback builds a flat document: one block per segment in order, holding
// the target when it has content and the source otherwise.
func Fallback(segs []segment.Segment) *anchor.Tree {
	t := anchor.NewFragment()
	for _, s := range segs {
		content := s.Target
		if markup.IsBlank(content) {
			content = s.Source
		}
		div := t.AppendElement(t.Root(), "div", html.Attribute{Key: "class", Val: "segment"})
		frag, err := anchor.ParseFragment(content)
		if err != nil {
			continue
		}
		var kids []int
		for _, c := range frag.Children(frag.Root()) {
			kids = append(kids, t.Graft(frag, c))
		}
		t.SetChildren(div, kids)
	}
	return t
}

// HTML reconstructs and renders the body. A nil tree renders the fallback.
func HTML(tree *anchor.Tree, segs []segment.Segment, mode Mode) (string, []int64, error) {
	res, err := Reconstruct(tree, segs, Options{Mode: mode})
	if err != nil {
		return "", nil, err
	}
	out, err := res.Tree.RenderBody()
	if err != nil {
		return "", nil, err
	}
	return out, res.Missing, nil
}

// Package tm holds translation-memory records. Fuzzy lookup happens
// elsewhere; this package only consumes its results.
package tm

import (
	"io"
	"strings"

	"github.com/catdesk/backend/internal/jsonl"
	"github.com/catdesk/backend/internal/markup"
	"github.com/catdesk/backend/internal/segment"
)

// Unit is one stored source/target pair.
type Unit struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Match is a lookup result for one segment. Score is a percentage, 0..100.
type Match struct {
	SegmentID int64   `json:"segmentId" db:"segment_id"`
	Score     float64 `json:"score" db:"score"`
	Target    string  `json:"target" db:"target"`
}

// Exact is the score of a full match.
const Exact = 100

// ParseUnits reads a line-delimited translation unit file.
func ParseUnits(r io.Reader) ([]Unit, error) {
	units, err := jsonl.Decode[Unit](r)
	if err != nil {
		return nil, err
	}
	out := units[:0]
	for _, u := range units {
		if strings.TrimSpace(u.Source) == "" || strings.TrimSpace(u.Target) == "" {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

// ParseMatches reads line-delimited match records.
func ParseMatches(r io.Reader) ([]Match, error) {
	return jsonl.Decode[Match](r)
}

// ExactMatches compares segment sources with units by normalized text and
// reports a full match for each hit. Later units win over earlier ones.
func ExactMatches(units []Unit, segs []segment.Segment) []Match {
	byText := make(map[string]string, len(units))
	for _, u := range units {
		byText[key(u.Source)] = u.Target
	}
	var out []Match
	for _, s := range segs {
		if t, ok := byText[key(s.Source)]; ok {
			out = append(out, Match{SegmentID: s.ID, Score: Exact, Target: t})
		}
	}
	return out
}

func key(fragment string) string {
	return markup.Normalize(markup.Strip(fragment))
}

// Best keeps the highest-scoring match per segment.
func Best(matches []Match) map[int64]Match {
	out := make(map[int64]Match, len(matches))
	for _, m := range matches {
		if cur, ok := out[m.SegmentID]; !ok || m.Score > cur.Score {
			out[m.SegmentID] = m
		}
	}
	return out
}

// ExactPrefill fills empty draft targets from full matches through the
// normal update path and tags them as TM pre-fills. It returns the filled ids
// in document order.
func ExactPrefill(doc *segment.Document, matches []Match) []int64 {
	best := Best(matches)
	src := segment.SourceTM100
	var filled []int64
	for _, s := range doc.Segments() {
		m, ok := best[s.ID]
		if !ok || m.Score < Exact || markup.IsBlank(m.Target) {
			continue
		}
		if s.Status != segment.StatusDraft || !markup.IsBlank(s.Target) {
			continue
		}
		target := m.Target
		if doc.UpdateSegment(s.ID, segment.Patch{Target: &target, TranslationSource: &src}) {
			filled = append(filled, s.ID)
		}
	}
	return filled
}

// Package term holds glossary entries used by QA and highlighting.
package term

import (
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/catdesk/backend/internal/jsonl"
)

// Term is a source/target pair. Terms are read-only once imported.
type Term struct {
	ID         string `json:"id" db:"id"`
	Source     string `json:"source" db:"source"`
	Target     string `json:"target" db:"target"`
	Definition string `json:"definition,omitempty" db:"definition"`
}

// ParseFile reads a line-delimited term file. Entries missing a source or a
// target are skipped; entries without an id get a new one.
func ParseFile(r io.Reader) ([]Term, error) {
	raw, err := jsonl.Decode[Term](r)
	if err != nil {
		return nil, err
	}
	out := make([]Term, 0, len(raw))
	for _, t := range raw {
		t.Source = strings.TrimSpace(t.Source)
		t.Target = strings.TrimSpace(t.Target)
		if t.Source == "" || t.Target == "" {
			continue
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		out = append(out, t)
	}
	return out, nil
}

// WriteFile writes terms in the same format ParseFile reads.
func WriteFile(w io.Writer, terms []Term) error {
	return jsonl.Encode(w, terms)
}

// Occurs reports whether needle appears in haystack ignoring case.
func Occurs(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

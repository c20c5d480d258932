// Package qa runs deterministic checks over a segment list. Results are
// recomputed on every call and never stored with the document.
package qa

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/catdesk/backend/internal/markup"
	"github.com/catdesk/backend/internal/segment"
	"github.com/catdesk/backend/internal/term"
)

// IssueType names a rule.
type IssueType string

const (
	TypeEmpty        IssueType = "empty"
	TypeInconsistent IssueType = "inconsistent"
	TypeTerminology  IssueType = "terminology"
	TypeNumber       IssueType = "number"
	TypeSpacing      IssueType = "spacing"
	TypeTagMismatch  IssueType = "tag_mismatch"
)

// AllRules lists every rule type in reporting order.
var AllRules = []IssueType{TypeEmpty, TypeInconsistent, TypeTerminology, TypeNumber, TypeSpacing, TypeTagMismatch}

// DefaultRules is the rule set used by RunChecks. Tag checking stays off.
var DefaultRules = []IssueType{TypeEmpty, TypeInconsistent, TypeTerminology, TypeNumber, TypeSpacing}

// Issue is one finding.
type Issue struct {
	SegmentID    int64     `json:"segmentId"`
	Type         IssueType `json:"type"`
	Description  string    `json:"description"`
	Source       string    `json:"source"`
	Target       string    `json:"target"`
	Suggestion   string    `json:"suggestion,omitempty"`
	SuggestedFix string    `json:"suggestedFix,omitempty"`
	Expected     []string  `json:"expected,omitempty"`
	Found        []string  `json:"found,omitempty"`
}

var numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParseRules converts rule names, rejecting unknown ones. An empty list
// means DefaultRules.
func ParseRules(names []string) ([]IssueType, error) {
	if len(names) == 0 {
		return DefaultRules, nil
	}
	out := make([]IssueType, 0, len(names))
	for _, n := range names {
		t := IssueType(strings.TrimSpace(n))
		if !slices.Contains(AllRules, t) {
			return nil, fmt.Errorf("unknown rule %q", n)
		}
		out = append(out, t)
	}
	return out, nil
}

// RunChecks applies DefaultRules.
func RunChecks(segs []segment.Segment, terms []term.Term) []Issue {
	return RunWithRules(segs, terms, DefaultRules)
}

// RunWithRules applies the given rules. Issues come out in segment order and,
// within a segment, in AllRules order. An empty target reports only the
// empty rule for that segment.
func RunWithRules(segs []segment.Segment, terms []term.Term, rules []IssueType) []Issue {
	on := make(map[IssueType]bool, len(rules))
	for _, r := range rules {
		on[r] = true
	}

	var inconsistent map[int64]Issue
	if on[TypeInconsistent] {
		inconsistent = inconsistencies(segs)
	}

	issues := []Issue{}
	for _, s := range segs {
		src := strings.TrimSpace(markup.Strip(s.Source))
		tgt := markup.Strip(s.Target)
		if strings.TrimSpace(tgt) == "" {
			if on[TypeEmpty] && src != "" {
				issues = append(issues, Issue{
					SegmentID:   s.ID,
					Type:        TypeEmpty,
					Description: "Translation is missing.",
					Source:      s.Source,
					Target:      s.Target,
				})
			}
			continue
		}
		if is, ok := inconsistent[s.ID]; ok {
			issues = append(issues, is)
		}
		if on[TypeTerminology] {
			issues = append(issues, checkTerms(s, src, tgt, terms)...)
		}
		if on[TypeNumber] {
			if is, ok := checkNumbers(s, src, tgt); ok {
				issues = append(issues, is)
			}
		}
		if on[TypeSpacing] {
			if is, ok := checkSpacing(s, tgt); ok {
				issues = append(issues, is)
			}
		}
		if on[TypeTagMismatch] {
			if is, ok := CheckTags(s); ok {
				issues = append(issues, is)
			}
		}
	}
	return issues
}

// inconsistencies groups translated segments by stripped source. A group
// with more than one distinct target yields one issue, attached to the
// group's first segment.
func inconsistencies(segs []segment.Segment) map[int64]Issue {
	type group struct {
		first   segment.Segment
		targets []string
	}
	groups := make(map[string]*group)
	var order []string
	for _, s := range segs {
		tgt := strings.TrimSpace(markup.Strip(s.Target))
		if tgt == "" {
			continue
		}
		key := strings.TrimSpace(markup.Strip(s.Source))
		g, ok := groups[key]
		if !ok {
			g = &group{first: s}
			groups[key] = g
			order = append(order, key)
		}
		if !slices.Contains(g.targets, tgt) {
			g.targets = append(g.targets, tgt)
		}
	}
	out := make(map[int64]Issue)
	for _, key := range order {
		g := groups[key]
		if len(g.targets) < 2 {
			continue
		}
		out[g.first.ID] = Issue{
			SegmentID:   g.first.ID,
			Type:        TypeInconsistent,
			Description: fmt.Sprintf("Source %q has %d different translations: %s.", key, len(g.targets), strings.Join(quote(g.targets), ", ")),
			Source:      g.first.Source,
			Target:      g.first.Target,
			Found:       g.targets,
		}
	}
	return out
}

func checkTerms(s segment.Segment, src, tgt string, terms []term.Term) []Issue {
	var out []Issue
	for _, t := range terms {
		if t.Source == "" || !term.Occurs(src, t.Source) {
			continue
		}
		if term.Occurs(tgt, t.Target) {
			continue
		}
		out = append(out, Issue{
			SegmentID:   s.ID,
			Type:        TypeTerminology,
			Description: fmt.Sprintf("Term %q should be translated as %q.", t.Source, t.Target),
			Source:      s.Source,
			Target:      s.Target,
			Suggestion:  t.Target,
		})
	}
	return out
}

func checkNumbers(s segment.Segment, src, tgt string) (Issue, bool) {
	want := numberRe.FindAllString(src, -1)
	got := numberRe.FindAllString(tgt, -1)
	if slices.Equal(want, got) {
		return Issue{}, false
	}
	return Issue{
		SegmentID:   s.ID,
		Type:        TypeNumber,
		Description: fmt.Sprintf("Numbers differ: source [%s], target [%s].", strings.Join(want, ", "), strings.Join(got, ", ")),
		Source:      s.Source,
		Target:      s.Target,
		Expected:    nonNil(want),
		Found:       nonNil(got),
	}, true
}

func checkSpacing(s segment.Segment, tgt string) (Issue, bool) {
	if tgt == strings.TrimSpace(tgt) && !strings.Contains(tgt, "  ") {
		return Issue{}, false
	}
	fixed := markup.Normalize(tgt)
	return Issue{
		SegmentID:    s.ID,
		Type:         TypeSpacing,
		Description:  "Target has leading, trailing or repeated spaces.",
		Source:       s.Source,
		Target:       s.Target,
		Suggestion:   fixed,
		SuggestedFix: markup.Paragraph(fixed),
	}, true
}

// CheckTags compares the inline tag count of source and target.
func CheckTags(s segment.Segment) (Issue, bool) {
	a, b := markup.CountTags(s.Source), markup.CountTags(s.Target)
	if a == b {
		return Issue{}, false
	}
	return Issue{
		SegmentID:   s.ID,
		Type:        TypeTagMismatch,
		Description: fmt.Sprintf("Source has %d inline tags, target has %d.", a, b),
		Source:      s.Source,
		Target:      s.Target,
	}, true
}

func quote(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

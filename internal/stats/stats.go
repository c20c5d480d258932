// Package stats computes word and character counts over a segment list:
// a progress report by translation state and a TM analysis weighted by match
// quality.
package stats

import (
	"strings"

	"github.com/catdesk/backend/internal/markup"
	"github.com/catdesk/backend/internal/segment"
	"github.com/catdesk/backend/internal/tm"
)

// Row labels.
const (
	LabelTotal              = "Total"
	LabelRepetition         = "Repetition"
	LabelPreTranslated      = "Pre-translated"
	LabelUntranslated       = "Untranslated"
	LabelTranslatorApproved = "Translator approved"
	LabelEdited             = "Edited"

	LabelMatch100 = "100%"
	LabelMatch95  = "95–99%"
	LabelMatch85  = "85–94%"
	LabelMatch75  = "75–84%"
	LabelMatch50  = "50–74%"
	LabelNoMatch  = "No Match"
)

// Row is one bucket. Weight and the weighted counts are only set in the
// analysis report.
type Row struct {
	Label         string  `json:"label"`
	Segments      int     `json:"segments"`
	SourceWords   int     `json:"sourceWords"`
	SourceChars   int     `json:"sourceChars"`
	SourceTags    int     `json:"sourceTags"`
	TargetWords   int     `json:"targetWords"`
	TargetChars   int     `json:"targetChars"`
	TargetTags    int     `json:"targetTags"`
	Percentage    float64 `json:"percentage"`
	Weight        float64 `json:"weight,omitempty"`
	WeightedWords float64 `json:"weightedWords,omitempty"`
	WeightedChars float64 `json:"weightedChars,omitempty"`
}

// Report is an ordered list of rows; the first is always Total.
type Report struct {
	Rows []Row `json:"rows"`
}

// Row returns the row with the given label.
func (r Report) Row(label string) (Row, bool) {
	for _, row := range r.Rows {
		if row.Label == label {
			return row, true
		}
	}
	return Row{}, false
}

type measure struct {
	srcWords, srcChars, srcTags int
	tgtWords, tgtChars, tgtTags int
}

func measureOf(s segment.Segment) measure {
	src := markup.Strip(s.Source)
	tgt := markup.Strip(s.Target)
	return measure{
		srcWords: markup.Words(src),
		srcChars: markup.Chars(src),
		srcTags:  markup.CountTags(s.Source),
		tgtWords: markup.Words(tgt),
		tgtChars: markup.Chars(tgt),
		tgtTags:  markup.CountTags(s.Target),
	}
}

func (r *Row) add(m measure) {
	r.Segments++
	r.SourceWords += m.srcWords
	r.SourceChars += m.srcChars
	r.SourceTags += m.srcTags
	r.TargetWords += m.tgtWords
	r.TargetChars += m.tgtChars
	r.TargetTags += m.tgtTags
}

// repeated returns the stripped sources that occur in at least two segments.
func repeated(segs []segment.Segment) map[string]bool {
	seen := make(map[string]int, len(segs))
	for _, s := range segs {
		if k := sourceKey(s); k != "" {
			seen[k]++
		}
	}
	out := make(map[string]bool)
	for k, n := range seen {
		if n >= 2 {
			out[k] = true
		}
	}
	return out
}

func sourceKey(s segment.Segment) string {
	return strings.TrimSpace(markup.Strip(s.Source))
}

// Classify places a segment in exactly one of Untranslated, Pre-translated,
// Translator approved or Edited, checked in that order. Approval is read from
// the presence of an evaluation, which may be older than the current target.
func Classify(s segment.Segment) string {
	switch {
	case markup.IsBlank(s.Target):
		return LabelUntranslated
	case s.TranslationSource == segment.SourceTM100:
		return LabelPreTranslated
	case s.Evaluation != nil:
		return LabelTranslatorApproved
	default:
		return LabelEdited
	}
}

// Counts builds the progress report. Repetition overlaps the other buckets;
// Total equals the sum of the four exclusive buckets.
func Counts(segs []segment.Segment) Report {
	labels := []string{LabelTotal, LabelRepetition, LabelPreTranslated, LabelUntranslated, LabelTranslatorApproved, LabelEdited}
	rows := make([]Row, len(labels))
	pos := make(map[string]int, len(labels))
	for i, l := range labels {
		rows[i].Label = l
		pos[l] = i
	}
	rep := repeated(segs)
	for _, s := range segs {
		m := measureOf(s)
		rows[pos[LabelTotal]].add(m)
		rows[pos[Classify(s)]].add(m)
		if rep[sourceKey(s)] {
			rows[pos[LabelRepetition]].add(m)
		}
	}
	percentages(rows)
	return Report{Rows: rows}
}

type band struct {
	label  string
	min    float64
	weight float64
}

// bands are checked top-down; the first whose minimum the score reaches wins.
var bands = []band{
	{LabelMatch100, 100, 0.3},
	{LabelMatch95, 95, 0.5},
	{LabelMatch85, 85, 0.8},
	{LabelMatch75, 75, 0.8},
	{LabelMatch50, 50, 1.0},
}

const (
	repetitionWeight = 0.3
	noMatchWeight    = 1.0
)

// Bucket returns the analysis bucket for a segment given whether its source
// repeats and its best match score (0 when it has none).
func Bucket(isRepetition bool, score float64) (string, float64) {
	if isRepetition {
		return LabelRepetition, repetitionWeight
	}
	for _, b := range bands {
		if score >= b.min {
			return b.label, b.weight
		}
	}
	return LabelNoMatch, noMatchWeight
}

// Analyze builds the TM analysis report. Every segment lands in exactly one
// bucket; weighted counts are the raw counts times the bucket weight.
func Analyze(segs []segment.Segment, matches []tm.Match) Report {
	rows := []Row{{Label: LabelTotal}, {Label: LabelRepetition, Weight: repetitionWeight}}
	for _, b := range bands {
		rows = append(rows, Row{Label: b.label, Weight: b.weight})
	}
	rows = append(rows, Row{Label: LabelNoMatch, Weight: noMatchWeight})
	pos := make(map[string]int, len(rows))
	for i, r := range rows {
		pos[r.Label] = i
	}

	best := tm.Best(matches)
	rep := repeated(segs)
	for _, s := range segs {
		label, weight := Bucket(rep[sourceKey(s)], best[s.ID].Score)
		m := measureOf(s)
		row := &rows[pos[label]]
		row.add(m)
		row.WeightedWords += float64(m.srcWords) * weight
		row.WeightedChars += float64(m.srcChars) * weight

		total := &rows[0]
		total.add(m)
		total.WeightedWords += float64(m.srcWords) * weight
		total.WeightedChars += float64(m.srcChars) * weight
	}
	percentages(rows)
	return Report{Rows: rows}
}

func percentages(rows []Row) {
	total := rows[0].SourceWords
	for i := range rows {
		if total > 0 {
			rows[i].Percentage = float64(rows[i].SourceWords) / float64(total) * 100
		}
	}
}

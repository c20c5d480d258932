package stats

import (
	"math"
	"testing"

	"github.com/catdesk/backend/internal/segment"
	"github.com/catdesk/backend/internal/tm"
)

func sample() []segment.Segment {
	return []segment.Segment{
		{ID: 1, Source: "Hello <b>big</b> world", Target: ""},
		{ID: 2, Source: "Hello <b>big</b> world", Target: "Szia nagy világ", TranslationSource: segment.SourceTM100},
		{ID: 3, Source: "Three words here", Target: "Három szó", Evaluation: &segment.Evaluation{Rating: 4}},
		{ID: 4, Source: "Edited one", Target: "<i>Szerkesztett</i>"},
		{ID: 5, Source: "Unique sentence number five", Target: "Ötödik"},
		{ID: 6, Source: "", Target: ""},
	}
}

func TestCountsExclusiveBuckets(t *testing.T) {
	segs := sample()
	r := Counts(segs)
	total, _ := r.Row(LabelTotal)
	if total.Segments != len(segs) {
		t.Fatalf("total segments = %d", total.Segments)
	}
	var sum Row
	for _, l := range []string{LabelUntranslated, LabelPreTranslated, LabelTranslatorApproved, LabelEdited} {
		row, ok := r.Row(l)
		if !ok {
			t.Fatalf("missing row %s", l)
		}
		sum.Segments += row.Segments
		sum.SourceWords += row.SourceWords
		sum.SourceChars += row.SourceChars
		sum.SourceTags += row.SourceTags
		sum.TargetWords += row.TargetWords
		sum.TargetChars += row.TargetChars
		sum.TargetTags += row.TargetTags
	}
	if sum.Segments != total.Segments || sum.SourceWords != total.SourceWords || sum.SourceChars != total.SourceChars ||
		sum.SourceTags != total.SourceTags || sum.TargetWords != total.TargetWords || sum.TargetTags != total.TargetTags ||
		sum.TargetChars != total.TargetChars {
		t.Fatalf("exclusive buckets do not add up: %+v vs %+v", sum, total)
	}

	want := map[string]int{LabelUntranslated: 2, LabelPreTranslated: 1, LabelTranslatorApproved: 1, LabelEdited: 2, LabelRepetition: 2}
	for l, n := range want {
		if row, _ := r.Row(l); row.Segments != n {
			t.Fatalf("%s segments = %d, want %d", l, row.Segments, n)
		}
	}
	if total.SourceTags != 2 || total.TargetTags != 1 {
		t.Fatalf("tag counts: %d/%d", total.SourceTags, total.TargetTags)
	}
	if total.SourceWords != 3+3+3+2+4 {
		t.Fatalf("source words = %d", total.SourceWords)
	}
	if total.Percentage != 100 {
		t.Fatalf("total percentage = %v", total.Percentage)
	}
}

func TestAnalyzeBuckets(t *testing.T) {
	segs := sample()
	matches := []tm.Match{
		{SegmentID: 1, Score: 100},
		{SegmentID: 3, Score: 96.5},
		{SegmentID: 3, Score: 60},
		{SegmentID: 4, Score: 84.9},
		{SegmentID: 5, Score: 49},
	}
	r := Analyze(segs, matches)
	want := map[string]int{
		LabelRepetition: 2, // overrides the 100% match of segment 1
		LabelMatch100:   0,
		LabelMatch95:    1,
		LabelMatch85:    0,
		LabelMatch75:    1,
		LabelMatch50:    0,
		LabelNoMatch:    2,
	}
	total, _ := r.Row(LabelTotal)
	var segments int
	var weighted float64
	for l, n := range want {
		row, ok := r.Row(l)
		if !ok {
			t.Fatalf("missing row %s", l)
		}
		if row.Segments != n {
			t.Fatalf("%s segments = %d, want %d", l, row.Segments, n)
		}
		if math.Abs(row.WeightedWords-float64(row.SourceWords)*row.Weight) > 1e-9 ||
			math.Abs(row.WeightedChars-float64(row.SourceChars)*row.Weight) > 1e-9 {
			t.Fatalf("%s weighted counts off: %+v", l, row)
		}
		segments += row.Segments
		weighted += row.WeightedWords
	}
	if segments != total.Segments || math.Abs(weighted-total.WeightedWords) > 1e-9 {
		t.Fatalf("buckets do not add up to total: %d/%v vs %+v", segments, weighted, total)
	}
}

func TestBucketBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		label string
	}{
		{100, LabelMatch100}, {99.9, LabelMatch95}, {95, LabelMatch95}, {94, LabelMatch85},
		{85, LabelMatch85}, {75, LabelMatch75}, {74, LabelMatch50}, {50, LabelMatch50}, {0, LabelNoMatch},
	}
	for _, c := range cases {
		if got, _ := Bucket(false, c.score); got != c.label {
			t.Fatalf("Bucket(%v) = %s, want %s", c.score, got, c.label)
		}
	}
	if got, w := Bucket(true, 100); got != LabelRepetition || w != 0.3 {
		t.Fatalf("repetition must win")
	}
}

func TestEmptyInput(t *testing.T) {
	r := Counts(nil)
	if total, _ := r.Row(LabelTotal); total.Segments != 0 || total.Percentage != 0 {
		t.Fatalf("unexpected empty totals %+v", total)
	}
}

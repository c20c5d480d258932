package segment

import (
	"encoding/json"
	"strings"
	"testing"
)

func strp(s string) *string { return &s }
func fp(f float64) *float64 { return &f }
func stp(s Status) *Status  { return &s }

func newDoc(t *testing.T, segs ...Segment) *Document {
	t.Helper()
	d, err := NewDocument(segs)
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	return d
}

func TestNewDocumentRejectsDuplicateIDs(t *testing.T) {
	_, err := NewDocument([]Segment{{ID: 1}, {ID: 1}})
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestUpdateSegmentUnknownIDIsNoop(t *testing.T) {
	d := newDoc(t, Segment{ID: 1, Source: "a"})
	if d.UpdateSegment(99, Patch{Target: strp("x")}) {
		t.Fatalf("unknown id must not apply")
	}
	s, _ := d.Get(1)
	if s.Target != "" {
		t.Fatalf("segment mutated")
	}
}

func TestUpdateSegmentSetsDirty(t *testing.T) {
	d := newDoc(t, Segment{ID: 1, Source: "Hello"})
	d.UpdateSegment(1, Patch{Target: strp("Szia")})
	s, _ := d.Get(1)
	if !s.IsDirty || s.Target != "Szia" || s.Status != StatusDraft {
		t.Fatalf("unexpected segment %+v", s)
	}
}

func TestEmptyTargetForcesDraft(t *testing.T) {
	ev := &Evaluation{Rating: 4, Feedback: "ok"}
	d := newDoc(t, Segment{ID: 1, Source: "Hello", Target: "Szia", Status: StatusApprovedByP1, Evaluation: ev,
		TargetErrors: []TargetError{{Error: "x"}}})
	d.UpdateSegment(1, Patch{Target: strp("<p> </p>")})
	s, _ := d.Get(1)
	if s.Status != StatusDraft || s.Evaluation != nil || s.TargetErrors != nil {
		t.Fatalf("blank target must reset to draft: %+v", s)
	}
}

func TestFinalizedIsImmutable(t *testing.T) {
	d := newDoc(t, Segment{ID: 1, Source: "a", Target: "b", Status: StatusFinalized})
	if d.UpdateSegment(1, Patch{Target: strp("")}) {
		t.Fatalf("finalized segment accepted an edit")
	}
	s, _ := d.Get(1)
	if s.Target != "b" || s.Status != StatusFinalized {
		t.Fatalf("finalized changed: %+v", s)
	}
}

func TestTranslatorSnapshotOnlyOnLeavingDraft(t *testing.T) {
	d := newDoc(t, Segment{ID: 1, Source: "Hello", Target: "Szia", IsDirty: true})
	d.UpdateSegment(1, Patch{Status: stp(StatusTranslated)})
	s, _ := d.Get(1)
	if s.TranslatorTarget == nil || *s.TranslatorTarget != "Szia" {
		t.Fatalf("snapshot missing: %+v", s)
	}
	d.UpdateSegment(1, Patch{Status: stp(StatusApprovedByP1), Target: strp("Helló")})
	s, _ = d.Get(1)
	if *s.TranslatorTarget != "Szia" {
		t.Fatalf("snapshot must not move after draft: %q", *s.TranslatorTarget)
	}
}

func TestInvalidTimeRangeKeepsPrevious(t *testing.T) {
	d := newDoc(t, Segment{ID: 1, Source: "a", StartTime: fp(1), EndTime: fp(2)})
	d.UpdateSegment(1, Patch{StartTime: fp(5), Target: strp("b")})
	s, _ := d.Get(1)
	if *s.StartTime != 1 || *s.EndTime != 2 {
		t.Fatalf("times not reverted: %v %v", *s.StartTime, *s.EndTime)
	}
	if s.Target != "b" {
		t.Fatalf("other fields must still apply")
	}
}

func TestEditingTMPrefillFlipsProvenance(t *testing.T) {
	d := newDoc(t, Segment{ID: 1, Source: "a", Target: "b", TranslationSource: SourceTM100})
	d.UpdateSegment(1, Patch{Target: strp("c")})
	s, _ := d.Get(1)
	if s.TranslationSource != SourceUser {
		t.Fatalf("expected user provenance, got %q", s.TranslationSource)
	}
}

func TestEvaluationPatch(t *testing.T) {
	var s Segment
	for _, st := range []Status{StatusDraft, ""} {
		seg := Segment{ID: 1, Source: "a", Target: "b", Status: st, IsDirty: true}
		p, ok := EvaluationPatch(seg, Evaluation{Rating: 5}, nil)
		if !ok {
			t.Fatalf("status %q: expected eligible", st)
		}
		d := newDoc(t, seg)
		d.UpdateSegment(1, p)
		s, _ = d.Get(1)
		if s.Status != StatusTranslated || s.IsDirty || s.Evaluation == nil {
			t.Fatalf("status %q: unexpected %+v", st, s)
		}
		if s.TranslatorTarget == nil || *s.TranslatorTarget != "b" {
			t.Fatalf("status %q: snapshot expected", st)
		}
	}
	if _, ok := EvaluationPatch(s, Evaluation{Rating: 5}, nil); ok {
		t.Fatalf("clean segment must not be re-evaluated")
	}
	if _, ok := EvaluationPatch(Segment{Target: "", IsDirty: true}, Evaluation{Rating: 5}, nil); ok {
		t.Fatalf("blank target is not eligible")
	}
	if _, ok := EvaluationPatch(Segment{Target: "x", IsDirty: true}, Evaluation{Rating: 9}, nil); ok {
		t.Fatalf("out of range rating")
	}
}

func TestJoin(t *testing.T) {
	d := newDoc(t,
		Segment{ID: 1, Source: "One.", Target: "Egy.", StartTime: fp(0), EndTime: fp(1)},
		Segment{ID: 2, Source: "Two.", StartTime: fp(1), EndTime: fp(3)},
		Segment{ID: 3, Source: "Three."},
	)
	if d.Join(1, 3) {
		t.Fatalf("non-adjacent join must fail")
	}
	if !d.Join(1, 2) {
		t.Fatalf("join failed")
	}
	if d.Len() != 2 {
		t.Fatalf("expected 2 segments, got %d", d.Len())
	}
	s, _ := d.Get(1)
	if s.Source != "One. Two." || s.Target != "Egy." || *s.EndTime != 3 {
		t.Fatalf("unexpected merge %+v", s)
	}
	if _, ok := d.Get(2); ok {
		t.Fatalf("second segment should be gone")
	}
	if segs := d.Segments(); segs[1].ID != 3 {
		t.Fatalf("order broken")
	}
}

func TestSplit(t *testing.T) {
	d := newDoc(t,
		Segment{ID: 1, Source: "aaaa bb", StartTime: fp(0), EndTime: fp(6)},
		Segment{ID: 7, Source: "x"},
	)
	ids := d.Split(1, []string{"aaaa", "bb"}, nil)
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 8 {
		t.Fatalf("unexpected ids %v", ids)
	}
	segs := d.Segments()
	if len(segs) != 3 || segs[1].ID != 8 || segs[2].ID != 7 {
		t.Fatalf("unexpected order %+v", segs)
	}
	if *segs[0].EndTime != 4 || *segs[1].StartTime != 4 || *segs[1].EndTime != 6 {
		t.Fatalf("times not proportional: %v %v %v", *segs[0].EndTime, *segs[1].StartTime, *segs[1].EndTime)
	}
	if d.Split(1, []string{"only"}, nil) != nil {
		t.Fatalf("single part split must fail")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	d := newDoc(t, Segment{ID: 1, Source: "a", Comments: []Comment{{Text: "c1"}}})
	snap := d.Segments()
	snap[0].Comments[0].Text = "changed"
	s, _ := d.Get(1)
	if s.Comments[0].Text != "c1" {
		t.Fatalf("snapshot shares memory with document")
	}
}

func TestSegmentJSONOverlayFields(t *testing.T) {
	raw := `{"id":3,"source":"<p>a</p>","target":"","isStructureVisible":true,"structuredSourceHtml":"<b>a</b>"}`
	var s Segment
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.Status != StatusDraft {
		t.Fatalf("default status expected, got %q", s.Status)
	}
	o, ok := s.Overlays[OverlayStructure]
	if !ok || !o.Visible || o.HTML != "<b>a</b>" {
		t.Fatalf("overlay not decoded: %+v", s.Overlays)
	}
	out, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"isStructureVisible":true`) {
		t.Fatalf("flat overlay field missing: %s", out)
	}
	var back Segment
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("re-unmarshal: %v", err)
	}
	if back.Overlays[OverlayStructure].HTML != "<b>a</b>" {
		t.Fatalf("overlay html lost: %+v", back.Overlays)
	}
	if strings.Contains(string(out), "dateHighlightHtml") {
		t.Fatalf("absent overlay should be omitted: %s", out)
	}
}

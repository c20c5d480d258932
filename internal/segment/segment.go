package segment

import (
	"encoding/json"
	"time"
)

// TranslationSource tags where a target came from.
type TranslationSource string

const (
	SourceTM100 TranslationSource = "tm-100"
	SourceUser  TranslationSource = "user"
)

// Evaluation is a quality assessment produced by the external intelligence
// provider. Scores are in [1,5].
type Evaluation struct {
	Rating      int    `json:"rating"`
	Consistency *int   `json:"consistency,omitempty"`
	Feedback    string `json:"feedback"`
}

// Valid reports whether the scores are within range.
func (e Evaluation) Valid() bool {
	if e.Rating < 1 || e.Rating > 5 {
		return false
	}
	if e.Consistency != nil && (*e.Consistency < 1 || *e.Consistency > 5) {
		return false
	}
	return true
}

// TargetError is a span flagged by grammar analysis.
type TargetError struct {
	Error       string `json:"error"`
	Correction  string `json:"correction"`
	Explanation string `json:"explanation"`
}

// Comment is a reviewer note attached to a segment.
type Comment struct {
	ID         string    `json:"id,omitempty"`
	Author     string    `json:"author"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
	IsResolved bool      `json:"isResolved"`
}

// OverlayKind names a cached analysis rendering.
type OverlayKind string

const (
	OverlayStructure OverlayKind = "structure"
	OverlayDate      OverlayKind = "date"
)

// OverlayKinds lists every supported overlay.
var OverlayKinds = []OverlayKind{OverlayStructure, OverlayDate}

// Overlay is a cached rendering that can be toggled without re-querying the
// provider once computed.
type Overlay struct {
	Visible bool   `json:"visible"`
	HTML    string `json:"html"`
}

// Overlays is the closed set of overlays of a segment, keyed by kind.
type Overlays map[OverlayKind]Overlay

// Segment is one translatable unit.
type Segment struct {
	ID                int64             `json:"id"`
	Source            string            `json:"source"`
	Target            string            `json:"target"`
	Status            Status            `json:"status"`
	TranslatorTarget  *string           `json:"translatorTarget,omitempty"`
	Evaluation        *Evaluation       `json:"evaluation,omitempty"`
	TargetErrors      []TargetError     `json:"targetErrors,omitempty"`
	IsDirty           bool              `json:"isDirty"`
	LastModifiedBy    string            `json:"lastModifiedBy,omitempty"`
	StartTime         *float64          `json:"startTime,omitempty"`
	EndTime           *float64          `json:"endTime,omitempty"`
	TranslationSource TranslationSource `json:"translationSource,omitempty"`
	Overlays          Overlays          `json:"-"`
	Comments          []Comment         `json:"comments,omitempty"`
}

// Timed reports whether both timestamps are present.
func (s Segment) Timed() bool {
	return s.StartTime != nil && s.EndTime != nil
}

// Clone returns a deep copy.
func (s Segment) Clone() Segment {
	out := s
	if s.TranslatorTarget != nil {
		v := *s.TranslatorTarget
		out.TranslatorTarget = &v
	}
	if s.Evaluation != nil {
		ev := *s.Evaluation
		if ev.Consistency != nil {
			c := *ev.Consistency
			ev.Consistency = &c
		}
		out.Evaluation = &ev
	}
	if s.TargetErrors != nil {
		out.TargetErrors = append([]TargetError(nil), s.TargetErrors...)
	}
	if s.StartTime != nil {
		v := *s.StartTime
		out.StartTime = &v
	}
	if s.EndTime != nil {
		v := *s.EndTime
		out.EndTime = &v
	}
	if s.Overlays != nil {
		out.Overlays = make(Overlays, len(s.Overlays))
		for k, v := range s.Overlays {
			out.Overlays[k] = v
		}
	}
	if s.Comments != nil {
		out.Comments = append([]Comment(nil), s.Comments...)
	}
	return out
}

// plain drops the JSON methods so the wire form can embed it.
type plain Segment

// wireSegment keeps the flat overlay fields of the project file format.
type wireSegment struct {
	plain
	IsStructureVisible     bool   `json:"isStructureVisible,omitempty"`
	StructuredSourceHTML   string `json:"structuredSourceHtml,omitempty"`
	IsDateHighlightVisible bool   `json:"isDateHighlightVisible,omitempty"`
	DateHighlightHTML      string `json:"dateHighlightHtml,omitempty"`
}

func (s Segment) MarshalJSON() ([]byte, error) {
	w := wireSegment{plain: plain(s)}
	if o, ok := s.Overlays[OverlayStructure]; ok {
		w.IsStructureVisible = o.Visible
		w.StructuredSourceHTML = o.HTML
	}
	if o, ok := s.Overlays[OverlayDate]; ok {
		w.IsDateHighlightVisible = o.Visible
		w.DateHighlightHTML = o.HTML
	}
	return json.Marshal(w)
}

func (s *Segment) UnmarshalJSON(b []byte) error {
	var w wireSegment
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*s = Segment(w.plain)
	if s.Status == "" {
		s.Status = StatusDraft
	}
	s.Overlays = nil
	if w.IsStructureVisible || w.StructuredSourceHTML != "" {
		s.setOverlay(OverlayStructure, Overlay{Visible: w.IsStructureVisible, HTML: w.StructuredSourceHTML})
	}
	if w.IsDateHighlightVisible || w.DateHighlightHTML != "" {
		s.setOverlay(OverlayDate, Overlay{Visible: w.IsDateHighlightVisible, HTML: w.DateHighlightHTML})
	}
	return nil
}

func (s *Segment) setOverlay(k OverlayKind, o Overlay) {
	if s.Overlays == nil {
		s.Overlays = make(Overlays, len(OverlayKinds))
	}
	s.Overlays[k] = o
}

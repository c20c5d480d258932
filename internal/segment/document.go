package segment

import (
	"fmt"
	"strings"

	"github.com/catdesk/backend/internal/caterr"
	"github.com/catdesk/backend/internal/markup"
)

// Patch is a shallow set of field updates. Nil pointers and nil slices leave
// the field unchanged; the Clear flags reset optional fields.
type Patch struct {
	Source            *string                 `json:"source,omitempty"`
	Target            *string                 `json:"target,omitempty"`
	Status            *Status                 `json:"status,omitempty"`
	TranslatorTarget  *string                 `json:"translatorTarget,omitempty"`
	Evaluation        *Evaluation             `json:"evaluation,omitempty"`
	ClearEvaluation   bool                    `json:"clearEvaluation,omitempty"`
	TargetErrors      []TargetError           `json:"targetErrors,omitempty"`
	ClearTargetErrors bool                    `json:"clearTargetErrors,omitempty"`
	IsDirty           *bool                   `json:"isDirty,omitempty"`
	LastModifiedBy    *string                 `json:"lastModifiedBy,omitempty"`
	StartTime         *float64                `json:"startTime,omitempty"`
	EndTime           *float64                `json:"endTime,omitempty"`
	TranslationSource *TranslationSource      `json:"translationSource,omitempty"`
	Overlays          map[OverlayKind]Overlay `json:"overlays,omitempty"`
	Comments          []Comment               `json:"comments,omitempty"`
}

// Document is the ordered segment list of one project. It performs no
// locking: callers serialize mutations per document.
type Document struct {
	segs  []Segment
	index map[int64]int
}

// NewDocument copies segs into a document. Ids must be unique.
func NewDocument(segs []Segment) (*Document, error) {
	d := &Document{segs: make([]Segment, 0, len(segs))}
	for _, s := range segs {
		if s.Status == "" {
			s.Status = StatusDraft
		}
		d.segs = append(d.segs, s.Clone())
	}
	if err := d.reindex(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Document) reindex() error {
	d.index = make(map[int64]int, len(d.segs))
	for i, s := range d.segs {
		if _, dup := d.index[s.ID]; dup {
			return caterr.Field(caterr.ErrInvalidInput, "segment.Document", fmt.Sprintf("segments[%d].id", i), fmt.Sprint(s.ID))
		}
		d.index[s.ID] = i
	}
	return nil
}

// Len returns the number of segments.
func (d *Document) Len() int { return len(d.segs) }

// Segments returns a deep-copied snapshot in document order.
func (d *Document) Segments() []Segment {
	out := make([]Segment, len(d.segs))
	for i, s := range d.segs {
		out[i] = s.Clone()
	}
	return out
}

// Get returns a copy of the segment with the given id.
func (d *Document) Get(id int64) (Segment, bool) {
	i, ok := d.index[id]
	if !ok {
		return Segment{}, false
	}
	return d.segs[i].Clone(), true
}

// NextID returns an id greater than every id in the document.
func (d *Document) NextID() int64 {
	var top int64
	for _, s := range d.segs {
		if s.ID > top {
			top = s.ID
		}
	}
	return top + 1
}

// UpdateSegment merges p into the segment identified by id. It is a no-op
// returning false when the id is unknown or the segment is finalized.
//
// Besides the plain merge it maintains the model rules: a changed target sets
// the dirty flag, a blank target forces the segment back to draft and drops
// its evaluation, leaving draft for translated snapshots the translator's
// target, and a time range with start >= end keeps the previous times.
func (d *Document) UpdateSegment(id int64, p Patch) bool {
	i, ok := d.index[id]
	if !ok {
		return false
	}
	cur := d.segs[i]
	if cur.Status == StatusFinalized {
		return false
	}
	next := cur.Clone()

	if p.Source != nil {
		next.Source = *p.Source
	}
	targetChanged := p.Target != nil && *p.Target != cur.Target
	if p.Target != nil {
		next.Target = *p.Target
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.TranslatorTarget != nil {
		v := *p.TranslatorTarget
		next.TranslatorTarget = &v
	}
	if p.ClearEvaluation {
		next.Evaluation = nil
	}
	if p.Evaluation != nil {
		ev := *p.Evaluation
		next.Evaluation = &ev
	}
	if p.ClearTargetErrors {
		next.TargetErrors = nil
	}
	if p.TargetErrors != nil {
		next.TargetErrors = append([]TargetError(nil), p.TargetErrors...)
	}
	if p.IsDirty != nil {
		next.IsDirty = *p.IsDirty
	} else if targetChanged {
		next.IsDirty = true
	}
	if p.LastModifiedBy != nil {
		next.LastModifiedBy = *p.LastModifiedBy
	}
	if p.StartTime != nil {
		v := *p.StartTime
		next.StartTime = &v
	}
	if p.EndTime != nil {
		v := *p.EndTime
		next.EndTime = &v
	}
	if next.Timed() && *next.StartTime >= *next.EndTime {
		next.StartTime, next.EndTime = cur.Clone().StartTime, cur.Clone().EndTime
	}
	if p.TranslationSource != nil {
		next.TranslationSource = *p.TranslationSource
	} else if targetChanged && cur.TranslationSource == SourceTM100 {
		next.TranslationSource = SourceUser
	}
	for k, o := range p.Overlays {
		next.setOverlay(k, o)
	}
	if p.Comments != nil {
		next.Comments = append([]Comment(nil), p.Comments...)
	}

	blank := markup.IsBlank(next.Target)
	if blank && (targetChanged || (next.Status != StatusDraft && next.Status != StatusFinalized)) {
		if next.Status != StatusFinalized {
			next.Status = StatusDraft
		}
		next.Evaluation = nil
		next.TargetErrors = nil
	}
	if (cur.Status == StatusDraft || cur.Status == "") && next.Status == StatusTranslated {
		snap := next.Target
		next.TranslatorTarget = &snap
	}

	d.segs[i] = next
	return true
}

// EvaluationPatch builds the patch recording a successful evaluation. It
// returns false when the segment is not eligible: blank target or not dirty.
// A draft segment moves to translated; this is the only way out of draft.
func EvaluationPatch(s Segment, ev Evaluation, errs []TargetError) (Patch, bool) {
	if markup.IsBlank(s.Target) || !s.IsDirty || !ev.Valid() {
		return Patch{}, false
	}
	clean := false
	p := Patch{Evaluation: &ev, IsDirty: &clean}
	if len(errs) > 0 {
		p.TargetErrors = errs
	} else {
		p.ClearTargetErrors = true
	}
	if s.Status == StatusDraft || s.Status == "" {
		st := StatusTranslated
		p.Status = &st
	}
	return p, true
}

// Join merges the segment secondID into firstID. The two must be adjacent in
// document order and neither may be finalized. The merged segment keeps the
// first id and returns to draft.
func (d *Document) Join(firstID, secondID int64) bool {
	i, ok := d.index[firstID]
	if !ok {
		return false
	}
	j, ok := d.index[secondID]
	if !ok || j != i+1 {
		return false
	}
	a, b := d.segs[i], d.segs[j]
	if a.Status == StatusFinalized || b.Status == StatusFinalized {
		return false
	}
	merged := a.Clone()
	merged.Source = joinText(a.Source, b.Source)
	merged.Target = joinText(a.Target, b.Target)
	merged.Status = StatusDraft
	merged.Evaluation = nil
	merged.TargetErrors = nil
	merged.TranslatorTarget = nil
	merged.Overlays = nil
	merged.IsDirty = merged.Target != ""
	merged.TranslationSource = ""
	if b.EndTime != nil {
		v := *b.EndTime
		merged.EndTime = &v
	}
	merged.Comments = append(append([]Comment(nil), a.Comments...), b.Comments...)

	d.segs[i] = merged
	d.segs = append(d.segs[:j], d.segs[j+1:]...)
	_ = d.reindex()
	return true
}

func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

// Split replaces the segment id with len(sources) segments. The first keeps
// the id; the rest get fresh ids. targets is either empty or the same length
// as sources. Timed segments divide their range proportionally to source
// length. It returns the ids in order, or nil when the split is not possible.
func (d *Document) Split(id int64, sources, targets []string) []int64 {
	i, ok := d.index[id]
	if !ok || len(sources) < 2 || (len(targets) != 0 && len(targets) != len(sources)) {
		return nil
	}
	orig := d.segs[i]
	if orig.Status == StatusFinalized {
		return nil
	}

	lengths := make([]int, len(sources))
	total := 0
	equal := false
	for k, s := range sources {
		lengths[k] = markup.Chars(strings.TrimSpace(markup.Strip(s)))
		total += lengths[k]
		if lengths[k] == 0 {
			equal = true
		}
	}

	next := d.NextID()
	parts := make([]Segment, len(sources))
	ids := make([]int64, len(sources))
	var cursor float64
	if orig.StartTime != nil {
		cursor = *orig.StartTime
	}
	for k, src := range sources {
		part := Segment{ID: orig.ID, Source: src, Status: StatusDraft, LastModifiedBy: orig.LastModifiedBy}
		if k > 0 {
			part.ID = next
			next++
		} else {
			part.Comments = append([]Comment(nil), orig.Comments...)
		}
		if len(targets) > 0 {
			part.Target = targets[k]
			part.IsDirty = part.Target != ""
		}
		if orig.Timed() {
			span := *orig.EndTime - *orig.StartTime
			share := 1 / float64(len(sources))
			if !equal {
				share = float64(lengths[k]) / float64(total)
			}
			start := cursor
			end := start + span*share
			if k == len(sources)-1 {
				end = *orig.EndTime
			}
			part.StartTime, part.EndTime = &start, &end
			cursor = end
		}
		parts[k] = part
		ids[k] = part.ID
	}

	out := make([]Segment, 0, len(d.segs)+len(parts)-1)
	out = append(out, d.segs[:i]...)
	out = append(out, parts...)
	out = append(out, d.segs[i+1:]...)
	d.segs = out
	_ = d.reindex()
	return ids
}

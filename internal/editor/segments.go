package editor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/catdesk/backend/internal/caterr"
	"github.com/catdesk/backend/internal/events"
	"github.com/catdesk/backend/internal/markup"
	"github.com/catdesk/backend/internal/segment"
	"github.com/catdesk/backend/internal/subtitle"
)

func (s *Service) Segments(ctx context.Context, a Actor, projectID string) ([]segment.Segment, error) {
	if _, _, err := s.access(ctx, a, projectID); err != nil {
		return nil, err
	}
	return s.db.LoadSegments(ctx, projectID)
}

func (s *Service) Segment(ctx context.Context, a Actor, projectID string, id int64) (segment.Segment, error) {
	segs, err := s.Segments(ctx, a, projectID)
	if err != nil {
		return segment.Segment{}, err
	}
	for _, seg := range segs {
		if seg.ID == id {
			return seg, nil
		}
	}
	return segment.Segment{}, segmentNotFound("editor.Segment", id)
}

// errUnchanged lets a mutate builder end the operation without writing.
var errUnchanged = errors.New("unchanged")

// mutate is the common frame of single-segment changes: lock, load,
// authorize, apply, persist, publish.
func (s *Service) mutate(ctx context.Context, a Actor, projectID string, id int64, op string,
	build func(cur segment.Segment, roles []segment.Role) (segment.Patch, error)) (segment.Segment, error) {

	unlock := s.lock(projectID)
	defer unlock()

	_, roles, err := s.access(ctx, a, projectID)
	if err != nil {
		return segment.Segment{}, err
	}
	doc, err := s.document(ctx, projectID)
	if err != nil {
		return segment.Segment{}, err
	}
	cur, ok := doc.Get(id)
	if !ok {
		return segment.Segment{}, segmentNotFound(op, id)
	}
	p, err := build(cur, roles)
	if errors.Is(err, errUnchanged) {
		return cur, nil
	}
	if err != nil {
		return segment.Segment{}, err
	}
	name := a.Name
	p.LastModifiedBy = &name
	if !doc.UpdateSegment(id, p) {
		return segment.Segment{}, caterr.Field(caterr.ErrForbidden, op, "status", string(cur.Status))
	}
	next, _ := doc.Get(id)
	if err := s.db.SaveSegment(ctx, projectID, next); err != nil {
		return segment.Segment{}, err
	}
	s.db.TouchProject(ctx, projectID)
	s.events.Publish(events.Event{Type: events.SegmentUpdated, ProjectID: projectID, SegmentID: id, Data: next})
	return next, nil
}

func editable(op string, cur segment.Segment, roles []segment.Role) error {
	if !segment.CanEdit(roles, cur.Status) {
		return caterr.Field(caterr.ErrForbidden, op, "status", string(cur.Status))
	}
	return nil
}

// protectedField names the first field of p that callers may not set
// directly. Workflow state, evaluations, provenance and comments each have
// their own operation.
func protectedField(p segment.Patch) string {
	switch {
	case p.Status != nil:
		return "status"
	case p.Evaluation != nil || p.ClearEvaluation:
		return "evaluation"
	case p.TargetErrors != nil || p.ClearTargetErrors:
		return "targetErrors"
	case p.IsDirty != nil:
		return "isDirty"
	case p.TranslatorTarget != nil:
		return "translatorTarget"
	case p.TranslationSource != nil:
		return "translationSource"
	case p.LastModifiedBy != nil:
		return "lastModifiedBy"
	case p.Comments != nil:
		return "comments"
	}
	return ""
}

// UpdateSegment applies a content edit: source, target, times and overlays.
func (s *Service) UpdateSegment(ctx context.Context, a Actor, projectID string, id int64, p segment.Patch) (segment.Segment, error) {
	const op = "editor.UpdateSegment"
	if f := protectedField(p); f != "" {
		return segment.Segment{}, caterr.Field(caterr.ErrInvalidInput, op, f, "")
	}
	return s.mutate(ctx, a, projectID, id, op, func(cur segment.Segment, roles []segment.Role) (segment.Patch, error) {
		if err := editable(op, cur, roles); err != nil {
			return p, err
		}
		s.checkTimes(projectID, cur, p)
		return p, nil
	})
}

// checkTimes logs a time edit that the core will revert.
func (s *Service) checkTimes(projectID string, cur segment.Segment, p segment.Patch) {
	start, end := cur.StartTime, cur.EndTime
	if p.StartTime != nil {
		start = p.StartTime
	}
	if p.EndTime != nil {
		end = p.EndTime
	}
	if start != nil && end != nil && *start >= *end {
		s.log.WithFields(map[string]interface{}{
			"project": projectID, "segment": cur.ID, "start": *start, "end": *end,
		}).Warn("start not before end, times kept")
	}
}

// UpdateTimes edits the cue times of a segment from HH:MM:SS,mmm strings.
// Empty strings leave a time unchanged; malformed ones keep the previous
// value.
func (s *Service) UpdateTimes(ctx context.Context, a Actor, projectID string, id int64, start, end string) (segment.Segment, error) {
	const op = "editor.UpdateTimes"
	return s.mutate(ctx, a, projectID, id, op, func(cur segment.Segment, roles []segment.Role) (segment.Patch, error) {
		var p segment.Patch
		if err := editable(op, cur, roles); err != nil {
			return p, err
		}
		p.StartTime = s.parseTime(projectID, id, start, cur.StartTime)
		p.EndTime = s.parseTime(projectID, id, end, cur.EndTime)
		s.checkTimes(projectID, cur, p)
		return p, nil
	})
}

func (s *Service) parseTime(projectID string, id int64, raw string, prev *float64) *float64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if _, err := subtitle.ParseTime(raw); err != nil {
		s.log.WithError(err).WithFields(map[string]interface{}{"project": projectID, "segment": id}).Warn("time edit reverted")
		if prev == nil {
			return nil
		}
	}
	var fallback float64
	if prev != nil {
		fallback = *prev
	}
	v := subtitle.ParseTimeOr(raw, fallback)
	return &v
}

// ApplyAction performs a workflow step on a segment.
func (s *Service) ApplyAction(ctx context.Context, a Actor, projectID string, id int64, action string) (segment.Segment, error) {
	const op = "editor.ApplyAction"
	act, err := segment.ParseAction(action)
	if err != nil {
		return segment.Segment{}, err
	}
	return s.mutate(ctx, a, projectID, id, op, func(cur segment.Segment, roles []segment.Role) (segment.Patch, error) {
		var p segment.Patch
		if !segment.Authorized(roles, act, cur.Status) {
			return p, caterr.Field(caterr.ErrForbidden, op, "action", action)
		}
		next, err := segment.Next(cur.Status, act)
		if err != nil {
			return p, err
		}
		if markup.IsBlank(cur.Target) {
			return p, caterr.Field(caterr.ErrInvalidTransition, op, "target", "")
		}
		p.Status = &next
		return p, nil
	})
}

// RecordEvaluation stores a provider assessment. It reports false, without
// error, when the segment is not eligible.
func (s *Service) RecordEvaluation(ctx context.Context, a Actor, projectID string, id int64,
	ev segment.Evaluation, errs []segment.TargetError) (segment.Segment, bool, error) {

	const op = "editor.RecordEvaluation"
	if !ev.Valid() {
		return segment.Segment{}, false, caterr.Field(caterr.ErrInvalidInput, op, "evaluation", "")
	}
	skipped := false
	seg, err := s.mutate(ctx, a, projectID, id, op, func(cur segment.Segment, roles []segment.Role) (segment.Patch, error) {
		if err := editable(op, cur, roles); err != nil {
			return segment.Patch{}, err
		}
		p, ok := segment.EvaluationPatch(cur, ev, errs)
		if !ok {
			skipped = true
			return segment.Patch{}, errUnchanged
		}
		return p, nil
	})
	if err != nil {
		return segment.Segment{}, false, err
	}
	return seg, !skipped, nil
}

// AddComment attaches a note. Any project member may comment.
func (s *Service) AddComment(ctx context.Context, a Actor, projectID string, id int64, text string) (segment.Comment, error) {
	const op = "editor.AddComment"
	text = strings.TrimSpace(text)
	if text == "" {
		return segment.Comment{}, caterr.Field(caterr.ErrInvalidInput, op, "text", "")
	}
	c := segment.Comment{ID: uuid.NewString(), Author: a.Name, Text: text, CreatedAt: time.Now().UTC()}
	_, err := s.mutate(ctx, a, projectID, id, op, func(cur segment.Segment, _ []segment.Role) (segment.Patch, error) {
		return segment.Patch{Comments: append(cur.Comments, c)}, nil
	})
	return c, err
}

// ResolveComment marks a comment resolved.
func (s *Service) ResolveComment(ctx context.Context, a Actor, projectID string, id int64, commentID string) (segment.Segment, error) {
	const op = "editor.ResolveComment"
	return s.mutate(ctx, a, projectID, id, op, func(cur segment.Segment, _ []segment.Role) (segment.Patch, error) {
		comments := append([]segment.Comment(nil), cur.Comments...)
		for i := range comments {
			if comments[i].ID == commentID {
				comments[i].IsResolved = true
				return segment.Patch{Comments: comments}, nil
			}
		}
		return segment.Patch{}, caterr.Field(caterr.ErrNotFound, op, "comment", commentID)
	})
}

// restructure runs a join or split under the project lock and rewrites the
// stored segment list.
func (s *Service) restructure(ctx context.Context, a Actor, projectID string, op string, ids []int64,
	apply func(doc *segment.Document) bool) ([]segment.Segment, error) {

	unlock := s.lock(projectID)
	defer unlock()

	_, roles, err := s.access(ctx, a, projectID)
	if err != nil {
		return nil, err
	}
	doc, err := s.document(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		cur, ok := doc.Get(id)
		if !ok {
			return nil, segmentNotFound(op, id)
		}
		if err := editable(op, cur, roles); err != nil {
			return nil, err
		}
	}
	if !apply(doc) {
		return nil, caterr.Field(caterr.ErrInvalidInput, op, "segments", "")
	}
	segs := doc.Segments()
	if err := s.db.ReplaceSegments(ctx, projectID, segs); err != nil {
		return nil, err
	}
	s.db.TouchProject(ctx, projectID)
	s.events.Publish(events.Event{Type: events.SegmentsChanged, ProjectID: projectID})
	return segs, nil
}

// Join merges two adjacent segments and returns the new list.
func (s *Service) Join(ctx context.Context, a Actor, projectID string, first, second int64) ([]segment.Segment, error) {
	return s.restructure(ctx, a, projectID, "editor.Join", []int64{first, second}, func(doc *segment.Document) bool {
		return doc.Join(first, second)
	})
}

// Split divides a segment and returns the ids of the parts.
func (s *Service) Split(ctx context.Context, a Actor, projectID string, id int64, sources, targets []string) ([]int64, error) {
	var ids []int64
	_, err := s.restructure(ctx, a, projectID, "editor.Split", []int64{id}, func(doc *segment.Document) bool {
		ids = doc.Split(id, sources, targets)
		return ids != nil
	})
	return ids, err
}

// Hit is one concordance result.
type Hit struct {
	SegmentID int64          `json:"segmentId"`
	Source    string         `json:"source"`
	Target    string         `json:"target"`
	Status    segment.Status `json:"status"`
}

// Search finds segments whose plain source or target contains query, case
// insensitively. field is "source", "target" or "" for both.
func (s *Service) Search(ctx context.Context, a Actor, projectID, query, field string) ([]Hit, error) {
	segs, err := s.Segments(ctx, a, projectID)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	hits := []Hit{}
	if q == "" {
		return hits, nil
	}
	for _, seg := range segs {
		src := strings.ToLower(markup.Strip(seg.Source))
		tgt := strings.ToLower(markup.Strip(seg.Target))
		var ok bool
		switch field {
		case "source":
			ok = strings.Contains(src, q)
		case "target":
			ok = strings.Contains(tgt, q)
		default:
			ok = strings.Contains(src, q) || strings.Contains(tgt, q)
		}
		if ok {
			hits = append(hits, Hit{SegmentID: seg.ID, Source: seg.Source, Target: seg.Target, Status: seg.Status})
		}
	}
	return hits, nil
}

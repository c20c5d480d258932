package editor

import (
	"context"
	"io"

	"github.com/catdesk/backend/internal/events"
	"github.com/catdesk/backend/internal/term"
	"github.com/catdesk/backend/internal/tm"
)

// ImportTerms adds the entries of a line-delimited term file to the project
// glossary and returns how many were stored.
func (s *Service) ImportTerms(ctx context.Context, a Actor, projectID string, r io.Reader) (int, error) {
	if _, err := s.manage(ctx, a, projectID); err != nil {
		return 0, err
	}
	terms, err := term.ParseFile(r)
	if err != nil {
		return 0, err
	}
	if err := s.db.AddTerms(ctx, projectID, terms); err != nil {
		return 0, err
	}
	return len(terms), nil
}

func (s *Service) Terms(ctx context.Context, a Actor, projectID string) ([]term.Term, error) {
	if _, _, err := s.access(ctx, a, projectID); err != nil {
		return nil, err
	}
	return s.db.ListTerms(ctx, projectID)
}

// ImportMatches replaces the stored TM lookup results with the records read
// from r.
func (s *Service) ImportMatches(ctx context.Context, a Actor, projectID string, r io.Reader) (int, error) {
	if _, err := s.manage(ctx, a, projectID); err != nil {
		return 0, err
	}
	matches, err := tm.ParseMatches(r)
	if err != nil {
		return 0, err
	}
	if err := s.db.ReplaceMatches(ctx, projectID, matches); err != nil {
		return 0, err
	}
	return len(matches), nil
}

// ImportUnits compares translation units with the project's sources and
// stores the exact hits as matches.
func (s *Service) ImportUnits(ctx context.Context, a Actor, projectID string, r io.Reader) (int, error) {
	if _, err := s.manage(ctx, a, projectID); err != nil {
		return 0, err
	}
	units, err := tm.ParseUnits(r)
	if err != nil {
		return 0, err
	}
	segs, err := s.db.LoadSegments(ctx, projectID)
	if err != nil {
		return 0, err
	}
	matches := tm.ExactMatches(units, segs)
	if err := s.db.ReplaceMatches(ctx, projectID, matches); err != nil {
		return 0, err
	}
	return len(matches), nil
}

// PrefillFromTM fills empty draft targets from stored 100% matches and
// returns the ids it changed.
func (s *Service) PrefillFromTM(ctx context.Context, a Actor, projectID string) ([]int64, error) {
	unlock := s.lock(projectID)
	defer unlock()

	if _, err := s.manage(ctx, a, projectID); err != nil {
		return nil, err
	}
	matches, err := s.db.ListMatches(ctx, projectID)
	if err != nil {
		return nil, err
	}
	doc, err := s.document(ctx, projectID)
	if err != nil {
		return nil, err
	}
	filled := tm.ExactPrefill(doc, matches)
	for _, id := range filled {
		seg, _ := doc.Get(id)
		if err := s.db.SaveSegment(ctx, projectID, seg); err != nil {
			return nil, err
		}
	}
	if len(filled) > 0 {
		s.db.TouchProject(ctx, projectID)
		s.events.Publish(events.Event{Type: events.SegmentsChanged, ProjectID: projectID, Data: filled})
	}
	s.log.WithFields(map[string]interface{}{"project": projectID, "filled": len(filled)}).Info("tm prefill")
	if filled == nil {
		filled = []int64{}
	}
	return filled, nil
}

package editor

import (
	"context"
	"fmt"

	"github.com/catdesk/backend/internal/anchor"
	"github.com/catdesk/backend/internal/caterr"
	"github.com/catdesk/backend/internal/db/models"
	"github.com/catdesk/backend/internal/qa"
	"github.com/catdesk/backend/internal/reconstruct"
	"github.com/catdesk/backend/internal/segment"
	"github.com/catdesk/backend/internal/stats"
)

// RunQA checks the project's segments against its terminology. An empty rule
// list runs the default set.
func (s *Service) RunQA(ctx context.Context, a Actor, projectID string, rules []string) ([]qa.Issue, error) {
	types, err := qa.ParseRules(rules)
	if err != nil {
		return nil, caterr.New(caterr.ErrInvalidInput, "editor.RunQA", err)
	}
	return s.check(ctx, a, projectID, types)
}

func (s *Service) check(ctx context.Context, a Actor, projectID string, types []qa.IssueType) ([]qa.Issue, error) {
	segs, err := s.Segments(ctx, a, projectID)
	if err != nil {
		return nil, err
	}
	terms, err := s.db.ListTerms(ctx, projectID)
	if err != nil {
		return nil, err
	}
	issues := qa.RunWithRules(segs, terms, types)
	if issues == nil {
		issues = []qa.Issue{}
	}
	return issues, nil
}

// ApplyQAFix applies the suggested fix of the first fixable issue on a
// segment.
func (s *Service) ApplyQAFix(ctx context.Context, a Actor, projectID string, id int64) (segment.Segment, error) {
	const op = "editor.ApplyQAFix"
	issues, err := s.check(ctx, a, projectID, qa.AllRules)
	if err != nil {
		return segment.Segment{}, err
	}
	for _, is := range issues {
		if is.SegmentID != id || is.SuggestedFix == "" {
			continue
		}
		fix := is.SuggestedFix
		return s.UpdateSegment(ctx, a, projectID, id, segment.Patch{Target: &fix})
	}
	return segment.Segment{}, caterr.Field(caterr.ErrInvalidInput, op, "segment", fmt.Sprint(id))
}

// Counts is the progress report by translation state.
func (s *Service) Counts(ctx context.Context, a Actor, projectID string) (stats.Report, error) {
	segs, err := s.Segments(ctx, a, projectID)
	if err != nil {
		return stats.Report{}, err
	}
	return stats.Counts(segs), nil
}

// Analysis is the TM-weighted report over the stored match records.
func (s *Service) Analysis(ctx context.Context, a Actor, projectID string) (stats.Report, error) {
	segs, err := s.Segments(ctx, a, projectID)
	if err != nil {
		return stats.Report{}, err
	}
	matches, err := s.db.ListMatches(ctx, projectID)
	if err != nil {
		return stats.Report{}, err
	}
	return stats.Analyze(segs, matches), nil
}

// Preview renders the translated document. Segments missing from the source
// tree are returned so the client can flag them.
func (s *Service) Preview(ctx context.Context, a Actor, projectID string) (string, []int64, error) {
	p, _, err := s.access(ctx, a, projectID)
	if err != nil {
		return "", nil, err
	}
	segs, err := s.db.LoadSegments(ctx, projectID)
	if err != nil {
		return "", nil, err
	}
	return s.render(p, segs, reconstruct.ModePreview)
}

func (s *Service) render(p *models.Project, segs []segment.Segment, mode reconstruct.Mode) (string, []int64, error) {
	tree, err := sourceTree(p)
	if err != nil {
		return "", nil, err
	}
	out, missing, err := reconstruct.HTML(tree, segs, mode)
	if err != nil {
		return "", nil, err
	}
	if len(missing) > 0 {
		s.log.WithError(caterr.Field(caterr.ErrAnchorNotFound, "editor.render", "segments", fmt.Sprint(missing))).
			WithField("project", p.ID).Warn("segments without anchor")
	}
	return out, missing, nil
}

// sourceTree parses the stored source document, or returns nil for projects
// without one.
func sourceTree(p *models.Project) (*anchor.Tree, error) {
	if p.SourceHTML == "" {
		return nil, nil
	}
	return anchor.Parse(p.SourceHTML)
}

package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/catdesk/backend/internal/caterr"
	"github.com/catdesk/backend/internal/db/models"
	"github.com/catdesk/backend/internal/docx"
	"github.com/catdesk/backend/internal/job"
	"github.com/catdesk/backend/internal/project"
	"github.com/catdesk/backend/internal/reconstruct"
	"github.com/catdesk/backend/internal/segment"
	"github.com/catdesk/backend/internal/storage"
	"github.com/catdesk/backend/internal/subtitle"
)

// Export formats.
const (
	FormatProject = "project"
	FormatSRT     = "srt"
	FormatVTT     = "vtt"
	FormatHTML    = "html"
	FormatDOCX    = "docx"
)

// Artifact is a rendered export.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
	Missing     []int64
}

// Export renders the project in the given format. strategy only applies to
// docx; empty means the configured default.
func (s *Service) Export(ctx context.Context, a Actor, projectID, format, strategy string) (*Artifact, error) {
	switch format {
	case FormatProject:
		return s.ExportProjectFile(ctx, a, projectID)
	case FormatSRT:
		return s.ExportSRT(ctx, a, projectID)
	case FormatVTT:
		return s.ExportVTT(ctx, a, projectID)
	case FormatHTML:
		return s.ExportHTML(ctx, a, projectID)
	case FormatDOCX:
		return s.ExportDOCX(ctx, a, projectID, strategy)
	}
	return nil, caterr.Field(caterr.ErrInvalidInput, "editor.Export", "format", format)
}

func (s *Service) snapshot(ctx context.Context, a Actor, projectID string) (*models.Project, []segment.Segment, error) {
	p, _, err := s.access(ctx, a, projectID)
	if err != nil {
		return nil, nil, err
	}
	segs, err := s.db.LoadSegments(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	return p, segs, nil
}

func fileName(p *models.Project, ext string) string {
	base := p.Name
	if p.SourceName != "" {
		base = strings.TrimSuffix(p.SourceName, filepath.Ext(p.SourceName))
	}
	if p.TargetLanguage != "" {
		base += "." + p.TargetLanguage
	}
	return base + ext
}

// ExportProjectFile writes the portable project file, embedding the stored
// source upload.
func (s *Service) ExportProjectFile(ctx context.Context, a Actor, projectID string) (*Artifact, error) {
	p, segs, err := s.snapshot(ctx, a, projectID)
	if err != nil {
		return nil, err
	}
	var source *project.SourceFile
	if p.SourceName != "" {
		data, err := s.files.ReadSource(p.ID, p.SourceName)
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		source = project.EmbedSource(p.SourceName, data)
	}
	f := project.New(project.Meta{
		ID:             p.ID,
		Name:           p.Name,
		SourceLanguage: p.SourceLanguage,
		TargetLanguage: p.TargetLanguage,
		Kind:           p.Kind,
		CreatedAt:      p.CreatedAt,
	}, segs, p.SourceHTML, source)
	if p.Settings != "" {
		if err := json.Unmarshal([]byte(p.Settings), &f.Settings); err != nil {
			s.log.WithError(err).WithField("project", p.ID).Warn("stored settings unreadable, using defaults")
		}
	}
	if p.Extras != "" {
		var ex extras
		if err := json.Unmarshal([]byte(p.Extras), &ex); err == nil {
			f.Session = ex.Session
			f.SourceControl = ex.SourceControl
			f.TranslationMemories = ex.TranslationMemories
			f.TermDatabases = ex.TermDatabases
		}
	}
	var buf bytes.Buffer
	if err := project.Save(&buf, f); err != nil {
		return nil, err
	}
	return &Artifact{Name: p.Name + ".catdesk.json", ContentType: "application/json", Data: buf.Bytes()}, nil
}

func (s *Service) ExportSRT(ctx context.Context, a Actor, projectID string) (*Artifact, error) {
	p, segs, err := s.snapshot(ctx, a, projectID)
	if err != nil {
		return nil, err
	}
	return &Artifact{Name: fileName(p, ".srt"), ContentType: "application/x-subrip", Data: []byte(subtitle.ExportSRT(segs))}, nil
}

func (s *Service) ExportVTT(ctx context.Context, a Actor, projectID string) (*Artifact, error) {
	p, segs, err := s.snapshot(ctx, a, projectID)
	if err != nil {
		return nil, err
	}
	return &Artifact{Name: fileName(p, ".vtt"), ContentType: "text/vtt", Data: []byte(subtitle.ExportVTT(segs))}, nil
}

// ExportHTML renders the reconstructed document without anchor bookkeeping.
func (s *Service) ExportHTML(ctx context.Context, a Actor, projectID string) (*Artifact, error) {
	p, segs, err := s.snapshot(ctx, a, projectID)
	if err != nil {
		return nil, err
	}
	body, missing, err := s.render(p, segs, reconstruct.ModeExport)
	if err != nil {
		return nil, err
	}
	return &Artifact{Name: fileName(p, ".html"), ContentType: "text/html; charset=utf-8", Data: []byte(body), Missing: missing}, nil
}

// ExportDOCX writes the translated document into the stored source container.
func (s *Service) ExportDOCX(ctx context.Context, a Actor, projectID, strategy string) (*Artifact, error) {
	const op = "editor.ExportDOCX"
	p, segs, err := s.snapshot(ctx, a, projectID)
	if err != nil {
		return nil, err
	}
	if p.Kind != string(storage.KindDOCX) || p.SourceName == "" {
		return nil, caterr.Field(caterr.ErrInvalidFileType, op, "kind", p.Kind)
	}
	if strategy == "" {
		strategy = s.opts.DocxStrategy
	}
	st, err := docx.StrategyByName(strategy, s.opts.MaxImageWidth)
	if err != nil {
		return nil, err
	}
	container, err := s.files.ReadSource(p.ID, p.SourceName)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	tree, err := sourceTree(p)
	if err != nil {
		return nil, err
	}
	out, err := st.Export(container, docx.Input{Tree: tree, Segments: segs})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(map[string]interface{}{
		"project": p.ID, "strategy": st.Name(), "missing": len(out.Missing),
	}).Info("docx exported")
	return &Artifact{
		Name:        fileName(p, ".docx"),
		ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Data:        out.Data,
		Missing:     out.Missing,
	}, nil
}

// RegisterJobs installs the export handler on q and routes EnqueueExport
// through it.
func (s *Service) RegisterJobs(q *job.JobQueue) {
	s.jobs = q
	q.RegisterHandler(job.JobExport, s.runExport)
}

// EnqueueExport schedules a background export.
func (s *Service) EnqueueExport(ctx context.Context, a Actor, projectID string, params job.ExportParams) (*job.Job, error) {
	if s.jobs == nil {
		return nil, fmt.Errorf("job queue not configured")
	}
	if _, _, err := s.access(ctx, a, projectID); err != nil {
		return nil, err
	}
	switch params.Format {
	case FormatProject, FormatSRT, FormatVTT, FormatHTML, FormatDOCX:
	default:
		return nil, caterr.Field(caterr.ErrInvalidInput, "editor.EnqueueExport", "format", params.Format)
	}
	if params.Format == FormatDOCX {
		if _, err := docx.StrategyByName(params.Strategy, s.opts.MaxImageWidth); err != nil {
			return nil, err
		}
	}
	return s.jobs.Enqueue(job.JobExport, projectID, a.ID, params)
}

// Jobs lists the jobs of a project.
func (s *Service) Jobs(ctx context.Context, a Actor, projectID string) ([]*job.Job, error) {
	if s.jobs == nil {
		return []*job.Job{}, nil
	}
	if _, _, err := s.access(ctx, a, projectID); err != nil {
		return nil, err
	}
	return s.jobs.ListJobs(projectID)
}

func (s *Service) runExport(ctx context.Context, j *job.Job, updateProgress func(float64)) (interface{}, error) {
	var params job.ExportParams
	if err := json.Unmarshal(j.Params, &params); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	start := time.Now()
	user, err := s.db.GetUserByID(j.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("job owner %d: %w", j.CreatedBy, err)
	}
	a := Actor{ID: user.ID, Name: user.Username, Admin: user.Role == models.RoleAdmin}
	updateProgress(0.1)

	art, err := s.Export(ctx, a, j.ProjectID, params.Format, params.Strategy)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	updateProgress(0.8)

	rel, err := s.files.SaveExport(j.ProjectID, j.ID+"-"+art.Name, art.Data)
	if err != nil {
		return nil, fmt.Errorf("store export: %w", err)
	}
	return job.ExportResult{
		Path:     rel,
		Name:     art.Name,
		Size:     len(art.Data),
		Missing:  art.Missing,
		Duration: time.Since(start).Seconds(),
	}, nil
}

// CleanupJob removes the artifact of a purged export job.
func (s *Service) CleanupJob(j *job.Job) {
	if j.Type != job.JobExport || len(j.Result) == 0 {
		return
	}
	var res job.ExportResult
	if err := json.Unmarshal(j.Result, &res); err != nil || res.Path == "" {
		return
	}
	if err := s.files.RemoveExport(res.Path); err != nil {
		s.log.WithError(err).WithField("job", j.ID).Warn("export artifact not removed")
	}
}

// ExportArtifact returns the on-disk path and name of a finished export job.
func (s *Service) ExportArtifact(ctx context.Context, a Actor, jobID string) (string, string, error) {
	const op = "editor.ExportArtifact"
	j, err := s.Job(ctx, a, jobID)
	if err != nil {
		return "", "", err
	}
	if j.Type != job.JobExport || j.Status != job.StatusCompleted {
		return "", "", caterr.Field(caterr.ErrInvalidInput, op, "status", string(j.Status))
	}
	var res job.ExportResult
	if err := json.Unmarshal(j.Result, &res); err != nil {
		return "", "", fmt.Errorf("job %s result: %w", j.ID, err)
	}
	path, err := s.files.ExportFile(res.Path)
	if err != nil {
		return "", "", caterr.Field(caterr.ErrNotFound, op, "artifact", res.Path)
	}
	return path, res.Name, nil
}

// Exports lists the stored artifacts of a project.
func (s *Service) Exports(ctx context.Context, a Actor, projectID string) ([]*storage.FileEntry, error) {
	if _, _, err := s.access(ctx, a, projectID); err != nil {
		return nil, err
	}
	return s.files.ListExports(projectID)
}

// Job returns a job the actor may see: any job of a project they belong to.
func (s *Service) Job(ctx context.Context, a Actor, jobID string) (*job.Job, error) {
	if s.jobs == nil {
		return nil, caterr.Field(caterr.ErrNotFound, "editor.Job", "job", jobID)
	}
	j, err := s.jobs.GetJob(jobID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.access(ctx, a, j.ProjectID); err != nil {
		return nil, err
	}
	return j, nil
}

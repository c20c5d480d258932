package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/catdesk/backend/internal/caterr"
	"github.com/catdesk/backend/internal/db/models"
	"github.com/catdesk/backend/internal/docx"
	"github.com/catdesk/backend/internal/events"
	"github.com/catdesk/backend/internal/project"
	"github.com/catdesk/backend/internal/segment"
	"github.com/catdesk/backend/internal/storage"
	"github.com/catdesk/backend/internal/subtitle"
)

// ImportRequest is an uploaded file turned into a project.
type ImportRequest struct {
	FileName       string
	Name           string
	SourceLanguage string
	TargetLanguage string
	// Model seeds settings.model for uploads that carry no project settings.
	Model          string
	Data           []byte
}

// extras holds the project-file sections kept verbatim for re-export.
type extras struct {
	Session             json.RawMessage   `json:"session,omitempty"`
	SourceControl       json.RawMessage   `json:"sourceControl,omitempty"`
	TranslationMemories []json.RawMessage `json:"translationMemories,omitempty"`
	TermDatabases       []json.RawMessage `json:"termDatabases,omitempty"`
}

// ImportProject detects the upload's format and creates a project owned by
// the actor.
func (s *Service) ImportProject(ctx context.Context, a Actor, req ImportRequest) (*models.Project, error) {
	kind, err := storage.DetectKind(req.FileName, req.Data)
	if err != nil {
		return nil, err
	}

	p := &models.Project{
		Name:           req.Name,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Kind:           string(kind),
		OwnerID:        a.ID,
	}
	var segs []segment.Segment
	var source *project.SourceFile

	switch kind {
	case storage.KindProject:
		f, err := project.Load(bytes.NewReader(req.Data))
		if err != nil {
			return nil, err
		}
		segs = f.Data.Segments
		source = f.SourceFile
		p.SourceHTML = f.SourceDocumentHTML
		if p.Name == "" {
			p.Name = f.Project.Name
		}
		if p.SourceLanguage == "" {
			p.SourceLanguage = f.Project.SourceLanguage
		}
		if p.TargetLanguage == "" {
			p.TargetLanguage = f.Project.TargetLanguage
		}
		p.Kind = f.Project.Kind
		if p.Kind == "" && source != nil {
			p.Kind = string(kindOf(source.Name))
		}
		settings, _ := json.Marshal(f.Settings)
		ex, _ := json.Marshal(extras{
			Session:             f.Session,
			SourceControl:       f.SourceControl,
			TranslationMemories: f.TranslationMemories,
			TermDatabases:       f.TermDatabases,
		})
		p.Settings, p.Extras = string(settings), string(ex)
	case storage.KindDOCX:
		p.SourceHTML, segs, err = docx.Extract(req.Data)
		if err != nil {
			return nil, err
		}
		source = project.EmbedSource(req.FileName, req.Data)
	case storage.KindSRT:
		segs = subtitle.CuesToSegments(subtitle.ParseSRT(string(req.Data)))
	case storage.KindVTT:
		segs = subtitle.CuesToSegments(subtitle.ParseVTT(string(req.Data)))
	case storage.KindTranscript:
		segs = subtitle.CuesToSegments(subtitle.ParseTranscript(string(req.Data)))
	}
	if kind != storage.KindProject && len(segs) == 0 {
		return nil, caterr.Field(caterr.ErrInvalidFileType, "editor.ImportProject", "content", req.FileName)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(req.FileName), filepath.Ext(req.FileName))
	}
	if p.Settings == "" {
		defaults := project.New(project.Meta{}, nil, "", nil).Settings
		if m := strings.TrimSpace(req.Model); m != "" {
			defaults.Model = m
		}
		settings, _ := json.Marshal(defaults)
		p.Settings = string(settings)
	}

	p.ID = uuid.NewString()
	if source != nil {
		data, err := source.Bytes()
		if err != nil {
			return nil, err
		}
		if _, err := s.files.SaveSource(p.ID, source.Name, data); err != nil {
			return nil, fmt.Errorf("store source: %w", err)
		}
		p.SourceName = source.Name
	}
	if err := s.db.CreateProject(ctx, p, segs); err != nil {
		s.files.RemoveProject(p.ID)
		return nil, err
	}
	s.log.WithFields(map[string]interface{}{
		"project": p.ID, "kind": p.Kind, "segments": len(segs), "user": a.Name,
	}).Info("project imported")
	return p, nil
}

func kindOf(name string) storage.Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".docx":
		return storage.KindDOCX
	case ".srt":
		return storage.KindSRT
	case ".vtt":
		return storage.KindVTT
	case ".txt":
		return storage.KindTranscript
	}
	return ""
}

func (s *Service) ListProjects(ctx context.Context, a Actor) ([]models.Project, error) {
	return s.db.ListProjects(ctx, a.ID, a.Admin)
}

func (s *Service) Project(ctx context.Context, a Actor, projectID string) (*models.Project, error) {
	p, _, err := s.access(ctx, a, projectID)
	return p, err
}

// Roles returns the actor's roles on a project.
func (s *Service) Roles(ctx context.Context, a Actor, projectID string) ([]segment.Role, error) {
	_, roles, err := s.access(ctx, a, projectID)
	return roles, err
}

// ProjectUpdate changes header fields; nil fields are left alone.
type ProjectUpdate struct {
	Name           *string           `json:"name"`
	SourceLanguage *string           `json:"sourceLanguage"`
	TargetLanguage *string           `json:"targetLanguage"`
	Settings       *project.Settings `json:"settings"`
}

func (s *Service) UpdateProject(ctx context.Context, a Actor, projectID string, u ProjectUpdate) (*models.Project, error) {
	unlock := s.lock(projectID)
	defer unlock()
	p, err := s.manage(ctx, a, projectID)
	if err != nil {
		return nil, err
	}
	if u.Name != nil {
		if strings.TrimSpace(*u.Name) == "" {
			return nil, caterr.Field(caterr.ErrInvalidInput, "editor.UpdateProject", "name", "")
		}
		p.Name = *u.Name
	}
	if u.SourceLanguage != nil {
		p.SourceLanguage = *u.SourceLanguage
	}
	if u.TargetLanguage != nil {
		p.TargetLanguage = *u.TargetLanguage
	}
	if u.Settings != nil {
		b, err := json.Marshal(u.Settings)
		if err != nil {
			return nil, fmt.Errorf("encode settings: %w", err)
		}
		p.Settings = string(b)
	}
	if err := s.db.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProject removes a project and its files. Only the owner or an admin
// may do this.
func (s *Service) DeleteProject(ctx context.Context, a Actor, projectID string) error {
	unlock := s.lock(projectID)
	defer unlock()
	p, roles, err := s.access(ctx, a, projectID)
	if err != nil {
		return err
	}
	if !a.Admin && !hasRole(roles, segment.RoleOwner) {
		return caterr.Field(caterr.ErrForbidden, "editor.DeleteProject", "project", projectID)
	}
	if err := s.db.DeleteProject(ctx, p.ID); err != nil {
		return err
	}
	if err := s.files.RemoveProject(p.ID); err != nil {
		s.log.WithError(err).WithField("project", p.ID).Warn("project files not removed")
	}
	s.forget(p.ID)
	s.events.Publish(events.Event{Type: events.ProjectDeleted, ProjectID: p.ID})
	return nil
}

func hasRole(roles []segment.Role, want segment.Role) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

func (s *Service) Members(ctx context.Context, a Actor, projectID string) ([]models.Member, error) {
	if _, _, err := s.access(ctx, a, projectID); err != nil {
		return nil, err
	}
	return s.db.ListMembers(ctx, projectID)
}

func (s *Service) AddMember(ctx context.Context, a Actor, projectID string, userID int64, role segment.Role) error {
	if !role.Valid() || role == segment.RoleOwner {
		return caterr.Field(caterr.ErrInvalidInput, "editor.AddMember", "role", string(role))
	}
	if _, err := s.manage(ctx, a, projectID); err != nil {
		return err
	}
	if _, err := s.db.GetUserByID(userID); err != nil {
		return caterr.Field(caterr.ErrNotFound, "editor.AddMember", "user", fmt.Sprint(userID))
	}
	return s.db.AddMember(ctx, projectID, userID, role)
}

func (s *Service) RemoveMember(ctx context.Context, a Actor, projectID string, userID int64, role segment.Role) error {
	if role == segment.RoleOwner {
		return caterr.Field(caterr.ErrInvalidInput, "editor.RemoveMember", "role", string(role))
	}
	if _, err := s.manage(ctx, a, projectID); err != nil {
		return err
	}
	return s.db.RemoveMember(ctx, projectID, userID, role)
}

// Package editor is the application layer over the segment core. It checks
// project roles, serializes mutations per project, persists through the
// database and announces changes to connected clients.
package editor

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/catdesk/backend/internal/caterr"
	"github.com/catdesk/backend/internal/db"
	"github.com/catdesk/backend/internal/db/models"
	"github.com/catdesk/backend/internal/events"
	"github.com/catdesk/backend/internal/job"
	"github.com/catdesk/backend/internal/logging"
	"github.com/catdesk/backend/internal/segment"
	"github.com/catdesk/backend/internal/storage"
)

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID    int64
	Name  string
	Admin bool
}

// Options tune exports.
type Options struct {
	DocxStrategy  string
	MaxImageWidth int
}

type Service struct {
	db     *db.Database
	files  *storage.Store
	events events.Publisher
	opts   Options
	jobs   *job.JobQueue
	log    *logrus.Entry

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(database *db.Database, files *storage.Store, pub events.Publisher, opts Options) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		db:     database,
		files:  files,
		events: pub,
		opts:   opts,
		log:    logging.For("editor"),
		locks:  make(map[string]*sync.Mutex),
	}
}

// lock serializes mutations of one project and returns the unlock func.
func (s *Service) lock(projectID string) func() {
	s.mu.Lock()
	l, ok := s.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[projectID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *Service) forget(projectID string) {
	s.mu.Lock()
	delete(s.locks, projectID)
	s.mu.Unlock()
}

// access loads a project and the actor's roles on it. Admins act as project
// leaders on every project. Users without a role get ErrForbidden.
func (s *Service) access(ctx context.Context, a Actor, projectID string) (*models.Project, []segment.Role, error) {
	p, err := s.db.GetProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	roles, err := s.db.MemberRoles(ctx, projectID, a.ID)
	if err != nil {
		return nil, nil, err
	}
	if a.Admin {
		roles = append(roles, segment.RoleProjectLeader)
	}
	if len(roles) == 0 {
		return nil, nil, caterr.Field(caterr.ErrForbidden, "editor.access", "project", projectID)
	}
	return p, roles, nil
}

func canManage(roles []segment.Role) bool {
	for _, r := range roles {
		if r == segment.RoleOwner || r == segment.RoleProjectLeader {
			return true
		}
	}
	return false
}

// manage is access restricted to owners and project leaders.
func (s *Service) manage(ctx context.Context, a Actor, projectID string) (*models.Project, error) {
	p, roles, err := s.access(ctx, a, projectID)
	if err != nil {
		return nil, err
	}
	if !canManage(roles) {
		return nil, caterr.Field(caterr.ErrForbidden, "editor.manage", "project", projectID)
	}
	return p, nil
}

func (s *Service) document(ctx context.Context, projectID string) (*segment.Document, error) {
	segs, err := s.db.LoadSegments(ctx, projectID)
	if err != nil {
		return nil, err
	}
	doc, err := segment.NewDocument(segs)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", projectID, err)
	}
	return doc, nil
}

func segmentNotFound(op string, id int64) error {
	return caterr.Field(caterr.ErrNotFound, op, "segment", fmt.Sprint(id))
}

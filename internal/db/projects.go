package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/catdesk/backend/internal/db/models"
	"github.com/catdesk/backend/internal/segment"
)

const projectColumns = `id, name, source_language, target_language, kind, owner_id,
	source_name, source_html, settings, extras, created_at, updated_at`

// CreateProject stores a project with its segments. The owner is recorded as
// a member with the owner role. An empty ID is assigned.
func (d *Database) CreateProject(ctx context.Context, p *models.Project, segs []segment.Segment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Settings == "" {
		p.Settings = "{}"
	}
	if p.Extras == "" {
		p.Extras = "{}"
	}
	return withTx(ctx, d.db, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO projects (id, name, source_language, target_language, kind, owner_id,
				source_name, source_html, settings, extras)
			VALUES (:id, :name, :source_language, :target_language, :kind, :owner_id,
				:source_name, :source_html, :settings, :extras)`, p)
		if err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO project_members (project_id, user_id, role) VALUES (?, ?, ?)",
			p.ID, p.OwnerID, segment.RoleOwner); err != nil {
			return fmt.Errorf("insert owner: %w", err)
		}
		return insertSegments(ctx, tx, p.ID, segs)
	})
}

func (d *Database) GetProject(ctx context.Context, id string) (*models.Project, error) {
	p := &models.Project{}
	if err := d.db.GetContext(ctx, p, "SELECT "+projectColumns+" FROM projects WHERE id = ?", id); err != nil {
		return nil, notFound(err, "db.GetProject", id)
	}
	return p, nil
}

// ListProjects returns the projects a user is a member of, or every project
// when all is set. Newest first.
func (d *Database) ListProjects(ctx context.Context, userID int64, all bool) ([]models.Project, error) {
	projects := []models.Project{}
	var err error
	if all {
		err = d.db.SelectContext(ctx, &projects, "SELECT "+projectColumns+" FROM projects ORDER BY created_at DESC, id")
	} else {
		err = d.db.SelectContext(ctx, &projects, `
			SELECT `+projectColumns+` FROM projects
			WHERE id IN (SELECT project_id FROM project_members WHERE user_id = ?)
			ORDER BY created_at DESC, id`, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("select projects: %w", err)
	}
	return projects, nil
}

// UpdateProject saves the editable header fields.
func (d *Database) UpdateProject(ctx context.Context, p *models.Project) error {
	res, err := d.db.NamedExecContext(ctx, `
		UPDATE projects SET name = :name, source_language = :source_language,
			target_language = :target_language, settings = :settings, extras = :extras,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = :id`, p)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return expectRow(res, "db.UpdateProject", p.ID)
}

func (d *Database) TouchProject(ctx context.Context, id string) error {
	_, err := d.db.ExecContext(ctx, "UPDATE projects SET updated_at = CURRENT_TIMESTAMP WHERE id = ?", id)
	return err
}

func (d *Database) DeleteProject(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return expectRow(res, "db.DeleteProject", id)
}

func (d *Database) ListMembers(ctx context.Context, projectID string) ([]models.Member, error) {
	members := []models.Member{}
	err := d.db.SelectContext(ctx, &members, `
		SELECT m.project_id, m.user_id, u.username, m.role
		FROM project_members m JOIN users u ON u.id = m.user_id
		WHERE m.project_id = ? ORDER BY u.username, m.role`, projectID)
	if err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}
	return members, nil
}

func (d *Database) AddMember(ctx context.Context, projectID string, userID int64, role segment.Role) error {
	_, err := d.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO project_members (project_id, user_id, role) VALUES (?, ?, ?)",
		projectID, userID, role)
	return err
}

func (d *Database) RemoveMember(ctx context.Context, projectID string, userID int64, role segment.Role) error {
	_, err := d.db.ExecContext(ctx,
		"DELETE FROM project_members WHERE project_id = ? AND user_id = ? AND role = ?",
		projectID, userID, role)
	return err
}

// MemberRoles returns every role the user holds on the project.
func (d *Database) MemberRoles(ctx context.Context, projectID string, userID int64) ([]segment.Role, error) {
	roles := []segment.Role{}
	err := d.db.SelectContext(ctx, &roles,
		"SELECT role FROM project_members WHERE project_id = ? AND user_id = ? ORDER BY role",
		projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("select roles: %w", err)
	}
	return roles, nil
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/catdesk/backend/internal/auth"
	"github.com/catdesk/backend/internal/caterr"
	"github.com/catdesk/backend/internal/db/models"
)

type Database struct {
	db *sqlx.DB
}

func NewSQLite(path string) (*Database, error) {
	sqlDB, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	d := &Database{db: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return d, nil
}

func (d *Database) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		project_id TEXT NOT NULL,
		params TEXT NOT NULL,
		progress REAL DEFAULT 0,
		result TEXT,
		error TEXT,
		created_by INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		started_at DATETIME,
		completed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		source_language TEXT NOT NULL DEFAULT '',
		target_language TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL DEFAULT '',
		owner_id INTEGER NOT NULL,
		source_name TEXT NOT NULL DEFAULT '',
		source_html TEXT NOT NULL DEFAULT '',
		settings TEXT NOT NULL DEFAULT '{}',
		extras TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS project_members (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		PRIMARY KEY (project_id, user_id, role)
	);

	CREATE TABLE IF NOT EXISTS segments (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (project_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_segments_position ON segments(project_id, position);

	CREATE TABLE IF NOT EXISTS terms (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		definition TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS tm_matches (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		segment_id INTEGER NOT NULL,
		score REAL NOT NULL,
		target TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_tm_matches_project ON tm_matches(project_id);
	`
	_, err := d.db.Exec(schema)
	return err
}

func (d *Database) EnsureAdmin(username, password string) error {
	count, err := d.CountAdmins()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(
		"INSERT INTO users (username, password, role) VALUES (?, ?, ?)",
		username, hash, models.RoleAdmin,
	)
	return err
}

func (d *Database) GetUserByUsername(username string) (*models.User, error) {
	u := &models.User{}
	err := d.db.Get(u, "SELECT id, username, password, role, created_at, updated_at FROM users WHERE username = ?", username)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (d *Database) GetUserByID(id int64) (*models.User, error) {
	u := &models.User{}
	err := d.db.Get(u, "SELECT id, username, password, role, created_at, updated_at FROM users WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ListUsers returns every account ordered by id
func (d *Database) ListUsers() ([]models.User, error) {
	users := []models.User{}
	err := d.db.Select(&users, "SELECT id, username, password, role, created_at, updated_at FROM users ORDER BY id")
	return users, err
}

// CreateUser inserts an account with an already hashed password
func (d *Database) CreateUser(username, hash, role string) (int64, error) {
	res, err := d.db.Exec("INSERT INTO users (username, password, role) VALUES (?, ?, ?)", username, hash, role)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateUser changes the role and, when hash is non-empty, the password
func (d *Database) UpdateUser(id int64, role, hash string) error {
	var err error
	if hash != "" {
		_, err = d.db.Exec("UPDATE users SET role = ?, password = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", role, hash, id)
	} else {
		_, err = d.db.Exec("UPDATE users SET role = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", role, id)
	}
	return err
}

func (d *Database) DeleteUser(id int64) error {
	_, err := d.db.Exec("DELETE FROM users WHERE id = ?", id)
	return err
}

func (d *Database) CountAdmins() (int, error) {
	var count int
	err := d.db.Get(&count, "SELECT COUNT(*) FROM users WHERE role = ?", models.RoleAdmin)
	return count, err
}

// GetSetting returns a setting value by key, or defaultVal if not found
func (d *Database) GetSetting(key, defaultVal string) string {
	var val string
	if err := d.db.Get(&val, "SELECT value FROM settings WHERE key = ?", key); err != nil {
		return defaultVal
	}
	return val
}

// SetSetting upserts a setting
func (d *Database) SetSetting(key, value string) error {
	_, err := d.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	return err
}

// GetAllSettings returns all settings as a map
func (d *Database) GetAllSettings() (map[string]string, error) {
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := d.db.Select(&rows, "SELECT key, value FROM settings"); err != nil {
		return nil, err
	}
	result := make(map[string]string, len(rows))
	for _, r := range rows {
		result[r.Key] = r.Value
	}
	return result, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// DB returns the underlying handle for the job queue
func (d *Database) DB() *sqlx.DB {
	return d.db
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func notFound(err error, op, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return caterr.Field(caterr.ErrNotFound, op, "id", id)
	}
	return fmt.Errorf("%s: %w", op, err)
}

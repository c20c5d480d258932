package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/catdesk/backend/internal/caterr"
	"github.com/catdesk/backend/internal/segment"
	"github.com/catdesk/backend/internal/term"
	"github.com/catdesk/backend/internal/tm"
)

// LoadSegments returns the project's segments in document order.
func (d *Database) LoadSegments(ctx context.Context, projectID string) ([]segment.Segment, error) {
	var blobs []string
	if err := d.db.SelectContext(ctx, &blobs,
		"SELECT data FROM segments WHERE project_id = ? ORDER BY position", projectID); err != nil {
		return nil, fmt.Errorf("select segments: %w", err)
	}
	segs := make([]segment.Segment, len(blobs))
	for i, b := range blobs {
		if err := json.Unmarshal([]byte(b), &segs[i]); err != nil {
			return nil, fmt.Errorf("decode segment %d of %s: %w", i, projectID, err)
		}
	}
	return segs, nil
}

// SaveSegment overwrites one stored segment, keeping its position.
func (d *Database) SaveSegment(ctx context.Context, projectID string, s segment.Segment) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode segment: %w", err)
	}
	res, err := d.db.ExecContext(ctx,
		"UPDATE segments SET data = ? WHERE project_id = ? AND id = ?", string(data), projectID, s.ID)
	if err != nil {
		return fmt.Errorf("update segment: %w", err)
	}
	return expectRow(res, "db.SaveSegment", strconv.FormatInt(s.ID, 10))
}

// ReplaceSegments rewrites the whole segment list, used after join and split.
func (d *Database) ReplaceSegments(ctx context.Context, projectID string, segs []segment.Segment) error {
	return withTx(ctx, d.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM segments WHERE project_id = ?", projectID); err != nil {
			return fmt.Errorf("clear segments: %w", err)
		}
		return insertSegments(ctx, tx, projectID, segs)
	})
}

func insertSegments(ctx context.Context, tx *sqlx.Tx, projectID string, segs []segment.Segment) error {
	stmt, err := tx.PreparexContext(ctx, "INSERT INTO segments (project_id, id, position, data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, s := range segs {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode segment %d: %w", s.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, projectID, s.ID, i, string(data)); err != nil {
			return fmt.Errorf("insert segment %d: %w", s.ID, err)
		}
	}
	return nil
}

type termRow struct {
	term.Term
	ProjectID string `db:"project_id"`
}

// AddTerms appends glossary entries to a project.
func (d *Database) AddTerms(ctx context.Context, projectID string, terms []term.Term) error {
	if len(terms) == 0 {
		return nil
	}
	rows := make([]termRow, len(terms))
	for i, t := range terms {
		rows[i] = termRow{Term: t, ProjectID: projectID}
	}
	return withTx(ctx, d.db, func(tx *sqlx.Tx) error {
		for _, r := range rows {
			if _, err := tx.NamedExecContext(ctx, `
				INSERT OR REPLACE INTO terms (id, project_id, source, target, definition)
				VALUES (:id, :project_id, :source, :target, :definition)`, r); err != nil {
				return fmt.Errorf("insert term: %w", err)
			}
		}
		return nil
	})
}

func (d *Database) ListTerms(ctx context.Context, projectID string) ([]term.Term, error) {
	terms := []term.Term{}
	err := d.db.SelectContext(ctx, &terms,
		"SELECT id, source, target, definition FROM terms WHERE project_id = ? ORDER BY source, id", projectID)
	if err != nil {
		return nil, fmt.Errorf("select terms: %w", err)
	}
	return terms, nil
}

// ReplaceMatches stores the latest TM lookup results for a project.
func (d *Database) ReplaceMatches(ctx context.Context, projectID string, matches []tm.Match) error {
	return withTx(ctx, d.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM tm_matches WHERE project_id = ?", projectID); err != nil {
			return fmt.Errorf("clear matches: %w", err)
		}
		for _, m := range matches {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO tm_matches (project_id, segment_id, score, target) VALUES (?, ?, ?, ?)",
				projectID, m.SegmentID, m.Score, m.Target); err != nil {
				return fmt.Errorf("insert match: %w", err)
			}
		}
		return nil
	})
}

func (d *Database) ListMatches(ctx context.Context, projectID string) ([]tm.Match, error) {
	matches := []tm.Match{}
	err := d.db.SelectContext(ctx, &matches,
		"SELECT segment_id, score, target FROM tm_matches WHERE project_id = ? ORDER BY segment_id, score DESC", projectID)
	if err != nil {
		return nil, fmt.Errorf("select matches: %w", err)
	}
	return matches, nil
}

func expectRow(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return caterr.Field(caterr.ErrNotFound, op, "id", id)
	}
	return nil
}

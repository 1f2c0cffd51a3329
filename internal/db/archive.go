package db

import (
	"context"
	"fmt"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS tailor_session_archives (
	id UUID PRIMARY KEY,
	session_id TEXT NOT NULL UNIQUE,
	user_id TEXT NOT NULL DEFAULT '',
	project_id TEXT NOT NULL,
	task TEXT NOT NULL,
	token_count INTEGER NOT NULL DEFAULT 0,
	quality_score INTEGER NOT NULL DEFAULT 0,
	degraded BOOLEAN NOT NULL DEFAULT FALSE,
	snapshot JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	archived_at TIMESTAMPTZ NOT NULL
)`

const sqliteSchema = `CREATE TABLE IF NOT EXISTS tailor_session_archives (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL UNIQUE,
	user_id TEXT NOT NULL DEFAULT '',
	project_id TEXT NOT NULL,
	task TEXT NOT NULL,
	token_count INTEGER NOT NULL DEFAULT 0,
	quality_score INTEGER NOT NULL DEFAULT 0,
	degraded BOOLEAN NOT NULL DEFAULT 0,
	snapshot TEXT,
	created_at TIMESTAMP NOT NULL,
	archived_at TIMESTAMP NOT NULL
)`

const projectIndex = `CREATE INDEX IF NOT EXISTS idx_tailor_session_archives_project
	ON tailor_session_archives (project_id, created_at)`

// Migrate creates the archive table for the client's driver
func (c *Client) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if c.driver == DriverSQLite {
		schema = sqliteSchema
	}
	for _, stmt := range []string{schema, projectIndex} {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate session archive: %w", err)
		}
	}
	return nil
}

// SaveSessionArchive inserts or refreshes the archive row of a session
func (c *Client) SaveSessionArchive(ctx context.Context, a *SessionArchive) error {
	if a == nil {
		return nil
	}
	const q = `INSERT INTO tailor_session_archives
		(id, session_id, user_id, project_id, task, token_count, quality_score, degraded, snapshot, created_at, archived_at)
		VALUES (:id, :session_id, :user_id, :project_id, :task, :token_count, :quality_score, :degraded, :snapshot, :created_at, :archived_at)
		ON CONFLICT (session_id) DO UPDATE SET
			token_count = excluded.token_count,
			quality_score = excluded.quality_score,
			degraded = excluded.degraded,
			snapshot = excluded.snapshot,
			archived_at = excluded.archived_at`
	if _, err := c.db.NamedExecContext(ctx, q, a); err != nil {
		return fmt.Errorf("save session archive: %w", err)
	}
	return nil
}

// GetSessionArchive loads the archive of one session; sql.ErrNoRows when absent
func (c *Client) GetSessionArchive(ctx context.Context, sessionID string) (*SessionArchive, error) {
	var a SessionArchive
	err := c.db.GetContext(ctx, &a,
		`SELECT id, session_id, user_id, project_id, task, token_count, quality_score, degraded, snapshot, created_at, archived_at
		FROM tailor_session_archives WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListProjectArchives returns the latest archives of a project, newest first
func (c *Client) ListProjectArchives(ctx context.Context, projectID string, limit int) ([]SessionArchive, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []SessionArchive
	err := c.db.SelectContext(ctx, &out,
		`SELECT id, session_id, user_id, project_id, task, token_count, quality_score, degraded, snapshot, created_at, archived_at
		FROM tailor_session_archives WHERE project_id = ? ORDER BY created_at DESC LIMIT ?`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list session archives: %w", err)
	}
	return out, nil
}

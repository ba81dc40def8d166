package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const snapshotColumns = `id, file_path, content_before, content_after, diff,
	language, git_branch, git_commit, project_id, session_id, task_id,
	decision_id, created_at`

func scanSnapshot(row pgx.Row) (CodeSnapshot, error) {
	var c CodeSnapshot
	err := row.Scan(
		&c.ID, &c.FilePath, &c.ContentBefore, &c.ContentAfter, &c.Diff,
		&c.Language, &c.GitBranch, &c.GitCommit, &c.ProjectID, &c.SessionID,
		&c.TaskID, &c.DecisionID, &c.CreatedAt,
	)
	return c, err
}

// SaveSnapshotParams records one before/after capture of a file.
type SaveSnapshotParams struct {
	FilePath      string
	ContentBefore string
	ContentAfter  string
	Diff          string
	Language      string
	GitBranch     string
	GitCommit     string
	ProjectID     *uuid.UUID
	SessionID     *uuid.UUID
	TaskID        *uuid.UUID
	DecisionID    *uuid.UUID
}

func (s *Store) SaveSnapshot(ctx context.Context, in SaveSnapshotParams) (CodeSnapshot, error) {
	if err := validateRequired("file_path", in.FilePath); err != nil {
		return CodeSnapshot{}, err
	}

	c, err := scanSnapshot(s.pool.QueryRow(ctx, `
		INSERT INTO code_snapshots (file_path, content_before, content_after, diff, language, git_branch, git_commit, project_id, session_id, task_id, decision_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+snapshotColumns,
		in.FilePath, in.ContentBefore, in.ContentAfter, in.Diff, in.Language,
		in.GitBranch, in.GitCommit, in.ProjectID, in.SessionID, in.TaskID, in.DecisionID))
	if err != nil {
		return CodeSnapshot{}, classify("save snapshot", err)
	}
	return c, nil
}

// ListSnapshots returns snapshots newest first, optionally filtered by file
// path, project, or task.
func (s *Store) ListSnapshots(ctx context.Context, filePath string, projectID, taskID *uuid.UUID, limit int) ([]CodeSnapshot, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+snapshotColumns+` FROM code_snapshots
		WHERE ($1 = '' OR file_path = $1)
		  AND ($2::uuid IS NULL OR project_id = $2)
		  AND ($3::uuid IS NULL OR task_id = $3)
		ORDER BY created_at DESC
		LIMIT $4`, filePath, projectID, taskID, limit)
	if err != nil {
		return nil, classify("list snapshots", err)
	}
	defer rows.Close()

	var snapshots []CodeSnapshot
	for rows.Next() {
		c, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, c)
	}
	return snapshots, rows.Err()
}

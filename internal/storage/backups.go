package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const backupColumns = `id, backup_type, status, tables_included, commit_ref,
	message, started_at, finished_at`

func scanBackup(row pgx.Row) (BackupRecord, error) {
	var b BackupRecord
	err := row.Scan(
		&b.ID, &b.BackupType, &b.Status, &b.TablesIncluded, &b.CommitRef,
		&b.Message, &b.StartedAt, &b.FinishedAt,
	)
	return b, err
}

// RecordBackupStart opens a backup record in the started state. The runner
// moves it to completed or failed when the job finishes; a crash leaves it
// stuck at started, which is itself a useful signal.
func (s *Store) RecordBackupStart(ctx context.Context, backupType string, tables []string) (BackupRecord, error) {
	if err := validateRequired("backup_type", backupType); err != nil {
		return BackupRecord{}, err
	}
	if tables == nil {
		tables = []string{}
	}

	b, err := scanBackup(s.pool.QueryRow(ctx, `
		INSERT INTO github_backups (backup_type, tables_included)
		VALUES ($1, $2)
		RETURNING `+backupColumns, backupType, tables))
	if err != nil {
		return BackupRecord{}, classify("record backup start", err)
	}
	return b, nil
}

// FinishBackup closes a backup record with its terminal status, the commit
// it produced (empty when nothing changed or the run failed), and a human
// readable message.
func (s *Store) FinishBackup(ctx context.Context, id uuid.UUID, status, commitRef, message string) (BackupRecord, error) {
	if err := validateEnum("status", status, BackupStatuses); err != nil {
		return BackupRecord{}, err
	}
	if status == "started" {
		return BackupRecord{}, &ValidationError{Field: "status", Reason: "terminal status required"}
	}

	b, err := scanBackup(s.pool.QueryRow(ctx, `
		UPDATE github_backups
		SET status = $2, commit_ref = $3, message = $4, finished_at = now()
		WHERE id = $1
		RETURNING `+backupColumns, id, status, commitRef, message))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BackupRecord{}, &NotFoundError{Kind: "backup", ID: id.String()}
		}
		return BackupRecord{}, classify("finish backup", err)
	}
	return b, nil
}

// RecentBackups lists backup runs newest first.
func (s *Store) RecentBackups(ctx context.Context, limit int) ([]BackupRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+backupColumns+` FROM github_backups
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, classify("recent backups", err)
	}
	defer rows.Close()

	var backups []BackupRecord
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, err
		}
		backups = append(backups, b)
	}
	return backups, rows.Err()
}

package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const sessionColumns = `id, session_type, main_goal, project_id, status, summary,
	outcome, next_steps, total_messages, total_tokens, tasks_created,
	tasks_completed, started_at, ended_at`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(
		&s.ID, &s.SessionType, &s.MainGoal, &s.ProjectID, &s.Status, &s.Summary,
		&s.Outcome, &s.NextSteps, &s.TotalMessages, &s.TotalTokens,
		&s.TasksCreated, &s.TasksCompleted, &s.StartedAt, &s.EndedAt,
	)
	return s, err
}

// StartSessionParams opens a new active session.
type StartSessionParams struct {
	SessionType string
	MainGoal    string
	ProjectID   *uuid.UUID
}

func (s *Store) StartSession(ctx context.Context, in StartSessionParams) (Session, error) {
	if err := validateRequired("session_type", in.SessionType); err != nil {
		return Session{}, err
	}

	sess, err := scanSession(s.pool.QueryRow(ctx, `
		INSERT INTO sessions (session_type, main_goal, project_id)
		VALUES ($1, $2, $3)
		RETURNING `+sessionColumns,
		in.SessionType, in.MainGoal, in.ProjectID))
	if err != nil {
		return Session{}, classify("start session", err)
	}
	return sess, nil
}

// EndSessionParams closes a session with its summary. Status defaults to
// completed.
type EndSessionParams struct {
	Status    string
	Summary   string
	Outcome   string
	NextSteps []string
}

// EndSession marks a session finished and stamps ended_at. Ending an already
// ended session is rejected.
func (s *Store) EndSession(ctx context.Context, id uuid.UUID, in EndSessionParams) (Session, error) {
	if in.Status == "" {
		in.Status = "completed"
	}
	if err := validateEnum("status", in.Status, SessionStatuses); err != nil {
		return Session{}, err
	}
	if in.Status == "active" {
		return Session{}, &ValidationError{Field: "status", Reason: "cannot end a session as active"}
	}
	if in.NextSteps == nil {
		in.NextSteps = []string{}
	}

	var sess Session
	err := s.inTx(ctx, "end session", func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM sessions WHERE id = $1 FOR UPDATE`, id).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Kind: "session", ID: id.String()}
		}
		if err != nil {
			return err
		}
		if status != "active" {
			return &ValidationError{Field: "session", Reason: "session already ended"}
		}

		sess, err = scanSession(tx.QueryRow(ctx, `
			UPDATE sessions
			SET status = $2, summary = $3, outcome = $4, next_steps = $5, ended_at = now()
			WHERE id = $1
			RETURNING `+sessionColumns,
			id, in.Status, in.Summary, in.Outcome, in.NextSteps))
		return err
	})
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (Session, error) {
	sess, err := scanSession(s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, &NotFoundError{Kind: "session", ID: id.String()}
		}
		return Session{}, classify("get session", err)
	}
	return sess, nil
}

// ListRecentSessions returns sessions newest first, optionally scoped to a
// project.
func (s *Store) ListRecentSessions(ctx context.Context, projectID *uuid.UUID, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE ($1::uuid IS NULL OR project_id = $1)
		ORDER BY started_at DESC
		LIMIT $2`, projectID, limit)
	if err != nil {
		return nil, classify("list sessions", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

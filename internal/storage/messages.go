package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

const messageColumns = `id, session_id, role, content, project_id, task_id,
	token_count, created_at`

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	err := row.Scan(
		&m.ID, &m.SessionID, &m.Role, &m.Content, &m.ProjectID, &m.TaskID,
		&m.TokenCount, &m.CreatedAt,
	)
	return m, err
}

// LogMessageParams appends one conversation message. Embedding is optional;
// a message without one is excluded from similarity search.
type LogMessageParams struct {
	SessionID  uuid.UUID
	Role       string
	Content    string
	ProjectID  *uuid.UUID
	TaskID     *uuid.UUID
	TokenCount int
	Embedding  []float32
}

// LogMessage inserts the message and bumps the session's total_messages and
// total_tokens counters in the same transaction. Messages are append-only.
func (s *Store) LogMessage(ctx context.Context, in LogMessageParams) (Message, error) {
	if err := validateEnum("role", in.Role, MessageRoles); err != nil {
		return Message{}, err
	}
	if err := validateRequired("content", in.Content); err != nil {
		return Message{}, err
	}
	if in.TokenCount < 0 {
		return Message{}, &ValidationError{Field: "token_count", Reason: "must not be negative"}
	}

	var embedding any
	if in.Embedding != nil {
		embedding = pgvector.NewVector(in.Embedding)
	}

	var m Message
	err := s.inTx(ctx, "log message", func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx,
			`SELECT status FROM sessions WHERE id = $1 FOR UPDATE`, in.SessionID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Kind: "session", ID: in.SessionID.String()}
		}
		if err != nil {
			return err
		}
		if status != "active" {
			return &ValidationError{Field: "session_id", Reason: "session is not active"}
		}

		m, err = scanMessage(tx.QueryRow(ctx, `
			INSERT INTO conversation_messages (session_id, role, content, project_id, task_id, token_count, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+messageColumns,
			in.SessionID, in.Role, in.Content, in.ProjectID, in.TaskID, in.TokenCount, embedding))
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE sessions
			SET total_messages = total_messages + 1,
			    total_tokens = total_tokens + $2
			WHERE id = $1`, in.SessionID, in.TokenCount)
		return err
	})
	if err != nil {
		return Message{}, err
	}
	return m, nil
}

// SessionMessages returns a session's messages in insertion order.
func (s *Store) SessionMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM conversation_messages
		WHERE session_id = $1
		ORDER BY created_at ASC
		LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, classify("session messages", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// SearchMessagesByVector ranks messages by cosine similarity against the
// query embedding. Score is 1 - cosine distance; rows without an embedding
// never match. days restricts results to recent messages; zero means no
// recency filter.
func (s *Store) SearchMessagesByVector(ctx context.Context, embedding []float32, projectID *uuid.UUID, days, limit int) ([]ScoredMessage, error) {
	if len(embedding) == 0 {
		return nil, &ValidationError{Field: "embedding", Reason: "must not be empty"}
	}
	if days < 0 {
		return nil, &ValidationError{Field: "days", Reason: "must not be negative"}
	}
	if limit <= 0 {
		limit = 10
	}

	vec := pgvector.NewVector(embedding)
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`, 1 - (embedding <=> $1) AS score
		FROM conversation_messages
		WHERE embedding IS NOT NULL
		  AND ($2::uuid IS NULL OR project_id = $2)
		  AND ($3 = 0 OR created_at > now() - make_interval(days => $3))
		ORDER BY embedding <=> $1
		LIMIT $4`, vec, projectID, days, limit)
	if err != nil {
		return nil, classify("search messages", err)
	}
	defer rows.Close()

	var results []ScoredMessage
	for rows.Next() {
		var m ScoredMessage
		if err := rows.Scan(
			&m.ID, &m.SessionID, &m.Role, &m.Content, &m.ProjectID, &m.TaskID,
			&m.TokenCount, &m.CreatedAt, &m.Score,
		); err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const reminderColumns = `id, session_id, content, reminder_type, acknowledged, created_at`

func scanReminder(row pgx.Row) (Reminder, error) {
	var r Reminder
	err := row.Scan(&r.ID, &r.SessionID, &r.Content, &r.ReminderType, &r.Acknowledged, &r.CreatedAt)
	return r, err
}

// CreateReminder attaches a note to a session to be surfaced next time the
// session is picked up.
func (s *Store) CreateReminder(ctx context.Context, sessionID uuid.UUID, content, reminderType string) (Reminder, error) {
	if err := validateRequired("content", content); err != nil {
		return Reminder{}, err
	}

	r, err := scanReminder(s.pool.QueryRow(ctx, `
		INSERT INTO session_reminders (session_id, content, reminder_type)
		VALUES ($1, $2, $3)
		RETURNING `+reminderColumns, sessionID, content, reminderType))
	if err != nil {
		return Reminder{}, classify("create reminder", err)
	}
	return r, nil
}

// PendingReminders returns the unacknowledged reminders for a session, oldest
// first.
func (s *Store) PendingReminders(ctx context.Context, sessionID uuid.UUID) ([]Reminder, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+reminderColumns+` FROM session_reminders
		WHERE session_id = $1 AND NOT acknowledged
		ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, classify("pending reminders", err)
	}
	defer rows.Close()

	var reminders []Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// AcknowledgeReminder marks a reminder seen. Acknowledging twice is a no-op
// that still returns the row.
func (s *Store) AcknowledgeReminder(ctx context.Context, id uuid.UUID) (Reminder, error) {
	r, err := scanReminder(s.pool.QueryRow(ctx, `
		UPDATE session_reminders SET acknowledged = true WHERE id = $1
		RETURNING `+reminderColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reminder{}, &NotFoundError{Kind: "reminder", ID: id.String()}
		}
		return Reminder{}, classify("acknowledge reminder", err)
	}
	return r, nil
}

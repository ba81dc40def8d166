package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const errorLogColumns = `id, error_message, error_type, stack_trace,
	reproduction_steps, solution, occurrence_count, is_recurring, tags,
	project_id, session_id, task_id, created_at, last_occurred_at`

func scanErrorLog(row pgx.Row) (ErrorLog, error) {
	var e ErrorLog
	err := row.Scan(
		&e.ID, &e.ErrorMessage, &e.ErrorType, &e.StackTrace,
		&e.ReproductionSteps, &e.Solution, &e.OccurrenceCount, &e.IsRecurring,
		&e.Tags, &e.ProjectID, &e.SessionID, &e.TaskID,
		&e.CreatedAt, &e.LastOccurredAt,
	)
	return e, err
}

// LogErrorParams records a newly seen error.
type LogErrorParams struct {
	ErrorMessage      string
	ErrorType         string
	StackTrace        string
	ReproductionSteps string
	Solution          string
	Tags              []string
	ProjectID         *uuid.UUID
	SessionID         *uuid.UUID
	TaskID            *uuid.UUID
}

func (s *Store) LogError(ctx context.Context, in LogErrorParams) (ErrorLog, error) {
	if err := validateRequired("error_message", in.ErrorMessage); err != nil {
		return ErrorLog{}, err
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}

	e, err := scanErrorLog(s.pool.QueryRow(ctx, `
		INSERT INTO error_logs (error_message, error_type, stack_trace, reproduction_steps, solution, tags, project_id, session_id, task_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+errorLogColumns,
		in.ErrorMessage, in.ErrorType, in.StackTrace, in.ReproductionSteps,
		in.Solution, in.Tags, in.ProjectID, in.SessionID, in.TaskID))
	if err != nil {
		return ErrorLog{}, classify("log error", err)
	}
	return e, nil
}

// RecordOccurrence bumps the occurrence counter on a known error, refreshes
// last_occurred_at, and marks it recurring once seen more than once.
func (s *Store) RecordOccurrence(ctx context.Context, id uuid.UUID) (ErrorLog, error) {
	e, err := scanErrorLog(s.pool.QueryRow(ctx, `
		UPDATE error_logs
		SET occurrence_count = occurrence_count + 1,
		    is_recurring = true,
		    last_occurred_at = now()
		WHERE id = $1
		RETURNING `+errorLogColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrorLog{}, &NotFoundError{Kind: "error", ID: id.String()}
		}
		return ErrorLog{}, classify("record occurrence", err)
	}
	return e, nil
}

// ResolveError records the solution on an error entry.
func (s *Store) ResolveError(ctx context.Context, id uuid.UUID, solution string) (ErrorLog, error) {
	if err := validateRequired("solution", solution); err != nil {
		return ErrorLog{}, err
	}

	e, err := scanErrorLog(s.pool.QueryRow(ctx, `
		UPDATE error_logs SET solution = $2 WHERE id = $1
		RETURNING `+errorLogColumns, id, solution))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrorLog{}, &NotFoundError{Kind: "error", ID: id.String()}
		}
		return ErrorLog{}, classify("resolve error", err)
	}
	return e, nil
}

// SearchErrorsParams narrows an error search. Query matches the message with
// ILIKE; Tags requires every given tag to be present; Unresolved keeps only
// entries without a solution.
type SearchErrorsParams struct {
	Query      string
	ErrorType  string
	Tags       []string
	ProjectID  *uuid.UUID
	Unresolved bool
	Limit      int
}

func (s *Store) SearchErrors(ctx context.Context, in SearchErrorsParams) ([]ErrorLog, error) {
	if in.Limit <= 0 {
		in.Limit = 20
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+errorLogColumns+` FROM error_logs
		WHERE ($1 = '' OR error_message ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR error_type = $2)
		  AND (cardinality($3::text[]) = 0 OR tags @> $3)
		  AND ($4::uuid IS NULL OR project_id = $4)
		  AND (NOT $5 OR solution = '')
		ORDER BY last_occurred_at DESC
		LIMIT $6`,
		in.Query, in.ErrorType, in.Tags, in.ProjectID, in.Unresolved, in.Limit)
	if err != nil {
		return nil, classify("search errors", err)
	}
	defer rows.Close()

	var entries []ErrorLog
	for rows.Next() {
		e, err := scanErrorLog(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

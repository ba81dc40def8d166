package storage

import (
	"context"
	"errors"
	"fmt"

	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ValidationError reports bad, missing, or out-of-range input. Callers can
// fix and resubmit; the store never retries these.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing entity or a dangling reference.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// ConstraintError reports a store-level invariant violation, such as the
// relationship self-loop ban.
type ConstraintError struct {
	Constraint string
	Detail     string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint %s violated: %s", e.Constraint, e.Detail)
}

// TransientError reports an unreachable or overloaded store. Safe for the
// caller to retry with backoff.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient store error: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IntegrationError reports a failed external step (backup export, git push).
type IntegrationError struct {
	Step string
	Err  error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *IntegrationError) Unwrap() error { return e.Err }

// classify maps a driver error onto the store error taxonomy. Postgres
// error classes: 23xxx integrity, 22xxx data, 08xxx connection, 53xxx
// resources, 57014 cancelled.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &NotFoundError{Kind: "row", ID: ""}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &TransientError{Op: op, Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23503":
			// Dangling foreign key reference.
			return &NotFoundError{Kind: referencedKind(pgErr.ConstraintName), ID: ""}
		case pgErr.Code == "23514", pgErr.Code == "23505", pgErr.Code == "23P01":
			return &ConstraintError{Constraint: pgErr.ConstraintName, Detail: pgErr.Message}
		case pgErr.Code[:2] == "22":
			return &ValidationError{Field: pgErr.ColumnName, Reason: pgErr.Message}
		case pgErr.Code[:2] == "08", pgErr.Code[:2] == "53", pgErr.Code == "57014", pgErr.Code == "40001", pgErr.Code == "40P01":
			return &TransientError{Op: op, Err: err}
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if pgconn.Timeout(err) {
		return &TransientError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// referencedKind guesses the missing entity from an FK constraint name like
// "tasks_project_id_fkey".
func referencedKind(constraint string) string {
	for _, kind := range []string{"project", "session", "task", "decision", "artifact"} {
		if strings.Contains(constraint, kind) {
			return kind
		}
	}
	return "referenced entity"
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func errorKind(err error) string {
	switch {
	case err == nil:
		return "nil"
	case errors.As(err, new(*ValidationError)):
		return "validation"
	case errors.As(err, new(*NotFoundError)):
		return "not_found"
	case errors.As(err, new(*ConstraintError)):
		return "constraint"
	case errors.As(err, new(*TransientError)):
		return "transient"
	default:
		return "other"
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil stays nil", nil, "nil"},
		{"no rows becomes not found", pgx.ErrNoRows, "not_found"},
		{"context deadline becomes transient", context.DeadlineExceeded, "transient"},
		{"context cancel becomes transient", context.Canceled, "transient"},
		{
			"foreign key violation becomes not found",
			&pgconn.PgError{Code: "23503", ConstraintName: "tasks_project_id_fkey"},
			"not_found",
		},
		{
			"check violation becomes constraint error",
			&pgconn.PgError{Code: "23514", ConstraintName: "relationships_no_self_loop"},
			"constraint",
		},
		{
			"unique violation becomes constraint error",
			&pgconn.PgError{Code: "23505", ConstraintName: "schema_version_pkey"},
			"constraint",
		},
		{
			"data error becomes validation error",
			&pgconn.PgError{Code: "22001", ColumnName: "status"},
			"validation",
		},
		{"connection failure becomes transient", &pgconn.PgError{Code: "08006"}, "transient"},
		{"resource exhaustion becomes transient", &pgconn.PgError{Code: "53300"}, "transient"},
		{"statement timeout becomes transient", &pgconn.PgError{Code: "57014"}, "transient"},
		{"serialization failure becomes transient", &pgconn.PgError{Code: "40001"}, "transient"},
		{"deadlock becomes transient", &pgconn.PgError{Code: "40P01"}, "transient"},
		{"unknown errors pass through wrapped", fmt.Errorf("boom"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("test op", tt.err)
			if kind := errorKind(got); kind != tt.want {
				t.Fatalf("classify() = %T (%v), want kind %s", got, got, tt.want)
			}
			if tt.want == "other" && !errors.Is(got, tt.err) {
				t.Errorf("unknown error should stay reachable via errors.Is")
			}
		})
	}
}

func TestReferencedKind(t *testing.T) {
	tests := []struct {
		constraint string
		want       string
	}{
		{"tasks_project_id_fkey", "project"},
		{"conversation_messages_session_id_fkey", "session"},
		{"code_snapshots_decision_id_fkey", "decision"},
		{"tasks_main_task_id_fkey", "task"},
		{"something_unrelated", "referenced entity"},
	}
	for _, tt := range tests {
		if got := referencedKind(tt.constraint); got != tt.want {
			t.Errorf("referencedKind(%q) = %q, want %q", tt.constraint, got, tt.want)
		}
	}
}

func TestClassifyPreservesTransientUnwrap(t *testing.T) {
	inner := &pgconn.PgError{Code: "08006"}
	got := classify("open", inner)
	var te *TransientError
	if !errors.As(got, &te) {
		t.Fatalf("classify() = %T, want TransientError", got)
	}
	if !errors.Is(got, inner) {
		t.Error("TransientError should unwrap to the driver error")
	}
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const taskColumns = `id, title, description, status, priority, is_main_goal,
	main_task_id, parent_task_id, project_id, session_id, blocked_by, blocking,
	acceptance_criteria, progress_percentage, estimated_hours, actual_hours,
	created_at, updated_at, completed_at`

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.IsMainGoal,
		&t.MainTaskID, &t.ParentTaskID, &t.ProjectID, &t.SessionID,
		&t.BlockedBy, &t.Blocking, &t.AcceptanceCriteria,
		&t.ProgressPercentage, &t.EstimatedHours, &t.ActualHours,
		&t.CreatedAt, &t.UpdatedAt, &t.CompletedAt,
	)
	return t, err
}

// CreateTaskParams carries the writable fields shared by main goals and
// subtasks.
type CreateTaskParams struct {
	Title              string
	Description        string
	Priority           string
	ProjectID          *uuid.UUID
	SessionID          *uuid.UUID
	AcceptanceCriteria []string
	EstimatedHours     *float64
}

func (in *CreateTaskParams) validate() error {
	if err := validateRequired("title", in.Title); err != nil {
		return err
	}
	if in.Priority == "" {
		in.Priority = "medium"
	}
	if err := validateEnum("priority", in.Priority, Priorities); err != nil {
		return err
	}
	if in.AcceptanceCriteria == nil {
		in.AcceptanceCriteria = []string{}
	}
	return nil
}

// insertTask writes one task row and bumps the owning session's tasks_created
// counter in the same transaction.
func insertTask(ctx context.Context, tx pgx.Tx, in CreateTaskParams, isMainGoal bool, mainTaskID, parentTaskID *uuid.UUID) (Task, error) {
	t, err := scanTask(tx.QueryRow(ctx, `
		INSERT INTO tasks (title, description, priority, is_main_goal, main_task_id,
			parent_task_id, project_id, session_id, acceptance_criteria, estimated_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+taskColumns,
		in.Title, in.Description, in.Priority, isMainGoal, mainTaskID,
		parentTaskID, in.ProjectID, in.SessionID, in.AcceptanceCriteria, in.EstimatedHours))
	if err != nil {
		return Task{}, err
	}
	if in.SessionID != nil {
		if _, err := tx.Exec(ctx,
			`UPDATE sessions SET tasks_created = tasks_created + 1 WHERE id = $1`,
			*in.SessionID); err != nil {
			return Task{}, err
		}
	}
	return t, nil
}

// CreateMainGoal creates a top-level goal. When a project is given it must
// exist.
func (s *Store) CreateMainGoal(ctx context.Context, in CreateTaskParams) (Task, error) {
	if err := in.validate(); err != nil {
		return Task{}, err
	}

	var t Task
	err := s.inTx(ctx, "create main goal", func(tx pgx.Tx) error {
		if in.ProjectID != nil {
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, *in.ProjectID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return &NotFoundError{Kind: "project", ID: in.ProjectID.String()}
			}
		}
		var err error
		t, err = insertTask(ctx, tx, in, true, nil, nil)
		return err
	})
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

// CreateSubtask attaches a task under a main goal. The parent must exist and
// must itself be a main goal; subtasks do not nest further than one level of
// main_task_id, though parent_task_id may point at a sibling subtask.
func (s *Store) CreateSubtask(ctx context.Context, mainTaskID uuid.UUID, parentTaskID *uuid.UUID, in CreateTaskParams) (Task, error) {
	if err := in.validate(); err != nil {
		return Task{}, err
	}

	var t Task
	err := s.inTx(ctx, "create subtask", func(tx pgx.Tx) error {
		var isMainGoal bool
		err := tx.QueryRow(ctx,
			`SELECT is_main_goal FROM tasks WHERE id = $1`, mainTaskID).Scan(&isMainGoal)
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Kind: "task", ID: mainTaskID.String()}
		}
		if err != nil {
			return err
		}
		if !isMainGoal {
			return &ValidationError{Field: "main_task_id", Reason: "referenced task is not a main goal"}
		}

		parent := &mainTaskID
		if parentTaskID != nil {
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, *parentTaskID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return &NotFoundError{Kind: "task", ID: parentTaskID.String()}
			}
			parent = parentTaskID
		}

		t, err = insertTask(ctx, tx, in, false, &mainTaskID, parent)
		return err
	})
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

// UpdateTaskParams carries partial task updates; nil fields are left
// unchanged.
type UpdateTaskParams struct {
	Title              *string
	Description        *string
	Status             *string
	Priority           *string
	ProgressPercentage *int
	AcceptanceCriteria []string
	ActualHours        *float64
}

// UpdateTask applies partial updates. Moving a task to completed stamps
// completed_at, defaults progress to 100 when the update carries no explicit
// value, and bumps the owning session's tasks_completed counter; leaving
// completed clears the stamp.
func (s *Store) UpdateTask(ctx context.Context, id uuid.UUID, in UpdateTaskParams) (Task, error) {
	if in.Status != nil {
		if err := validateEnum("status", *in.Status, TaskStatuses); err != nil {
			return Task{}, err
		}
	}
	if in.Priority != nil {
		if err := validateEnum("priority", *in.Priority, Priorities); err != nil {
			return Task{}, err
		}
	}
	if in.ProgressPercentage != nil {
		if err := validateProgress(*in.ProgressPercentage); err != nil {
			return Task{}, err
		}
	}

	var t Task
	err := s.inTx(ctx, "update task", func(tx pgx.Tx) error {
		var prevStatus string
		var sessionID *uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT status, session_id FROM tasks WHERE id = $1 FOR UPDATE`, id).
			Scan(&prevStatus, &sessionID)
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Kind: "task", ID: id.String()}
		}
		if err != nil {
			return err
		}

		var sets []string
		var args []any
		add := func(col string, v any) {
			args = append(args, v)
			sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
		}

		if in.Title != nil {
			add("title", *in.Title)
		}
		if in.Description != nil {
			add("description", *in.Description)
		}
		if in.Priority != nil {
			add("priority", *in.Priority)
		}
		if in.AcceptanceCriteria != nil {
			add("acceptance_criteria", in.AcceptanceCriteria)
		}
		if in.ActualHours != nil {
			add("actual_hours", *in.ActualHours)
		}
		if in.ProgressPercentage != nil {
			add("progress_percentage", *in.ProgressPercentage)
		}
		if in.Status != nil {
			add("status", *in.Status)
			switch {
			case *in.Status == "completed" && prevStatus != "completed":
				add("completed_at", time.Now())
				// An explicit progress value was already added above; the
				// column may only be assigned once per statement.
				if in.ProgressPercentage == nil {
					add("progress_percentage", 100)
				}
			case *in.Status != "completed" && prevStatus == "completed":
				add("completed_at", nil)
			}
		}
		if len(sets) == 0 {
			return &ValidationError{Field: "update", Reason: "no fields to update"}
		}

		args = append(args, id)
		query := fmt.Sprintf(`UPDATE tasks SET %s WHERE id = $%d RETURNING %s`,
			strings.Join(sets, ", "), len(args), taskColumns)
		t, err = scanTask(tx.QueryRow(ctx, query, args...))
		if err != nil {
			return err
		}

		if in.Status != nil && *in.Status == "completed" && prevStatus != "completed" && sessionID != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE sessions SET tasks_completed = tasks_completed + 1 WHERE id = $1`,
				*sessionID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (Task, error) {
	t, err := scanTask(s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, &NotFoundError{Kind: "task", ID: id.String()}
		}
		return Task{}, classify("get task", err)
	}
	return t, nil
}

// ActiveMainGoals lists not-yet-finished main goals, highest priority first,
// oldest first within a priority.
func (s *Store) ActiveMainGoals(ctx context.Context, projectID *uuid.UUID, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE is_main_goal
		  AND status NOT IN ('completed', 'cancelled')
		  AND ($1::uuid IS NULL OR project_id = $1)
		ORDER BY
		  CASE priority
		    WHEN 'critical' THEN 4
		    WHEN 'high' THEN 3
		    WHEN 'medium' THEN 2
		    ELSE 1
		  END DESC,
		  created_at ASC
		LIMIT $2`, projectID, limit)
	if err != nil {
		return nil, classify("active main goals", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ActiveSubtasks lists the unfinished subtasks under a main goal, in the same
// priority order as main goals.
func (s *Store) ActiveSubtasks(ctx context.Context, mainTaskID uuid.UUID) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE main_task_id = $1
		  AND status NOT IN ('completed', 'cancelled')
		ORDER BY
		  CASE priority
		    WHEN 'critical' THEN 4
		    WHEN 'high' THEN 3
		    WHEN 'medium' THEN 2
		    ELSE 1
		  END DESC,
		  created_at ASC`, mainTaskID)
	if err != nil {
		return nil, classify("active subtasks", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// SetTaskBlockers replaces a task's blocked_by set and keeps the blocking
// mirrors on the referenced tasks consistent, all in one transaction.
// blocked_by is the source of truth; blocking is derived.
func (s *Store) SetTaskBlockers(ctx context.Context, id uuid.UUID, blockedBy []uuid.UUID) (Task, error) {
	for _, b := range blockedBy {
		if b == id {
			return Task{}, &ValidationError{Field: "blocked_by", Reason: "task cannot block itself"}
		}
	}
	if blockedBy == nil {
		blockedBy = []uuid.UUID{}
	}

	var t Task
	err := s.inTx(ctx, "set task blockers", func(tx pgx.Tx) error {
		var prev []uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT blocked_by FROM tasks WHERE id = $1 FOR UPDATE`, id).Scan(&prev)
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Kind: "task", ID: id.String()}
		}
		if err != nil {
			return err
		}

		for _, b := range blockedBy {
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, b).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return &NotFoundError{Kind: "task", ID: b.String()}
			}
		}

		// Remove the mirror from tasks no longer blocking, then add it to
		// the new set.
		for _, b := range prev {
			if _, err := tx.Exec(ctx,
				`UPDATE tasks SET blocking = array_remove(blocking, $2) WHERE id = $1`,
				b, id); err != nil {
				return err
			}
		}
		for _, b := range blockedBy {
			if _, err := tx.Exec(ctx, `
				UPDATE tasks SET blocking = array_append(array_remove(blocking, $2), $2)
				WHERE id = $1`, b, id); err != nil {
				return err
			}
		}

		// Finished tasks keep their status. Otherwise a non-empty blocker set
		// forces blocked, and clearing the last blocker releases a blocked
		// task back to pending.
		t, err = scanTask(tx.QueryRow(ctx, `
			UPDATE tasks
			SET blocked_by = $2,
			    status = CASE
			      WHEN status IN ('completed', 'cancelled') THEN status
			      WHEN $3 THEN 'blocked'
			      WHEN status = 'blocked' THEN 'pending'
			      ELSE status
			    END
			WHERE id = $1
			RETURNING `+taskColumns, id, blockedBy, len(blockedBy) > 0))
		return err
	})
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

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

const projectColumns = `id, name, description, status, priority, category, tags,
	parent_project_id, progress_percentage, estimated_hours, actual_hours,
	created_at, updated_at, completed_at`

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Status, &p.Priority, &p.Category,
		&p.Tags, &p.ParentProjectID, &p.ProgressPercentage,
		&p.EstimatedHours, &p.ActualHours,
		&p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	return p, err
}

// CreateProjectParams carries the writable fields for a new project.
type CreateProjectParams struct {
	Name            string
	Description     string
	Status          string
	Priority        string
	Category        string
	Tags            []string
	ParentProjectID *uuid.UUID
	EstimatedHours  *float64
}

func (s *Store) CreateProject(ctx context.Context, in CreateProjectParams) (Project, error) {
	if err := validateRequired("name", in.Name); err != nil {
		return Project{}, err
	}
	if err := validateRequired("category", in.Category); err != nil {
		return Project{}, err
	}
	if err := validateEnum("category", in.Category, Categories); err != nil {
		return Project{}, err
	}
	if in.Status == "" {
		in.Status = "active"
	}
	if err := validateEnum("status", in.Status, ProjectStatuses); err != nil {
		return Project{}, err
	}
	if in.Priority == "" {
		in.Priority = "medium"
	}
	if err := validateEnum("priority", in.Priority, Priorities); err != nil {
		return Project{}, err
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO projects (name, description, status, priority, category, tags, parent_project_id, estimated_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+projectColumns,
		in.Name, in.Description, in.Status, in.Priority, in.Category, in.Tags,
		in.ParentProjectID, in.EstimatedHours,
	)
	p, err := scanProject(row)
	if err != nil {
		return Project{}, classify("create project", err)
	}
	return p, nil
}

// UpdateProjectParams carries partial updates; nil fields are left unchanged.
type UpdateProjectParams struct {
	Description        *string
	Status             *string
	Priority           *string
	Tags               []string
	ProgressPercentage *int
	EstimatedHours     *float64
	ActualHours        *float64
	CompletedAt        *time.Time
}

func (s *Store) UpdateProject(ctx context.Context, id uuid.UUID, in UpdateProjectParams) (Project, error) {
	var sets []string
	var args []any

	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if in.Description != nil {
		add("description", *in.Description)
	}
	if in.Status != nil {
		if err := validateEnum("status", *in.Status, ProjectStatuses); err != nil {
			return Project{}, err
		}
		add("status", *in.Status)
	}
	if in.Priority != nil {
		if err := validateEnum("priority", *in.Priority, Priorities); err != nil {
			return Project{}, err
		}
		add("priority", *in.Priority)
	}
	if in.Tags != nil {
		add("tags", in.Tags)
	}
	if in.ProgressPercentage != nil {
		if err := validateProgress(*in.ProgressPercentage); err != nil {
			return Project{}, err
		}
		add("progress_percentage", *in.ProgressPercentage)
	}
	if in.EstimatedHours != nil {
		add("estimated_hours", *in.EstimatedHours)
	}
	if in.ActualHours != nil {
		add("actual_hours", *in.ActualHours)
	}
	if in.CompletedAt != nil {
		add("completed_at", *in.CompletedAt)
	}
	if len(sets) == 0 {
		return Project{}, &ValidationError{Field: "update", Reason: "no fields to update"}
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE projects SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), projectColumns)

	p, err := scanProject(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, &NotFoundError{Kind: "project", ID: id.String()}
		}
		return Project{}, classify("update project", err)
	}
	return p, nil
}

func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (Project, error) {
	p, err := scanProject(s.pool.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, &NotFoundError{Kind: "project", ID: id.String()}
		}
		return Project{}, classify("get project", err)
	}
	return p, nil
}

// ListProjects returns projects filtered by status; an empty status returns
// everything, newest first.
func (s *Store) ListProjects(ctx context.Context, status string, limit int) ([]Project, error) {
	if status != "" {
		if err := validateEnum("status", status, ProjectStatuses); err != nil {
			return nil, err
		}
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+projectColumns+` FROM projects
		WHERE ($1 = '' OR status = $1)
		ORDER BY updated_at DESC
		LIMIT $2`, status, limit)
	if err != nil {
		return nil, classify("list projects", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// SearchProjects runs a full-text query against the generated search vector
// over name, description, and tags.
func (s *Store) SearchProjects(ctx context.Context, query string, limit int) ([]Project, error) {
	if err := validateRequired("query", query); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+projectColumns+` FROM projects
		WHERE search @@ websearch_to_tsquery('english', $1)
		ORDER BY ts_rank(search, websearch_to_tsquery('english', $1)) DESC
		LIMIT $2`, query, limit)
	if err != nil {
		return nil, classify("search projects", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetProjectStatus returns the rollup used by the status tools: task counts
// by status, unresolved errors, decisions awaiting assessment, artifacts.
func (s *Store) GetProjectStatus(ctx context.Context, id uuid.UUID) (ProjectStatus, error) {
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return ProjectStatus{}, err
	}

	status := ProjectStatus{Project: p, TasksByStatus: map[string]int{}}

	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM tasks WHERE project_id = $1 GROUP BY status`, id)
	if err != nil {
		return ProjectStatus{}, classify("project status", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return ProjectStatus{}, err
		}
		status.TasksByStatus[st] = n
	}
	if err := rows.Err(); err != nil {
		return ProjectStatus{}, err
	}

	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM error_logs WHERE project_id = $1 AND solution = ''`, id).
		Scan(&status.OpenErrors); err != nil {
		return ProjectStatus{}, classify("project status", err)
	}
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM decisions WHERE project_id = $1 AND `+needsAssessmentPredicate, id).
		Scan(&status.PendingDecisions); err != nil {
		return ProjectStatus{}, classify("project status", err)
	}
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM artifacts WHERE project_id = $1`, id).
		Scan(&status.ArtifactCount); err != nil {
		return ProjectStatus{}, classify("project status", err)
	}
	return status, nil
}

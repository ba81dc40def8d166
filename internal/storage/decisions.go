package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// A decision needs assessment when no outcome was ever recorded, when the
// outcome is explicitly unknown, or when it was recorded without an
// assessment timestamp and the decision is older than a week.
const needsAssessmentPredicate = `(
	outcome IS NULL
	OR outcome = 'unknown'
	OR (outcome_assessed_at IS NULL AND decided_at < now() - interval '7 days')
)`

const decisionColumns = `id, description, rationale, decision_type, alternatives,
	outcome, outcome_assessed_at, project_id, session_id, task_id, decided_at,
	` + needsAssessmentPredicate + ` AS needs_assessment`

func scanDecision(row pgx.Row) (Decision, error) {
	var d Decision
	err := row.Scan(
		&d.ID, &d.Description, &d.Rationale, &d.DecisionType, &d.Alternatives,
		&d.Outcome, &d.OutcomeAssessedAt, &d.ProjectID, &d.SessionID, &d.TaskID,
		&d.DecidedAt, &d.NeedsAssessment,
	)
	return d, err
}

// LogDecisionParams records a decision at the moment it is made. Outcome is
// always unknown at logging time and filled in later by AssessDecision.
type LogDecisionParams struct {
	Description  string
	Rationale    string
	DecisionType string
	Alternatives []string
	ProjectID    *uuid.UUID
	SessionID    *uuid.UUID
	TaskID       *uuid.UUID
}

func (s *Store) LogDecision(ctx context.Context, in LogDecisionParams) (Decision, error) {
	if err := validateRequired("description", in.Description); err != nil {
		return Decision{}, err
	}
	if err := validateEnum("decision_type", in.DecisionType, DecisionTypes); err != nil {
		return Decision{}, err
	}
	if in.Alternatives == nil {
		in.Alternatives = []string{}
	}

	d, err := scanDecision(s.pool.QueryRow(ctx, `
		INSERT INTO decisions (description, rationale, decision_type, alternatives, project_id, session_id, task_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+decisionColumns,
		in.Description, in.Rationale, in.DecisionType, in.Alternatives,
		in.ProjectID, in.SessionID, in.TaskID))
	if err != nil {
		return Decision{}, classify("log decision", err)
	}
	return d, nil
}

// AssessDecision records how a decision worked out and stamps the assessment
// time.
func (s *Store) AssessDecision(ctx context.Context, id uuid.UUID, outcome string) (Decision, error) {
	if err := validateRequired("outcome", outcome); err != nil {
		return Decision{}, err
	}

	d, err := scanDecision(s.pool.QueryRow(ctx, `
		UPDATE decisions
		SET outcome = $2, outcome_assessed_at = now()
		WHERE id = $1
		RETURNING `+decisionColumns, id, outcome))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Decision{}, &NotFoundError{Kind: "decision", ID: id.String()}
		}
		return Decision{}, classify("assess decision", err)
	}
	return d, nil
}

func (s *Store) GetDecision(ctx context.Context, id uuid.UUID) (Decision, error) {
	d, err := scanDecision(s.pool.QueryRow(ctx,
		`SELECT `+decisionColumns+` FROM decisions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Decision{}, &NotFoundError{Kind: "decision", ID: id.String()}
		}
		return Decision{}, classify("get decision", err)
	}
	return d, nil
}

// RecentDecisions lists decisions newest first, optionally scoped to a
// project or filtered to those still needing assessment.
func (s *Store) RecentDecisions(ctx context.Context, projectID *uuid.UUID, needingAssessment bool, limit int) ([]Decision, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+decisionColumns+` FROM decisions
		WHERE ($1::uuid IS NULL OR project_id = $1)
		  AND (NOT $2 OR `+needsAssessmentPredicate+`)
		ORDER BY decided_at DESC
		LIMIT $3`, projectID, needingAssessment, limit)
	if err != nil {
		return nil, classify("recent decisions", err)
	}
	defer rows.Close()

	var decisions []Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

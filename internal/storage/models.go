package storage

import (
	"time"

	"github.com/google/uuid"
)

// Project is a long-lived unit of work. The search vector over
// name+description+tags is a generated column and never written by clients.
type Project struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	Description        string     `json:"description,omitempty"`
	Status             string     `json:"status"`
	Priority           string     `json:"priority"`
	Category           string     `json:"category"`
	Tags               []string   `json:"tags"`
	ParentProjectID    *uuid.UUID `json:"parent_project_id,omitempty"`
	ProgressPercentage int        `json:"progress_percentage"`
	EstimatedHours     *float64   `json:"estimated_hours,omitempty"`
	ActualHours        *float64   `json:"actual_hours,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// Session is one bounded unit of assistant/user interaction. Counters are
// maintained incrementally as child entities are written.
type Session struct {
	ID             uuid.UUID  `json:"id"`
	SessionType    string     `json:"session_type"`
	MainGoal       string     `json:"main_goal,omitempty"`
	ProjectID      *uuid.UUID `json:"project_id,omitempty"`
	Status         string     `json:"status"`
	Summary        string     `json:"summary,omitempty"`
	Outcome        string     `json:"outcome,omitempty"`
	NextSteps      []string   `json:"next_steps"`
	TotalMessages  int        `json:"total_messages"`
	TotalTokens    int        `json:"total_tokens"`
	TasksCreated   int        `json:"tasks_created"`
	TasksCompleted int        `json:"tasks_completed"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// Task is either a main goal (IsMainGoal) or a subtask pointing at its main
// goal via MainTaskID. BlockedBy is the source of truth for dependencies;
// Blocking is its maintained mirror.
type Task struct {
	ID                 uuid.UUID   `json:"id"`
	Title              string      `json:"title"`
	Description        string      `json:"description,omitempty"`
	Status             string      `json:"status"`
	Priority           string      `json:"priority"`
	IsMainGoal         bool        `json:"is_main_goal"`
	MainTaskID         *uuid.UUID  `json:"main_task_id,omitempty"`
	ParentTaskID       *uuid.UUID  `json:"parent_task_id,omitempty"`
	ProjectID          *uuid.UUID  `json:"project_id,omitempty"`
	SessionID          *uuid.UUID  `json:"session_id,omitempty"`
	BlockedBy          []uuid.UUID `json:"blocked_by"`
	Blocking           []uuid.UUID `json:"blocking"`
	AcceptanceCriteria []string    `json:"acceptance_criteria"`
	ProgressPercentage int         `json:"progress_percentage"`
	EstimatedHours     *float64    `json:"estimated_hours,omitempty"`
	ActualHours        *float64    `json:"actual_hours,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
	CompletedAt        *time.Time  `json:"completed_at,omitempty"`
}

// Message is an append-only conversation log entry. Never mutated after
// insert.
type Message struct {
	ID         uuid.UUID  `json:"id"`
	SessionID  uuid.UUID  `json:"session_id"`
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ProjectID  *uuid.UUID `json:"project_id,omitempty"`
	TaskID     *uuid.UUID `json:"task_id,omitempty"`
	TokenCount int        `json:"token_count,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ScoredMessage is a Message with a similarity score (1 - cosine distance).
type ScoredMessage struct {
	Message
	Score float64 `json:"score"`
}

type Decision struct {
	ID                uuid.UUID  `json:"id"`
	Description       string     `json:"description"`
	Rationale         string     `json:"rationale,omitempty"`
	DecisionType      string     `json:"decision_type"`
	Alternatives      []string   `json:"alternatives"`
	Outcome           *string    `json:"outcome,omitempty"`
	OutcomeAssessedAt *time.Time `json:"outcome_assessed_at,omitempty"`
	ProjectID         *uuid.UUID `json:"project_id,omitempty"`
	SessionID         *uuid.UUID `json:"session_id,omitempty"`
	TaskID            *uuid.UUID `json:"task_id,omitempty"`
	DecidedAt         time.Time  `json:"decided_at"`
	NeedsAssessment   bool       `json:"needs_assessment"`
}

// ErrorLog records one error and its (eventual) solution. occurrence_count
// and is_recurring are caller-maintained; every insert is independent.
type ErrorLog struct {
	ID                uuid.UUID  `json:"id"`
	ErrorMessage      string     `json:"error_message"`
	ErrorType         string     `json:"error_type,omitempty"`
	StackTrace        string     `json:"stack_trace,omitempty"`
	ReproductionSteps string     `json:"reproduction_steps,omitempty"`
	Solution          string     `json:"solution,omitempty"`
	OccurrenceCount   int        `json:"occurrence_count"`
	IsRecurring       bool       `json:"is_recurring"`
	Tags              []string   `json:"tags"`
	ProjectID         *uuid.UUID `json:"project_id,omitempty"`
	SessionID         *uuid.UUID `json:"session_id,omitempty"`
	TaskID            *uuid.UUID `json:"task_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	LastOccurredAt    time.Time  `json:"last_occurred_at"`
}

type CodeSnapshot struct {
	ID            uuid.UUID  `json:"id"`
	FilePath      string     `json:"file_path"`
	ContentBefore string     `json:"content_before,omitempty"`
	ContentAfter  string     `json:"content_after,omitempty"`
	Diff          string     `json:"diff,omitempty"`
	Language      string     `json:"language,omitempty"`
	GitBranch     string     `json:"git_branch,omitempty"`
	GitCommit     string     `json:"git_commit,omitempty"`
	ProjectID     *uuid.UUID `json:"project_id,omitempty"`
	SessionID     *uuid.UUID `json:"session_id,omitempty"`
	TaskID        *uuid.UUID `json:"task_id,omitempty"`
	DecisionID    *uuid.UUID `json:"decision_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Knowledge is a titled fact, global or project-scoped, with an optional
// validity window and access tracking.
type Knowledge struct {
	ID             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	KnowledgeType  string     `json:"knowledge_type,omitempty"`
	IsGlobal       bool       `json:"is_global"`
	Importance     string     `json:"importance"`
	Tags           []string   `json:"tags"`
	ProjectID      *uuid.UUID `json:"project_id,omitempty"`
	ValidUntil     *time.Time `json:"valid_until,omitempty"`
	AccessCount    int        `json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ScoredKnowledge is Knowledge with a similarity score (1 - cosine distance).
type ScoredKnowledge struct {
	Knowledge
	Score float64 `json:"score"`
}

// EntityRef identifies one endpoint of a Relationship: a tagged union over
// the known entity kinds paired with an identifier. Resolution to a row is a
// lookup, never an enforced foreign key.
type EntityRef struct {
	Type string    `json:"type"`
	ID   uuid.UUID `json:"id"`
}

type Relationship struct {
	ID               uuid.UUID `json:"id"`
	Source           EntityRef `json:"source"`
	Target           EntityRef `json:"target"`
	RelationshipType string    `json:"relationship_type"`
	Strength         float64   `json:"strength"`
	CreatedAt        time.Time `json:"created_at"`
}

type Artifact struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	ArtifactType     string     `json:"artifact_type,omitempty"`
	Content          string     `json:"content,omitempty"`
	FilePath         string     `json:"file_path,omitempty"`
	ParentArtifactID *uuid.UUID `json:"parent_artifact_id,omitempty"`
	ProjectID        *uuid.UUID `json:"project_id,omitempty"`
	SessionID        *uuid.UUID `json:"session_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// BackupRecord summarizes one backup run.
type BackupRecord struct {
	ID             uuid.UUID  `json:"id"`
	BackupType     string     `json:"backup_type"`
	Status         string     `json:"status"`
	TablesIncluded []string   `json:"tables_included"`
	CommitRef      string     `json:"commit_ref,omitempty"`
	Message        string     `json:"message,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

type Reminder struct {
	ID           uuid.UUID `json:"id"`
	SessionID    uuid.UUID `json:"session_id"`
	Content      string    `json:"content"`
	ReminderType string    `json:"reminder_type,omitempty"`
	Acknowledged bool      `json:"acknowledged"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProjectStatus is the rollup returned by the status query.
type ProjectStatus struct {
	Project          Project        `json:"project"`
	TasksByStatus    map[string]int `json:"tasks_by_status"`
	OpenErrors       int            `json:"open_errors"`
	PendingDecisions int            `json:"pending_decisions"`
	ArtifactCount    int            `json:"artifact_count"`
}

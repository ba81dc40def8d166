package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/memctx/memctx/internal/storage"
)

// Store is the façade surface the tool layer dispatches to. *storage.Store
// satisfies it; tests substitute a fake.
type Store interface {
	CreateProject(ctx context.Context, in storage.CreateProjectParams) (storage.Project, error)
	UpdateProject(ctx context.Context, id uuid.UUID, in storage.UpdateProjectParams) (storage.Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (storage.Project, error)
	ListProjects(ctx context.Context, status string, limit int) ([]storage.Project, error)
	SearchProjects(ctx context.Context, query string, limit int) ([]storage.Project, error)
	GetProjectStatus(ctx context.Context, id uuid.UUID) (storage.ProjectStatus, error)

	StartSession(ctx context.Context, in storage.StartSessionParams) (storage.Session, error)
	EndSession(ctx context.Context, id uuid.UUID, in storage.EndSessionParams) (storage.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (storage.Session, error)
	ListRecentSessions(ctx context.Context, projectID *uuid.UUID, limit int) ([]storage.Session, error)

	CreateMainGoal(ctx context.Context, in storage.CreateTaskParams) (storage.Task, error)
	CreateSubtask(ctx context.Context, mainTaskID uuid.UUID, parentTaskID *uuid.UUID, in storage.CreateTaskParams) (storage.Task, error)
	UpdateTask(ctx context.Context, id uuid.UUID, in storage.UpdateTaskParams) (storage.Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (storage.Task, error)
	ActiveMainGoals(ctx context.Context, projectID *uuid.UUID, limit int) ([]storage.Task, error)
	ActiveSubtasks(ctx context.Context, mainTaskID uuid.UUID) ([]storage.Task, error)
	SetTaskBlockers(ctx context.Context, id uuid.UUID, blockedBy []uuid.UUID) (storage.Task, error)

	LogMessage(ctx context.Context, in storage.LogMessageParams) (storage.Message, error)
	SessionMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]storage.Message, error)
	SearchMessagesByVector(ctx context.Context, embedding []float32, projectID *uuid.UUID, days, limit int) ([]storage.ScoredMessage, error)

	LogDecision(ctx context.Context, in storage.LogDecisionParams) (storage.Decision, error)
	AssessDecision(ctx context.Context, id uuid.UUID, outcome string) (storage.Decision, error)
	RecentDecisions(ctx context.Context, projectID *uuid.UUID, needingAssessment bool, limit int) ([]storage.Decision, error)

	LogError(ctx context.Context, in storage.LogErrorParams) (storage.ErrorLog, error)
	RecordOccurrence(ctx context.Context, id uuid.UUID) (storage.ErrorLog, error)
	ResolveError(ctx context.Context, id uuid.UUID, solution string) (storage.ErrorLog, error)
	SearchErrors(ctx context.Context, in storage.SearchErrorsParams) ([]storage.ErrorLog, error)

	SaveKnowledge(ctx context.Context, in storage.SaveKnowledgeParams) (storage.Knowledge, error)
	TouchKnowledge(ctx context.Context, id uuid.UUID) (storage.Knowledge, error)
	SearchKnowledge(ctx context.Context, in storage.SearchKnowledgeParams) ([]storage.Knowledge, error)
	SearchKnowledgeByVector(ctx context.Context, embedding []float32, projectID *uuid.UUID, limit int) ([]storage.ScoredKnowledge, error)

	SaveSnapshot(ctx context.Context, in storage.SaveSnapshotParams) (storage.CodeSnapshot, error)
	ListSnapshots(ctx context.Context, filePath string, projectID, taskID *uuid.UUID, limit int) ([]storage.CodeSnapshot, error)

	CreateRelationship(ctx context.Context, source, target storage.EntityRef, relationshipType string, strength float64) (storage.Relationship, error)
	RelatedEntities(ctx context.Context, ref storage.EntityRef, limit int) ([]storage.Relationship, error)

	SaveArtifact(ctx context.Context, in storage.SaveArtifactParams) (storage.Artifact, error)
	GetArtifact(ctx context.Context, id uuid.UUID) (storage.Artifact, error)
	ArtifactVersions(ctx context.Context, id uuid.UUID) ([]storage.Artifact, error)
	ListArtifacts(ctx context.Context, name string, projectID *uuid.UUID, limit int) ([]storage.Artifact, error)

	CreateReminder(ctx context.Context, sessionID uuid.UUID, content, reminderType string) (storage.Reminder, error)
	PendingReminders(ctx context.Context, sessionID uuid.UUID) ([]storage.Reminder, error)
	AcknowledgeReminder(ctx context.Context, id uuid.UUID) (storage.Reminder, error)

	RecentBackups(ctx context.Context, limit int) ([]storage.BackupRecord, error)
	Counts(ctx context.Context) (map[string]int, error)
}

// BackupRunner triggers one backup job and returns the terminal record.
type BackupRunner interface {
	Run(ctx context.Context, backupType string) (storage.BackupRecord, error)
}

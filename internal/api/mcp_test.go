package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/memctx/memctx/internal/storage"
)

// --- fakes ---

// fakeStore satisfies Store with canned results. Handlers under test record
// the arguments they forward so assertions can inspect them.
type fakeStore struct {
	err error

	project   storage.Project
	session   storage.Session
	task      storage.Task
	reminders []storage.Reminder
	counts    map[string]int

	createProjectIn storage.CreateProjectParams
	updateProjectID uuid.UUID
	updateProjectIn storage.UpdateProjectParams
	searchEmbedding []float32
	blockersTaskID  uuid.UUID
	blockedBy       []uuid.UUID
}

func (f *fakeStore) CreateProject(_ context.Context, in storage.CreateProjectParams) (storage.Project, error) {
	f.createProjectIn = in
	return f.project, f.err
}

func (f *fakeStore) UpdateProject(_ context.Context, id uuid.UUID, in storage.UpdateProjectParams) (storage.Project, error) {
	f.updateProjectID = id
	f.updateProjectIn = in
	return f.project, f.err
}

func (f *fakeStore) GetProject(_ context.Context, _ uuid.UUID) (storage.Project, error) {
	return f.project, f.err
}

func (f *fakeStore) ListProjects(_ context.Context, _ string, _ int) ([]storage.Project, error) {
	return nil, f.err
}

func (f *fakeStore) SearchProjects(_ context.Context, _ string, _ int) ([]storage.Project, error) {
	return nil, f.err
}

func (f *fakeStore) GetProjectStatus(_ context.Context, _ uuid.UUID) (storage.ProjectStatus, error) {
	return storage.ProjectStatus{}, f.err
}

func (f *fakeStore) StartSession(_ context.Context, _ storage.StartSessionParams) (storage.Session, error) {
	return f.session, f.err
}

func (f *fakeStore) EndSession(_ context.Context, _ uuid.UUID, _ storage.EndSessionParams) (storage.Session, error) {
	return f.session, f.err
}

func (f *fakeStore) GetSession(_ context.Context, _ uuid.UUID) (storage.Session, error) {
	return f.session, f.err
}

func (f *fakeStore) ListRecentSessions(_ context.Context, _ *uuid.UUID, _ int) ([]storage.Session, error) {
	return nil, f.err
}

func (f *fakeStore) CreateMainGoal(_ context.Context, _ storage.CreateTaskParams) (storage.Task, error) {
	return f.task, f.err
}

func (f *fakeStore) CreateSubtask(_ context.Context, _ uuid.UUID, _ *uuid.UUID, _ storage.CreateTaskParams) (storage.Task, error) {
	return f.task, f.err
}

func (f *fakeStore) UpdateTask(_ context.Context, _ uuid.UUID, _ storage.UpdateTaskParams) (storage.Task, error) {
	return f.task, f.err
}

func (f *fakeStore) GetTask(_ context.Context, _ uuid.UUID) (storage.Task, error) {
	return f.task, f.err
}

func (f *fakeStore) ActiveMainGoals(_ context.Context, _ *uuid.UUID, _ int) ([]storage.Task, error) {
	return nil, f.err
}

func (f *fakeStore) ActiveSubtasks(_ context.Context, _ uuid.UUID) ([]storage.Task, error) {
	return nil, f.err
}

func (f *fakeStore) SetTaskBlockers(_ context.Context, id uuid.UUID, blockedBy []uuid.UUID) (storage.Task, error) {
	f.blockersTaskID = id
	f.blockedBy = blockedBy
	return f.task, f.err
}

func (f *fakeStore) LogMessage(_ context.Context, _ storage.LogMessageParams) (storage.Message, error) {
	return storage.Message{}, f.err
}

func (f *fakeStore) SessionMessages(_ context.Context, _ uuid.UUID, _ int) ([]storage.Message, error) {
	return nil, f.err
}

func (f *fakeStore) SearchMessagesByVector(_ context.Context, embedding []float32, _ *uuid.UUID, _, _ int) ([]storage.ScoredMessage, error) {
	f.searchEmbedding = embedding
	return nil, f.err
}

func (f *fakeStore) LogDecision(_ context.Context, _ storage.LogDecisionParams) (storage.Decision, error) {
	return storage.Decision{}, f.err
}

func (f *fakeStore) AssessDecision(_ context.Context, _ uuid.UUID, _ string) (storage.Decision, error) {
	return storage.Decision{}, f.err
}

func (f *fakeStore) RecentDecisions(_ context.Context, _ *uuid.UUID, _ bool, _ int) ([]storage.Decision, error) {
	return nil, f.err
}

func (f *fakeStore) LogError(_ context.Context, _ storage.LogErrorParams) (storage.ErrorLog, error) {
	return storage.ErrorLog{}, f.err
}

func (f *fakeStore) RecordOccurrence(_ context.Context, _ uuid.UUID) (storage.ErrorLog, error) {
	return storage.ErrorLog{}, f.err
}

func (f *fakeStore) ResolveError(_ context.Context, _ uuid.UUID, _ string) (storage.ErrorLog, error) {
	return storage.ErrorLog{}, f.err
}

func (f *fakeStore) SearchErrors(_ context.Context, _ storage.SearchErrorsParams) ([]storage.ErrorLog, error) {
	return nil, f.err
}

func (f *fakeStore) SaveKnowledge(_ context.Context, _ storage.SaveKnowledgeParams) (storage.Knowledge, error) {
	return storage.Knowledge{}, f.err
}

func (f *fakeStore) TouchKnowledge(_ context.Context, _ uuid.UUID) (storage.Knowledge, error) {
	return storage.Knowledge{}, f.err
}

func (f *fakeStore) SearchKnowledge(_ context.Context, _ storage.SearchKnowledgeParams) ([]storage.Knowledge, error) {
	return nil, f.err
}

func (f *fakeStore) SearchKnowledgeByVector(_ context.Context, _ []float32, _ *uuid.UUID, _ int) ([]storage.ScoredKnowledge, error) {
	return nil, f.err
}

func (f *fakeStore) SaveSnapshot(_ context.Context, _ storage.SaveSnapshotParams) (storage.CodeSnapshot, error) {
	return storage.CodeSnapshot{}, f.err
}

func (f *fakeStore) ListSnapshots(_ context.Context, _ string, _, _ *uuid.UUID, _ int) ([]storage.CodeSnapshot, error) {
	return nil, f.err
}

func (f *fakeStore) CreateRelationship(_ context.Context, _, _ storage.EntityRef, _ string, _ float64) (storage.Relationship, error) {
	return storage.Relationship{}, f.err
}

func (f *fakeStore) RelatedEntities(_ context.Context, _ storage.EntityRef, _ int) ([]storage.Relationship, error) {
	return nil, f.err
}

func (f *fakeStore) SaveArtifact(_ context.Context, _ storage.SaveArtifactParams) (storage.Artifact, error) {
	return storage.Artifact{}, f.err
}

func (f *fakeStore) GetArtifact(_ context.Context, _ uuid.UUID) (storage.Artifact, error) {
	return storage.Artifact{}, f.err
}

func (f *fakeStore) ArtifactVersions(_ context.Context, _ uuid.UUID) ([]storage.Artifact, error) {
	return nil, f.err
}

func (f *fakeStore) ListArtifacts(_ context.Context, _ string, _ *uuid.UUID, _ int) ([]storage.Artifact, error) {
	return nil, f.err
}

func (f *fakeStore) CreateReminder(_ context.Context, _ uuid.UUID, _, _ string) (storage.Reminder, error) {
	return storage.Reminder{}, f.err
}

func (f *fakeStore) PendingReminders(_ context.Context, _ uuid.UUID) ([]storage.Reminder, error) {
	return f.reminders, f.err
}

func (f *fakeStore) AcknowledgeReminder(_ context.Context, _ uuid.UUID) (storage.Reminder, error) {
	return storage.Reminder{}, f.err
}

func (f *fakeStore) RecentBackups(_ context.Context, _ int) ([]storage.BackupRecord, error) {
	return nil, f.err
}

func (f *fakeStore) Counts(_ context.Context) (map[string]int, error) {
	return f.counts, f.err
}

type fakeBackupRunner struct {
	record     storage.BackupRecord
	err        error
	backupType string
}

func (f *fakeBackupRunner) Run(_ context.Context, backupType string) (storage.BackupRecord, error) {
	f.backupType = backupType
	return f.record, f.err
}

// --- helpers ---

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

// --- tests ---

func TestMCPTool_CreateProject(t *testing.T) {
	fake := &fakeStore{project: storage.Project{ID: uuid.New(), Name: "homelab", Category: "infrastructure"}}
	handler := mcpCreateProject(MCPDeps{Store: fake})

	req := makeCallToolRequest("create_project", map[string]any{
		"name":     "homelab",
		"category": "infrastructure",
		"tags":     []string{"infra"},
	})
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var got storage.Project
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if got.Name != "homelab" {
		t.Errorf("response name = %q, want homelab", got.Name)
	}
	if fake.createProjectIn.Category != "infrastructure" {
		t.Errorf("forwarded category = %q", fake.createProjectIn.Category)
	}
	if len(fake.createProjectIn.Tags) != 1 || fake.createProjectIn.Tags[0] != "infra" {
		t.Errorf("forwarded tags = %v", fake.createProjectIn.Tags)
	}
}

func TestMCPTool_CreateProject_MissingArgs(t *testing.T) {
	handler := mcpCreateProject(MCPDeps{Store: &fakeStore{}})

	result, err := handler(context.Background(),
		makeCallToolRequest("create_project", map[string]any{"category": "infrastructure"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing name")
	}
	if text := toolText(t, result); text != "name is required" {
		t.Errorf("error text = %q", text)
	}
}

func TestMCPTool_GetProject_InvalidUUID(t *testing.T) {
	handler := mcpGetProject(MCPDeps{Store: &fakeStore{}})

	result, err := handler(context.Background(),
		makeCallToolRequest("get_project", map[string]any{"project_id": "not-a-uuid"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for bad UUID")
	}
	if text := toolText(t, result); !strings.HasPrefix(text, "invalid project_id") {
		t.Errorf("error text = %q", text)
	}
}

func TestMCPTool_StoreErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", &storage.ValidationError{Field: "status", Reason: "bad"}, "validation_error: "},
		{"not found", &storage.NotFoundError{Kind: "project", ID: "x"}, "not_found: "},
		{"constraint", &storage.ConstraintError{Constraint: "c", Detail: "d"}, "constraint_error: "},
		{"transient", &storage.TransientError{Op: "query", Err: errors.New("down")}, "transient_error: "},
		{"integration", &storage.IntegrationError{Step: "push", Err: errors.New("denied")}, "integration_error: "},
		{"unknown", errors.New("boom"), "internal_error: "},
	}

	id := uuid.New().String()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := mcpGetProject(MCPDeps{Store: &fakeStore{err: tt.err}})
			result, err := handler(context.Background(),
				makeCallToolRequest("get_project", map[string]any{"project_id": id}))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Fatal("expected tool error")
			}
			if text := toolText(t, result); !strings.HasPrefix(text, tt.want) {
				t.Errorf("error text = %q, want prefix %q", text, tt.want)
			}
		})
	}
}

func TestMCPTool_UpdateProject_PartialArgs(t *testing.T) {
	fake := &fakeStore{}
	handler := mcpUpdateProject(MCPDeps{Store: fake})
	id := uuid.New()

	result, err := handler(context.Background(),
		makeCallToolRequest("update_project", map[string]any{
			"project_id": id.String(),
			"status":     "on_hold",
		}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	if fake.updateProjectID != id {
		t.Errorf("forwarded id = %s, want %s", fake.updateProjectID, id)
	}
	in := fake.updateProjectIn
	if in.Status == nil || *in.Status != "on_hold" {
		t.Errorf("Status = %v, want on_hold", in.Status)
	}
	// Absent arguments must not turn into zero-value updates.
	if in.Description != nil || in.Priority != nil || in.ProgressPercentage != nil {
		t.Errorf("unexpected fields set: %+v", in)
	}
}

func TestMCPTool_GetSession_BundlesReminders(t *testing.T) {
	sessID := uuid.New()
	fake := &fakeStore{
		session: storage.Session{ID: sessID, SessionType: "coding", Status: "active"},
		reminders: []storage.Reminder{
			{ID: uuid.New(), SessionID: sessID, Content: "rotate the token"},
		},
	}
	handler := mcpGetSession(MCPDeps{Store: fake})

	result, err := handler(context.Background(),
		makeCallToolRequest("get_session", map[string]any{"session_id": sessID.String()}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var payload struct {
		Session          storage.Session    `json:"session"`
		PendingReminders []storage.Reminder `json:"pending_reminders"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &payload); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if payload.Session.ID != sessID {
		t.Errorf("session id = %s, want %s", payload.Session.ID, sessID)
	}
	if len(payload.PendingReminders) != 1 {
		t.Errorf("pending reminders = %d, want 1", len(payload.PendingReminders))
	}
}

func TestMCPTool_SearchMessages_EmbeddingHandling(t *testing.T) {
	fake := &fakeStore{}
	handler := mcpSearchMessages(MCPDeps{Store: fake})

	result, _ := handler(context.Background(),
		makeCallToolRequest("search_messages", map[string]any{}))
	if !result.IsError || toolText(t, result) != "embedding is required" {
		t.Errorf("missing embedding: %q", toolText(t, result))
	}

	result, _ = handler(context.Background(),
		makeCallToolRequest("search_messages", map[string]any{
			"embedding": []any{"not", "numbers"},
		}))
	if !result.IsError {
		t.Error("expected tool error for non-numeric embedding")
	}

	result, _ = handler(context.Background(),
		makeCallToolRequest("search_messages", map[string]any{
			"embedding": []any{0.25, 0.5, 0.75},
		}))
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if len(fake.searchEmbedding) != 3 || fake.searchEmbedding[1] != 0.5 {
		t.Errorf("forwarded embedding = %v", fake.searchEmbedding)
	}
}

func TestMCPTool_SetTaskBlockers(t *testing.T) {
	fake := &fakeStore{}
	handler := mcpSetTaskBlockers(MCPDeps{Store: fake})
	taskID := uuid.New()
	blocker := uuid.New()

	result, err := handler(context.Background(),
		makeCallToolRequest("set_task_blockers", map[string]any{
			"task_id":    taskID.String(),
			"blocked_by": []string{blocker.String()},
		}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if fake.blockersTaskID != taskID {
		t.Errorf("forwarded task id = %s, want %s", fake.blockersTaskID, taskID)
	}
	if len(fake.blockedBy) != 1 || fake.blockedBy[0] != blocker {
		t.Errorf("forwarded blockers = %v", fake.blockedBy)
	}

	result, _ = handler(context.Background(),
		makeCallToolRequest("set_task_blockers", map[string]any{
			"task_id":    taskID.String(),
			"blocked_by": []string{"junk"},
		}))
	if !result.IsError {
		t.Error("expected tool error for malformed blocker id")
	}
}

func TestMCPTool_RunBackup(t *testing.T) {
	runner := &fakeBackupRunner{
		record: storage.BackupRecord{ID: uuid.New(), BackupType: "manual", Status: "completed"},
	}
	handler := mcpRunBackup(MCPDeps{Store: &fakeStore{}, Backup: runner})

	result, err := handler(context.Background(),
		makeCallToolRequest("run_backup", map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if runner.backupType != "manual" {
		t.Errorf("backup type = %q, want default manual", runner.backupType)
	}

	var record storage.BackupRecord
	if err := json.Unmarshal([]byte(toolText(t, result)), &record); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if record.Status != "completed" {
		t.Errorf("status = %q, want completed", record.Status)
	}
}

func TestMCPTool_RunBackup_NoRunner(t *testing.T) {
	handler := mcpRunBackup(MCPDeps{Store: &fakeStore{}})

	result, err := handler(context.Background(),
		makeCallToolRequest("run_backup", map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error when no runner is configured")
	}
	if text := toolText(t, result); !strings.Contains(text, "no backup repository configured") {
		t.Errorf("error text = %q", text)
	}
}

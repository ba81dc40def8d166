package storage

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// testStore opens a store against MEMCTX_TEST_DATABASE_URL and wipes all
// entity tables. Tests are skipped when the variable is unset.
func testStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	dsn := os.Getenv("MEMCTX_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MEMCTX_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, dsn, Options{StatementTimeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(s.Close)

	if _, err := s.pool.Exec(ctx,
		"TRUNCATE "+strings.Join(Tables, ", ")+" CASCADE"); err != nil {
		t.Fatalf("truncating tables: %v", err)
	}
	return s, ctx
}

func mustProject(t *testing.T, s *Store, ctx context.Context, name string) Project {
	t.Helper()
	p, err := s.CreateProject(ctx, CreateProjectParams{Name: name, Category: "infrastructure"})
	if err != nil {
		t.Fatalf("creating project: %v", err)
	}
	return p
}

func mustSession(t *testing.T, s *Store, ctx context.Context) Session {
	t.Helper()
	sess, err := s.StartSession(ctx, StartSessionParams{SessionType: "coding"})
	if err != nil {
		t.Fatalf("starting session: %v", err)
	}
	return sess
}

func TestProjectLifecycle(t *testing.T) {
	s, ctx := testStore(t)

	p, err := s.CreateProject(ctx, CreateProjectParams{
		Name:     "homelab monitor",
		Category: "infrastructure",
		Tags:     []string{"homelab", "alerting"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Status != "active" || p.Priority != "medium" {
		t.Errorf("defaults = %s/%s, want active/medium", p.Status, p.Priority)
	}

	progress := 40
	updated, err := s.UpdateProject(ctx, p.ID, UpdateProjectParams{ProgressPercentage: &progress})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ProgressPercentage != 40 {
		t.Errorf("progress = %d, want 40", updated.ProgressPercentage)
	}
	if !updated.UpdatedAt.After(p.UpdatedAt) {
		t.Error("updated_at was not refreshed on update")
	}

	onHold := "on_hold"
	if _, err := s.UpdateProject(ctx, p.ID, UpdateProjectParams{Status: &onHold}); err != nil {
		t.Fatalf("status update: %v", err)
	}
	active, err := s.ListProjects(ctx, "active", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active projects = %d, want 0", len(active))
	}

	found, err := s.SearchProjects(ctx, "monitor", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].ID != p.ID {
		t.Errorf("search returned %d results, want the created project", len(found))
	}
}

func TestProjectValidation(t *testing.T) {
	s, ctx := testStore(t)

	var ve *ValidationError
	if _, err := s.CreateProject(ctx, CreateProjectParams{Category: "infrastructure"}); !errors.As(err, &ve) {
		t.Errorf("missing name: got %T, want ValidationError", err)
	}
	if _, err := s.CreateProject(ctx, CreateProjectParams{Name: "x", Category: "bogus"}); !errors.As(err, &ve) {
		t.Errorf("bad category: got %T, want ValidationError", err)
	}

	p := mustProject(t, s, ctx, "p")
	bad := 101
	if _, err := s.UpdateProject(ctx, p.ID, UpdateProjectParams{ProgressPercentage: &bad}); !errors.As(err, &ve) {
		t.Errorf("progress 101: got %T, want ValidationError", err)
	}

	var nfe *NotFoundError
	if _, err := s.GetProject(ctx, uuid.New()); !errors.As(err, &nfe) {
		t.Errorf("missing project: got %T, want NotFoundError", err)
	}
}

func TestSubtaskInvariants(t *testing.T) {
	s, ctx := testStore(t)

	goal, err := s.CreateMainGoal(ctx, CreateTaskParams{Title: "ship v1"})
	if err != nil {
		t.Fatalf("create main goal: %v", err)
	}
	if !goal.IsMainGoal {
		t.Error("main goal not flagged")
	}

	sub, err := s.CreateSubtask(ctx, goal.ID, nil, CreateTaskParams{Title: "write docs"})
	if err != nil {
		t.Fatalf("create subtask: %v", err)
	}
	if sub.MainTaskID == nil || *sub.MainTaskID != goal.ID {
		t.Error("subtask main_task_id not set to the goal")
	}
	if sub.ParentTaskID == nil || *sub.ParentTaskID != goal.ID {
		t.Error("subtask parent defaults to the goal")
	}

	// A subtask cannot be a parent goal.
	var ve *ValidationError
	if _, err := s.CreateSubtask(ctx, sub.ID, nil, CreateTaskParams{Title: "nested"}); !errors.As(err, &ve) {
		t.Errorf("subtask under subtask: got %T, want ValidationError", err)
	}

	var nfe *NotFoundError
	if _, err := s.CreateSubtask(ctx, uuid.New(), nil, CreateTaskParams{Title: "orphan"}); !errors.As(err, &nfe) {
		t.Errorf("missing goal: got %T, want NotFoundError", err)
	}

	projectID := uuid.New()
	if _, err := s.CreateMainGoal(ctx, CreateTaskParams{Title: "x", ProjectID: &projectID}); !errors.As(err, &nfe) {
		t.Errorf("missing project: got %T, want NotFoundError", err)
	}
}

func TestTaskCompletionCounters(t *testing.T) {
	s, ctx := testStore(t)
	sess := mustSession(t, s, ctx)

	goal, err := s.CreateMainGoal(ctx, CreateTaskParams{Title: "g", SessionID: &sess.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	after, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if after.TasksCreated != 1 {
		t.Errorf("tasks_created = %d, want 1", after.TasksCreated)
	}

	done := "completed"
	completed, err := s.UpdateTask(ctx, goal.ID, UpdateTaskParams{Status: &done})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.CompletedAt == nil {
		t.Error("completed_at not stamped")
	}
	if completed.ProgressPercentage != 100 {
		t.Errorf("progress = %d, want 100", completed.ProgressPercentage)
	}

	after, _ = s.GetSession(ctx, sess.ID)
	if after.TasksCompleted != 1 {
		t.Errorf("tasks_completed = %d, want 1", after.TasksCompleted)
	}

	// Completing an already completed task does not double count.
	if _, err := s.UpdateTask(ctx, goal.ID, UpdateTaskParams{Status: &done}); err != nil {
		t.Fatalf("re-complete: %v", err)
	}
	after, _ = s.GetSession(ctx, sess.ID)
	if after.TasksCompleted != 1 {
		t.Errorf("tasks_completed after re-complete = %d, want 1", after.TasksCompleted)
	}
}

func TestCompleteTaskWithExplicitProgress(t *testing.T) {
	s, ctx := testStore(t)
	done := "completed"

	// Status and progress in a single update.
	a, _ := s.CreateMainGoal(ctx, CreateTaskParams{Title: "a"})
	full := 100
	updated, err := s.UpdateTask(ctx, a.ID, UpdateTaskParams{Status: &done, ProgressPercentage: &full})
	if err != nil {
		t.Fatalf("complete with progress: %v", err)
	}
	if updated.ProgressPercentage != 100 {
		t.Errorf("progress = %d, want 100", updated.ProgressPercentage)
	}
	if updated.CompletedAt == nil {
		t.Error("completed_at not stamped")
	}

	// An explicit value wins over the completion default.
	b, _ := s.CreateMainGoal(ctx, CreateTaskParams{Title: "b"})
	partial := 80
	updated, err = s.UpdateTask(ctx, b.ID, UpdateTaskParams{Status: &done, ProgressPercentage: &partial})
	if err != nil {
		t.Fatalf("complete with partial progress: %v", err)
	}
	if updated.ProgressPercentage != 80 {
		t.Errorf("progress = %d, want the explicit 80", updated.ProgressPercentage)
	}
}

func TestActiveMainGoalsOrdering(t *testing.T) {
	s, ctx := testStore(t)

	mk := func(title, priority string) Task {
		t.Helper()
		task, err := s.CreateMainGoal(ctx, CreateTaskParams{Title: title, Priority: priority})
		if err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
		return task
	}
	mk("old medium", "medium")
	mk("low", "low")
	crit := mk("critical", "critical")
	mk("new medium", "medium")

	done := "completed"
	finished := mk("finished critical", "critical")
	if _, err := s.UpdateTask(ctx, finished.ID, UpdateTaskParams{Status: &done}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	goals, err := s.ActiveMainGoals(ctx, nil, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(goals) != 4 {
		t.Fatalf("active goals = %d, want 4", len(goals))
	}
	if goals[0].ID != crit.ID {
		t.Errorf("first goal = %q, want the critical one", goals[0].Title)
	}
	if goals[1].Title != "old medium" || goals[2].Title != "new medium" {
		t.Errorf("mediums out of order: %q then %q", goals[1].Title, goals[2].Title)
	}
	if goals[3].Title != "low" {
		t.Errorf("last goal = %q, want low", goals[3].Title)
	}
}

func TestSetTaskBlockers(t *testing.T) {
	s, ctx := testStore(t)

	a, _ := s.CreateMainGoal(ctx, CreateTaskParams{Title: "a"})
	b, _ := s.CreateMainGoal(ctx, CreateTaskParams{Title: "b"})
	c, _ := s.CreateMainGoal(ctx, CreateTaskParams{Title: "c"})

	blocked, err := s.SetTaskBlockers(ctx, a.ID, []uuid.UUID{b.ID, c.ID})
	if err != nil {
		t.Fatalf("set blockers: %v", err)
	}
	if blocked.Status != "blocked" {
		t.Errorf("status = %q, want blocked", blocked.Status)
	}

	bAfter, _ := s.GetTask(ctx, b.ID)
	if len(bAfter.Blocking) != 1 || bAfter.Blocking[0] != a.ID {
		t.Errorf("blocker mirror on b = %v, want [a]", bAfter.Blocking)
	}

	// Shrink the set: c's mirror is removed, a stays blocked.
	if _, err := s.SetTaskBlockers(ctx, a.ID, []uuid.UUID{b.ID}); err != nil {
		t.Fatalf("shrink: %v", err)
	}
	cAfter, _ := s.GetTask(ctx, c.ID)
	if len(cAfter.Blocking) != 0 {
		t.Errorf("mirror on c not removed: %v", cAfter.Blocking)
	}

	// Clearing the set releases the task.
	released, err := s.SetTaskBlockers(ctx, a.ID, nil)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if released.Status != "pending" {
		t.Errorf("status after release = %q, want pending", released.Status)
	}
	bAfter, _ = s.GetTask(ctx, b.ID)
	if len(bAfter.Blocking) != 0 {
		t.Errorf("mirror on b not removed: %v", bAfter.Blocking)
	}

	var ve *ValidationError
	if _, err := s.SetTaskBlockers(ctx, a.ID, []uuid.UUID{a.ID}); !errors.As(err, &ve) {
		t.Errorf("self block: got %T, want ValidationError", err)
	}
	var nfe *NotFoundError
	if _, err := s.SetTaskBlockers(ctx, a.ID, []uuid.UUID{uuid.New()}); !errors.As(err, &nfe) {
		t.Errorf("missing blocker: got %T, want NotFoundError", err)
	}
}

func TestSessionFlow(t *testing.T) {
	s, ctx := testStore(t)
	sess := mustSession(t, s, ctx)

	msg, err := s.LogMessage(ctx, LogMessageParams{
		SessionID:  sess.ID,
		Role:       "user",
		Content:    "hello",
		TokenCount: 7,
	})
	if err != nil {
		t.Fatalf("log message: %v", err)
	}
	if msg.TokenCount != 7 {
		t.Errorf("token_count = %d, want 7", msg.TokenCount)
	}

	after, _ := s.GetSession(ctx, sess.ID)
	if after.TotalMessages != 1 || after.TotalTokens != 7 {
		t.Errorf("counters = %d/%d, want 1/7", after.TotalMessages, after.TotalTokens)
	}

	ended, err := s.EndSession(ctx, sess.ID, EndSessionParams{
		Summary:   "did things",
		NextSteps: []string{"more things"},
	})
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.Status != "completed" || ended.EndedAt == nil {
		t.Errorf("ended session = %s/%v", ended.Status, ended.EndedAt)
	}

	var ve *ValidationError
	if _, err := s.EndSession(ctx, sess.ID, EndSessionParams{}); !errors.As(err, &ve) {
		t.Errorf("double end: got %T, want ValidationError", err)
	}
	if _, err := s.LogMessage(ctx, LogMessageParams{SessionID: sess.ID, Role: "user", Content: "late"}); !errors.As(err, &ve) {
		t.Errorf("message to ended session: got %T, want ValidationError", err)
	}
}

func TestDecisionAssessment(t *testing.T) {
	s, ctx := testStore(t)

	d, err := s.LogDecision(ctx, LogDecisionParams{
		Description:  "use postgres",
		DecisionType: "architecture",
		Alternatives: []string{"sqlite"},
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if !d.NeedsAssessment {
		t.Error("fresh decision should need assessment")
	}

	assessed, err := s.AssessDecision(ctx, d.ID, "successful")
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if assessed.NeedsAssessment {
		t.Error("assessed decision should not need assessment")
	}
	if assessed.OutcomeAssessedAt == nil {
		t.Error("outcome_assessed_at not stamped")
	}

	// An explicitly unknown outcome keeps the decision on the review list.
	unknown, err := s.AssessDecision(ctx, d.ID, "unknown")
	if err != nil {
		t.Fatalf("assess unknown: %v", err)
	}
	if !unknown.NeedsAssessment {
		t.Error("unknown outcome should still need assessment")
	}

	pending, err := s.RecentDecisions(ctx, nil, true, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("decisions needing assessment = %d, want 1", len(pending))
	}
}

func TestErrorOccurrences(t *testing.T) {
	s, ctx := testStore(t)

	e, err := s.LogError(ctx, LogErrorParams{
		ErrorMessage: "connection refused",
		ErrorType:    "network",
		Tags:         []string{"flaky", "ci"},
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if e.OccurrenceCount != 1 || e.IsRecurring {
		t.Errorf("fresh error: count=%d recurring=%v", e.OccurrenceCount, e.IsRecurring)
	}

	seen, err := s.RecordOccurrence(ctx, e.ID)
	if err != nil {
		t.Fatalf("occurrence: %v", err)
	}
	if seen.OccurrenceCount != 2 || !seen.IsRecurring {
		t.Errorf("after occurrence: count=%d recurring=%v", seen.OccurrenceCount, seen.IsRecurring)
	}
	if !seen.LastOccurredAt.After(e.LastOccurredAt) {
		t.Error("last_occurred_at not refreshed")
	}

	unresolved, err := s.SearchErrors(ctx, SearchErrorsParams{Unresolved: true})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(unresolved) != 1 {
		t.Errorf("unresolved = %d, want 1", len(unresolved))
	}

	if _, err := s.ResolveError(ctx, e.ID, "retry with backoff"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	unresolved, _ = s.SearchErrors(ctx, SearchErrorsParams{Unresolved: true})
	if len(unresolved) != 0 {
		t.Errorf("unresolved after resolve = %d, want 0", len(unresolved))
	}

	// Tag search is match-all containment.
	both, _ := s.SearchErrors(ctx, SearchErrorsParams{Tags: []string{"flaky", "ci"}})
	if len(both) != 1 {
		t.Errorf("tags [flaky ci] = %d matches, want 1", len(both))
	}
	miss, _ := s.SearchErrors(ctx, SearchErrorsParams{Tags: []string{"flaky", "prod"}})
	if len(miss) != 0 {
		t.Errorf("tags [flaky prod] = %d matches, want 0", len(miss))
	}
}

func TestKnowledgeScopeAndExpiry(t *testing.T) {
	s, ctx := testStore(t)
	p := mustProject(t, s, ctx, "p")

	mk := func(title string, global bool, projectID *uuid.UUID, validUntil *time.Time) Knowledge {
		t.Helper()
		k, err := s.SaveKnowledge(ctx, SaveKnowledgeParams{
			Title: title, Content: "c", IsGlobal: global,
			ProjectID: projectID, ValidUntil: validUntil,
		})
		if err != nil {
			t.Fatalf("save %s: %v", title, err)
		}
		return k
	}
	mk("global fact", true, nil, nil)
	mk("project fact", false, &p.ID, nil)
	past := time.Now().Add(-time.Hour)
	mk("expired fact", true, nil, &past)

	scoped, err := s.SearchKnowledge(ctx, SearchKnowledgeParams{ProjectID: &p.ID})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(scoped) != 2 {
		t.Errorf("project scope = %d entries, want global+project = 2", len(scoped))
	}

	k := mk("counted", true, nil, nil)
	touched, err := s.TouchKnowledge(ctx, k.ID)
	if err != nil {
		t.Fatalf("touch: %v", err)
	}
	if touched.AccessCount != 1 || touched.LastAccessedAt == nil {
		t.Errorf("touch: count=%d at=%v", touched.AccessCount, touched.LastAccessedAt)
	}
}

func TestRelationshipConstraints(t *testing.T) {
	s, ctx := testStore(t)
	p := mustProject(t, s, ctx, "p")
	sess := mustSession(t, s, ctx)

	r, err := s.CreateRelationship(ctx,
		EntityRef{Type: "session", ID: sess.ID},
		EntityRef{Type: "project", ID: p.ID},
		"works_on", 0.9)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.Strength != 0.9 {
		t.Errorf("strength = %g, want 0.9", r.Strength)
	}

	var ce *ConstraintError
	if _, err := s.CreateRelationship(ctx,
		EntityRef{Type: "project", ID: p.ID},
		EntityRef{Type: "project", ID: p.ID},
		"self", 0.5); !errors.As(err, &ce) {
		t.Errorf("self loop: got %T, want ConstraintError", err)
	}

	var nfe *NotFoundError
	if _, err := s.CreateRelationship(ctx,
		EntityRef{Type: "task", ID: uuid.New()},
		EntityRef{Type: "project", ID: p.ID},
		"x", 0.5); !errors.As(err, &nfe) {
		t.Errorf("missing endpoint: got %T, want NotFoundError", err)
	}

	var ve *ValidationError
	if _, err := s.CreateRelationship(ctx,
		EntityRef{Type: "project", ID: p.ID},
		EntityRef{Type: "session", ID: sess.ID},
		"x", 1.5); !errors.As(err, &ve) {
		t.Errorf("strength 1.5: got %T, want ValidationError", err)
	}

	related, err := s.RelatedEntities(ctx, EntityRef{Type: "project", ID: p.ID}, 0)
	if err != nil {
		t.Fatalf("related: %v", err)
	}
	if len(related) != 1 {
		t.Errorf("related = %d, want 1", len(related))
	}
}

func TestVectorSearch(t *testing.T) {
	s, ctx := testStore(t)
	sess := mustSession(t, s, ctx)

	// Axis-aligned unit vectors: identical direction scores 1, orthogonal 0.
	unit := func(axis int) []float32 {
		v := make([]float32, 1536)
		v[axis] = 1
		return v
	}

	for i, content := range []string{"about apples", "about bridges", "no embedding"} {
		in := LogMessageParams{SessionID: sess.ID, Role: "user", Content: content}
		if i < 2 {
			in.Embedding = unit(i)
		}
		if _, err := s.LogMessage(ctx, in); err != nil {
			t.Fatalf("log %q: %v", content, err)
		}
	}

	results, err := s.SearchMessagesByVector(ctx, unit(0), nil, 0, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 (unembedded row excluded)", len(results))
	}
	if results[0].Content != "about apples" {
		t.Errorf("best match = %q, want the identical vector", results[0].Content)
	}
	if results[0].Score < 0.999 {
		t.Errorf("identical vector score = %g, want ~1", results[0].Score)
	}
	if results[1].Score > 0.001 {
		t.Errorf("orthogonal vector score = %g, want ~0", results[1].Score)
	}

	// Backdate the orthogonal message; a day window drops it.
	if _, err := s.pool.Exec(ctx, `
		UPDATE conversation_messages SET created_at = now() - interval '10 days'
		WHERE content = 'about bridges'`); err != nil {
		t.Fatalf("backdating: %v", err)
	}
	recent, err := s.SearchMessagesByVector(ctx, unit(0), nil, 7, 10)
	if err != nil {
		t.Fatalf("windowed search: %v", err)
	}
	if len(recent) != 1 || recent[0].Content != "about apples" {
		t.Errorf("windowed results = %d, want only the recent message", len(recent))
	}
}

func TestArtifactLineage(t *testing.T) {
	s, ctx := testStore(t)

	v1, _ := s.SaveArtifact(ctx, SaveArtifactParams{Name: "report", Content: "v1"})
	v2, _ := s.SaveArtifact(ctx, SaveArtifactParams{Name: "report", Content: "v2", ParentArtifactID: &v1.ID})
	v3, err := s.SaveArtifact(ctx, SaveArtifactParams{Name: "report", Content: "v3", ParentArtifactID: &v2.ID})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	lineage, err := s.ArtifactVersions(ctx, v3.ID)
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(lineage) != 3 {
		t.Fatalf("lineage = %d, want 3", len(lineage))
	}
	if lineage[0].ID != v3.ID || lineage[2].ID != v1.ID {
		t.Error("lineage not ordered newest to root")
	}

	var nfe *NotFoundError
	if _, err := s.ArtifactVersions(ctx, uuid.New()); !errors.As(err, &nfe) {
		t.Errorf("missing artifact: got %T, want NotFoundError", err)
	}
}

func TestReminders(t *testing.T) {
	s, ctx := testStore(t)
	sess := mustSession(t, s, ctx)

	r, err := s.CreateReminder(ctx, sess.ID, "rotate the token", "followup")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	pending, _ := s.PendingReminders(ctx, sess.ID)
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}

	acked, err := s.AcknowledgeReminder(ctx, r.ID)
	if err != nil {
		t.Fatalf("ack: %v", err)
	}
	if !acked.Acknowledged {
		t.Error("reminder not acknowledged")
	}
	pending, _ = s.PendingReminders(ctx, sess.ID)
	if len(pending) != 0 {
		t.Errorf("pending after ack = %d, want 0", len(pending))
	}

	// Acknowledging twice stays a no-op.
	if _, err := s.AcknowledgeReminder(ctx, r.ID); err != nil {
		t.Errorf("double ack: %v", err)
	}
}

func TestBackupRecords(t *testing.T) {
	s, ctx := testStore(t)

	rec, err := s.RecordBackupStart(ctx, "manual", Tables)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if rec.Status != "started" {
		t.Errorf("status = %q, want started", rec.Status)
	}

	var ve *ValidationError
	if _, err := s.FinishBackup(ctx, rec.ID, "started", "", ""); !errors.As(err, &ve) {
		t.Errorf("non-terminal finish: got %T, want ValidationError", err)
	}

	done, err := s.FinishBackup(ctx, rec.ID, "completed", "abc123", "ok")
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if done.FinishedAt == nil || done.CommitRef != "abc123" {
		t.Errorf("finished = %v/%q", done.FinishedAt, done.CommitRef)
	}

	recent, _ := s.RecentBackups(ctx, 0)
	if len(recent) != 1 {
		t.Errorf("recent = %d, want 1", len(recent))
	}
}

func TestProjectStatusRollup(t *testing.T) {
	s, ctx := testStore(t)
	p := mustProject(t, s, ctx, "p")

	goal, _ := s.CreateMainGoal(ctx, CreateTaskParams{Title: "g", ProjectID: &p.ID})
	done := "completed"
	if _, err := s.UpdateTask(ctx, goal.ID, UpdateTaskParams{Status: &done}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := s.CreateMainGoal(ctx, CreateTaskParams{Title: "g2", ProjectID: &p.ID}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.LogError(ctx, LogErrorParams{ErrorMessage: "boom", ProjectID: &p.ID}); err != nil {
		t.Fatalf("log error: %v", err)
	}
	if _, err := s.LogDecision(ctx, LogDecisionParams{Description: "d", DecisionType: "technical", ProjectID: &p.ID}); err != nil {
		t.Fatalf("log decision: %v", err)
	}

	status, err := s.GetProjectStatus(ctx, p.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.TasksByStatus["completed"] != 1 || status.TasksByStatus["pending"] != 1 {
		t.Errorf("tasks by status = %v", status.TasksByStatus)
	}
	if status.OpenErrors != 1 {
		t.Errorf("open errors = %d, want 1", status.OpenErrors)
	}
	if status.PendingDecisions != 1 {
		t.Errorf("pending decisions = %d, want 1", status.PendingDecisions)
	}
}

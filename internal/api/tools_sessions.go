package api

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/memctx/memctx/internal/storage"
)

func registerSessionTools(s *server.MCPServer, deps MCPDeps) {
	s.AddTool(
		mcp.NewTool("start_session",
			mcp.WithDescription("Open a new working session, optionally attached to a project."),
			mcp.WithString("session_type", mcp.Description("Kind of session, e.g. coding, planning, debugging"), mcp.Required()),
			mcp.WithString("main_goal", mcp.Description("What this session sets out to do")),
			mcp.WithString("project_id", mcp.Description("Optional project UUID")),
		),
		mcpStartSession(deps),
	)

	s.AddTool(
		mcp.NewTool("end_session",
			mcp.WithDescription("Close a session with its summary, outcome, and next steps."),
			mcp.WithString("session_id", mcp.Description("Session UUID"), mcp.Required()),
			mcp.WithString("status", mcp.Description("One of: completed, aborted (default completed)")),
			mcp.WithString("summary", mcp.Description("What happened")),
			mcp.WithString("outcome", mcp.Description("Result of the session")),
			mcp.WithArray("next_steps", mcp.Description("Follow-ups for the next session")),
		),
		mcpEndSession(deps),
	)

	s.AddTool(
		mcp.NewTool("get_session",
			mcp.WithDescription("Fetch one session with its counters."),
			mcp.WithString("session_id", mcp.Description("Session UUID"), mcp.Required()),
		),
		mcpGetSession(deps),
	)

	s.AddTool(
		mcp.NewTool("list_recent_sessions",
			mcp.WithDescription("List sessions newest first, optionally scoped to a project."),
			mcp.WithString("project_id", mcp.Description("Optional project UUID")),
			mcp.WithNumber("limit", mcp.Description("Maximum results (default 10)")),
		),
		mcpListRecentSessions(deps),
	)

	s.AddTool(
		mcp.NewTool("create_reminder",
			mcp.WithDescription("Attach a reminder to a session, surfaced until acknowledged."),
			mcp.WithString("session_id", mcp.Description("Session UUID"), mcp.Required()),
			mcp.WithString("content", mcp.Description("Reminder text"), mcp.Required()),
			mcp.WithString("reminder_type", mcp.Description("Free-form kind, e.g. followup, warning")),
		),
		mcpCreateReminder(deps),
	)

	s.AddTool(
		mcp.NewTool("get_pending_reminders",
			mcp.WithDescription("List a session's unacknowledged reminders, oldest first."),
			mcp.WithString("session_id", mcp.Description("Session UUID"), mcp.Required()),
		),
		mcpPendingReminders(deps),
	)

	s.AddTool(
		mcp.NewTool("acknowledge_reminder",
			mcp.WithDescription("Mark a reminder as seen."),
			mcp.WithString("reminder_id", mcp.Description("Reminder UUID"), mcp.Required()),
		),
		mcpAcknowledgeReminder(deps),
	)
}

func mcpStartSession(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionType, err := req.RequireString("session_type")
		if err != nil {
			return mcpError("session_type is required"), nil
		}
		projectID, res := optionalUUID(req, "project_id")
		if res != nil {
			return res, nil
		}

		sess, err := deps.Store.StartSession(ctx, storage.StartSessionParams{
			SessionType: sessionType,
			MainGoal:    req.GetString("main_goal", ""),
			ProjectID:   projectID,
		})
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(sess), nil
	}
}

func mcpEndSession(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, res := requireUUID(req, "session_id")
		if res != nil {
			return res, nil
		}

		sess, err := deps.Store.EndSession(ctx, id, storage.EndSessionParams{
			Status:    req.GetString("status", ""),
			Summary:   req.GetString("summary", ""),
			Outcome:   req.GetString("outcome", ""),
			NextSteps: req.GetStringSlice("next_steps", nil),
		})
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(sess), nil
	}
}

func mcpGetSession(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, res := requireUUID(req, "session_id")
		if res != nil {
			return res, nil
		}
		sess, err := deps.Store.GetSession(ctx, id)
		if err != nil {
			return mcpStoreError(err), nil
		}

		// Bundle the pending reminders so resuming a session is one call.
		reminders, err := deps.Store.PendingReminders(ctx, id)
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(map[string]any{
			"session":           sess,
			"pending_reminders": reminders,
		}), nil
	}
}

func mcpListRecentSessions(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, res := optionalUUID(req, "project_id")
		if res != nil {
			return res, nil
		}
		sessions, err := deps.Store.ListRecentSessions(ctx, projectID, req.GetInt("limit", 0))
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(sessions), nil
	}
}

func mcpCreateReminder(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, res := requireUUID(req, "session_id")
		if res != nil {
			return res, nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}
		r, err := deps.Store.CreateReminder(ctx, id, content, req.GetString("reminder_type", ""))
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(r), nil
	}
}

func mcpPendingReminders(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, res := requireUUID(req, "session_id")
		if res != nil {
			return res, nil
		}
		reminders, err := deps.Store.PendingReminders(ctx, id)
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(reminders), nil
	}
}

func mcpAcknowledgeReminder(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, res := requireUUID(req, "reminder_id")
		if res != nil {
			return res, nil
		}
		r, err := deps.Store.AcknowledgeReminder(ctx, id)
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(r), nil
	}
}

package api

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/memctx/memctx/internal/storage"
)

func registerTaskTools(s *server.MCPServer, deps MCPDeps) {
	s.AddTool(
		mcp.NewTool("create_main_goal",
			mcp.WithDescription("Create a top-level goal, optionally attached to a project and session."),
			mcp.WithString("title", mcp.Description("Goal title"), mcp.Required()),
			mcp.WithString("description", mcp.Description("Free-form description")),
			mcp.WithString("priority", mcp.Description("One of: "+strings.Join(storage.Priorities, ", ")+" (default medium)")),
			mcp.WithString("project_id", mcp.Description("Optional project UUID")),
			mcp.WithString("session_id", mcp.Description("Optional session UUID")),
			mcp.WithArray("acceptance_criteria", mcp.Description("Conditions for calling the goal done")),
			mcp.WithNumber("estimated_hours", mcp.Description("Estimated effort in hours")),
		),
		mcpCreateMainGoal(deps),
	)

	s.AddTool(
		mcp.NewTool("create_subtask",
			mcp.WithDescription("Create a subtask under a main goal. The main task must be a main goal."),
			mcp.WithString("main_task_id", mcp.Description("Main goal UUID"), mcp.Required()),
			mcp.WithString("title", mcp.Description("Subtask title"), mcp.Required()),
			mcp.WithString("parent_task_id", mcp.Description("Direct parent UUID when nesting under a sibling subtask")),
			mcp.WithString("description", mcp.Description("Free-form description")),
			mcp.WithString("priority", mcp.Description("One of: "+strings.Join(storage.Priorities, ", ")+" (default medium)")),
			mcp.WithString("session_id", mcp.Description("Optional session UUID")),
			mcp.WithArray("acceptance_criteria", mcp.Description("Conditions for calling the subtask done")),
		),
		mcpCreateSubtask(deps),
	)

	s.AddTool(
		mcp.NewTool("update_task",
			mcp.WithDescription("Update fields on a task. Completing a task stamps completed_at and forces progress to 100."),
			mcp.WithString("task_id", mcp.Description("Task UUID"), mcp.Required()),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("description", mcp.Description("New description")),
			mcp.WithString("status", mcp.Description("One of: "+strings.Join(storage.TaskStatuses, ", "))),
			mcp.WithString("priority", mcp.Description("One of: "+strings.Join(storage.Priorities, ", "))),
			mcp.WithNumber("progress_percentage", mcp.Description("Progress in [0,100]")),
			mcp.WithNumber("actual_hours", mcp.Description("Actual effort in hours")),
		),
		mcpUpdateTask(deps),
	)

	s.AddTool(
		mcp.NewTool("get_task",
			mcp.WithDescription("Fetch one task by id."),
			mcp.WithString("task_id", mcp.Description("Task UUID"), mcp.Required()),
		),
		mcpGetTask(deps),
	)

	s.AddTool(
		mcp.NewTool("get_active_main_goals",
			mcp.WithDescription("List unfinished main goals, highest priority first, oldest first within a priority."),
			mcp.WithString("project_id", mcp.Description("Optional project UUID")),
			mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
		),
		mcpActiveMainGoals(deps),
	)

	s.AddTool(
		mcp.NewTool("get_active_subtasks",
			mcp.WithDescription("List the unfinished subtasks under a main goal."),
			mcp.WithString("main_task_id", mcp.Description("Main goal UUID"), mcp.Required()),
		),
		mcpActiveSubtasks(deps),
	)

	s.AddTool(
		mcp.NewTool("set_task_blockers",
			mcp.WithDescription("Replace the set of tasks blocking a task. The blocking mirrors on referenced tasks are kept consistent; an empty set releases a blocked task."),
			mcp.WithString("task_id", mcp.Description("Task UUID"), mcp.Required()),
			mcp.WithArray("blocked_by", mcp.Description("UUIDs of tasks that must finish first")),
		),
		mcpSetTaskBlockers(deps),
	)
}

func taskParamsFromRequest(req mcp.CallToolRequest, title string) (storage.CreateTaskParams, *mcp.CallToolResult) {
	projectID, res := optionalUUID(req, "project_id")
	if res != nil {
		return storage.CreateTaskParams{}, res
	}
	sessionID, res := optionalUUID(req, "session_id")
	if res != nil {
		return storage.CreateTaskParams{}, res
	}

	in := storage.CreateTaskParams{
		Title:              title,
		Description:        req.GetString("description", ""),
		Priority:           req.GetString("priority", ""),
		ProjectID:          projectID,
		SessionID:          sessionID,
		AcceptanceCriteria: req.GetStringSlice("acceptance_criteria", nil),
	}
	if h := req.GetFloat("estimated_hours", 0); h > 0 {
		in.EstimatedHours = &h
	}
	return in, nil
}

func mcpCreateMainGoal(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := req.RequireString("title")
		if err != nil {
			return mcpError("title is required"), nil
		}
		in, res := taskParamsFromRequest(req, title)
		if res != nil {
			return res, nil
		}
		t, err := deps.Store.CreateMainGoal(ctx, in)
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(t), nil
	}
}

func mcpCreateSubtask(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		mainTaskID, res := requireUUID(req, "main_task_id")
		if res != nil {
			return res, nil
		}
		title, err := req.RequireString("title")
		if err != nil {
			return mcpError("title is required"), nil
		}
		parentTaskID, res := optionalUUID(req, "parent_task_id")
		if res != nil {
			return res, nil
		}
		in, res := taskParamsFromRequest(req, title)
		if res != nil {
			return res, nil
		}
		t, err := deps.Store.CreateSubtask(ctx, mainTaskID, parentTaskID, in)
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(t), nil
	}
}

func mcpUpdateTask(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, res := requireUUID(req, "task_id")
		if res != nil {
			return res, nil
		}

		var in storage.UpdateTaskParams
		args := req.GetArguments()
		if _, ok := args["title"]; ok {
			v := req.GetString("title", "")
			in.Title = &v
		}
		if _, ok := args["description"]; ok {
			v := req.GetString("description", "")
			in.Description = &v
		}
		if _, ok := args["status"]; ok {
			v := req.GetString("status", "")
			in.Status = &v
		}
		if _, ok := args["priority"]; ok {
			v := req.GetString("priority", "")
			in.Priority = &v
		}
		if _, ok := args["progress_percentage"]; ok {
			v := req.GetInt("progress_percentage", 0)
			in.ProgressPercentage = &v
		}
		if _, ok := args["actual_hours"]; ok {
			v := req.GetFloat("actual_hours", 0)
			in.ActualHours = &v
		}

		t, err := deps.Store.UpdateTask(ctx, id, in)
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(t), nil
	}
}

func mcpGetTask(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, res := requireUUID(req, "task_id")
		if res != nil {
			return res, nil
		}
		t, err := deps.Store.GetTask(ctx, id)
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(t), nil
	}
}

func mcpActiveMainGoals(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, res := optionalUUID(req, "project_id")
		if res != nil {
			return res, nil
		}
		tasks, err := deps.Store.ActiveMainGoals(ctx, projectID, req.GetInt("limit", 0))
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(tasks), nil
	}
}

func mcpActiveSubtasks(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, res := requireUUID(req, "main_task_id")
		if res != nil {
			return res, nil
		}
		tasks, err := deps.Store.ActiveSubtasks(ctx, id)
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(tasks), nil
	}
}

func mcpSetTaskBlockers(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, res := requireUUID(req, "task_id")
		if res != nil {
			return res, nil
		}

		raw := req.GetStringSlice("blocked_by", nil)
		blockedBy := make([]uuid.UUID, 0, len(raw))
		for _, r := range raw {
			b, err := uuid.Parse(r)
			if err != nil {
				return mcpError("invalid blocked_by entry: " + r), nil
			}
			blockedBy = append(blockedBy, b)
		}

		t, err := deps.Store.SetTaskBlockers(ctx, id, blockedBy)
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(t), nil
	}
}

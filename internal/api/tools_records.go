package api

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/memctx/memctx/internal/storage"
)

func registerRecordTools(s *server.MCPServer, deps MCPDeps) {
	s.AddTool(
		mcp.NewTool("log_decision",
			mcp.WithDescription("Record a decision at the moment it is made. The outcome is always unknown at logging time."),
			mcp.WithString("description", mcp.Description("What was decided"), mcp.Required()),
			mcp.WithString("decision_type", mcp.Description("One of: "+strings.Join(storage.DecisionTypes, ", ")), mcp.Required()),
			mcp.WithString("rationale", mcp.Description("Why")),
			mcp.WithArray("alternatives", mcp.Description("Options that were considered and rejected")),
			mcp.WithString("project_id", mcp.Description("Optional project UUID")),
			mcp.WithString("session_id", mcp.Description("Optional session UUID")),
			mcp.WithString("task_id", mcp.Description("Optional task UUID")),
		),
		mcpLogDecision(deps),
	)

	s.AddTool(
		mcp.NewTool("assess_decision",
			mcp.WithDescription("Record how a decision worked out."),
			mcp.WithString("decision_id", mcp.Description("Decision UUID"), mcp.Required()),
			mcp.WithString("outcome", mcp.Description("How it went, e.g. successful, failed, mixed"), mcp.Required()),
		),
		mcpAssessDecision(deps),
	)

	s.AddTool(
		mcp.NewTool("get_recent_decisions",
			mcp.WithDescription("List decisions newest first. With needing_assessment, only those with no outcome, an unknown outcome, or an unassessed outcome older than a week."),
			mcp.WithString("project_id", mcp.Description("Optional project scope")),
			mcp.WithBoolean("needing_assessment", mcp.Description("Only decisions still awaiting assessment")),
			mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
		),
		mcpRecentDecisions(deps),
	)

	s.AddTool(
		mcp.NewTool("log_error",
			mcp.WithDescription("Record a newly seen error, optionally already with its solution."),
			mcp.WithString("error_message", mcp.Description("The error text"), mcp.Required()),
			mcp.WithString("error_type", mcp.Description("Classification, e.g. build, runtime, config")),
			mcp.WithString("stack_trace", mcp.Description("Stack trace if available")),
			mcp.WithString("reproduction_steps", mcp.Description("How to reproduce")),
			mcp.WithString("solution", mcp.Description("Fix, when already known")),
			mcp.WithArray("tags", mcp.Description("Tags for later filtering")),
			mcp.WithString("project_id", mcp.Description("Optional project UUID")),
			mcp.WithString("session_id", mcp.Description("Optional session UUID")),
			mcp.WithString("task_id", mcp.Description("Optional task UUID")),
		),
		mcpLogError(deps),
	)

	s.AddTool(
		mcp.NewTool("record_error_occurrence",
			mcp.WithDescription("Bump the occurrence counter on a known error, refresh last_occurred_at, and mark it recurring."),
			mcp.WithString("error_id", mcp.Description("Error UUID"), mcp.Required()),
		),
		mcpRecordOccurrence(deps),
	)

	s.AddTool(
		mcp.NewTool("resolve_error",
			mcp.WithDescription("Record the solution on an error entry."),
			mcp.WithString("error_id", mcp.Description("Error UUID"), mcp.Required()),
			mcp.WithString("solution", mcp.Description("How it was fixed"), mcp.Required()),
		),
		mcpResolveError(deps),
	)

	s.AddTool(
		mcp.NewTool("search_errors",
			mcp.WithDescription("Search logged errors by message substring, type, tags, and project; optionally only unresolved ones."),
			mcp.WithString("query", mcp.Description("Substring matched against the error message")),
			mcp.WithString("error_type", mcp.Description("Filter by type")),
			mcp.WithArray("tags", mcp.Description("Entries must carry every listed tag")),
			mcp.WithString("project_id", mcp.Description("Optional project scope")),
			mcp.WithBoolean("unresolved", mcp.Description("Only errors without a solution")),
			mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
		),
		mcpSearchErrors(deps),
	)

	s.AddTool(
		mcp.NewTool("save_code_snapshot",
			mcp.WithDescription("Record a before/after capture of one file, optionally linked to a project, session, task, or decision."),
			mcp.WithString("file_path", mcp.Description("Path of the captured file"), mcp.Required()),
			mcp.WithString("content_before", mcp.Description("File content before the change")),
			mcp.WithString("content_after", mcp.Description("File content after the change")),
			mcp.WithString("diff", mcp.Description("Unified diff")),
			mcp.WithString("language", mcp.Description("Source language")),
			mcp.WithString("git_branch", mcp.Description("Branch at capture time")),
			mcp.WithString("git_commit", mcp.Description("Commit at capture time")),
			mcp.WithString("project_id", mcp.Description("Optional project UUID")),
			mcp.WithString("session_id", mcp.Description("Optional session UUID")),
			mcp.WithString("task_id", mcp.Description("Optional task UUID")),
			mcp.WithString("decision_id", mcp.Description("Optional decision UUID")),
		),
		mcpSaveSnapshot(deps),
	)

	s.AddTool(
		mcp.NewTool("list_code_snapshots",
			mcp.WithDescription("List snapshots newest first, optionally filtered by file path, project, or task."),
			mcp.WithString("file_path", mcp.Description("Exact file path filter")),
			mcp.WithString("project_id", mcp.Description("Optional project scope")),
			mcp.WithString("task_id", mcp.Description("Optional task scope")),
			mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
		),
		mcpListSnapshots(deps),
	)
}

func mcpLogDecision(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		description, err := req.RequireString("description")
		if err != nil {
			return mcpError("description is required"), nil
		}
		decisionType, err := req.RequireString("decision_type")
		if err != nil {
			return mcpError("decision_type is required"), nil
		}
		projectID, res := optionalUUID(req, "project_id")
		if res != nil {
			return res, nil
		}
		sessionID, res := optionalUUID(req, "session_id")
		if res != nil {
			return res, nil
		}
		taskID, res := optionalUUID(req, "task_id")
		if res != nil {
			return res, nil
		}

		d, err := deps.Store.LogDecision(ctx, storage.LogDecisionParams{
			Description:  description,
			Rationale:    req.GetString("rationale", ""),
			DecisionType: decisionType,
			Alternatives: req.GetStringSlice("alternatives", nil),
			ProjectID:    projectID,
			SessionID:    sessionID,
			TaskID:       taskID,
		})
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(d), nil
	}
}

func mcpAssessDecision(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, res := requireUUID(req, "decision_id")
		if res != nil {
			return res, nil
		}
		outcome, err := req.RequireString("outcome")
		if err != nil {
			return mcpError("outcome is required"), nil
		}
		d, err := deps.Store.AssessDecision(ctx, id, outcome)
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(d), nil
	}
}

func mcpRecentDecisions(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, res := optionalUUID(req, "project_id")
		if res != nil {
			return res, nil
		}
		decisions, err := deps.Store.RecentDecisions(ctx, projectID,
			req.GetBool("needing_assessment", false), req.GetInt("limit", 0))
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(decisions), nil
	}
}

func mcpLogError(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("error_message")
		if err != nil {
			return mcpError("error_message is required"), nil
		}
		projectID, res := optionalUUID(req, "project_id")
		if res != nil {
			return res, nil
		}
		sessionID, res := optionalUUID(req, "session_id")
		if res != nil {
			return res, nil
		}
		taskID, res := optionalUUID(req, "task_id")
		if res != nil {
			return res, nil
		}

		e, err := deps.Store.LogError(ctx, storage.LogErrorParams{
			ErrorMessage:      message,
			ErrorType:         req.GetString("error_type", ""),
			StackTrace:        req.GetString("stack_trace", ""),
			ReproductionSteps: req.GetString("reproduction_steps", ""),
			Solution:          req.GetString("solution", ""),
			Tags:              req.GetStringSlice("tags", nil),
			ProjectID:         projectID,
			SessionID:         sessionID,
			TaskID:            taskID,
		})
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(e), nil
	}
}

func mcpRecordOccurrence(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, res := requireUUID(req, "error_id")
		if res != nil {
			return res, nil
		}
		e, err := deps.Store.RecordOccurrence(ctx, id)
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(e), nil
	}
}

func mcpResolveError(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, res := requireUUID(req, "error_id")
		if res != nil {
			return res, nil
		}
		solution, err := req.RequireString("solution")
		if err != nil {
			return mcpError("solution is required"), nil
		}
		e, err := deps.Store.ResolveError(ctx, id, solution)
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(e), nil
	}
}

func mcpSearchErrors(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, res := optionalUUID(req, "project_id")
		if res != nil {
			return res, nil
		}
		entries, err := deps.Store.SearchErrors(ctx, storage.SearchErrorsParams{
			Query:      req.GetString("query", ""),
			ErrorType:  req.GetString("error_type", ""),
			Tags:       req.GetStringSlice("tags", nil),
			ProjectID:  projectID,
			Unresolved: req.GetBool("unresolved", false),
			Limit:      req.GetInt("limit", 0),
		})
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(entries), nil
	}
}

func mcpSaveSnapshot(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filePath, err := req.RequireString("file_path")
		if err != nil {
			return mcpError("file_path is required"), nil
		}
		projectID, res := optionalUUID(req, "project_id")
		if res != nil {
			return res, nil
		}
		sessionID, res := optionalUUID(req, "session_id")
		if res != nil {
			return res, nil
		}
		taskID, res := optionalUUID(req, "task_id")
		if res != nil {
			return res, nil
		}
		decisionID, res := optionalUUID(req, "decision_id")
		if res != nil {
			return res, nil
		}

		c, err := deps.Store.SaveSnapshot(ctx, storage.SaveSnapshotParams{
			FilePath:      filePath,
			ContentBefore: req.GetString("content_before", ""),
			ContentAfter:  req.GetString("content_after", ""),
			Diff:          req.GetString("diff", ""),
			Language:      req.GetString("language", ""),
			GitBranch:     req.GetString("git_branch", ""),
			GitCommit:     req.GetString("git_commit", ""),
			ProjectID:     projectID,
			SessionID:     sessionID,
			TaskID:        taskID,
			DecisionID:    decisionID,
		})
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(c), nil
	}
}

func mcpListSnapshots(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, res := optionalUUID(req, "project_id")
		if res != nil {
			return res, nil
		}
		taskID, res := optionalUUID(req, "task_id")
		if res != nil {
			return res, nil
		}
		snapshots, err := deps.Store.ListSnapshots(ctx,
			req.GetString("file_path", ""), projectID, taskID, req.GetInt("limit", 0))
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(snapshots), nil
	}
}

package api

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/memctx/memctx/internal/storage"
)

func registerProjectTools(s *server.MCPServer, deps MCPDeps) {
	s.AddTool(
		mcp.NewTool("create_project",
			mcp.WithDescription("Create a project. Category is one of: "+strings.Join(storage.Categories, ", ")+"."),
			mcp.WithString("name", mcp.Description("Project name"), mcp.Required()),
			mcp.WithString("category", mcp.Description("Project category"), mcp.Required()),
			mcp.WithString("description", mcp.Description("Free-form description")),
			mcp.WithString("status", mcp.Description("One of: "+strings.Join(storage.ProjectStatuses, ", ")+" (default active)")),
			mcp.WithString("priority", mcp.Description("One of: "+strings.Join(storage.Priorities, ", ")+" (default medium)")),
			mcp.WithArray("tags", mcp.Description("Tags for later filtering")),
			mcp.WithString("parent_project_id", mcp.Description("Optional parent project UUID")),
			mcp.WithNumber("estimated_hours", mcp.Description("Estimated effort in hours")),
		),
		mcpCreateProject(deps),
	)

	s.AddTool(
		mcp.NewTool("update_project",
			mcp.WithDescription("Update fields on an existing project. Omitted fields are left unchanged."),
			mcp.WithString("project_id", mcp.Description("Project UUID"), mcp.Required()),
			mcp.WithString("description", mcp.Description("New description")),
			mcp.WithString("status", mcp.Description("One of: "+strings.Join(storage.ProjectStatuses, ", "))),
			mcp.WithString("priority", mcp.Description("One of: "+strings.Join(storage.Priorities, ", "))),
			mcp.WithArray("tags", mcp.Description("Replacement tag set")),
			mcp.WithNumber("progress_percentage", mcp.Description("Progress in [0,100]")),
			mcp.WithNumber("actual_hours", mcp.Description("Actual effort in hours")),
		),
		mcpUpdateProject(deps),
	)

	s.AddTool(
		mcp.NewTool("get_project",
			mcp.WithDescription("Fetch one project by id."),
			mcp.WithString("project_id", mcp.Description("Project UUID"), mcp.Required()),
		),
		mcpGetProject(deps),
	)

	s.AddTool(
		mcp.NewTool("list_projects",
			mcp.WithDescription("List projects, optionally filtered by status, most recently updated first."),
			mcp.WithString("status", mcp.Description("Filter by status; empty for all")),
			mcp.WithNumber("limit", mcp.Description("Maximum results (default 50)")),
		),
		mcpListProjects(deps),
	)

	s.AddTool(
		mcp.NewTool("search_projects",
			mcp.WithDescription("Full-text search over project names, descriptions, and tags."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
		),
		mcpSearchProjects(deps),
	)

	s.AddTool(
		mcp.NewTool("get_project_status",
			mcp.WithDescription("Project rollup: task counts by status, open errors, decisions awaiting assessment, artifact count."),
			mcp.WithString("project_id", mcp.Description("Project UUID"), mcp.Required()),
		),
		mcpGetProjectStatus(deps),
	)
}

func mcpCreateProject(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}
		category, err := req.RequireString("category")
		if err != nil {
			return mcpError("category is required"), nil
		}
		parentID, res := optionalUUID(req, "parent_project_id")
		if res != nil {
			return res, nil
		}

		in := storage.CreateProjectParams{
			Name:            name,
			Category:        category,
			Description:     req.GetString("description", ""),
			Status:          req.GetString("status", ""),
			Priority:        req.GetString("priority", ""),
			Tags:            req.GetStringSlice("tags", nil),
			ParentProjectID: parentID,
		}
		if h := req.GetFloat("estimated_hours", 0); h > 0 {
			in.EstimatedHours = &h
		}

		p, err := deps.Store.CreateProject(ctx, in)
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(p), nil
	}
}

func mcpUpdateProject(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, res := requireUUID(req, "project_id")
		if res != nil {
			return res, nil
		}

		var in storage.UpdateProjectParams
		args := req.GetArguments()
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
		if _, ok := args["tags"]; ok {
			in.Tags = req.GetStringSlice("tags", []string{})
		}
		if _, ok := args["progress_percentage"]; ok {
			v := req.GetInt("progress_percentage", 0)
			in.ProgressPercentage = &v
		}
		if _, ok := args["actual_hours"]; ok {
			v := req.GetFloat("actual_hours", 0)
			in.ActualHours = &v
		}

		p, err := deps.Store.UpdateProject(ctx, id, in)
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(p), nil
	}
}

func mcpGetProject(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, res := requireUUID(req, "project_id")
		if res != nil {
			return res, nil
		}
		p, err := deps.Store.GetProject(ctx, id)
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(p), nil
	}
}

func mcpListProjects(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projects, err := deps.Store.ListProjects(ctx,
			req.GetString("status", ""), req.GetInt("limit", 0))
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(projects), nil
	}
}

func mcpSearchProjects(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		projects, err := deps.Store.SearchProjects(ctx, query, req.GetInt("limit", 0))
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(projects), nil
	}
}

func mcpGetProjectStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, res := requireUUID(req, "project_id")
		if res != nil {
			return res, nil
		}
		status, err := deps.Store.GetProjectStatus(ctx, id)
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(status), nil
	}
}

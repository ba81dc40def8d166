package api

import (
	"context"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/memctx/memctx/internal/storage"
)

func registerMemoryTools(s *server.MCPServer, deps MCPDeps) {
	s.AddTool(
		mcp.NewTool("log_message",
			mcp.WithDescription("Append one conversation message to an active session. Messages are immutable once written."),
			mcp.WithString("session_id", mcp.Description("Session UUID"), mcp.Required()),
			mcp.WithString("role", mcp.Description("One of: "+strings.Join(storage.MessageRoles, ", ")), mcp.Required()),
			mcp.WithString("content", mcp.Description("Message text"), mcp.Required()),
			mcp.WithString("project_id", mcp.Description("Optional project UUID")),
			mcp.WithString("task_id", mcp.Description("Optional task UUID")),
			mcp.WithNumber("token_count", mcp.Description("Token count for the message")),
			mcp.WithArray("embedding", mcp.Description("Optional embedding vector; without it the message is invisible to semantic search")),
		),
		mcpLogMessage(deps),
	)

	s.AddTool(
		mcp.NewTool("get_session_messages",
			mcp.WithDescription("List a session's messages in insertion order."),
			mcp.WithString("session_id", mcp.Description("Session UUID"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum results (default 100)")),
		),
		mcpSessionMessages(deps),
	)

	s.AddTool(
		mcp.NewTool("search_messages",
			mcp.WithDescription("Rank stored messages by cosine similarity against a query embedding. Score is 1 minus cosine distance."),
			mcp.WithArray("embedding", mcp.Description("Query embedding vector"), mcp.Required()),
			mcp.WithString("project_id", mcp.Description("Optional project scope")),
			mcp.WithNumber("days", mcp.Description("Only match messages from the last N days; 0 for no limit")),
			mcp.WithNumber("limit", mcp.Description("Maximum results (default 10)")),
		),
		mcpSearchMessages(deps),
	)

	s.AddTool(
		mcp.NewTool("save_knowledge",
			mcp.WithDescription("Store a titled fact, global or project-scoped, with an optional validity window."),
			mcp.WithString("title", mcp.Description("Short title"), mcp.Required()),
			mcp.WithString("content", mcp.Description("The fact itself"), mcp.Required()),
			mcp.WithString("knowledge_type", mcp.Description("Free-form kind, e.g. convention, credential_location, gotcha")),
			mcp.WithBoolean("is_global", mcp.Description("Visible in every project scope")),
			mcp.WithString("importance", mcp.Description("One of: "+strings.Join(storage.Priorities, ", ")+" (default medium)")),
			mcp.WithArray("tags", mcp.Description("Tags for later filtering")),
			mcp.WithString("project_id", mcp.Description("Optional project UUID")),
			mcp.WithString("valid_until", mcp.Description("RFC 3339 expiry; omit for no expiry")),
			mcp.WithArray("embedding", mcp.Description("Optional embedding vector for semantic recall")),
		),
		mcpSaveKnowledge(deps),
	)

	s.AddTool(
		mcp.NewTool("search_knowledge",
			mcp.WithDescription("Search knowledge by text, type, and tags. Expired entries never match; global entries match any project scope."),
			mcp.WithString("query", mcp.Description("Substring matched against title and content")),
			mcp.WithString("knowledge_type", mcp.Description("Filter by kind")),
			mcp.WithArray("tags", mcp.Description("Entries must carry every listed tag")),
			mcp.WithString("project_id", mcp.Description("Optional project scope")),
			mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
		),
		mcpSearchKnowledge(deps),
	)

	s.AddTool(
		mcp.NewTool("search_knowledge_semantic",
			mcp.WithDescription("Rank knowledge by cosine similarity against a query embedding, with the same expiry and scope rules as search_knowledge."),
			mcp.WithArray("embedding", mcp.Description("Query embedding vector"), mcp.Required()),
			mcp.WithString("project_id", mcp.Description("Optional project scope")),
			mcp.WithNumber("limit", mcp.Description("Maximum results (default 10)")),
		),
		mcpSearchKnowledgeSemantic(deps),
	)

	s.AddTool(
		mcp.NewTool("touch_knowledge",
			mcp.WithDescription("Record one read of a knowledge entry: bumps access_count and stamps last_accessed_at."),
			mcp.WithString("knowledge_id", mcp.Description("Knowledge UUID"), mcp.Required()),
		),
		mcpTouchKnowledge(deps),
	)
}

func mcpLogMessage(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, res := requireUUID(req, "session_id")
		if res != nil {
			return res, nil
		}
		role, err := req.RequireString("role")
		if err != nil {
			return mcpError("role is required"), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}
		projectID, res := optionalUUID(req, "project_id")
		if res != nil {
			return res, nil
		}
		taskID, res := optionalUUID(req, "task_id")
		if res != nil {
			return res, nil
		}
		embedding, res := embeddingArg(req, "embedding")
		if res != nil {
			return res, nil
		}

		m, err := deps.Store.LogMessage(ctx, storage.LogMessageParams{
			SessionID:  sessionID,
			Role:       role,
			Content:    content,
			ProjectID:  projectID,
			TaskID:     taskID,
			TokenCount: req.GetInt("token_count", 0),
			Embedding:  embedding,
		})
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(m), nil
	}
}

func mcpSessionMessages(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, res := requireUUID(req, "session_id")
		if res != nil {
			return res, nil
		}
		messages, err := deps.Store.SessionMessages(ctx, sessionID, req.GetInt("limit", 0))
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(messages), nil
	}
}

func mcpSearchMessages(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		embedding, res := embeddingArg(req, "embedding")
		if res != nil {
			return res, nil
		}
		if len(embedding) == 0 {
			return mcpError("embedding is required"), nil
		}
		projectID, res := optionalUUID(req, "project_id")
		if res != nil {
			return res, nil
		}
		results, err := deps.Store.SearchMessagesByVector(ctx, embedding, projectID,
			req.GetInt("days", 0), req.GetInt("limit", 0))
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(results), nil
	}
}

func mcpSaveKnowledge(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := req.RequireString("title")
		if err != nil {
			return mcpError("title is required"), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}
		projectID, res := optionalUUID(req, "project_id")
		if res != nil {
			return res, nil
		}
		embedding, res := embeddingArg(req, "embedding")
		if res != nil {
			return res, nil
		}

		in := storage.SaveKnowledgeParams{
			Title:         title,
			Content:       content,
			KnowledgeType: req.GetString("knowledge_type", ""),
			IsGlobal:      req.GetBool("is_global", false),
			Importance:    req.GetString("importance", ""),
			Tags:          req.GetStringSlice("tags", nil),
			ProjectID:     projectID,
			Embedding:     embedding,
		}
		if raw := req.GetString("valid_until", ""); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return mcpError("invalid valid_until: " + err.Error()), nil
			}
			in.ValidUntil = &t
		}

		k, err := deps.Store.SaveKnowledge(ctx, in)
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(k), nil
	}
}

func mcpSearchKnowledge(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, res := optionalUUID(req, "project_id")
		if res != nil {
			return res, nil
		}
		entries, err := deps.Store.SearchKnowledge(ctx, storage.SearchKnowledgeParams{
			Query:         req.GetString("query", ""),
			KnowledgeType: req.GetString("knowledge_type", ""),
			Tags:          req.GetStringSlice("tags", nil),
			ProjectID:     projectID,
			Limit:         req.GetInt("limit", 0),
		})
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(entries), nil
	}
}

func mcpSearchKnowledgeSemantic(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		embedding, res := embeddingArg(req, "embedding")
		if res != nil {
			return res, nil
		}
		if len(embedding) == 0 {
			return mcpError("embedding is required"), nil
		}
		projectID, res := optionalUUID(req, "project_id")
		if res != nil {
			return res, nil
		}
		results, err := deps.Store.SearchKnowledgeByVector(ctx, embedding, projectID, req.GetInt("limit", 0))
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(results), nil
	}
}

func mcpTouchKnowledge(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, res := requireUUID(req, "knowledge_id")
		if res != nil {
			return res, nil
		}
		k, err := deps.Store.TouchKnowledge(ctx, id)
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(k), nil
	}
}

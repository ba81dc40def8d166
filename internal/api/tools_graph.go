package api

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/memctx/memctx/internal/storage"
)

func registerGraphTools(s *server.MCPServer, deps MCPDeps) {
	s.AddTool(
		mcp.NewTool("create_relationship",
			mcp.WithDescription("Link two entities. Entity types: "+strings.Join(storage.EntityKinds, ", ")+". Both endpoints must exist; an entity cannot relate to itself."),
			mcp.WithString("source_type", mcp.Description("Source entity type"), mcp.Required()),
			mcp.WithString("source_id", mcp.Description("Source entity UUID"), mcp.Required()),
			mcp.WithString("target_type", mcp.Description("Target entity type"), mcp.Required()),
			mcp.WithString("target_id", mcp.Description("Target entity UUID"), mcp.Required()),
			mcp.WithString("relationship_type", mcp.Description("Kind of link, e.g. depends_on, caused_by, supersedes"), mcp.Required()),
			mcp.WithNumber("strength", mcp.Description("Link strength in [0,1] (default 0.5)")),
		),
		mcpCreateRelationship(deps),
	)

	s.AddTool(
		mcp.NewTool("get_related_entities",
			mcp.WithDescription("List every relationship touching an entity, from either side, strongest first."),
			mcp.WithString("entity_type", mcp.Description("Entity type"), mcp.Required()),
			mcp.WithString("entity_id", mcp.Description("Entity UUID"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum results (default 50)")),
		),
		mcpRelatedEntities(deps),
	)

	s.AddTool(
		mcp.NewTool("save_artifact",
			mcp.WithDescription("Store an artifact version. parent_artifact_id links a new version to the one it supersedes."),
			mcp.WithString("name", mcp.Description("Artifact name"), mcp.Required()),
			mcp.WithString("artifact_type", mcp.Description("Kind, e.g. document, script, diagram")),
			mcp.WithString("content", mcp.Description("Inline content")),
			mcp.WithString("file_path", mcp.Description("Where the artifact lives on disk")),
			mcp.WithString("parent_artifact_id", mcp.Description("UUID of the superseded version")),
			mcp.WithString("project_id", mcp.Description("Optional project UUID")),
			mcp.WithString("session_id", mcp.Description("Optional session UUID")),
		),
		mcpSaveArtifact(deps),
	)

	s.AddTool(
		mcp.NewTool("get_artifact_versions",
			mcp.WithDescription("Walk an artifact's parent chain back to the root, newest first."),
			mcp.WithString("artifact_id", mcp.Description("Artifact UUID"), mcp.Required()),
		),
		mcpArtifactVersions(deps),
	)

	s.AddTool(
		mcp.NewTool("list_artifacts",
			mcp.WithDescription("List artifacts newest first, optionally filtered by name or project."),
			mcp.WithString("name", mcp.Description("Exact name filter")),
			mcp.WithString("project_id", mcp.Description("Optional project scope")),
			mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
		),
		mcpListArtifacts(deps),
	)
}

func mcpCreateRelationship(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sourceType, err := req.RequireString("source_type")
		if err != nil {
			return mcpError("source_type is required"), nil
		}
		sourceID, res := requireUUID(req, "source_id")
		if res != nil {
			return res, nil
		}
		targetType, err := req.RequireString("target_type")
		if err != nil {
			return mcpError("target_type is required"), nil
		}
		targetID, res := requireUUID(req, "target_id")
		if res != nil {
			return res, nil
		}
		relationshipType, err := req.RequireString("relationship_type")
		if err != nil {
			return mcpError("relationship_type is required"), nil
		}

		r, err := deps.Store.CreateRelationship(ctx,
			storage.EntityRef{Type: sourceType, ID: sourceID},
			storage.EntityRef{Type: targetType, ID: targetID},
			relationshipType,
			req.GetFloat("strength", 0.5))
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(r), nil
	}
}

func mcpRelatedEntities(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entityType, err := req.RequireString("entity_type")
		if err != nil {
			return mcpError("entity_type is required"), nil
		}
		entityID, res := requireUUID(req, "entity_id")
		if res != nil {
			return res, nil
		}
		relationships, err := deps.Store.RelatedEntities(ctx,
			storage.EntityRef{Type: entityType, ID: entityID}, req.GetInt("limit", 0))
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(relationships), nil
	}
}

func mcpSaveArtifact(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}
		parentID, res := optionalUUID(req, "parent_artifact_id")
		if res != nil {
			return res, nil
		}
		projectID, res := optionalUUID(req, "project_id")
		if res != nil {
			return res, nil
		}
		sessionID, res := optionalUUID(req, "session_id")
		if res != nil {
			return res, nil
		}

		a, err := deps.Store.SaveArtifact(ctx, storage.SaveArtifactParams{
			Name:             name,
			ArtifactType:     req.GetString("artifact_type", ""),
			Content:          req.GetString("content", ""),
			FilePath:         req.GetString("file_path", ""),
			ParentArtifactID: parentID,
			ProjectID:        projectID,
			SessionID:        sessionID,
		})
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(a), nil
	}
}

func mcpArtifactVersions(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, res := requireUUID(req, "artifact_id")
		if res != nil {
			return res, nil
		}
		versions, err := deps.Store.ArtifactVersions(ctx, id)
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(versions), nil
	}
}

func mcpListArtifacts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, res := optionalUUID(req, "project_id")
		if res != nil {
			return res, nil
		}
		artifacts, err := deps.Store.ListArtifacts(ctx,
			req.GetString("name", ""), projectID, req.GetInt("limit", 0))
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(artifacts), nil
	}
}

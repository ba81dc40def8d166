package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/memctx/memctx/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store  Store
	Backup BackupRunner // optional; if nil, run_backup returns an error
}

// NewMCPServer creates an MCP server with all memctx tools registered.
// Each tool validates its argument bag, calls exactly one store operation,
// and returns the resulting row(s) as JSON.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"memctx",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("memctx: durable per-project memory. Sessions, tasks, decisions, errors, and knowledge with semantic recall."),
		server.WithRecovery(),
	)

	registerProjectTools(s, deps)
	registerSessionTools(s, deps)
	registerTaskTools(s, deps)
	registerMemoryTools(s, deps)
	registerRecordTools(s, deps)
	registerGraphTools(s, deps)
	registerBackupTools(s, deps)

	return s
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

// mcpJSON marshals a result payload into a text content block.
func mcpJSON(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcpText(string(b))
}

// mcpStoreError renders a store error with its kind prefix so callers can
// distinguish bad input from missing rows from infrastructure trouble.
func mcpStoreError(err error) *mcp.CallToolResult {
	kind := "internal_error"
	switch {
	case errors.As(err, new(*storage.ValidationError)):
		kind = "validation_error"
	case errors.As(err, new(*storage.NotFoundError)):
		kind = "not_found"
	case errors.As(err, new(*storage.ConstraintError)):
		kind = "constraint_error"
	case errors.As(err, new(*storage.TransientError)):
		kind = "transient_error"
	case errors.As(err, new(*storage.IntegrationError)):
		kind = "integration_error"
	}
	return mcpError(fmt.Sprintf("%s: %v", kind, err))
}

func requireUUID(req mcp.CallToolRequest, key string) (uuid.UUID, *mcp.CallToolResult) {
	raw, err := req.RequireString(key)
	if err != nil {
		return uuid.Nil, mcpError(key + " is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, mcpError(fmt.Sprintf("invalid %s: %v", key, err))
	}
	return id, nil
}

func optionalUUID(req mcp.CallToolRequest, key string) (*uuid.UUID, *mcp.CallToolResult) {
	raw := req.GetString(key, "")
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, mcpError(fmt.Sprintf("invalid %s: %v", key, err))
	}
	return &id, nil
}

// embeddingArg reads an optional float array argument. JSON numbers arrive
// as float64; anything else is rejected.
func embeddingArg(req mcp.CallToolRequest, key string) ([]float32, *mcp.CallToolResult) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return nil, nil
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, mcpError(key + " must be an array of numbers")
	}
	out := make([]float32, len(arr))
	for i, v := range arr {
		f, ok := v.(float64)
		if !ok {
			return nil, mcpError(key + " must be an array of numbers")
		}
		out[i] = float32(f)
	}
	return out, nil
}

package api

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func registerBackupTools(s *server.MCPServer, deps MCPDeps) {
	s.AddTool(
		mcp.NewTool("run_backup",
			mcp.WithDescription("Dump the database, commit the dump to the backup repository, and push. Returns the terminal backup record."),
			mcp.WithString("backup_type", mcp.Description("manual or scheduled (default manual)")),
		),
		mcpRunBackup(deps),
	)

	s.AddTool(
		mcp.NewTool("list_backups",
			mcp.WithDescription("List backup runs newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum results (default 10)")),
		),
		mcpListBackups(deps),
	)
}

func mcpRunBackup(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Backup == nil {
			return mcpError("backups not available: no backup repository configured"), nil
		}
		record, err := deps.Backup.Run(ctx, req.GetString("backup_type", "manual"))
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(record), nil
	}
}

func mcpListBackups(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		backups, err := deps.Store.RecentBackups(ctx, req.GetInt("limit", 0))
		if err != nil {
			return mcpStoreError(err), nil
		}
		return mcpJSON(backups), nil
	}
}

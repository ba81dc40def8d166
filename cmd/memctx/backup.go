package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/memctx/memctx/internal/backup"
	"github.com/memctx/memctx/internal/config"
	"github.com/memctx/memctx/internal/storage"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Dump the database and commit it to the backup repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		backupType, _ := cmd.Flags().GetString("type")
		if backupType != "manual" && backupType != "scheduled" {
			return fmt.Errorf("--type must be manual or scheduled, got %q", backupType)
		}
		return runBackup(backupType)
	},
}

func init() {
	backupCmd.Flags().String("type", "manual", "backup type (manual or scheduled)")
}

func runBackup(backupType string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	if cfg.Backup.RepoDir == "" {
		return fmt.Errorf("no backup repository configured, set MEMCTX_BACKUP_REPO_DIR")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	store, err := storage.Open(ctx, cfg.DatabaseURL(), storage.Options{})
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	runner := backup.NewRunner(store, backup.Config{
		DatabaseURL: cfg.DatabaseURL(),
		RepoDir:     cfg.Backup.RepoDir,
		Remote:      cfg.Backup.Remote,
		Branch:      cfg.Backup.Branch,
		Retention:   cfg.Backup.Retention,
		Label:       cfg.Backup.Label,
	}, slog.Default())

	record, err := runner.Run(ctx, backupType)
	if err != nil {
		printError("backup failed: %v", err)
		return err
	}

	if record.CommitRef == "" {
		printSuccess("backup completed, no changes to commit")
	} else {
		printSuccess("backup completed, commit %s", record.CommitRef)
	}
	return nil
}

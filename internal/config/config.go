package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Embedding EmbeddingConfig
	Backup    BackupConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
	DataDir  string
}

type DatabaseConfig struct {
	// URL takes precedence when set; otherwise the connection string is
	// assembled from the individual fields.
	URL              string
	Host             string
	Port             int
	Name             string
	User             string
	Password         string
	SSLMode          string
	StatementTimeout string
}

type EmbeddingConfig struct {
	// Dimension of stored embedding vectors. Must match the vector columns
	// created by the migrations.
	Dimension int
}

type BackupConfig struct {
	// RepoDir is the git working tree that receives compressed dumps.
	RepoDir string
	// Remote is the git remote pushed to after each backup commit.
	Remote string
	// Branch pushed on the remote.
	Branch string
	// Retention is how many dump files are kept in the backups directory.
	Retention int
	// Label prefixes dump file names.
	Label string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port:    4400,
			DataDir: dataDir,
		},
		Database: DatabaseConfig{
			Host:             "localhost",
			Port:             5432,
			Name:             "memctx",
			User:             "memctx",
			SSLMode:          "disable",
			StatementTimeout: "30s",
		},
		Embedding: EmbeddingConfig{
			Dimension: 1536,
		},
		Backup: BackupConfig{
			RepoDir:   filepath.Join(dataDir, "backup-repo"),
			Remote:    "origin",
			Branch:    "main",
			Retention: 10,
			Label:     "memctx",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "memctx")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".memctx"
	}
	return filepath.Join(home, ".local", "share", "memctx")
}

// Load builds configuration from defaults overridden by MEMCTX_* environment
// variables. Connectivity settings never affect query semantics; they are
// consumed only when opening the store and running backups.
func Load() (Config, error) {
	cfg := defaults()
	applyEnvOverrides(&cfg)

	if cfg.Database.URL == "" && strings.TrimSpace(cfg.Database.Name) == "" {
		return Config{}, fmt.Errorf("missing required config: database name. Set MEMCTX_DATABASE_URL or MEMCTX_DATABASE_NAME")
	}
	if cfg.Embedding.Dimension <= 0 {
		return Config{}, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Embedding.Dimension)
	}
	if cfg.Backup.Retention <= 0 {
		return Config{}, fmt.Errorf("backup retention must be positive, got %d", cfg.Backup.Retention)
	}
	return cfg, nil
}

// DatabaseURL returns the connection string, assembling one from the
// individual fields when no explicit URL was provided.
func (c Config) DatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:   "/" + c.Database.Name,
	}
	if c.Database.User != "" {
		if c.Database.Password != "" {
			u.User = url.UserPassword(c.Database.User, c.Database.Password)
		} else {
			u.User = url.User(c.Database.User)
		}
	}
	q := url.Values{}
	if c.Database.SSLMode != "" {
		q.Set("sslmode", c.Database.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

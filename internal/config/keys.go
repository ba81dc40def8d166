package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "MEMCTX_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "MEMCTX_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "server.data_dir", typ: kString, env: "MEMCTX_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Server.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.DataDir },
	},
	{
		key: "database.url", typ: kString, env: "MEMCTX_DATABASE_URL",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Database.URL = v.(string) },
		extract: func(cfg Config) any { return cfg.Database.URL },
	},
	{
		key: "database.host", typ: kString, env: "MEMCTX_DATABASE_HOST",
		apply:   func(cfg *Config, v any) { cfg.Database.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Database.Host },
	},
	{
		key: "database.port", typ: kInt, env: "MEMCTX_DATABASE_PORT",
		apply:   func(cfg *Config, v any) { cfg.Database.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Database.Port },
	},
	{
		key: "database.name", typ: kString, env: "MEMCTX_DATABASE_NAME",
		apply:   func(cfg *Config, v any) { cfg.Database.Name = v.(string) },
		extract: func(cfg Config) any { return cfg.Database.Name },
	},
	{
		key: "database.user", typ: kString, env: "MEMCTX_DATABASE_USER",
		apply:   func(cfg *Config, v any) { cfg.Database.User = v.(string) },
		extract: func(cfg Config) any { return cfg.Database.User },
	},
	{
		key: "database.password", typ: kString, env: "MEMCTX_DATABASE_PASSWORD",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Database.Password = v.(string) },
		extract: func(cfg Config) any { return cfg.Database.Password },
	},
	{
		key: "database.sslmode", typ: kString, env: "MEMCTX_DATABASE_SSLMODE",
		apply:   func(cfg *Config, v any) { cfg.Database.SSLMode = v.(string) },
		extract: func(cfg Config) any { return cfg.Database.SSLMode },
	},
	{
		key: "database.statement_timeout", typ: kString, env: "MEMCTX_DATABASE_STATEMENT_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Database.StatementTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Database.StatementTimeout },
	},
	{
		key: "embedding.dimension", typ: kInt, env: "MEMCTX_EMBEDDING_DIMENSION",
		apply:   func(cfg *Config, v any) { cfg.Embedding.Dimension = v.(int) },
		extract: func(cfg Config) any { return cfg.Embedding.Dimension },
	},
	{
		key: "backup.repo_dir", typ: kString, env: "MEMCTX_BACKUP_REPO_DIR",
		apply:   func(cfg *Config, v any) { cfg.Backup.RepoDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Backup.RepoDir },
	},
	{
		key: "backup.remote", typ: kString, env: "MEMCTX_BACKUP_REMOTE",
		apply:   func(cfg *Config, v any) { cfg.Backup.Remote = v.(string) },
		extract: func(cfg Config) any { return cfg.Backup.Remote },
	},
	{
		key: "backup.branch", typ: kString, env: "MEMCTX_BACKUP_BRANCH",
		apply:   func(cfg *Config, v any) { cfg.Backup.Branch = v.(string) },
		extract: func(cfg Config) any { return cfg.Backup.Branch },
	},
	{
		key: "backup.retention", typ: kInt, env: "MEMCTX_BACKUP_RETENTION",
		apply:   func(cfg *Config, v any) { cfg.Backup.Retention = v.(int) },
		extract: func(cfg Config) any { return cfg.Backup.Retention },
	},
	{
		key: "backup.label", typ: kString, env: "MEMCTX_BACKUP_LABEL",
		apply:   func(cfg *Config, v any) { cfg.Backup.Label = v.(string) },
		extract: func(cfg Config) any { return cfg.Backup.Label },
	},
	{
		key: "log.level", typ: kString, env: "MEMCTX_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

// KeyValue is one config entry for display.
type KeyValue struct {
	Key   string
	Value string
}

// ShowAll returns the configuration as display pairs, masking secrets.
func ShowAll(cfg Config) []KeyValue {
	out := make([]KeyValue, 0, len(specs))
	for _, s := range specs {
		v := fmt.Sprintf("%v", s.extract(cfg))
		if s.secret && v != "" {
			v = "********"
		}
		out = append(out, KeyValue{Key: s.key, Value: v})
	}
	return out
}

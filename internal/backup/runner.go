// Package backup dumps the database into a git repository and pushes it.
// Each run is recorded in the github_backups table: a started row when the
// job begins and a terminal completed or failed row when it ends.
package backup

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/memctx/memctx/internal/storage"
)

// Recorder is the slice of the store the runner writes run records through.
type Recorder interface {
	RecordBackupStart(ctx context.Context, backupType string, tables []string) (storage.BackupRecord, error)
	FinishBackup(ctx context.Context, id uuid.UUID, status, commitRef, message string) (storage.BackupRecord, error)
}

// Config locates the backup repository and the database to dump.
type Config struct {
	DatabaseURL string
	RepoDir     string
	Remote      string // empty disables push
	Branch      string
	Retention   int // dumps to keep; older ones are pruned
	Label       string
}

// Runner executes backup jobs. Command construction is injectable so tests
// can substitute stub binaries.
type Runner struct {
	store  Recorder
	cfg    Config
	log    *slog.Logger
	newCmd func(ctx context.Context, name string, args ...string) *exec.Cmd
}

func NewRunner(store Recorder, cfg Config, log *slog.Logger) *Runner {
	if cfg.Retention <= 0 {
		cfg.Retention = 10
	}
	if cfg.Label == "" {
		cfg.Label = "memctx"
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		store:  store,
		cfg:    cfg,
		log:    log,
		newCmd: exec.CommandContext,
	}
}

// Run performs one backup: dump, prune, commit, push. Any failed step marks
// the record failed and returns an IntegrationError; dumps from earlier runs
// are never touched by a failure.
func (r *Runner) Run(ctx context.Context, backupType string) (storage.BackupRecord, error) {
	record, err := r.store.RecordBackupStart(ctx, backupType, storage.Tables)
	if err != nil {
		return storage.BackupRecord{}, err
	}

	commitRef, message, err := r.execute(ctx, backupType)
	if err != nil {
		r.log.Error("backup failed", "backup_id", record.ID, "error", err)
		if _, ferr := r.store.FinishBackup(ctx, record.ID, "failed", "", err.Error()); ferr != nil {
			r.log.Error("failed to record backup failure", "backup_id", record.ID, "error", ferr)
		}
		return storage.BackupRecord{}, err
	}

	finished, err := r.store.FinishBackup(ctx, record.ID, "completed", commitRef, message)
	if err != nil {
		return storage.BackupRecord{}, err
	}
	r.log.Info("backup completed", "backup_id", record.ID, "commit", commitRef)
	return finished, nil
}

func (r *Runner) execute(ctx context.Context, backupType string) (commitRef, message string, err error) {
	dir := filepath.Join(r.cfg.RepoDir, "backups")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", &storage.IntegrationError{Step: "preparing backup directory", Err: err}
	}

	name := fmt.Sprintf("%s_%s_%s.sql.gz",
		r.cfg.Label, backupType, time.Now().UTC().Format("20060102150405"))
	path := filepath.Join(dir, name)

	size, err := r.dump(ctx, path)
	if err != nil {
		os.Remove(path)
		return "", "", &storage.IntegrationError{Step: "pg_dump", Err: err}
	}

	// An unchanged database produces a dump identical to the previous one
	// (the gzip container differs, the content does not). Drop the new file
	// and finish without touching git.
	if prev := r.latestDump(dir, name); prev != "" {
		same, err := sameDumpContent(filepath.Join(dir, prev), path)
		if err != nil {
			r.log.Warn("could not compare against previous dump", "previous", prev, "error", err)
		} else if same {
			os.Remove(path)
			r.log.Info("database unchanged since last dump", "previous", prev)
			return "", fmt.Sprintf("no changes since %s", prev), nil
		}
	}

	if err := r.prune(dir); err != nil {
		return "", "", &storage.IntegrationError{Step: "pruning old dumps", Err: err}
	}

	commitRef, err = r.commitAndPush(ctx, name)
	if err != nil {
		return "", "", err
	}

	if commitRef == "" {
		return "", fmt.Sprintf("%s (%d bytes), no changes to commit", name, size), nil
	}
	return commitRef, fmt.Sprintf("%s (%d bytes)", name, size), nil
}

// dump streams pg_dump output through gzip into path and returns the
// compressed size.
func (r *Runner) dump(ctx context.Context, path string) (int64, error) {
	cmd := r.newCmd(ctx, "pg_dump", "--dbname="+r.cfg.DatabaseURL)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	gz := gzip.NewWriter(f)

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(gz, stdout)
		return err
	})

	copyErr := g.Wait()
	waitErr := cmd.Wait()
	if waitErr != nil {
		return 0, fmt.Errorf("%w: %s", waitErr, strings.TrimSpace(stderr.String()))
	}
	if copyErr != nil {
		return 0, copyErr
	}
	if err := gz.Close(); err != nil {
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// latestDump returns the newest dump in dir other than exclude, or "" when
// none exists.
func (r *Runner) latestDump(dir, exclude string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	var dumps []string
	prefix := r.cfg.Label + "_"
	for _, e := range entries {
		if e.IsDir() || e.Name() == exclude {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".sql.gz") {
			dumps = append(dumps, e.Name())
		}
	}
	if len(dumps) == 0 {
		return ""
	}
	sort.Strings(dumps)
	return dumps[len(dumps)-1]
}

// sameDumpContent compares the decompressed content of two dumps.
func sameDumpContent(a, b string) (bool, error) {
	da, err := dumpDigest(a)
	if err != nil {
		return false, err
	}
	db, err := dumpDigest(b)
	if err != nil {
		return false, err
	}
	return da == db, nil
}

func dumpDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", err
	}
	defer gz.Close()

	h := sha256.New()
	if _, err := io.Copy(h, gz); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// prune removes dumps beyond the retention count, oldest first. Timestamped
// names sort chronologically, so lexical order is enough.
func (r *Runner) prune(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var dumps []string
	prefix := r.cfg.Label + "_"
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".sql.gz") {
			dumps = append(dumps, e.Name())
		}
	}
	if len(dumps) <= r.cfg.Retention {
		return nil
	}

	sort.Strings(dumps)
	for _, name := range dumps[:len(dumps)-r.cfg.Retention] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return err
		}
		r.log.Debug("pruned old dump", "file", name)
	}
	return nil
}

// commitAndPush stages the repository and commits. A clean work tree is a
// successful no-op with an empty commit ref.
func (r *Runner) commitAndPush(ctx context.Context, dumpName string) (string, error) {
	if _, err := r.git(ctx, "add", "-A"); err != nil {
		return "", &storage.IntegrationError{Step: "git add", Err: err}
	}

	status, err := r.git(ctx, "status", "--porcelain")
	if err != nil {
		return "", &storage.IntegrationError{Step: "git status", Err: err}
	}
	if strings.TrimSpace(status) == "" {
		return "", nil
	}

	if _, err := r.git(ctx, "commit", "-m", "backup: "+dumpName); err != nil {
		return "", &storage.IntegrationError{Step: "git commit", Err: err}
	}
	ref, err := r.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", &storage.IntegrationError{Step: "git rev-parse", Err: err}
	}
	ref = strings.TrimSpace(ref)

	if r.cfg.Remote != "" {
		if _, err := r.git(ctx, "push", r.cfg.Remote, r.cfg.Branch); err != nil {
			return "", &storage.IntegrationError{Step: "git push", Err: err}
		}
	}
	return ref, nil
}

func (r *Runner) git(ctx context.Context, args ...string) (string, error) {
	cmd := r.newCmd(ctx, "git", args...)
	cmd.Dir = r.cfg.RepoDir
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s",
			args[0], err, strings.TrimSpace(stderr.String()))
	}
	return out.String(), nil
}

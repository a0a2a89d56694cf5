// pkg/history/history.go - run history kept in a local SQLite database

package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/windowsadmins/winmaint/pkg/result"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store records finished runs.
type Store struct {
	db *sql.DB
}

// Run is one recorded run.
type Run struct {
	ID     int64
	Status string
	Report result.RunReport
}

// Open opens (creating if needed) the history database at path and applies
// pending migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging history database: %w", err)
	}
	// Single writer connection for SQLite
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Record stores a run report and its module results in one transaction.
func (s *Store) Record(ctx context.Context, r *result.RunReport) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	totals := r.Totals()
	res, err := tx.ExecContext(ctx, `INSERT INTO runs
		(session_id, host, run_type, dry_run, interrupted, status, config_source, config_hash,
		 started_at, finished_at, items_detected, items_processed, items_failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Host, r.RunType, boolInt(r.DryRun), boolInt(r.Interrupted), r.Status(),
		r.ConfigSource, r.ConfigHash,
		r.StartedAt.UTC().Format(timeLayout), r.FinishedAt.UTC().Format(timeLayout),
		totals.Detected, totals.Processed, totals.Failed)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	for _, m := range r.Results {
		startedAt := ""
		if !m.StartedAt.IsZero() {
			startedAt = m.StartedAt.UTC().Format(timeLayout)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO module_results
			(run_id, module, task_number, status, success, dry_run, items_detected, items_processed,
			 items_failed, items_skipped, started_at, duration_ms, error, inventory)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, m.Module, m.TaskNumber, m.Status, boolInt(m.Success), boolInt(m.DryRun),
			m.Detected, m.Processed, m.Failed, m.Skipped,
			startedAt, m.Duration.Milliseconds(), m.Error, m.Inventory); err != nil {
			return 0, fmt.Errorf("inserting result for %s: %w", m.Module, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// Recent returns the last n runs, newest first, with their module results.
func (s *Store) Recent(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, session_id, host, run_type, dry_run, interrupted,
		status, config_source, config_hash, started_at, finished_at
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run                 Run
			dryRun, interrupted int
			started, finished   string
		)
		rep := &run.Report
		if err := rows.Scan(&run.ID, &rep.SessionID, &rep.Host, &rep.RunType, &dryRun, &interrupted,
			&run.Status, &rep.ConfigSource, &rep.ConfigHash, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		rep.DryRun = dryRun != 0
		rep.Interrupted = interrupted != 0
		rep.StartedAt, _ = time.Parse(timeLayout, started)
		rep.FinishedAt, _ = time.Parse(timeLayout, finished)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	rows.Close()

	for i := range runs {
		results, err := s.moduleResults(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Report.Results = results
	}
	return runs, nil
}

func (s *Store) moduleResults(ctx context.Context, runID int64) ([]result.ModuleResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT module, task_number, status, success, dry_run,
		items_detected, items_processed, items_failed, items_skipped, started_at, duration_ms, error, inventory
		FROM module_results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying module results: %w", err)
	}
	defer rows.Close()

	var out []result.ModuleResult
	for rows.Next() {
		var (
			m               result.ModuleResult
			success, dryRun int
			started         string
			durationMS      int64
		)
		if err := rows.Scan(&m.Module, &m.TaskNumber, &m.Status, &success, &dryRun,
			&m.Detected, &m.Processed, &m.Failed, &m.Skipped, &started, &durationMS, &m.Error, &m.Inventory); err != nil {
			return nil, fmt.Errorf("scanning module result: %w", err)
		}
		m.Success = success != 0
		m.DryRun = dryRun != 0
		m.Duration = time.Duration(durationMS) * time.Millisecond
		if started != "" {
			m.StartedAt, _ = time.Parse(timeLayout, started)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep runs and returns how many were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id NOT IN
		(SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}
	return res.RowsAffected()
}

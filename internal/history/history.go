// Package history keeps an append-only sqlite audit trail of registry
// mutations and migration runs. The registry never depends on it;
// recording failures are degraded conditions the caller logs and
// absorbs.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zjrosen/modelver/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Event is one recorded registry mutation.
type Event struct {
	ID          int64
	OccurredAt  time.Time
	EventType   string // "register" or "delete"
	ModelID     string
	Version     string
	ContentHash string
}

// MigrationRun is one recorded migration attempt.
type MigrationRun struct {
	ID          int64
	RunID       string
	OccurredAt  time.Time
	ModelID     string
	FromVersion string
	ToVersion   string
	Outcome     string // "success" or "failure"
	Error       string
}

// Store is the sqlite-backed audit store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the audit database at path and applies
// pending schema migrations. Parent directories are created with owner-
// only permissions since the file may name private model artifacts.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history schema: %w", err)
	}

	log.Info(log.CatHistory, "history store opened", "path", path)
	return &Store{db: db, path: path}, nil
}

func applyMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := newMigrateDriver(db)
	if err != nil {
		return fmt.Errorf("wrap database: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("build migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRegister appends a register event.
func (s *Store) RecordRegister(ctx context.Context, modelID, versionStr, contentHash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_type, model_id, version, content_hash) VALUES ('register', ?, ?, ?)`,
		modelID, versionStr, contentHash)
	if err != nil {
		return fmt.Errorf("record register event: %w", err)
	}
	return nil
}

// RecordDelete appends a delete event.
func (s *Store) RecordDelete(ctx context.Context, modelID, versionStr string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_type, model_id, version) VALUES ('delete', ?, ?)`,
		modelID, versionStr)
	if err != nil {
		return fmt.Errorf("record delete event: %w", err)
	}
	return nil
}

// RecordMigration appends a migration run with a fresh run id.
func (s *Store) RecordMigration(ctx context.Context, modelID, from, to string, runErr error) error {
	outcome := "success"
	errMsg := ""
	if runErr != nil {
		outcome = "failure"
		errMsg = runErr.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO migration_runs (run_id, model_id, from_version, to_version, outcome, error) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), modelID, from, to, outcome, errMsg)
	if err != nil {
		return fmt.Errorf("record migration run: %w", err)
	}
	return nil
}

// Events returns the most recent mutation events for a model, newest
// first. An empty modelID returns events for every model.
func (s *Store) Events(ctx context.Context, modelID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, occurred_at, event_type, model_id, version, content_hash
		FROM events`
	args := []any{}
	if modelID != "" {
		query += ` WHERE model_id = ?`
		args = append(args, modelID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.OccurredAt, &e.EventType, &e.ModelID, &e.Version, &e.ContentHash); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// MigrationRuns returns the most recent migration runs for a model,
// newest first. An empty modelID returns runs for every model.
func (s *Store) MigrationRuns(ctx context.Context, modelID string, limit int) ([]MigrationRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, run_id, occurred_at, model_id, from_version, to_version, outcome, error
		FROM migration_runs`
	args := []any{}
	if modelID != "" {
		query += ` WHERE model_id = ?`
		args = append(args, modelID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query migration runs: %w", err)
	}
	defer rows.Close()

	var runs []MigrationRun
	for rows.Next() {
		var r MigrationRun
		if err := rows.Scan(&r.ID, &r.RunID, &r.OccurredAt, &r.ModelID, &r.FromVersion, &r.ToVersion, &r.Outcome, &r.Error); err != nil {
			return nil, fmt.Errorf("scan migration run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migration runs: %w", err)
	}
	return runs, nil
}

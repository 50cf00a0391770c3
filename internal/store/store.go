// Package store provides the SQLite-backed persistence layer for
// executions, steps, artifacts, findings, projects and the execution
// audit log.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scscodes/conductor/internal/core"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// Store owns the database handle shared by all entity stores. It is
// created once at process start and injected into every component that
// needs persistence.
type Store struct {
	dbPath string
	db     *sql.DB
	mu     sync.RWMutex
}

// Open opens (or creates) the database at dbPath with WAL mode and
// foreign keys enabled, and applies pending migrations.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{dbPath: dbPath, db: db}
	if err := s.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		// Table doesn't exist yet, run initial migration
		version = 0
	}

	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}

	return nil
}

// requireExecution verifies an execution row exists. Callers hold the
// appropriate lock.
func (s *Store) requireExecution(ctx context.Context, id core.ExecutionID) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM workflow_executions_v2 WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return core.ErrNotFound("execution", string(id))
	}
	if err != nil {
		return fmt.Errorf("checking execution reference: %w", err)
	}
	return nil
}

// requireProject verifies a project row exists. Callers hold the
// appropriate lock.
func (s *Store) requireProject(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM projects WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return core.ErrNotFound("project", id)
	}
	if err != nil {
		return fmt.Errorf("checking project reference: %w", err)
	}
	return nil
}

func unmarshalMap(data string, dst *map[string]string) error {
	return json.Unmarshal([]byte(data), dst)
}

// escapeLike escapes LIKE metacharacters in user-supplied prefixes.
func escapeLike(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `%`, `\%`)
	v = strings.ReplaceAll(v, `_`, `\_`)
	return v
}

// Helper functions for nullable values

func nullableString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

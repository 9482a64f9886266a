package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"drivesync/internal/config"
)

// Store persists session reports in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// ErrNotFound indicates no archived session matches the requested ID.
var ErrNotFound = errors.New("session not found")

// Writers from a concurrent CLI invocation can hold the database briefly;
// busy errors are retried with a short doubling backoff.
const (
	sqliteBusyCode = 5
	busyAttempts   = 5
	busyBaseDelay  = 10 * time.Millisecond
	busyDelayCap   = 200 * time.Millisecond
)

var openPragmas = [...]string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

// Open initializes or connects to the report database under the state
// directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.ReportDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.prepare(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) prepare() error {
	for _, pragma := range openPragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	return s.applyMigrations(context.Background())
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func isSQLiteBusy(err error) bool {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		return coder.Code() == sqliteBusyCode
	}
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withBusyRetry runs op, retrying busy errors with capped doubling delays.
// Any other failure, or the final busy error, is returned as is.
func withBusyRetry(ctx context.Context, op func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var err error
	for attempt, delay := 1, busyBaseDelay; ; attempt, delay = attempt+1, min(delay*2, busyDelayCap) {
		if err = op(); err == nil || !isSQLiteBusy(err) || attempt == busyAttempts {
			return err
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := withBusyRetry(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

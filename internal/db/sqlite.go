// SQLite connection provider.
//
// Environment (read by internal/config):
//   - DATABASE_URL: sqlite:///relative.db, sqlite:////abs/path.db, sqlite:///:memory:
//     or a bare file path (default: sqlite:///webapp.db)
//   - DB_TIMEOUT: busy timeout applied to every connection (default: 5s)

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/webapp-auth/backend/internal/config"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

var (
	ErrConnection     = errors.New("database connection failed")
	ErrInvalidURL     = errors.New("invalid database url")
	ErrInvalidTimeout = errors.New("invalid database timeout")
)

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLite struct {
	DB      *sql.DB
	path    string
	memory  bool
	timeout time.Duration

	// ready is set once createSchema has succeeded; provisionMu serializes
	// the attempts until then.
	ready       atomic.Bool
	provisionMu sync.Mutex
}

// NewSQLite opens the handle without touching the file. The store is
// provisioned by the first successful WithConn call.
func NewSQLite(cfg config.DatabaseConfig) (*SQLite, error) {
	path, memory, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout < 0 {
		return nil, fmt.Errorf("%w: DB_TIMEOUT %q", ErrInvalidTimeout, cfg.Timeout)
	}

	handle, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	if memory {
		// every new connection to :memory: is a separate database
		handle.SetMaxOpenConns(1)
		handle.SetConnMaxLifetime(0)
	}

	return newSQLite(handle, path, memory, timeout), nil
}

func newSQLite(handle *sql.DB, path string, memory bool, timeout time.Duration) *SQLite {
	return &SQLite{
		DB:      handle,
		path:    path,
		memory:  memory,
		timeout: timeout,
	}
}

func (s *SQLite) Close() error {
	return s.DB.Close()
}

func (s *SQLite) Path() string {
	return s.path
}

// WithConn acquires a dedicated connection, applies the per-connection
// pragmas, checks liveness and runs fn inside a transaction. The transaction
// is committed when fn returns nil and rolled back otherwise; the connection
// is released on every path.
func (s *SQLite) WithConn(ctx context.Context, fn func(ctx context.Context, q Querier) error) (err error) {
	conn, err := s.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			logrus.WithError(closeErr).Warn("Failed to release database connection")
		}
	}()

	if err := s.prepare(ctx, conn); err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	if err := s.provision(ctx, conn); err != nil {
		return fmt.Errorf("%w: provision schema: %w", ErrConnection, err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", ErrConnection, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logrus.WithError(rbErr).Warn("Failed to roll back transaction")
			}
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// EnsureSchema creates both tables if they are missing. Safe to call any
// number of times.
func (s *SQLite) EnsureSchema(ctx context.Context) error {
	return s.WithConn(ctx, func(ctx context.Context, q Querier) error {
		return createSchema(ctx, q)
	})
}

// Ping runs a full acquisition cycle.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.WithConn(ctx, func(context.Context, Querier) error { return nil })
}

func (s *SQLite) prepare(ctx context.Context, conn Querier) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.timeout.Milliseconds()),
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	var one int
	if err := conn.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("liveness check: %w", err)
	}
	return nil
}

// provision creates the schema on the first successful acquisition. Callers
// that arrive while another connection is provisioning wait for it; a failed
// attempt leaves the store unprovisioned so the next acquisition retries.
func (s *SQLite) provision(ctx context.Context, conn Querier) error {
	if s.ready.Load() {
		return nil
	}

	s.provisionMu.Lock()
	defer s.provisionMu.Unlock()
	if s.ready.Load() {
		return nil
	}

	fresh := s.memory || s.isEmptyFile()
	if err := createSchema(ctx, conn); err != nil {
		return err
	}
	s.ready.Store(true)

	if fresh {
		logrus.WithField("path", s.path).Info("Provisioned database schema")
	}
	return nil
}

// isEmptyFile reports whether the database file holds no pages yet. The
// driver creates the file when the first connection opens, so existence
// alone says nothing about the schema.
func (s *SQLite) isEmptyFile() bool {
	info, err := os.Stat(s.path)
	return err != nil || info.Size() == 0
}

func createSchema(ctx context.Context, q Querier) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			email TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER,
			token TEXT UNIQUE NOT NULL,
			expires_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users (id)
		)
		`,
		`CREATE INDEX IF NOT EXISTS sessions_user_id_idx ON sessions(user_id)`,
	}

	for _, query := range queries {
		if _, err := q.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// ParseURL accepts the sqlite:/// URL forms and bare paths.
func ParseURL(raw string) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	path := raw
	if rest, ok := strings.CutPrefix(raw, "sqlite://"); ok {
		if !strings.HasPrefix(rest, "/") {
			return "", false, fmt.Errorf("%w: host component not supported in %q", ErrInvalidURL, raw)
		}
		path = rest[1:]
	} else if strings.Contains(raw, "://") {
		return "", false, fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidURL, raw)
	}

	if path == "" {
		return "", false, fmt.Errorf("%w: missing path in %q", ErrInvalidURL, raw)
	}
	return path, path == ":memory:", nil
}

// Package store provides PostgreSQL persistence for focus: the durable
// job queue, recorded agent sessions, and read access to the Focus
// workspace tables (projects, people, tasks, commitments, sprints).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx database/sql driver
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Connection pool limits. Hook invocations are short-lived and the
// worker holds at most a handful of connections.
const (
	maxOpenConns    = 30
	maxIdleConns    = 10
	connMaxIdleTime = 5 * time.Minute
)

// Store wraps a PostgreSQL connection pool.
type Store struct {
	db *sql.DB
}

// New wraps an existing database handle. Used by tests with sqlmock.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL using the given DSN and verifies the
// connection with a ping.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// newID generates a time-ordered UUID for new rows.
func newID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

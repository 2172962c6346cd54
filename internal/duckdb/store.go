// Package duckdb implements the record store and the ingestion job table on
// top of an embedded DuckDB database.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/tinytelemetry/onuwatch/internal/duckdb/migrate"
)

const defaultQueryTimeout = 30 * time.Second

// Store manages the DuckDB connection. Writes hold the write lock, reads hold
// the read lock and run under QueryTimeout.
type Store struct {
	db           *sql.DB
	mu           sync.RWMutex
	dbPath       string
	log          *slog.Logger
	now          func() time.Time
	QueryTimeout time.Duration
}

// NewStore opens or creates a DuckDB database and applies pending migrations.
// If dbPath is empty, an in-memory database is used.
// An optional queryTimeout can be passed; it defaults to 30s.
func NewStore(dbPath string, queryTimeout ...time.Duration) (*Store, error) {
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := migrate.NewRunner(db).Run(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	qt := defaultQueryTimeout
	if len(queryTimeout) > 0 && queryTimeout[0] > 0 {
		qt = queryTimeout[0]
	}

	return &Store{
		db:           db,
		dbPath:       dbPath,
		log:          slog.Default().With("component", "duckdb"),
		now:          time.Now,
		QueryTimeout: qt,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// queryCtx returns a context with the store's configured query timeout.
func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.QueryTimeout)
}

// writeCtx bounds a write by both the caller's context and QueryTimeout.
func (s *Store) writeCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, s.QueryTimeout)
}

func (s *Store) utcNow() time.Time {
	return s.now().UTC()
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

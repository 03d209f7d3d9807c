package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/sliink/queuesync/internal/duckdb/migrate"
	"github.com/sliink/queuesync/internal/model"
	"github.com/sliink/queuesync/internal/sqltable"
)

// Store manages the DuckDB connection and upserts product batches.
type Store struct {
	db           *sql.DB
	mu           sync.Mutex
	dbPath       string
	QueryTimeout time.Duration
}

// NewStore opens or creates a DuckDB database and applies migrations.
// If dbPath is empty, an in-memory database is used.
// An optional queryTimeout can be passed; it defaults to 30s.
func NewStore(dbPath string, queryTimeout ...time.Duration) (*Store, error) {
	dsn := ""
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, err
		}
		dsn = dbPath
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, err
	}

	if _, err := migrate.NewRunner(db).Run(); err != nil {
		db.Close()
		return nil, err
	}

	qt := 30 * time.Second
	if len(queryTimeout) > 0 && queryTimeout[0] > 0 {
		qt = queryTimeout[0]
	}

	return &Store{
		db:           db,
		dbPath:       dbPath,
		QueryTimeout: qt,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// DBPath returns the configured path. Empty means in-memory.
func (s *Store) DBPath() string {
	return s.dbPath
}

// EnsureTable creates the table and its schema when missing.
func (s *Store) EnsureTable(ctx context.Context, table sqltable.Name) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ddl := sqltable.CreateSchemaSQL(table); ddl != "" {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create schema %s: %w", table.Schema, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, sqltable.CreateTableSQL(table)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// Upsert writes rows with one INSERT ... ON CONFLICT statement and returns
// the number of rows written.
func (s *Store) Upsert(ctx context.Context, table sqltable.Name, rows []model.Product) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := sqltable.CheckUniqueKeys(rows); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.QueryTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("upsert %s: begin: %w", table, err)
	}
	for _, chunk := range sqltable.Chunks(rows) {
		query, args := sqltable.UpsertSQL(table, chunk)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("upsert %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("upsert %s: commit: %w", table, err)
	}
	return len(rows), nil
}

// RecordUpsert appends an audit row for a written batch. Failures are logged.
func (s *Store) RecordUpsert(batchID string, table sqltable.Name, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`INSERT INTO upsert_log (batch_id, table_name, row_count) VALUES (?, ?, ?)`,
		batchID, table.String(), rows); err != nil {
		log.Printf("duckdb: upsert log write failed (batch=%s): %v", batchID, err)
	}
}

// Store satisfies the table writer used by the table output.
var _ sqltable.Writer = (*Store)(nil)

// Package postgres upserts product batches into a Postgres table.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sliink/queuesync/internal/model"
	"github.com/sliink/queuesync/internal/sqltable"
)

// Writer upserts products through a pgx connection pool.
type Writer struct {
	pool         *pgxpool.Pool
	QueryTimeout time.Duration
}

var _ sqltable.Writer = (*Writer)(nil)

// ParseConfig validates a connection string and applies the pool size.
func ParseConfig(dsn string, maxConns int32) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	return cfg, nil
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string, maxConns int32) (*Writer, error) {
	cfg, err := ParseConfig(dsn, maxConns)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Writer{pool: pool, QueryTimeout: 30 * time.Second}, nil
}

// EnsureTable creates the table and its schema when missing.
func (w *Writer) EnsureTable(ctx context.Context, table sqltable.Name) error {
	if ddl := sqltable.CreateSchemaSQL(table); ddl != "" {
		if _, err := w.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create schema %s: %w", table.Schema, err)
		}
	}
	if _, err := w.pool.Exec(ctx, sqltable.CreateTableSQL(table)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// Upsert writes rows and returns the affected row count. Inputs larger
// than one statement's parameter limit are split into chunks sent as a
// single batch, which Postgres runs in one implicit transaction.
func (w *Writer) Upsert(ctx context.Context, table sqltable.Name, rows []model.Product) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := sqltable.CheckUniqueKeys(rows); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, w.QueryTimeout)
	defer cancel()

	batch := upsertBatch(table, rows)
	results := w.pool.SendBatch(ctx, batch)

	affected := 0
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("upsert %s (chunk %d of %d): %w", table, i+1, batch.Len(), err)
		}
		affected += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("upsert %s: %w", table, err)
	}
	return affected, nil
}

// upsertBatch queues one upsert statement per chunk of rows.
func upsertBatch(table sqltable.Name, rows []model.Product) *pgx.Batch {
	batch := &pgx.Batch{}
	for _, chunk := range sqltable.Chunks(rows) {
		query, args := sqltable.UpsertSQL(table, chunk)
		batch.Queue(query, args...)
	}
	return batch
}

// Close releases the pool.
func (w *Writer) Close() error {
	w.pool.Close()
	return nil
}

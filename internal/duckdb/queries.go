package duckdb

import (
	"context"
	"fmt"

	"github.com/sliink/queuesync/internal/model"
	"github.com/sliink/queuesync/internal/sqltable"
)

// UpsertLogEntry is one row of the upsert audit log.
type UpsertLogEntry struct {
	BatchID   string `json:"batch_id"`
	TableName string `json:"table_name"`
	RowCount  int    `json:"row_count"`
}

// CountRows returns the number of rows in table.
func (s *Store) CountRows(ctx context.Context, table sqltable.Name) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.QueryTimeout)
	defer cancel()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table.Quoted()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// ListProducts returns up to limit rows ordered by id.
func (s *Store) ListProducts(ctx context.Context, table sqltable.Name, limit int) ([]model.Product, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := context.WithTimeout(ctx, s.QueryTimeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT "%s", "%s", "%s" FROM %s ORDER BY "%s" LIMIT ?`,
		sqltable.ColumnID, sqltable.ColumnName, sqltable.ColumnCost, table.Quoted(), sqltable.ColumnID)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ProductID, &p.Name, &p.Cost); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecentUpserts returns the latest audit rows, newest first.
func (s *Store) RecentUpserts(ctx context.Context, limit int) ([]UpsertLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	ctx, cancel := context.WithTimeout(ctx, s.QueryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_id, table_name, row_count FROM upsert_log ORDER BY upserted_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UpsertLogEntry
	for rows.Next() {
		var e UpsertLogEntry
		if err := rows.Scan(&e.BatchID, &e.TableName, &e.RowCount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

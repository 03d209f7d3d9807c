package sqltable

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sliink/queuesync/internal/model"
)

// ErrDuplicateKey is returned when one batch carries the same id twice;
// a single upsert statement cannot touch a row more than once.
var ErrDuplicateKey = errors.New("sqltable: duplicate primary key in batch")

// Column names of the products table.
const (
	ColumnID   = "ProductId"
	ColumnName = "Name"
	ColumnCost = "Cost"
)

// Value ranges of the products table columns. ProductId and Cost are
// 32-bit INTEGER columns and Name is VARCHAR(MaxNameLength).
const (
	MinInt        = math.MinInt32
	MaxInt        = math.MaxInt32
	MaxNameLength = 100
)

// MaxParams is the PostgreSQL limit on bind parameters per statement.
const MaxParams = 65535

// MaxRowsPerStatement is the most rows one upsert statement can carry.
const MaxRowsPerStatement = MaxParams / 3

// Writer upserts products into a named table.
type Writer interface {
	EnsureTable(ctx context.Context, table Name) error
	Upsert(ctx context.Context, table Name, rows []model.Product) (int, error)
	Close() error
}

// CheckUniqueKeys reports the first repeated ProductID.
func CheckUniqueKeys(rows []model.Product) error {
	seen := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.ProductID]; ok {
			return fmt.Errorf("%w: ProductId=%d", ErrDuplicateKey, r.ProductID)
		}
		seen[r.ProductID] = struct{}{}
	}
	return nil
}

// CreateTableSQL returns the DDL for the products table.
func CreateTableSQL(table Name) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	"%s" INTEGER PRIMARY KEY,
	"%s" VARCHAR(%d) NOT NULL,
	"%s" INTEGER NOT NULL
)`, table.Quoted(), ColumnID, ColumnName, MaxNameLength, ColumnCost)
}

// CreateSchemaSQL returns the DDL for the table's schema, or "" when the
// name is unqualified.
func CreateSchemaSQL(table Name) string {
	if table.Schema == "" {
		return ""
	}
	return "CREATE SCHEMA IF NOT EXISTS " + Name{Table: table.Schema}.Quoted()
}

// Chunks splits rows into consecutive slices of at most
// MaxRowsPerStatement rows. An empty input yields no chunks.
func Chunks(rows []model.Product) [][]model.Product {
	var chunks [][]model.Product
	for len(rows) > MaxRowsPerStatement {
		chunks = append(chunks, rows[:MaxRowsPerStatement:MaxRowsPerStatement])
		rows = rows[MaxRowsPerStatement:]
	}
	if len(rows) > 0 {
		chunks = append(chunks, rows)
	}
	return chunks
}

// UpsertSQL builds one multi-row upsert with $n placeholders and its
// arguments. Rows must have unique ids and fit in one statement; split
// larger inputs with Chunks.
func UpsertSQL(table Name, rows []model.Product) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(rows)*3)

	fmt.Fprintf(&b, `INSERT INTO %s ("%s", "%s", "%s") VALUES `, table.Quoted(), ColumnID, ColumnName, ColumnCost)
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		n := i * 3
		fmt.Fprintf(&b, "($%d, $%d, $%d)", n+1, n+2, n+3)
		args = append(args, r.ProductID, r.Name, r.Cost)
	}
	fmt.Fprintf(&b, ` ON CONFLICT ("%s") DO UPDATE SET "%s" = excluded."%s", "%s" = excluded."%s"`,
		ColumnID, ColumnName, ColumnName, ColumnCost, ColumnCost)

	return b.String(), args
}

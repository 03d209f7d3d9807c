package migrate

import (
	"database/sql"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunAppliesAllMigrations(t *testing.T) {
	db := openTestDB(t)

	n, err := NewRunner(db).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 2 {
		t.Errorf("applied = %d, want 2", n)
	}

	for _, table := range []string{"Products", "upsert_log", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT table_name FROM information_schema.tables WHERE table_name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	r := NewRunner(db)

	if _, err := r.Run(); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	n, err := r.Run()
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if n != 0 {
		t.Errorf("second Run applied %d migrations, want 0", n)
	}
}

func TestStatus(t *testing.T) {
	db := openTestDB(t)
	r := NewRunner(db)

	current, pending, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if current != 0 || pending != 2 {
		t.Errorf("before Run: current=%d pending=%d, want 0/2", current, pending)
	}

	if _, err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	current, pending, err = r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if current != 2 || pending != 0 {
		t.Errorf("after Run: current=%d pending=%d, want 2/0", current, pending)
	}
}

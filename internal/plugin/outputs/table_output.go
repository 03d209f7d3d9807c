package outputs

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/sliink/queuesync/internal/duckdb"
	"github.com/sliink/queuesync/internal/metrics"
	"github.com/sliink/queuesync/internal/model"
	"github.com/sliink/queuesync/internal/plugin"
	"github.com/sliink/queuesync/internal/postgres"
	"github.com/sliink/queuesync/internal/sqltable"
)

const (
	// DriverDuckDB writes to an embedded DuckDB file, or memory when the DSN is empty.
	DriverDuckDB = "duckdb"
	// DriverPostgres writes through a pgx pool.
	DriverPostgres = "postgres"

	// DefaultConnectionSetting names the setting that holds the DSN.
	DefaultConnectionSetting = "SqlConnectionString"
)

// Settings resolves named settings such as the connection string.
type Settings interface {
	GetString(key string) string
}

// WriterOpener connects a table writer for a driver and DSN.
type WriterOpener func(ctx context.Context, driver, dsn string) (sqltable.Writer, error)

// OpenWriter is the default WriterOpener.
func OpenWriter(ctx context.Context, driver, dsn string) (sqltable.Writer, error) {
	switch driver {
	case DriverDuckDB:
		store, err := duckdb.NewStore(dsn)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("postgres: empty connection string")
		}
		w, err := postgres.Open(ctx, dsn, 0)
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("unknown table driver: %s", driver)
	}
}

// upsertRecorder is implemented by writers that keep an audit log.
type upsertRecorder interface {
	RecordUpsert(batchID string, table sqltable.Name, rows int)
}

// TableOutput upserts PRODUCT batches into a named table
type TableOutput struct {
	plugin.BasePlugin
	settings Settings
	open     WriterOpener

	driver      string
	table       sqltable.Name
	dsn         string
	createTable bool
	timeout     time.Duration

	mu     sync.Mutex
	writer sqltable.Writer
}

// NewTableOutput creates a table output. settings may be nil, in which case
// the connection string is read from the environment.
func NewTableOutput(id string, settings Settings) *TableOutput {
	return &TableOutput{
		BasePlugin:  plugin.NewBasePlugin(id, "Table Output", model.OutputPluginType),
		settings:    settings,
		open:        OpenWriter,
		driver:      DriverDuckDB,
		createTable: true,
		timeout:     30 * time.Second,
	}
}

// SetOpener replaces the writer constructor.
func (t *TableOutput) SetOpener(open WriterOpener) {
	t.open = open
}

// AcceptsBatchType limits the output to product batches
func (t *TableOutput) AcceptsBatchType(recordType model.RecordType) bool {
	return recordType == model.ProductRecordType
}

// Validate checks the driver and table name
func (t *TableOutput) Validate() bool {
	switch t.ConfigString("driver", DriverDuckDB) {
	case DriverDuckDB, DriverPostgres:
	default:
		return false
	}
	_, err := sqltable.ParseName(t.ConfigString("table", sqltable.DefaultTable))
	return err == nil
}

// Initialize resolves the table name and connection string
func (t *TableOutput) Initialize() bool {
	table, err := sqltable.ParseName(t.ConfigString("table", sqltable.DefaultTable))
	if err != nil {
		log.Printf("table %s: %v", t.ID(), err)
		return false
	}

	t.table = table
	t.driver = t.ConfigString("driver", DriverDuckDB)
	t.createTable = t.ConfigBool("create_table", true)
	t.timeout = t.ConfigDuration("timeout", t.timeout)
	t.dsn = t.resolveDSN()

	if t.driver == DriverPostgres && t.dsn == "" {
		log.Printf("table %s: no connection string in %q", t.ID(), t.connectionSetting())
		return false
	}

	t.SetStatus(model.StatusInitialized)
	return true
}

func (t *TableOutput) connectionSetting() string {
	return t.ConfigString("connection_string_setting", DefaultConnectionSetting)
}

// resolveDSN prefers an inline dsn, then the named setting, then the
// environment variable of the same name.
func (t *TableOutput) resolveDSN() string {
	if dsn := t.ConfigString("dsn", ""); dsn != "" {
		return dsn
	}
	name := t.connectionSetting()
	if t.settings != nil {
		if dsn := t.settings.GetString(name); dsn != "" {
			return dsn
		}
	}
	return os.Getenv(name)
}

// Start connects the writer and creates the table when configured to
func (t *TableOutput) Start() bool {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	writer, err := t.open(ctx, t.driver, t.dsn)
	if err != nil {
		log.Printf("table %s: open %s: %v", t.ID(), t.driver, err)
		t.SetStatus(model.StatusError)
		return false
	}

	if t.createTable {
		if err := writer.EnsureTable(ctx, t.table); err != nil {
			log.Printf("table %s: %v", t.ID(), err)
			writer.Close()
			t.SetStatus(model.StatusError)
			return false
		}
	}

	t.mu.Lock()
	t.writer = writer
	t.mu.Unlock()

	t.SetStatus(model.StatusRunning)
	return true
}

// Stop closes the writer
func (t *TableOutput) Stop() bool {
	t.mu.Lock()
	writer := t.writer
	t.writer = nil
	t.mu.Unlock()

	if writer != nil {
		if err := writer.Close(); err != nil {
			log.Printf("table %s: close: %v", t.ID(), err)
		}
	}

	t.SetStatus(model.StatusStopped)
	return true
}

// Table returns the destination table.
func (t *TableOutput) Table() sqltable.Name {
	return t.table
}

// Writer returns the connected writer, or nil when stopped.
func (t *TableOutput) Writer() sqltable.Writer {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writer
}

// Send upserts the batch's products in one statement. Batches with repeated
// ids are rejected before reaching the database.
func (t *TableOutput) Send(batch *model.DataBatch) bool {
	if batch == nil || batch.Size() == 0 || batch.BatchType != model.ProductRecordType {
		return true
	}

	if t.GetStatus() != model.StatusRunning {
		return false
	}

	if err := sqltable.CheckUniqueKeys(batch.Products); err != nil {
		t.PublishError(fmt.Errorf("batch %s: %w", batch.BatchID, err))
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writer == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	tableLabel := t.table.String()
	start := time.Now()
	n, err := t.writer.Upsert(ctx, t.table, batch.Products)
	metrics.WriteLatency.WithLabelValues(tableLabel).Observe(time.Since(start).Seconds())
	if err != nil {
		t.PublishError(fmt.Errorf("batch %s: %w", batch.BatchID, err))
		return false
	}

	metrics.RowsUpserted.WithLabelValues(tableLabel).Add(float64(n))
	if recorder, ok := t.writer.(upsertRecorder); ok {
		recorder.RecordUpsert(batch.BatchID, t.table, n)
	}
	return true
}

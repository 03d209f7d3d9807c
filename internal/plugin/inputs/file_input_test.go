package inputs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sliink/queuesync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloads(batches []*model.DataBatch) []string {
	var out []string
	for _, batch := range batches {
		for _, msg := range batch.Triggers {
			out = append(out, msg.Payload)
		}
	}
	return out
}

func appendToFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func startedFileInput(t *testing.T, paths ...interface{}) *FileInput {
	t.Helper()
	input := NewFileInput("spool")
	input.Configure(map[string]interface{}{"paths": paths})
	require.True(t, input.Initialize())
	require.True(t, input.Start())
	return input
}

func TestNewFileInput(t *testing.T) {
	t.Run("Creates FileInput with correct properties", func(t *testing.T) {
		input := NewFileInput("spool")

		assert.Equal(t, "spool", input.ID())
		assert.Equal(t, "File Input", input.Name())
		assert.Equal(t, model.InputPluginType, input.GetType())
		assert.Equal(t, model.StatusUninitialized, input.GetStatus())
		assert.NotNil(t, input.filePositions)
	})
}

func TestFileInputLifecycle(t *testing.T) {
	input := NewFileInput("spool")

	t.Run("Initialize fails when no paths configured", func(t *testing.T) {
		assert.False(t, input.Initialize())
	})

	t.Run("Initialize succeeds with paths configured", func(t *testing.T) {
		input.Configure(map[string]interface{}{
			"paths": []interface{}{"/var/spool/queuesync/*.msg", "/tmp/extra.msg"},
			"queue": "orders",
		})

		assert.True(t, input.Initialize())
		assert.Equal(t, model.StatusInitialized, input.GetStatus())
		assert.Len(t, input.paths, 2)
		assert.Equal(t, "orders", input.queueName)
	})

	t.Run("Start sets correct status", func(t *testing.T) {
		assert.True(t, input.Start())
		assert.Equal(t, model.StatusRunning, input.GetStatus())
	})

	t.Run("Stop sets correct status", func(t *testing.T) {
		assert.True(t, input.Stop())
		assert.Equal(t, model.StatusStopped, input.GetStatus())
	})
}

func TestFileInputValidate(t *testing.T) {
	input := NewFileInput("spool")

	t.Run("Validate fails with no paths", func(t *testing.T) {
		assert.False(t, input.Validate())
	})

	t.Run("Validate succeeds with paths", func(t *testing.T) {
		input.Configure(map[string]interface{}{"paths": []interface{}{"/tmp/a.msg"}})
		assert.True(t, input.Validate())
	})

	t.Run("Validate accepts a single path string", func(t *testing.T) {
		input.Configure(map[string]interface{}{"paths": "/tmp/a.msg"})
		assert.True(t, input.Validate())
	})

	t.Run("Validate fails with empty paths array", func(t *testing.T) {
		input.Configure(map[string]interface{}{"paths": []interface{}{}})
		assert.False(t, input.Validate())
	})
}

func TestFileInputCollect(t *testing.T) {
	t.Run("Collect returns nil when not running", func(t *testing.T) {
		input := NewFileInput("spool")
		input.Configure(map[string]interface{}{"paths": []interface{}{"/tmp/none.msg"}})
		input.Initialize()

		assert.Nil(t, input.Collect())
	})

	t.Run("Collect returns one trigger batch per line", func(t *testing.T) {
		dir := t.TempDir()
		appendToFile(t, filepath.Join(dir, "queue.msg"), "order-1\n\norder-3\n")

		input := startedFileInput(t, filepath.Join(dir, "*.msg"))
		batches := input.Collect()

		require.Len(t, batches, 3)
		for _, batch := range batches {
			assert.Equal(t, model.TriggerRecordType, batch.BatchType)
			assert.Equal(t, 1, batch.Size())
			assert.Equal(t, "spool", batch.SourceID)
		}
		assert.Equal(t, []string{"order-1", "", "order-3"}, payloads(batches))

		msg := batches[0].Triggers[0]
		assert.Equal(t, DefaultQueue, msg.Queue)
		assert.NotEmpty(t, msg.ID)
		assert.Equal(t, "file", msg.Attributes["transport"])
	})

	t.Run("Collect only reads new lines on subsequent calls", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "append.msg")
		appendToFile(t, path, "line1\nline2\n")

		input := startedFileInput(t, path)
		assert.Equal(t, []string{"line1", "line2"}, payloads(input.Collect()))
		assert.Nil(t, input.Collect())

		appendToFile(t, path, "line3\nline4\n")
		assert.Equal(t, []string{"line3", "line4"}, payloads(input.Collect()))
		assert.Equal(t, int64(24), input.Offset(path))
	})

	t.Run("Partial lines wait for their newline", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "partial.msg")
		appendToFile(t, path, "complete\npart")

		input := startedFileInput(t, path)
		assert.Equal(t, []string{"complete"}, payloads(input.Collect()))

		appendToFile(t, path, "ial\r\n")
		assert.Equal(t, []string{"partial"}, payloads(input.Collect()))
	})

	t.Run("Truncated file is read from the start", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rotate.msg")
		appendToFile(t, path, "first-generation-line\n")

		input := startedFileInput(t, path)
		input.Collect()

		require.NoError(t, os.WriteFile(path, []byte("new\n"), 0o644))
		assert.Equal(t, []string{"new"}, payloads(input.Collect()))
	})

	t.Run("Files matched twice are read once", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "dup.msg")
		appendToFile(t, path, "once\n")

		input := startedFileInput(t, path, filepath.Join(dir, "*.msg"))
		assert.Equal(t, []string{"once"}, payloads(input.Collect()))
	})
}

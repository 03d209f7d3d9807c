package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sliink/queuesync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testConfigYAML = `
system:
  id: queuesync-test
  version: 1.0.0
core:
  tick_interval: 250ms
plugins:
  inputs:
    - id: memory_queue
      type: memory
      capacity: 5
pipelines:
  trigger: [product_producer]
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// waitFor returns the first value delivered on ch that satisfies match.
func waitFor(t *testing.T, ch <-chan interface{}, match func(interface{}) bool) interface{} {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case v := <-ch:
			if match(v) {
				return v
			}
		case <-deadline:
			t.Fatal("Timed out waiting for watcher notification")
			return nil
		}
	}
}

func TestNewConfigManager(t *testing.T) {
	manager := NewConfigManager()

	assert.NotNil(t, manager.v)
	assert.NotNil(t, manager.watchers)
	assert.Equal(t, "config_manager", manager.ID())
	assert.Equal(t, "Configuration Manager", manager.Name())
}

func TestConfigManagerDefaults(t *testing.T) {
	manager := NewConfigManager()

	assert.Equal(t, time.Second, manager.GetDuration("core.tick_interval"))
	assert.Equal(t, 10, manager.GetInt("core.flush_batches"))
	assert.Equal(t, 1000, manager.GetInt("core.buffer_size"))
	assert.Equal(t, ":8080", manager.GetString("api.address"))
}

func TestConfigManagerLifecycle(t *testing.T) {
	manager := NewConfigManager()

	t.Run("Initialize sets correct status", func(t *testing.T) {
		assert.True(t, manager.Initialize())
		assert.Equal(t, model.StatusInitialized, manager.GetStatus())
	})

	t.Run("Start sets correct status", func(t *testing.T) {
		assert.True(t, manager.Start())
		assert.Equal(t, model.StatusRunning, manager.GetStatus())
	})

	t.Run("Stop clears watchers and sets correct status", func(t *testing.T) {
		manager.WatchConfig("test_path", func(interface{}) {})
		assert.NotEmpty(t, manager.watchers)

		assert.True(t, manager.Stop())
		assert.Empty(t, manager.watchers)
		assert.Equal(t, model.StatusStopped, manager.GetStatus())
	})
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, "queuesync.yaml", testConfigYAML)

	t.Run("LoadConfig loads a yaml file", func(t *testing.T) {
		manager := NewConfigManager()
		require.NoError(t, manager.LoadConfig(path))

		system, ok := manager.GetConfig("system", nil).(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "queuesync-test", system["id"])
		assert.Equal(t, "1.0.0", manager.GetConfig("system.version", nil))
		assert.Equal(t, 250*time.Millisecond, manager.GetDuration("core.tick_interval"))
		assert.Equal(t, 10, manager.GetInt("core.flush_batches"), "defaults survive a load")
		assert.Equal(t, path, manager.ConfigFile())
	})

	t.Run("LoadConfig loads a json file", func(t *testing.T) {
		jsonPath := writeConfig(t, "queuesync.json", `{"system": {"id": "from-json"}}`)
		manager := NewConfigManager()
		require.NoError(t, manager.LoadConfig(jsonPath))
		assert.Equal(t, "from-json", manager.GetString("system.id"))
	})

	t.Run("LoadConfig returns error for nonexistent file", func(t *testing.T) {
		manager := NewConfigManager()
		assert.Error(t, manager.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")))
	})

	t.Run("LoadConfig returns error for invalid content", func(t *testing.T) {
		manager := NewConfigManager()
		invalid := writeConfig(t, "invalid.json", "{invalid json")
		assert.Error(t, manager.LoadConfig(invalid))
	})

	t.Run("LoadConfig notifies root path watchers", func(t *testing.T) {
		manager := NewConfigManager()
		notified := make(chan interface{}, 4)
		manager.WatchConfig("", func(value interface{}) { notified <- value })

		require.NoError(t, manager.LoadConfig(path))

		waitFor(t, notified, func(v interface{}) bool {
			settings, ok := v.(map[string]interface{})
			return ok && settings["system"] != nil
		})
	})
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("QUEUESYNC_CORE_FLUSH_BATCHES", "3")
	t.Setenv("QUEUESYNC_SQLCONNECTIONSTRING", "products.duckdb")

	manager := NewConfigManager()

	assert.Equal(t, 3, manager.GetInt("core.flush_batches"))
	assert.Equal(t, "products.duckdb", manager.GetString("SqlConnectionString"))
}

func TestGetAndSetConfig(t *testing.T) {
	manager := NewConfigManager()

	t.Run("GetConfig returns default for unset path", func(t *testing.T) {
		assert.Equal(t, "fallback", manager.GetConfig("does.not.exist", "fallback"))
	})

	t.Run("SetConfig sets nested values", func(t *testing.T) {
		require.NoError(t, manager.SetConfig("outputs.table.table", "[dbo].[Products]"))
		assert.Equal(t, "[dbo].[Products]", manager.GetConfig("outputs.table.table", nil))

		table, ok := manager.GetConfig("outputs.table", nil).(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "[dbo].[Products]", table["table"])
	})

	t.Run("SetConfig overwrites existing values", func(t *testing.T) {
		require.NoError(t, manager.SetConfig("outputs.table.table", "[sales].[Products]"))
		assert.Equal(t, "[sales].[Products]", manager.GetConfig("outputs.table.table", nil))
	})

	t.Run("SetConfig with empty path merges a map", func(t *testing.T) {
		require.NoError(t, manager.SetConfig("", map[string]interface{}{
			"system": map[string]interface{}{"id": "merged"},
		}))
		assert.Equal(t, "merged", manager.GetConfig("system.id", nil))
		assert.Equal(t, "[sales].[Products]", manager.GetConfig("outputs.table.table", nil))
	})

	t.Run("SetConfig with empty path rejects non-map", func(t *testing.T) {
		assert.Error(t, manager.SetConfig("", "not a map"))
	})

	t.Run("GetConfig with empty path returns all settings", func(t *testing.T) {
		all, ok := manager.GetConfig("", nil).(map[string]interface{})
		require.True(t, ok)
		assert.Contains(t, all, "outputs")
		assert.Contains(t, all, "core")
	})
}

func TestUnmarshalKey(t *testing.T) {
	manager := NewConfigManager()
	require.NoError(t, manager.LoadConfig(writeConfig(t, "queuesync.yaml", testConfigYAML)))

	var pipelines map[string][]string
	require.NoError(t, manager.UnmarshalKey("pipelines", &pipelines))
	assert.Equal(t, []string{"product_producer"}, pipelines["trigger"])
}

func TestWatchConfig(t *testing.T) {
	manager := NewConfigManager()

	t.Run("WatchConfig delivers the current value immediately", func(t *testing.T) {
		require.NoError(t, manager.SetConfig("producer.count", 100))

		notified := make(chan interface{}, 4)
		manager.WatchConfig("producer.count", func(v interface{}) { notified <- v })

		waitFor(t, notified, func(v interface{}) bool { return v == 100 })
	})

	t.Run("SetConfig notifies watchers on the path and its parents", func(t *testing.T) {
		leaf := make(chan interface{}, 4)
		parent := make(chan interface{}, 4)
		manager.WatchConfig("producer.count", func(v interface{}) { leaf <- v })
		manager.WatchConfig("producer", func(v interface{}) { parent <- v })

		require.NoError(t, manager.SetConfig("producer.count", 5))

		waitFor(t, leaf, func(v interface{}) bool { return v == 5 })
		waitFor(t, parent, func(v interface{}) bool {
			m, ok := v.(map[string]interface{})
			return ok && m["count"] == 5
		})
	})
}

func TestSaveConfig(t *testing.T) {
	t.Run("SaveConfig writes yaml to the given path", func(t *testing.T) {
		manager := NewConfigManager()
		require.NoError(t, manager.SetConfig("outputs.table.driver", "duckdb"))

		path := filepath.Join(t.TempDir(), "saved.yaml")
		require.NoError(t, manager.SaveConfig(path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var saved map[string]interface{}
		require.NoError(t, yaml.Unmarshal(data, &saved))
		outputs := saved["outputs"].(map[string]interface{})
		table := outputs["table"].(map[string]interface{})
		assert.Equal(t, "duckdb", table["driver"])
	})

	t.Run("SaveConfig reuses the loaded file", func(t *testing.T) {
		path := writeConfig(t, "queuesync.yaml", testConfigYAML)
		manager := NewConfigManager()
		require.NoError(t, manager.LoadConfig(path))
		require.NoError(t, manager.SetConfig("system.id", "rewritten"))
		require.NoError(t, manager.SaveConfig(""))

		reloaded := NewConfigManager()
		require.NoError(t, reloaded.LoadConfig(path))
		assert.Equal(t, "rewritten", reloaded.GetString("system.id"))
	})

	t.Run("SaveConfig without any file fails", func(t *testing.T) {
		assert.Error(t, NewConfigManager().SaveConfig(""))
	})
}

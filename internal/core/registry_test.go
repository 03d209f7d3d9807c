package core

import (
	"testing"

	"github.com/sliink/queuesync/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestNewPluginRegistry(t *testing.T) {
	registry := NewPluginRegistry()

	assert.NotNil(t, registry.plugins)
	assert.Equal(t, "plugin_registry", registry.ID())
	assert.Equal(t, "Plugin Registry", registry.Name())
}

func TestPluginRegistryLifecycle(t *testing.T) {
	registry := NewPluginRegistry()

	t.Run("Initialize sets correct status", func(t *testing.T) {
		assert.True(t, registry.Initialize())
		assert.Equal(t, model.StatusInitialized, registry.GetStatus())
	})

	t.Run("Start sets correct status", func(t *testing.T) {
		assert.True(t, registry.Start())
		assert.Equal(t, model.StatusRunning, registry.GetStatus())
	})

	t.Run("Stop stops running plugins only", func(t *testing.T) {
		input := newMockInputPlugin("queue")
		input.Start()
		output := newMockOutputPlugin("table")
		output.Start()
		idle := newMockOutputPlugin("idle")

		registry.plugins["queue"] = input
		registry.plugins["table"] = output
		registry.plugins["idle"] = idle

		assert.True(t, registry.Stop())
		assert.Equal(t, model.StatusStopped, registry.GetStatus())

		assert.Equal(t, model.StatusStopped, input.GetStatus())
		assert.Equal(t, model.StatusStopped, output.GetStatus())
		assert.Equal(t, model.StatusUninitialized, idle.GetStatus())
	})
}

func TestRegisterPlugin(t *testing.T) {
	registry := NewPluginRegistry()
	registry.Initialize()

	input := newMockInputPlugin("queue")
	input.name = "Queue Input"
	output := newMockOutputPlugin("table")
	processor := newMockProcessorPlugin("product_producer", "Product Producer", nil)

	t.Run("RegisterPlugin adds plugin to registry", func(t *testing.T) {
		assert.True(t, registry.RegisterPlugin(input))
		assert.Len(t, registry.plugins, 1)

		assert.True(t, registry.RegisterPlugin(output))
		assert.True(t, registry.RegisterPlugin(processor))
		assert.Len(t, registry.plugins, 3)
		assert.Contains(t, registry.plugins, "product_producer")
	})

	t.Run("RegisterPlugin fails for duplicate ID", func(t *testing.T) {
		duplicate := newMockInputPlugin("queue")
		duplicate.name = "Duplicate"

		assert.False(t, registry.RegisterPlugin(duplicate))

		plugin, exists := registry.GetPlugin("queue")
		assert.True(t, exists)
		assert.Equal(t, "Queue Input", plugin.Name())
	})
}

func TestUnregisterPlugin(t *testing.T) {
	registry := NewPluginRegistry()
	registry.Initialize()

	registry.RegisterPlugin(newMockInputPlugin("queue"))
	registry.RegisterPlugin(newMockOutputPlugin("table"))

	t.Run("UnregisterPlugin removes existing plugin", func(t *testing.T) {
		assert.True(t, registry.UnregisterPlugin("queue"))
		assert.Len(t, registry.plugins, 1)
		assert.NotContains(t, registry.plugins, "queue")
	})

	t.Run("UnregisterPlugin fails for nonexistent plugin", func(t *testing.T) {
		assert.False(t, registry.UnregisterPlugin("nonexistent"))
	})
}

func TestGetPlugin(t *testing.T) {
	registry := NewPluginRegistry()
	registry.Initialize()

	input := newMockInputPlugin("queue")
	registry.RegisterPlugin(input)

	t.Run("GetPlugin returns existing plugin", func(t *testing.T) {
		plugin, exists := registry.GetPlugin("queue")
		assert.True(t, exists)
		assert.Equal(t, input, plugin)
	})

	t.Run("GetPlugin returns false for nonexistent plugin", func(t *testing.T) {
		_, exists := registry.GetPlugin("nonexistent")
		assert.False(t, exists)
	})
}

func TestGetPluginsByType(t *testing.T) {
	registry := NewPluginRegistry()
	registry.Initialize()

	registry.RegisterPlugin(newMockInputPlugin("queue_b"))
	registry.RegisterPlugin(newMockInputPlugin("queue_a"))
	registry.RegisterPlugin(newMockOutputPlugin("table"))
	registry.RegisterPlugin(newMockProcessorPlugin("product_producer", "Product Producer", nil))

	t.Run("GetPluginsByType returns all plugins of specified type", func(t *testing.T) {
		assert.Len(t, registry.GetPluginsByType(model.InputPluginType), 2)
		assert.Len(t, registry.GetPluginsByType(model.OutputPluginType), 1)
		assert.Len(t, registry.GetPluginsByType(model.ProcessorPluginType), 1)
	})

	t.Run("GetPluginsByType orders plugins by ID", func(t *testing.T) {
		inputs := registry.GetPluginsByType(model.InputPluginType)
		assert.Equal(t, "queue_a", inputs[0].ID())
		assert.Equal(t, "queue_b", inputs[1].ID())
	})

	t.Run("GetPluginsByType returns empty slice for nonexistent type", func(t *testing.T) {
		assert.Empty(t, registry.GetPluginsByType("nonexistent"))
	})
}

func TestGetTypedPlugins(t *testing.T) {
	registry := NewPluginRegistry()
	registry.Initialize()

	registry.RegisterPlugin(newMockInputPlugin("queue_a"))
	registry.RegisterPlugin(newMockInputPlugin("queue_b"))
	registry.RegisterPlugin(newMockOutputPlugin("table"))
	registry.RegisterPlugin(newMockProcessorPlugin("product_producer", "Product Producer", nil))

	t.Run("GetInputPlugins returns all input plugins", func(t *testing.T) {
		inputs := registry.GetInputPlugins()
		assert.Len(t, inputs, 2)
		for _, plugin := range inputs {
			_, ok := plugin.(*mockInputPlugin)
			assert.True(t, ok)
		}
	})

	t.Run("GetOutputPlugins returns all output plugins", func(t *testing.T) {
		outputs := registry.GetOutputPlugins()
		assert.Len(t, outputs, 1)
		_, ok := outputs[0].(*mockOutputPlugin)
		assert.True(t, ok)
	})

	t.Run("GetProcessorPlugins returns all processor plugins", func(t *testing.T) {
		processors := registry.GetProcessorPlugins()
		assert.Len(t, processors, 1)
		_, ok := processors[0].(*mockProcessorPlugin)
		assert.True(t, ok)
	})

	t.Run("GetAllPlugins returns every plugin sorted", func(t *testing.T) {
		var ids []string
		for _, p := range registry.GetAllPlugins() {
			ids = append(ids, p.ID())
		}
		assert.Equal(t, []string{"product_producer", "queue_a", "queue_b", "table"}, ids)
	})
}

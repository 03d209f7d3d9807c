// Package standard registers the built-in plugins with a factory.
package standard

import (
	"github.com/sliink/queuesync/internal/model"
	"github.com/sliink/queuesync/internal/plugin"
	"github.com/sliink/queuesync/internal/plugin/inputs"
	"github.com/sliink/queuesync/internal/plugin/outputs"
	"github.com/sliink/queuesync/internal/plugin/processors"
)

// Plugin type names used in the plugins config section.
const (
	KafkaInput      = "kafka"
	MemoryInput     = "memory"
	SocketInput     = "socket"
	FileInput       = "file"
	TriggerFilter   = "trigger_filter"
	ProductProducer = "product_producer"
	TableOutput     = "table"
	StdoutOutput    = "stdout"
)

// Register adds every built-in plugin to factory. settings resolves the
// table output's connection string and may be nil.
func Register(factory *plugin.PluginFactory, settings outputs.Settings) {
	factory.RegisterInputPlugin(KafkaInput, func(id string) model.InputPlugin {
		return inputs.NewKafkaInput(id)
	})
	factory.RegisterInputPlugin(MemoryInput, func(id string) model.InputPlugin {
		return inputs.NewMemoryInput(id)
	})
	factory.RegisterInputPlugin(SocketInput, func(id string) model.InputPlugin {
		return inputs.NewSocketInput(id)
	})
	factory.RegisterInputPlugin(FileInput, func(id string) model.InputPlugin {
		return inputs.NewFileInput(id)
	})

	factory.RegisterProcessorPlugin(TriggerFilter, func(id string) model.ProcessorPlugin {
		return processors.NewTriggerFilter(id)
	})
	factory.RegisterProcessorPlugin(ProductProducer, func(id string) model.ProcessorPlugin {
		return processors.NewProductProducer(id)
	})

	factory.RegisterOutputPlugin(TableOutput, func(id string) model.OutputPlugin {
		return outputs.NewTableOutput(id, settings)
	})
	factory.RegisterOutputPlugin(StdoutOutput, func(id string) model.OutputPlugin {
		return outputs.NewStdoutOutput(id)
	})
}

// NewFactory returns a factory with the built-in plugins registered.
func NewFactory(settings outputs.Settings) *plugin.PluginFactory {
	factory := plugin.NewPluginFactory()
	Register(factory, settings)
	return factory
}

// DefaultPlugins is the plugin set used when no plugins are configured: an
// in-memory queue feeding the product producer, upserting into the default
// table.
func DefaultPlugins() map[string]interface{} {
	return map[string]interface{}{
		"inputs": []interface{}{
			map[string]interface{}{"id": "queue", "type": MemoryInput, "config": map[string]interface{}{"queue": inputs.DefaultQueue}},
		},
		"processors": []interface{}{
			map[string]interface{}{"id": "producer", "type": ProductProducer, "config": map[string]interface{}{}},
		},
		"outputs": []interface{}{
			map[string]interface{}{"id": "table", "type": TableOutput, "config": map[string]interface{}{}},
		},
	}
}

// DefaultPipelines routes TRIGGER batches through the default producer.
func DefaultPipelines() map[string][]string {
	return map[string][]string{
		string(model.TriggerRecordType): {"producer"},
	}
}

package plugin

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/sliink/queuesync/internal/model"
)

// sections maps each plugins.* config list to the plugin type it holds.
var sections = []struct {
	key        string
	pluginType model.PluginType
}{
	{"inputs", model.InputPluginType},
	{"processors", model.ProcessorPluginType},
	{"outputs", model.OutputPluginType},
}

// CreatePlugins builds and configures plugins from the "plugins" config
// section:
//
//	inputs:
//	  - id: queue
//	    type: kafka
//	    config: {topic: testqueue}
//
// An entry without an id uses its type as id. Unknown types, missing types and
// rejected configurations are errors.
func CreatePlugins(factory *PluginFactory, config map[string]interface{}) ([]model.Plugin, error) {
	var plugins []model.Plugin

	for _, section := range sections {
		raw, ok := config[section.key]
		if !ok || raw == nil {
			continue
		}

		entries, err := cast.ToSliceE(raw)
		if err != nil {
			return nil, fmt.Errorf("plugins.%s: expected a list: %w", section.key, err)
		}

		for i, entry := range entries {
			entryMap, err := cast.ToStringMapE(entry)
			if err != nil {
				return nil, fmt.Errorf("plugins.%s[%d]: expected a map: %w", section.key, i, err)
			}

			typeName := cast.ToString(entryMap["type"])
			if typeName == "" {
				return nil, fmt.Errorf("plugins.%s[%d]: missing type", section.key, i)
			}
			id := cast.ToString(entryMap["id"])
			if id == "" {
				id = typeName
			}

			pluginConf := cast.ToStringMap(entryMap["config"])

			p, err := factory.CreatePlugin(section.pluginType, typeName, id)
			if err != nil {
				return nil, fmt.Errorf("plugins.%s[%d]: %w", section.key, i, err)
			}

			if !p.Configure(pluginConf) {
				return nil, fmt.Errorf("plugins.%s[%d]: %s rejected its configuration", section.key, i, id)
			}
			plugins = append(plugins, p)
		}
	}

	return plugins, nil
}

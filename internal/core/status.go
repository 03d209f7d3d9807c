package core

import (
	"github.com/sliink/queuesync/internal/model"
)

// PluginInfo describes a registered plugin.
type PluginInfo struct {
	ID     string                `json:"id"`
	Name   string                `json:"name"`
	Type   model.PluginType      `json:"type"`
	Status model.ComponentStatus `json:"status"`
}

// SystemStatus is a snapshot of the core and everything it manages.
type SystemStatus struct {
	Status    model.ComponentStatus         `json:"status"`
	Health    model.HealthStatus            `json:"health"`
	Plugins   []PluginInfo                  `json:"plugins"`
	Buffers   map[string]model.BufferStatus `json:"buffers"`
	Pipelines map[string][]string           `json:"pipelines"`
}

func describePlugin(p model.Plugin) PluginInfo {
	return PluginInfo{
		ID:     p.ID(),
		Name:   p.Name(),
		Type:   p.GetType(),
		Status: p.GetStatus(),
	}
}

// Plugins describes every registered plugin, sorted by ID.
func (c *Core) Plugins() []PluginInfo {
	all := c.registry.GetAllPlugins()
	out := make([]PluginInfo, 0, len(all))
	for _, p := range all {
		out = append(out, describePlugin(p))
	}
	return out
}

// Plugin describes one registered plugin.
func (c *Core) Plugin(id string) (PluginInfo, bool) {
	p, ok := c.registry.GetPlugin(id)
	if !ok {
		return PluginInfo{}, false
	}
	return describePlugin(p), true
}

// Status returns a snapshot of the system.
func (c *Core) Status() SystemStatus {
	pipelines := make(map[string][]string)
	for recordType, ids := range c.pipeline.Stages() {
		pipelines[string(recordType)] = ids
	}

	return SystemStatus{
		Status:    c.GetStatus(),
		Health:    c.healthMonitor.GetHealthStatus(),
		Plugins:   c.Plugins(),
		Buffers:   c.bufferManager.GetBufferStatus(),
		Pipelines: pipelines,
	}
}

package plugin

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/spf13/cast"

	"github.com/sliink/queuesync/internal/model"
)

// BasePlugin provides common functionality for all plugins
type BasePlugin struct {
	id         string
	name       string
	pluginType model.PluginType
	status     model.ComponentStatus
	statusMu   *sync.RWMutex
	Config     map[string]interface{}
	core       model.CoreAPI
}

// NewBasePlugin creates a new base plugin
func NewBasePlugin(id, name string, pluginType model.PluginType) BasePlugin {
	return BasePlugin{
		id:         id,
		name:       name,
		pluginType: pluginType,
		status:     model.StatusUninitialized,
		statusMu:   &sync.RWMutex{},
		Config:     make(map[string]interface{}),
	}
}

// ID returns the plugin's unique identifier
func (p *BasePlugin) ID() string {
	return p.id
}

// Name returns the plugin's human-readable name
func (p *BasePlugin) Name() string {
	return p.name
}

// GetType returns the plugin type
func (p *BasePlugin) GetType() model.PluginType {
	return p.pluginType
}

// GetStatus returns the current plugin status
func (p *BasePlugin) GetStatus() model.ComponentStatus {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()
	return p.status
}

// SetStatus updates the plugin status
func (p *BasePlugin) SetStatus(status model.ComponentStatus) {
	p.statusMu.Lock()
	p.status = status
	p.statusMu.Unlock()
}

// Configure applies configuration to the plugin
func (p *BasePlugin) Configure(config map[string]interface{}) bool {
	if config == nil {
		return false
	}
	p.Config = config
	return true
}

// RegisterWithCore registers the plugin with the core system
func (p *BasePlugin) RegisterWithCore(core model.CoreAPI) bool {
	p.core = core
	return true
}

// Core returns the core the plugin registered with, if any.
func (p *BasePlugin) Core() model.CoreAPI {
	return p.core
}

// Validate assumes a valid configuration; plugins override it.
func (p *BasePlugin) Validate() bool {
	return true
}

// PublishEvent publishes an event from this plugin. It is a no-op before
// RegisterWithCore.
func (p *BasePlugin) PublishEvent(eventType model.EventType, data interface{}) {
	if p.core == nil {
		return
	}
	p.core.PublishEvent(eventType, p.id, data)
}

// PublishError reports a data-path failure as an ERROR event.
func (p *BasePlugin) PublishError(err error) {
	p.PublishEvent(model.EventError, err)
}

// ConfigString returns Config[key] as a string, or def when unset or not
// convertible.
func (p *BasePlugin) ConfigString(key, def string) string {
	v, ok := p.Config[key]
	if !ok {
		return def
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return def
	}
	return s
}

// ConfigInt returns Config[key] as an int, or def when unset or not
// convertible.
func (p *BasePlugin) ConfigInt(key string, def int) int {
	i, err := p.ConfigIntE(key, def)
	if err != nil {
		return def
	}
	return i
}

// ConfigIntE returns Config[key] as an int, or def when unset. Values that
// are not whole numbers are an error.
func (p *BasePlugin) ConfigIntE(key string, def int) (int, error) {
	v, ok := p.Config[key]
	if !ok {
		return def, nil
	}
	switch f := v.(type) {
	case float64:
		if f != math.Trunc(f) {
			return def, fmt.Errorf("config %s: %v is not an integer", key, v)
		}
	case float32:
		if float64(f) != math.Trunc(float64(f)) {
			return def, fmt.Errorf("config %s: %v is not an integer", key, v)
		}
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return def, fmt.Errorf("config %s: %w", key, err)
	}
	return i, nil
}

// ConfigBool returns Config[key] as a bool.
func (p *BasePlugin) ConfigBool(key string, def bool) bool {
	v, ok := p.Config[key]
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

// ConfigStringSlice returns Config[key] as a string slice. A single string
// becomes a one-element slice.
func (p *BasePlugin) ConfigStringSlice(key string) []string {
	v, ok := p.Config[key]
	if !ok {
		return nil
	}
	if s, isString := v.(string); isString {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	out, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil
	}
	return out
}

// ConfigDuration returns Config[key] as a duration; bare numbers are seconds.
func (p *BasePlugin) ConfigDuration(key string, def time.Duration) time.Duration {
	v, ok := p.Config[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int, int64, float64:
		return time.Duration(cast.ToFloat64(n) * float64(time.Second))
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return def
	}
	return d
}

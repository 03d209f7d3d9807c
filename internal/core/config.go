package core

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sliink/queuesync/internal/model"
)

// EnvPrefix is prepended to environment overrides, e.g. QUEUESYNC_CORE_TICK_INTERVAL.
const EnvPrefix = "QUEUESYNC"

// Defaults applied to every ConfigManager.
var configDefaults = map[string]interface{}{
	"core.tick_interval": "1s",
	"core.flush_batches": 10,
	"core.buffer_size":   1000,
	"api.address":        ":8080",
}

// ConfigManager handles loading, storing, and accessing configuration
type ConfigManager struct {
	v          *viper.Viper
	watchers   map[string][]func(interface{})
	mutex      sync.RWMutex
	configFile string
	BaseComponent
}

// NewConfigManager creates a new configuration manager
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		v:             newViper(),
		watchers:      make(map[string][]func(interface{})),
		BaseComponent: NewBaseComponent("config_manager", "Configuration Manager"),
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, value := range configDefaults {
		v.SetDefault(key, value)
	}
	return v
}

// Initialize prepares the configuration manager for operation
func (m *ConfigManager) Initialize() bool {
	m.SetStatus(model.StatusInitialized)
	return true
}

// Start begins configuration manager operation
func (m *ConfigManager) Start() bool {
	m.SetStatus(model.StatusRunning)
	return true
}

// Stop drops all watchers
func (m *ConfigManager) Stop() bool {
	m.mutex.Lock()
	m.watchers = make(map[string][]func(interface{}))
	m.mutex.Unlock()

	m.SetStatus(model.StatusStopped)
	return true
}

// LoadConfig reads a yaml, json or toml file, chosen by extension, and
// replaces the current file-backed settings.
func (m *ConfigManager) LoadConfig(configFile string) error {
	v := newViper()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	m.mutex.Lock()
	m.v = v
	m.configFile = configFile
	root := v.AllSettings()
	callbacks := append([]func(interface{}){}, m.watchers[""]...)
	m.mutex.Unlock()

	for _, callback := range callbacks {
		go callback(root)
	}
	return nil
}

// ConfigFile returns the path of the last loaded file.
func (m *ConfigManager) ConfigFile() string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.configFile
}

// SaveConfig writes all settings as yaml. An empty path reuses the loaded file.
func (m *ConfigManager) SaveConfig(configFile string) error {
	m.mutex.RLock()
	if configFile == "" {
		configFile = m.configFile
	}
	settings := m.v.AllSettings()
	m.mutex.RUnlock()

	if configFile == "" {
		return errors.New("no config file specified")
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// GetConfig retrieves a value by dotted path. An empty path returns every
// setting; an unset path returns defaultValue.
func (m *ConfigManager) GetConfig(path string, defaultValue interface{}) interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.get(path, defaultValue)
}

func (m *ConfigManager) get(path string, defaultValue interface{}) interface{} {
	if path == "" {
		return m.v.AllSettings()
	}
	if !m.v.IsSet(path) {
		return defaultValue
	}
	return m.v.Get(path)
}

// GetString returns the value at path as a string.
func (m *ConfigManager) GetString(path string) string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.v.GetString(path)
}

// GetInt returns the value at path as an int.
func (m *ConfigManager) GetInt(path string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.v.GetInt(path)
}

// GetDuration returns the value at path as a duration.
func (m *ConfigManager) GetDuration(path string) time.Duration {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.v.GetDuration(path)
}

// UnmarshalKey decodes the subtree at path into out.
func (m *ConfigManager) UnmarshalKey(path string, out interface{}) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.v.UnmarshalKey(path, out)
}

// SetConfig sets a value by dotted path. With an empty path the value must be
// a map and is merged into the root.
func (m *ConfigManager) SetConfig(path string, value interface{}) error {
	m.mutex.Lock()

	if path == "" {
		settings, ok := value.(map[string]interface{})
		if !ok {
			m.mutex.Unlock()
			return errors.New("cannot set root config to non-map value")
		}
		if err := m.v.MergeConfigMap(settings); err != nil {
			m.mutex.Unlock()
			return fmt.Errorf("error merging config: %w", err)
		}
	} else {
		m.v.Set(path, value)
	}

	type notification struct {
		callbacks []func(interface{})
		value     interface{}
	}
	var pending []notification

	// Watchers on the path and on every parent path fire.
	parts := strings.Split(strings.ToLower(path), ".")
	if path == "" {
		parts = nil
	}
	for i := 0; i <= len(parts); i++ {
		subPath := strings.Join(parts[:i], ".")
		if watchers := m.watchers[subPath]; len(watchers) > 0 {
			pending = append(pending, notification{
				callbacks: append([]func(interface{}){}, watchers...),
				value:     m.get(subPath, nil),
			})
		}
	}
	m.mutex.Unlock()

	for _, n := range pending {
		for _, callback := range n.callbacks {
			go callback(n.value)
		}
	}
	return nil
}

// WatchConfig registers a callback for changes at path or below it. The
// callback is invoked once with the current value.
func (m *ConfigManager) WatchConfig(path string, callback func(interface{})) {
	path = strings.ToLower(path)

	m.mutex.Lock()
	m.watchers[path] = append(m.watchers[path], callback)
	current := m.get(path, nil)
	m.mutex.Unlock()

	go callback(current)
}

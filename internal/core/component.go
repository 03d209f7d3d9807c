package core

import (
	"sync"

	"github.com/sliink/queuesync/internal/model"
)

// Component represents a core system component with lifecycle management
type Component interface {
	// Initialize prepares the component for operation
	Initialize() bool

	// Start begins component operation
	Start() bool

	// Stop halts component operation
	Stop() bool

	// GetStatus returns the current component status
	GetStatus() model.ComponentStatus

	// SetStatus updates the component status
	SetStatus(status model.ComponentStatus)

	// Configure applies configuration to the component
	Configure(config map[string]interface{}) bool

	// ID returns the component's unique identifier
	ID() string

	// Name returns the component's human-readable name
	Name() string
}

// BaseComponent provides identity, status and raw configuration for
// components. Status is read from worker goroutines, so it is guarded.
type BaseComponent struct {
	id       string
	name     string
	status   model.ComponentStatus
	config   map[string]interface{}
	statusMu *sync.RWMutex
}

// NewBaseComponent creates a new base component
func NewBaseComponent(id, name string) BaseComponent {
	return BaseComponent{
		id:       id,
		name:     name,
		status:   model.StatusUninitialized,
		config:   make(map[string]interface{}),
		statusMu: &sync.RWMutex{},
	}
}

// ID returns the component's unique identifier
func (c *BaseComponent) ID() string {
	return c.id
}

// Name returns the component's human-readable name
func (c *BaseComponent) Name() string {
	return c.name
}

// GetStatus returns the current component status
func (c *BaseComponent) GetStatus() model.ComponentStatus {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// SetStatus updates the component status
func (c *BaseComponent) SetStatus(status model.ComponentStatus) {
	c.statusMu.Lock()
	c.status = status
	c.statusMu.Unlock()
}

// Configure stores raw configuration; nil is rejected.
func (c *BaseComponent) Configure(config map[string]interface{}) bool {
	if config == nil {
		return false
	}
	c.config = config
	return true
}

// RawConfig returns the last configuration applied with Configure.
func (c *BaseComponent) RawConfig() map[string]interface{} {
	return c.config
}

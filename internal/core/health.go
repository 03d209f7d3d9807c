package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/sliink/queuesync/internal/model"
)

// HealthMonitor tracks system and component health
type HealthMonitor struct {
	components map[string]Component
	metrics    map[string]interface{}
	mutex      sync.RWMutex
	BaseComponent
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{
		components:    make(map[string]Component),
		metrics:       make(map[string]interface{}),
		BaseComponent: NewBaseComponent("health_monitor", "Health Monitor"),
	}
}

// Initialize prepares the health monitor for operation
func (h *HealthMonitor) Initialize() bool {
	h.SetStatus(model.StatusInitialized)
	return true
}

// Start begins health monitor operation
func (h *HealthMonitor) Start() bool {
	h.SetStatus(model.StatusRunning)
	return true
}

// Stop clears all metrics
func (h *HealthMonitor) Stop() bool {
	h.mutex.Lock()
	h.metrics = make(map[string]interface{})
	h.mutex.Unlock()

	h.SetStatus(model.StatusStopped)
	return true
}

// RegisterComponent adds a component to be monitored
func (h *HealthMonitor) RegisterComponent(component Component) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.components[component.ID()] = component
}

// UnregisterComponent stops monitoring a component
func (h *HealthMonitor) UnregisterComponent(id string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	delete(h.components, id)
}

// AddMetric records a value with optional metadata
func (h *HealthMonitor) AddMetric(name string, value interface{}, metadata map[string]interface{}) {
	entry := make(map[string]interface{}, len(metadata)+2)
	for k, v := range metadata {
		entry[k] = v
	}
	entry["value"] = value
	entry["timestamp"] = time.Now()

	h.mutex.Lock()
	h.metrics[name] = entry
	h.mutex.Unlock()
}

// GetMetric retrieves a metric value
func (h *HealthMonitor) GetMetric(name string) (interface{}, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	metric, exists := h.metrics[name]
	return metric, exists
}

// GetAllMetrics retrieves all metrics
func (h *HealthMonitor) GetAllMetrics() map[string]interface{} {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	metrics := make(map[string]interface{}, len(h.metrics))
	for k, v := range h.metrics {
		metrics[k] = v
	}

	return metrics
}

// GetHealthStatus aggregates component statuses into a system status
func (h *HealthMonitor) GetHealthStatus() model.HealthStatus {
	h.mutex.RLock()
	components := make(map[string]model.HealthStatus, len(h.components))
	for id, component := range h.components {
		status := component.GetStatus()
		components[id] = model.HealthStatus{
			Status:    status,
			Timestamp: time.Now(),
			Message:   fmt.Sprintf("%s status: %s", component.Name(), status),
		}
	}
	h.mutex.RUnlock()

	statusCounts := make(map[model.ComponentStatus]int)
	for _, health := range components {
		statusCounts[health.Status]++
	}

	systemStatus := model.StatusRunning
	var statusMessage string

	switch {
	case statusCounts[model.StatusError] > 0:
		systemStatus = model.StatusError
		statusMessage = fmt.Sprintf("System has errors: %d components in ERROR state", statusCounts[model.StatusError])
	case statusCounts[model.StatusStopped] > 0 && statusCounts[model.StatusStopped] == len(components):
		systemStatus = model.StatusStopped
		statusMessage = "System is stopped"
	case statusCounts[model.StatusRunning] == 0:
		systemStatus = model.StatusInitialized
		statusMessage = "System is initializing"
	case statusCounts[model.StatusRunning] < len(components):
		statusMessage = fmt.Sprintf("System is partially running: %d of %d components running", statusCounts[model.StatusRunning], len(components))
	default:
		statusMessage = "System is healthy: all components running"
	}

	return model.HealthStatus{
		Status:     systemStatus,
		Timestamp:  time.Now(),
		Message:    statusMessage,
		Components: components,
		Details:    h.GetAllMetrics(),
	}
}

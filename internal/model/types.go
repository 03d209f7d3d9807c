package model

import "time"

// ComponentStatus represents the current status of a component
type ComponentStatus string

const (
	// StatusUninitialized indicates the component has not been initialized
	StatusUninitialized ComponentStatus = "UNINITIALIZED"
	// StatusInitialized indicates the component has been initialized but not started
	StatusInitialized ComponentStatus = "INITIALIZED"
	// StatusRunning indicates the component is currently running
	StatusRunning ComponentStatus = "RUNNING"
	// StatusStopped indicates the component has been stopped
	StatusStopped ComponentStatus = "STOPPED"
	// StatusError indicates the component is in an error state
	StatusError ComponentStatus = "ERROR"
)

// PluginType represents the type of plugin
type PluginType string

const (
	// InputPluginType represents plugins that receive trigger messages
	InputPluginType PluginType = "INPUT"
	// ProcessorPluginType represents plugins that transform batches
	ProcessorPluginType PluginType = "PROCESSOR"
	// OutputPluginType represents plugins that hand batches to a sink
	OutputPluginType PluginType = "OUTPUT"
)

// RecordType identifies what a DataBatch carries
type RecordType string

const (
	// TriggerRecordType marks a batch of queue messages
	TriggerRecordType RecordType = "TRIGGER"
	// ProductRecordType marks a batch of products bound for a table
	ProductRecordType RecordType = "PRODUCT"
)

// ParseRecordType maps a config key such as "trigger" or "products" to a RecordType.
func ParseRecordType(s string) (RecordType, bool) {
	switch s {
	case "trigger", "triggers", "TRIGGER":
		return TriggerRecordType, true
	case "product", "products", "PRODUCT":
		return ProductRecordType, true
	}
	return "", false
}

// EventType represents the type of system event
type EventType string

const (
	// EventComponentStatusChange indicates a component status has changed
	EventComponentStatusChange EventType = "COMPONENT_STATUS_CHANGE"
	// EventConfigChange indicates a configuration has changed
	EventConfigChange EventType = "CONFIG_CHANGE"
	// EventTriggerReceived indicates a batch of queue messages arrived
	EventTriggerReceived EventType = "TRIGGER_RECEIVED"
	// EventRecordsProduced indicates a trigger was turned into records
	EventRecordsProduced EventType = "RECORDS_PRODUCED"
	// EventDataSent indicates a batch was accepted by a sink
	EventDataSent EventType = "DATA_SENT"
	// EventError indicates an error has occurred
	EventError EventType = "ERROR"
)

// HealthStatus represents the health status of the system or a component
type HealthStatus struct {
	Status     ComponentStatus         `json:"status"`
	Timestamp  time.Time               `json:"timestamp"`
	Message    string                  `json:"message,omitempty"`
	Details    map[string]any          `json:"details,omitempty"`
	Components map[string]HealthStatus `json:"components,omitempty"`
}

// BufferStatus represents the status of an output buffer
type BufferStatus struct {
	BufferID   string    `json:"buffer_id"`
	QueueSize  int       `json:"queue_size"`
	TotalItems int       `json:"total_items"`
	IsFull     bool      `json:"is_full"`
	Dropped    int       `json:"dropped"`
	LastUpdate time.Time `json:"last_update"`
}

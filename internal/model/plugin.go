package model

// CoreAPI is an interface for core functions needed by plugins
type CoreAPI interface {
	// ProcessBatch runs a batch through the pipeline for its record type
	ProcessBatch(batch *DataBatch) *DataBatch

	// PublishEvent publishes an event to the event bus
	PublishEvent(eventType EventType, sourceID string, data interface{})
}

// Plugin is the base interface for all plugins
type Plugin interface {
	// Initialize prepares the plugin for operation
	Initialize() bool

	// Start begins plugin operation
	Start() bool

	// Stop halts plugin operation
	Stop() bool

	// GetStatus returns the current plugin status
	GetStatus() ComponentStatus

	// SetStatus updates the plugin status
	SetStatus(status ComponentStatus)

	// Configure applies configuration to the plugin
	Configure(config map[string]interface{}) bool

	// ID returns the plugin's unique identifier
	ID() string

	// Name returns the plugin's human-readable name
	Name() string

	// GetType returns the plugin type
	GetType() PluginType

	// Validate checks if the plugin is properly configured
	Validate() bool

	// RegisterWithCore registers the plugin with the core system
	RegisterWithCore(core CoreAPI) bool
}

// InputPlugin receives trigger messages from a queue-like source
type InputPlugin interface {
	Plugin

	// Collect drains received messages, one batch per message
	Collect() []*DataBatch
}

// Acknowledger is implemented by inputs whose source must be told once a
// collected batch has been routed. Unacknowledged messages may be delivered
// again.
type Acknowledger interface {
	Acknowledge(batches []*DataBatch) error
}

// Drainer is implemented by inputs that can hand over messages still queued
// after Stop.
type Drainer interface {
	Drain() []*DataBatch
}

// ProcessorPlugin transforms batches
type ProcessorPlugin interface {
	Plugin

	// Process transforms a data batch
	Process(batch *DataBatch) *DataBatch
}

// OutputPlugin hands batches to a sink
type OutputPlugin interface {
	Plugin

	// Send exports a data batch
	Send(batch *DataBatch) bool
}

// BatchTypeFilter is implemented by outputs that only accept some record types.
type BatchTypeFilter interface {
	AcceptsBatchType(batchType RecordType) bool
}

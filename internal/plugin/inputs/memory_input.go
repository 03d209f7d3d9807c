package inputs

import (
	"fmt"

	"github.com/sliink/queuesync/internal/model"
	"github.com/sliink/queuesync/internal/plugin"
)

// DefaultMemoryCapacity bounds the in-process queue when no capacity is set.
const DefaultMemoryCapacity = 1000

// MemoryInput is an in-process queue. Messages arrive through Enqueue, which
// the HTTP API calls for POST /queues/:id/messages.
type MemoryInput struct {
	plugin.BasePlugin
	queueName string
	queue     triggerQueue
}

// NewMemoryInput creates a new memory input plugin
func NewMemoryInput(id string) *MemoryInput {
	return &MemoryInput{
		BasePlugin: plugin.NewBasePlugin(id, "Memory Queue Input", model.InputPluginType),
		queueName:  DefaultQueue,
		queue:      triggerQueue{capacity: DefaultMemoryCapacity},
	}
}

// Validate rejects a negative capacity
func (m *MemoryInput) Validate() bool {
	return m.ConfigInt("capacity", DefaultMemoryCapacity) >= 0
}

// Initialize reads queue and capacity
func (m *MemoryInput) Initialize() bool {
	m.queueName = m.ConfigString("queue", DefaultQueue)
	m.queue.capacity = m.ConfigInt("capacity", DefaultMemoryCapacity)

	m.SetStatus(model.StatusInitialized)
	return true
}

// Start begins accepting messages
func (m *MemoryInput) Start() bool {
	m.SetStatus(model.StatusRunning)
	return true
}

// Stop stops accepting messages. Queued messages are kept.
func (m *MemoryInput) Stop() bool {
	m.SetStatus(model.StatusStopped)
	return true
}

// Enqueue offers one message. The payload is kept verbatim.
func (m *MemoryInput) Enqueue(payload string) (model.TriggerMessage, error) {
	if m.GetStatus() != model.StatusRunning {
		return model.TriggerMessage{}, fmt.Errorf("%s: %w", m.ID(), ErrNotRunning)
	}

	msg := newTrigger(m.queueName, payload, map[string]string{"transport": "memory"})
	if err := m.queue.push(msg); err != nil {
		return model.TriggerMessage{}, fmt.Errorf("%s: %w", m.ID(), err)
	}
	return msg, nil
}

// Pending returns the number of messages waiting for Collect.
func (m *MemoryInput) Pending() int {
	return m.queue.len()
}

// Dropped returns how many messages were rejected because the queue was full.
func (m *MemoryInput) Dropped() int {
	return m.queue.droppedCount()
}

// Collect drains queued messages, one TRIGGER batch each
func (m *MemoryInput) Collect() []*model.DataBatch {
	if m.GetStatus() != model.StatusRunning {
		return nil
	}
	return m.queue.drain(m.ID())
}

var _ model.Drainer = (*MemoryInput)(nil)

// Drain empties the queue whatever the input's status.
func (m *MemoryInput) Drain() []*model.DataBatch {
	return m.queue.drain(m.ID())
}

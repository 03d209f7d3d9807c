// Package plugintest provides a recording model.CoreAPI for plugin tests.
package plugintest

import (
	"sync"

	"github.com/sliink/queuesync/internal/model"
)

// Event is one PublishEvent call.
type Event struct {
	Type     model.EventType
	SourceID string
	Data     interface{}
}

// Core records published events and passes batches through ProcessBatch,
// or through ProcessFunc when set.
type Core struct {
	ProcessFunc func(batch *model.DataBatch) *model.DataBatch

	mu        sync.Mutex
	events    []Event
	processed []*model.DataBatch
}

// ProcessBatch records the batch and applies ProcessFunc.
func (c *Core) ProcessBatch(batch *model.DataBatch) *model.DataBatch {
	c.mu.Lock()
	c.processed = append(c.processed, batch)
	c.mu.Unlock()

	if c.ProcessFunc != nil {
		return c.ProcessFunc(batch)
	}
	return batch
}

// PublishEvent records the event.
func (c *Core) PublishEvent(eventType model.EventType, sourceID string, data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, Event{Type: eventType, SourceID: sourceID, Data: data})
}

// Events returns recorded events of the given type, or all events when
// eventType is empty.
func (c *Core) Events(eventType model.EventType) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Event
	for _, e := range c.events {
		if eventType == "" || e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Processed returns every batch passed to ProcessBatch.
func (c *Core) Processed() []*model.DataBatch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*model.DataBatch(nil), c.processed...)
}

package core

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sliink/queuesync/internal/metrics"
	"github.com/sliink/queuesync/internal/model"
)

// Event represents a system event with metadata
type Event struct {
	Type      model.EventType
	SourceID  string
	Data      interface{}
	Timestamp time.Time
}

// NewEvent creates a new event
func NewEvent(eventType model.EventType, sourceID string, data interface{}) Event {
	return Event{
		Type:      eventType,
		SourceID:  sourceID,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// EventCallback is a function that is called when an event occurs
type EventCallback func(Event)

// EventBus handles event publication and subscription
type EventBus struct {
	subscribers map[model.EventType]map[string]EventCallback
	mutex       sync.RWMutex
	BaseComponent
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers:   make(map[model.EventType]map[string]EventCallback),
		BaseComponent: NewBaseComponent("event_bus", "Event Bus"),
	}
}

// Initialize prepares the event bus for operation
func (b *EventBus) Initialize() bool {
	b.SetStatus(model.StatusInitialized)
	return true
}

// Start begins event bus operation
func (b *EventBus) Start() bool {
	b.SetStatus(model.StatusRunning)
	return true
}

// Stop drops all subscribers
func (b *EventBus) Stop() bool {
	b.mutex.Lock()
	b.subscribers = make(map[model.EventType]map[string]EventCallback)
	b.mutex.Unlock()

	b.SetStatus(model.StatusStopped)
	return true
}

// Subscribe registers a callback for a specific event type. A second
// subscription with the same listenerID replaces the first.
func (b *EventBus) Subscribe(eventType model.EventType, listenerID string, callback EventCallback) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.subscribers[eventType] == nil {
		b.subscribers[eventType] = make(map[string]EventCallback)
	}
	b.subscribers[eventType][listenerID] = callback
}

// Unsubscribe removes a subscriber from a specific event type
func (b *EventBus) Unsubscribe(eventType model.EventType, listenerID string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.subscribers[eventType] != nil {
		delete(b.subscribers[eventType], listenerID)
	}
}

// Publish calls every subscriber of the event's type synchronously. Events
// published while the bus is not running are dropped.
func (b *EventBus) Publish(event Event) {
	if b.GetStatus() != model.StatusRunning {
		return
	}

	b.mutex.RLock()
	callbacks := make([]EventCallback, 0, len(b.subscribers[event.Type]))
	for _, callback := range b.subscribers[event.Type] {
		callbacks = append(callbacks, callback)
	}
	b.mutex.RUnlock()

	for _, callback := range callbacks {
		callback(event)
	}
}

// logErrorEvent is the core's ERROR subscriber.
func logErrorEvent(event Event) {
	metrics.ErrorsTotal.WithLabelValues(event.SourceID).Inc()
	log.Printf("%s: %s", event.SourceID, describe(event.Data))
}

func describe(data interface{}) string {
	switch v := data.(type) {
	case error:
		return v.Error()
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

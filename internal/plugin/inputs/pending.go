package inputs

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sliink/queuesync/internal/model"
)

// DefaultQueue is the queue name stamped on triggers when none is configured.
const DefaultQueue = "testqueue"

var (
	// ErrQueueFull is returned when a bounded input cannot take another message.
	ErrQueueFull = errors.New("input queue is full")
	// ErrNotRunning is returned when a message is offered to a stopped input.
	ErrNotRunning = errors.New("input is not running")
)

// newTrigger stamps a received payload with an id and receive time.
func newTrigger(queue, payload string, attributes map[string]string) model.TriggerMessage {
	if attributes == nil {
		attributes = make(map[string]string)
	}
	return model.TriggerMessage{
		ID:         uuid.NewString(),
		Queue:      queue,
		Payload:    payload,
		ReceivedAt: time.Now(),
		Attributes: attributes,
	}
}

// triggerQueue buffers received messages between Collect calls. A capacity
// of zero or less means unbounded.
type triggerQueue struct {
	mu       sync.Mutex
	pending  []model.TriggerMessage
	capacity int
	dropped  int
}

func (q *triggerQueue) push(msg model.TriggerMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.capacity > 0 && len(q.pending) >= q.capacity {
		q.dropped++
		return ErrQueueFull
	}
	q.pending = append(q.pending, msg)
	return nil
}

// drain empties the queue into one TRIGGER batch per message, oldest first.
func (q *triggerQueue) drain(sourceID string) []*model.DataBatch {
	q.mu.Lock()
	msgs := q.pending
	q.pending = nil
	q.mu.Unlock()

	if len(msgs) == 0 {
		return nil
	}

	batches := make([]*model.DataBatch, 0, len(msgs))
	for _, msg := range msgs {
		batches = append(batches, model.NewTriggerBatch(sourceID, msg))
	}
	return batches
}

func (q *triggerQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *triggerQueue) droppedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

package core

import (
	"sort"
	"sync"
	"time"

	"github.com/sliink/queuesync/internal/metrics"
	"github.com/sliink/queuesync/internal/model"
)

// DefaultBufferSize bounds each output queue when no size is configured.
const DefaultBufferSize = 1000

// BufferManager holds a bounded queue of batches per output
type BufferManager struct {
	buffers      map[string][]*model.DataBatch
	maxQueueSize int
	status       map[string]model.BufferStatus
	mutex        sync.RWMutex
	BaseComponent
}

// NewBufferManager creates a new buffer manager
func NewBufferManager(maxQueueSize int) *BufferManager {
	if maxQueueSize <= 0 {
		maxQueueSize = DefaultBufferSize
	}

	return &BufferManager{
		buffers:       make(map[string][]*model.DataBatch),
		maxQueueSize:  maxQueueSize,
		status:        make(map[string]model.BufferStatus),
		BaseComponent: NewBaseComponent("buffer_manager", "Buffer Manager"),
	}
}

// Initialize prepares the buffer manager for operation
func (b *BufferManager) Initialize() bool {
	b.SetStatus(model.StatusInitialized)
	return true
}

// Start begins buffer manager operation
func (b *BufferManager) Start() bool {
	b.SetStatus(model.StatusRunning)
	return true
}

// Stop discards everything still queued
func (b *BufferManager) Stop() bool {
	b.mutex.Lock()
	for outputID := range b.buffers {
		metrics.BufferedBatches.WithLabelValues(outputID).Set(0)
	}
	b.buffers = make(map[string][]*model.DataBatch)
	b.status = make(map[string]model.BufferStatus)
	b.mutex.Unlock()

	b.SetStatus(model.StatusStopped)
	return true
}

// Buffer queues a batch for an output. It returns false when the manager is
// not running or the queue is full; a full queue counts the batch as dropped.
func (b *BufferManager) Buffer(outputID string, batch *model.DataBatch) bool {
	if batch == nil || batch.Size() == 0 {
		return true
	}

	if b.GetStatus() != model.StatusRunning {
		return false
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, exists := b.buffers[outputID]; !exists {
		b.buffers[outputID] = make([]*model.DataBatch, 0)
		b.status[outputID] = model.BufferStatus{
			BufferID:   outputID,
			LastUpdate: time.Now(),
		}
	}

	status := b.status[outputID]
	if len(b.buffers[outputID]) >= b.maxQueueSize {
		status.IsFull = true
		status.Dropped++
		status.LastUpdate = time.Now()
		b.status[outputID] = status
		return false
	}

	b.buffers[outputID] = append(b.buffers[outputID], batch)

	status.QueueSize = len(b.buffers[outputID])
	status.TotalItems += batch.Size()
	status.IsFull = status.QueueSize >= b.maxQueueSize
	status.LastUpdate = time.Now()
	b.status[outputID] = status
	metrics.BufferedBatches.WithLabelValues(outputID).Set(float64(status.QueueSize))

	return true
}

// Flush removes up to maxBatches batches for an output, oldest first.
// maxBatches <= 0 takes everything.
func (b *BufferManager) Flush(outputID string, maxBatches int) []*model.DataBatch {
	if b.GetStatus() != model.StatusRunning {
		return nil
	}
	return b.take(outputID, maxBatches)
}

// Drain removes every queued batch for an output regardless of status.
func (b *BufferManager) Drain(outputID string) []*model.DataBatch {
	return b.take(outputID, 0)
}

func (b *BufferManager) take(outputID string, maxBatches int) []*model.DataBatch {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	queued, exists := b.buffers[outputID]
	if !exists {
		return nil
	}

	numBatches := len(queued)
	if maxBatches > 0 && maxBatches < numBatches {
		numBatches = maxBatches
	}
	if numBatches == 0 {
		return nil
	}

	result := make([]*model.DataBatch, numBatches)
	copy(result, queued[:numBatches])
	b.buffers[outputID] = queued[numBatches:]

	totalItems := 0
	for _, batch := range result {
		totalItems += batch.Size()
	}

	status := b.status[outputID]
	status.QueueSize = len(b.buffers[outputID])
	status.TotalItems -= totalItems
	status.IsFull = false
	status.LastUpdate = time.Now()
	b.status[outputID] = status
	metrics.BufferedBatches.WithLabelValues(outputID).Set(float64(status.QueueSize))

	return result
}

// GetBufferStatus retrieves the status of all buffers
func (b *BufferManager) GetBufferStatus() map[string]model.BufferStatus {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	result := make(map[string]model.BufferStatus, len(b.status))
	for k, v := range b.status {
		result[k] = v
	}

	return result
}

// GetBuffer returns the status of one output's buffer.
func (b *BufferManager) GetBuffer(outputID string) (model.BufferStatus, bool) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	status, exists := b.status[outputID]
	return status, exists
}

// BufferIDs lists the outputs that have a buffer, sorted.
func (b *BufferManager) BufferIDs() []string {
	b.mutex.RLock()
	ids := make([]string, 0, len(b.status))
	for id := range b.status {
		ids = append(ids, id)
	}
	b.mutex.RUnlock()

	sort.Strings(ids)
	return ids
}

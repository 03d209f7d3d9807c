package core

import (
	"fmt"
	"sync"

	"github.com/sliink/queuesync/internal/model"
)

// mockPlugin carries the lifecycle shared by the mock plugins below.
type mockPlugin struct {
	id         string
	name       string
	pluginType model.PluginType
	status     model.ComponentStatus
	invalid    bool
	core       model.CoreAPI
	mu         sync.Mutex
}

func (m *mockPlugin) ID() string {
	return m.id
}

func (m *mockPlugin) Name() string {
	return m.name
}

func (m *mockPlugin) GetType() model.PluginType {
	return m.pluginType
}

func (m *mockPlugin) GetStatus() model.ComponentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == "" {
		return model.StatusUninitialized
	}
	return m.status
}

func (m *mockPlugin) SetStatus(status model.ComponentStatus) {
	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

func (m *mockPlugin) Configure(config map[string]interface{}) bool {
	return config != nil
}

func (m *mockPlugin) Initialize() bool {
	m.SetStatus(model.StatusInitialized)
	return true
}

func (m *mockPlugin) Start() bool {
	m.SetStatus(model.StatusRunning)
	return true
}

func (m *mockPlugin) Stop() bool {
	m.SetStatus(model.StatusStopped)
	return true
}

func (m *mockPlugin) Validate() bool {
	return !m.invalid
}

func (m *mockPlugin) RegisterWithCore(core model.CoreAPI) bool {
	m.core = core
	return true
}

// mockInputPlugin hands out queued batches on Collect
type mockInputPlugin struct {
	mockPlugin
	pending []*model.DataBatch
}

func newMockInputPlugin(id string) *mockInputPlugin {
	return &mockInputPlugin{mockPlugin: mockPlugin{id: id, name: id, pluginType: model.InputPluginType}}
}

func (m *mockInputPlugin) push(batches ...*model.DataBatch) {
	m.mu.Lock()
	m.pending = append(m.pending, batches...)
	m.mu.Unlock()
}

func (m *mockInputPlugin) Collect() []*model.DataBatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	batches := m.pending
	m.pending = nil
	return batches
}

// queueInput behaves like the queue-backed inputs: Collect only serves a
// running input, Drain serves it after Stop, and routed batches are
// acknowledged back to it.
type queueInput struct {
	mockInputPlugin
	lateOnStop *model.DataBatch
	acked      []*model.DataBatch
}

func newQueueInput(id string) *queueInput {
	return &queueInput{mockInputPlugin: *newMockInputPlugin(id)}
}

func (q *queueInput) Collect() []*model.DataBatch {
	if q.GetStatus() != model.StatusRunning {
		return nil
	}
	return q.mockInputPlugin.Collect()
}

func (q *queueInput) Stop() bool {
	if q.lateOnStop != nil {
		q.push(q.lateOnStop)
	}
	return q.mockInputPlugin.Stop()
}

func (q *queueInput) Drain() []*model.DataBatch {
	return q.mockInputPlugin.Collect()
}

func (q *queueInput) Acknowledge(batches []*model.DataBatch) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, batches...)
	return nil
}

func (q *queueInput) pendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *queueInput) ackedIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var ids []string
	for _, b := range q.acked {
		ids = append(ids, b.BatchID)
	}
	return ids
}

// mockProcessorPlugin implements the ProcessorPlugin interface for testing
type mockProcessorPlugin struct {
	mockPlugin
	processFunc func(batch *model.DataBatch) *model.DataBatch
}

func newMockProcessorPlugin(id, name string, processFunc func(batch *model.DataBatch) *model.DataBatch) *mockProcessorPlugin {
	return &mockProcessorPlugin{
		mockPlugin:  mockPlugin{id: id, name: name, pluginType: model.ProcessorPluginType},
		processFunc: processFunc,
	}
}

func (m *mockProcessorPlugin) Process(batch *model.DataBatch) *model.DataBatch {
	if m.processFunc != nil {
		return m.processFunc(batch)
	}
	return batch
}

// mockOutputPlugin records every batch it is sent
type mockOutputPlugin struct {
	mockPlugin
	accepts []model.RecordType
	fail    bool
	sent    []*model.DataBatch
}

func newMockOutputPlugin(id string, accepts ...model.RecordType) *mockOutputPlugin {
	return &mockOutputPlugin{
		mockPlugin: mockPlugin{id: id, name: id, pluginType: model.OutputPluginType},
		accepts:    accepts,
	}
}

func (m *mockOutputPlugin) Send(batch *model.DataBatch) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return false
	}
	m.sent = append(m.sent, batch)
	return true
}

func (m *mockOutputPlugin) sentBatches() []*model.DataBatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.DataBatch(nil), m.sent...)
}

// filteredOutput only accepts the listed record types
type filteredOutput struct {
	*mockOutputPlugin
}

func (f filteredOutput) AcceptsBatchType(batchType model.RecordType) bool {
	for _, accepted := range f.accepts {
		if accepted == batchType {
			return true
		}
	}
	return false
}

func createTriggerBatch(payload string) *model.DataBatch {
	return model.NewTriggerBatch("test_queue", model.TriggerMessage{
		ID:      "msg-" + payload,
		Queue:   "testqueue",
		Payload: payload,
	})
}

func createProductBatch(n int) *model.DataBatch {
	batch := model.NewDataBatch(model.ProductRecordType)
	for i := 1; i <= n; i++ {
		batch.AddProducts(model.Product{ProductID: i, Name: "test", Cost: 100 * i})
	}
	return batch
}

// producingProcessor turns each trigger into n products, like product_producer.
func producingProcessor(id string, n int) *mockProcessorPlugin {
	return newMockProcessorPlugin(id, "Producer", func(batch *model.DataBatch) *model.DataBatch {
		if batch.BatchType != model.TriggerRecordType {
			return batch
		}
		out := batch.Derive(model.ProductRecordType)
		for i := 1; i <= n; i++ {
			out.AddProducts(model.Product{ProductID: i, Name: fmt.Sprintf("test-%s", batch.Triggers[0].Payload), Cost: 100 * i})
		}
		return out
	})
}

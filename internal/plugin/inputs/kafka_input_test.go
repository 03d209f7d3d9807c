package inputs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sliink/queuesync/internal/model"
	"github.com/sliink/queuesync/internal/plugin/plugintest"
	"github.com/sliink/queuesync/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader serves queued messages, then blocks until closed or cancelled.
type fakeReader struct {
	messages  chan kafka.Message
	errs      chan error
	closed    chan struct{}
	once      sync.Once
	mu        sync.Mutex
	committed []kafka.Message
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		messages: make(chan kafka.Message, 16),
		errs:     make(chan error, 4),
		closed:   make(chan struct{}),
	}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-r.messages:
		return msg, nil
	case err := <-r.errs:
		return kafka.Message{}, err
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case <-r.closed:
		return kafka.Message{}, errors.New("reader closed")
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) offsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int64
	for _, msg := range r.committed {
		out = append(out, msg.Offset)
	}
	return out
}

func (r *fakeReader) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

func newTestKafkaInput(t *testing.T, reader *fakeReader) (*KafkaInput, *plugintest.Core, *queue.ReaderConfig) {
	t.Helper()
	var used queue.ReaderConfig
	core := &plugintest.Core{}

	input := NewKafkaInput("kafka_queue")
	input.Configure(map[string]interface{}{
		"brokers":     []interface{}{"localhost:9092"},
		"group_id":    "products",
		"error_pause": "10ms",
	})
	input.RegisterWithCore(core)
	input.newReader = func(cfg queue.ReaderConfig) (messageReader, error) {
		used = cfg
		return reader, nil
	}
	require.True(t, input.Validate())
	require.True(t, input.Initialize())
	return input, core, &used
}

func TestKafkaInputValidate(t *testing.T) {
	input := NewKafkaInput("kafka_queue")
	assert.False(t, input.Validate())
	assert.False(t, input.Initialize())

	input.Configure(map[string]interface{}{"brokers": "localhost:9092"})
	assert.True(t, input.Validate())
}

func TestKafkaInputInitializeDefaults(t *testing.T) {
	input, _, _ := newTestKafkaInput(t, newFakeReader())

	assert.Equal(t, []string{"localhost:9092"}, input.cfg.Brokers)
	assert.Equal(t, queue.DefaultTopic, input.cfg.Topic)
	assert.Equal(t, "products", input.cfg.GroupID)
	assert.Equal(t, 1, input.cfg.MinBytes)
	assert.Equal(t, 10_000_000, input.cfg.MaxBytes)
	assert.Equal(t, 10*time.Millisecond, input.errorPause)
}

func TestKafkaInputConsumesMessages(t *testing.T) {
	reader := newFakeReader()
	input, _, used := newTestKafkaInput(t, reader)

	require.True(t, input.Start())
	assert.Equal(t, "testqueue", used.Topic)

	reader.messages <- kafka.Message{Topic: "testqueue", Partition: 2, Offset: 41, Key: []byte("k"), Value: []byte("any-message")}
	reader.messages <- kafka.Message{Value: []byte("")}

	batches := collectUntil(t, input, 2)
	assert.Equal(t, []string{"any-message", ""}, payloads(batches))

	first := batches[0].Triggers[0]
	assert.Equal(t, "testqueue", first.Queue)
	assert.Equal(t, "2", first.Attributes["partition"])
	assert.Equal(t, "41", first.Attributes["offset"])
	assert.Equal(t, "k", first.Attributes["key"])
	assert.Equal(t, "testqueue", batches[1].Triggers[0].Queue, "topic falls back to the configured one")

	assert.True(t, input.Stop())
	assert.Equal(t, model.StatusStopped, input.GetStatus())
}

func TestKafkaInputReadErrorsArePublished(t *testing.T) {
	reader := newFakeReader()
	input, core, _ := newTestKafkaInput(t, reader)
	require.True(t, input.Start())
	defer input.Stop()

	reader.errs <- errors.New("broker unavailable")
	require.Eventually(t, func() bool {
		return len(core.Events(model.EventError)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	reader.messages <- kafka.Message{Value: []byte("after-error")}
	assert.Equal(t, []string{"after-error"}, payloads(collectUntil(t, input, 1)))
}

func TestKafkaInputCommitsOnlyAcknowledgedMessages(t *testing.T) {
	reader := newFakeReader()
	input, _, _ := newTestKafkaInput(t, reader)
	require.True(t, input.Start())
	defer input.Stop()

	reader.messages <- kafka.Message{Offset: 7, Value: []byte("first")}
	reader.messages <- kafka.Message{Offset: 8, Value: []byte("second")}

	batches := collectUntil(t, input, 2)
	assert.Empty(t, reader.offsets(), "nothing is committed before acknowledgement")
	assert.Equal(t, 2, input.Uncommitted())

	require.NoError(t, input.Acknowledge(batches[:1]))
	assert.Equal(t, []int64{7}, reader.offsets())
	assert.Equal(t, 1, input.Uncommitted())

	require.NoError(t, input.Acknowledge(batches))
	assert.Equal(t, []int64{7, 8}, reader.offsets())
	assert.Equal(t, 0, input.Uncommitted())
}

func TestKafkaInputStopDropsUnacknowledged(t *testing.T) {
	reader := newFakeReader()
	input, _, _ := newTestKafkaInput(t, reader)
	require.True(t, input.Start())

	reader.messages <- kafka.Message{Offset: 3, Value: []byte("pending")}
	batches := collectUntil(t, input, 1)

	require.True(t, input.Stop())
	assert.Equal(t, 0, input.Uncommitted())
	assert.NoError(t, input.Acknowledge(batches), "released messages are no longer tracked")
	assert.Empty(t, reader.offsets())
}

func TestKafkaInputStartFailure(t *testing.T) {
	input, core, _ := newTestKafkaInput(t, nil)
	input.newReader = func(queue.ReaderConfig) (messageReader, error) {
		return nil, errors.New("no brokers reachable")
	}

	assert.False(t, input.Start())
	assert.Len(t, core.Events(model.EventError), 1)
}

func TestTriggerFromMessage(t *testing.T) {
	sent := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := triggerFromMessage(kafka.Message{
		Topic:   "testqueue",
		Value:   []byte("payload"),
		Time:    sent,
		Headers: []kafka.Header{{Key: "trace", Value: []byte("abc")}},
	})

	assert.Equal(t, "payload", msg.Payload)
	assert.Equal(t, sent, msg.ReceivedAt)
	assert.Equal(t, "abc", msg.Attributes["header.trace"])
	assert.Equal(t, "kafka", msg.Attributes["transport"])
	assert.NotContains(t, msg.Attributes, "key")
	assert.NotEmpty(t, msg.ID)
}

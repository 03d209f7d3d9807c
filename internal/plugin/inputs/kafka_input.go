package inputs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sliink/queuesync/internal/model"
	"github.com/sliink/queuesync/internal/plugin"
	"github.com/sliink/queuesync/internal/queue"
)

// commitTimeout bounds one offset commit.
const commitTimeout = 10 * time.Second

// messageReader is the part of *kafka.Reader the input uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaInput consumes a topic with a consumer group. Each message becomes
// one trigger. Offsets are committed only when the core acknowledges the
// trigger's batch, so messages not yet routed are redelivered after a
// restart.
type KafkaInput struct {
	plugin.BasePlugin
	cfg        queue.ReaderConfig
	errorPause time.Duration
	newReader  func(cfg queue.ReaderConfig) (messageReader, error)
	queue      triggerQueue

	reader   messageReader
	inflight map[string]kafka.Message // by trigger ID
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
}

var _ model.Acknowledger = (*KafkaInput)(nil)

// NewKafkaInput creates a new kafka input plugin
func NewKafkaInput(id string) *KafkaInput {
	return &KafkaInput{
		BasePlugin: plugin.NewBasePlugin(id, "Kafka Queue Input", model.InputPluginType),
		errorPause: time.Second,
		newReader: func(cfg queue.ReaderConfig) (messageReader, error) {
			return queue.NewReader(cfg)
		},
	}
}

// Validate requires at least one broker
func (k *KafkaInput) Validate() bool {
	return len(k.ConfigStringSlice("brokers")) > 0
}

// Initialize reads reader settings
func (k *KafkaInput) Initialize() bool {
	k.cfg = queue.ReaderConfig{
		Brokers:  k.ConfigStringSlice("brokers"),
		Topic:    k.ConfigString("topic", queue.DefaultTopic),
		GroupID:  k.ConfigString("group_id", "queuesync"),
		MinBytes: k.ConfigInt("min_bytes", 1),
		MaxBytes: k.ConfigInt("max_bytes", 10e6),
	}
	k.errorPause = k.ConfigDuration("error_pause", time.Second)

	if len(k.cfg.Brokers) == 0 {
		return false
	}

	k.SetStatus(model.StatusInitialized)
	return true
}

// Start opens the reader and starts the read loop
func (k *KafkaInput) Start() bool {
	reader, err := k.newReader(k.cfg)
	if err != nil {
		k.PublishError(fmt.Errorf("open reader: %w", err))
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())

	k.mu.Lock()
	k.reader = reader
	k.inflight = make(map[string]kafka.Message)
	k.cancel = cancel
	k.mu.Unlock()

	k.wg.Add(1)
	go k.readLoop(ctx, reader)

	k.SetStatus(model.StatusRunning)
	return true
}

// Stop ends the read loop and closes the reader. Fetched messages that were
// never acknowledged are dropped; the consumer group delivers them again.
func (k *KafkaInput) Stop() bool {
	k.mu.Lock()
	cancel, reader := k.cancel, k.reader
	k.cancel, k.reader = nil, nil
	k.inflight = nil
	k.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			log.Printf("%s: close reader: %v", k.ID(), err)
		}
	}
	k.wg.Wait()
	k.queue.drain(k.ID())

	k.SetStatus(model.StatusStopped)
	return true
}

func (k *KafkaInput) readLoop(ctx context.Context, reader messageReader) {
	defer k.wg.Done()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			k.PublishError(fmt.Errorf("read %s: %w", k.cfg.Topic, err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(k.errorPause):
			}
			continue
		}

		if msg.Topic == "" {
			msg.Topic = k.cfg.Topic
		}
		trigger := triggerFromMessage(msg)
		k.mu.Lock()
		if k.inflight != nil {
			k.inflight[trigger.ID] = msg
		}
		k.mu.Unlock()
		if err := k.queue.push(trigger); err != nil {
			k.PublishError(err)
		}
	}
}

// Acknowledge commits the offsets of the messages behind batches.
func (k *KafkaInput) Acknowledge(batches []*model.DataBatch) error {
	k.mu.Lock()
	reader := k.reader
	var msgs []kafka.Message
	for _, batch := range batches {
		for _, t := range batch.Triggers {
			if msg, ok := k.inflight[t.ID]; ok {
				msgs = append(msgs, msg)
				delete(k.inflight, t.ID)
			}
		}
	}
	k.mu.Unlock()

	if len(msgs) == 0 {
		return nil
	}
	if reader == nil {
		return fmt.Errorf("%s: %w", k.ID(), ErrNotRunning)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()
	if err := reader.CommitMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("commit %s: %w", k.cfg.Topic, err)
	}
	return nil
}

// Uncommitted returns the number of fetched messages not yet acknowledged.
func (k *KafkaInput) Uncommitted() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.inflight)
}

// triggerFromMessage keeps the payload verbatim and records where it came from.
func triggerFromMessage(msg kafka.Message) model.TriggerMessage {
	attrs := map[string]string{
		"transport": "kafka",
		"partition": strconv.Itoa(msg.Partition),
		"offset":    strconv.FormatInt(msg.Offset, 10),
	}
	if len(msg.Key) > 0 {
		attrs["key"] = string(msg.Key)
	}
	for _, h := range msg.Headers {
		attrs["header."+h.Key] = string(h.Value)
	}

	trigger := newTrigger(msg.Topic, string(msg.Value), attrs)
	if !msg.Time.IsZero() {
		trigger.ReceivedAt = msg.Time
	}
	return trigger
}

// Collect drains consumed messages, one TRIGGER batch each
func (k *KafkaInput) Collect() []*model.DataBatch {
	if k.GetStatus() != model.StatusRunning {
		return nil
	}
	return k.queue.drain(k.ID())
}

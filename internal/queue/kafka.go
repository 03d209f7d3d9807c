// Package queue connects trigger queues to Kafka topics.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// DefaultTopic is the queue name the producer listens on.
const DefaultTopic = "testqueue"

// ReaderConfig selects the topic and consumer group of a trigger queue.
type ReaderConfig struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
}

// NewReader builds a consumer-group reader for cfg.
func NewReader(cfg ReaderConfig) (*kafka.Reader, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("queue: at least one broker is required")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "queuesync"
	}
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10e6
	}

	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	}), nil
}

// Publisher writes trigger messages to a topic.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher returns a publisher for topic.
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("queue: at least one broker is required")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}, nil
}

// Topic returns the destination topic.
func (p *Publisher) Topic() string {
	return p.writer.Topic
}

// Publish sends one message per payload.
func (p *Publisher) Publish(ctx context.Context, payloads ...string) error {
	msgs := make([]kafka.Message, len(payloads))
	now := time.Now()
	for i, payload := range payloads {
		msgs[i] = kafka.Message{Value: []byte(payload), Time: now}
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish to %s: %w", p.writer.Topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

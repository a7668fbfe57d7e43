// Package audit publishes terminal callback outcomes to Kafka so downstream
// systems (reporting, fraud review) can consume issuance/presentation
// results without polling the relay.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Event is one terminal callback outcome.
type Event struct {
	State      string    `json:"state"`
	Status     string    `json:"status"`
	Subject    string    `json:"subject,omitempty"`
	JTI        string    `json:"jti,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Publisher writes events to a Kafka topic, keyed by correlation token so
// redelivered callbacks land in the same partition.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewPublisher connects to the given brokers. The topic must already exist
// or broker-side auto-creation must be enabled.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(50*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// Emit produces the event asynchronously. Callback handling never blocks on
// Kafka; produce failures are logged and dropped.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.State),
		Value: value,
	}
	p.client.Produce(context.WithoutCancel(ctx), record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("audit event produce failed",
				"state", event.State,
				"status", event.Status,
				"error", err,
			)
		}
	})
	return nil
}

// Close flushes pending events and releases the client.
func (p *Publisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}

// Package events publishes domain events to Kafka for downstream consumers
// (CRM sync, analytics). The outbox dispatcher drives it; this package only
// knows how to encode and produce.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"dossierflow/internal/dossier/models"
)

// KafkaPublisher produces one record per domain event, keyed by dossier id
// so every consumer sees a dossier's events in order.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher connects to the brokers and verifies reachability.
func NewKafkaPublisher(ctx context.Context, brokers []string, topic string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping kafka brokers: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic}, nil
}

// Name identifies the sink in dispatcher logs and metrics.
func (p *KafkaPublisher) Name() string { return "kafka" }

// Deliver publishes the event synchronously. The dispatcher retries the
// whole batch on failure, so at-least-once semantics hold end to end.
func (p *KafkaPublisher) Deliver(ctx context.Context, e models.DomainEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	record := &kgo.Record{
		Key:   []byte(e.DossierID.String()),
		Value: payload,
		Topic: p.topic,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce %s event: %w", e.Kind, err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}

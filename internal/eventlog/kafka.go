package eventlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink produces committed events to a Kafka topic, keyed by subject so
// per-record ordering survives partitioning.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

func (s *KafkaSink) Produce(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Subject),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce event: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() {
	s.client.Close()
}

// Package kafkapublisher emits dataset refresh events for import jobs and
// operators.
package kafkapublisher

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/rurair-map/internal/invalidation"
)

// Producer is the part of sarama.SyncProducer the publisher uses.
type Producer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

type Publisher struct {
	topic string
	prod  Producer
	now   func() time.Time
}

// New dials brokers with a synchronous producer that waits for all in-sync replicas.
func New(brokers []string, topic string) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 3

	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafkapublisher: create producer: %w", err)
	}
	return NewWithProducer(prod, topic), nil
}

func NewWithProducer(p Producer, topic string) *Publisher {
	return &Publisher{topic: topic, prod: p, now: time.Now}
}

// Refresh publishes a refresh event for dataset, optionally scoped to one
// category. Events are keyed by dataset so one dataset stays on one partition.
func (p *Publisher) Refresh(dataset, category string) (invalidation.Event, error) {
	ev := invalidation.Event{
		Version:  1,
		Op:       invalidation.OpRefresh,
		Dataset:  dataset,
		Category: category,
		TS:       p.now().UTC(),
	}
	if err := ev.Validate(); err != nil {
		return ev, fmt.Errorf("kafkapublisher: %w", err)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return ev, fmt.Errorf("kafkapublisher: marshal: %w", err)
	}
	_, _, err = p.prod.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(dataset),
		Value: sarama.ByteEncoder(b),
	})
	if err != nil {
		return ev, fmt.Errorf("kafkapublisher: send: %w", err)
	}
	return ev, nil
}

func (p *Publisher) Close() error {
	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("kafkapublisher: close producer: %w", err)
	}
	return nil
}

package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes payment events as JSON keyed by payment id, so all
// events of one payment land in the same partition.
type KafkaPublisher struct {
	logger *zap.Logger
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(logger *zap.Logger, brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
	return newKafkaPublisher(logger, writer, topic)
}

func newKafkaPublisher(logger *zap.Logger, w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{logger: logger, writer: w, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e PaymentEvent) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal payment event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.PaymentID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.EventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish payment event",
			zap.Error(err),
			zap.String("topic", p.topic),
			zap.String("event_type", string(e.EventType)),
			zap.String("payment_id", e.PaymentID),
		)
		return fmt.Errorf("publish %s: %w", e.EventType, err)
	}

	p.logger.Debug("payment event published",
		zap.String("topic", p.topic),
		zap.String("event_type", string(e.EventType)),
		zap.String("payment_id", e.PaymentID),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

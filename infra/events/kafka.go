package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radlee/payments-api/domain/payment"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes completed payments keyed by account number, so events
// for one account stay ordered within a partition.
type KafkaSink struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

func NewKafkaSink(brokers []string, topic string, logger *zap.Logger) *KafkaSink {
	logger = logger.With(zap.String("component", "kafka"))
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		Logger:       kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }),
		ErrorLogger:  kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }),
	}
	return &KafkaSink{writer: writer, topic: topic, logger: logger}
}

func (s *KafkaSink) Write(ctx context.Context, event payment.CompletedEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode payment event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.AccountNumber),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to produce payment event to Kafka: %w", err)
	}
	s.logger.Debug("Payment event produced",
		zap.String("topic", s.topic),
		zap.String("event_id", event.EventID),
	)
	return nil
}

func (s *KafkaSink) Close(_ context.Context) error {
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	return nil
}

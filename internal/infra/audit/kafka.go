package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"payment-reconciler/internal/domain/model"
	"payment-reconciler/internal/domain/ports/adapter"
	"payment-reconciler/internal/infra/metrics"
)

// Compile-time check
var _ adapter.AuditSink = (*KafkaSink)(nil)

// MessageWriter is the part of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink mirrors audit entries onto a topic keyed by provider payment id,
// so every change of one payment lands on the same partition.
type KafkaSink struct {
	w MessageWriter
}

func NewKafkaSink(w MessageWriter) *KafkaSink {
	return &KafkaSink{w: w}
}

// NewKafkaWriter builds a synchronous writer that waits for all in-sync replicas.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: false,
	}
}

func (s *KafkaSink) Append(ctx context.Context, e *model.AuditLogEntry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		metrics.IncAuditAppend("kafka", "error")
		return fmt.Errorf("encode audit %s: %w", e.ID, err)
	}
	msg := kafka.Message{
		Key:   []byte(e.ProviderPaymentID),
		Value: payload,
		Time:  e.Timestamp,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(e.Event)},
			{Key: "type", Value: []byte(e.Type)},
			{Key: "source", Value: []byte(e.Source)},
		},
	}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		metrics.IncAuditAppend("kafka", "error")
		return fmt.Errorf("publish audit %s: %w", e.ID, err)
	}
	metrics.IncAuditAppend("kafka", "ok")
	return nil
}

func (s *KafkaSink) Close() error { return s.w.Close() }

// Package audit publishes security-relevant pipeline events to kafka.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/ccs/internal/config"
	"github.com/turtacn/ccs/internal/domain/models"
	"github.com/turtacn/ccs/internal/domain/service"
	"github.com/turtacn/ccs/pkg/logger"
)

// KafkaAuditTrail writes audit events to a kafka topic, keyed by tenant slug
// so one tenant's events stay ordered within a partition.
type KafkaAuditTrail struct {
	writer *kafka.Writer
	log    logger.Logger
}

// NewKafkaAuditTrail builds the producer.
func NewKafkaAuditTrail(cfg *config.KafkaConfig, log logger.Logger) *KafkaAuditTrail {
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 100 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.AuditTopic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: writeTimeout,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: batchTimeout,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warn(context.Background(), "audit batch delivery failed",
					logger.Int("messages", len(messages)),
					logger.Error(err),
				)
			}
		},
	}

	return &KafkaAuditTrail{
		writer: writer,
		log:    log.WithComponent("audit_trail"),
	}
}

// Publish enqueues one audit event. Failures are logged and swallowed; an
// audit outage never fails a chat turn.
func (a *KafkaAuditTrail) Publish(ctx context.Context, event models.AuditEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		a.log.Warn(ctx, "audit event not serializable",
			logger.String("event_type", string(event.EventType)),
			logger.Error(err),
		)
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(event.TenantSlug),
		Value: payload,
		Time:  event.OccurredAt,
	}
	if err := a.writer.WriteMessages(ctx, msg); err != nil {
		a.log.Warn(ctx, "audit publish failed",
			logger.String("event_type", string(event.EventType)),
			logger.String("tenant_slug", event.TenantSlug),
			logger.Error(err),
		)
	}
	return nil
}

// Close flushes and releases the writer.
func (a *KafkaAuditTrail) Close() error {
	return a.writer.Close()
}

// NoopAuditTrail satisfies service.AuditTrail when kafka is disabled.
type NoopAuditTrail struct{}

// Publish discards the event.
func (NoopAuditTrail) Publish(context.Context, models.AuditEvent) error { return nil }

// Close is a no-op.
func (NoopAuditTrail) Close() error { return nil }

var _ service.AuditTrail = (*KafkaAuditTrail)(nil)
var _ service.AuditTrail = NoopAuditTrail{}

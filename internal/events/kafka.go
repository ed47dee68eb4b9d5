package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/tracing"
)

// MessageWriter is the part of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes every event as JSON keyed by the target ref, so all
// events for one target land on the same partition.
type KafkaSink struct {
	W   MessageWriter
	Log *zap.Logger
}

// NewKafkaSink returns nil when brokers is empty.
func NewKafkaSink(brokers []string, topic string, log *zap.Logger) *KafkaSink {
	if len(brokers) == 0 {
		return nil
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaSink{W: w, Log: log}
}

func (k *KafkaSink) Handle(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.Target.String()),
		Value: payload,
		Headers: append([]kafka.Header{
			{Key: "kind", Value: []byte(e.Kind)},
		}, tracing.KafkaHeaders(ctx)...),
	}
	if err := k.W.WriteMessages(ctx, msg); err != nil {
		k.Log.Error("event_publish_failed", zap.String("target", e.Target.String()), zap.Error(err))
		return fmt.Errorf("publish %s: %w", e.Kind, err)
	}
	k.Log.Info("event_published", zap.String("target", e.Target.String()), zap.String("kind", string(e.Kind)))
	return nil
}

func (k *KafkaSink) Close() error { return k.W.Close() }

package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/soocke/cyclewatch/config"
)

// messageWriter is the part of kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes records as JSON, keyed by session so one session's
// cycles stay ordered within a partition.
type KafkaSink struct {
	w     messageWriter
	topic string
}

func NewKafkaSink(cfg config.KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka sink: no brokers")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = "cycles"
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaSink{w: w, topic: topic}, nil
}

func (k *KafkaSink) Consume(ctx context.Context, rec Record) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("kafka sink: encode: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(rec.SessionID),
		Value: value,
		Time:  rec.EmittedAt,
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka sink: write to %s: %w", k.topic, err)
	}
	return nil
}

func (k *KafkaSink) Close() error { return k.w.Close() }

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig contains configurable parameters for the Kafka event emitter.
type KafkaConfig struct {
	// Brokers is the list of Kafka broker addresses (host:port).
	Brokers []string

	// Topic receives all engine events.
	Topic string

	// MaxAttempts is how many times a produce is retried on transient error.
	// Defaults to 3 if <= 0.
	MaxAttempts int

	// WriteTimeout is the per-attempt timeout for writes. Defaults to 10s.
	WriteTimeout time.Duration
}

// KafkaEmitter publishes engine events to a Kafka topic, keyed by opportunity
// id so events for one opportunity land on one partition and keep their order.
// Emit never blocks the editing path on a broker outage: failures are logged
// and dropped after retries.
type KafkaEmitter struct {
	writer      *kafka.Writer
	maxAttempts int
}

// NewKafkaEmitter constructs a KafkaEmitter.
func NewKafkaEmitter(cfg KafkaConfig) (*KafkaEmitter, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		Async:        false,
	})

	return &KafkaEmitter{writer: w, maxAttempts: cfg.MaxAttempts}, nil
}

func (k *KafkaEmitter) Emit(ctx context.Context, ev Event) {
	value, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[events.kafka] marshal event %s: %v", ev.Type, err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(ev.OpportunityID),
		Value: value,
		Time:  time.Now().UTC(),
	}

	backoff := 100 * time.Millisecond
	var lastErr error
	for attempt := 1; attempt <= k.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := k.writer.WriteMessages(attemptCtx, msg)
		cancel()
		if err == nil {
			return
		}
		lastErr = err
		time.Sleep(backoff)
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
	log.Printf("[events.kafka] produce %s for %s failed after %d attempts: %v",
		ev.Type, ev.OpportunityID, k.maxAttempts, lastErr)
}

// Close shuts down the underlying writer and releases resources.
func (k *KafkaEmitter) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"caption-merge-service/internal/models"
	"caption-merge-service/internal/observability/metrics"
)

// KafkaConfig holds Kafka consumer configuration.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Enabled bool
}

// KafkaSource consumes fragment records from a Kafka topic and pushes
// them into the buffer. The message key carries the session id when the
// payload omits it.
type KafkaSource struct {
	reader  *kafka.Reader
	buffer  *Buffer
	enabled bool
	metrics *metrics.Metrics
}

// NewKafkaSource creates a Kafka fragment source. When disabled (or with
// no brokers) it is a no-op, matching local setups without Kafka.
func NewKafkaSource(cfg *KafkaConfig, buffer *Buffer) *KafkaSource {
	m := metrics.DefaultMetrics

	if cfg == nil || !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka fragment source disabled")
		return &KafkaSource{buffer: buffer, enabled: false, metrics: m}
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("groupId", cfg.GroupID).
		Msg("Kafka fragment source initialized")

	return &KafkaSource{
		reader:  reader,
		buffer:  buffer,
		enabled: true,
		metrics: m,
	}
}

// Run consumes until the context is cancelled. Malformed fragments are
// dropped with a diagnostic; consumption continues with the next message.
func (s *KafkaSource) Run(ctx context.Context) {
	if !s.enabled {
		return
	}

	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			log.Error().Err(err).Msg("Kafka read error")
			time.Sleep(time.Second)
			continue
		}

		s.metrics.RecordFragmentReceived()

		fragment, err := models.DecodeFragment(msg.Value, string(msg.Key))
		if err != nil {
			log.Warn().
				Err(err).
				Str("key", string(msg.Key)).
				Msg("Dropping invalid fragment")
			s.metrics.RecordFragmentDropped("kafka_decode")
			continue
		}

		s.buffer.Push(fragment)
	}
}

// Close closes the Kafka reader.
func (s *KafkaSource) Close() error {
	if s.reader == nil {
		return nil
	}
	return s.reader.Close()
}

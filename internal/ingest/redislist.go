package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"caption-merge-service/internal/models"
	"caption-merge-service/internal/observability/metrics"
)

// RedisListSource drains fragment payloads from the Redis list upstream
// workers push onto. Unlike the Kafka source it has no long-running
// consumer; the engine calls Drain once per tick.
type RedisListSource struct {
	client  *redis.Client
	listKey string
	buffer  *Buffer
	metrics *metrics.Metrics
}

// NewRedisListSource creates a list-based fragment source sharing the
// store's Redis connection.
func NewRedisListSource(client *redis.Client, listKey string, buffer *Buffer) *RedisListSource {
	log.Info().Str("listKey", listKey).Msg("Redis list fragment source initialized")
	return &RedisListSource{
		client:  client,
		listKey: listKey,
		buffer:  buffer,
		metrics: metrics.DefaultMetrics,
	}
}

// Drain pops every currently queued payload off the list and pushes the
// well-formed fragments into the buffer. Returns the number of fragments
// accepted. A transport error stops the drain for this tick and is
// surfaced so the engine can keep its in-memory state intact.
func (s *RedisListSource) Drain(ctx context.Context) (int, error) {
	accepted := 0
	for {
		payload, err := s.client.LPop(ctx, s.listKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return accepted, nil
		}
		if err != nil {
			return accepted, fmt.Errorf("lpop %s: %w", s.listKey, err)
		}

		s.metrics.RecordFragmentReceived()

		fragment, err := models.DecodeFragment(payload, "")
		if err != nil {
			log.Warn().Err(err).Msg("Dropping invalid fragment")
			s.metrics.RecordFragmentDropped("list_decode")
			continue
		}
		if fragment.SessionID == "" {
			log.Warn().Msg("Dropping fragment with no session id")
			s.metrics.RecordFragmentDropped("no_session")
			continue
		}

		s.buffer.Push(fragment)
		accepted++
	}
}

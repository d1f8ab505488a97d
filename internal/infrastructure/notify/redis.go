package notify

import (
	"context"
	"fmt"
	"strings"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clinicore/consulta-engine/pkg/config"
)

// RedisSource consumes "summary ready" notifications published by the
// summarization service on <prefix>:summary:<encounter_id> channels and
// feeds them into the hub. The subscription reconnects with exponential
// backoff; engine operations themselves are never retried.
type RedisSource struct {
	client *redis.Client
	prefix string
	hub    Broker
	logger *zap.Logger
}

// NewRedisSource creates a Redis-backed notification source.
func NewRedisSource(cfg *config.NotifyConfig, hub Broker, logger *zap.Logger) *RedisSource {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &RedisSource{
		client: client,
		prefix: cfg.ChannelPrefix,
		hub:    hub,
		logger: logger,
	}
}

// Run subscribes and pumps signals until ctx is cancelled.
func (s *RedisSource) Run(ctx context.Context) error {
	pattern := s.pattern()

	operation := func() error {
		pubsub := s.client.PSubscribe(ctx, pattern)
		defer pubsub.Close()

		// Force the subscribe round trip so connection failures are
		// seen here and trigger the backoff.
		if _, err := pubsub.Receive(ctx); err != nil {
			return fmt.Errorf("subscribe %s: %w", pattern, err)
		}

		if s.logger != nil {
			s.logger.Info("subscribed to summary notifications", zap.String("pattern", pattern))
		}

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			case msg, ok := <-ch:
				if !ok {
					return fmt.Errorf("subscription %s closed", pattern)
				}
				s.dispatch(msg.Channel)
			}
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // keep reconnecting for the life of the engine
	err := backoff.Retry(operation, backoff.WithContext(bo, ctx))
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Close releases the Redis connection.
func (s *RedisSource) Close() error {
	return s.client.Close()
}

func (s *RedisSource) pattern() string {
	return s.prefix + ":summary:*"
}

func (s *RedisSource) dispatch(channel string) {
	idStr := strings.TrimPrefix(channel, s.prefix+":summary:")
	encounterID, err := uuid.Parse(idStr)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("ignoring notification with malformed encounter id",
				zap.String("channel", channel))
		}
		return
	}
	s.hub.Publish(Signal{EncounterID: encounterID, Source: SourcePush})
}

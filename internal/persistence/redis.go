package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/events"
)

// redisDialTimeout bounds the startup check so a missing Redis never
// delays the API.
const redisDialTimeout = 2 * time.Second

// ErrRedisDisabled is reported by readiness when no relay is configured.
var ErrRedisDisabled = errors.New("redis event relay disabled")

// Redis carries the connection behind the ticket event relay.
type Redis struct {
	Client  *redis.Client
	channel string
}

// NewRedis connects the event relay. An unreachable server is logged, not
// fatal: events keep flowing to in-process subscribers and publishing
// resumes once go-redis reconnects.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: redisDialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, ticket events stay in process",
			zap.String("addr", cfg.Addr),
			zap.Error(err),
		)
	} else {
		logger.Info("redis event relay connected",
			zap.String("addr", cfg.Addr),
			zap.String("channel", cfg.EventsChannel),
		)
	}

	return &Redis{Client: client, channel: cfg.EventsChannel}
}

// Relay returns the publisher/subscriber for the configured events channel.
func (r *Redis) Relay(logger *zap.Logger) *events.RedisRelay {
	return events.NewRedisRelay(r.Client, r.channel, logger)
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping backs the readiness check. Redis is optional, so callers report
// the error without failing readiness.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return ErrRedisDisabled
	}
	return r.Client.Ping(ctx).Err()
}

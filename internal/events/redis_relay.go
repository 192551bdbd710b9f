package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisRelay republishes domain events as JSON on a Redis pub/sub channel
// so other processes can follow ticket activity.
type RedisRelay struct {
	client  redis.UniversalClient
	channel string
	logger  *zap.Logger
}

// NewRedisRelay builds a relay. A nil client yields a relay that drops
// events.
func NewRedisRelay(client redis.UniversalClient, channel string, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{client: client, channel: channel, logger: logger}
}

// Attach subscribes the relay to every event on dispatcher.
func (r *RedisRelay) Attach(dispatcher Dispatcher) {
	dispatcher.SubscribeAll(r.Forward)
}

// Forward publishes one event. Relay failures are logged and swallowed so a
// Redis outage never fails a ticket operation.
func (r *RedisRelay) Forward(ctx context.Context, event Event) error {
	if r == nil || r.client == nil || r.channel == "" {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.Type, err)
	}
	if err := r.client.Publish(ctx, r.channel, body).Err(); err != nil {
		r.logger.Warn("event relay publish failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err),
		)
	}
	return nil
}

// Listen decodes events from the channel and hands them to handler until
// ctx is done.
func (r *RedisRelay) Listen(ctx context.Context, handler func(Event)) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("redis relay not configured")
	}
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Warn("skipping malformed event", zap.Error(err))
				continue
			}
			handler(event)
		}
	}
}

package chathub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"marketchat/backend/internal/models"
	"marketchat/backend/internal/obs"

	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "chat:"

// RedisBroker fans frames out over Redis pub/sub. Each topic maps to the
// channel "chat:<topic>" and every instance pattern-subscribes to "chat:*".
type RedisBroker struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisBroker(client *redis.Client, logger *slog.Logger) *RedisBroker {
	return &RedisBroker{client: client, log: obs.Or(logger).With("component", "redis-broker")}
}

func (b *RedisBroker) Publish(ctx context.Context, topic Topic, ev models.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode frame for %s: %w", topic, err)
	}
	if err := b.client.Publish(ctx, redisChannelPrefix+string(topic), payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (b *RedisBroker) Listen(ctx context.Context, deliver func(Topic, models.Event)) error {
	pubsub := b.client.PSubscribe(ctx, redisChannelPrefix+"*")
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reporting ready.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe: %w", err)
	}
	b.log.Info("listening for frames", "pattern", redisChannelPrefix+"*")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis subscription closed")
			}
			topic, ok := ParseTopic(strings.TrimPrefix(msg.Channel, redisChannelPrefix))
			if !ok {
				b.log.Warn("ignoring frame on unknown channel", "channel", msg.Channel)
				continue
			}
			var ev models.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn("ignoring undecodable frame", "channel", msg.Channel, "err", err)
				continue
			}
			deliver(topic, ev)
		}
	}
}

// Close is a no-op: the Redis client is owned by the caller.
func (b *RedisBroker) Close() error { return nil }

package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisEventBus implements Publisher and Subscriber over Redis Pub/Sub.
type RedisEventBus struct {
	client *redis.Client
}

func NewRedisEventBus(client *redis.Client) *RedisEventBus {
	return &RedisEventBus{client: client}
}

func (b *RedisEventBus) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return b.client.Publish(ctx, env.Channel(), data).Err()
}

// Subscribe blocks delivering matching messages to handler until ctx is done.
func (b *RedisEventBus) Subscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) error {
	pubsub := b.client.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg == nil {
				continue
			}
			handler(msg.Channel, []byte(msg.Payload))
		}
	}
}

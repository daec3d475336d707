package websocket

import (
	"context"

	"marketpulse/internal/events"
)

// RedisBridge relays execution transition events from the Redis bus to the
// hub, so every API instance serves every tenant's stream regardless of which
// instance performed the transition.
type RedisBridge struct {
	subscriber events.Subscriber
	hub        *Hub
}

func NewRedisBridge(subscriber events.Subscriber, hub *Hub) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub}
}

func (b *RedisBridge) Run(ctx context.Context) error {
	return b.subscriber.Subscribe(ctx, events.ChannelPattern, func(channel string, payload []byte) {
		b.hub.Broadcast(channel, payload)
	})
}

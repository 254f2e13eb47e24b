package broker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"messaging-service/internal/observability"
)

const redisChannelPrefix = "rt:"

// RedisBroker fans events out across service instances through Redis pub/sub
// while still delivering to the local hub directly. Each instance tags its
// envelopes with an origin id and skips its own messages on relay.
type RedisBroker struct {
	local  *Hub
	client *redis.Client
	origin string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRedisBroker wraps the local hub with a Redis bridge. When addr is empty
// the local hub is returned unchanged and delivery stays single-instance.
func NewRedisBroker(addr string, local *Hub) Broker {
	if addr == "" {
		log.Printf("redis disabled, broker is local-only")
		return local
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithCancel(context.Background())
	b := &RedisBroker{
		local:  local,
		client: client,
		origin: uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go b.relay(ctx)
	log.Printf("redis broker connected addr=%s origin=%s", addr, b.origin)
	return b
}

// Publish delivers locally and mirrors the envelope to Redis so sibling
// instances can deliver to their own connections.
func (b *RedisBroker) Publish(ctx context.Context, channel, event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("broker marshal failed channel=%s event=%s: %v", channel, event, err)
		observability.IncBrokerPublishError()
		return
	}
	envelope := Envelope{
		Channel:    channel,
		Event:      event,
		Payload:    body,
		Origin:     b.origin,
		OccurredAt: time.Now().UTC(),
	}
	b.local.Deliver(envelope)

	frame, err := json.Marshal(envelope)
	if err != nil {
		observability.IncBrokerPublishError()
		return
	}
	if err := b.client.Publish(ctx, redisChannelPrefix+channel, frame).Err(); err != nil {
		log.Printf("redis publish failed channel=%s: %v", channel, err)
		observability.IncBrokerPublishError()
	}
}

// relay subscribes to every real-time channel and feeds remote envelopes into
// the local hub.
func (b *RedisBroker) relay(ctx context.Context) {
	defer close(b.done)

	sub := b.client.PSubscribe(ctx, redisChannelPrefix+"*")
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			var envelope Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				log.Printf("redis relay decode failed: %v", err)
				continue
			}
			if envelope.Origin == b.origin {
				continue
			}
			b.local.Deliver(envelope)
		}
	}
}

// Close stops the relay and closes the Redis client and local hub.
func (b *RedisBroker) Close() error {
	b.cancel()
	select {
	case <-b.done:
	case <-time.After(2 * time.Second):
	}
	_ = b.client.Close()
	return b.local.Close()
}

package events

import (
	"context"
	"encoding/json"

	"github.com/modelcore/agent/core"
)

// RedisBridge fans out locally-emitted events to a Redis pub/sub channel so
// a second process (a UI renderer, a log tailer) can subscribe across a
// process boundary. It is an additional transport, never a replacement for
// the in-process Bus — register it with Bus.SubscribeAll alongside any
// in-process handlers.
type RedisBridge struct {
	redis   *core.RedisClient
	channel string
	logger  core.Logger
}

// NewRedisBridge wraps an already-connected core.RedisClient (expected to
// be opened against core.RedisDBEventBus) for publishing bus events.
func NewRedisBridge(redisClient *core.RedisClient, channel string, logger core.Logger) *RedisBridge {
	if channel == "" {
		channel = core.DefaultEventChannel
	}
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &RedisBridge{redis: redisClient, channel: channel, logger: logger}
}

// Publish serializes event as JSON and publishes it on the bridge's
// channel. Intended to be passed as a Handler to Bus.SubscribeAll.
func (b *RedisBridge) Publish(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to marshal event for redis fan-out", map[string]interface{}{
			"event_type": string(event.Type),
			"error":      err.Error(),
		})
		return
	}

	ctx := context.Background()
	if err := b.redis.Publish(ctx, b.channel, string(payload)); err != nil {
		b.logger.Error("failed to publish event to redis", map[string]interface{}{
			"event_type": string(event.Type),
			"error":      err.Error(),
		})
	}
}

// Subscribe starts a goroutine reading events published on the bridge's
// channel from any process and forwarding each to handler, until ctx is
// cancelled. Malformed payloads are logged and skipped.
func (b *RedisBridge) Subscribe(ctx context.Context, handler Handler) {
	sub := b.redis.Subscribe(ctx, b.channel)
	ch := sub.Channel()

	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.Error("failed to unmarshal event from redis", map[string]interface{}{
						"error": err.Error(),
					})
					continue
				}
				handler(event)
			}
		}
	}()
}

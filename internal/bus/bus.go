package bus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cskr/pubsub"
)

const defaultCapacity = 128

type Subscription chan any

// Cloner is implemented by messages that carry mutable slices. Dispatch hands
// every handler its own copy of such a message.
type Cloner interface {
	CloneMessage() any
}

type MessageBus interface {
	Publish(topic string, msg any)
	Subscribe(topics ...string) Subscription
	Unsubscribe(ch Subscription, topics ...string)
	Close()
}

// PubSubBus fans acquisition events out to any number of subscribers.
// Publish blocks while a subscriber buffer is full, so frame order is kept.
type PubSubBus struct {
	ps     *pubsub.PubSub
	logger *slog.Logger
}

func New(logger *slog.Logger) *PubSubBus {
	return NewWithCapacity(logger, defaultCapacity)
}

func NewWithCapacity(logger *slog.Logger, capacity int) *PubSubBus {
	if logger == nil {
		logger = slog.Default().With("component", "bus")
	}
	if capacity <= 0 {
		capacity = defaultCapacity
	}

	return &PubSubBus{
		ps:     pubsub.New(capacity),
		logger: logger,
	}
}

func (b *PubSubBus) Publish(topic string, msg any) {
	if b.logger.Enabled(context.Background(), slog.LevelDebug) {
		b.logger.Debug("publish", "topic", topic, "payload_type", fmt.Sprintf("%T", msg))
	}
	b.ps.Pub(msg, topic)
}

func (b *PubSubBus) Subscribe(topics ...string) Subscription {
	b.logger.Debug("subscribe", "topics", topics)

	return b.ps.Sub(topics...)
}

// Unsubscribe without topics removes sub from every topic.
func (b *PubSubBus) Unsubscribe(sub Subscription, topics ...string) {
	b.logger.Debug("unsubscribe", "topics", topics, "all", len(topics) == 0)
	b.ps.Unsub(sub, topics...)
}

// Close shuts the bus down and closes every subscription channel.
func (b *PubSubBus) Close() {
	b.ps.Shutdown()
}

// Dispatch hands every message on sub to handle until ctx is done or the bus
// closes. Cloner messages are copied first. On cancellation it unsubscribes and drains sub so the bus never
// blocks on it. It blocks the calling goroutine.
func Dispatch(ctx context.Context, b MessageBus, sub Subscription, handle func(msg any)) {
	for {
		select {
		case <-ctx.Done():
			go b.Unsubscribe(sub)
			for range sub {
			}

			return
		case msg, ok := <-sub:
			if !ok {
				return
			}
			if c, ok := msg.(Cloner); ok {
				msg = c.CloneMessage()
			}
			handle(msg)
		}
	}
}

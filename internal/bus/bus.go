package bus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// MessageBus connects platform adapters to the gateway. Adapters push into
// Inbound and subscribe per platform for outbound delivery.
type MessageBus struct {
	Inbound  chan ChatMessage
	Outbound chan OutboundMessage

	mu   sync.RWMutex
	subs map[string]func(OutboundMessage)
}

func NewMessageBus(bufSize int) *MessageBus {
	return &MessageBus{
		Inbound:  make(chan ChatMessage, bufSize),
		Outbound: make(chan OutboundMessage, bufSize),
		subs:     make(map[string]func(OutboundMessage)),
	}
}

// SubscribeOutbound registers the delivery callback for one platform.
// A second subscription for the same platform replaces the first.
func (b *MessageBus) SubscribeOutbound(platform string, fn func(OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[platform] = fn
}

// DispatchOutbound pumps outbound messages to their platform subscriber
// until ctx is cancelled. Messages for unknown platforms are dropped.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-b.Outbound:
			b.mu.RLock()
			fn := b.subs[msg.Platform]
			b.mu.RUnlock()
			if fn == nil {
				log.Warn().Str("component", "bus").Str("platform", msg.Platform).Msg("no outbound subscriber, dropping message")
				continue
			}
			fn(msg)
		case <-ctx.Done():
			return
		}
	}
}

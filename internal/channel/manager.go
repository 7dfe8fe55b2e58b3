package channel

import (
	"context"
	"fmt"

	"github.com/Kazilsky/Petal/internal/bus"
	"github.com/Kazilsky/Petal/internal/config"
	"github.com/rs/zerolog/log"
)

// Channel is one platform adapter. Adapters normalize inbound traffic
// into the bus and push outbound strings back to the platform; the
// conversation core never touches platform SDKs.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Send(msg bus.OutboundMessage) error
}

// Responder lets request/response adapters (HTTP) drive the response path
// synchronously.
type Responder func(ctx context.Context, msg bus.ChatMessage) (string, error)

type Manager struct {
	channels map[string]Channel
	bus      *bus.MessageBus
}

func NewManager(cfg config.ChannelsConfig, b *bus.MessageBus, respond Responder) (*Manager, error) {
	m := &Manager{channels: make(map[string]Channel), bus: b}

	if cfg.Telegram.Enabled {
		ch, err := NewTelegramChannel(cfg.Telegram, b)
		if err != nil {
			return nil, fmt.Errorf("init telegram channel: %w", err)
		}
		m.add(ch)
	}

	if cfg.HTTP.Enabled {
		m.add(NewHTTPChannel(cfg.HTTP, b, respond))
	}

	return m, nil
}

func (m *Manager) add(ch Channel) {
	m.channels[ch.Name()] = ch
	m.bus.SubscribeOutbound(ch.Name(), func(msg bus.OutboundMessage) {
		if err := ch.Send(msg); err != nil {
			log.Error().Str("component", "channel-mgr").Str("channel", ch.Name()).Err(err).Msg("send failed")
		}
	})
}

func (m *Manager) StartAll(ctx context.Context) error {
	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("start channel %s: %w", name, err)
		}
	}
	return nil
}

func (m *Manager) StopAll() error {
	for name, ch := range m.channels {
		if err := ch.Stop(); err != nil {
			log.Warn().Str("component", "channel-mgr").Str("channel", name).Err(err).Msg("stop failed")
		}
	}
	return nil
}

func (m *Manager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

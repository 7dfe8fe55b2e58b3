package channel

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Kazilsky/Petal/internal/bus"
	"github.com/Kazilsky/Petal/internal/config"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

const (
	telegramChannelName = "telegram"
	telegramChunkSize   = 4096
)

// TelegramBot is the slice of the bot API the channel uses; an interface
// so tests can fake it.
type TelegramBot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotFactory creates TelegramBot instances (allows mocking).
type BotFactory func(token string) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token string) (TelegramBot, error) {
	return tgbotapi.NewBotAPI(token)
}

type TelegramChannel struct {
	token      string
	bot        TelegramBot
	bus        *bus.MessageBus
	botFactory BotFactory
	cancel     context.CancelFunc
}

func NewTelegramChannel(cfg config.TelegramConfig, b *bus.MessageBus) (*TelegramChannel, error) {
	return NewTelegramChannelWithFactory(cfg, b, defaultBotFactory)
}

func NewTelegramChannelWithFactory(cfg config.TelegramConfig, b *bus.MessageBus, factory BotFactory) (*TelegramChannel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	return &TelegramChannel{token: cfg.Token, bus: b, botFactory: factory}, nil
}

func (t *TelegramChannel) Name() string { return telegramChannelName }

func (t *TelegramChannel) Start(ctx context.Context) error {
	bot, err := t.botFactory(t.token)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	t.bot = bot

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				t.handleUpdate(update)
			case <-runCtx.Done():
				return
			}
		}
	}()

	log.Info().Str("component", "telegram").Msg("telegram channel started")
	return nil
}

func (t *TelegramChannel) handleUpdate(update tgbotapi.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	from := update.Message.From
	if from == nil || from.IsBot {
		return
	}

	username := from.UserName
	if username == "" {
		username = from.FirstName
	}

	t.bus.Inbound <- bus.NewChatMessage(
		update.Message.Text,
		username,
		strconv.FormatInt(update.Message.Chat.ID, 10),
		telegramChannelName,
	)
}

func (t *TelegramChannel) Send(msg bus.OutboundMessage) error {
	if t.bot == nil {
		return fmt.Errorf("telegram bot not started")
	}
	chatID, err := strconv.ParseInt(msg.ChannelID, 10, 64)
	if err != nil {
		return fmt.Errorf("parse chat id %q: %w", msg.ChannelID, err)
	}

	// Chunk to the platform's message size limit.
	text := msg.Content
	for len(text) > 0 {
		chunk := text
		if len(chunk) > telegramChunkSize {
			chunk = chunk[:telegramChunkSize]
		}
		text = text[len(chunk):]
		if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}

func (t *TelegramChannel) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	return nil
}

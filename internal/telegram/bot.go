package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mtzanidakis/kinema/internal/config"
	"github.com/mtzanidakis/kinema/internal/controller"
	"github.com/mtzanidakis/kinema/internal/knowledge"
	"github.com/mtzanidakis/kinema/internal/natsbus"
	"github.com/mtzanidakis/kinema/internal/operator"
	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nats-io/nats.go"
)

// Subscriber is the slice of the bus client the bot listens on for alerts.
type Subscriber interface {
	Subscribe(topic string, handler func(msg *nats.Msg)) (*nats.Subscription, error)
}

// Bot lets operators steer the swarm from Telegram and forwards agent
// failures to the configured alert chats.
type Bot struct {
	bot     *telego.Bot
	handler *th.BotHandler
	ops     *operator.Operator
	cfg     config.TelegramConfig
	cancel  context.CancelFunc
}

func NewBot(cfg config.TelegramConfig, kb knowledge.Variables) (*Bot, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Bot{
		bot: bot,
		ops: operator.New(kb),
		cfg: cfg,
	}, nil
}

func (b *Bot) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	updates, err := b.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	handler, err := th.NewBotHandler(b.bot, updates)
	if err != nil {
		cancel()
		return fmt.Errorf("create handler: %w", err)
	}
	b.handler = handler

	handler.HandleMessage(func(hctx *th.Context, message telego.Message) error {
		b.handleMessage(ctx, message)
		return nil
	})

	go handler.Start()

	<-ctx.Done()
	_ = handler.Stop()
	return nil
}

func (b *Bot) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.handler != nil {
		_ = b.handler.Stop()
	}
}

// Subscribe sends an alert for every failed call reported on the bus.
func (b *Bot) Subscribe(sub Subscriber) error {
	if len(b.cfg.AlertChats) == 0 {
		return nil
	}
	_, err := sub.Subscribe(natsbus.TopicEventsAgents, func(msg *nats.Msg) {
		var event controller.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return
		}
		text, ok := alertText(event)
		if !ok {
			return
		}
		for _, chatID := range b.cfg.AlertChats {
			if err := b.SendMessage(context.Background(), chatID, text); err != nil {
				slog.Error("failed to send telegram alert", "chat", chatID, "error", err)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe agent events: %w", err)
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg telego.Message) {
	if msg.From == nil {
		return
	}
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if len(b.cfg.AllowFrom) > 0 && !slices.Contains(b.cfg.AllowFrom, userID) {
		slog.Warn("unauthorized telegram user", "user_id", userID, "chat_id", chatID)
		return
	}

	name, args, ok := parseCommand(msg.Text)
	if !ok {
		return
	}

	reply, err := b.ops.Handle(name, args)
	if err != nil {
		slog.Warn("telegram command failed", "command", name, "user_id", userID, "error", err)
		reply = "Error: " + err.Error()
	}
	if err := b.SendMessage(ctx, chatID, reply); err != nil {
		slog.Error("failed to send telegram message", "chat", chatID, "error", err)
	}
}

func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	for _, part := range splitReport(text, maxMessageLen) {
		msg := tu.Message(tu.ID(chatID), part)
		_, err := b.bot.SendMessage(ctx, msg)
		if err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

func alertText(e controller.Event) (string, bool) {
	if e.Type != controller.EventStatus || e.Status != "error" {
		return "", false
	}
	text := fmt.Sprintf("Agent %d: %s failed", e.Agent, e.Call)
	if e.Detail != "" {
		text += " (" + e.Detail + ")"
	}
	return text, true
}

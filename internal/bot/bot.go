package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sgbus_bot/internal/alerts"
	"sgbus_bot/internal/config"
	"sgbus_bot/internal/dialogue"
	"sgbus_bot/internal/messages"
	"sgbus_bot/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot is the Telegram front end: it turns updates into dialogue calls and
// renders the replies.
type Bot struct {
	api     telegramAPI
	store   storage.Storage
	machine *dialogue.Machine
	alerts  alerts.Source
	cfg     *config.Config
	log     *slog.Logger
}

// New creates a Bot with the given Telegram token and collaborators.
func New(token string, store storage.Storage, machine *dialogue.Machine, src alerts.Source,
	cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.Info("authorized on telegram", "username", api.Self.UserName)

	return &Bot{
		api:     api,
		store:   store,
		machine: machine,
		alerts:  src,
		cfg:     cfg,
		log:     log,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil {
			return
		}
		if !b.cfg.IsUserAllowed(cb.From.ID) {
			b.ack(cb.ID)
			b.reply(cb.Message.Chat.ID, messages.Unauthorized)
			return
		}
		b.ensureUser(ctx, cb.Message.Chat.ID, cb.From)
		b.handleCallback(ctx, cb)
	case update.Message != nil && update.Message.Text != "":
		msg := update.Message
		if msg.From != nil && !b.cfg.IsUserAllowed(msg.From.ID) {
			b.reply(msg.Chat.ID, messages.Unauthorized)
			return
		}
		b.ensureUser(ctx, msg.Chat.ID, msg.From)
		b.handleMessage(ctx, msg)
	}
}

// ensureUser registers the chat on its first inbound update.
func (b *Bot) ensureUser(ctx context.Context, chatID int64, from *tgbotapi.User) {
	var name string
	if from != nil {
		name = displayName(from.FirstName, from.LastName)
	}
	if err := b.store.EnsureUser(ctx, chatID, name); err != nil {
		b.log.Error("ensure user", "chat_id", chatID, "error", err)
	}
}

// SendMessage sends a plain text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (b *Bot) reply(chatID int64, text string) {
	if err := b.SendMessage(chatID, text); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

// send renders a dialogue reply. A stop location goes out first, carrying
// the reply keyboard, so the text message can keep its inline buttons.
func (b *Bot) send(chatID int64, r dialogue.Reply) {
	keys := r.Keys
	if r.Location != nil {
		loc := tgbotapi.NewLocation(chatID, r.Location.Latitude, r.Location.Longitude)
		if len(keys) > 0 {
			loc.ReplyMarkup = replyKeyboard(keys)
		}
		if _, err := b.api.Send(loc); err != nil {
			b.log.Error("send location", "chat_id", chatID, "stop_code", r.Location.Code, "error", err)
		}
		keys = nil
	}

	if _, err := b.api.Send(messageConfig(chatID, r.Text, r.Buttons, keys, r.ForceReply)); err != nil {
		b.log.Error("send reply", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) sendAll(chatID int64, replies []dialogue.Reply) {
	for _, r := range replies {
		b.send(chatID, r)
	}
}

// edit replaces the text and inline buttons of an existing message.
func (b *Bot) edit(chatID int64, messageID int, r dialogue.Reply) {
	var cfg tgbotapi.EditMessageTextConfig
	if len(r.Buttons) > 0 {
		cfg = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, r.Text, inlineKeyboard(r.Buttons))
	} else {
		cfg = tgbotapi.NewEditMessageText(chatID, messageID, r.Text)
	}
	cfg.DisableWebPagePreview = true
	if _, err := b.api.Send(cfg); err != nil {
		b.log.Warn("edit message", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}

func (b *Bot) typing(chatID int64) {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.log.Debug("send chat action", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) ack(callbackID string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		b.log.Error("send callback ack", "error", err)
	}
}

// fail logs a dialogue error and tells the user something went wrong.
func (b *Bot) fail(chatID int64, op string, err error) {
	b.log.Error(op, "chat_id", chatID, "error", err)
	b.reply(chatID, messages.InternalError)
}

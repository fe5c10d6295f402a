package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sgbus_bot/internal/dialogue"
	"sgbus_bot/internal/messages"
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		cmd := msg.Command()
		args := strings.TrimSpace(msg.CommandArguments())
		b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

		switch cmd {
		case "start":
			b.reply(chatID, messages.Welcome)
			return
		case "help":
			b.reply(chatID, messages.Help)
			return
		case "favourites":
			b.handleFavourites(ctx, chatID)
			return
		case "add_favourites":
			b.handleAddFavourite(ctx, chatID, args)
			return
		case "feedback":
			b.handleFeedback(ctx, chatID)
			return
		case "settings":
			b.handleSettings(ctx, chatID)
			return
		case "mrt":
			b.send(chatID, dialogue.MRTMenu())
			return
		case "stop":
			b.handleStop(chatID)
			return
		}
	}

	switch msg.Text {
	case dialogue.KeyChangeStop:
		b.reply(chatID, messages.ChangeStop)
	case dialogue.KeyAddFavourite:
		r, err := b.machine.AddLastViewedFavourite(ctx, chatID)
		if err != nil {
			b.fail(chatID, "add last viewed favourite", err)
			return
		}
		b.send(chatID, r)
	default:
		b.handleText(ctx, chatID, msg.Text)
	}
}

// handleText feeds an utterance, including unknown commands such as
// "/14141" or "/exit", to the dialogue machine.
func (b *Bot) handleText(ctx context.Context, chatID int64, text string) {
	b.typing(chatID)
	r, err := b.machine.Handle(ctx, chatID, text)
	if err != nil {
		b.fail(chatID, "handle utterance", err)
		return
	}
	b.send(chatID, r)
}

func (b *Bot) handleStop(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, messages.StopBot)
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send stop", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleFavourites(ctx context.Context, chatID int64) {
	replies, err := b.machine.Favourites(ctx, chatID)
	if err != nil {
		b.fail(chatID, "list favourites", err)
		return
	}
	b.sendAll(chatID, replies)
}

func (b *Bot) handleAddFavourite(ctx context.Context, chatID int64, args string) {
	r, err := b.machine.AddFavourite(ctx, chatID, args)
	if err != nil {
		b.fail(chatID, "add favourite", err)
		return
	}
	b.send(chatID, r)
}

func (b *Bot) handleFeedback(ctx context.Context, chatID int64) {
	r, err := b.machine.StartFeedback(ctx, chatID)
	if err != nil {
		b.fail(chatID, "start feedback", err)
		return
	}
	b.send(chatID, r)
}

func (b *Bot) handleSettings(ctx context.Context, chatID int64) {
	replies, err := b.machine.Settings(ctx, chatID)
	if err != nil {
		b.fail(chatID, "settings", err)
		return
	}
	b.sendAll(chatID, replies)
}

func (b *Bot) handleMRTStatus(ctx context.Context, chatID int64) {
	b.typing(chatID)
	text, err := b.alerts.Current(ctx)
	if err != nil {
		b.log.Warn("fetch train alerts", "chat_id", chatID, "error", err)
		b.reply(chatID, messages.MRTUnavailable)
		return
	}
	b.reply(chatID, text)
}

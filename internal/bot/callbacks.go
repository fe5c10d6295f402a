package bot

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sgbus_bot/internal/dialogue"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID
	b.ack(cb.ID)

	c, ok := ParseCallback(cb.Data)
	if !ok {
		b.log.Warn("unknown callback", "data", cb.Data, "chat_id", chatID)
		return
	}

	b.log.Info("callback",
		"action", c.Action,
		"arg", c.Arg,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	var (
		r   dialogue.Reply
		err error
	)
	switch c.Action {
	case dialogue.CbFavSelect:
		b.typing(chatID)
		r, err = b.machine.Board(ctx, chatID, c.Arg)
	case dialogue.CbFavDelete:
		r, err = b.machine.RemoveFavourite(ctx, chatID, c.Arg)
	case dialogue.CbFavRename:
		r, err = b.machine.StartRename(ctx, chatID, c.Arg)
	case dialogue.CbScheduleNew:
		r, err = b.machine.StartSchedule(ctx, chatID)
	case dialogue.CbScheduleList:
		replies, lerr := b.machine.Schedules(ctx, chatID)
		if lerr != nil {
			b.fail(chatID, "list schedules", lerr)
			return
		}
		b.sendAll(chatID, replies)
		return
	case dialogue.CbScheduleRm:
		id, perr := strconv.ParseInt(c.Arg, 10, 64)
		if perr != nil {
			return
		}
		r, err = b.machine.RemoveSchedule(ctx, chatID, id)
	case dialogue.CbBus:
		r, err = b.machine.ToggleBus(ctx, chatID, c.Arg)
		if err == nil {
			b.edit(chatID, messageID, r)
			return
		}
	case dialogue.CbBusConfirm:
		r, err = b.machine.ConfirmBuses(ctx, chatID)
		if err == nil {
			b.clearButtons(chatID, messageID)
		}
	case dialogue.CbAlerts:
		if c.Arg != "on" && c.Arg != "off" {
			return
		}
		r, err = b.machine.SetAlerts(ctx, chatID, c.Arg == "on")
		if err == nil {
			b.edit(chatID, messageID, r)
			return
		}
	case dialogue.CbMRTStatus:
		b.handleMRTStatus(ctx, chatID)
		return
	case dialogue.CbRefresh:
		b.typing(chatID)
		r, err = b.machine.Board(ctx, chatID, c.Arg)
		if err == nil {
			b.edit(chatID, messageID, r)
			return
		}
	case dialogue.CbRoutes:
		r = b.machine.Route(c.Arg)
	}

	if err != nil {
		b.fail(chatID, "callback "+c.Action, err)
		return
	}
	b.send(chatID, r)
}

// clearButtons removes the inline keyboard of a message.
func (b *Bot) clearButtons(chatID int64, messageID int) {
	empty := tgbotapi.NewInlineKeyboardMarkup()
	empty.InlineKeyboard = [][]tgbotapi.InlineKeyboardButton{}
	if _, err := b.api.Send(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, empty)); err != nil {
		b.log.Warn("clear buttons", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}

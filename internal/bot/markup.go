package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sgbus_bot/internal/dialogue"
)

// messageConfig builds a text message with at most one kind of markup.
// Force-reply wins over inline buttons, which win over a reply keyboard.
func messageConfig(chatID int64, text string, buttons [][]dialogue.Button, keys [][]string, forceReply bool) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	switch {
	case forceReply:
		msg.ReplyMarkup = tgbotapi.ForceReply{ForceReply: true, Selective: true}
	case len(buttons) > 0:
		msg.ReplyMarkup = inlineKeyboard(buttons)
	case len(keys) > 0:
		msg.ReplyMarkup = replyKeyboard(keys)
	}
	return msg
}

func inlineKeyboard(rows [][]dialogue.Button) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...)
}

// replyKeyboard is resized and hidden after one use.
func replyKeyboard(rows [][]string) tgbotapi.ReplyKeyboardMarkup {
	out := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, text := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(text))
		}
		out = append(out, tgbotapi.NewKeyboardButtonRow(buttons...))
	}
	kb := tgbotapi.NewOneTimeReplyKeyboard(out...)
	kb.ResizeKeyboard = true
	return kb
}

package telegram

import "gopkg.in/telebot.v3"

// Client sends text messages to a Telegram chat. Run alerts go through it so the
// app layer never depends on the bot library directly.
type Client interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
}

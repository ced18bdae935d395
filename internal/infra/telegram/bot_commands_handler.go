// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(
	b *telebot.Bot,
	adminTelegramID int64,
	baseLogger *logrus.Entry, // For contextual logging
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")
		return c.Send(startText(senderID == adminTelegramID, c.Sender().FirstName))
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")
		if senderID != adminTelegramID {
			return c.Send(helpText(false))
		}
		return c.Send(helpText(true), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}

func startText(isAdmin bool, firstName string) string {
	if isAdmin {
		return fmt.Sprintf("Hi %s! The ROSCA engine ops bot is running. Use /help for the command list.", firstName)
	}
	return "Hi! This bot posts ROSCA engine run alerts to the operations team."
}

func helpText(isAdmin bool) string {
	if !isAdmin {
		return "There are no commands available to you."
	}
	var helpText strings.Builder
	helpText.WriteString("Operator commands:\n\n")
	helpText.WriteString("`/resolve_payout <cycle_id>`\n - Mark a payout_pending cycle as paid out after settling it by hand.\n\n")
	helpText.WriteString("`/runs [count]`\n - Show the latest engine runs (default 10, max 20).\n\n")
	helpText.WriteString("`/help`\n - Show this message.")
	return helpText.String()
}

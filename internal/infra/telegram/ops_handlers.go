package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rosca_engine/internal/app"
	"rosca_engine/internal/domain/cycle"
	"rosca_engine/internal/domain/runreport"
	idb "rosca_engine/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const msgUnauthorized = "Error: you are not allowed to run this command."

// OpsCommands is the slice of app.OpsService the bot exposes.
type OpsCommands interface {
	ResolvePendingPayout(ctx context.Context, performingAdminID int64, cycleID string, now time.Time) (*cycle.Cycle, error)
	RecentRuns(ctx context.Context, performingAdminID int64, limit int) ([]*runreport.Report, error)
}

// RegisterOpsHandlers registers the operator commands.
func RegisterOpsHandlers(ctx context.Context, b *telebot.Bot, ops OpsCommands, baseLogger *logrus.Entry) {
	b.Handle("/resolve_payout", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/resolve_payout",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		return c.Send(resolvePayoutReply(ctx, ops, c.Sender().ID, c.Args(), time.Now(), handlerLogger))
	})

	b.Handle("/runs", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/runs",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		return c.Send(recentRunsReply(ctx, ops, c.Sender().ID, c.Args(), handlerLogger))
	})
}

func resolvePayoutReply(ctx context.Context, ops OpsCommands, senderID int64, args []string, now time.Time, log *logrus.Entry) string {
	// Expected format: /resolve_payout <cycle_id>
	if len(args) != 1 {
		log.WithField("args_count", len(args)).Warn("Invalid command format")
		return "Invalid format. Use: /resolve_payout <cycle_id>"
	}

	c, err := ops.ResolvePendingPayout(ctx, senderID, args[0], now)
	if err != nil {
		logWithError := log.WithError(err).WithField("cycle_id", args[0])
		switch {
		case errors.Is(err, app.ErrAdminNotAuthorized):
			logWithError.Warn("Unauthorized access attempt")
			return msgUnauthorized
		case errors.Is(err, app.ErrInvalidID):
			logWithError.Warn("Invalid cycle ID")
			return fmt.Sprintf("Error: %q is not a valid cycle ID.", args[0])
		case errors.Is(err, idb.ErrCycleNotFound):
			logWithError.Warn("Cycle not found")
			return fmt.Sprintf("Cycle %s not found.", args[0])
		case errors.Is(err, app.ErrNotPayoutPending):
			logWithError.Warn("Cycle is not awaiting manual payout")
			if c != nil {
				return fmt.Sprintf("Cycle %s is %s, not payout_pending. Nothing changed.", c.ID, c.Status)
			}
			return fmt.Sprintf("Cycle %s is not payout_pending. Nothing changed.", args[0])
		default:
			logWithError.Error("Failed to resolve payout")
			return fmt.Sprintf("Failed to resolve payout: %s", err.Error())
		}
	}

	log.WithField("cycle_id", c.ID).Info("Payout marked completed")
	return fmt.Sprintf("Cycle %s (circle %s, #%d) marked payout_completed. It closes on the next progression run.",
		c.ID, c.CircleID, c.CycleNumber)
}

func recentRunsReply(ctx context.Context, ops OpsCommands, senderID int64, args []string, log *logrus.Entry) string {
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return "Invalid format. Use: /runs [count]"
		}
		limit = n
	}

	runs, err := ops.RecentRuns(ctx, senderID, limit)
	if err != nil {
		if errors.Is(err, app.ErrAdminNotAuthorized) {
			log.Warn("Unauthorized access attempt")
			return msgUnauthorized
		}
		log.WithError(err).Error("Failed to list run reports")
		return fmt.Sprintf("Failed to list runs: %s", err.Error())
	}
	if len(runs) == 0 {
		return "No runs recorded yet."
	}

	var response strings.Builder
	response.WriteString(fmt.Sprintf("--- Last %d runs ---\n", len(runs)))
	for _, r := range runs {
		response.WriteString(FormatRunLine(r))
		response.WriteString("\n")
	}
	return strings.TrimRight(response.String(), "\n")
}

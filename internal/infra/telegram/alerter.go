package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rosca_engine/internal/domain/runreport"
	domaintg "rosca_engine/internal/domain/telegram"
)

const maxAlertedItems = 10

// RunAlerter posts run reports that need attention to the ops chat.
type RunAlerter struct {
	client domaintg.Client
	chatID int64
}

func NewRunAlerter(client domaintg.Client, opsChatID int64) *RunAlerter {
	return &RunAlerter{client: client, chatID: opsChatID}
}

func (a *RunAlerter) Alert(_ context.Context, report *runreport.Report) error {
	if a.chatID == 0 {
		return nil
	}
	if err := a.client.SendMessage(a.chatID, FormatRunAlert(report), nil); err != nil {
		return fmt.Errorf("failed to send alert for run %s: %w", report.ID, err)
	}
	return nil
}

// FormatRunAlert renders a report as a plain-text ops message.
func FormatRunAlert(r *runreport.Report) string {
	var b strings.Builder
	if r.Success {
		fmt.Fprintf(&b, "⚠️ %s finished with %d failed item(s)\n", r.JobName, r.Failed)
	} else {
		fmt.Fprintf(&b, "🚨 %s FAILED\n", r.JobName)
	}
	fmt.Fprintf(&b, "Run: %s\n", r.ID)
	fmt.Fprintf(&b, "Started: %s (%s)\n", r.StartedAt.UTC().Format(time.RFC3339), r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Checked %d, succeeded %d, failed %d, skipped %d\n", r.Checked, r.Succeeded, r.Failed, r.Skipped)
	if r.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", r.Error)
	}

	shown := 0
	for _, o := range r.Details {
		if !o.Failed() {
			continue
		}
		if shown == maxAlertedItems {
			fmt.Fprintf(&b, "...and %d more\n", r.Failed-shown)
			break
		}
		if shown == 0 {
			b.WriteString("Failed items:\n")
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", o.ID, o.From, o.Error)
		shown++
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatRunLine renders one report as a single line for /runs.
func FormatRunLine(r *runreport.Report) string {
	status := "ok"
	if !r.Success {
		status = "FAILED"
	} else if r.Failed > 0 {
		status = "partial"
	}
	return fmt.Sprintf("%s %s [%s] checked=%d ok=%d failed=%d skipped=%d transitions=%d",
		r.StartedAt.UTC().Format("2006-01-02 15:04"), r.JobName, status,
		r.Checked, r.Succeeded, r.Failed, r.Skipped, r.Transitions())
}

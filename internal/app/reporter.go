// internal/app/reporter.go
package app

import (
	"context"
	"time"

	"rosca_engine/internal/domain/runreport"

	"github.com/sirupsen/logrus"
)

const reportWriteTimeout = 10 * time.Second

// Alerter forwards run reports that need operator attention.
type Alerter interface {
	Alert(ctx context.Context, report *runreport.Report) error
}

// Reporter persists one run report per invocation and raises alerts for bad runs.
// Nothing it does can fail the invocation it reports on.
type Reporter struct {
	repo    runreport.Repository
	alerter Alerter
	logger  *logrus.Entry
}

func NewReporter(repo runreport.Repository, alerter Alerter, logger *logrus.Entry) *Reporter {
	return &Reporter{repo: repo, alerter: alerter, logger: logger}
}

// Record writes the report and alerts when the run failed or had failed items.
// Errors are logged and dropped.
func (r *Reporter) Record(ctx context.Context, report *runreport.Report) {
	// The run's own context may already be cancelled; the log row is still wanted.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportWriteTimeout)
	defer cancel()

	entry := r.logger.WithFields(logrus.Fields{
		"job":         report.JobName,
		"run_id":      report.ID,
		"success":     report.Success,
		"checked":     report.Checked,
		"succeeded":   report.Succeeded,
		"failed":      report.Failed,
		"skipped":     report.Skipped,
		"duration_ms": report.Duration.Milliseconds(),
	})
	if report.Success {
		entry.Info("Run finished")
	} else {
		entry.WithField("error", report.Error).Error("Run failed")
	}

	if r.repo != nil {
		if err := r.repo.Insert(ctx, report); err != nil {
			entry.WithError(err).Warn("Failed to persist run report")
		}
	}

	if r.alerter != nil && (!report.Success || report.Failed > 0) {
		if err := r.alerter.Alert(ctx, report); err != nil {
			entry.WithError(err).Warn("Failed to send run alert")
		}
	}
}

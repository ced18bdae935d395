// internal/app/obligation_engine.go
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"rosca_engine/internal/domain/effects"
	"rosca_engine/internal/domain/obligation"
	"rosca_engine/internal/domain/runreport"
	"rosca_engine/internal/infra/config"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ObligationRunStats is the response payload of one overdue obligation run.
type ObligationRunStats struct {
	TotalChecked      int                 `json:"total_checked"`
	NewlyOverdue      int                 `json:"newly_overdue"`
	LateFeesApplied   int                 `json:"late_fees_applied"`
	TotalLateFees     json.Number         `json:"total_late_fees"` // Major units
	XnScoreDeductions int                 `json:"xnscore_deductions"`
	Skipped           int                 `json:"skipped"`
	Failed            int                 `json:"failed"`
	ByTransition      map[string]int      `json:"by_transition"`
	ProcessingTimeMs  int64               `json:"processing_time_ms"`
	Aborted           bool                `json:"aborted,omitempty"`
	Results           []runreport.Outcome `json:"results,omitempty"`
}

// obligationEffects tallies what one obligation contributed to the run totals.
type obligationEffects struct {
	newlyOverdue bool
	lateFeeCents int64
	deducted     bool
}

// ObligationEngine promotes unpaid installments to overdue and assesses late fees.
type ObligationEngine struct {
	repo       obligation.Repository
	reputation effects.Reputation
	reminders  effects.Reminders
	reporter   *Reporter
	policy     config.Policy
	location   *time.Location
	logger     *logrus.Entry
}

func NewObligationEngine(
	repo obligation.Repository,
	reputation effects.Reputation,
	reminders effects.Reminders,
	reporter *Reporter,
	policy config.Policy,
	location *time.Location, // Calendar that decides what "today" is; nil means UTC
	logger *logrus.Entry,
) *ObligationEngine {
	if location == nil {
		location = time.UTC
	}
	return &ObligationEngine{
		repo:       repo,
		reputation: reputation,
		reminders:  reminders,
		reporter:   reporter,
		policy:     policy,
		location:   location,
		logger:     logger,
	}
}

// Run scans obligations due before today. Safe to repeat on the same day: every
// write and side effect is guarded by stored state or an idempotency key.
func (e *ObligationEngine) Run(ctx context.Context, now time.Time) (*ObligationRunStats, error) {
	started := time.Now()
	today := CalendarDate(now.In(e.location))
	report := runreport.New(runreport.JobOverdueObligations, now)
	e.logger.WithField("today", today.Format("2006-01-02")).Info("Starting overdue obligation run")

	candidates, err := e.repo.ListOverdueCandidates(ctx, today)
	if err != nil {
		report.Error = err.Error()
		report.Duration = time.Since(started)
		e.reporter.Record(ctx, report)
		return nil, fmt.Errorf("failed to fetch overdue candidates: %w", err)
	}

	stats := &ObligationRunStats{}
	var totalFeeCents int64
	aborted := false
	for _, o := range candidates {
		if ctx.Err() != nil {
			aborted = true
			e.logger.WithError(ctx.Err()).Warn("Run budget exhausted, leaving remaining obligations for the next run")
			break
		}
		out, fx := e.processObligation(ctx, o, now, today)
		report.Add(out)
		if fx.newlyOverdue {
			stats.NewlyOverdue++
		}
		if fx.lateFeeCents > 0 {
			stats.LateFeesApplied++
			totalFeeCents += fx.lateFeeCents
		}
		if fx.deducted {
			stats.XnScoreDeductions++
		}
	}

	report.Success = true
	report.Duration = time.Since(started)
	report.Summary["newly_overdue"] = stats.NewlyOverdue
	report.Summary["late_fees_applied"] = stats.LateFeesApplied
	report.Summary["total_late_fees_cents"] = totalFeeCents
	report.Summary["xnscore_deductions"] = stats.XnScoreDeductions
	report.Summary["aborted"] = aborted
	e.reporter.Record(ctx, report)

	stats.TotalChecked = report.Checked
	stats.TotalLateFees = json.Number(decimal.New(totalFeeCents, -2).StringFixed(2))
	stats.Skipped = report.Skipped
	stats.Failed = report.Failed
	stats.ByTransition = report.ByTransition
	stats.ProcessingTimeMs = report.Duration.Milliseconds()
	stats.Aborted = aborted
	stats.Results = report.Details
	return stats, nil
}

func (e *ObligationEngine) processObligation(ctx context.Context, o *obligation.Obligation, now, today time.Time) (runreport.Outcome, obligationEffects) {
	out := runreport.Outcome{ID: o.ID, From: string(o.Status)}
	var fx obligationEffects
	log := e.logger.WithFields(logrus.Fields{
		"obligation_id": o.ID,
		"loan_id":       o.LoanID,
		"status":        o.Status,
	})

	a := AssessObligation(o, today, e.policy)
	if !a.Changed() {
		return out, fx
	}

	u := obligation.Update{
		ObligationID:         o.ID,
		ExpectedStatus:       o.Status,
		ExpectedPaidCents:    o.TotalPaidCents,
		ExpectedLateFeeCents: o.LateFeeCents,
		Status:               o.Status,
		LateFeeCents:         o.LateFeeCents,
		TotalDueCents:        o.TotalDueCents,
	}
	if a.PersistGraceEnd {
		u.GracePeriodEnd.Time, u.GracePeriodEnd.Valid = a.GracePeriodEnd, true
	}
	if a.BecomeOverdue {
		u.Status = obligation.StatusOverdue
	}
	if a.LateFeeCents > 0 {
		u.LateFeeCents = a.LateFeeCents
		u.TotalDueCents += a.LateFeeCents
		u.LateFee = &obligation.LateFeeEntry{
			ObligationID:   o.ID,
			LoanID:         o.LoanID,
			BorrowerID:     o.BorrowerID,
			AmountCents:    a.LateFeeCents,
			DaysOverdue:    a.DaysOverdue,
			AssessedAt:     now,
			IdempotencyKey: effects.IdempotencyKey(o.ID, effects.EffectLateFee),
		}
	}

	err := e.repo.Apply(ctx, u)
	if errors.Is(err, obligation.ErrStaleState) {
		out.Skipped = true
		log.Info("Obligation changed since it was read, re-evaluating next run")
		return out, fx
	}
	if err != nil {
		out.Error = err.Error()
		log.WithError(err).Error("Failed to persist obligation assessment")
		return out, fx
	}
	out.To = string(u.Status)
	fx.lateFeeCents = a.LateFeeCents
	log.WithFields(logrus.Fields{
		"days_overdue":     a.DaysOverdue,
		"grace_period_end": a.GracePeriodEnd.Format("2006-01-02"),
		"late_fee_cents":   a.LateFeeCents,
		"to":               u.Status,
	}).Info("Obligation assessed")

	if !a.BecomeOverdue {
		return out, fx
	}
	fx.newlyOverdue = true

	deducted, err := e.deductXnScore(ctx, o, a)
	if err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("xnscore deduction: %v", err))
		log.WithError(err).Warn("Failed to deduct XnScore")
	}
	fx.deducted = deducted

	outstanding := u.TotalDueCents - o.TotalPaidCents
	if err := e.scheduleOverdueReminder(ctx, o, a, outstanding); err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("overdue reminder: %v", err))
		log.WithError(err).Warn("Failed to schedule overdue reminder")
	}
	return out, fx
}

func (e *ObligationEngine) deductXnScore(ctx context.Context, o *obligation.Obligation, a Assessment) (bool, error) {
	if e.reputation == nil || e.policy.XnScoreOverduePenalty == 0 {
		return false, nil
	}
	err := e.reputation.Deduct(ctx, effects.Deduction{
		UserID: o.BorrowerID,
		Points: e.policy.XnScoreOverduePenalty,
		Reason: "loan_payment_overdue",
		Context: map[string]string{
			"obligation_id":      o.ID.String(),
			"loan_id":            o.LoanID.String(),
			"installment_number": strconv.Itoa(o.InstallmentNumber),
			"days_overdue":       strconv.Itoa(a.DaysOverdue),
		},
		IdempotencyKey: effects.IdempotencyKey(o.ID, effects.EffectXnScoreOverdue),
	})
	return err == nil, err
}

func (e *ObligationEngine) scheduleOverdueReminder(ctx context.Context, o *obligation.Obligation, a Assessment, outstandingCents int64) error {
	if e.reminders == nil {
		return nil
	}
	return e.reminders.Schedule(ctx, effects.ReminderRequest{
		UserID:   o.BorrowerID,
		Template: effects.TemplateOverdue,
		Payload: map[string]string{
			"obligation_id":      o.ID.String(),
			"loan_id":            o.LoanID.String(),
			"installment_number": strconv.Itoa(o.InstallmentNumber),
			"days_overdue":       strconv.Itoa(a.DaysOverdue),
		},
		AmountCents:    outstandingCents,
		DueDate:        CalendarDate(o.DueDate),
		IdempotencyKey: effects.IdempotencyKey(o.ID, effects.EffectOverdueReminder),
	})
}

// internal/app/cycle_engine.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rosca_engine/internal/domain/cycle"
	"rosca_engine/internal/domain/effects"
	"rosca_engine/internal/domain/runreport"
	"rosca_engine/internal/infra/config"

	"github.com/sirupsen/logrus"
)

// CycleRunStats is the response payload of one cycle progression run.
type CycleRunStats struct {
	TotalCyclesChecked int                 `json:"total_cycles_checked"`
	TransitionsMade    int                 `json:"transitions_made"`
	Skipped            int                 `json:"skipped"`
	Failed             int                 `json:"failed"`
	ByTransition       map[string]int      `json:"by_transition"`
	ProcessingTimeMs   int64               `json:"processing_time_ms"`
	Aborted            bool                `json:"aborted,omitempty"`
	Results            []runreport.Outcome `json:"results,omitempty"`
}

// CycleEngine advances every active cycle by at most one lifecycle step per run.
type CycleEngine struct {
	repo      cycle.Repository
	payouts   cycle.PayoutExecutor
	announcer effects.Announcer
	reporter  *Reporter
	policy    config.Policy
	logger    *logrus.Entry
}

func NewCycleEngine(
	repo cycle.Repository,
	payouts cycle.PayoutExecutor, // May be nil when no payout integration is deployed
	announcer effects.Announcer,
	reporter *Reporter,
	policy config.Policy,
	logger *logrus.Entry,
) *CycleEngine {
	return &CycleEngine{
		repo:      repo,
		payouts:   payouts,
		announcer: announcer,
		reporter:  reporter,
		policy:    policy,
		logger:    logger,
	}
}

// Run evaluates every candidate cycle against now. Only a failure to fetch the
// candidate set is returned as an error; per-cycle failures land in the stats.
func (e *CycleEngine) Run(ctx context.Context, now time.Time) (*CycleRunStats, error) {
	started := time.Now()
	report := runreport.New(runreport.JobCycleProgression, now)
	e.logger.WithField("now", now.Format(time.RFC3339)).Info("Starting cycle progression run")

	candidates, err := e.repo.ListCandidates(ctx, cycle.NonTerminal())
	if err != nil {
		report.Error = err.Error()
		report.Duration = time.Since(started)
		e.reporter.Record(ctx, report)
		return nil, fmt.Errorf("failed to fetch candidate cycles: %w", err)
	}
	e.logger.WithField("candidates", len(candidates)).Debug("Fetched candidate cycles")

	aborted := false
	for _, c := range candidates {
		if ctx.Err() != nil {
			aborted = true
			e.logger.WithError(ctx.Err()).Warn("Run budget exhausted, leaving remaining cycles for the next run")
			break
		}
		report.Add(e.processCycle(ctx, c, now))
	}

	report.Success = true
	report.Duration = time.Since(started)
	report.Summary["aborted"] = aborted
	e.reporter.Record(ctx, report)

	return &CycleRunStats{
		TotalCyclesChecked: report.Checked,
		TransitionsMade:    report.Transitions(),
		Skipped:            report.Skipped,
		Failed:             report.Failed,
		ByTransition:       report.ByTransition,
		ProcessingTimeMs:   report.Duration.Milliseconds(),
		Aborted:            aborted,
		Results:            report.Details,
	}, nil
}

func (e *CycleEngine) processCycle(ctx context.Context, c *cycle.Cycle, now time.Time) runreport.Outcome {
	out := runreport.Outcome{ID: c.ID, From: string(c.Status)}
	log := e.logger.WithFields(logrus.Fields{
		"cycle_id":  c.ID,
		"circle_id": c.CircleID,
		"status":    c.Status,
	})

	d, ok := EvaluateCycle(c, now, e.policy)
	if !ok {
		return out
	}

	to := d.To
	if d.ExecutePayout {
		if err := e.executePayout(ctx, c); err != nil {
			to = d.FallbackTo
			out.Warnings = append(out.Warnings, err.Error())
			log.WithError(err).Warn("Payout not executed, flagging cycle for manual processing")
		}
	}

	if !cycle.CanTransition(d.From, to) {
		out.Error = fmt.Sprintf("%v: %s -> %s", cycle.ErrInvalidTransition, d.From, to)
		log.Error(out.Error)
		return out
	}

	err := e.repo.Transition(ctx, cycle.TransitionUpdate{
		CycleID:        c.ID,
		From:           d.From,
		To:             to,
		ChangedAt:      now,
		GracePeriodEnd: d.GracePeriodEnd,
	})
	if errors.Is(err, cycle.ErrStaleState) {
		out.Skipped = true
		log.Info("Cycle changed since it was read, re-evaluating next run")
		return out
	}
	if err != nil {
		out.Error = err.Error()
		log.WithError(err).Error("Failed to apply cycle transition")
		return out
	}
	out.To = string(to)
	log.WithFields(logrus.Fields{
		"to":             to,
		"rule":           d.Rule,
		"reduced_payout": d.ReducedPayout,
	}).Info("Cycle transitioned")

	if to == d.To && d.Announce != "" {
		if err := e.announce(ctx, c, d.Announce); err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("announce %s: %v", d.Announce, err))
			log.WithError(err).Warn("Failed to publish cycle announcement")
		}
	}
	return out
}

func (e *CycleEngine) executePayout(ctx context.Context, c *cycle.Cycle) error {
	if e.payouts == nil {
		return cycle.ErrPayoutUnavailable
	}
	if err := e.payouts.Execute(ctx, c.ID, effects.IdempotencyKey(c.ID, effects.EffectPayout)); err != nil {
		if errors.Is(err, cycle.ErrPayoutUnavailable) {
			return err
		}
		return fmt.Errorf("payout execution failed: %w", err)
	}
	return nil
}

func (e *CycleEngine) announce(ctx context.Context, c *cycle.Cycle, kind string) error {
	if e.announcer == nil {
		return nil
	}
	return e.announcer.Announce(ctx, effects.Announcement{
		Kind:           kind,
		CycleID:        c.ID,
		CircleID:       c.CircleID,
		RecipientID:    c.RecipientID,
		AmountCents:    c.CollectedCents,
		IdempotencyKey: effects.IdempotencyKey(c.ID, kind),
	})
}

// internal/app/cycle_rules.go
package app

import (
	"database/sql"
	"time"

	"rosca_engine/internal/domain/cycle"
	"rosca_engine/internal/domain/effects"
	"rosca_engine/internal/infra/config"
)

// cycleRule is one guarded edge of the lifecycle graph.
type cycleRule struct {
	name     string
	when     func(c *cycle.Cycle, now time.Time, p config.Policy) bool
	to       cycle.Status
	announce string // Announcement kind fired after a successful write, "" for none
	payout   bool   // The edge needs a successful payout execution
}

// cycleRules maps each status to its outgoing rules in priority order. Full funding
// comes first wherever it is offered so underfunded detours are never taken by a
// funded cycle. payout_pending has no rules: it waits for manual resolution.
var cycleRules = map[cycle.Status][]cycleRule{
	cycle.StatusScheduled: {
		{name: "start_date_reached", when: startReached, to: cycle.StatusCollecting, announce: effects.AnnounceWindowOpened},
	},
	cycle.StatusCollecting: {
		{name: "fully_funded", when: fullyFunded, to: cycle.StatusReadyPayout, announce: effects.AnnouncePayoutReady},
		{name: "contribution_deadline_passed", when: deadlinePassed, to: cycle.StatusDeadlineReached, announce: effects.AnnounceDeadlineReached},
	},
	cycle.StatusDeadlineReached: {
		{name: "fully_funded", when: fullyFunded, to: cycle.StatusReadyPayout, announce: effects.AnnouncePayoutReady},
		{name: "underfunded", when: always, to: cycle.StatusGracePeriod, announce: effects.AnnounceGraceEscalated},
	},
	cycle.StatusGracePeriod: {
		{name: "fully_funded", when: fullyFunded, to: cycle.StatusReadyPayout, announce: effects.AnnouncePayoutReady},
		{name: "grace_period_expired", when: graceExpired, to: cycle.StatusReadyPayout, announce: effects.AnnouncePayoutReady},
	},
	cycle.StatusReadyPayout: {
		{name: "payout_date_reached", when: payoutDue, to: cycle.StatusPayoutCompleted, payout: true},
	},
	cycle.StatusPayoutCompleted: {
		{name: "archive", when: always, to: cycle.StatusClosed, announce: effects.AnnounceArchived},
	},
}

// CycleDecision is the single next step computed for a cycle.
type CycleDecision struct {
	Rule          string
	From          cycle.Status
	To            cycle.Status
	Announce      string
	ExecutePayout bool
	// FallbackTo is where the cycle goes when the payout cannot be executed.
	FallbackTo cycle.Status
	// GracePeriodEnd is set when the grace end must be persisted with this write.
	GracePeriodEnd sql.NullTime
	// ReducedPayout marks a payout released while contributions are still missing.
	ReducedPayout bool
}

// EvaluateCycle returns the first matching rule for the cycle's current status.
// It is pure: it reads only its arguments, and yields at most one step per call.
func EvaluateCycle(c *cycle.Cycle, now time.Time, p config.Policy) (CycleDecision, bool) {
	for _, r := range cycleRules[c.Status] {
		if !r.when(c, now, p) {
			continue
		}
		d := CycleDecision{
			Rule:          r.name,
			From:          c.Status,
			To:            r.to,
			Announce:      r.announce,
			ExecutePayout: r.payout,
		}
		if r.payout {
			d.FallbackTo = cycle.StatusPayoutPending
		}
		if r.to == cycle.StatusGracePeriod && !c.GracePeriodEnd.Valid {
			d.GracePeriodEnd = sql.NullTime{Time: cycleGraceEnd(c, p), Valid: true}
		}
		if r.to == cycle.StatusReadyPayout && !c.FullyFunded() {
			d.ReducedPayout = true
		}
		return d, true
	}
	return CycleDecision{}, false
}

// cycleGraceEnd is the stored grace end, or the deadline plus the configured window
// for rows that never had one written.
func cycleGraceEnd(c *cycle.Cycle, p config.Policy) time.Time {
	if c.GracePeriodEnd.Valid {
		return c.GracePeriodEnd.Time
	}
	return c.ContributionDeadline.AddDate(0, 0, p.CycleGracePeriodDays)
}

func always(*cycle.Cycle, time.Time, config.Policy) bool { return true }

func fullyFunded(c *cycle.Cycle, _ time.Time, _ config.Policy) bool { return c.FullyFunded() }

func startReached(c *cycle.Cycle, now time.Time, _ config.Policy) bool {
	return !now.Before(c.StartDate)
}

func deadlinePassed(c *cycle.Cycle, now time.Time, _ config.Policy) bool {
	return !now.Before(c.ContributionDeadline)
}

func graceExpired(c *cycle.Cycle, now time.Time, p config.Policy) bool {
	return !now.Before(cycleGraceEnd(c, p))
}

func payoutDue(c *cycle.Cycle, now time.Time, _ config.Policy) bool {
	return !now.Before(c.ExpectedPayoutDate)
}

// internal/app/obligation_rules.go
package app

import (
	"time"

	"rosca_engine/internal/domain/obligation"
	"rosca_engine/internal/infra/config"

	"github.com/shopspring/decimal"
)

// Assessment is what the overdue rules decide for one obligation on one day.
type Assessment struct {
	DaysOverdue     int
	GracePeriodEnd  time.Time
	PersistGraceEnd bool // The grace end was derived and must be written
	PastGrace       bool
	BecomeOverdue   bool
	LateFeeCents    int64 // Non-zero when the one-time fee is assessed now
}

// Changed reports whether the assessment requires a write.
func (a Assessment) Changed() bool {
	return a.PersistGraceEnd || a.BecomeOverdue || a.LateFeeCents > 0
}

// AssessObligation applies the grace, overdue and late-fee rules. today must be a
// calendar date (midnight UTC); see CalendarDate. Each step is guarded by what is
// already stored, so assessing an already-settled row yields no change.
func AssessObligation(o *obligation.Obligation, today time.Time, p config.Policy) Assessment {
	due := CalendarDate(o.DueDate)
	a := Assessment{
		DaysOverdue: int(today.Sub(due).Hours() / 24),
	}

	if o.GracePeriodEnd.Valid {
		a.GracePeriodEnd = CalendarDate(o.GracePeriodEnd.Time)
	} else {
		a.GracePeriodEnd = due.AddDate(0, 0, p.GracePeriodDays)
		a.PersistGraceEnd = true
	}

	a.PastGrace = today.After(a.GracePeriodEnd)
	if !a.PastGrace {
		return a
	}

	remaining := o.RemainingCents()
	if o.Status != obligation.StatusOverdue && remaining > 0 {
		a.BecomeOverdue = true
	}
	if o.LateFeeCents == 0 {
		a.LateFeeCents = LateFee(remaining, p.LateFeeRate)
	}
	return a
}

// LateFee is remainingCents × rate rounded to the nearest cent, halves away from zero.
func LateFee(remainingCents int64, rate decimal.Decimal) int64 {
	if remainingCents <= 0 {
		return 0
	}
	return decimal.NewFromInt(remainingCents).Mul(rate).Round(0).IntPart()
}

// CalendarDate drops the clock part of t, keeping the date as seen in t's location.
func CalendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

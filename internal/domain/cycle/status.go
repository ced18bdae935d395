// internal/domain/cycle/status.go
package cycle

// Status is the lifecycle state of a cycle.
type Status string

const (
	StatusScheduled       Status = "scheduled"
	StatusCollecting      Status = "collecting"
	StatusDeadlineReached Status = "deadline_reached"
	StatusGracePeriod     Status = "grace_period"
	StatusReadyPayout     Status = "ready_payout"
	StatusPayoutPending   Status = "payout_pending" // Manual processing flag, outside the main chain
	StatusPayoutCompleted Status = "payout_completed"
	StatusClosed          Status = "closed"
)

// CircleStatusActive is the parent circle status that makes its cycles candidates.
const CircleStatusActive = "active"

// edges is the directed transition graph. Nothing points back to an earlier state.
var edges = map[Status][]Status{
	StatusScheduled:       {StatusCollecting},
	StatusCollecting:      {StatusReadyPayout, StatusDeadlineReached},
	StatusDeadlineReached: {StatusReadyPayout, StatusGracePeriod},
	StatusGracePeriod:     {StatusReadyPayout},
	StatusReadyPayout:     {StatusPayoutCompleted, StatusPayoutPending},
	StatusPayoutPending:   {StatusPayoutCompleted},
	StatusPayoutCompleted: {StatusClosed},
}

// NonTerminal lists every status a cycle can still leave.
func NonTerminal() []Status {
	return []Status{
		StatusScheduled,
		StatusCollecting,
		StatusDeadlineReached,
		StatusGracePeriod,
		StatusReadyPayout,
		StatusPayoutPending,
		StatusPayoutCompleted,
	}
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from, to Status) bool {
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s can never be left.
func (s Status) IsTerminal() bool {
	return len(edges[s]) == 0
}

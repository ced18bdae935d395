// internal/domain/cycle/cycle.go
package cycle

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Cycle is one rotation period of a savings circle, ending in a payout to one member.
// Corresponds to the 'cycles' table.
type Cycle struct {
	ID                    uuid.UUID
	CircleID              uuid.UUID
	CycleNumber           int
	Status                Status
	StartDate             time.Time
	ContributionDeadline  time.Time
	GracePeriodEnd        sql.NullTime // Optional; filled in when the cycle enters grace_period
	ExpectedPayoutDate    time.Time
	ExpectedContributions int
	ReceivedContributions int
	CollectedCents        int64
	ExpectedCents         int64
	RecipientID           uuid.NullUUID
	StatusChangedAt       sql.NullTime
}

// FullyFunded reports whether every expected contribution has been received.
func (c *Cycle) FullyFunded() bool {
	return c.ReceivedContributions >= c.ExpectedContributions
}

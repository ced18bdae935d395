// internal/domain/cycle/payout.go
package cycle

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrPayoutUnavailable means no payout integration is installed. It is recoverable:
// the cycle is parked in payout_pending for manual processing.
var ErrPayoutUnavailable = errors.New("payout execution is unavailable")

// PayoutExecutor settles a cycle's payout to its recipient.
// Implementations must honour idempotencyKey so a repeated call never pays twice.
type PayoutExecutor interface {
	Execute(ctx context.Context, cycleID uuid.UUID, idempotencyKey string) error
}

// internal/domain/obligation/repository.go
package obligation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrStaleState is returned when the obligation changed between read and write
// (a payment landed, another run assessed it). The caller skips it this pass.
var ErrStaleState = errors.New("obligation changed since it was read")

// Update is the single conditional write produced for one obligation.
// The Expected* fields are the values read at scan time; the write only applies
// when the row still holds all of them.
type Update struct {
	ObligationID uuid.UUID

	ExpectedStatus       Status
	ExpectedPaidCents    int64
	ExpectedLateFeeCents int64

	Status         Status
	GracePeriodEnd sql.NullTime // Written only if the stored value is NULL
	LateFeeCents   int64
	TotalDueCents  int64

	// LateFee is non-nil when this update assesses the one-time late fee.
	LateFee *LateFeeEntry
}

// LateFeeEntry is one append-only row in the late-fee ledger.
type LateFeeEntry struct {
	ObligationID   uuid.UUID
	LoanID         uuid.UUID
	BorrowerID     uuid.UUID
	AmountCents    int64
	DaysOverdue    int
	AssessedAt     time.Time
	IdempotencyKey string
}

// Repository defines the obligation store operations used by the overdue engine.
type Repository interface {
	// ListOverdueCandidates returns obligations due strictly before today
	// whose status is one of CandidateStatuses.
	ListOverdueCandidates(ctx context.Context, today time.Time) ([]*Obligation, error)
	// Apply persists the update, and the ledger entry if any, atomically.
	// It returns ErrStaleState when the guarded row no longer matches.
	Apply(ctx context.Context, u Update) error
}

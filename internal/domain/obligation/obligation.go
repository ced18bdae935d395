// internal/domain/obligation/obligation.go
package obligation

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status is the repayment state of an installment.
type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusDue      Status = "due"
	StatusPartial  Status = "partial"
	StatusOverdue  Status = "overdue"
	StatusPaid     Status = "paid" // Set by payment processing; never a candidate
)

// CandidateStatuses are the statuses the overdue scan looks at.
func CandidateStatuses() []Status {
	return []Status{StatusDue, StatusUpcoming, StatusPartial}
}

// Obligation is one scheduled repayment installment on a loan.
// Corresponds to the 'loan_obligations' table. Money is in minor units.
type Obligation struct {
	ID                uuid.UUID
	LoanID            uuid.UUID
	BorrowerID        uuid.UUID
	InstallmentNumber int
	DueDate           time.Time
	TotalDueCents     int64
	TotalPaidCents    int64
	LateFeeCents      int64 // Zero means no fee has been assessed
	Status            Status
	GracePeriodEnd    sql.NullTime
}

// RemainingCents is what the borrower still owes.
func (o *Obligation) RemainingCents() int64 {
	if o.TotalPaidCents >= o.TotalDueCents {
		return 0
	}
	return o.TotalDueCents - o.TotalPaidCents
}

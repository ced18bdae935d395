// Package effects defines the side-effect requests the engines emit and the narrow
// interfaces that deliver them. Delivery is at-least-once; every request carries an
// idempotency key the receiver must deduplicate on.
package effects

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// keyNamespace scopes idempotency keys to this engine.
var keyNamespace = uuid.MustParse("6f1c8a52-3d0e-4c7b-9a55-2b8e4f0d9c31")

// IdempotencyKey derives a stable key from an entity id and an effect type.
// The same pair always yields the same key, across processes and retries.
func IdempotencyKey(entityID uuid.UUID, effect string) string {
	return uuid.NewSHA1(keyNamespace, []byte(entityID.String()+":"+effect)).String()
}

// Effect type names, used for idempotency keys and logging.
const (
	EffectXnScoreOverdue  = "xnscore_overdue"
	EffectOverdueReminder = "overdue_reminder"
	EffectLateFee         = "late_fee"
	EffectPayout          = "payout"
)

// Deduction asks the reputation ledger to remove points from a user.
type Deduction struct {
	UserID         uuid.UUID
	Points         int
	Reason         string
	Context        map[string]string
	IdempotencyKey string
}

// Reputation adjusts XnScore.
type Reputation interface {
	Deduct(ctx context.Context, d Deduction) error
}

// Reminder template names.
const (
	TemplateOverdue = "overdue"
)

// ReminderRequest schedules a user-facing reminder.
type ReminderRequest struct {
	UserID         uuid.UUID
	Template       string
	Payload        map[string]string
	AmountCents    int64
	DueDate        time.Time
	IdempotencyKey string
}

// Reminders schedules reminder delivery.
type Reminders interface {
	Schedule(ctx context.Context, r ReminderRequest) error
}

// Cycle announcement kinds.
const (
	AnnounceWindowOpened    = "contribution_window_opened"
	AnnounceDeadlineReached = "deadline_reached"
	AnnounceGraceEscalated  = "grace_period_escalated"
	AnnouncePayoutReady     = "payout_ready"
	AnnounceArchived        = "cycle_archived"
)

// Announcement is a cycle lifecycle signal for downstream consumers.
type Announcement struct {
	Kind           string
	CycleID        uuid.UUID
	CircleID       uuid.UUID
	RecipientID    uuid.NullUUID
	AmountCents    int64
	IdempotencyKey string
}

// Announcer publishes cycle lifecycle signals.
type Announcer interface {
	Announce(ctx context.Context, a Announcement) error
}

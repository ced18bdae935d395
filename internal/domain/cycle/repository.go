// internal/domain/cycle/repository.go
package cycle

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrStaleState is returned by conditional writes when the row no longer holds the
// status it was read with. Callers treat it as a lost race, not a failure.
var ErrStaleState = errors.New("cycle status changed since it was read")

// ErrInvalidTransition is returned when a write would move a cycle off the lifecycle graph.
var ErrInvalidTransition = errors.New("transition is not part of the cycle lifecycle")

// TransitionUpdate describes one compare-and-swap status write.
type TransitionUpdate struct {
	CycleID        uuid.UUID
	From           Status
	To             Status
	ChangedAt      time.Time
	GracePeriodEnd sql.NullTime // Persisted only when the stored value is NULL
}

// Repository defines the cycle store operations used by the progression engine.
type Repository interface {
	// ListCandidates returns cycles of active circles whose status is in statuses.
	ListCandidates(ctx context.Context, statuses []Status) ([]*Cycle, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Cycle, error)
	// Transition applies the update only if the cycle currently holds update.From.
	// It returns ErrStaleState when no row matched.
	Transition(ctx context.Context, update TransitionUpdate) error
}

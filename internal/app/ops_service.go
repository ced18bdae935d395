package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rosca_engine/internal/domain/cycle"
	"rosca_engine/internal/domain/runreport"
)

// Custom application-level errors for the ops service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrNotPayoutPending = fmt.Errorf("cycle is not awaiting manual payout")

const maxRecentRuns = 20

// OpsService backs the operator commands: resolving manual payouts and reading run history.
type OpsService struct {
	cycleRepo       cycle.Repository
	runRepo         runreport.Repository
	adminTelegramID int64
}

func NewOpsService(cr cycle.Repository, rr runreport.Repository, adminID int64) *OpsService {
	return &OpsService{
		cycleRepo:       cr,
		runRepo:         rr,
		adminTelegramID: adminID,
	}
}

// ResolvePendingPayout records that an operator settled a payout_pending cycle by hand.
// The cycle moves to payout_completed and is closed by the next progression run.
func (s *OpsService) ResolvePendingPayout(ctx context.Context, performingAdminID int64, cycleID string, now time.Time) (*cycle.Cycle, error) {
	if s.adminTelegramID == 0 || performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}

	id, err := parseUUID(cycleID)
	if err != nil {
		return nil, err
	}

	target, err := s.cycleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load cycle %s: %w", id, err)
	}
	if target.Status != cycle.StatusPayoutPending {
		return target, ErrNotPayoutPending
	}

	err = s.cycleRepo.Transition(ctx, cycle.TransitionUpdate{
		CycleID:   target.ID,
		From:      cycle.StatusPayoutPending,
		To:        cycle.StatusPayoutCompleted,
		ChangedAt: now,
	})
	if errors.Is(err, cycle.ErrStaleState) {
		return target, ErrNotPayoutPending
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark payout completed: %w", err)
	}

	target.Status = cycle.StatusPayoutCompleted
	target.StatusChangedAt.Time, target.StatusChangedAt.Valid = now, true
	return target, nil
}

// RecentRuns lists the latest run reports, newest first.
func (s *OpsService) RecentRuns(ctx context.Context, performingAdminID int64, limit int) ([]*runreport.Report, error) {
	if s.adminTelegramID == 0 || performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}
	if limit <= 0 || limit > maxRecentRuns {
		limit = maxRecentRuns
	}
	runs, err := s.runRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list run reports: %w", err)
	}
	return runs, nil
}

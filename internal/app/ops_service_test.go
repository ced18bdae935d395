package app

import (
	"context"
	"testing"
	"time"

	"rosca_engine/internal/domain/cycle"
	"rosca_engine/internal/domain/runreport"
	"rosca_engine/internal/infra/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminID = int64(4242)

func TestOpsService_ResolvePendingPayout(t *testing.T) {
	c := newCycle(cycle.StatusPayoutPending, 10)
	repo := newMemCycleRepo(c)
	svc := NewOpsService(repo, &memRunRepo{}, testAdminID)
	now := day(2025, 1, 20)

	got, err := svc.ResolvePendingPayout(context.Background(), testAdminID, " "+c.ID.String()+" ", now)
	require.NoError(t, err)
	assert.Equal(t, cycle.StatusPayoutCompleted, got.Status)
	assert.Equal(t, cycle.StatusPayoutCompleted, repo.status(c.ID))
	assert.Equal(t, now, got.StatusChangedAt.Time)

	// The next progression run closes it.
	engine := NewCycleEngine(repo, nil, nil, NewReporter(nil, nil, quietLogger()), config.DefaultPolicy(), quietLogger())
	_, err = engine.Run(context.Background(), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, cycle.StatusClosed, repo.status(c.ID))
}

func TestOpsService_ResolveRejectsOtherStates(t *testing.T) {
	c := newCycle(cycle.StatusReadyPayout, 10)
	svc := NewOpsService(newMemCycleRepo(c), &memRunRepo{}, testAdminID)

	got, err := svc.ResolvePendingPayout(context.Background(), testAdminID, c.ID.String(), time.Now())
	assert.ErrorIs(t, err, ErrNotPayoutPending)
	require.NotNil(t, got)
	assert.Equal(t, cycle.StatusReadyPayout, got.Status)
}

func TestOpsService_RequiresAdmin(t *testing.T) {
	svc := NewOpsService(newMemCycleRepo(), &memRunRepo{}, testAdminID)

	_, err := svc.ResolvePendingPayout(context.Background(), 1, "whatever", time.Now())
	assert.ErrorIs(t, err, ErrAdminNotAuthorized)

	_, err = svc.RecentRuns(context.Background(), 1, 5)
	assert.ErrorIs(t, err, ErrAdminNotAuthorized)

	unconfigured := NewOpsService(newMemCycleRepo(), &memRunRepo{}, 0)
	_, err = unconfigured.RecentRuns(context.Background(), 0, 5)
	assert.ErrorIs(t, err, ErrAdminNotAuthorized)
}

func TestOpsService_ResolveRejectsMalformedID(t *testing.T) {
	svc := NewOpsService(newMemCycleRepo(), &memRunRepo{}, testAdminID)

	_, err := svc.ResolvePendingPayout(context.Background(), testAdminID, "cycle-7", time.Now())
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestOpsService_RecentRunsNewestFirst(t *testing.T) {
	runs := &memRunRepo{}
	for i := 0; i < 3; i++ {
		runs.reports = append(runs.reports, runreport.New(runreport.JobCycleProgression, day(2025, 1, 1+i)))
	}
	svc := NewOpsService(newMemCycleRepo(), runs, testAdminID)

	got, err := svc.RecentRuns(context.Background(), testAdminID, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, day(2025, 1, 3), got[0].StartedAt)
	assert.Equal(t, day(2025, 1, 2), got[1].StartedAt)
}

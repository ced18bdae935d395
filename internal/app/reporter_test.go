package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"rosca_engine/internal/domain/runreport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReporter_HealthyRunIsStoredWithoutAlert(t *testing.T) {
	runs, alerter := &memRunRepo{}, &fakeAlerter{}
	r := NewReporter(runs, alerter, quietLogger())

	rep := runreport.New(runreport.JobCycleProgression, time.Now())
	rep.Success = true
	r.Record(context.Background(), rep)

	require.Len(t, runs.reports, 1)
	assert.Empty(t, alerter.alerts)
}

func TestReporter_AlertFailuresAreSwallowed(t *testing.T) {
	runs := &memRunRepo{err: errors.New("insert failed")}
	alerter := &fakeAlerter{err: errors.New("telegram unreachable")}
	r := NewReporter(runs, alerter, quietLogger())

	rep := runreport.New(runreport.JobOverdueObligations, time.Now())
	rep.Error = "fetch failed"

	assert.NotPanics(t, func() { r.Record(context.Background(), rep) })
	assert.Len(t, alerter.alerts, 1)
}

func TestReporter_WritesEvenWhenRunContextIsDone(t *testing.T) {
	runs := &memRunRepo{}
	r := NewReporter(runs, nil, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r.Record(ctx, runreport.New(runreport.JobCycleProgression, time.Now()))
	assert.Len(t, runs.reports, 1)
}

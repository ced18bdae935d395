package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"rosca_engine/internal/domain/runreport"
	"rosca_engine/internal/infra/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNow(t *testing.T) {
	fixed := time.Date(2025, 1, 10, 0, 15, 0, 0, time.UTC)
	clock := func() time.Time { return fixed }

	got, err := parseNow("", clock)
	require.NoError(t, err)
	assert.Equal(t, fixed, got)

	got, err = parseNow("2025-03-08T09:00:00+03:00", clock)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 3, 8, 6, 0, 0, 0, time.UTC)))

	_, err = parseNow("yesterday", clock)
	assert.ErrorContains(t, err, "invalid --now")
}

func TestRunCommandRejectsUnknownJob(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"run", "loans"})

	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid argument")
}

func TestRunCommandRequiresJob(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"run"})
	assert.Error(t, root.ExecuteContext(context.Background()))
}

func TestEngineJobsUseConfiguredSpecs(t *testing.T) {
	comps := &components{cfg: &config.AppConfig{CronSpecCycles: "*/30 * * * *", CronSpecObligations: "0 1 * * *"}}

	jobs := engineJobs(comps)
	require.Len(t, jobs, 2)
	assert.Equal(t, runreport.JobCycleProgression, jobs[0].Name)
	assert.Equal(t, "*/30 * * * *", jobs[0].Spec)
	assert.Equal(t, runreport.JobOverdueObligations, jobs[1].Name)
	assert.Equal(t, "0 1 * * *", jobs[1].Spec)
}

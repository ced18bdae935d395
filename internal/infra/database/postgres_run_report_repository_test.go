package database

import (
	"context"
	"testing"
	"time"

	"rosca_engine/internal/domain/runreport"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRunReportRepository_Insert(t *testing.T) {
	db, mock := newMock(t)
	started := time.Date(2025, 1, 10, 1, 0, 0, 0, time.UTC)
	rep := runreport.New(runreport.JobCycleProgression, started)
	rep.Success = true
	rep.Add(runreport.Outcome{ID: uuid.New(), From: "collecting", To: "deadline_reached"})
	rep.Duration = 1500 * time.Millisecond

	mock.ExpectExec(`INSERT INTO job_run_logs`).
		WithArgs(rep.ID.String(), runreport.JobCycleProgression, "success", 1, 1, 0, 0,
			[]byte(`{"collecting→deadline_reached":1}`), int64(1500), nil, sqlmock.AnyArg(), started).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, NewPostgresRunReportRepository(db).Insert(context.Background(), rep))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunReportRepository_InsertFailureCarriesError(t *testing.T) {
	db, mock := newMock(t)
	rep := runreport.New(runreport.JobOverdueObligations, time.Now())
	rep.Error = "error querying overdue candidates: timeout"

	mock.ExpectExec(`INSERT INTO job_run_logs`).
		WithArgs(sqlmock.AnyArg(), runreport.JobOverdueObligations, "failure", 0, 0, 0, 0,
			sqlmock.AnyArg(), sqlmock.AnyArg(), rep.Error, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, NewPostgresRunReportRepository(db).Insert(context.Background(), rep))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunReportRepository_ListRecent(t *testing.T) {
	db, mock := newMock(t)
	id := uuid.New()
	started := time.Date(2025, 1, 10, 0, 15, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "job_name", "status", "items_checked", "items_succeeded", "items_failed", "items_skipped",
		"by_transition", "duration_ms", "error", "started_at",
	}).AddRow(id.String(), runreport.JobOverdueObligations, "failure", 3, 1, 1, 1,
		[]byte(`{"due→overdue":1}`), int64(250), "", started)
	mock.ExpectQuery(`FROM job_run_logs\s+ORDER BY started_at DESC`).
		WithArgs(5).
		WillReturnRows(rows)

	reports, err := NewPostgresRunReportRepository(db).ListRecent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	r := reports[0]
	assert.Equal(t, id, r.ID)
	assert.False(t, r.Success)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 250*time.Millisecond, r.Duration)
	assert.Equal(t, map[string]int{"due→overdue": 1}, r.ByTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// internal/infra/database/postgres_run_report_repository.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"rosca_engine/internal/domain/runreport"
)

type PostgresRunReportRepository struct {
	db *sql.DB
}

func NewPostgresRunReportRepository(db *sql.DB) *PostgresRunReportRepository {
	return &PostgresRunReportRepository{db: db}
}

// runDetails is the JSONB payload stored alongside the counters.
type runDetails struct {
	Summary  map[string]any      `json:"summary,omitempty"`
	Outcomes []runreport.Outcome `json:"outcomes,omitempty"`
}

func (r *PostgresRunReportRepository) Insert(ctx context.Context, rep *runreport.Report) error {
	byTransition, err := json.Marshal(rep.ByTransition)
	if err != nil {
		return fmt.Errorf("error encoding transition counts: %w", err)
	}
	details, err := json.Marshal(runDetails{Summary: rep.Summary, Outcomes: rep.Details})
	if err != nil {
		return fmt.Errorf("error encoding run details: %w", err)
	}

	status := "success"
	if !rep.Success {
		status = "failure"
	}
	var errText sql.NullString
	if rep.Error != "" {
		errText = sql.NullString{String: rep.Error, Valid: true}
	}

	query := `INSERT INTO job_run_logs
                   (id, job_name, status, items_checked, items_succeeded, items_failed, items_skipped,
                    by_transition, duration_ms, error, details, started_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = r.db.ExecContext(ctx, query,
		rep.ID, rep.JobName, status, rep.Checked, rep.Succeeded, rep.Failed, rep.Skipped,
		byTransition, rep.Duration.Milliseconds(), errText, details, rep.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting run report: %w", err)
	}
	return nil
}

// ListRecent returns the latest reports without their per-item outcomes.
func (r *PostgresRunReportRepository) ListRecent(ctx context.Context, limit int) ([]*runreport.Report, error) {
	query := `SELECT id, job_name, status, items_checked, items_succeeded, items_failed, items_skipped,
                     by_transition, duration_ms, COALESCE(error, ''), started_at
               FROM job_run_logs
               ORDER BY started_at DESC
               LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying run reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*runreport.Report, 0)
	for rows.Next() {
		rep := &runreport.Report{}
		var status string
		var byTransition []byte
		var durationMs int64
		if err := rows.Scan(
			&rep.ID, &rep.JobName, &status, &rep.Checked, &rep.Succeeded, &rep.Failed, &rep.Skipped,
			&byTransition, &durationMs, &rep.Error, &rep.StartedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning run report row: %w", err)
		}
		rep.Success = status == "success"
		rep.Duration = time.Duration(durationMs) * time.Millisecond
		if err := json.Unmarshal(byTransition, &rep.ByTransition); err != nil {
			return nil, fmt.Errorf("error decoding transition counts for run %s: %w", rep.ID, err)
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run report rows: %w", err)
	}
	return reports, nil
}

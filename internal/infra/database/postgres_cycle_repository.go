// internal/infra/database/postgres_cycle_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rosca_engine/internal/domain/cycle"

	"github.com/google/uuid"
	"github.com/lib/pq" // For pq.Array
)

// Custom errors specific to the cycle repository
var ErrCycleNotFound = fmt.Errorf("cycle not found")

const cycleColumns = `c.id, c.circle_id, c.cycle_number, c.status, c.start_date, c.contribution_deadline,
       c.grace_period_end, c.expected_payout_date, c.expected_contributions, c.received_contributions,
       c.collected_amount_cents, c.expected_amount_cents, c.recipient_id, c.status_changed_at`

type PostgresCycleRepository struct {
	db *sql.DB
}

func NewPostgresCycleRepository(db *sql.DB) *PostgresCycleRepository {
	return &PostgresCycleRepository{db: db}
}

func (r *PostgresCycleRepository) ListCandidates(ctx context.Context, statuses []cycle.Status) ([]*cycle.Cycle, error) {
	query := `SELECT ` + cycleColumns + `
               FROM circle_cycles c
               JOIN circles ci ON ci.id = c.circle_id
               WHERE ci.status = $1 AND c.status = ANY($2::text[])
               ORDER BY c.expected_payout_date, c.id`
	rows, err := r.db.QueryContext(ctx, query, cycle.CircleStatusActive, pq.Array(statusStrings(statuses)))
	if err != nil {
		return nil, fmt.Errorf("error querying candidate cycles: %w", err)
	}
	defer rows.Close()

	cycles := make([]*cycle.Cycle, 0)
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning cycle row: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cycle rows: %w", err)
	}
	return cycles, nil
}

func (r *PostgresCycleRepository) GetByID(ctx context.Context, id uuid.UUID) (*cycle.Cycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM circle_cycles c WHERE c.id = $1`
	c, err := scanCycle(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCycleNotFound
		}
		return nil, fmt.Errorf("error getting cycle by ID: %w", err)
	}
	return c, nil
}

// Transition is a compare-and-swap on status. grace_period_end is only filled when NULL.
func (r *PostgresCycleRepository) Transition(ctx context.Context, u cycle.TransitionUpdate) error {
	if !cycle.CanTransition(u.From, u.To) {
		return fmt.Errorf("%w: %s -> %s", cycle.ErrInvalidTransition, u.From, u.To)
	}
	query := `UPDATE circle_cycles
               SET status = $1, status_changed_at = $2,
                   grace_period_end = COALESCE(grace_period_end, $3), updated_at = NOW()
               WHERE id = $4 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, u.To, u.ChangedAt, u.GracePeriodEnd, u.CycleID, u.From)
	if err != nil {
		return fmt.Errorf("error updating cycle status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return cycle.ErrStaleState
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCycle(row rowScanner) (*cycle.Cycle, error) {
	c := &cycle.Cycle{}
	err := row.Scan(
		&c.ID, &c.CircleID, &c.CycleNumber, &c.Status, &c.StartDate, &c.ContributionDeadline,
		&c.GracePeriodEnd, &c.ExpectedPayoutDate, &c.ExpectedContributions, &c.ReceivedContributions,
		&c.CollectedCents, &c.ExpectedCents, &c.RecipientID, &c.StatusChangedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func statusStrings[S ~string](statuses []S) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

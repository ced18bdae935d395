// internal/infra/database/postgres_obligation_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rosca_engine/internal/domain/obligation"

	"github.com/lib/pq"
)

type PostgresObligationRepository struct {
	db *sql.DB
}

func NewPostgresObligationRepository(db *sql.DB) *PostgresObligationRepository {
	return &PostgresObligationRepository{db: db}
}

func (r *PostgresObligationRepository) ListOverdueCandidates(ctx context.Context, today time.Time) ([]*obligation.Obligation, error) {
	query := `SELECT id, loan_id, borrower_id, installment_number, due_date, total_due_cents,
                     total_paid_cents, COALESCE(late_fee_cents, 0), status, grace_period_end
               FROM loan_obligations
               WHERE due_date < $1 AND status = ANY($2::text[])
               ORDER BY due_date, id`
	rows, err := r.db.QueryContext(ctx, query, today, pq.Array(statusStrings(obligation.CandidateStatuses())))
	if err != nil {
		return nil, fmt.Errorf("error querying overdue candidates: %w", err)
	}
	defer rows.Close()

	obligations := make([]*obligation.Obligation, 0)
	for rows.Next() {
		o := &obligation.Obligation{}
		if err := rows.Scan(
			&o.ID, &o.LoanID, &o.BorrowerID, &o.InstallmentNumber, &o.DueDate, &o.TotalDueCents,
			&o.TotalPaidCents, &o.LateFeeCents, &o.Status, &o.GracePeriodEnd,
		); err != nil {
			return nil, fmt.Errorf("error scanning obligation row: %w", err)
		}
		obligations = append(obligations, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating obligation rows: %w", err)
	}
	return obligations, nil
}

// Apply writes the assessment guarded on the values read at scan time, and records
// the late-fee ledger entry in the same transaction.
func (r *PostgresObligationRepository) Apply(ctx context.Context, u obligation.Update) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for obligation update: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	query := `UPDATE loan_obligations
               SET status = $1,
                   grace_period_end = COALESCE(grace_period_end, $2),
                   late_fee_cents = $3,
                   total_due_cents = $4,
                   updated_at = NOW()
               WHERE id = $5
                 AND status = $6
                 AND total_paid_cents = $7
                 AND COALESCE(late_fee_cents, 0) = $8`
	res, err := txn.ExecContext(ctx, query,
		u.Status, u.GracePeriodEnd, u.LateFeeCents, u.TotalDueCents,
		u.ObligationID, u.ExpectedStatus, u.ExpectedPaidCents, u.ExpectedLateFeeCents,
	)
	if err != nil {
		return fmt.Errorf("error updating obligation %s: %w", u.ObligationID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return obligation.ErrStaleState
	}

	if fee := u.LateFee; fee != nil {
		_, err := txn.ExecContext(ctx, `INSERT INTO late_fee_ledger
                   (obligation_id, loan_id, borrower_id, amount_cents, days_overdue, assessed_at, idempotency_key)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               ON CONFLICT (idempotency_key) DO NOTHING`,
			fee.ObligationID, fee.LoanID, fee.BorrowerID, fee.AmountCents, fee.DaysOverdue, fee.AssessedAt, fee.IdempotencyKey,
		)
		if err != nil {
			return fmt.Errorf("error recording late fee for obligation %s: %w", u.ObligationID, err)
		}
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit obligation update: %w", err)
	}
	return nil
}

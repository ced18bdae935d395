// internal/infra/database/postgres_effects.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"rosca_engine/internal/domain/cycle"
	"rosca_engine/internal/domain/effects"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// undefinedFunction is the Postgres error code for a missing stored procedure.
const undefinedFunction = pq.ErrorCode("42883")

// PostgresReputation applies XnScore deductions through the reputation ledger procedure,
// which deduplicates on the idempotency key.
type PostgresReputation struct {
	db *sql.DB
}

func NewPostgresReputation(db *sql.DB) *PostgresReputation {
	return &PostgresReputation{db: db}
}

func (r *PostgresReputation) Deduct(ctx context.Context, d effects.Deduction) error {
	contextJSON, err := json.Marshal(d.Context)
	if err != nil {
		return fmt.Errorf("error encoding deduction context: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `SELECT apply_xnscore_adjustment($1, $2, $3, $4::jsonb, $5)`,
		d.UserID, -d.Points, d.Reason, contextJSON, d.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("error applying xnscore deduction for user %s: %w", d.UserID, err)
	}
	return nil
}

// PostgresReminders enqueues reminders into the delivery outbox.
type PostgresReminders struct {
	db *sql.DB
}

func NewPostgresReminders(db *sql.DB) *PostgresReminders {
	return &PostgresReminders{db: db}
}

func (r *PostgresReminders) Schedule(ctx context.Context, req effects.ReminderRequest) error {
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return fmt.Errorf("error encoding reminder payload: %w", err)
	}
	query := `INSERT INTO scheduled_reminders
                   (user_id, template, payload, amount_cents, due_date, send_at, idempotency_key)
               VALUES ($1, $2, $3, $4, $5, NOW(), $6)
               ON CONFLICT (idempotency_key) DO NOTHING`
	_, err = r.db.ExecContext(ctx, query, req.UserID, req.Template, payload, req.AmountCents, req.DueDate, req.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("error scheduling %s reminder for user %s: %w", req.Template, req.UserID, err)
	}
	return nil
}

// PostgresAnnouncer writes cycle lifecycle signals to the cycle_events outbox.
type PostgresAnnouncer struct {
	db *sql.DB
}

func NewPostgresAnnouncer(db *sql.DB) *PostgresAnnouncer {
	return &PostgresAnnouncer{db: db}
}

func (a *PostgresAnnouncer) Announce(ctx context.Context, ev effects.Announcement) error {
	query := `INSERT INTO cycle_events (kind, cycle_id, circle_id, recipient_id, amount_cents, idempotency_key)
               VALUES ($1, $2, $3, $4, $5, $6)
               ON CONFLICT (idempotency_key) DO NOTHING`
	_, err := a.db.ExecContext(ctx, query, ev.Kind, ev.CycleID, ev.CircleID, ev.RecipientID, ev.AmountCents, ev.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("error publishing %s for cycle %s: %w", ev.Kind, ev.CycleID, err)
	}
	return nil
}

// PostgresPayoutExecutor calls the settlement procedure. A database without the
// procedure installed reports cycle.ErrPayoutUnavailable.
type PostgresPayoutExecutor struct {
	db *sql.DB
}

func NewPostgresPayoutExecutor(db *sql.DB) *PostgresPayoutExecutor {
	return &PostgresPayoutExecutor{db: db}
}

func (p *PostgresPayoutExecutor) Execute(ctx context.Context, cycleID uuid.UUID, idempotencyKey string) error {
	_, err := p.db.ExecContext(ctx, `SELECT execute_cycle_payout($1, $2)`, cycleID, idempotencyKey)
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == undefinedFunction {
		return fmt.Errorf("%w: %s", cycle.ErrPayoutUnavailable, pqErr.Message)
	}
	return fmt.Errorf("error executing payout for cycle %s: %w", cycleID, err)
}

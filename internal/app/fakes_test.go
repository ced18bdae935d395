package app

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"rosca_engine/internal/domain/cycle"
	"rosca_engine/internal/domain/effects"
	"rosca_engine/internal/domain/obligation"
	"rosca_engine/internal/domain/runreport"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var errCycleMissing = errors.New("cycle not found")

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// memCycleRepo is an in-memory cycle store with compare-and-swap transitions.
type memCycleRepo struct {
	mu          sync.Mutex
	order       []uuid.UUID
	cycles      map[uuid.UUID]*cycle.Cycle
	listErr     error
	writeErr    map[uuid.UUID]error
	beforeWrite func(c *cycle.Cycle) // Simulates a concurrent writer between read and write
	writes      []cycle.TransitionUpdate
}

func newMemCycleRepo(cs ...*cycle.Cycle) *memCycleRepo {
	r := &memCycleRepo{cycles: map[uuid.UUID]*cycle.Cycle{}, writeErr: map[uuid.UUID]error{}}
	for _, c := range cs {
		r.order = append(r.order, c.ID)
		r.cycles[c.ID] = c
	}
	return r
}

func (r *memCycleRepo) ListCandidates(_ context.Context, statuses []cycle.Status) ([]*cycle.Cycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*cycle.Cycle
	for _, id := range r.order {
		c := r.cycles[id]
		for _, s := range statuses {
			if c.Status == s {
				cp := *c
				out = append(out, &cp)
				break
			}
		}
	}
	return out, nil
}

func (r *memCycleRepo) GetByID(_ context.Context, id uuid.UUID) (*cycle.Cycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cycles[id]
	if !ok {
		return nil, errCycleMissing
	}
	cp := *c
	return &cp, nil
}

func (r *memCycleRepo) Transition(_ context.Context, u cycle.TransitionUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writeErr[u.CycleID]; err != nil {
		return err
	}
	c, ok := r.cycles[u.CycleID]
	if !ok {
		return cycle.ErrStaleState
	}
	if r.beforeWrite != nil {
		r.beforeWrite(c)
	}
	if c.Status != u.From {
		return cycle.ErrStaleState
	}
	c.Status = u.To
	c.StatusChangedAt.Time, c.StatusChangedAt.Valid = u.ChangedAt, true
	if u.GracePeriodEnd.Valid && !c.GracePeriodEnd.Valid {
		c.GracePeriodEnd = u.GracePeriodEnd
	}
	r.writes = append(r.writes, u)
	return nil
}

func (r *memCycleRepo) status(id uuid.UUID) cycle.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cycles[id].Status
}

// memObligationRepo is an in-memory obligation store with a late-fee ledger.
type memObligationRepo struct {
	mu          sync.Mutex
	order       []uuid.UUID
	rows        map[uuid.UUID]*obligation.Obligation
	ledger      map[string]obligation.LateFeeEntry
	listErr     error
	writeErr    map[uuid.UUID]error
	beforeWrite func(o *obligation.Obligation)
}

func newMemObligationRepo(obligations ...*obligation.Obligation) *memObligationRepo {
	r := &memObligationRepo{
		rows:     map[uuid.UUID]*obligation.Obligation{},
		ledger:   map[string]obligation.LateFeeEntry{},
		writeErr: map[uuid.UUID]error{},
	}
	for _, o := range obligations {
		r.order = append(r.order, o.ID)
		r.rows[o.ID] = o
	}
	return r
}

func (r *memObligationRepo) ListOverdueCandidates(_ context.Context, today time.Time) ([]*obligation.Obligation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*obligation.Obligation
	for _, id := range r.order {
		o := r.rows[id]
		if !o.DueDate.Before(today) {
			continue
		}
		for _, s := range obligation.CandidateStatuses() {
			if o.Status == s {
				cp := *o
				out = append(out, &cp)
				break
			}
		}
	}
	return out, nil
}

func (r *memObligationRepo) Apply(_ context.Context, u obligation.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writeErr[u.ObligationID]; err != nil {
		return err
	}
	o := r.rows[u.ObligationID]
	if r.beforeWrite != nil {
		r.beforeWrite(o)
	}
	if o.Status != u.ExpectedStatus || o.TotalPaidCents != u.ExpectedPaidCents || o.LateFeeCents != u.ExpectedLateFeeCents {
		return obligation.ErrStaleState
	}
	o.Status = u.Status
	if u.GracePeriodEnd.Valid && !o.GracePeriodEnd.Valid {
		o.GracePeriodEnd = u.GracePeriodEnd
	}
	o.LateFeeCents = u.LateFeeCents
	o.TotalDueCents = u.TotalDueCents
	if u.LateFee != nil {
		if _, seen := r.ledger[u.LateFee.IdempotencyKey]; !seen {
			r.ledger[u.LateFee.IdempotencyKey] = *u.LateFee
		}
	}
	return nil
}

func (r *memObligationRepo) get(id uuid.UUID) obligation.Obligation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.rows[id]
}

// fakeReputation deduplicates on idempotency key like the real ledger does.
type fakeReputation struct {
	mu         sync.Mutex
	deductions map[string]effects.Deduction
	calls      int
	err        error
}

func newFakeReputation() *fakeReputation {
	return &fakeReputation{deductions: map[string]effects.Deduction{}}
}

func (f *fakeReputation) Deduct(_ context.Context, d effects.Deduction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.deductions[d.IdempotencyKey] = d
	return nil
}

type fakeReminders struct {
	mu       sync.Mutex
	requests []effects.ReminderRequest
	err      error
}

func (f *fakeReminders) Schedule(_ context.Context, r effects.ReminderRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.requests = append(f.requests, r)
	return nil
}

type fakeAnnouncer struct {
	mu            sync.Mutex
	announcements []effects.Announcement
	err           error
}

func (f *fakeAnnouncer) Announce(_ context.Context, a effects.Announcement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.announcements = append(f.announcements, a)
	return nil
}

func (f *fakeAnnouncer) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.announcements))
	for _, a := range f.announcements {
		out = append(out, a.Kind)
	}
	return out
}

type fakePayouts struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakePayouts) Execute(_ context.Context, cycleID uuid.UUID, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cycleID.String()+"/"+key)
	return f.err
}

type memRunRepo struct {
	mu      sync.Mutex
	reports []*runreport.Report
	err     error
}

func (r *memRunRepo) Insert(_ context.Context, rep *runreport.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.reports = append(r.reports, rep)
	return nil
}

func (r *memRunRepo) ListRecent(_ context.Context, limit int) ([]*runreport.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]*runreport.Report(nil), r.reports...)
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []*runreport.Report
	err    error
}

func (f *fakeAlerter) Alert(_ context.Context, r *runreport.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, r)
	return f.err
}

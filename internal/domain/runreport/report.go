// internal/domain/runreport/report.go
package runreport

import (
	"time"

	"github.com/google/uuid"
)

// Job names.
const (
	JobCycleProgression   = "cycle_progression"
	JobOverdueObligations = "overdue_obligations"
)

// Outcome is the per-candidate result of one engine pass.
type Outcome struct {
	ID       uuid.UUID `json:"id"`
	From     string    `json:"from"`
	To       string    `json:"to,omitempty"`
	Skipped  bool      `json:"skipped,omitempty"`
	Error    string    `json:"error,omitempty"`
	Warnings []string  `json:"warnings,omitempty"`
}

// Failed reports whether the candidate could not be processed.
func (o Outcome) Failed() bool {
	return o.Error != ""
}

// Report is one append-only record per engine invocation.
type Report struct {
	ID           uuid.UUID
	JobName      string
	Success      bool
	Checked      int
	Succeeded    int
	Failed       int
	Skipped      int
	ByTransition map[string]int
	StartedAt    time.Time
	Duration     time.Duration
	Error        string
	Summary      map[string]any
	Details      []Outcome
}

// TransitionKey formats the by-transition counter key.
func TransitionKey(from, to string) string {
	return from + "→" + to
}

// New starts a report for job at startedAt.
func New(job string, startedAt time.Time) *Report {
	return &Report{
		ID:           uuid.Must(uuid.NewV7()),
		JobName:      job,
		ByTransition: map[string]int{},
		StartedAt:    startedAt,
		Summary:      map[string]any{},
	}
}

// Add folds one outcome into the counters.
func (r *Report) Add(o Outcome) {
	r.Checked++
	r.Details = append(r.Details, o)
	switch {
	case o.Failed():
		r.Failed++
	case o.Skipped:
		r.Skipped++
	default:
		r.Succeeded++
		if o.To != "" && o.To != o.From {
			r.ByTransition[TransitionKey(o.From, o.To)]++
		}
	}
}

// Transitions is the total number of state changes recorded.
func (r *Report) Transitions() int {
	n := 0
	for _, c := range r.ByTransition {
		n += c
	}
	return n
}

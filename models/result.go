package models

import "time"

// PeriodOutcome is the terminal state of one (vehicle, period) job.
type PeriodOutcome struct {
	Success   bool
	Cancelled bool
	Message   string
	Records   []*CardRecord
}

// Report holds the overall result of one orchestration run.
type Report struct {
	Success    bool
	Cancelled  bool
	Message    string
	Records    []*CardRecord
	Errors     []string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the wall-clock length of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

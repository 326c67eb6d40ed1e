package model

import "time"

// SessionStatus is the terminal state of one crawl session.
type SessionStatus string

const (
	// StatusSucceeded means records were exported, delivered and the checkpoint cleared.
	StatusSucceeded SessionStatus = "succeeded"
	// StatusFailed means the session stopped early and left its checkpoint in place.
	StatusFailed SessionStatus = "failed"
)

// SessionOutcome summarizes a finished crawl session.
// It is written to the run ledger and rendered in run summaries.
type SessionOutcome struct {
	RunID     string        `json:"run_id"`
	TargetID  string        `json:"target_id"`
	TargetURL string        `json:"target_url"`
	ProxyID   string        `json:"proxy_id"`
	Status    SessionStatus `json:"status"`

	// FinalProxyID differs from ProxyID when the session exchanged a burned proxy.
	FinalProxyID string `json:"final_proxy_id"`

	// Exchanges counts proxy exchanges performed by the session.
	Exchanges int `json:"exchanges"`

	// Resumed is true when the session started from an existing checkpoint.
	Resumed bool `json:"resumed"`

	Links   int `json:"links"`
	Visited int `json:"visited"`
	Skipped int `json:"skipped"`
	Ignored int `json:"ignored"`
	Tires   int `json:"tires"`
	Disks   int `json:"disks"`

	OutputFiles []string `json:"output_files,omitempty"`
	Error       string   `json:"error,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns the wall time of the session.
func (o SessionOutcome) Duration() time.Duration {
	if o.FinishedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}

// Succeeded reports whether the session completed.
func (o SessionOutcome) Succeeded() bool {
	return o.Status == StatusSucceeded
}

// RunSummary aggregates every session of one orchestrator run.
type RunSummary struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Outcomes   []SessionOutcome `json:"outcomes"`
}

// NewRunSummary creates a summary for the given run.
func NewRunSummary(runID string, startedAt time.Time) *RunSummary {
	return &RunSummary{
		RunID:     runID,
		StartedAt: startedAt,
		Outcomes:  make([]SessionOutcome, 0),
	}
}

// Succeeded returns the number of completed sessions.
func (r *RunSummary) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			n++
		}
	}
	return n
}

// Failed returns the number of sessions that left a checkpoint behind.
func (r *RunSummary) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// TotalTires returns the tire records produced across all sessions.
func (r *RunSummary) TotalTires() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.Tires
	}
	return n
}

// TotalDisks returns the disk records produced across all sessions.
func (r *RunSummary) TotalDisks() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.Disks
	}
	return n
}

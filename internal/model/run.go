package model

import "time"

// JobKind identifies which report job a run belongs to.
type JobKind string

const (
	JobDaily  JobKind = "daily"
	JobWeekly JobKind = "weekly"
)

// RunStatus represents the current state of a report run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunResult holds the outcome counts of a completed run.
type RunResult struct {
	DealsFetched  int    `json:"deals_fetched"`
	DealsAlerted  int    `json:"deals_alerted"`
	OwnersEmailed int    `json:"owners_emailed"`
	EmailsFailed  int    `json:"emails_failed"`
	DryRun        bool   `json:"dry_run,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Run is one recorded execution of the daily or weekly job.
type Run struct {
	ID        string     `json:"id"`
	Kind      JobKind    `json:"kind"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// DeadLetter is an email that could not be delivered after retries. Kept in
// the store so a later run (or a human) can replay it.
type DeadLetter struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}

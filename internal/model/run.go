package model

import "time"

// Outcome is the terminal state of one (ticker, field) reconciliation.
type Outcome string

const (
	OutcomeApplied     Outcome = "applied"
	OutcomeNeedsReview Outcome = "needs_review"
	OutcomeUnchanged   Outcome = "unchanged"
	OutcomeError       Outcome = "error"
)

// Decision records what the orchestrator concluded for one (ticker, field)
// and why. Decisions are appended to the store for the audit sink.
type Decision struct {
	Ticker    string     `json:"ticker"`
	Field     string     `json:"field"`
	Outcome   Outcome    `json:"outcome"`
	OldValue  float64    `json:"old_value"`
	NewValue  float64    `json:"new_value,omitempty"`
	Claim     *FactClaim `json:"claim,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Flags     []string   `json:"flags,omitempty"`
	DryRun    bool       `json:"dry_run,omitempty"`
	DecidedAt time.Time  `json:"decided_at"`
}

// RunSummary aggregates outcome counts for one batch run. A batch always
// completes and reports totals even if every ticker failed.
type RunSummary struct {
	RunID       string        `json:"run_id"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Processed   int           `json:"processed"`
	Updated     int           `json:"updated"`
	NeedsReview int           `json:"needs_review"`
	Unchanged   int           `json:"unchanged"`
	Errors      int           `json:"errors"`
	ErrorList   []TickerError `json:"error_list,omitempty"`
}

// TickerError is one per-ticker failure captured at the pipeline boundary.
type TickerError struct {
	Ticker string `json:"ticker"`
	Err    string `json:"error"`
}

// Record tallies a decision into the summary counts.
func (s *RunSummary) Record(d Decision) {
	s.Processed++
	switch d.Outcome {
	case OutcomeApplied:
		s.Updated++
	case OutcomeNeedsReview:
		s.NeedsReview++
	case OutcomeUnchanged:
		s.Unchanged++
	case OutcomeError:
		s.Errors++
	}
}

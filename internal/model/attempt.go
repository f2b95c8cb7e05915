package model

import "time"

// ProcessingAttempt records one full pipeline invocation for a target.
// Attempts are append-only: each run adds one immutable entry to the
// target's history and summaries are always derived by folding that
// history.
type ProcessingAttempt struct {
	ID               string       `json:"id"`
	TargetKey        string       `json:"target_key"`
	AttemptedAt      time.Time    `json:"attempted_at"`
	PassResults      []PassResult `json:"pass_results"`
	SuccessfulPasses []int        `json:"successful_passes"`
	FailedPasses     []int        `json:"failed_passes"`
	NextRetryPasses  []int        `json:"next_retry_passes"`
}

// AttemptStatus is the folded view of a target's attempt history.
// SuccessfulPasses accumulates monotonically: a pass that ever succeeded
// stays succeeded. FailedPasses reflects only the most recent attempt's
// failures not since superseded by a success.
type AttemptStatus struct {
	TargetKey        string    `json:"target_key"`
	TotalAttempts    int       `json:"total_attempts"`
	LastAttemptAt    time.Time `json:"last_attempt_at"`
	SuccessfulPasses []int     `json:"successful_passes"`
	FailedPasses     []int     `json:"failed_passes"`
	NextRetryPasses  []int     `json:"next_retry_passes"`
}

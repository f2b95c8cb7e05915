package model

import "time"

// Well-known pass failure reasons. All are pass-local: the coordinator
// records them and moves on, it never aborts the run.
const (
	ErrRateLimited       = "rate_limited"
	ErrTimeout           = "timeout"
	ErrSourceUnavailable = "source_unavailable"
	ErrNoDataFound       = "no_data_found"
)

// PassSpec is the static descriptor of one data-collection stage. The ID
// declares execution order: passes always run in ascending ID order so that
// DependsOnFields can refer to fields produced by earlier passes.
type PassSpec struct {
	ID             int           `json:"id" yaml:"id"`
	Name           string        `json:"name" yaml:"name"`
	SourceID       string        `json:"source_id" yaml:"source_id"`
	DependsOnFields []FieldKey   `json:"depends_on_fields,omitempty" yaml:"depends_on_fields,omitempty"`
	Timeout        time.Duration `json:"timeout" yaml:"timeout"`
}

// PassResult is the runtime outcome of one pass execution against one
// target. Skipped marks passes the early-stop policy never attempted; a
// skipped pass is not a failed pass and does not count against retry
// bookkeeping.
type PassResult struct {
	PassID          int              `json:"pass_id"`
	SourceID        string           `json:"source_id"`
	Success         bool             `json:"success"`
	Skipped         bool             `json:"skipped,omitempty"`
	FieldsExtracted map[FieldKey]any `json:"fields_extracted,omitempty"`
	Errors          []string         `json:"errors,omitempty"`
	DurationMs      int64            `json:"duration_ms"`
}

// Package attempt owns the durable retry bookkeeping for the pipeline:
// an append-only log of processing attempts per target plus the persisted
// prospect records. Status is always derived by folding the full history,
// never by mutating a summary in place, so a store can be rebuilt after a
// crash from the persisted log alone.
package attempt

import (
	"context"

	"github.com/sells-group/prospector/internal/model"
)

// RecordFilter specifies criteria for listing prospect records.
type RecordFilter struct {
	Stage    model.Stage `json:"stage,omitempty"`
	MinScore int         `json:"min_score,omitempty"`
	Limit    int         `json:"limit,omitempty"`
	Offset   int         `json:"offset,omitempty"`
}

// Store defines the persistence interface for attempts and records.
type Store interface {
	// Attempt log (append-only).
	RecordAttempt(ctx context.Context, a model.ProcessingAttempt) error
	History(ctx context.Context, targetKey string) ([]model.ProcessingAttempt, error)
	// Status folds the target's full history against the currently known
	// pass ids. Returns nil when the target has never been attempted.
	Status(ctx context.Context, targetKey string, knownPassIDs []int) (*model.AttemptStatus, error)

	// Prospect records (created once, updated in place, never deleted).
	SaveRecord(ctx context.Context, rec *model.ProspectRecord) error
	GetRecord(ctx context.Context, targetKey string) (*model.ProspectRecord, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.ProspectRecord, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}

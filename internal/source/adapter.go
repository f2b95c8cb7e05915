// Package source defines the adapter boundary between the fusion pipeline
// and external data sources. The pipeline only depends on the Adapter
// shape; what an adapter actually talks to (places API, search API, local
// registry dataset) is its own business.
package source

import (
	"context"
	"sync"

	"github.com/sells-group/prospector/internal/model"
)

// Result is what an adapter hands back to the coordinator. Fields carries
// whatever the source could extract; Errors explains a partial or total
// miss. Success with an empty field map is reported by the coordinator as
// no_data_found.
type Result struct {
	Success bool                   `json:"success"`
	Fields  map[model.FieldKey]any `json:"fields,omitempty"`
	Errors  []string               `json:"errors,omitempty"`
}

// Adapter is one black-box data source. Lookup receives the target plus
// the aggregate resolved so far, so a source can key off fields produced
// by earlier passes (a reviews source needs the place id, for example).
// Adapters are idempotent read operations: the coordinator abandons them
// on timeout without cancellation.
type Adapter interface {
	// SourceID matches the pass spec's source id and the budget tracker
	// bucket.
	SourceID() string
	Lookup(ctx context.Context, target model.Target, aggregate *model.ProspectRecord) (*Result, error)
}

// Registry maps source ids to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter, keyed by its source id.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.SourceID()] = a
}

// Get returns the adapter for a source id, or nil.
func (r *Registry) Get(sourceID string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[sourceID]
}

// List returns all registered source ids.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	return ids
}

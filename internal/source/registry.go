package source

import (
	"context"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/regdata"
)

// RegistryAdapter resolves the target against the locally synced state
// registry dataset. Offline: it never consumes network budget beyond the
// pipeline's own bookkeeping.
type RegistryAdapter struct {
	lookup regdata.Lookup
}

// NewRegistryAdapter creates the registry lookup adapter.
func NewRegistryAdapter(lookup regdata.Lookup) *RegistryAdapter {
	return &RegistryAdapter{lookup: lookup}
}

func (a *RegistryAdapter) SourceID() string { return "state_registry" }

func (a *RegistryAdapter) Lookup(ctx context.Context, target model.Target, aggregate *model.ProspectRecord) (*Result, error) {
	state := target.State
	if state == "" {
		state, _ = aggregate.FieldValue(model.FieldState).(string)
	}

	e, err := a.lookup.Find(ctx, target.Name, state)
	if err != nil {
		return &Result{Errors: []string{model.ErrSourceUnavailable, err.Error()}}, nil
	}
	if e == nil {
		return &Result{Errors: []string{model.ErrNoDataFound}}, nil
	}

	fields := map[model.FieldKey]any{
		model.FieldRegistryStatus: e.Status,
	}
	if e.EntityType != "" {
		fields[model.FieldEntityType] = e.EntityType
	}
	if e.IncorporationYear > 0 {
		fields[model.FieldIncorporationYear] = e.IncorporationYear
	}
	return &Result{Success: true, Fields: fields}, nil
}

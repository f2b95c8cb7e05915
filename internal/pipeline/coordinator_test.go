package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/attempt"
	"github.com/sells-group/prospector/internal/budget"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/source"
)

type stubAdapter struct {
	id     string
	fields map[model.FieldKey]any
	errs   []string
	err    error
	delay  time.Duration
	calls  atomic.Int32
}

func (s *stubAdapter) SourceID() string { return s.id }

func (s *stubAdapter) Lookup(_ context.Context, _ model.Target, _ *model.ProspectRecord) (*source.Result, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	if len(s.errs) > 0 {
		return &source.Result{Errors: s.errs}, nil
	}
	return &source.Result{Success: true, Fields: s.fields}, nil
}

type fixedScorer struct{ n int }

func (f fixedScorer) Score(*model.ProspectRecord) int { return f.n }

func testTarget() model.Target {
	return model.Target{Name: "Acme Plumbing", City: "Tulsa", State: "OK"}
}

// twoPassSpecs returns a minimal sequence: pass 1 has no dependencies,
// pass 2 depends on the website field pass 1 produces.
func twoPassSpecs() []model.PassSpec {
	return []model.PassSpec{
		{ID: 1, Name: "lookup", SourceID: "src_a", Timeout: time.Second},
		{ID: 2, Name: "verify", SourceID: "src_b", DependsOnFields: []model.FieldKey{model.FieldWebsite}, Timeout: time.Second},
	}
}

func newTestCoordinator(t *testing.T, specs []model.PassSpec, adapters []source.Adapter, limits map[string]budget.SourceLimit, opts ...CoordinatorOption) (*Coordinator, attempt.Store) {
	t.Helper()
	reg := source.NewRegistry()
	for _, a := range adapters {
		reg.Register(a)
	}
	store := attempt.NewMemory()
	opts = append([]CoordinatorOption{WithCompletenessThreshold(0)}, opts...)
	return NewCoordinator(specs, reg, budget.NewTracker(limits), store, opts...), store
}

func TestRun_FirstRunExecutesAllPasses(t *testing.T) {
	a := &stubAdapter{id: "src_a", fields: map[model.FieldKey]any{
		model.FieldName:    "Acme Plumbing",
		model.FieldWebsite: "https://acme.example.com",
	}}
	b := &stubAdapter{id: "src_b", fields: map[model.FieldKey]any{
		model.FieldPhone: "918-555-0100",
	}}
	coord, _ := newTestCoordinator(t, twoPassSpecs(), []source.Adapter{a, b}, nil)

	att, rec, err := coord.Run(context.Background(), testTarget(), Options{})
	require.NoError(t, err)
	require.NotNil(t, att)
	require.NotNil(t, rec)

	assert.Equal(t, []int{1, 2}, att.SuccessfulPasses)
	assert.Empty(t, att.FailedPasses)
	assert.Empty(t, att.NextRetryPasses)
	assert.Equal(t, "https://acme.example.com", rec.FieldValue(model.FieldWebsite))
	assert.Equal(t, "918-555-0100", rec.FieldValue(model.FieldPhone))
	assert.Equal(t, model.StageEnriched, rec.Stage)
	assert.Greater(t, rec.OverallConfidence, 0.0)
}

func TestRun_MissingDependencyFailsWithoutBudgetSpend(t *testing.T) {
	// Pass 1 returns no website, so pass 2's dependency gate trips.
	a := &stubAdapter{id: "src_a", fields: map[model.FieldKey]any{model.FieldName: "Acme"}}
	b := &stubAdapter{id: "src_b", fields: map[model.FieldKey]any{model.FieldPhone: "918-555-0100"}}
	limits := map[string]budget.SourceLimit{
		"src_b": {MaxCallsPerWindow: 5, WindowDuration: time.Hour},
	}
	coord, _ := newTestCoordinator(t, twoPassSpecs(), []source.Adapter{a, b}, limits)

	att, _, err := coord.Run(context.Background(), testTarget(), Options{})
	require.NoError(t, err)

	require.Len(t, att.PassResults, 2)
	second := att.PassResults[1]
	assert.False(t, second.Success)
	assert.Contains(t, second.Errors, "missing dependency: website")
	assert.Equal(t, int32(0), b.calls.Load(), "gated pass must not invoke its adapter")
	assert.Equal(t, []int{2}, att.FailedPasses)
	assert.Equal(t, []int{2}, att.NextRetryPasses)
}

func TestRun_MonotonicSuccessSkipsSucceededPass(t *testing.T) {
	a := &stubAdapter{id: "src_a", fields: map[model.FieldKey]any{
		model.FieldName:    "Acme",
		model.FieldWebsite: "https://acme.example.com",
	}}
	b := &stubAdapter{id: "src_b", errs: []string{model.ErrSourceUnavailable}}
	coord, _ := newTestCoordinator(t, twoPassSpecs(), []source.Adapter{a, b}, nil)

	ctx := context.Background()
	att1, _, err := coord.Run(ctx, testTarget(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, att1.SuccessfulPasses)
	assert.Equal(t, []int{2}, att1.NextRetryPasses)

	// Second run: only pass 2 should execute. Pass 1's adapter now
	// breaking must not matter because it is never invoked again.
	a.err = context.DeadlineExceeded
	b.errs = nil
	b.fields = map[model.FieldKey]any{model.FieldPhone: "918-555-0100"}

	att2, _, err := coord.Run(ctx, testTarget(), Options{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), a.calls.Load(), "succeeded pass must not re-run")
	assert.Equal(t, []int{2}, att2.SuccessfulPasses)
	assert.Empty(t, att2.NextRetryPasses)
}

func TestRun_ForceReRunsEverything(t *testing.T) {
	a := &stubAdapter{id: "src_a", fields: map[model.FieldKey]any{
		model.FieldName:    "Acme",
		model.FieldWebsite: "https://acme.example.com",
	}}
	b := &stubAdapter{id: "src_b", fields: map[model.FieldKey]any{model.FieldPhone: "918-555-0100"}}
	coord, _ := newTestCoordinator(t, twoPassSpecs(), []source.Adapter{a, b}, nil)

	ctx := context.Background()
	_, _, err := coord.Run(ctx, testTarget(), Options{})
	require.NoError(t, err)
	_, _, err = coord.Run(ctx, testTarget(), Options{Force: true})
	require.NoError(t, err)

	assert.Equal(t, int32(2), a.calls.Load())
	assert.Equal(t, int32(2), b.calls.Load())
}

func TestRun_OnlyPassesUnknownIDIsContractViolation(t *testing.T) {
	a := &stubAdapter{id: "src_a", fields: map[model.FieldKey]any{model.FieldName: "Acme"}}
	coord, _ := newTestCoordinator(t, twoPassSpecs(), []source.Adapter{a}, nil)

	_, _, err := coord.Run(context.Background(), testTarget(), Options{OnlyPasses: []int{1, 99}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown pass id 99")
	assert.Equal(t, int32(0), a.calls.Load())
}

func TestRun_RateLimitedPassGoesToRetrySet(t *testing.T) {
	a := &stubAdapter{id: "src_a", fields: map[model.FieldKey]any{model.FieldName: "Acme"}}
	limits := map[string]budget.SourceLimit{
		"src_a": {MaxCallsPerWindow: 0, WindowDuration: time.Hour},
	}
	specs := []model.PassSpec{{ID: 1, Name: "lookup", SourceID: "src_a", Timeout: time.Second}}
	coord, _ := newTestCoordinator(t, specs, []source.Adapter{a}, limits)

	att, _, err := coord.Run(context.Background(), testTarget(), Options{})
	require.NoError(t, err)
	require.Len(t, att.PassResults, 1)
	assert.Equal(t, []string{model.ErrRateLimited}, att.PassResults[0].Errors)
	assert.Equal(t, []int{1}, att.NextRetryPasses)
	assert.Equal(t, int32(0), a.calls.Load())
}

func TestRun_ConcurrentPipelinesShareOneBudget(t *testing.T) {
	specs := []model.PassSpec{{ID: 1, Name: "lookup", SourceID: "src_a", Timeout: time.Second}}
	a := &stubAdapter{id: "src_a", fields: map[model.FieldKey]any{model.FieldName: "Acme"}}
	limits := map[string]budget.SourceLimit{
		"src_a": {MaxCallsPerWindow: 1, WindowDuration: time.Hour},
	}
	coord, _ := newTestCoordinator(t, specs, []source.Adapter{a}, limits)

	targets := []model.Target{
		{Name: "Acme Plumbing", City: "Tulsa", State: "OK"},
		{Name: "Best Roofing", City: "Tulsa", State: "OK"},
	}
	attempts := make([]*model.ProcessingAttempt, len(targets))
	var wg sync.WaitGroup
	for i, tgt := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			att, _, err := coord.Run(context.Background(), tgt, Options{})
			assert.NoError(t, err)
			attempts[i] = att
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), a.calls.Load(), "exactly one pipeline may spend the budget")
	succeeded, rateLimited := 0, 0
	for _, att := range attempts {
		require.Len(t, att.PassResults, 1)
		if att.PassResults[0].Success {
			succeeded++
		} else if assert.Contains(t, att.PassResults[0].Errors, model.ErrRateLimited) {
			rateLimited++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rateLimited)
}

func TestRun_TimeoutAbandonsAdapter(t *testing.T) {
	a := &stubAdapter{
		id:    "src_a",
		delay: 200 * time.Millisecond,
		fields: map[model.FieldKey]any{
			model.FieldName: "Acme",
		},
	}
	specs := []model.PassSpec{{ID: 1, Name: "lookup", SourceID: "src_a", Timeout: 20 * time.Millisecond}}
	coord, _ := newTestCoordinator(t, specs, []source.Adapter{a}, nil)

	att, rec, err := coord.Run(context.Background(), testTarget(), Options{})
	require.NoError(t, err)
	require.Len(t, att.PassResults, 1)
	assert.False(t, att.PassResults[0].Success)
	assert.Equal(t, []string{model.ErrTimeout}, att.PassResults[0].Errors)
	assert.Empty(t, rec.Fields)
}

func TestRun_EarlyStopSkipsRemainingPasses(t *testing.T) {
	// One pass populates every required schema field; with a low
	// threshold the second pass must be skipped, not failed.
	a := &stubAdapter{id: "src_a", fields: map[model.FieldKey]any{
		model.FieldName:    "Acme",
		model.FieldWebsite: "https://acme.example.com",
		model.FieldPhone:   "918-555-0100",
		model.FieldAddress: "1 Main St",
		model.FieldRating:  4.5,
	}}
	b := &stubAdapter{id: "src_b", fields: map[model.FieldKey]any{model.FieldPhone: "918-555-0199"}}
	coord, store := newTestCoordinator(t, twoPassSpecs(), []source.Adapter{a, b}, nil,
		WithCompletenessThreshold(0.8))

	att, _, err := coord.Run(context.Background(), testTarget(), Options{})
	require.NoError(t, err)
	require.Len(t, att.PassResults, 2)
	assert.True(t, att.PassResults[1].Skipped)
	assert.False(t, att.PassResults[1].Success)
	assert.Equal(t, int32(0), b.calls.Load())
	assert.Empty(t, att.FailedPasses)

	// Skipped passes are not charged to the retry set; they come back
	// only through a forced full run.
	status, err := store.Status(context.Background(), testTarget().Key(), coord.PassIDs())
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Empty(t, status.NextRetryPasses)
}

func TestRun_AllPassesFailStillYieldsAttemptAndRecord(t *testing.T) {
	a := &stubAdapter{id: "src_a", errs: []string{model.ErrSourceUnavailable}}
	specs := []model.PassSpec{{ID: 1, Name: "lookup", SourceID: "src_a", Timeout: time.Second}}
	coord, store := newTestCoordinator(t, specs, []source.Adapter{a}, nil)

	att, rec, err := coord.Run(context.Background(), testTarget(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, att.FailedPasses)
	assert.Equal(t, []int{1}, att.NextRetryPasses)
	assert.Equal(t, model.StageNew, rec.Stage)
	assert.Zero(t, rec.OverallConfidence)

	saved, err := store.GetRecord(context.Background(), testTarget().Key())
	require.NoError(t, err)
	require.NotNil(t, saved)
}

func TestRun_LaterPassSeesFusedValuesFromEarlierPass(t *testing.T) {
	a := &stubAdapter{id: "src_a", fields: map[model.FieldKey]any{
		model.FieldWebsite: "https://acme.example.com",
	}}
	var seenWebsite any
	probe := &probeAdapter{id: "src_b", onLookup: func(rec *model.ProspectRecord) {
		seenWebsite = rec.FieldValue(model.FieldWebsite)
	}}
	coord, _ := newTestCoordinator(t, twoPassSpecs(), []source.Adapter{a, probe}, nil)

	_, _, err := coord.Run(context.Background(), testTarget(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "https://acme.example.com", seenWebsite)
}

func TestRun_QualifiedStageWhenScoreMeetsThreshold(t *testing.T) {
	a := &stubAdapter{id: "src_a", fields: map[model.FieldKey]any{
		model.FieldName:    "Acme",
		model.FieldWebsite: "https://acme.example.com",
	}}
	specs := []model.PassSpec{{ID: 1, Name: "lookup", SourceID: "src_a", Timeout: time.Second}}
	coord, _ := newTestCoordinator(t, specs, []source.Adapter{a}, nil,
		WithScorer(fixedScorer{n: 82}), WithQualifyThreshold(70))

	_, rec, err := coord.Run(context.Background(), testTarget(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 82, rec.QualificationScore)
	assert.Equal(t, model.StageQualified, rec.Stage)
}

func TestRun_ConflictedRequiredFieldRoutesToReview(t *testing.T) {
	a := &stubAdapter{id: "src_a", fields: map[model.FieldKey]any{
		model.FieldPhone: "918-555-0100",
	}}
	b := &stubAdapter{id: "src_b", fields: map[model.FieldKey]any{
		model.FieldPhone: "918-555-0999",
	}}
	specs := []model.PassSpec{
		{ID: 1, Name: "lookup", SourceID: "src_a", Timeout: time.Second},
		{ID: 2, Name: "verify", SourceID: "src_b", Timeout: time.Second},
	}
	coord, _ := newTestCoordinator(t, specs, []source.Adapter{a, b}, nil,
		WithScorer(fixedScorer{n: 99}))

	_, rec, err := coord.Run(context.Background(), testTarget(), Options{})
	require.NoError(t, err)
	require.True(t, rec.Fields[model.FieldPhone].Conflicted)
	assert.Equal(t, model.StageReview, rec.Stage)
}

func TestRun_UnknownAdapterFieldIsQuarantined(t *testing.T) {
	a := &stubAdapter{id: "src_a", fields: map[model.FieldKey]any{
		model.FieldName:               "Acme",
		model.FieldKey("bogus_field"): "junk",
	}}
	specs := []model.PassSpec{{ID: 1, Name: "lookup", SourceID: "src_a", Timeout: time.Second}}
	coord, _ := newTestCoordinator(t, specs, []source.Adapter{a}, nil)

	att, rec, err := coord.Run(context.Background(), testTarget(), Options{})
	require.NoError(t, err)
	assert.True(t, att.PassResults[0].Success)
	assert.NotContains(t, att.PassResults[0].FieldsExtracted, model.FieldKey("bogus_field"))
	assert.Contains(t, att.PassResults[0].Errors, "unknown field: bogus_field")
	assert.False(t, rec.HasField("bogus_field"))
	assert.Equal(t, "Acme", rec.FieldValue(model.FieldName))
}

type probeAdapter struct {
	id       string
	onLookup func(rec *model.ProspectRecord)
}

func (p *probeAdapter) SourceID() string { return p.id }

func (p *probeAdapter) Lookup(_ context.Context, _ model.Target, rec *model.ProspectRecord) (*source.Result, error) {
	p.onLookup(rec)
	return &source.Result{Success: true, Fields: map[model.FieldKey]any{model.FieldPhone: "918-555-0100"}}, nil
}

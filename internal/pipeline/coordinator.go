// Package pipeline runs the multi-pass research sequence for a target:
// pass selection from retry history, dependency gating, budget checks,
// adapter invocation with timeout abandonment, and immediate confidence
// fusion after every pass.
package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/attempt"
	"github.com/sells-group/prospector/internal/budget"
	"github.com/sells-group/prospector/internal/confidence"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/source"
)

// Scorer computes a qualification score for a resolved record. The
// coordinator only needs the number; the rubric lives elsewhere.
type Scorer interface {
	Score(rec *model.ProspectRecord) int
}

// Options controls one pipeline run.
type Options struct {
	// Force re-runs every pass, ignoring accumulated successes.
	Force bool
	// OnlyPasses restricts the run to exactly these pass ids. An unknown
	// id is a contract violation and fails the run before any pass
	// executes.
	OnlyPasses []int
}

// Coordinator drives the pass sequence for one target at a time. A single
// Coordinator is shared by concurrent pipelines; the budget tracker is the
// only shared mutable state and it synchronizes internally.
type Coordinator struct {
	specs     []model.PassSpec
	sources   *source.Registry
	budget    *budget.Tracker
	store     attempt.Store
	schema    *model.FieldSchema
	weights   map[string]float64
	scorer    Scorer
	stopAt    float64
	qualifyAt int
	now       func() time.Time
	newID     func() string
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithSchema overrides the default field schema.
func WithSchema(s *model.FieldSchema) CoordinatorOption {
	return func(c *Coordinator) { c.schema = s }
}

// WithSourceWeights overrides the base confidence per source id.
func WithSourceWeights(w map[string]float64) CoordinatorOption {
	return func(c *Coordinator) { c.weights = w }
}

// WithScorer sets the qualification scorer. Without one, records keep a
// zero score and never reach the qualified stage.
func WithScorer(s Scorer) CoordinatorOption {
	return func(c *Coordinator) { c.scorer = s }
}

// WithCompletenessThreshold sets the early-stop threshold in (0,1].
// Values outside that range disable early stopping.
func WithCompletenessThreshold(t float64) CoordinatorOption {
	return func(c *Coordinator) { c.stopAt = t }
}

// WithQualifyThreshold sets the minimum score for the qualified stage.
func WithQualifyThreshold(n int) CoordinatorOption {
	return func(c *Coordinator) { c.qualifyAt = n }
}

// WithClock fixes the clock for testing.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator wires a coordinator over its collaborators. Specs are
// copied and kept in ascending id order.
func NewCoordinator(specs []model.PassSpec, sources *source.Registry, tracker *budget.Tracker, store attempt.Store, opts ...CoordinatorOption) *Coordinator {
	ordered := make([]model.PassSpec, len(specs))
	copy(ordered, specs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	c := &Coordinator{
		specs:     ordered,
		sources:   sources,
		budget:    tracker,
		store:     store,
		schema:    model.DefaultFieldSchema(),
		weights:   DefaultSourceWeights(),
		stopAt:    0.8,
		qualifyAt: 70,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PassIDs returns the known pass ids in ascending order.
func (c *Coordinator) PassIDs() []int {
	ids := make([]int, len(c.specs))
	for i, s := range c.specs {
		ids[i] = s.ID
	}
	return ids
}

// Run executes one pipeline invocation for target and persists both the
// attempt and the updated record. Pass failures are recoverable and never
// abort the run; Run itself errors only on a contract violation (an
// unknown pass id in OnlyPasses) or a store failure.
func (c *Coordinator) Run(ctx context.Context, target model.Target, opts Options) (*model.ProcessingAttempt, *model.ProspectRecord, error) {
	key := target.Key()

	working, err := c.workingSet(ctx, key, opts)
	if err != nil {
		return nil, nil, err
	}

	rec, err := c.store.GetRecord(ctx, key)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "pipeline: load record %s", key)
	}
	startedAt := c.now()
	if rec == nil {
		rec = &model.ProspectRecord{
			Target:    target,
			Stage:     model.StageNew,
			CreatedAt: startedAt,
		}
	}

	entries, err := c.historicalEntries(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	resolved := confidence.Resolve(entries)

	results := make([]model.PassResult, 0, len(c.specs))
	earlyStopped := false
	for _, spec := range c.specs {
		if _, run := working[spec.ID]; !run {
			continue
		}
		if earlyStopped {
			results = append(results, model.PassResult{
				PassID:   spec.ID,
				SourceID: spec.SourceID,
				Skipped:  true,
			})
			continue
		}

		pr := c.runPass(ctx, spec, target, rec, resolved, &entries)
		results = append(results, pr)

		if pr.Success {
			resolved = confidence.Resolve(entries)
			rec.Fields = resolved
			if c.completeness(resolved) >= c.stopAt && c.stopAt > 0 && c.stopAt <= 1 {
				earlyStopped = true
			}
		}
	}

	att := c.buildAttempt(key, startedAt, results)
	if err := c.store.RecordAttempt(ctx, *att); err != nil {
		return nil, nil, eris.Wrapf(err, "pipeline: record attempt for %s", key)
	}

	if status, err := c.store.Status(ctx, key, c.PassIDs()); err == nil && status != nil {
		att.NextRetryPasses = status.NextRetryPasses
	}

	c.finalize(rec, resolved)
	if err := c.store.SaveRecord(ctx, rec); err != nil {
		return nil, nil, eris.Wrapf(err, "pipeline: save record %s", key)
	}

	zap.L().Info("pipeline run complete",
		zap.String("target", key),
		zap.Ints("succeeded", att.SuccessfulPasses),
		zap.Ints("failed", att.FailedPasses),
		zap.Ints("next_retry", att.NextRetryPasses),
		zap.Float64("overall_confidence", rec.OverallConfidence))

	return att, rec, nil
}

// workingSet decides which pass ids this run executes.
func (c *Coordinator) workingSet(ctx context.Context, key string, opts Options) (map[int]struct{}, error) {
	known := make(map[int]struct{}, len(c.specs))
	for _, s := range c.specs {
		known[s.ID] = struct{}{}
	}

	set := make(map[int]struct{})
	switch {
	case len(opts.OnlyPasses) > 0:
		for _, id := range opts.OnlyPasses {
			if _, ok := known[id]; !ok {
				return nil, eris.Errorf("pipeline: unknown pass id %d", id)
			}
			set[id] = struct{}{}
		}
	case opts.Force:
		set = known
	default:
		status, err := c.store.Status(ctx, key, c.PassIDs())
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: load status for %s", key)
		}
		if status == nil {
			set = known
		} else {
			for _, id := range status.NextRetryPasses {
				set[id] = struct{}{}
			}
		}
	}
	return set, nil
}

// historicalEntries reconstructs the full observation set from the
// target's attempt history so fusion always runs over every value ever
// extracted, not just this run's.
func (c *Coordinator) historicalEntries(ctx context.Context, key string) ([]model.ConfidenceEntry, error) {
	history, err := c.store.History(ctx, key)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load history for %s", key)
	}

	var entries []model.ConfidenceEntry
	for _, a := range history {
		for _, pr := range a.PassResults {
			if !pr.Success {
				continue
			}
			for field, value := range pr.FieldsExtracted {
				entries = append(entries, model.ConfidenceEntry{
					Field:      field,
					Value:      value,
					Confidence: c.sourceWeight(pr.SourceID),
					Source:     pr.SourceID,
					PassID:     pr.PassID,
					ObservedAt: a.AttemptedAt,
				})
			}
		}
	}
	return entries, nil
}

// runPass executes one pass end to end: dependency gate, budget gate,
// adapter call with timeout, field extraction. New observations are
// appended to entries for the caller to re-fuse.
func (c *Coordinator) runPass(ctx context.Context, spec model.PassSpec, target model.Target, rec *model.ProspectRecord, resolved map[model.FieldKey]model.ResolvedField, entries *[]model.ConfidenceEntry) model.PassResult {
	pr := model.PassResult{PassID: spec.ID, SourceID: spec.SourceID}

	for _, dep := range spec.DependsOnFields {
		if _, ok := resolved[dep]; !ok {
			pr.Errors = append(pr.Errors, "missing dependency: "+string(dep))
		}
	}
	if len(pr.Errors) > 0 {
		return pr
	}

	if !c.budget.TryAcquire(spec.SourceID) {
		pr.Errors = []string{model.ErrRateLimited}
		return pr
	}

	adapter := c.sources.Get(spec.SourceID)
	if adapter == nil {
		zap.L().Warn("no adapter registered for source", zap.String("source", spec.SourceID))
		pr.Errors = []string{model.ErrSourceUnavailable}
		return pr
	}

	// Re-resolve into the record view the adapter sees so it can key off
	// fields produced by earlier passes in this same run.
	rec.Fields = resolved

	start := c.now()
	res, timedOut, err := c.invoke(ctx, adapter, spec, target, rec)
	pr.DurationMs = time.Since(start).Milliseconds()

	switch {
	case timedOut:
		pr.Errors = []string{model.ErrTimeout}
	case err != nil:
		pr.Errors = []string{model.ErrSourceUnavailable, err.Error()}
	case res == nil || !res.Success:
		if res != nil && len(res.Errors) > 0 {
			pr.Errors = res.Errors
		} else {
			pr.Errors = []string{model.ErrNoDataFound}
		}
	case len(res.Fields) == 0:
		pr.Errors = []string{model.ErrNoDataFound}
	default:
		pr.Success = true
		pr.FieldsExtracted = make(map[model.FieldKey]any, len(res.Fields))
		observedAt := c.now()
		for field, value := range res.Fields {
			if !c.schema.Known(field) {
				zap.L().Warn("quarantined unknown field from adapter",
					zap.String("source", spec.SourceID),
					zap.String("field", string(field)))
				pr.Errors = append(pr.Errors, "unknown field: "+string(field))
				continue
			}
			pr.FieldsExtracted[field] = value
			*entries = append(*entries, model.ConfidenceEntry{
				Field:      field,
				Value:      value,
				Confidence: c.sourceWeight(spec.SourceID),
				Source:     spec.SourceID,
				PassID:     spec.ID,
				ObservedAt: observedAt,
			})
		}
		if len(pr.FieldsExtracted) == 0 {
			pr.Success = false
			pr.FieldsExtracted = nil
			pr.Errors = append(pr.Errors, model.ErrNoDataFound)
		}
	}
	return pr
}

// invoke calls the adapter bounded by the pass timeout. On timeout the
// in-flight call is abandoned, not cancelled; adapters are idempotent
// reads so the stray goroutine is harmless.
func (c *Coordinator) invoke(ctx context.Context, adapter source.Adapter, spec model.PassSpec, target model.Target, rec *model.ProspectRecord) (res *source.Result, timedOut bool, err error) {
	type outcome struct {
		res *source.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		r, e := adapter.Lookup(ctx, target, rec)
		done <- outcome{r, e}
	}()

	timer := time.NewTimer(spec.Timeout)
	defer timer.Stop()
	select {
	case out := <-done:
		return out.res, false, out.err
	case <-timer.C:
		return nil, true, nil
	case <-ctx.Done():
		return nil, true, nil
	}
}

func (c *Coordinator) buildAttempt(key string, at time.Time, results []model.PassResult) *model.ProcessingAttempt {
	att := &model.ProcessingAttempt{
		ID:          c.newID(),
		TargetKey:   key,
		AttemptedAt: at,
		PassResults: results,
	}
	for _, pr := range results {
		switch {
		case pr.Success:
			att.SuccessfulPasses = append(att.SuccessfulPasses, pr.PassID)
		case pr.Skipped:
		default:
			att.FailedPasses = append(att.FailedPasses, pr.PassID)
		}
	}
	// Provisional retry set from this attempt alone; Run replaces it with
	// the history-folded set once the attempt is persisted.
	att.NextRetryPasses = append([]int(nil), att.FailedPasses...)
	return att
}

// finalize recomputes the record's derived state after fusion.
func (c *Coordinator) finalize(rec *model.ProspectRecord, resolved map[model.FieldKey]model.ResolvedField) {
	rec.Fields = resolved
	rec.OverallConfidence = confidence.Overall(resolved)
	if c.scorer != nil {
		rec.QualificationScore = c.scorer.Score(rec)
	}
	rec.Stage = c.stage(rec)
	rec.UpdatedAt = c.now()
}

// stage tags the record's funnel position. A conflicted required field
// always routes to human review, regardless of score.
func (c *Coordinator) stage(rec *model.ProspectRecord) model.Stage {
	if len(rec.Fields) == 0 {
		return model.StageNew
	}
	for _, key := range c.schema.Required() {
		if rf, ok := rec.Fields[key]; ok && rf.Conflicted {
			return model.StageReview
		}
	}
	if c.scorer != nil && rec.QualificationScore >= c.qualifyAt {
		return model.StageQualified
	}
	return model.StageEnriched
}

func (c *Coordinator) completeness(resolved map[model.FieldKey]model.ResolvedField) float64 {
	required := c.schema.Required()
	if len(required) == 0 {
		return 0
	}
	present := 0
	for _, key := range required {
		if _, ok := resolved[key]; ok {
			present++
		}
	}
	return float64(present) / float64(len(required))
}

func (c *Coordinator) sourceWeight(sourceID string) float64 {
	if w, ok := c.weights[sourceID]; ok {
		return w
	}
	return 50
}

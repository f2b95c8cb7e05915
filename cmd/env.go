package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/attempt"
	"github.com/sells-group/prospector/internal/budget"
	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/pipeline"
	"github.com/sells-group/prospector/internal/regdata"
	"github.com/sells-group/prospector/internal/scorer"
	"github.com/sells-group/prospector/internal/source"
	"github.com/sells-group/prospector/pkg/places"
	"github.com/sells-group/prospector/pkg/websearch"
)

// env bundles the wired collaborators a pipeline command needs.
type env struct {
	Store       attempt.Store
	Tracker     *budget.Tracker
	Coordinator *pipeline.Coordinator

	regStore *regdata.Store
}

func (e *env) Close() {
	if e.regStore != nil {
		_ = e.regStore.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (attempt.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "prospector.db"
		}
		return attempt.NewSQLite(path)
	case "postgres":
		return attempt.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func budgetLimits(budgets map[string]config.BudgetConfig) map[string]budget.SourceLimit {
	limits := make(map[string]budget.SourceLimit, len(budgets))
	for id, b := range budgets {
		if b.MaxCallsPerWindow <= 0 || b.WindowSecs <= 0 {
			continue
		}
		limits[id] = budget.SourceLimit{
			MaxCallsPerWindow: b.MaxCallsPerWindow,
			WindowDuration:    time.Duration(b.WindowSecs) * time.Second,
		}
	}
	return limits
}

func loadPassSpecs() ([]model.PassSpec, error) {
	if cfg.Pipeline.PassFile == "" {
		return pipeline.DefaultPassSpecs(), nil
	}
	return pipeline.LoadPassSpecs(cfg.Pipeline.PassFile)
}

// initPipeline wires the store, the source adapters, and the coordinator.
func initPipeline(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	placesClient := places.NewClient(cfg.Places.Key, places.WithBaseURL(cfg.Places.BaseURL))
	searchClient := websearch.NewClient(cfg.Search.Key, websearch.WithBaseURL(cfg.Search.BaseURL))

	registry := source.NewRegistry()
	registry.Register(source.NewPlacesAdapter(placesClient))
	registry.Register(source.NewReviewsAdapter(placesClient))
	registry.Register(source.NewVerifyAdapter(searchClient))
	registry.Register(source.NewSizingAdapter(searchClient))

	e := &env{Store: st}

	// The registry adapter is optional: without a synced dataset the
	// registry_lookup pass reports source_unavailable and stays retryable.
	regStore, err := regdata.Open(cfg.Registry.Path)
	if err != nil {
		zap.L().Warn("registry dataset unavailable, registry passes will fail",
			zap.String("path", cfg.Registry.Path), zap.Error(err))
	} else {
		e.regStore = regStore
		registry.Register(source.NewRegistryAdapter(regStore))
	}

	specs, err := loadPassSpecs()
	if err != nil {
		e.Close()
		return nil, err
	}

	e.Tracker = budget.NewTracker(budgetLimits(cfg.Budgets))
	e.Coordinator = pipeline.NewCoordinator(specs, registry, e.Tracker, st,
		pipeline.WithScorer(scorer.New(cfg.Scorer)),
		pipeline.WithCompletenessThreshold(cfg.Pipeline.CompletenessThreshold),
		pipeline.WithQualifyThreshold(cfg.Pipeline.QualifyThreshold),
	)

	return e, nil
}

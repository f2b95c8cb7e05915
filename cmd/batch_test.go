package main

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/model"
)

func TestReadTargets(t *testing.T) {
	csv := `name,city,state
Acme Plumbing,Tulsa,OK
Best Roofing,Austin,TX

Solo Services
`
	targets, err := readTargets(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, targets, 3)

	assert.Equal(t, model.Target{Name: "Acme Plumbing", City: "Tulsa", State: "OK"}, targets[0])
	assert.Equal(t, model.Target{Name: "Best Roofing", City: "Austin", State: "TX"}, targets[1])
	assert.Equal(t, model.Target{Name: "Solo Services"}, targets[2])
}

func TestReadTargets_NoHeader(t *testing.T) {
	targets, err := readTargets(strings.NewReader("Acme Plumbing,Tulsa,OK\n"))
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "Acme Plumbing", targets[0].Name)
}

func TestReadTargets_Empty(t *testing.T) {
	targets, err := readTargets(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestProcessBatch_RunsEveryTarget(t *testing.T) {
	targets := []model.Target{
		{Name: "A", State: "OK"},
		{Name: "B", State: "OK"},
		{Name: "C", State: "TX"},
	}

	var mu sync.Mutex
	seen := map[string]bool{}
	err := processBatch(context.Background(), targets, 0, 2, func(_ context.Context, target model.Target) (*model.ProspectRecord, error) {
		mu.Lock()
		seen[target.Key()] = true
		mu.Unlock()
		return &model.ProspectRecord{Target: target}, nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 3)
}

func TestProcessBatch_AppliesLimit(t *testing.T) {
	targets := []model.Target{{Name: "A"}, {Name: "B"}, {Name: "C"}}

	var mu sync.Mutex
	count := 0
	err := processBatch(context.Background(), targets, 2, 1, func(_ context.Context, target model.Target) (*model.ProspectRecord, error) {
		mu.Lock()
		count++
		mu.Unlock()
		return &model.ProspectRecord{Target: target}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestProcessBatch_FailureDoesNotAbort(t *testing.T) {
	targets := []model.Target{{Name: "A"}, {Name: "B"}, {Name: "C"}}

	var mu sync.Mutex
	count := 0
	err := processBatch(context.Background(), targets, 0, 1, func(_ context.Context, target model.Target) (*model.ProspectRecord, error) {
		mu.Lock()
		count++
		mu.Unlock()
		if target.Name == "B" {
			return nil, eris.New("store unavailable")
		}
		return &model.ProspectRecord{Target: target}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count, "remaining targets still run after a failure")
}

func TestProcessBatch_NoTargets(t *testing.T) {
	err := processBatch(context.Background(), nil, 0, 5, func(context.Context, model.Target) (*model.ProspectRecord, error) {
		t.Fatal("run must not be called")
		return nil, nil
	})
	assert.NoError(t, err)
}

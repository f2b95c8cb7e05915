package pipeline

import (
	"os"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/prospector/internal/model"
)

// passSpecYAML mirrors model.PassSpec for file loading, with the timeout
// expressed in seconds.
type passSpecYAML struct {
	ID              int              `yaml:"id"`
	Name            string           `yaml:"name"`
	SourceID        string           `yaml:"source_id"`
	DependsOnFields []model.FieldKey `yaml:"depends_on_fields"`
	TimeoutSecs     int              `yaml:"timeout_secs"`
}

// LoadPassSpecs reads a declarative pass list from a YAML file. The file
// has a top-level "passes" key.
func LoadPassSpecs(path string) ([]model.PassSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read pass specs %s", path)
	}

	var wrapper struct {
		Passes []passSpecYAML `yaml:"passes"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "pipeline: parse pass specs")
	}
	if len(wrapper.Passes) == 0 {
		return nil, eris.Errorf("pipeline: no passes defined in %s", path)
	}

	specs := make([]model.PassSpec, 0, len(wrapper.Passes))
	seen := make(map[int]struct{}, len(wrapper.Passes))
	for _, p := range wrapper.Passes {
		if p.ID <= 0 {
			return nil, eris.Errorf("pipeline: pass %q has invalid id %d", p.Name, p.ID)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, eris.Errorf("pipeline: duplicate pass id %d", p.ID)
		}
		seen[p.ID] = struct{}{}
		if p.SourceID == "" {
			return nil, eris.Errorf("pipeline: pass %d has no source id", p.ID)
		}
		timeout := time.Duration(p.TimeoutSecs) * time.Second
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		specs = append(specs, model.PassSpec{
			ID:              p.ID,
			Name:            p.Name,
			SourceID:        p.SourceID,
			DependsOnFields: p.DependsOnFields,
			Timeout:         timeout,
		})
	}

	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs, nil
}

// DefaultPassSpecs returns the standard five-pass research sequence.
func DefaultPassSpecs() []model.PassSpec {
	return []model.PassSpec{
		{
			ID:       1,
			Name:     "places_lookup",
			SourceID: "google_places",
			Timeout:  15 * time.Second,
		},
		{
			ID:              2,
			Name:            "web_verify",
			SourceID:        "web_search",
			DependsOnFields: []model.FieldKey{model.FieldWebsite},
			Timeout:         20 * time.Second,
		},
		{
			ID:              3,
			Name:            "review_mine",
			SourceID:        "places_details",
			DependsOnFields: []model.FieldKey{model.FieldPlaceID},
			Timeout:         15 * time.Second,
		},
		{
			ID:       4,
			Name:     "registry_lookup",
			SourceID: "state_registry",
			Timeout:  10 * time.Second,
		},
		{
			ID:              5,
			Name:            "size_estimate",
			SourceID:        "web_sizing",
			DependsOnFields: []model.FieldKey{model.FieldWebsite},
			Timeout:         20 * time.Second,
		},
	}
}

// DefaultSourceWeights returns the base confidence each source's
// observations carry before fusion.
func DefaultSourceWeights() map[string]float64 {
	return map[string]float64{
		"google_places":  85,
		"places_details": 80,
		"web_search":     70,
		"state_registry": 90,
		"web_sizing":     60,
	}
}

// Package scorer implements the qualification rubric for resolved
// prospect records. Scoring is a pure function of the record: the same
// input always produces the same integer in [0,100].
package scorer

import (
	"math"
	"strings"

	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/model"
)

// Rubric scores records against a fixed weighted set of components. Each
// component yields 0.0-1.0 and is multiplied by its configured weight;
// weights are point caps and should sum to 100.
type Rubric struct {
	cfg config.ScorerConfig
}

// New creates a Rubric with the given config.
func New(cfg config.ScorerConfig) *Rubric {
	return &Rubric{cfg: cfg}
}

// Score computes the qualification score for a record. A record with no
// resolved fields scores zero regardless of target metadata.
func (r *Rubric) Score(rec *model.ProspectRecord) int {
	if rec == nil || len(rec.Fields) == 0 {
		return 0
	}
	components := r.Components(rec)

	total := 0.0
	for name, c := range components {
		total += c * r.weight(name)
	}
	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}
	return int(math.Round(total))
}

// Components returns the per-component sub-scores (0.0-1.0 each), keyed
// by component name. Exposed so the export layer can show the breakdown.
func (r *Rubric) Components(rec *model.ProspectRecord) map[string]float64 {
	return map[string]float64{
		"business_size":    r.scoreBusinessSize(rec),
		"digital_presence": r.scoreDigitalPresence(rec),
		"location":         r.scoreLocation(rec),
		"industry_tier":    r.scoreIndustryTier(rec),
		"revenue":          r.scoreRevenue(rec),
		"competitive_gap":  r.scoreCompetitiveGap(rec),
	}
}

func (r *Rubric) weight(component string) float64 {
	switch component {
	case "business_size":
		return r.cfg.BusinessSizeWeight
	case "digital_presence":
		return r.cfg.DigitalPresenceWeight
	case "location":
		return r.cfg.LocationWeight
	case "industry_tier":
		return r.cfg.IndustryTierWeight
	case "revenue":
		return r.cfg.RevenueWeight
	case "competitive_gap":
		return r.cfg.CompetitiveGapWeight
	}
	return 0
}

// scoreBusinessSize rates the employee estimate against the target band.
// Inside the band scores full; below it scales linearly toward zero;
// above it decays toward zero as the business outgrows the segment.
func (r *Rubric) scoreBusinessSize(rec *model.ProspectRecord) float64 {
	employees, ok := asInt(rec.FieldValue(model.FieldEmployeeEstimate))
	if !ok || employees <= 0 {
		return 0
	}
	min, max := r.cfg.MinEmployees, r.cfg.MaxEmployees
	if min <= 0 {
		min = 1
	}
	switch {
	case employees < min:
		return float64(employees) / float64(min)
	case max > 0 && employees > max:
		overshoot := float64(employees-max) / float64(max)
		return math.Max(0, 1-overshoot)
	default:
		return 1
	}
}

// scoreDigitalPresence blends website, rating, and review volume.
func (r *Rubric) scoreDigitalPresence(rec *model.ProspectRecord) float64 {
	score := 0.0
	if s, ok := rec.FieldValue(model.FieldWebsite).(string); ok && s != "" {
		score += 0.4
	}
	if rating, ok := asFloat(rec.FieldValue(model.FieldRating)); ok && rating > 0 {
		if r.cfg.MinRating > 0 && rating < r.cfg.MinRating {
			score += 0.15
		} else {
			score += 0.3
		}
	}
	if reviews, ok := asInt(rec.FieldValue(model.FieldReviewCount)); ok && reviews > 0 {
		// 100+ reviews earns the full share.
		score += 0.3 * math.Min(1, float64(reviews)/100)
	}
	return score
}

func (r *Rubric) scoreLocation(rec *model.ProspectRecord) float64 {
	state, _ := rec.FieldValue(model.FieldState).(string)
	if state == "" {
		state = rec.Target.State
	}
	if state == "" {
		return 0
	}
	for _, target := range r.cfg.TargetStates {
		if strings.EqualFold(state, target) {
			return 1
		}
	}
	return 0
}

func (r *Rubric) scoreIndustryTier(rec *model.ProspectRecord) float64 {
	industry, _ := rec.FieldValue(model.FieldIndustry).(string)
	if industry == "" {
		return 0
	}
	lower := strings.ToLower(industry)
	for _, kw := range r.cfg.TierOneIndustries {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return 1
		}
	}
	for _, kw := range r.cfg.TierTwoIndustries {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return 0.6
		}
	}
	return 0.2
}

func (r *Rubric) scoreRevenue(rec *model.ProspectRecord) float64 {
	revenue, ok := asInt64(rec.FieldValue(model.FieldRevenueEstimate))
	if !ok || revenue <= 0 {
		return 0
	}
	min, max := r.cfg.MinRevenue, r.cfg.MaxRevenue
	if min <= 0 {
		min = 1
	}
	switch {
	case revenue < min:
		return float64(revenue) / float64(min)
	case max > 0 && revenue > max:
		overshoot := float64(revenue-max) / float64(max)
		return math.Max(0, 1-overshoot)
	default:
		return 1
	}
}

// scoreCompetitiveGap is a placeholder component held at a neutral half
// share until a competitor density signal exists.
// TODO: replace with a real competitor-density sub-score once the places
// nearby-search data is wired in.
func (r *Rubric) scoreCompetitiveGap(rec *model.ProspectRecord) float64 {
	if len(rec.Fields) == 0 {
		return 0
	}
	return 0.5
}

// asFloat coerces numeric values that may arrive as any of Go's common
// numeric types, including float64 from a JSON round trip.
func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func asInt64(v any) (int64, bool) {
	f, ok := asFloat(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

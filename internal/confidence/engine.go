// Package confidence fuses per-source field observations into resolved
// field values with trust weights. Resolution is a pure function of the
// input entries: no I/O, no clock, byte-identical output for identical
// input.
package confidence

import (
	"fmt"
	"sort"

	"github.com/sells-group/prospector/internal/model"
)

// maxCorroborated caps the confidence a field can earn through source
// agreement. No amount of corroboration makes a value certain.
const maxCorroborated = 95

// corroborationBonus is added per agreeing source beyond the first.
const corroborationBonus = 5

// Resolve fuses all entries into one ResolvedField per field key.
//
// A field observed by a single source keeps that source's confidence.
// Agreeing sources corroborate: confidence = min(95, mean + 5*(n-1)).
// Disagreeing sources conflict: the highest-confidence entry wins, equal
// confidences break toward the lowest pass id (the pass that ran first),
// and every distinct candidate is surfaced in ConflictingValues.
func Resolve(entries []model.ConfidenceEntry) map[model.FieldKey]model.ResolvedField {
	byField := make(map[model.FieldKey][]model.ConfidenceEntry)
	for _, e := range entries {
		byField[e.Field] = append(byField[e.Field], e)
	}

	resolved := make(map[model.FieldKey]model.ResolvedField, len(byField))
	for field, group := range byField {
		resolved[field] = resolveField(field, group)
	}
	return resolved
}

func resolveField(field model.FieldKey, entries []model.ConfidenceEntry) model.ResolvedField {
	// Deterministic processing order regardless of input order: pass id,
	// then source name for entries re-observed across retries.
	sorted := make([]model.ConfidenceEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].PassID != sorted[j].PassID {
			return sorted[i].PassID < sorted[j].PassID
		}
		return sorted[i].Source < sorted[j].Source
	})

	if len(sorted) == 1 {
		e := sorted[0]
		return model.ResolvedField{
			Field:      field,
			Value:      e.Value,
			Confidence: clamp(e.Confidence),
			Sources:    []string{e.Source},
		}
	}

	// Group by canonical value to detect agreement.
	type candidate struct {
		value   any
		entries []model.ConfidenceEntry
	}
	var candidates []*candidate
	byCanon := make(map[string]*candidate)
	for _, e := range sorted {
		canon := canonical(e.Value)
		c, ok := byCanon[canon]
		if !ok {
			c = &candidate{value: e.Value}
			byCanon[canon] = c
			candidates = append(candidates, c)
		}
		c.entries = append(c.entries, e)
	}

	sources := dedupSources(sorted)

	if len(candidates) == 1 {
		// Cross-verified: every source reported the same value.
		c := candidates[0]
		sum := 0.0
		for _, e := range c.entries {
			sum += e.Confidence
		}
		mean := sum / float64(len(c.entries))
		conf := mean + corroborationBonus*float64(len(sources)-1)
		if conf > maxCorroborated {
			conf = maxCorroborated
		}
		return model.ResolvedField{
			Field:      field,
			Value:      c.value,
			Confidence: clamp(conf),
			Sources:    sources,
		}
	}

	// Conflict: pick the winning entry. Entries are already in pass-id
	// order, so a strict greater-than comparison makes the earliest pass
	// win confidence ties.
	winner := sorted[0]
	for _, e := range sorted[1:] {
		if e.Confidence > winner.Confidence {
			winner = e
		}
	}

	conflicting := make([]model.ConflictingValue, 0, len(candidates))
	for _, c := range candidates {
		best := c.entries[0]
		for _, e := range c.entries[1:] {
			if e.Confidence > best.Confidence {
				best = e
			}
		}
		conflicting = append(conflicting, model.ConflictingValue{
			Value:      best.Value,
			Source:     best.Source,
			Confidence: best.Confidence,
		})
	}

	return model.ResolvedField{
		Field:             field,
		Value:             winner.Value,
		Confidence:        clamp(winner.Confidence),
		Sources:           sources,
		Conflicted:        true,
		ConflictingValues: conflicting,
	}
}

// Overall returns the arithmetic mean of all resolved confidences, or 0
// when nothing resolved.
func Overall(fields map[model.FieldKey]model.ResolvedField) float64 {
	if len(fields) == 0 {
		return 0
	}
	sum := 0.0
	for _, rf := range fields {
		sum += rf.Confidence
	}
	return sum / float64(len(fields))
}

// canonical renders a value for equality comparison across sources that
// may report the same fact with different dynamic types (42 vs "42").
func canonical(v any) string {
	switch x := v.(type) {
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	case float32:
		return canonical(float64(x))
	default:
		return fmt.Sprintf("%v", v)
	}
}

func dedupSources(entries []model.ConfidenceEntry) []string {
	seen := make(map[string]struct{}, len(entries))
	var out []string
	for _, e := range entries {
		if _, ok := seen[e.Source]; ok {
			continue
		}
		seen[e.Source] = struct{}{}
		out = append(out, e.Source)
	}
	return out
}

func clamp(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

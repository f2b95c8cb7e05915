package source

import (
	"context"
	"sort"
	"strings"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/pkg/places"
)

// ReviewsAdapter mines the target's reviews via place details. It requires
// the place id an earlier pass resolved.
type ReviewsAdapter struct {
	client places.Client
}

// NewReviewsAdapter creates the review mining adapter.
func NewReviewsAdapter(client places.Client) *ReviewsAdapter {
	return &ReviewsAdapter{client: client}
}

func (a *ReviewsAdapter) SourceID() string { return "places_details" }

func (a *ReviewsAdapter) Lookup(ctx context.Context, _ model.Target, aggregate *model.ProspectRecord) (*Result, error) {
	placeID, _ := aggregate.FieldValue(model.FieldPlaceID).(string)
	if placeID == "" {
		return &Result{Errors: []string{model.ErrNoDataFound}}, nil
	}
	placeID = strings.TrimPrefix(placeID, "places/")

	p, err := a.client.Details(ctx, placeID)
	if err != nil {
		return &Result{Errors: []string{model.ErrSourceUnavailable, err.Error()}}, nil
	}

	fields := map[model.FieldKey]any{}
	if p.Rating > 0 {
		fields[model.FieldRating] = p.Rating
	}
	if p.UserRatingCount > 0 {
		fields[model.FieldReviewCount] = p.UserRatingCount
	}
	if themes := reviewThemes(p.Reviews); themes != "" {
		fields[model.FieldReviewThemes] = themes
	}

	if len(fields) == 0 {
		return &Result{Errors: []string{model.ErrNoDataFound}}, nil
	}
	return &Result{Success: true, Fields: fields}, nil
}

// reviewStopwords are skipped during theme extraction.
var reviewStopwords = map[string]struct{}{
	"the": {}, "and": {}, "was": {}, "were": {}, "they": {}, "them": {},
	"this": {}, "that": {}, "with": {}, "have": {}, "had": {}, "for": {},
	"our": {}, "are": {}, "but": {}, "not": {}, "very": {}, "you": {},
	"all": {}, "from": {}, "out": {}, "would": {}, "got": {}, "get": {},
	"his": {}, "her": {}, "their": {}, "about": {}, "when": {}, "will": {},
}

// reviewThemes extracts the most frequent meaningful words across review
// texts as a comma-joined summary, most frequent first.
func reviewThemes(reviews []places.Review) string {
	counts := make(map[string]int)
	for _, r := range reviews {
		for _, raw := range strings.Fields(strings.ToLower(r.Text.Text)) {
			word := strings.Trim(raw, ".,!?;:\"'()")
			if len(word) < 3 {
				continue
			}
			if _, skip := reviewStopwords[word]; skip {
				continue
			}
			counts[word]++
		}
	}

	type wc struct {
		word  string
		count int
	}
	var ranked []wc
	for w, c := range counts {
		if c < 2 {
			continue
		}
		ranked = append(ranked, wc{w, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})

	const maxThemes = 5
	if len(ranked) > maxThemes {
		ranked = ranked[:maxThemes]
	}
	words := make([]string, len(ranked))
	for i, r := range ranked {
		words[i] = r.word
	}
	return strings.Join(words, ", ")
}

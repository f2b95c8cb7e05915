package source

import (
	"context"
	"strings"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/pkg/places"
)

// PlacesAdapter resolves a target against the Places text search: the
// anchor pass that produces the place id later passes depend on.
type PlacesAdapter struct {
	client places.Client
}

// NewPlacesAdapter creates the maps lookup adapter.
func NewPlacesAdapter(client places.Client) *PlacesAdapter {
	return &PlacesAdapter{client: client}
}

func (a *PlacesAdapter) SourceID() string { return "google_places" }

func (a *PlacesAdapter) Lookup(ctx context.Context, target model.Target, _ *model.ProspectRecord) (*Result, error) {
	query := target.Name
	if target.City != "" {
		query += " " + target.City
	}
	if target.State != "" {
		query += " " + strings.ToUpper(target.State)
	}

	resp, err := a.client.TextSearch(ctx, query)
	if err != nil {
		return &Result{Errors: []string{model.ErrSourceUnavailable, err.Error()}}, nil
	}
	if len(resp.Places) == 0 {
		return &Result{Errors: []string{model.ErrNoDataFound}}, nil
	}

	p := resp.Places[0]
	fields := map[model.FieldKey]any{}
	put := func(key model.FieldKey, v any) {
		switch x := v.(type) {
		case string:
			if x != "" {
				fields[key] = x
			}
		case float64:
			if x > 0 {
				fields[key] = x
			}
		case int:
			if x > 0 {
				fields[key] = x
			}
		}
	}

	put(model.FieldName, p.DisplayName.Text)
	put(model.FieldAddress, p.FormattedAddress)
	put(model.FieldPhone, p.NationalPhoneNumber)
	put(model.FieldWebsite, p.WebsiteURI)
	put(model.FieldPlaceID, p.ID)
	put(model.FieldRating, p.Rating)
	put(model.FieldReviewCount, p.UserRatingCount)
	put(model.FieldIndustry, p.PrimaryTypeDisplayName.Text)

	if city, state := splitAddress(p.FormattedAddress); city != "" {
		put(model.FieldCity, city)
		put(model.FieldState, state)
	}

	if len(fields) == 0 {
		return &Result{Errors: []string{model.ErrNoDataFound}}, nil
	}
	return &Result{Success: true, Fields: fields}, nil
}

// splitAddress pulls city and state out of a US formatted address like
// "1 Main St, Tulsa, OK 74101, USA". Best effort: empty strings on any
// shape it does not recognize.
func splitAddress(addr string) (city, state string) {
	parts := strings.Split(addr, ",")
	if len(parts) < 3 {
		return "", ""
	}
	// The state+zip segment precedes an optional trailing country.
	idx := len(parts) - 2
	seg := strings.Fields(strings.TrimSpace(parts[idx]))
	if len(seg) == 0 || len(seg[0]) != 2 {
		return "", ""
	}
	return strings.TrimSpace(parts[idx-1]), strings.ToUpper(seg[0])
}

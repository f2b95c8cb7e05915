package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/regdata"
	"github.com/sells-group/prospector/pkg/places"
	"github.com/sells-group/prospector/pkg/websearch"
)

// fakePlaces implements places.Client.
type fakePlaces struct {
	searchResp  *places.TextSearchResponse
	searchErr   error
	detailsResp *places.Place
	detailsErr  error
	gotDetails  string
}

func (f *fakePlaces) TextSearch(context.Context, string) (*places.TextSearchResponse, error) {
	return f.searchResp, f.searchErr
}

func (f *fakePlaces) Details(_ context.Context, placeID string) (*places.Place, error) {
	f.gotDetails = placeID
	return f.detailsResp, f.detailsErr
}

// fakeSearch implements websearch.Client.
type fakeSearch struct {
	resp *websearch.SearchResponse
	err  error
}

func (f *fakeSearch) Search(context.Context, string, ...websearch.SearchOption) (*websearch.SearchResponse, error) {
	return f.resp, f.err
}

// fakeLookup implements regdata.Lookup.
type fakeLookup struct {
	entity *regdata.Entity
	err    error
}

func (f *fakeLookup) Find(context.Context, string, string) (*regdata.Entity, error) {
	return f.entity, f.err
}

func emptyRecord() *model.ProspectRecord {
	return &model.ProspectRecord{Fields: map[model.FieldKey]model.ResolvedField{}}
}

func recordWith(fields map[model.FieldKey]any) *model.ProspectRecord {
	rec := emptyRecord()
	for k, v := range fields {
		rec.Fields[k] = model.ResolvedField{Field: k, Value: v}
	}
	return rec
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	a := NewRegistryAdapter(&fakeLookup{})
	r.Register(a)

	assert.Same(t, a, r.Get("state_registry").(*RegistryAdapter))
	assert.Nil(t, r.Get("unknown"))
	assert.Equal(t, []string{"state_registry"}, r.List())
}

func TestPlacesAdapter_MapsFields(t *testing.T) {
	client := &fakePlaces{searchResp: &places.TextSearchResponse{
		Places: []places.Place{{
			ID:                     "places/abc123",
			DisplayName:            places.DisplayName{Text: "Acme Plumbing"},
			FormattedAddress:       "1 Main St, Tulsa, OK 74101, USA",
			NationalPhoneNumber:    "(918) 555-0100",
			WebsiteURI:             "https://acme.example",
			Rating:                 4.6,
			UserRatingCount:        128,
			PrimaryTypeDisplayName: places.DisplayName{Text: "Plumber"},
		}},
	}}

	a := NewPlacesAdapter(client)
	res, err := a.Lookup(context.Background(), model.Target{Name: "Acme Plumbing", City: "Tulsa", State: "OK"}, emptyRecord())
	require.NoError(t, err)
	require.True(t, res.Success)

	assert.Equal(t, "Acme Plumbing", res.Fields[model.FieldName])
	assert.Equal(t, "places/abc123", res.Fields[model.FieldPlaceID])
	assert.Equal(t, 4.6, res.Fields[model.FieldRating])
	assert.Equal(t, "Tulsa", res.Fields[model.FieldCity])
	assert.Equal(t, "OK", res.Fields[model.FieldState])
	assert.Equal(t, "Plumber", res.Fields[model.FieldIndustry])
}

func TestPlacesAdapter_NoResults(t *testing.T) {
	a := NewPlacesAdapter(&fakePlaces{searchResp: &places.TextSearchResponse{}})
	res, err := a.Lookup(context.Background(), model.Target{Name: "Nowhere"}, emptyRecord())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Errors, model.ErrNoDataFound)
}

func TestPlacesAdapter_UpstreamError(t *testing.T) {
	a := NewPlacesAdapter(&fakePlaces{searchErr: assert.AnError})
	res, err := a.Lookup(context.Background(), model.Target{Name: "Acme"}, emptyRecord())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Errors, model.ErrSourceUnavailable)
}

func TestReviewsAdapter_RequiresPlaceID(t *testing.T) {
	a := NewReviewsAdapter(&fakePlaces{})
	res, err := a.Lookup(context.Background(), model.Target{Name: "Acme"}, emptyRecord())
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestReviewsAdapter_MinesThemes(t *testing.T) {
	client := &fakePlaces{detailsResp: &places.Place{
		Rating:          4.7,
		UserRatingCount: 131,
		Reviews: []places.Review{
			{Rating: 5, Text: places.ReviewText{Text: "Great service, fast response. Service was professional."}},
			{Rating: 5, Text: places.ReviewText{Text: "Fast friendly service and professional work."}},
			{Rating: 4, Text: places.ReviewText{Text: "Professional crew, fast turnaround."}},
		},
	}}

	a := NewReviewsAdapter(client)
	res, err := a.Lookup(context.Background(), model.Target{Name: "Acme"},
		recordWith(map[model.FieldKey]any{model.FieldPlaceID: "places/abc123"}))
	require.NoError(t, err)
	require.True(t, res.Success)

	assert.Equal(t, "abc123", client.gotDetails, "places/ prefix stripped")
	assert.Equal(t, 4.7, res.Fields[model.FieldRating])
	assert.Equal(t, 131, res.Fields[model.FieldReviewCount])

	themes, _ := res.Fields[model.FieldReviewThemes].(string)
	assert.Contains(t, themes, "service")
	assert.Contains(t, themes, "professional")
	assert.Contains(t, themes, "fast")
}

func TestVerifyAdapter_ExtractsPhoneAndConfirmsWebsite(t *testing.T) {
	client := &fakeSearch{resp: &websearch.SearchResponse{
		Code: 200,
		Data: []websearch.Result{
			{URL: "https://www.acme.example/contact", Description: "Call us at (918) 555-0100 today"},
		},
	}}

	a := NewVerifyAdapter(client)
	res, err := a.Lookup(context.Background(), model.Target{Name: "Acme", City: "Tulsa"},
		recordWith(map[model.FieldKey]any{model.FieldWebsite: "https://acme.example"}))
	require.NoError(t, err)
	require.True(t, res.Success)

	assert.Equal(t, "918-555-0100", res.Fields[model.FieldPhone])
	assert.Equal(t, "https://acme.example", res.Fields[model.FieldWebsite])
}

func TestVerifyAdapter_UnconfirmedWebsiteOmitted(t *testing.T) {
	client := &fakeSearch{resp: &websearch.SearchResponse{
		Code: 200,
		Data: []websearch.Result{
			{URL: "https://unrelated.example", Description: "nothing relevant"},
		},
	}}

	a := NewVerifyAdapter(client)
	res, err := a.Lookup(context.Background(), model.Target{Name: "Acme"},
		recordWith(map[model.FieldKey]any{model.FieldWebsite: "https://acme.example"}))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Errors, model.ErrNoDataFound)
}

func TestSizingAdapter_ParsesEstimates(t *testing.T) {
	client := &fakeSearch{resp: &websearch.SearchResponse{
		Code: 200,
		Data: []websearch.Result{
			{Description: "Acme Plumbing has 45 employees and $3.5 million in annual revenue."},
		},
	}}

	a := NewSizingAdapter(client)
	res, err := a.Lookup(context.Background(), model.Target{Name: "Acme"}, emptyRecord())
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 45, res.Fields[model.FieldEmployeeEstimate])
	assert.Equal(t, 3_500_000, res.Fields[model.FieldRevenueEstimate])
}

func TestSizingAdapter_EstimatesRevenueFromHeadcount(t *testing.T) {
	client := &fakeSearch{resp: &websearch.SearchResponse{
		Code: 200,
		Data: []websearch.Result{
			{Description: "Acme Plumbing has a team of 20 employees serving Tulsa."},
		},
	}}

	a := NewSizingAdapter(client)
	res, err := a.Lookup(context.Background(), model.Target{Name: "Acme"},
		recordWith(map[model.FieldKey]any{model.FieldIndustry: "plumbing"}))
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 20, res.Fields[model.FieldEmployeeEstimate])
	assert.Equal(t, 20*210_000, res.Fields[model.FieldRevenueEstimate])
}

func TestRegistryAdapter_MapsEntity(t *testing.T) {
	a := NewRegistryAdapter(&fakeLookup{entity: &regdata.Entity{
		LegalName: "Acme Plumbing LLC", State: "OK",
		Status: "active", EntityType: "LLC", IncorporationYear: 2011,
	}})

	res, err := a.Lookup(context.Background(), model.Target{Name: "Acme Plumbing", State: "OK"}, emptyRecord())
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "active", res.Fields[model.FieldRegistryStatus])
	assert.Equal(t, "LLC", res.Fields[model.FieldEntityType])
	assert.Equal(t, 2011, res.Fields[model.FieldIncorporationYear])
}

func TestRegistryAdapter_NoMatch(t *testing.T) {
	a := NewRegistryAdapter(&fakeLookup{})
	res, err := a.Lookup(context.Background(), model.Target{Name: "Ghost Co"}, emptyRecord())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Errors, model.ErrNoDataFound)
}

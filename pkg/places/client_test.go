package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.NotEmpty(t, r.Header.Get("X-Goog-FieldMask"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Acme Plumbing Tulsa OK", req["textQuery"])

		json.NewEncoder(w).Encode(TextSearchResponse{
			Places: []Place{{
				ID:                  "places/abc123",
				DisplayName:         DisplayName{Text: "Acme Plumbing"},
				FormattedAddress:    "1 Main St, Tulsa, OK 74101",
				NationalPhoneNumber: "(918) 555-0100",
				WebsiteURI:          "https://acmeplumbing.example",
				Rating:              4.6,
				UserRatingCount:     128,
			}},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := c.TextSearch(context.Background(), "Acme Plumbing Tulsa OK")
	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	assert.Equal(t, "Acme Plumbing", resp.Places[0].DisplayName.Text)
	assert.Equal(t, 4.6, resp.Places[0].Rating)
}

func TestTextSearch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.TextSearch(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/places/abc123", r.URL.Path)
		json.NewEncoder(w).Encode(Place{
			ID:              "abc123",
			Rating:          4.6,
			UserRatingCount: 130,
			Reviews: []Review{
				{Rating: 5, Text: ReviewText{Text: "fast and friendly"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	p, err := c.Details(context.Background(), "abc123")
	require.NoError(t, err)
	require.Len(t, p.Reviews, 1)
	assert.Equal(t, "fast and friendly", p.Reviews[0].Text.Text)
}

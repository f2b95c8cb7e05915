package source

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/pkg/websearch"
)

var phoneRe = regexp.MustCompile(`\(?\d{3}\)?[-.\s]\d{3}[-.\s]?\d{4}`)

// VerifyAdapter cross-checks the aggregate's website and phone against
// open web search results. It only ever re-reports values it actually saw
// in the wild, so agreement raises confidence and disagreement surfaces
// as a conflict.
type VerifyAdapter struct {
	client websearch.Client
}

// NewVerifyAdapter creates the web verification adapter.
func NewVerifyAdapter(client websearch.Client) *VerifyAdapter {
	return &VerifyAdapter{client: client}
}

func (a *VerifyAdapter) SourceID() string { return "web_search" }

func (a *VerifyAdapter) Lookup(ctx context.Context, target model.Target, aggregate *model.ProspectRecord) (*Result, error) {
	query := target.Name
	if target.City != "" {
		query += " " + target.City
	}
	query += " phone contact"

	resp, err := a.client.Search(ctx, query)
	if err != nil {
		return &Result{Errors: []string{model.ErrSourceUnavailable, err.Error()}}, nil
	}
	if len(resp.Data) == 0 {
		return &Result{Errors: []string{model.ErrNoDataFound}}, nil
	}

	fields := map[model.FieldKey]any{}

	// Phone: first number seen in result snippets.
	for _, r := range resp.Data {
		text := r.Description + " " + r.Content
		if m := phoneRe.FindString(text); m != "" {
			fields[model.FieldPhone] = normalizePhone(m)
			break
		}
	}

	// Website: re-report the aggregate's domain only when a search result
	// actually points at it.
	if site, _ := aggregate.FieldValue(model.FieldWebsite).(string); site != "" {
		domain := domainOf(site)
		for _, r := range resp.Data {
			if domain != "" && domainOf(r.URL) == domain {
				fields[model.FieldWebsite] = site
				break
			}
		}
	}

	if len(fields) == 0 {
		return &Result{Errors: []string{model.ErrNoDataFound}}, nil
	}
	return &Result{Success: true, Fields: fields}, nil
}

func normalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) != 10 {
		return s
	}
	return digits[:3] + "-" + digits[3:6] + "-" + digits[6:]
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimPrefix(strings.ToLower(raw), "www.")
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

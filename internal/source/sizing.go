package source

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/prospector/internal/estimate"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/pkg/websearch"
)

var (
	employeesRe = regexp.MustCompile(`(?i)(\d{1,5})\+?\s+employees`)
	revenueRe   = regexp.MustCompile(`(?i)\$\s?(\d+(?:\.\d+)?)\s?(million|m|billion|b)\b(?:\s+(?:in\s+)?(?:annual\s+)?revenue)?`)
)

// SizingAdapter estimates headcount and revenue from open web mentions.
// Low-trust signals: its source weight is the lowest in the default
// configuration.
type SizingAdapter struct {
	client websearch.Client
}

// NewSizingAdapter creates the size estimation adapter.
func NewSizingAdapter(client websearch.Client) *SizingAdapter {
	return &SizingAdapter{client: client}
}

func (a *SizingAdapter) SourceID() string { return "web_sizing" }

func (a *SizingAdapter) Lookup(ctx context.Context, target model.Target, aggregate *model.ProspectRecord) (*Result, error) {
	query := target.Name + " number of employees revenue"
	if site, _ := aggregate.FieldValue(model.FieldWebsite).(string); site != "" {
		query = target.Name + " " + domainOf(site) + " employees revenue"
	}

	resp, err := a.client.Search(ctx, query)
	if err != nil {
		return &Result{Errors: []string{model.ErrSourceUnavailable, err.Error()}}, nil
	}

	fields := map[model.FieldKey]any{}
	for _, r := range resp.Data {
		text := r.Description + " " + r.Content

		if _, ok := fields[model.FieldEmployeeEstimate]; !ok {
			if m := employeesRe.FindStringSubmatch(text); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
					fields[model.FieldEmployeeEstimate] = n
				}
			}
		}
		if _, ok := fields[model.FieldRevenueEstimate]; !ok {
			if m := revenueRe.FindStringSubmatch(text); m != nil {
				if amount, err := strconv.ParseFloat(m[1], 64); err == nil {
					mult := 1_000_000.0
					if strings.HasPrefix(strings.ToLower(m[2]), "b") {
						mult = 1_000_000_000.0
					}
					fields[model.FieldRevenueEstimate] = int(amount * mult)
				}
			}
		}
		if len(fields) == 2 {
			break
		}
	}

	// When mentions give a headcount but no revenue figure, fall back to
	// an industry-ratio estimate so downstream scoring still has a value.
	if emp, ok := fields[model.FieldEmployeeEstimate].(int); ok {
		if _, ok := fields[model.FieldRevenueEstimate]; !ok {
			industry, _ := aggregate.FieldValue(model.FieldIndustry).(string)
			if est, err := estimate.FromHeadcount(industry, emp); err == nil {
				fields[model.FieldRevenueEstimate] = int(est.Amount)
			}
		}
	}

	if len(fields) == 0 {
		return &Result{Errors: []string{model.ErrNoDataFound}}, nil
	}
	return &Result{Success: true, Fields: fields}, nil
}

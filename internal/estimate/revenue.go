// Package estimate provides revenue estimation from employee headcount.
package estimate

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// RevenueEstimate holds the result of a headcount-based revenue estimation.
type RevenueEstimate struct {
	Amount     int64   `json:"amount"`     // estimated annual revenue in dollars
	Confidence float64 `json:"confidence"` // 0.0-1.0
	Method     string  `json:"method"`     // "headcount_ratio"
	Industry   string  `json:"industry"`   // industry keyword matched for the ratio
}

// revenuePerEmployee maps industry keywords to approximate annual revenue
// per employee in dollars for small service businesses. Ordered so that
// multi-keyword industry strings match deterministically.
var revenuePerEmployee = []struct {
	keyword string
	perEmp  int64
}{
	{"plumbing", 210_000},
	{"hvac", 230_000},
	{"roofing", 250_000},
	{"electrical", 220_000},
	{"construction", 200_000},
	{"landscaping", 120_000},
	{"pest control", 110_000},
	{"painting", 130_000},
	{"cleaning", 80_000},
}

const defaultRevenuePerEmployee = 150_000

// confidence drops as headcount grows: the per-employee ratio is calibrated
// for small shops and dilutes past ~100 staff.
func confidenceFor(matched bool, employees int) float64 {
	c := 0.5
	if matched {
		c += 0.2
	}
	if employees > 100 {
		c -= 0.2
	}
	return math.Max(0.1, c)
}

// FromHeadcount estimates annual revenue from an employee count and a
// free-text industry string. Matching is substring-based over known
// industry keywords; unmatched industries use a generic ratio.
func FromHeadcount(industry string, employees int) (*RevenueEstimate, error) {
	if employees <= 0 {
		return nil, eris.New("estimate: employee count must be positive")
	}

	needle := strings.ToLower(industry)
	ratio := int64(defaultRevenuePerEmployee)
	matchedKeyword := ""
	for _, entry := range revenuePerEmployee {
		if strings.Contains(needle, entry.keyword) {
			ratio = entry.perEmp
			matchedKeyword = entry.keyword
			break
		}
	}

	return &RevenueEstimate{
		Amount:     int64(employees) * ratio,
		Confidence: confidenceFor(matchedKeyword != "", employees),
		Method:     "headcount_ratio",
		Industry:   matchedKeyword,
	}, nil
}

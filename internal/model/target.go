package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Target identifies the business being researched. It is the stable key for
// all persisted state and must not change once a processing run begins.
type Target struct {
	Name  string `json:"name"`
	City  string `json:"city,omitempty"`
	State string `json:"state,omitempty"`
}

var keyFolder = cases.Fold()

// Key returns the normalized persistence key for the target: case-folded
// name (plus city/state when present) with runs of non-alphanumerics
// collapsed to single underscores.
func (t Target) Key() string {
	parts := []string{t.Name}
	if t.City != "" {
		parts = append(parts, t.City)
	}
	if t.State != "" {
		parts = append(parts, t.State)
	}
	folded := keyFolder.String(strings.Join(parts, " "))

	var b strings.Builder
	b.Grow(len(folded))
	pendingSep := false
	for _, r := range folded {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DisplayName returns a human-readable label for logs and reports.
func (t Target) DisplayName() string {
	caser := cases.Title(language.AmericanEnglish)
	name := caser.String(strings.ToLower(strings.TrimSpace(t.Name)))
	if t.City == "" && t.State == "" {
		return name
	}
	loc := t.City
	if t.State != "" {
		if loc != "" {
			loc += ", "
		}
		loc += strings.ToUpper(t.State)
	}
	return name + " (" + loc + ")"
}

// Package dates normalizes natural-language due-date expressions into
// canonical calendar dates (YYYY-MM-DD).
//
// The normalizer is a total function: expressions it cannot understand are
// returned unchanged with a log entry, never an error. Callers must treat an
// unparsed result carefully since it will not be ISO-shaped.
package dates

import (
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// ISO is the canonical output layout.
const ISO = "2006-01-02"

var (
	canonicalRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	ordinalRe   = regexp.MustCompile(`(\d+)(st|nd|rd|th)\b`)
)

// layouts tried for generic parsing, most specific first. Year-less layouts
// parse to year 0, which the current-year rule then overwrites.
var layouts = []string{
	"2006-01-02",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"01/02/2006",
	"January 2",
	"Jan 2",
	"2 January",
	"2 Jan",
	"01-02",
	"01/02",
}

// Normalizer resolves date expressions against a clock. The zero value is not
// usable; construct with New.
type Normalizer struct {
	now func() time.Time
}

// New returns a Normalizer anchored to the wall clock.
func New() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewAt returns a Normalizer anchored to a fixed clock, for tests.
func NewAt(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// Normalize turns expr into a canonical YYYY-MM-DD date.
//
// Rules, in priority order:
//  1. already-canonical input is returned unchanged;
//  2. "today", "tomorrow", and any phrase containing "next week" resolve
//     against the current date;
//  3. generic parsing; a parsed year that differs from the current year is
//     overwritten with the current year. This never rolls forward: a date
//     already past this year stays in this year;
//  4. anything unparseable is returned as-is and logged.
func (n *Normalizer) Normalize(expr string) string {
	trimmed := strings.TrimSpace(expr)
	if canonicalRe.MatchString(trimmed) {
		return trimmed
	}

	now := n.now()
	switch lower := strings.ToLower(trimmed); {
	case lower == "today":
		return now.Format(ISO)
	case lower == "tomorrow":
		return now.AddDate(0, 0, 1).Format(ISO)
	case strings.Contains(lower, "next week"):
		return now.AddDate(0, 0, 7).Format(ISO)
	}

	cleaned := ordinalRe.ReplaceAllString(trimmed, "$1")
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, cleaned)
		if err != nil {
			continue
		}
		if parsed.Year() != now.Year() {
			parsed = time.Date(now.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		}
		return parsed.Format(ISO)
	}

	slog.Warn("could not normalize date expression", "expr", expr)
	return expr
}

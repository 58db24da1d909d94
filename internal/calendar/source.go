// Package calendar provides the event sources the pipeline reads from: a
// fixture week for demos and tests, and ICS files or subscription URLs.
package calendar

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/emilianohg/umbrella/internal/models"
)

// Source returns the events whose start falls within [from, to], ordered by
// start time.
type Source interface {
	Events(ctx context.Context, from, to time.Time) ([]models.CalendarEvent, error)
}

// SortEvents orders events by start, then id.
func SortEvents(events []models.CalendarEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].ID < events[j].ID
	})
}

func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}

// emailAddress strips a mailto: prefix and lowercases the address.
func emailAddress(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 7 && strings.EqualFold(v[:7], "mailto:") {
		v = v[7:]
	}
	return strings.ToLower(v)
}

// dedupe keeps the first occurrence of every non-empty value.
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// New returns the source for kind "mock" or "ics". Outlook sources live in
// internal/msgraph because they need an authenticated client.
func New(kind, icsPath string, loc *time.Location) (Source, error) {
	switch strings.ToLower(kind) {
	case "", "mock":
		return NewMockSource(), nil
	case "ics":
		if icsPath == "" {
			return nil, fmt.Errorf("ics source: source.ics_path is empty")
		}
		return NewICSSource(icsPath, loc), nil
	default:
		return nil, fmt.Errorf("unknown calendar source: %s", kind)
	}
}

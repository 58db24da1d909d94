package calendar

import (
	"context"
	"time"

	"github.com/emilianohg/umbrella/internal/models"
	"github.com/emilianohg/umbrella/internal/timecalc"
)

// MockSource generates a fixed sample week anchored at Monday 09:00 of the
// week containing the requested window start.
type MockSource struct{}

func NewMockSource() *MockSource {
	return &MockSource{}
}

type fixture struct {
	id         string
	subject    string
	day        int
	start      time.Duration // offset from 09:00
	length     time.Duration
	organizer  string
	attendees  []string
	body       string
	location   string
	online     bool
	importance string
	tags       []string
}

var fixtures = []fixture{
	// Monday
	{id: "evt_001", subject: "Weekly Standup - Product Team", day: 0, length: 30 * time.Minute,
		organizer: "manager@company.com", attendees: []string{"dev1@company.com", "dev2@company.com"},
		online: true, tags: []string{"Team Meeting"}},
	{id: "evt_002", subject: "Contoso Client - Requirements Review", day: 0, start: 2 * time.Hour, length: time.Hour,
		organizer: "you@company.com", attendees: []string{"client@contoso.com", "pm@company.com"},
		body: "Discuss requirements for Phase 2 implementation. Prepare demo.", online: true, importance: "high"},
	{id: "evt_003", subject: "Azure Architecture Review - Fabrikam", day: 0, start: 5 * time.Hour, length: 90 * time.Minute,
		organizer: "architect@fabrikam.com", attendees: []string{"you@company.com", "engineer@fabrikam.com"},
		body: "Review cloud migration architecture for Fabrikam's infrastructure.", location: "Teams", online: true},
	// Tuesday
	{id: "evt_004", subject: "1:1 with Manager", day: 1, start: time.Hour, length: 30 * time.Minute,
		organizer: "manager@company.com", attendees: []string{"you@company.com"},
		online: true, tags: []string{"1:1"}},
	{id: "evt_005", subject: "AdventureWorks - Sprint Planning", day: 1, start: 3 * time.Hour, length: 2 * time.Hour,
		organizer: "scrum@adventureworks.com", attendees: []string{"you@company.com", "dev@adventureworks.com", "po@adventureworks.com"},
		body: "Plan Sprint 12 for AdventureWorks CRM implementation", online: true, importance: "high"},
	{id: "evt_006", subject: "Internal: All Hands Meeting", day: 1, start: 6 * time.Hour, length: time.Hour,
		organizer: "ceo@company.com", body: "Quarterly company update and roadmap", online: true},
	// Wednesday
	{id: "evt_007", subject: "Contoso Technical Deep Dive", day: 2, start: 2 * time.Hour, length: 2 * time.Hour,
		organizer: "you@company.com", attendees: []string{"tech@contoso.com", "dev@contoso.com"},
		body: "Deep dive into API integration requirements for Contoso project", online: true},
	{id: "evt_008", subject: "Training: Azure AI Services", day: 2, start: 5 * time.Hour, length: 90 * time.Minute,
		organizer: "training@company.com", body: "Learn about new Azure OpenAI features",
		online: true, tags: []string{"Training"}},
	// Thursday
	{id: "evt_009", subject: "Fabrikam Project Status", day: 3, start: time.Hour, length: time.Hour,
		organizer: "pm@fabrikam.com", attendees: []string{"you@company.com", "stakeholder@fabrikam.com"},
		body: "Weekly status update for Fabrikam cloud migration", online: true},
	{id: "evt_010", subject: "Sales Demo - Northwind Traders", day: 3, start: 3 * time.Hour, length: time.Hour,
		organizer: "sales@company.com", attendees: []string{"you@company.com", "decision@northwind.com"},
		body: "Product demonstration for potential new client Northwind Traders", online: true, importance: "high"},
	{id: "evt_011", subject: "Code Review Session", day: 3, start: 5 * time.Hour, length: time.Hour,
		organizer: "you@company.com", attendees: []string{"junior@company.com"},
		body: "Review pull requests and provide mentoring", online: true, tags: []string{"Development"}},
	// Friday
	{id: "evt_012", subject: "AdventureWorks Sprint Review", day: 4, start: time.Hour, length: 90 * time.Minute,
		organizer: "po@adventureworks.com", attendees: []string{"you@company.com", "team@adventureworks.com"},
		body: "Demo completed work from Sprint 11", online: true},
	{id: "evt_013", subject: "Team Social Hour", day: 4, start: 4 * time.Hour, length: time.Hour,
		organizer: "team@company.com", body: "Virtual team social and games", online: true, tags: []string{"Social"}},
	{id: "evt_014", subject: "Focus Time - Documentation", day: 4, start: 5*time.Hour + 30*time.Minute, length: 90 * time.Minute,
		organizer: "you@company.com", body: "Catch up on project documentation", tags: []string{"Focus Time"}},
}

// Week returns the full fixture week for the week containing t.
func (m *MockSource) Week(t time.Time) []models.CalendarEvent {
	monday, _ := timecalc.WeekRange(t)
	base := monday.Add(9 * time.Hour)

	events := make([]models.CalendarEvent, 0, len(fixtures))
	for _, f := range fixtures {
		start := base.AddDate(0, 0, f.day).Add(f.start)
		events = append(events, models.CalendarEvent{
			ID:         f.id,
			Subject:    f.subject,
			Body:       f.body,
			Start:      start,
			End:        start.Add(f.length),
			Attendees:  dedupe(append([]string{f.organizer}, f.attendees...)),
			Tags:       append([]string(nil), f.tags...),
			Location:   f.location,
			Organizer:  f.organizer,
			Online:     f.online,
			Importance: f.importance,
		})
	}
	return events
}

func (m *MockSource) Events(ctx context.Context, from, to time.Time) ([]models.CalendarEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []models.CalendarEvent
	first := true
	for d := timecalc.StartOfDay(from); ; d = d.AddDate(0, 0, 7) {
		monday, _ := timecalc.WeekRange(d)
		if monday.After(to) {
			break
		}
		for _, ev := range m.Week(d) {
			if !inWindow(ev.Start, from, to) {
				continue
			}
			// Later weeks reuse the fixture ids, so qualify them.
			if !first {
				ev.ID += "@" + timecalc.ISOWeekLabel(monday)
			}
			out = append(out, ev)
		}
		first = false
	}
	SortEvents(out)
	return out, nil
}

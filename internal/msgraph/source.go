package msgraph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/emilianohg/umbrella/internal/calendar"
	"github.com/emilianohg/umbrella/internal/models"
)

// Source adapts a Graph client to calendar.Source.
type Source struct {
	client *Client
	loc    *time.Location
	log    logrus.FieldLogger
}

func NewSource(client *Client, loc *time.Location, logger logrus.FieldLogger) *Source {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = l
	}
	return &Source{client: client, loc: loc, log: logger}
}

func (s *Source) Events(ctx context.Context, from, to time.Time) ([]models.CalendarEvent, error) {
	tz := s.loc.String()
	if tz == "Local" {
		tz = ""
	}
	raw, err := s.client.GetCalendarView(ctx, from, to.Add(time.Second), tz)
	if err != nil {
		return nil, err
	}

	out := make([]models.CalendarEvent, 0, len(raw))
	for _, ge := range raw {
		if shouldSkip(ge) {
			continue
		}
		ev, err := MapEvent(ge, tz)
		if err != nil {
			s.log.WithFields(logrus.Fields{"meeting_id": ge.ID, "error": err}).Warn("skipping unreadable outlook event")
			continue
		}
		ev.Start, ev.End = ev.Start.In(s.loc), ev.End.In(s.loc)
		if ev.Start.Before(from) || ev.Start.After(to) {
			continue
		}
		out = append(out, ev)
	}
	calendar.SortEvents(out)
	return out, nil
}

// parseGraphTime parses a Graph API dateTime string in the given timezone.
// Graph returns times like "2026-02-27T09:00:00.0000000" without a zone suffix
// when a Prefer: outlook.timezone header is set.
func parseGraphTime(dt, tz string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, dt); err == nil {
		return t, nil
	}

	loc := time.UTC
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	for _, layout := range []string{
		"2006-01-02T15:04:05.0000000",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, dt, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse graph time %q", dt)
}

// shouldSkip drops events that never count as work time. Cancelled and
// all-day events are kept and flagged; the pipeline decides about them.
func shouldSkip(event CalendarEvent) bool {
	if event.Sensitivity == "private" {
		return true
	}
	if event.ShowAs == "free" {
		return true
	}
	return event.Start.DateTime == "" || event.End.DateTime == ""
}

// MapEvent converts a Graph event into the pipeline's event form. The
// organizer is listed first among the attendees.
func MapEvent(event CalendarEvent, timezone string) (models.CalendarEvent, error) {
	start, err := parseGraphTime(event.Start.DateTime, orZone(event.Start.TimeZone, timezone))
	if err != nil {
		return models.CalendarEvent{}, fmt.Errorf("parsing start time: %w", err)
	}
	end, err := parseGraphTime(event.End.DateTime, orZone(event.End.TimeZone, timezone))
	if err != nil {
		return models.CalendarEvent{}, fmt.Errorf("parsing end time: %w", err)
	}

	organizer := strings.ToLower(event.Organizer.EmailAddress.Address)
	attendees := []string{}
	seen := map[string]bool{}
	add := func(addr string) {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr == "" || seen[addr] {
			return
		}
		seen[addr] = true
		attendees = append(attendees, addr)
	}
	add(organizer)
	for _, a := range event.Attendees {
		if a.Type == "resource" {
			continue
		}
		add(a.EmailAddress.Address)
	}

	body := event.Body.Content
	if body == "" {
		body = event.BodyPreview
	}

	return models.CalendarEvent{
		ID:         event.ID,
		Subject:    event.Subject,
		Body:       body,
		Start:      start,
		End:        end,
		Attendees:  attendees,
		Tags:       append([]string(nil), event.Categories...),
		AllDay:     event.IsAllDay,
		Location:   event.Location.DisplayName,
		Organizer:  organizer,
		Online:     event.IsOnlineMeeting,
		Cancelled:  event.IsCancelled,
		Importance: event.Importance,
	}, nil
}

func orZone(eventZone, fallback string) string {
	if fallback != "" {
		return fallback
	}
	return eventZone
}

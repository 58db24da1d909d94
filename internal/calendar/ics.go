package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/emilianohg/umbrella/internal/models"
)

// maxOccurrences caps recurrence expansion per VEVENT.
const maxOccurrences = 5000

// ICSSource reads a local .ics file or an http(s) subscription URL and
// expands recurring events into the requested window.
type ICSSource struct {
	Location string
	loc      *time.Location
	client   *http.Client
}

func NewICSSource(location string, loc *time.Location) *ICSSource {
	if loc == nil {
		loc = time.Local
	}
	return &ICSSource{
		Location: location,
		loc:      loc,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// parsedEvent is one VEVENT before recurrence expansion.
type parsedEvent struct {
	uid        string
	summary    string
	body       string
	location   string
	organizer  string
	attendees  []string
	categories []string
	start      time.Time
	end        time.Time
	allDay     bool
	cancelled  bool
	importance string
	rrule      string
	exDates    []time.Time
	recurrence *time.Time
}

func (s *ICSSource) Events(ctx context.Context, from, to time.Time) ([]models.CalendarEvent, error) {
	body, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	parsed, err := parseICS(body, s.loc)
	if err != nil {
		return nil, err
	}
	events := expand(parsed, from, to, s.loc)
	SortEvents(events)
	return events, nil
}

func (s *ICSSource) read(ctx context.Context) ([]byte, error) {
	if strings.HasPrefix(s.Location, "http://") || strings.HasPrefix(s.Location, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Location, nil)
		if err != nil {
			return nil, err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch ics: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch ics: %s", resp.Status)
		}
		return io.ReadAll(resp.Body)
	}
	body, err := os.ReadFile(s.Location)
	if err != nil {
		return nil, fmt.Errorf("read ics: %w", err)
	}
	return body, nil
}

func parseICS(body []byte, loc *time.Location) ([]parsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	var events []parsedEvent
	var errs []error
	for _, ve := range cal.Events() {
		ev, err := parseVEvent(ve, loc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		events = append(events, ev)
	}
	if len(events) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return events, nil
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (parsedEvent, error) {
	var out parsedEvent

	out.uid = propValue(ve, ical.ComponentPropertyUniqueId)
	if out.uid == "" {
		return out, errors.New("vevent: missing UID")
	}
	out.summary = propValue(ve, ical.ComponentPropertySummary)
	out.body = propValue(ve, ical.ComponentPropertyDescription)
	out.location = propValue(ve, ical.ComponentPropertyLocation)
	out.organizer = emailAddress(propValue(ve, ical.ComponentPropertyOrganizer))
	out.cancelled = strings.EqualFold(propValue(ve, ical.ComponentPropertyStatus), "CANCELLED")
	out.rrule = propValue(ve, ical.ComponentPropertyRrule)

	switch propValue(ve, ical.ComponentPropertyPriority) {
	case "1", "2", "3", "4":
		out.importance = "high"
	case "6", "7", "8", "9":
		out.importance = "low"
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyAttendee) {
		out.attendees = append(out.attendees, emailAddress(p.Value))
	}
	out.attendees = dedupe(append([]string{out.organizer}, out.attendees...))

	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		for _, c := range strings.Split(p.Value, ",") {
			if c = strings.TrimSpace(c); c != "" {
				out.categories = append(out.categories, c)
			}
		}
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, fmt.Errorf("vevent %s: missing DTSTART", out.uid)
	}
	out.allDay = !strings.Contains(dtStart.Value, "T")
	if vs, ok := dtStart.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		out.allDay = true
	}

	if out.allDay {
		start, err := parseICSTime(dtStart.Value, loc)
		if err != nil {
			return out, fmt.Errorf("vevent %s: %w", out.uid, err)
		}
		out.start = start
		out.end = start.AddDate(0, 0, 1)
		if v := propValue(ve, ical.ComponentPropertyDtEnd); v != "" {
			if end, err := parseICSTime(v, loc); err == nil && end.After(start) {
				out.end = end
			}
		}
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return out, fmt.Errorf("vevent %s: %w", out.uid, err)
		}
		out.start = start
		out.end = start
		if end, err := ve.GetEndAt(); err == nil && !end.Before(start) {
			out.end = end
		}
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		exLoc := propLocation(p, loc)
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, exLoc); err == nil {
				out.exDates = append(out.exDates, t)
			}
		}
	}
	if rid := ve.GetProperty(ical.ComponentPropertyRecurrenceId); rid != nil {
		if t, err := parseICSTime(rid.Value, propLocation(rid, loc)); err == nil {
			out.recurrence = &t
		}
	}
	return out, nil
}

// propLocation returns the zone named by the property's TZID parameter, or
// fallback when it has none or names an unknown zone.
func propLocation(p *ical.IANAProperty, fallback *time.Location) *time.Location {
	ids := p.ICalParameters[string(ical.ParameterTzid)]
	if len(ids) == 0 {
		return fallback
	}
	tz, err := time.LoadLocation(strings.Trim(ids[0], `"`))
	if err != nil {
		return fallback
	}
	return tz
}

// parseICSTime parses the UTC, floating and date-only forms.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

func expand(parsed []parsedEvent, from, to time.Time, loc *time.Location) []models.CalendarEvent {
	overrides := make(map[string][]parsedEvent)
	var bases []parsedEvent
	for _, ev := range parsed {
		if ev.recurrence != nil {
			overrides[ev.uid] = append(overrides[ev.uid], ev)
			continue
		}
		bases = append(bases, ev)
	}

	var out []models.CalendarEvent
	for _, base := range bases {
		if base.rrule == "" {
			if inWindow(base.start, from, to) {
				out = append(out, toEvent(base, base.uid, base.start, base.end, loc))
			}
			continue
		}

		r, err := rrule.StrToRRule(base.rrule)
		if err != nil {
			continue
		}
		r.DTStart(base.start)
		var set rrule.Set
		set.RRule(r)
		for _, ex := range base.exDates {
			set.ExDate(ex.In(base.start.Location()))
		}

		starts := set.Between(from.In(base.start.Location()), to.In(base.start.Location()), true)
		if len(starts) > maxOccurrences {
			starts = starts[:maxOccurrences]
		}
		length := base.end.Sub(base.start)
		matched := make(map[int]bool)
		for _, occ := range starts {
			ev := base
			start, end := occ, occ.Add(length)
			if i := findOverride(overrides[base.uid], occ); i >= 0 {
				matched[i] = true
				ev = overrides[base.uid][i]
				start, end = ev.start, ev.end
			}
			if !inWindow(start, from, to) {
				continue
			}
			out = append(out, toEvent(ev, occurrenceID(base.uid, occ), start, end, loc))
		}

		// An instance moved into the window from outside it.
		for i, o := range overrides[base.uid] {
			if matched[i] || !inWindow(o.start, from, to) {
				continue
			}
			rid := o.recurrence.In(base.start.Location())
			if !set.After(rid, true).Equal(rid) {
				continue
			}
			out = append(out, toEvent(o, occurrenceID(base.uid, rid), o.start, o.end, loc))
		}
	}
	return out
}

func occurrenceID(uid string, occ time.Time) string {
	return uid + "_" + occ.UTC().Format("20060102T150405Z")
}

func findOverride(overrides []parsedEvent, start time.Time) int {
	for i, o := range overrides {
		if o.recurrence.Equal(start) {
			return i
		}
	}
	return -1
}

func toEvent(ev parsedEvent, id string, start, end time.Time, loc *time.Location) models.CalendarEvent {
	return models.CalendarEvent{
		ID:         id,
		Subject:    ev.summary,
		Body:       ev.body,
		Start:      start.In(loc),
		End:        end.In(loc),
		Attendees:  ev.attendees,
		Tags:       ev.categories,
		AllDay:     ev.allDay,
		Location:   ev.location,
		Organizer:  ev.organizer,
		Online:     strings.Contains(strings.ToLower(ev.location), "teams") || strings.Contains(strings.ToLower(ev.body), "join online"),
		Cancelled:  ev.cancelled,
		Importance: ev.importance,
	}
}

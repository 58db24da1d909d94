package calendar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"
)

// 2026-03-02 is a Monday.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func TestMockSourceWeek(t *testing.T) {
	from := monday
	to := monday.AddDate(0, 0, 6).Add(24*time.Hour - time.Second)

	events, err := NewMockSource().Events(context.Background(), from, to)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 14 {
		t.Fatalf("len(events) = %d, want 14", len(events))
	}

	total := 0.0
	for _, ev := range events {
		total += ev.Hours()
	}
	if total != 17 {
		t.Errorf("total hours = %v, want 17", total)
	}

	first := events[0]
	if first.ID != "evt_001" || !first.Start.Equal(monday.Add(9*time.Hour)) {
		t.Errorf("first event = %s at %v", first.ID, first.Start)
	}
	if first.Attendees[0] != "manager@company.com" {
		t.Errorf("organizer not merged into attendees: %v", first.Attendees)
	}

	last := events[len(events)-1]
	wantLast := monday.AddDate(0, 0, 4).Add(14*time.Hour + 30*time.Minute)
	if last.ID != "evt_014" || !last.Start.Equal(wantLast) {
		t.Errorf("last event = %s at %v, want evt_014 at %v", last.ID, last.Start, wantLast)
	}
}

func TestMockSourceFiltersWindow(t *testing.T) {
	// Tuesday only.
	from := monday.AddDate(0, 0, 1)
	to := from.Add(24*time.Hour - time.Second)

	events, err := NewMockSource().Events(context.Background(), from, to)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	var ids []string
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	if got := strings.Join(ids, ","); got != "evt_004,evt_005,evt_006" {
		t.Errorf("ids = %s", got)
	}
}

func TestMockSourceTwoWeeksUniqueIDs(t *testing.T) {
	events, err := NewMockSource().Events(context.Background(), monday, monday.AddDate(0, 0, 13))
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 28 {
		t.Fatalf("len(events) = %d, want 28", len(events))
	}
	seen := map[string]bool{}
	for _, ev := range events {
		if seen[ev.ID] {
			t.Errorf("duplicate id %s", ev.ID)
		}
		seen[ev.ID] = true
	}
}

const sampleICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//umbrella//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:single-1\r\n" +
	"DTSTAMP:20260301T120000Z\r\n" +
	"DTSTART:20260302T130000Z\r\n" +
	"DTEND:20260302T140000Z\r\n" +
	"SUMMARY:Fabrikam Project Status\r\n" +
	"ORGANIZER:mailto:PM@fabrikam.com\r\n" +
	"ATTENDEE;CN=You:mailto:you@company.com\r\n" +
	"CATEGORIES:Fabrikam,Status\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:standup\r\n" +
	"DTSTAMP:20260301T120000Z\r\n" +
	"DTSTART:20260302T090000Z\r\n" +
	"DTEND:20260302T091500Z\r\n" +
	"RRULE:FREQ=DAILY;COUNT=5\r\n" +
	"EXDATE:20260304T090000Z\r\n" +
	"SUMMARY:Daily Standup\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:offsite\r\n" +
	"DTSTAMP:20260301T120000Z\r\n" +
	"DTSTART;VALUE=DATE:20260305\r\n" +
	"DTEND;VALUE=DATE:20260306\r\n" +
	"SUMMARY:Offsite\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:cancelled-1\r\n" +
	"DTSTAMP:20260301T120000Z\r\n" +
	"DTSTART:20260303T150000Z\r\n" +
	"DTEND:20260303T160000Z\r\n" +
	"STATUS:CANCELLED\r\n" +
	"SUMMARY:Cancelled Review\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:next-week\r\n" +
	"DTSTAMP:20260301T120000Z\r\n" +
	"DTSTART:20260310T090000Z\r\n" +
	"DTEND:20260310T100000Z\r\n" +
	"SUMMARY:Out of window\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestICSSourceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.ics")
	if err := os.WriteFile(path, []byte(sampleICS), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewICSSource(path, time.UTC)
	events, err := src.Events(context.Background(), monday, monday.AddDate(0, 0, 7).Add(-time.Second))
	if err != nil {
		t.Fatalf("Events: %v", err)
	}

	byID := map[string]int{}
	standups := 0
	for i, ev := range events {
		byID[ev.ID] = i
		if strings.HasPrefix(ev.ID, "standup_") {
			standups++
		}
	}
	// 5 daily occurrences minus one EXDATE.
	if standups != 4 {
		t.Errorf("standup occurrences = %d, want 4", standups)
	}
	if _, ok := byID["standup_20260304T090000Z"]; ok {
		t.Errorf("excluded occurrence was expanded")
	}
	if _, ok := byID["next-week"]; ok {
		t.Errorf("event outside the window returned")
	}

	single := events[byID["single-1"]]
	if single.Subject != "Fabrikam Project Status" || single.Hours() != 1 {
		t.Errorf("single = %+v", single)
	}
	if strings.Join(single.Attendees, ",") != "pm@fabrikam.com,you@company.com" {
		t.Errorf("attendees = %v", single.Attendees)
	}
	if strings.Join(single.Tags, ",") != "Fabrikam,Status" {
		t.Errorf("tags = %v", single.Tags)
	}

	offsite := events[byID["offsite"]]
	if !offsite.AllDay || offsite.Hours() != 24 {
		t.Errorf("offsite = %+v", offsite)
	}
	if !events[byID["cancelled-1"]].Cancelled {
		t.Errorf("cancelled flag not set")
	}

	for i := 1; i < len(events); i++ {
		if events[i].Start.Before(events[i-1].Start) {
			t.Errorf("events not sorted at %d", i)
		}
	}
}

const zonedRecurrenceICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//umbrella//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:sync\r\n" +
	"DTSTAMP:20260201T120000Z\r\n" +
	"DTSTART;TZID=America/New_York:20260223T100000\r\n" +
	"DTEND;TZID=America/New_York:20260223T110000\r\n" +
	"RRULE:FREQ=WEEKLY;COUNT=3\r\n" +
	"EXDATE;TZID=America/New_York:20260302T100000\r\n" +
	"SUMMARY:Weekly Sync\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:sync\r\n" +
	"DTSTAMP:20260201T120000Z\r\n" +
	"RECURRENCE-ID;TZID=America/New_York:20260223T100000\r\n" +
	"DTSTART:20260303T160000Z\r\n" +
	"DTEND:20260303T170000Z\r\n" +
	"SUMMARY:Weekly Sync (moved)\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:sync\r\n" +
	"DTSTAMP:20260201T120000Z\r\n" +
	"RECURRENCE-ID;TZID=America/New_York:20260224T100000\r\n" +
	"DTSTART:20260304T160000Z\r\n" +
	"DTEND:20260304T170000Z\r\n" +
	"SUMMARY:Not an instance\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestICSSourceZonedRecurrence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zoned.ics")
	if err := os.WriteFile(path, []byte(zonedRecurrenceICS), 0o644); err != nil {
		t.Fatal(err)
	}

	events, err := NewICSSource(path, time.UTC).Events(context.Background(), monday, monday.AddDate(0, 0, 7).Add(-time.Second))
	if err != nil {
		t.Fatalf("Events: %v", err)
	}

	// The 2026-03-02 instance is excluded by a zoned EXDATE, the 2026-02-23
	// instance was moved into this week, and the 2026-02-24 override matches
	// no instance.
	if len(events) != 1 {
		t.Fatalf("events = %+v, want 1", events)
	}
	got := events[0]
	if got.ID != "sync_20260223T150000Z" {
		t.Errorf("ID = %v, want %v", got.ID, "sync_20260223T150000Z")
	}
	if got.Subject != "Weekly Sync (moved)" {
		t.Errorf("Subject = %v, want %v", got.Subject, "Weekly Sync (moved)")
	}
	if want := time.Date(2026, 3, 3, 16, 0, 0, 0, time.UTC); !got.Start.Equal(want) {
		t.Errorf("Start = %v, want %v", got.Start, want)
	}
}

func TestICSSourceURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(sampleICS))
	}))
	defer srv.Close()

	events, err := NewICSSource(srv.URL+"/cal.ics", time.UTC).Events(context.Background(), monday, monday.Add(10*time.Hour))
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 1 || events[0].ID != "standup_20260302T090000Z" {
		t.Errorf("events = %+v", events)
	}
}

func TestICSSourceErrors(t *testing.T) {
	if _, err := NewICSSource(filepath.Join(t.TempDir(), "missing.ics"), nil).Events(context.Background(), monday, monday); err == nil {
		t.Errorf("missing file accepted")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()
	if _, err := NewICSSource(srv.URL, nil).Events(context.Background(), monday, monday); err == nil {
		t.Errorf("non-200 response accepted")
	}
}

func TestNew(t *testing.T) {
	if _, err := New("mock", "", time.UTC); err != nil {
		t.Errorf("New(mock) = %v", err)
	}
	if _, err := New("ics", "", time.UTC); err == nil {
		t.Errorf("New(ics) without path accepted")
	}
	if _, err := New("caldav", "", time.UTC); err == nil {
		t.Errorf("New(caldav) accepted")
	}
}

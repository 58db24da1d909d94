package aggregate_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/emilianohg/umbrella/internal/aggregate"
	"github.com/emilianohg/umbrella/internal/models"
)

var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func pair(id string, dayOffset int, startHour, hours float64, customer, project *string, typ string) models.ClassifiedEvent {
	start := monday.AddDate(0, 0, dayOffset).Add(time.Duration(startHour * float64(time.Hour)))
	return models.ClassifiedEvent{
		Event: models.CalendarEvent{
			ID:    id,
			Start: start,
			End:   start.Add(time.Duration(hours * float64(time.Hour))),
		},
		Classification: models.Classification{Customer: customer, Project: project, MeetingType: typ},
	}
}

func weekPairs() []models.ClassifiedEvent {
	return []models.ClassifiedEvent{
		pair("e1", 0, 9, 0.5, nil, nil, "Standup"),
		pair("e2", 0, 11, 4, strPtr("Contoso"), strPtr("Phoenix"), "Planning"),
		pair("e3", 1, 10, 5, strPtr("Fabrikam"), nil, "Review"),
		pair("e4", 2, 13, 3.5, nil, strPtr("Internal Tools"), ""),
		pair("e5", 3, 9, 3.5, strPtr("Contoso"), nil, "Review"),
	}
}

func TestAggregateTotals(t *testing.T) {
	report, err := aggregate.Aggregate(weekPairs(), monday, monday.AddDate(0, 0, 7), 40)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if report.TotalHours != 16.5 {
		t.Errorf("TotalHours = %v, want 16.5", report.TotalHours)
	}
	if report.UnallocatedHours != 23.5 {
		t.Errorf("UnallocatedHours = %v, want 23.5", report.UnallocatedHours)
	}

	var typeSum float64
	for _, h := range report.ByType {
		typeSum += h
	}
	if math.Abs(typeSum-report.TotalHours) > 1e-6 {
		t.Errorf("sum(ByType) = %v, want %v", typeSum, report.TotalHours)
	}

	wantCustomers := map[string]float64{"Contoso": 7.5, "Fabrikam": 5}
	for name, want := range wantCustomers {
		if got := report.ByCustomer[name]; got != want {
			t.Errorf("ByCustomer[%q] = %v, want %v", name, got, want)
		}
	}
	if len(report.ByCustomer) != 2 {
		t.Errorf("ByCustomer has %d entries, want 2", len(report.ByCustomer))
	}
	if got := report.ByType[models.Uncategorized]; got != 3.5 {
		t.Errorf("ByType[Uncategorized] = %v, want 3.5", got)
	}
	if len(report.Events) != 5 {
		t.Errorf("Events = %d, want 5", len(report.Events))
	}
}

func TestAggregateUnallocatedNeverNegative(t *testing.T) {
	report, err := aggregate.Aggregate(weekPairs(), monday, monday.AddDate(0, 0, 7), 10)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if report.UnallocatedHours != 0 {
		t.Errorf("UnallocatedHours = %v, want 0", report.UnallocatedHours)
	}
}

func TestAggregateEmpty(t *testing.T) {
	report, err := aggregate.Aggregate(nil, monday, monday.AddDate(0, 0, 7), 40)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if report.TotalHours != 0 || report.UnallocatedHours != 40 {
		t.Errorf("got total %v unallocated %v", report.TotalHours, report.UnallocatedHours)
	}
	if pct := report.Percentage(5); pct != 0 {
		t.Errorf("Percentage with zero total = %v, want 0", pct)
	}
}

func TestAggregateRejectsInvertedEvent(t *testing.T) {
	bad := pair("bad", 0, 10, 1, nil, nil, "Standup")
	bad.Event.End = bad.Event.Start.Add(-time.Hour)

	_, err := aggregate.Aggregate([]models.ClassifiedEvent{bad}, monday, monday.AddDate(0, 0, 7), 40)
	var invalid *aggregate.InvalidEventError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidEventError", err)
	}
	if invalid.EventID != "bad" {
		t.Errorf("EventID = %q, want bad", invalid.EventID)
	}

	valid, errs := aggregate.Partition(append(weekPairs(), bad))
	if len(valid) != 5 || len(errs) != 1 {
		t.Errorf("Partition = %d valid, %d errors; want 5, 1", len(valid), len(errs))
	}
}

func TestAggregateIgnoresEventsOutsideWindow(t *testing.T) {
	pairs := append(weekPairs(), pair("late", 9, 9, 2, nil, nil, "Standup"))
	report, err := aggregate.Aggregate(pairs, monday, monday.AddDate(0, 0, 7), 40)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if report.TotalHours != 16.5 {
		t.Errorf("TotalHours = %v, want 16.5", report.TotalHours)
	}
}

func TestAggregateWithExtraHours(t *testing.T) {
	report, err := aggregate.Aggregate(weekPairs(), monday, monday.AddDate(0, 0, 7), 40,
		aggregate.WithExtraHours(map[string]float64{"e3": 0.5}))
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if report.TotalHours != 17 {
		t.Errorf("TotalHours = %v, want 17", report.TotalHours)
	}
	if report.ByCustomer["Fabrikam"] != 5.5 || report.ByType["Review"] != 9 {
		t.Errorf("extra hours not in parent buckets: %v %v", report.ByCustomer, report.ByType)
	}
}

func TestBucketsAndSummary(t *testing.T) {
	report, err := aggregate.Aggregate(weekPairs(), monday, monday.AddDate(0, 0, 7), 40)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	buckets := aggregate.Buckets(report, report.ByType)
	if buckets[0].Name != "Review" || buckets[0].Hours != 8.5 {
		t.Errorf("first bucket = %+v, want Review 8.5", buckets[0])
	}
	if buckets[1].Name != "Planning" || buckets[2].Name != models.Uncategorized {
		t.Errorf("tie order = %q, %q", buckets[1].Name, buckets[2].Name)
	}

	s := aggregate.Summarize(report)
	if s.MeetingCount != 5 || s.CustomerCount != 2 || s.TypeCount != 4 {
		t.Errorf("Summary = %+v", s)
	}
	if math.Abs(s.AverageHours-3.3) > 1e-9 {
		t.Errorf("AverageHours = %v, want 3.3", s.AverageHours)
	}
}

package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/emilianohg/umbrella/internal/models"
)

// InvalidEventError reports an event that cannot be aggregated.
type InvalidEventError struct {
	EventID string
	Reason  string
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("invalid event %s: %s", e.EventID, e.Reason)
}

type options struct {
	extra map[string]float64
}

type Option func(*options)

// WithExtraHours adds hours per meeting id to the event's own duration.
func WithExtraHours(extra map[string]float64) Option {
	return func(o *options) {
		o.extra = extra
	}
}

// Validate returns an InvalidEventError for events whose end precedes start.
func Validate(ev models.CalendarEvent) error {
	if ev.End.Before(ev.Start) {
		return &InvalidEventError{EventID: ev.ID, Reason: "end is before start"}
	}
	return nil
}

// Partition splits pairs into those Aggregate accepts and the errors for the rest.
func Partition(pairs []models.ClassifiedEvent) ([]models.ClassifiedEvent, []error) {
	valid := make([]models.ClassifiedEvent, 0, len(pairs))
	var errs []error
	for _, p := range pairs {
		if err := Validate(p.Event); err != nil {
			errs = append(errs, err)
			continue
		}
		valid = append(valid, p)
	}
	return valid, errs
}

// Aggregate sums event hours into customer, project and type buckets. Events
// starting outside [windowStart, windowEnd] are ignored.
func Aggregate(pairs []models.ClassifiedEvent, windowStart, windowEnd time.Time, expectedWorkHours float64, opts ...Option) (models.TimeAllocationReport, error) {
	if windowEnd.Before(windowStart) {
		return models.TimeAllocationReport{}, fmt.Errorf("window end %s is before start %s", windowEnd.Format(time.RFC3339), windowStart.Format(time.RFC3339))
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	report := models.TimeAllocationReport{
		WindowStart:       windowStart,
		WindowEnd:         windowEnd,
		ExpectedWorkHours: expectedWorkHours,
		ByCustomer:        make(map[string]float64),
		ByProject:         make(map[string]float64),
		ByType:            make(map[string]float64),
	}

	for _, p := range pairs {
		if err := Validate(p.Event); err != nil {
			return models.TimeAllocationReport{}, err
		}
		if p.Event.Start.Before(windowStart) || p.Event.Start.After(windowEnd) {
			continue
		}

		hours := p.Event.Hours() + o.extra[p.Event.ID]
		c := p.Classification
		report.TotalHours += hours
		if c.Customer != nil {
			report.ByCustomer[*c.Customer] += hours
		}
		if c.Project != nil {
			report.ByProject[*c.Project] += hours
		}
		typ := c.MeetingType
		if typ == "" {
			typ = models.Uncategorized
		}
		report.ByType[typ] += hours
		report.Events = append(report.Events, p)
	}

	report.UnallocatedHours = max(0, expectedWorkHours-report.TotalHours)
	return report, nil
}

type Bucket struct {
	Name       string
	Hours      float64
	Percentage float64
}

// Buckets orders a bucket map by hours, largest first, then by name.
func Buckets(report models.TimeAllocationReport, m map[string]float64) []Bucket {
	out := make([]Bucket, 0, len(m))
	for name, hours := range m {
		out = append(out, Bucket{Name: name, Hours: hours, Percentage: report.Percentage(hours)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hours != out[j].Hours {
			return out[i].Hours > out[j].Hours
		}
		return out[i].Name < out[j].Name
	})
	return out
}

type Summary struct {
	MeetingCount  int
	TotalHours    float64
	AverageHours  float64
	CustomerCount int
	ProjectCount  int
	TypeCount     int
}

func Summarize(report models.TimeAllocationReport) Summary {
	s := Summary{
		MeetingCount:  len(report.Events),
		TotalHours:    report.TotalHours,
		CustomerCount: len(report.ByCustomer),
		ProjectCount:  len(report.ByProject),
		TypeCount:     len(report.ByType),
	}
	if s.MeetingCount > 0 {
		s.AverageHours = report.TotalHours / float64(s.MeetingCount)
	}
	return s
}

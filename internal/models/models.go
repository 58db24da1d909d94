package models

import (
	"time"
)

// Sentinel meeting type names produced by the rule classifier.
const (
	Uncategorized   = "Uncategorized"
	InternalMeeting = "Internal Meeting"
)

// DefaultColor is used for customers and meeting types that declare none.
const DefaultColor = "#B2BEC3"

type CalendarEvent struct {
	ID         string
	Subject    string
	Body       string
	Start      time.Time
	End        time.Time
	Attendees  []string
	Tags       []string
	AllDay     bool
	Location   string
	Organizer  string
	Online     bool
	Cancelled  bool
	Importance string
}

func (e CalendarEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Hours returns the event duration in hours.
func (e CalendarEvent) Hours() float64 {
	return e.Duration().Hours()
}

type Customer struct {
	Name    string
	Aliases []string
	Domains []string
	Color   string
}

type ProjectKind string

const (
	ProjectKindCustomer ProjectKind = "customer"
	ProjectKindInternal ProjectKind = "internal"
)

type Project struct {
	Name     string
	Aliases  []string
	Customer *string // nil means internal
	Kind     ProjectKind
	Active   bool
}

type MeetingType struct {
	Name        string
	Description string
	Keywords    []string
	Priority    int
	Color       string
}

// Source marks which classifier produced a Classification.
type Source string

const (
	SourceRules  Source = "rules"
	SourceLLM    Source = "llm"
	SourceManual Source = "manual"
)

type Classification struct {
	Customer    *string
	Project     *string
	MeetingType string
	Confidence  float64
	Rationale   string
	Source      Source
}

// CustomerName returns the customer or an empty string.
func (c Classification) CustomerName() string {
	if c.Customer == nil {
		return ""
	}
	return *c.Customer
}

// ProjectName returns the project or an empty string.
func (c Classification) ProjectName() string {
	if c.Project == nil {
		return ""
	}
	return *c.Project
}

type ClassifiedEvent struct {
	Event          CalendarEvent
	Classification Classification
}

type Adjustment struct {
	MeetingID       string
	Original        Classification
	Updated         *Classification
	PrepMinutes     int
	FollowupMinutes int
	Note            string
	CreatedAt       time.Time
}

// Effective returns the updated classification when present, otherwise the original.
func (a Adjustment) Effective() Classification {
	if a.Updated != nil {
		return *a.Updated
	}
	return a.Original
}

// ExtraHours is the prep plus follow-up time in hours.
func (a Adjustment) ExtraHours() float64 {
	return float64(a.PrepMinutes+a.FollowupMinutes) / 60
}

type TimeAllocationReport struct {
	WindowStart       time.Time
	WindowEnd         time.Time
	ExpectedWorkHours float64
	TotalHours        float64
	ByCustomer        map[string]float64
	ByProject         map[string]float64
	ByType            map[string]float64
	UnallocatedHours  float64
	Events            []ClassifiedEvent
}

// Percentage returns hours as a share of the total, 0 when nothing was recorded.
func (r TimeAllocationReport) Percentage(hours float64) float64 {
	if r.TotalHours <= 0 {
		return 0
	}
	return hours / r.TotalHours * 100
}

type TargetKind string

const (
	TargetCustomer TargetKind = "customer"
	TargetProject  TargetKind = "project"
)

type FillEntry struct {
	Target     string
	Kind       TargetKind
	Percentage float64
	Hours      float64
}

type FillAllocation struct {
	BaseHours float64
	Entries   []FillEntry
}

func (f FillAllocation) TotalPercentage() float64 {
	var total float64
	for _, e := range f.Entries {
		total += e.Percentage
	}
	return total
}

func (f FillAllocation) TotalHours() float64 {
	var total float64
	for _, e := range f.Entries {
		total += e.Hours
	}
	return total
}

// FinalReport is the terminal output of a review session.
type FinalReport struct {
	Report         TimeAllocationReport
	Adjustments    []Adjustment
	Fill           FillAllocation
	CustomerTotals map[string]float64
	ProjectTotals  map[string]float64
	Cancelled      bool
}

// NewFinalReport wraps a report that was not reviewed: no adjustments, no fill.
func NewFinalReport(r TimeAllocationReport) FinalReport {
	customers := make(map[string]float64, len(r.ByCustomer))
	for k, v := range r.ByCustomer {
		customers[k] = v
	}
	projects := make(map[string]float64, len(r.ByProject))
	for k, v := range r.ByProject {
		projects[k] = v
	}
	return FinalReport{
		Report:         r,
		Fill:           FillAllocation{BaseHours: r.UnallocatedHours},
		CustomerTotals: customers,
		ProjectTotals:  projects,
	}
}

// AllocatedHours is the meeting time plus every filled hour.
func (f FinalReport) AllocatedHours() float64 {
	return f.Report.TotalHours + f.Fill.TotalHours()
}

// Package export writes finalized time allocations to CSV, JSON and XLSX.
package export

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/emilianohg/umbrella/internal/models"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts csv, json and xlsx in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want csv, json or xlsx)", s)
	}
}

func (f Format) Extension() string {
	return "." + string(f)
}

func Write(w io.Writer, f Format, fr models.FinalReport) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, fr)
	case FormatJSON:
		return WriteJSON(w, fr)
	case FormatXLSX:
		return WriteXLSX(w, fr)
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
}

// FileName is the default report file name for a window, e.g.
// "umbrella-2026-03-02_2026-03-08.csv".
func FileName(fr models.FinalReport, f Format) string {
	return fmt.Sprintf("umbrella-%s_%s%s",
		fr.Report.WindowStart.Format("2006-01-02"),
		fr.Report.WindowEnd.Format("2006-01-02"),
		f.Extension())
}

// Row kinds in the allocation table.
const (
	KindCustomer    = "customer"
	KindProject     = "project"
	KindType        = "type"
	KindUnallocated = "unallocated"
)

// Row is one line of the allocation table shared by every sink.
type Row struct {
	Kind       string  `json:"kind"`
	Name       string  `json:"name"`
	Hours      float64 `json:"hours"`
	Percentage float64 `json:"percentage"`
}

// Rows lists customer and project totals (fill included), meeting types and
// whatever remains unallocated. Percentages are of the expected work hours
// when known, otherwise of the allocated hours.
func Rows(fr models.FinalReport) []Row {
	base := fr.Report.ExpectedWorkHours
	if base <= 0 {
		base = fr.AllocatedHours()
	}
	pct := func(h float64) float64 {
		if base <= 0 {
			return 0
		}
		return round2(h / base * 100)
	}

	var rows []Row
	for _, kind := range []struct {
		name string
		m    map[string]float64
	}{
		{KindCustomer, fr.CustomerTotals},
		{KindProject, fr.ProjectTotals},
		{KindType, fr.Report.ByType},
	} {
		for _, b := range sorted(kind.m) {
			rows = append(rows, Row{Kind: kind.name, Name: b.name, Hours: round2(b.hours), Percentage: pct(b.hours)})
		}
	}

	if left := fr.Report.ExpectedWorkHours - fr.AllocatedHours(); left > 0.005 {
		rows = append(rows, Row{Kind: KindUnallocated, Name: "Unallocated", Hours: round2(left), Percentage: pct(left)})
	}
	return rows
}

type namedHours struct {
	name  string
	hours float64
}

func sorted(m map[string]float64) []namedHours {
	out := make([]namedHours, 0, len(m))
	for k, v := range m {
		out = append(out, namedHours{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].hours != out[j].hours {
			return out[i].hours > out[j].hours
		}
		return out[i].name < out[j].name
	})
	return out
}

// Meeting is one classified event as exported.
type Meeting struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Hours      float64   `json:"hours"`
	Customer   string    `json:"customer,omitempty"`
	Project    string    `json:"project,omitempty"`
	Type       string    `json:"type"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	Rationale  string    `json:"rationale"`
	Note       string    `json:"note,omitempty"`
	ExtraHours float64   `json:"extra_hours,omitempty"`
}

// Meetings lists events with their effective classification and any prep or
// follow-up time recorded during review.
func Meetings(fr models.FinalReport) []Meeting {
	adj := make(map[string]models.Adjustment, len(fr.Adjustments))
	for _, a := range fr.Adjustments {
		adj[a.MeetingID] = a
	}

	out := make([]Meeting, 0, len(fr.Report.Events))
	for _, ce := range fr.Report.Events {
		c := ce.Classification
		m := Meeting{
			ID:         ce.Event.ID,
			Subject:    ce.Event.Subject,
			Start:      ce.Event.Start,
			End:        ce.Event.End,
			Hours:      round2(ce.Event.Hours()),
			Customer:   c.CustomerName(),
			Project:    c.ProjectName(),
			Type:       c.MeetingType,
			Confidence: round2(c.Confidence),
			Source:     string(c.Source),
			Rationale:  c.Rationale,
		}
		if a, ok := adj[ce.Event.ID]; ok {
			m.Note = a.Note
			m.ExtraHours = round2(a.ExtraHours())
		}
		out = append(out, m)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

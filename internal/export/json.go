package export

import (
	"encoding/json"
	"io"
	"time"

	"github.com/emilianohg/umbrella/internal/models"
)

type jsonFill struct {
	Target     string  `json:"target"`
	Kind       string  `json:"kind"`
	Percentage float64 `json:"percentage"`
	Hours      float64 `json:"hours"`
}

type jsonReport struct {
	WindowStart       time.Time  `json:"window_start"`
	WindowEnd         time.Time  `json:"window_end"`
	ExpectedWorkHours float64    `json:"expected_work_hours"`
	MeetingHours      float64    `json:"meeting_hours"`
	AllocatedHours    float64    `json:"allocated_hours"`
	Cancelled         bool       `json:"cancelled"`
	Allocation        []Row      `json:"allocation"`
	FillBaseHours     float64    `json:"fill_base_hours"`
	Fill              []jsonFill `json:"fill"`
	Meetings          []Meeting  `json:"meetings"`
}

func WriteJSON(w io.Writer, fr models.FinalReport) error {
	doc := jsonReport{
		WindowStart:       fr.Report.WindowStart,
		WindowEnd:         fr.Report.WindowEnd,
		ExpectedWorkHours: fr.Report.ExpectedWorkHours,
		MeetingHours:      round2(fr.Report.TotalHours),
		AllocatedHours:    round2(fr.AllocatedHours()),
		Cancelled:         fr.Cancelled,
		Allocation:        Rows(fr),
		FillBaseHours:     round2(fr.Fill.BaseHours),
		Fill:              []jsonFill{},
		Meetings:          Meetings(fr),
	}
	for _, e := range fr.Fill.Entries {
		doc.Fill = append(doc.Fill, jsonFill{Target: e.Target, Kind: string(e.Kind), Percentage: e.Percentage, Hours: round2(e.Hours)})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

package classify

import (
	"math"
	"strings"
	"testing"

	"github.com/emilianohg/umbrella/internal/index"
	"github.com/emilianohg/umbrella/internal/models"
)

func strPtr(s string) *string { return &s }

func testIndex(t *testing.T) *index.Index {
	t.Helper()
	idx, err := index.Build(
		[]models.Customer{
			{Name: "Contoso Corporation", Aliases: []string{"Contoso"}, Domains: []string{"contoso.com"}},
			{Name: "Fabrikam", Domains: []string{"fabrikam.com"}},
			{Name: "AdventureWorks", Aliases: []string{"Adventure Works"}, Domains: []string{"adventureworks.com"}},
		},
		[]models.Project{
			{Name: "Phoenix", Aliases: []string{"PHX"}, Customer: strPtr("Fabrikam"), Active: true},
			{Name: "Cloud Migration", Customer: strPtr("Fabrikam"), Active: true},
		},
		[]models.MeetingType{
			{Name: "Standup", Keywords: []string{"standup", "daily"}, Priority: 10},
			{Name: "Planning", Keywords: []string{"planning"}, Priority: 5},
			{Name: "Review", Keywords: []string{"review", "planning"}, Priority: 1},
		},
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return idx
}

func name(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

func TestClassifyScenarios(t *testing.T) {
	rc := NewRuleClassifier(testIndex(t))

	tests := []struct {
		name       string
		in         Input
		customer   string
		project    string
		typ        string
		confidence float64
		minConf    bool
		rationale  string
	}{
		{
			name:       "bracket prefix alias",
			in:         Input{Subject: "[Contoso] Q1 Planning Session", Attendees: []string{"alice@contoso.com"}},
			customer:   "Contoso Corporation",
			project:    "<nil>",
			typ:        "Planning",
			confidence: 0.95,
			minConf:    true,
			rationale:  "customer matched by bracket prefix",
		},
		{
			name:       "colon prefix",
			in:         Input{Subject: "Fabrikam: kickoff"},
			customer:   "Fabrikam",
			project:    "<nil>",
			typ:        models.Uncategorized,
			confidence: 0.95,
			rationale:  "customer matched by subject prefix",
		},
		{
			name:       "dash prefix",
			in:         Input{Subject: "AdventureWorks - Sprint Planning"},
			customer:   "AdventureWorks",
			project:    "<nil>",
			typ:        "Planning",
			confidence: 0.95,
			rationale:  "customer matched by subject prefix",
		},
		{
			name:       "internal attendees only",
			in:         Input{Subject: "Quick sync", Attendees: []string{"bob@internal.com"}},
			customer:   "<nil>",
			project:    "<nil>",
			typ:        models.InternalMeeting,
			confidence: 0.4,
		},
		{
			name:       "no signal",
			in:         Input{},
			customer:   "<nil>",
			project:    "<nil>",
			typ:        models.Uncategorized,
			confidence: 0,
			rationale:  "no signal",
		},
		{
			name:       "attendee domain",
			in:         Input{Subject: "Weekly check-in", Attendees: []string{"me@company.com", "pm@fabrikam.com"}},
			customer:   "Fabrikam",
			project:    "<nil>",
			typ:        models.Uncategorized,
			confidence: 0.75,
			rationale:  "customer matched by attendee domain",
		},
		{
			name:       "exact mention is fuzzy 1.0",
			in:         Input{Subject: "Deep dive", Body: "API integration for Contoso"},
			customer:   "Contoso Corporation",
			project:    "<nil>",
			typ:        models.Uncategorized,
			confidence: 0.9,
		},
		{
			name:       "fuzzy plus domain boost is capped",
			in:         Input{Subject: "Contoso technical deep dive", Attendees: []string{"tech@contoso.com"}},
			customer:   "Contoso Corporation",
			project:    "<nil>",
			typ:        models.Uncategorized,
			confidence: 0.95,
			rationale:  "confirmed by attendee domain",
		},
		{
			name:       "calendar tag",
			in:         Input{Subject: "Catch up", Tags: []string{"fabrikam"}},
			customer:   "Fabrikam",
			project:    "<nil>",
			typ:        models.Uncategorized,
			confidence: 0.70,
			rationale:  "customer matched calendar tag",
		},
		{
			name:       "keyword priority",
			in:         Input{Subject: "Daily planning"},
			customer:   "<nil>",
			project:    "<nil>",
			typ:        "Standup",
			confidence: 0.7,
			rationale:  "type matched keyword 'daily'",
		},
		{
			name:       "project bracket does not override customer",
			in:         Input{Subject: "[Contoso] [PHX] status"},
			customer:   "Contoso Corporation",
			project:    "Phoenix",
			typ:        models.Uncategorized,
			confidence: 0.95,
			rationale:  `project "Phoenix" belongs to customer "Fabrikam"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rc.Classify(tt.in)
			if name(got.Customer) != tt.customer {
				t.Errorf("Customer = %q, want %q", name(got.Customer), tt.customer)
			}
			if name(got.Project) != tt.project {
				t.Errorf("Project = %q, want %q", name(got.Project), tt.project)
			}
			if got.MeetingType != tt.typ {
				t.Errorf("MeetingType = %q, want %q", got.MeetingType, tt.typ)
			}
			if tt.minConf {
				if got.Confidence < tt.confidence {
					t.Errorf("Confidence = %v, want >= %v", got.Confidence, tt.confidence)
				}
			} else if math.Abs(got.Confidence-tt.confidence) > 1e-9 {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.confidence)
			}
			if got.Source != models.SourceRules {
				t.Errorf("Source = %q, want rules", got.Source)
			}
			if tt.rationale != "" && !strings.Contains(got.Rationale, tt.rationale) {
				t.Errorf("Rationale = %q, want it to contain %q", got.Rationale, tt.rationale)
			}
		})
	}
}

func TestClassifyFuzzyConfidenceScale(t *testing.T) {
	rc := NewRuleClassifier(testIndex(t))
	// "fabrikan" differs from "fabrikam" by one edit out of eight.
	got := rc.Classify(Input{Subject: "Status with fabrikan team"})
	if name(got.Customer) != "Fabrikam" {
		t.Fatalf("Customer = %q, want Fabrikam", name(got.Customer))
	}
	want := 0.6 + 0.3*(0.875-0.8)/0.2
	if math.Abs(got.Confidence-want) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", got.Confidence, want)
	}
}

func TestFuzzyConfidenceBounds(t *testing.T) {
	tests := []struct {
		sim  float64
		want float64
	}{
		{0.8, 0.6},
		{0.9, 0.75},
		{1.0, 0.9},
	}
	for _, tt := range tests {
		if got := fuzzyConfidence(tt.sim); got != tt.want {
			t.Errorf("fuzzyConfidence(%v) = %v, want %v", tt.sim, got, tt.want)
		}
	}
}

func TestClassifyShortSubjectDoesNotMatchLongerName(t *testing.T) {
	idx, err := index.Build([]models.Customer{{Name: "Syncfusion"}}, nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rc := NewRuleClassifier(idx)

	if got := rc.Classify(Input{Subject: "Sync"}); got.Customer != nil {
		t.Errorf("Customer = %q for subject %q, want none", *got.Customer, "Sync")
	}
	if got := rc.Classify(Input{Subject: "Sync with Syncfusion"}); name(got.Customer) != "Syncfusion" || got.Confidence != 0.9 {
		t.Errorf("Classify = %q at %v, want Syncfusion at 0.9", name(got.Customer), got.Confidence)
	}
}

func TestClassifyFuzzyTieGoesToFirstCustomer(t *testing.T) {
	idx, err := index.Build([]models.Customer{
		{Name: "Northwind"},
		{Name: "Northwood"},
	}, nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	got := NewRuleClassifier(idx).Classify(Input{Subject: "call with northwond"})
	if name(got.Customer) != "Northwind" {
		t.Fatalf("Customer = %q, want Northwind", name(got.Customer))
	}
	if !strings.Contains(got.Rationale, `tied with "Northwood"`) {
		t.Errorf("Rationale = %q, want tie note", got.Rationale)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	rc := NewRuleClassifier(testIndex(t))
	in := Input{
		Subject:   "Fabrikam cloud migration review",
		Body:      "Phoenix next steps",
		Attendees: []string{"a@fabrikam.com"},
	}
	first := rc.Classify(in)
	for i := 0; i < 5; i++ {
		again := rc.Classify(in)
		if name(again.Customer) != name(first.Customer) ||
			name(again.Project) != name(first.Project) ||
			again.MeetingType != first.MeetingType ||
			again.Confidence != first.Confidence ||
			again.Rationale != first.Rationale {
			t.Fatalf("Classify not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestPartialRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"contoso", "meeting with CONTOSO team", 1},
		{"", "anything", 0},
		{"fabrikam", "fabrikan", 0.875},
		{"abc", "xyz", 0},
	}
	for _, tt := range tests {
		if got := PartialRatio(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("PartialRatio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

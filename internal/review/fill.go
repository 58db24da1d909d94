package review

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/emilianohg/umbrella/internal/models"
)

var hundred = decimal.NewFromInt(100)

type fillState struct {
	// base is the unallocated hours captured when the prompt opened. Every
	// entry's hours are computed against it.
	base      decimal.Decimal
	remaining decimal.Decimal
	entries   []models.FillEntry
}

// Target is something unallocated time can be assigned to.
type Target struct {
	Name string
	Kind models.TargetKind
}

func (t Target) Label() string {
	if t.Kind == models.TargetCustomer {
		return "[Customer] " + t.Name
	}
	return "[Project] " + t.Name
}

func (s *Session) enterFill() {
	report := s.Reaggregate()
	s.fill = fillState{
		base:      decimal.NewFromFloat(report.UnallocatedHours),
		remaining: hundred,
	}
	if !s.fill.base.IsPositive() {
		s.state = StateDone
		return
	}
	s.state = StateFillPrompt
}

// FillTargets lists customers then projects, the order used for numbered choices.
func (s *Session) FillTargets() []Target {
	var out []Target
	for _, c := range s.idx.Customers() {
		out = append(out, Target{Name: c.Name, Kind: models.TargetCustomer})
	}
	for _, p := range s.idx.Projects() {
		out = append(out, Target{Name: p.Name, Kind: models.TargetProject})
	}
	return out
}

// FillBase is the unallocated hours the fill prompt distributes.
func (s *Session) FillBase() float64 {
	return s.fill.base.InexactFloat64()
}

// FillRemaining is the percentage still available.
func (s *Session) FillRemaining() float64 {
	return s.fill.remaining.InexactFloat64()
}

func (s *Session) FillEntries() []models.FillEntry {
	out := make([]models.FillEntry, len(s.fill.entries))
	copy(out, s.fill.entries)
	return out
}

// AddFill assigns percentage of the original unallocated hours to target.
// Invalid input is rejected with an InputValidationError and changes nothing.
func (s *Session) AddFill(target, percentage string) error {
	if err := s.require("fill", StateFillPrompt); err != nil {
		return err
	}

	t, err := s.resolveTarget(strings.TrimSpace(target))
	if err != nil {
		return err
	}
	for _, e := range s.fill.entries {
		if e.Target == t.Name && e.Kind == t.Kind {
			return &InputValidationError{Field: "target", Input: target, Reason: "already allocated"}
		}
	}

	raw := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(percentage), "%"))
	pct, err := decimal.NewFromString(raw)
	if err != nil {
		return &InputValidationError{Field: "percentage", Input: percentage, Reason: "not a number"}
	}
	if !pct.IsPositive() {
		return &InputValidationError{Field: "percentage", Input: percentage, Reason: "must be greater than 0"}
	}
	if pct.GreaterThan(s.fill.remaining) {
		return &InputValidationError{
			Field:  "percentage",
			Input:  percentage,
			Reason: fmt.Sprintf("exceeds remaining %s%%", s.fill.remaining.String()),
		}
	}

	hours := s.fill.base.Mul(pct).Div(hundred)
	s.fill.entries = append(s.fill.entries, models.FillEntry{
		Target:     t.Name,
		Kind:       t.Kind,
		Percentage: pct.InexactFloat64(),
		Hours:      hours.InexactFloat64(),
	})
	s.fill.remaining = s.fill.remaining.Sub(pct)

	if len(s.fill.entries) >= s.opts.MaxFillEntries || !s.fill.remaining.IsPositive() {
		s.state = StateDone
	}
	return nil
}

// FinishFill ends the fill prompt, as an empty entry does.
func (s *Session) FinishFill() error {
	if err := s.require("finish fill", StateFillPrompt); err != nil {
		return err
	}
	s.state = StateDone
	return nil
}

func (s *Session) resolveTarget(input string) (Target, error) {
	if input == "" {
		return Target{}, &InputValidationError{Field: "target", Input: input, Reason: "empty"}
	}
	targets := s.FillTargets()
	if n, err := strconv.Atoi(input); err == nil {
		if n < 1 || n > len(targets) {
			return Target{}, &InputValidationError{Field: "target", Input: input, Reason: fmt.Sprintf("choose 1-%d", len(targets))}
		}
		return targets[n-1], nil
	}

	name := input
	kinds := []models.TargetKind{models.TargetCustomer, models.TargetProject}
	lower := strings.ToLower(input)
	switch {
	case strings.HasPrefix(lower, "[customer]"):
		name, kinds = strings.TrimSpace(input[len("[customer]"):]), kinds[:1]
	case strings.HasPrefix(lower, "[project]"):
		name, kinds = strings.TrimSpace(input[len("[project]"):]), kinds[1:]
	}

	for _, k := range kinds {
		switch k {
		case models.TargetCustomer:
			if c, ok := s.idx.Customer(name); ok {
				return Target{Name: c.Name, Kind: k}, nil
			}
		case models.TargetProject:
			if p, ok := s.idx.Project(name); ok {
				return Target{Name: p.Name, Kind: k}, nil
			}
		}
	}
	return Target{}, &InputValidationError{Field: "target", Input: input, Reason: "unknown customer or project"}
}

// Result merges the re-aggregated report, adjustments and fill. It is valid
// in any state, including after Cancel.
func (s *Session) Result() models.FinalReport {
	report := s.Reaggregate()

	fill := models.FillAllocation{
		BaseHours: s.fill.base.InexactFloat64(),
		Entries:   s.FillEntries(),
	}

	customers := make(map[string]float64, len(report.ByCustomer))
	for k, v := range report.ByCustomer {
		customers[k] = v
	}
	projects := make(map[string]float64, len(report.ByProject))
	for k, v := range report.ByProject {
		projects[k] = v
	}
	for _, e := range fill.Entries {
		if e.Kind == models.TargetCustomer {
			customers[e.Target] += e.Hours
		} else {
			projects[e.Target] += e.Hours
		}
	}

	return models.FinalReport{
		Report:         report,
		Adjustments:    s.Adjustments(),
		Fill:           fill,
		CustomerTotals: customers,
		ProjectTotals:  projects,
		Cancelled:      s.cancelled,
	}
}

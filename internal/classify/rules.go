// Package classify assigns customer, project and meeting type to calendar events.
package classify

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/emilianohg/umbrella/internal/index"
	"github.com/emilianohg/umbrella/internal/models"
)

const (
	prefixConfidence   = 0.95
	domainConfidence   = 0.75
	tagConfidence      = 0.70
	keywordConfidence  = 0.7
	internalConfidence = 0.4

	fuzzyThreshold = 0.80
	fuzzyFloor     = 0.6
	fuzzySpan      = 0.3
	domainBoost    = 0.1
)

// leadingBrackets matches one or more "[Name]" groups at the start of a subject.
var leadingBrackets = regexp.MustCompile(`^\s*((?:\[[^\]]*\]\s*)+)`)
var bracketGroup = regexp.MustCompile(`\[([^\]]*)\]`)

// Input is the part of a calendar event the rule classifier looks at.
type Input struct {
	Subject   string
	Body      string
	Attendees []string
	Tags      []string
}

func InputFromEvent(e models.CalendarEvent) Input {
	return Input{Subject: e.Subject, Body: e.Body, Attendees: e.Attendees, Tags: e.Tags}
}

// RuleClassifier is a pure function of its input and the index.
type RuleClassifier struct {
	idx *index.Index
}

func NewRuleClassifier(idx *index.Index) *RuleClassifier {
	return &RuleClassifier{idx: idx}
}

type fieldMatch struct {
	name       string
	confidence float64
	rationale  string
}

func (c *RuleClassifier) Classify(in Input) models.Classification {
	text := strings.ToLower(strings.TrimSpace(in.Subject + " " + in.Body))
	brackets := bracketNames(in.Subject)

	customer := c.detectCustomer(in, text, brackets)
	project := c.detectProject(in, text, brackets)
	meetingType := c.detectType(in, text)

	var notes []string
	result := models.Classification{
		MeetingType: meetingType.name,
		Source:      models.SourceRules,
	}

	if customer != nil {
		name := customer.name
		result.Customer = &name
		notes = append(notes, customer.rationale)
	}
	if project != nil {
		name := project.name
		result.Project = &name
		notes = append(notes, project.rationale)
		if p, ok := c.idx.Project(name); ok && p.Customer != nil && customer != nil {
			if bound, ok := c.idx.Customer(*p.Customer); ok && bound.Name != customer.name {
				notes = append(notes, fmt.Sprintf("project %q belongs to customer %q", p.Name, bound.Name))
			}
		}
	}
	if meetingType.rationale != "" {
		notes = append(notes, meetingType.rationale)
	}

	if customer != nil || project != nil {
		best := meetingType.confidence
		for _, m := range []*fieldMatch{customer, project} {
			if m != nil && m.confidence > best {
				best = m.confidence
			}
		}
		result.Confidence = best
	} else {
		result.Confidence = meetingType.confidence
	}

	if len(notes) == 0 {
		result.Rationale = "no signal"
	} else {
		result.Rationale = strings.Join(notes, "; ")
	}
	return result
}

func (c *RuleClassifier) detectCustomer(in Input, text string, brackets []string) *fieldMatch {
	for _, b := range brackets {
		if cust, ok := c.idx.Customer(b); ok {
			return &fieldMatch{name: cust.Name, confidence: prefixConfidence, rationale: "customer matched by bracket prefix"}
		}
	}
	for i, cust := range c.idx.Customers() {
		if hasNamePrefix(in.Subject, c.idx.CustomerKeys(i)) {
			return &fieldMatch{name: cust.Name, confidence: prefixConfidence, rationale: "customer matched by subject prefix"}
		}
	}

	if text != "" {
		candidates := make([][]string, len(c.idx.Customers()))
		for i := range candidates {
			candidates[i] = c.idx.CustomerKeys(i)
		}
		if pos, sim, tie := bestFuzzy(text, candidates); pos >= 0 {
			cust := c.idx.Customers()[pos]
			m := &fieldMatch{
				name:       cust.Name,
				confidence: fuzzyConfidence(sim),
				rationale:  fmt.Sprintf("customer fuzzy matched (%.2f)", sim),
			}
			if tie >= 0 {
				m.rationale += fmt.Sprintf(", tied with %q", c.idx.Customers()[tie].Name)
			}
			if c.attendeeCustomer(in.Attendees) == cust.Name {
				m.confidence = min(m.confidence+domainBoost, prefixConfidence)
				m.rationale += " and confirmed by attendee domain"
			}
			return m
		}
	}

	if name := c.attendeeCustomer(in.Attendees); name != "" {
		return &fieldMatch{name: name, confidence: domainConfidence, rationale: "customer matched by attendee domain"}
	}

	for _, tag := range in.Tags {
		if cust, ok := c.idx.Customer(tag); ok {
			return &fieldMatch{name: cust.Name, confidence: tagConfidence, rationale: "customer matched calendar tag"}
		}
	}
	return nil
}

func (c *RuleClassifier) detectProject(in Input, text string, brackets []string) *fieldMatch {
	for _, b := range brackets {
		if p, ok := c.idx.Project(b); ok {
			return &fieldMatch{name: p.Name, confidence: prefixConfidence, rationale: "project matched by bracket prefix"}
		}
	}
	for i, p := range c.idx.Projects() {
		if hasNamePrefix(in.Subject, c.idx.ProjectKeys(i)) {
			return &fieldMatch{name: p.Name, confidence: prefixConfidence, rationale: "project matched by subject prefix"}
		}
	}
	if text == "" {
		return nil
	}

	candidates := make([][]string, len(c.idx.Projects()))
	for i := range candidates {
		candidates[i] = c.idx.ProjectKeys(i)
	}
	pos, sim, tie := bestFuzzy(text, candidates)
	if pos < 0 {
		return nil
	}
	m := &fieldMatch{
		name:       c.idx.Projects()[pos].Name,
		confidence: fuzzyConfidence(sim),
		rationale:  fmt.Sprintf("project fuzzy matched (%.2f)", sim),
	}
	if tie >= 0 {
		m.rationale += fmt.Sprintf(", tied with %q", c.idx.Projects()[tie].Name)
	}
	return m
}

func (c *RuleClassifier) detectType(in Input, text string) fieldMatch {
	if text != "" {
		for _, t := range c.idx.MeetingTypes() {
			for _, kw := range t.Keywords {
				kw = strings.ToLower(strings.TrimSpace(kw))
				if kw != "" && strings.Contains(text, kw) {
					return fieldMatch{
						name:       t.Name,
						confidence: keywordConfidence,
						rationale:  fmt.Sprintf("type matched keyword '%s'", kw),
					}
				}
			}
		}
	}

	if len(in.Attendees) > 0 && c.attendeeCustomer(in.Attendees) == "" {
		return fieldMatch{
			name:       models.InternalMeeting,
			confidence: internalConfidence,
			rationale:  "type defaulted to internal: no customer attendees",
		}
	}
	return fieldMatch{name: models.Uncategorized}
}

// attendeeCustomer returns the customer of the first attendee whose domain is configured.
func (c *RuleClassifier) attendeeCustomer(attendees []string) string {
	for _, a := range attendees {
		if cust, ok := c.idx.CustomerForEmail(a); ok {
			return cust.Name
		}
	}
	return ""
}

// bestFuzzy returns the position of the best scoring candidate at or above the
// threshold, its similarity, and the position of a later candidate that tied
// (-1 if none). Earlier candidates win ties.
func bestFuzzy(text string, candidates [][]string) (int, float64, int) {
	bestPos, bestSim := -1, 0.0
	tie := -1
	textLen := utf8.RuneCountInString(text)
	for pos, keys := range candidates {
		sim := 0.0
		for _, k := range keys {
			// A key longer than the text would match any fragment of itself.
			if utf8.RuneCountInString(k) > textLen {
				continue
			}
			if s := PartialRatio(k, text); s > sim {
				sim = s
			}
		}
		if sim < fuzzyThreshold {
			continue
		}
		switch {
		case bestPos < 0 || sim > bestSim:
			bestPos, bestSim, tie = pos, sim, -1
		case sim == bestSim && tie < 0:
			tie = pos
		}
	}
	return bestPos, bestSim, tie
}

// fuzzyConfidence maps [0.8, 1] onto [0.6, 0.9], rounded to 4 places so the
// bounds are exact.
func fuzzyConfidence(sim float64) float64 {
	c := fuzzyFloor + fuzzySpan*(sim-fuzzyThreshold)/(1-fuzzyThreshold)
	return math.Round(c*1e4) / 1e4
}

func bracketNames(subject string) []string {
	m := leadingBrackets.FindStringSubmatch(subject)
	if m == nil {
		return nil
	}
	var names []string
	for _, g := range bracketGroup.FindAllStringSubmatch(m[1], -1) {
		if name := strings.TrimSpace(g[1]); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// hasNamePrefix reports whether subject starts with "Key:" or "Key -" for any key.
func hasNamePrefix(subject string, keys []string) bool {
	s := strings.ToLower(strings.TrimSpace(subject))
	for _, k := range keys {
		if !strings.HasPrefix(s, k) {
			continue
		}
		rest := s[len(k):]
		if strings.HasPrefix(rest, ":") {
			return true
		}
		trimmed := strings.TrimLeft(rest, " \t")
		if len(trimmed) < len(rest) && strings.HasPrefix(trimmed, "-") {
			return true
		}
	}
	return false
}

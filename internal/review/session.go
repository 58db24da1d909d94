// Package review implements the interactive correction and fill session that
// runs after aggregation. A Session is driven one operator action at a time,
// either by the TUI or by the line driver in Exec.
package review

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emilianohg/umbrella/internal/aggregate"
	"github.com/emilianohg/umbrella/internal/index"
	"github.com/emilianohg/umbrella/internal/models"
)

type State int

const (
	StateReviewing State = iota
	StateAwaitingAction
	StateEditing
	StateFillPrompt
	StateDone
)

func (s State) String() string {
	switch s {
	case StateReviewing:
		return "reviewing"
	case StateAwaitingAction:
		return "awaiting action"
	case StateEditing:
		return "editing"
	case StateFillPrompt:
		return "fill prompt"
	case StateDone:
		return "done"
	}
	return "unknown"
}

type Field int

const (
	FieldCustomer Field = iota
	FieldProject
	FieldType
	FieldPrep
	FieldFollowup
	FieldNote
)

func (f Field) String() string {
	switch f {
	case FieldCustomer:
		return "customer"
	case FieldProject:
		return "project"
	case FieldType:
		return "type"
	case FieldPrep:
		return "prep"
	case FieldFollowup:
		return "followup"
	case FieldNote:
		return "note"
	}
	return "unknown"
}

// InputValidationError is returned for operator input that was rejected. The
// session state is unchanged and the operator can retry.
type InputValidationError struct {
	Field  string
	Input  string
	Reason string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Input, e.Reason)
}

var (
	ErrSessionDone = errors.New("review session is complete")
	ErrWrongState  = errors.New("action not allowed in current state")
)

const (
	DefaultMaxFillEntries = 3
	maxExtraMinutes       = 24 * 60
)

type Options struct {
	// LowConfidenceOnly restricts review to events below Threshold.
	LowConfidenceOnly bool
	Threshold         float64
	MaxFillEntries    int
	Now               func() time.Time
}

type draft struct {
	classification models.Classification
	changed        bool
	prep           int
	followup       int
	note           string
}

type Session struct {
	idx   *index.Index
	base  models.TimeAllocationReport
	opts  Options
	state State

	queue []int
	pos   int
	field Field
	draft draft

	adjustments map[string]models.Adjustment
	order       []string

	fill      fillState
	cancelled bool
}

func NewSession(idx *index.Index, report models.TimeAllocationReport, opts Options) *Session {
	if opts.MaxFillEntries <= 0 {
		opts.MaxFillEntries = DefaultMaxFillEntries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Session{
		idx:         idx,
		base:        report,
		opts:        opts,
		adjustments: make(map[string]models.Adjustment),
	}
	for i, p := range report.Events {
		if opts.LowConfidenceOnly && p.Classification.Confidence >= opts.Threshold {
			continue
		}
		s.queue = append(s.queue, i)
	}

	if len(s.queue) == 0 {
		s.enterFill()
	} else {
		s.state = StateReviewing
	}
	return s
}

func (s *Session) State() State { return s.state }

// Field is the field being edited while in StateEditing.
func (s *Session) Field() Field { return s.field }

func (s *Session) Cancelled() bool { return s.cancelled }

// Position returns the 1-based position of the current event and the queue length.
func (s *Session) Position() (int, int) {
	return s.pos + 1, len(s.queue)
}

// Current returns the event under review with its effective classification.
func (s *Session) Current() (models.ClassifiedEvent, bool) {
	if !s.reviewing() {
		return models.ClassifiedEvent{}, false
	}
	p := s.base.Events[s.queue[s.pos]]
	if s.state != StateReviewing {
		p.Classification = s.draft.classification
	} else if adj, ok := s.adjustments[p.Event.ID]; ok {
		p.Classification = adj.Effective()
	}
	return p, true
}

// Pending returns the adjustment recorded so far for the current event.
func (s *Session) Pending() (models.Adjustment, bool) {
	cur, ok := s.Current()
	if !ok {
		return models.Adjustment{}, false
	}
	adj, ok := s.adjustments[cur.Event.ID]
	return adj, ok
}

func (s *Session) reviewing() bool {
	return s.state == StateReviewing || s.state == StateAwaitingAction || s.state == StateEditing
}

func (s *Session) require(action string, states ...State) error {
	if s.state == StateDone {
		return ErrSessionDone
	}
	for _, st := range states {
		if s.state == st {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s while %s", ErrWrongState, action, s.state)
}

// Open moves from Reviewing to AwaitingAction for the current event.
func (s *Session) Open() error {
	if err := s.require("open", StateReviewing); err != nil {
		return err
	}
	p := s.base.Events[s.queue[s.pos]]
	s.draft = draft{classification: p.Classification}
	if adj, ok := s.adjustments[p.Event.ID]; ok {
		s.draft = draft{
			classification: adj.Effective(),
			changed:        adj.Updated != nil,
			prep:           adj.PrepMinutes,
			followup:       adj.FollowupMinutes,
			note:           adj.Note,
		}
	}
	s.state = StateAwaitingAction
	return nil
}

// Accept records the current event as reviewed and moves to the next one.
func (s *Session) Accept() error {
	if err := s.require("accept", StateAwaitingAction); err != nil {
		return err
	}
	s.record()
	s.advance()
	return nil
}

// Skip moves to the next event without recording anything further.
func (s *Session) Skip() error {
	if err := s.require("skip", StateAwaitingAction); err != nil {
		return err
	}
	s.advance()
	return nil
}

func (s *Session) Edit(f Field) error {
	if err := s.require("edit", StateAwaitingAction); err != nil {
		return err
	}
	s.field = f
	s.state = StateEditing
	return nil
}

func (s *Session) CancelEdit() error {
	if err := s.require("cancel edit", StateEditing); err != nil {
		return err
	}
	s.state = StateAwaitingAction
	return nil
}

// Save applies value to the field being edited and records the adjustment.
// Rejected input leaves the session in StateEditing.
func (s *Session) Save(value string) error {
	if err := s.require("save", StateEditing); err != nil {
		return err
	}
	value = strings.TrimSpace(value)

	switch s.field {
	case FieldCustomer:
		c, err := s.parseCustomer(value)
		if err != nil {
			return err
		}
		s.override(func(cl *models.Classification) { cl.Customer = c })
	case FieldProject:
		p, err := s.parseProject(value)
		if err != nil {
			return err
		}
		s.override(func(cl *models.Classification) { cl.Project = p })
	case FieldType:
		t, err := s.parseType(value)
		if err != nil {
			return err
		}
		s.override(func(cl *models.Classification) { cl.MeetingType = t })
	case FieldPrep:
		m, err := parseMinutes("prep", value)
		if err != nil {
			return err
		}
		s.draft.prep = m
	case FieldFollowup:
		m, err := parseMinutes("followup", value)
		if err != nil {
			return err
		}
		s.draft.followup = m
	case FieldNote:
		s.draft.note = value
	}

	s.record()
	s.state = StateReviewing
	return nil
}

// EndReview stops reviewing early and moves to the fill prompt.
func (s *Session) EndReview() error {
	if err := s.require("end review", StateReviewing, StateAwaitingAction, StateEditing); err != nil {
		return err
	}
	s.enterFill()
	return nil
}

// Cancel ends the session. Everything collected so far is kept.
func (s *Session) Cancel() {
	if s.state == StateDone {
		return
	}
	s.cancelled = true
	s.state = StateDone
}

// Adjustments returns recorded adjustments in the order they were first made.
func (s *Session) Adjustments() []models.Adjustment {
	out := make([]models.Adjustment, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.adjustments[id])
	}
	return out
}

func (s *Session) override(apply func(*models.Classification)) {
	c := s.draft.classification
	apply(&c)
	c.Source = models.SourceManual
	c.Confidence = 1
	c.Rationale = "set by operator"
	s.draft.classification = c
	s.draft.changed = true
}

func (s *Session) record() {
	p := s.base.Events[s.queue[s.pos]]
	adj := models.Adjustment{
		MeetingID:       p.Event.ID,
		Original:        p.Classification,
		PrepMinutes:     s.draft.prep,
		FollowupMinutes: s.draft.followup,
		Note:            s.draft.note,
		CreatedAt:       s.opts.Now(),
	}
	if s.draft.changed {
		c := s.draft.classification
		adj.Updated = &c
	}
	if _, seen := s.adjustments[adj.MeetingID]; !seen {
		s.order = append(s.order, adj.MeetingID)
	}
	s.adjustments[adj.MeetingID] = adj
}

func (s *Session) advance() {
	s.pos++
	if s.pos >= len(s.queue) {
		s.enterFill()
		return
	}
	s.state = StateReviewing
}

// Reaggregate rebuilds the report with recorded overrides and prep and
// follow-up time applied.
func (s *Session) Reaggregate() models.TimeAllocationReport {
	if len(s.adjustments) == 0 {
		return s.base
	}
	pairs := make([]models.ClassifiedEvent, len(s.base.Events))
	extra := make(map[string]float64)
	for i, p := range s.base.Events {
		if adj, ok := s.adjustments[p.Event.ID]; ok {
			p.Classification = adj.Effective()
			extra[p.Event.ID] = adj.ExtraHours()
		}
		pairs[i] = p
	}
	report, err := aggregate.Aggregate(pairs, s.base.WindowStart, s.base.WindowEnd, s.base.ExpectedWorkHours, aggregate.WithExtraHours(extra))
	if err != nil {
		return s.base
	}
	return report
}

func (s *Session) parseCustomer(value string) (*string, error) {
	if isClear(value) {
		return nil, nil
	}
	customers := s.idx.Customers()
	if n, err := strconv.Atoi(value); err == nil {
		if n < 1 || n > len(customers) {
			return nil, &InputValidationError{Field: "customer", Input: value, Reason: fmt.Sprintf("choose 1-%d", len(customers))}
		}
		name := customers[n-1].Name
		return &name, nil
	}
	c, ok := s.idx.Customer(value)
	if !ok {
		return nil, &InputValidationError{Field: "customer", Input: value, Reason: "unknown customer"}
	}
	return &c.Name, nil
}

func (s *Session) parseProject(value string) (*string, error) {
	if isClear(value) {
		return nil, nil
	}
	projects := s.idx.Projects()
	if n, err := strconv.Atoi(value); err == nil {
		if n < 1 || n > len(projects) {
			return nil, &InputValidationError{Field: "project", Input: value, Reason: fmt.Sprintf("choose 1-%d", len(projects))}
		}
		name := projects[n-1].Name
		return &name, nil
	}
	p, ok := s.idx.Project(value)
	if !ok {
		return nil, &InputValidationError{Field: "project", Input: value, Reason: "unknown project"}
	}
	return &p.Name, nil
}

func (s *Session) parseType(value string) (string, error) {
	names := s.idx.TypeNames()
	if n, err := strconv.Atoi(value); err == nil {
		if n < 1 || n > len(names) {
			return "", &InputValidationError{Field: "type", Input: value, Reason: fmt.Sprintf("choose 1-%d", len(names))}
		}
		return names[n-1], nil
	}
	for _, name := range names {
		if index.Normalize(name) == index.Normalize(value) {
			return name, nil
		}
	}
	return "", &InputValidationError{Field: "type", Input: value, Reason: "unknown meeting type"}
}

func parseMinutes(field, value string) (int, error) {
	m, err := strconv.Atoi(value)
	if err != nil {
		return 0, &InputValidationError{Field: field, Input: value, Reason: "minutes must be a whole number"}
	}
	if m < 0 || m > maxExtraMinutes {
		return 0, &InputValidationError{Field: field, Input: value, Reason: fmt.Sprintf("minutes must be between 0 and %d", maxExtraMinutes)}
	}
	return m, nil
}

func isClear(value string) bool {
	v := strings.ToLower(value)
	return v == "none" || v == "-"
}

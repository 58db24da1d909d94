package screens

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/emilianohg/umbrella/internal/review"
)

var fieldKeys = map[string]review.Field{
	"c": review.FieldCustomer,
	"p": review.FieldProject,
	"t": review.FieldType,
	"r": review.FieldPrep,
	"f": review.FieldFollowup,
	"n": review.FieldNote,
}

var fieldPlaceholders = map[review.Field]string{
	review.FieldCustomer: "Customer name or alias, '-' to clear",
	review.FieldProject:  "Project name or alias, '-' to clear",
	review.FieldType:     "Meeting type",
	review.FieldPrep:     "Minutes of preparation",
	review.FieldFollowup: "Minutes of follow-up",
	review.FieldNote:     "Free text",
}

// Review walks the operator through the queued meetings.
type Review struct {
	session   *review.Session
	threshold float64
	width     int
	height    int

	input   textinput.Model
	err     error
	message string
}

func NewReview(session *review.Session, threshold float64) *Review {
	ti := textinput.New()
	ti.CharLimit = 200
	ti.Width = 50

	return &Review{
		session:   session,
		threshold: threshold,
		input:     ti,
	}
}

func (r *Review) SetSize(width, height int) {
	r.width = width
	r.height = height
}

func (r *Review) Init() tea.Cmd {
	r.err = nil
	r.message = ""
	return next(r.session)
}

func (r *Review) Update(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok {
		return r.handleKey(msg)
	}

	if r.session.State() == review.StateEditing {
		var cmd tea.Cmd
		r.input, cmd = r.input.Update(msg)
		return cmd
	}
	return nil
}

func (r *Review) handleKey(msg tea.KeyMsg) tea.Cmd {
	if r.session.State() == review.StateEditing {
		return r.handleInputKey(msg)
	}
	return r.handleActionKey(msg)
}

func (r *Review) handleActionKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	r.err = nil
	r.message = ""

	switch key {
	case "q", "esc":
		r.session.Cancel()
		return tea.Quit
	case "e":
		if err := r.session.EndReview(); err != nil {
			r.err = err
			return nil
		}
		return next(r.session)
	}

	if r.session.State() == review.StateReviewing {
		if err := r.session.Open(); err != nil {
			r.err = err
			return nil
		}
	}

	switch key {
	case "enter", "a":
		if err := r.session.Accept(); err != nil {
			r.err = err
		}
		return next(r.session)
	case "s":
		if err := r.session.Skip(); err != nil {
			r.err = err
		}
		return next(r.session)
	}

	field, ok := fieldKeys[key]
	if !ok {
		return nil
	}
	if err := r.session.Edit(field); err != nil {
		r.err = err
		return nil
	}
	r.input.SetValue("")
	r.input.Placeholder = fieldPlaceholders[field]
	return r.input.Focus()
}

func (r *Review) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		r.input.Blur()
		r.err = r.session.CancelEdit()
		return nil
	case "enter":
		field := r.session.Field()
		if err := r.session.Save(r.input.Value()); err != nil {
			r.err = err
			return nil
		}
		r.input.Blur()
		r.err = nil
		r.message = fmt.Sprintf("Updated %s", field)
		return nil
	}

	var cmd tea.Cmd
	r.input, cmd = r.input.Update(msg)
	return cmd
}

func (r *Review) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Review meetings"))
	b.WriteString("\n")

	cur, ok := r.session.Current()
	if !ok {
		b.WriteString(DimStyle.Render("Nothing left to review."))
		return b.String()
	}
	i, n := r.session.Position()
	b.WriteString(SubtitleStyle.Render(fmt.Sprintf("Meeting %d of %d", i, n)))
	b.WriteString("\n")

	ev := cur.Event
	var card strings.Builder
	card.WriteString(SelectedStyle.Render(ev.Subject))
	card.WriteString("\n")
	card.WriteString(NormalStyle.Render(fmt.Sprintf("%s - %s  (%.2fh)",
		ev.Start.Format("Mon Jan 2 15:04"), ev.End.Format("15:04"), ev.Hours())))
	if len(ev.Attendees) > 0 {
		card.WriteString("\n")
		card.WriteString(DimStyle.Render(strings.Join(ev.Attendees, ", ")))
	}
	card.WriteString("\n\n")

	c := cur.Classification
	card.WriteString(fmt.Sprintf("Customer:   %s\n", orDash(c.CustomerName())))
	card.WriteString(fmt.Sprintf("Project:    %s\n", orDash(c.ProjectName())))
	card.WriteString(fmt.Sprintf("Type:       %s\n", c.MeetingType))
	card.WriteString(fmt.Sprintf("Confidence: %s  %s",
		confidenceStyle(c.Confidence, r.threshold).Render(fmt.Sprintf("%.2f", c.Confidence)),
		DimStyle.Render(string(c.Source))))
	if c.Rationale != "" {
		card.WriteString("\n")
		card.WriteString(DimStyle.Render(c.Rationale))
	}

	if adj, ok := r.session.Pending(); ok {
		if adj.PrepMinutes > 0 || adj.FollowupMinutes > 0 {
			card.WriteString("\n")
			card.WriteString(WarningStyle.Render(fmt.Sprintf("+%dm prep, +%dm follow-up", adj.PrepMinutes, adj.FollowupMinutes)))
		}
		if adj.Note != "" {
			card.WriteString("\n")
			card.WriteString(DimStyle.Render("Note: " + adj.Note))
		}
	}
	b.WriteString(BoxStyle.Render(card.String()))
	b.WriteString("\n\n")

	if r.session.State() == review.StateEditing {
		b.WriteString(fmt.Sprintf("New %s: ", r.session.Field()))
		b.WriteString(r.input.View())
		b.WriteString("\n")
	}

	if r.err != nil {
		b.WriteString(ErrorStyle.Render("Error: " + r.err.Error()))
		b.WriteString("\n")
	}
	if r.message != "" {
		b.WriteString(SuccessStyle.Render(r.message))
		b.WriteString("\n")
	}

	if r.session.State() == review.StateEditing {
		b.WriteString(HelpStyle.Render("enter: save • esc: cancel"))
	} else {
		b.WriteString(HelpStyle.Render("enter: accept • s: skip • c/p/t: customer/project/type • r/f: prep/follow-up • n: note • e: end review • q: quit"))
	}

	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

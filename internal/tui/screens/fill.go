package screens

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/emilianohg/umbrella/internal/review"
	"github.com/emilianohg/umbrella/internal/timecalc"
)

type fillMode int

const (
	fillModeList fillMode = iota
	fillModePercent
)

// Fill distributes the unallocated hours over customers and projects.
type Fill struct {
	session *review.Session
	width   int
	height  int

	targets []review.Target
	cursor  int
	mode    fillMode
	input   textinput.Model
	err     error
}

func NewFill(session *review.Session) *Fill {
	ti := textinput.New()
	ti.Placeholder = "Percentage"
	ti.CharLimit = 6
	ti.Width = 10

	return &Fill{
		session: session,
		input:   ti,
	}
}

func (f *Fill) SetSize(width, height int) {
	f.width = width
	f.height = height
}

func (f *Fill) Init() tea.Cmd {
	f.targets = f.session.FillTargets()
	f.cursor = 0
	f.mode = fillModeList
	f.err = nil
	return nil
}

func (f *Fill) Update(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok {
		return f.handleKey(msg)
	}

	if f.mode == fillModePercent {
		var cmd tea.Cmd
		f.input, cmd = f.input.Update(msg)
		return cmd
	}
	return nil
}

func (f *Fill) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch f.mode {
	case fillModeList:
		return f.handleListKey(msg)
	case fillModePercent:
		return f.handleInputKey(msg)
	}
	return nil
}

func (f *Fill) handleListKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		if f.cursor > 0 {
			f.cursor--
		}
	case "down", "j":
		if f.cursor < len(f.targets)-1 {
			f.cursor++
		}
	case "enter":
		if len(f.targets) == 0 {
			return nil
		}
		f.mode = fillModePercent
		f.input.SetValue("")
		f.err = nil
		return f.input.Focus()
	case "d", "esc":
		if err := f.session.FinishFill(); err != nil {
			f.err = err
			return nil
		}
		return next(f.session)
	case "q":
		f.session.Cancel()
		return tea.Quit
	}
	return nil
}

func (f *Fill) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		f.mode = fillModeList
		f.input.Blur()
		f.err = nil
		return nil
	case "enter":
		if err := f.session.AddFill(strconv.Itoa(f.cursor+1), f.input.Value()); err != nil {
			f.err = err
			return nil
		}
		f.mode = fillModeList
		f.input.Blur()
		f.err = nil
		if f.session.State() == review.StateFillPrompt {
			return nil
		}
		return next(f.session)
	}

	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return cmd
}

func (f *Fill) allocated(t review.Target) (float64, bool) {
	for _, e := range f.session.FillEntries() {
		if e.Target == t.Name && e.Kind == t.Kind {
			return e.Percentage, true
		}
	}
	return 0, false
}

func (f *Fill) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Fill unallocated time"))
	b.WriteString("\n")
	hours := timecalc.FormatHours(f.session.FillBase())
	b.WriteString(SubtitleStyle.Render(fmt.Sprintf("%s unallocated • %.0f%% remaining", hours, f.session.FillRemaining())))
	b.WriteString("\n")

	for i, t := range f.targets {
		cursor := "  "
		style := NormalStyle
		if i == f.cursor {
			cursor = "> "
			style = SelectedStyle
		}
		line := cursor + t.Label()
		if pct, ok := f.allocated(t); ok {
			line += DimStyle.Render(fmt.Sprintf("  %.0f%%", pct))
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}

	if f.mode == fillModePercent && f.cursor < len(f.targets) {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("Percentage for %s: ", f.targets[f.cursor].Name))
		b.WriteString(f.input.View())
		b.WriteString("\n")
	}

	if f.err != nil {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("Error: " + f.err.Error()))
		b.WriteString("\n")
	}

	if f.mode == fillModePercent {
		b.WriteString(HelpStyle.Render("enter: allocate • esc: back"))
	} else {
		b.WriteString(HelpStyle.Render("↑/↓: navigate • enter: allocate • d: done • q: quit"))
	}

	return b.String()
}

// Package tui is the interactive review front end.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/emilianohg/umbrella/internal/models"
	"github.com/emilianohg/umbrella/internal/review"
	"github.com/emilianohg/umbrella/internal/tui/screens"
)

type Screen int

const (
	ScreenReview Screen = iota
	ScreenFill
	ScreenSummary
)

// Options configure the review program.
type Options struct {
	// Threshold is the confidence under which a classification is flagged.
	Threshold float64
	// Colors maps customer and meeting type names to hex colors.
	Colors map[string]string
}

type App struct {
	session       *review.Session
	opts          Options
	currentScreen Screen
	width         int
	height        int

	// Screen models
	review  *screens.Review
	fill    *screens.Fill
	summary *screens.Summary
}

func NewApp(session *review.Session, opts Options) *App {
	return &App{
		session:       session,
		opts:          opts,
		currentScreen: ScreenReview,
		review:        screens.NewReview(session, opts.Threshold),
		fill:          screens.NewFill(session),
		summary:       screens.NewSummary(session, opts.Colors),
	}
}

func (a *App) Init() tea.Cmd {
	return a.review.Init()
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			a.session.Cancel()
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.review.SetSize(msg.Width, msg.Height)
		a.fill.SetSize(msg.Width, msg.Height)
		a.summary.SetSize(msg.Width, msg.Height)

	case screens.NavigateMsg:
		return a.handleNavigation(msg)
	}

	// Update current screen
	var cmd tea.Cmd
	switch a.currentScreen {
	case ScreenReview:
		cmd = a.review.Update(msg)
	case ScreenFill:
		cmd = a.fill.Update(msg)
	case ScreenSummary:
		cmd = a.summary.Update(msg)
	}

	return a, cmd
}

func (a *App) handleNavigation(msg screens.NavigateMsg) (tea.Model, tea.Cmd) {
	switch msg.Screen {
	case "review":
		a.currentScreen = ScreenReview
		return a, a.review.Init()
	case "fill":
		a.currentScreen = ScreenFill
		return a, a.fill.Init()
	case "summary":
		a.currentScreen = ScreenSummary
		return a, a.summary.Init()
	}
	return a, nil
}

func (a *App) View() string {
	var content string

	switch a.currentScreen {
	case ScreenReview:
		content = a.review.View()
	case ScreenFill:
		content = a.fill.View()
	case ScreenSummary:
		content = a.summary.View()
	}

	return lipgloss.NewStyle().
		Width(a.width).
		Height(a.height).
		Render(content)
}

// Run drives session interactively and returns its result. The result is
// returned even when the operator cancels.
func Run(session *review.Session, opts Options) (models.FinalReport, error) {
	app := NewApp(session, opts)
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return models.FinalReport{}, err
	}
	return session.Result(), nil
}

// RenderReport renders fr as a terminal table.
func RenderReport(fr models.FinalReport, colors map[string]string) string {
	return screens.ReportTable(fr, colors)
}

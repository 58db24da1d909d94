package screens

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/emilianohg/umbrella/internal/export"
	"github.com/emilianohg/umbrella/internal/models"
	"github.com/emilianohg/umbrella/internal/review"
	"github.com/emilianohg/umbrella/internal/timecalc"
)

// Summary shows the final allocation once review and fill are over.
type Summary struct {
	session *review.Session
	colors  map[string]string
	width   int
	height  int
}

func NewSummary(session *review.Session, colors map[string]string) *Summary {
	return &Summary{session: session, colors: colors}
}

func (s *Summary) SetSize(width, height int) {
	s.width = width
	s.height = height
}

func (s *Summary) Init() tea.Cmd {
	return nil
}

func (s *Summary) Update(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "q", "esc", "enter":
			return tea.Quit
		}
	}
	return nil
}

func (s *Summary) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Time allocation"))
	b.WriteString("\n")
	b.WriteString(ReportTable(s.session.Result(), s.colors))
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("enter/q: finish"))
	return b.String()
}

var kindLabels = map[string]string{
	export.KindCustomer:    "Customer",
	export.KindProject:     "Project",
	export.KindType:        "Type",
	export.KindUnallocated: "",
}

// ReportTable renders fr as a terminal table. colors maps customer and
// meeting type names to hex colors.
func ReportTable(fr models.FinalReport, colors map[string]string) string {
	rows := export.Rows(fr)
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			kindLabels[r.Kind],
			r.Name,
			timecalc.FormatHours(r.Hours),
			fmt.Sprintf("%.1f%%", r.Percentage),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("62"))).
		Headers("KIND", "NAME", "HOURS", "SHARE").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return style.Bold(true).Foreground(lipgloss.Color("205"))
			}
			if row < 0 || row >= len(rows) {
				return style
			}
			if col >= 2 {
				style = style.Align(lipgloss.Right)
			}
			r := rows[row]
			if r.Kind == export.KindUnallocated {
				return style.Foreground(lipgloss.Color("214"))
			}
			if col == 1 {
				if c, ok := colors[r.Name]; ok && c != "" {
					return style.Foreground(lipgloss.Color(c))
				}
			}
			return style
		})

	var b strings.Builder
	report := fr.Report
	b.WriteString(SubtitleStyle.Render(fmt.Sprintf("%s to %s (%s)",
		report.WindowStart.Format("Mon Jan 2"), report.WindowEnd.Format("Mon Jan 2"), timecalc.ISOWeekLabel(report.WindowStart))))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Meetings:  %d (%s)\n", len(report.Events), timecalc.FormatHours(report.TotalHours)))
	b.WriteString(fmt.Sprintf("Expected:  %s\n", timecalc.FormatHours(report.ExpectedWorkHours)))
	b.WriteString(fmt.Sprintf("Allocated: %s\n", timecalc.FormatHours(fr.AllocatedHours())))
	if fr.Cancelled {
		b.WriteString(WarningStyle.Render("Review was cancelled; totals include edits made before cancelling."))
		b.WriteString("\n")
	}
	b.WriteString(t.String())
	b.WriteString("\n")
	return b.String()
}

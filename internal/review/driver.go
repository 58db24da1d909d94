package review

import (
	"fmt"
	"strings"

	"github.com/emilianohg/umbrella/internal/models"
)

var editCommands = map[string]Field{
	"c":      FieldCustomer,
	"p":      FieldProject,
	"t":      FieldType,
	"prep":   FieldPrep,
	"follow": FieldFollowup,
	"note":   FieldNote,
}

// Exec applies one line of operator input. Commands while reviewing:
//
//	ok | skip | c VALUE | p VALUE | t VALUE | prep MIN | follow MIN | note TEXT | end | quit
//
// At the fill prompt a line is "TARGET PERCENT"; an empty line finishes.
func Exec(s *Session, line string) error {
	line = strings.TrimSpace(line)
	if isQuit(line) {
		s.Cancel()
		return nil
	}

	switch s.State() {
	case StateDone:
		return ErrSessionDone

	case StateEditing:
		if line == "" {
			return s.CancelEdit()
		}
		return s.Save(line)

	case StateReviewing, StateAwaitingAction:
		return execReview(s, line)

	case StateFillPrompt:
		if line == "" {
			return s.FinishFill()
		}
		cut := strings.LastIndexAny(line, " \t")
		if cut < 0 {
			return &InputValidationError{Field: "fill", Input: line, Reason: "expected TARGET PERCENT"}
		}
		return s.AddFill(line[:cut], line[cut+1:])
	}
	return nil
}

func execReview(s *Session, line string) error {
	cmd, arg, _ := strings.Cut(line, " ")
	cmd = strings.ToLower(cmd)
	arg = strings.TrimSpace(arg)

	if cmd == "end" || cmd == "done" {
		return s.EndReview()
	}
	if s.State() == StateReviewing {
		if err := s.Open(); err != nil {
			return err
		}
	}

	switch cmd {
	case "", "ok", "a", "accept":
		return s.Accept()
	case "s", "skip":
		return s.Skip()
	}

	field, ok := editCommands[cmd]
	if !ok {
		return &InputValidationError{Field: "action", Input: line, Reason: "unknown command"}
	}
	if err := s.Edit(field); err != nil {
		return err
	}
	if err := s.Save(arg); err != nil {
		_ = s.CancelEdit()
		return err
	}
	return nil
}

func isQuit(line string) bool {
	switch strings.ToLower(line) {
	case "q", "quit", "cancel":
		return true
	}
	return false
}

// Prompt describes what the session expects next, for line-oriented use.
func Prompt(s *Session) string {
	var b strings.Builder
	switch s.State() {
	case StateReviewing, StateAwaitingAction:
		cur, _ := s.Current()
		i, n := s.Position()
		fmt.Fprintf(&b, "[%d/%d] %s  %s (%.2fh)\n", i, n, cur.Event.Start.Format("Mon 15:04"), cur.Event.Subject, cur.Event.Hours())
		fmt.Fprintf(&b, "  %s\n", describe(cur.Classification))
		if adj, ok := s.Pending(); ok && (adj.PrepMinutes > 0 || adj.FollowupMinutes > 0) {
			fmt.Fprintf(&b, "  +%dm prep, +%dm follow-up\n", adj.PrepMinutes, adj.FollowupMinutes)
		}
		b.WriteString("action [ok/skip/c/p/t/prep/follow/note/end/quit]: ")
	case StateEditing:
		fmt.Fprintf(&b, "new %s: ", s.Field())
	case StateFillPrompt:
		fmt.Fprintf(&b, "%.2fh unallocated, %.0f%% remaining\n", s.FillBase(), s.FillRemaining())
		for i, t := range s.FillTargets() {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, t.Label())
		}
		b.WriteString("target and percentage (empty to finish): ")
	}
	return b.String()
}

func describe(c models.Classification) string {
	customer, project := c.CustomerName(), c.ProjectName()
	if customer == "" {
		customer = "-"
	}
	if project == "" {
		project = "-"
	}
	return fmt.Sprintf("customer: %s, project: %s, type: %s (%.2f, %s)", customer, project, c.MeetingType, c.Confidence, c.Source)
}

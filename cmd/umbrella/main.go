package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/emilianohg/umbrella/internal/config"
	"github.com/emilianohg/umbrella/internal/db"
	"github.com/emilianohg/umbrella/internal/export"
	"github.com/emilianohg/umbrella/internal/log"
	"github.com/emilianohg/umbrella/internal/models"
	"github.com/emilianohg/umbrella/internal/msgraph"
	"github.com/emilianohg/umbrella/internal/repository"
	"github.com/emilianohg/umbrella/internal/review"
	"github.com/emilianohg/umbrella/internal/taxonomy"
	"github.com/emilianohg/umbrella/internal/timecalc"
	"github.com/emilianohg/umbrella/internal/tui"
)

var rootCmd = &cobra.Command{
	Use:   "umbrella",
	Short: "Meeting classification and time allocation",
	Long: `Umbrella reads a week of calendar events, classifies each meeting by customer,
project and meeting type, and reports where the working hours went.

Running umbrella without a subcommand starts the interactive review.`,
	Run: runReview,
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review classifications and fill unallocated time",
	Run:   runReview,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print or export the allocation without reviewing",
	Long: `Classify and aggregate a week and write the report.

Examples:
  umbrella report                          # This week as a table
  umbrella report --week last -f csv       # Last week into the reports directory
  umbrella report --week 2026-03-02 -f xlsx -o week.xlsx`,
	Run: func(cmd *cobra.Command, args []string) {
		e := mustSetup()
		from, to := mustWeek(cmd, e)

		res, err := e.run(cmd.Context(), from, to)
		if err != nil {
			fail(err)
		}
		if len(res.Invalid) > 0 {
			fmt.Fprintf(os.Stderr, "Skipped %d invalid events\n", len(res.Invalid))
		}
		finish(cmd, e, models.NewFinalReport(res.Report))
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "List how each meeting of the week was classified",
	Run: func(cmd *cobra.Command, args []string) {
		e := mustSetup()
		from, to := mustWeek(cmd, e)

		res, err := e.run(cmd.Context(), from, to)
		if err != nil {
			fail(err)
		}

		rows := make([][]string, 0, len(res.Report.Events))
		for _, p := range res.Report.Events {
			c := p.Classification
			rows = append(rows, []string{
				p.Event.Start.Format("Mon 15:04"),
				p.Event.Subject,
				orDash(c.CustomerName()),
				orDash(c.ProjectName()),
				c.MeetingType,
				fmt.Sprintf("%.2f", c.Confidence),
				string(c.Source),
			})
		}
		fmt.Println(plainTable([]string{"WHEN", "SUBJECT", "CUSTOMER", "PROJECT", "TYPE", "CONF", "SOURCE"}, rows))
		fmt.Printf("%d meetings, %s\n", len(res.Report.Events), timecalc.FormatHours(res.Report.TotalHours))
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived report runs",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")

		if _, err := config.Load(); err != nil {
			fail(err)
		}
		conn, err := db.OpenAndMigrate()
		if err != nil {
			fail(err)
		}
		defer db.Close()

		runs, err := repository.NewReportRepo(conn).List(limit)
		if err != nil {
			fail(err)
		}
		if len(runs) == 0 {
			fmt.Println("No archived reports yet.")
			return
		}

		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			status := "final"
			if r.Cancelled {
				status = "cancelled"
			}
			rows = append(rows, []string{
				r.ID[:8],
				timecalc.ISOWeekLabel(r.WindowStart),
				fmt.Sprintf("%d", r.MeetingCount),
				timecalc.FormatHours(r.MeetingHours),
				timecalc.FormatHours(r.AllocatedHours),
				r.CreatedAt.Local().Format("2006-01-02 15:04"),
				status,
			})
		}
		fmt.Println(plainTable([]string{"RUN", "WEEK", "MEETINGS", "MEETING TIME", "ALLOCATED", "CREATED", "STATUS"}, rows))
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage settings and taxonomy",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write default settings and the sample taxonomy",
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")

		path, err := config.ConfigPath()
		if err != nil {
			fail(err)
		}
		if _, err := os.Stat(path); err == nil && !force {
			fmt.Printf("Settings already exist at %s (use --force to overwrite)\n", path)
		} else {
			if err := config.EnsureDirectories(); err != nil {
				fail(err)
			}
			if err := config.Save(config.DefaultConfig()); err != nil {
				fail(err)
			}
			fmt.Printf("Wrote %s\n", path)
		}

		cfg, err := config.LoadFile(path)
		if err != nil {
			fail(err)
		}
		if _, err := os.Stat(cfg.TaxonomyDir); err == nil && !force {
			fmt.Printf("Taxonomy already exists in %s\n", cfg.TaxonomyDir)
			return
		}
		if err := taxonomy.Save(cfg.TaxonomyDir, taxonomy.Default()); err != nil {
			fail(err)
		}
		fmt.Printf("Wrote sample taxonomy to %s\n", cfg.TaxonomyDir)
	},
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect and migrate the report archive",
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the archive schema version",
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := config.Load(); err != nil {
			fail(err)
		}
		if _, err := db.Open(); err != nil {
			fail(err)
		}
		defer db.Close()

		status, err := db.Status()
		if err != nil {
			fail(err)
		}
		fmt.Println(status)
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending archive migrations",
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := config.Load(); err != nil {
			fail(err)
		}
		if _, err := db.Open(); err != nil {
			fail(err)
		}
		defer db.Close()

		if err := db.Migrate(); err != nil {
			fail(err)
		}
		status, err := db.Status()
		if err != nil {
			fail(err)
		}
		fmt.Println(status)
	},
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Outlook connection",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to Microsoft Graph with a device code",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fail(err)
		}
		tokenPath, err := config.TokenPath()
		if err != nil {
			fail(err)
		}
		oauthCfg := msgraph.OAuth2Config(cfg.Source.TenantID, cfg.Source.ClientID)
		if _, err := msgraph.Login(cmd.Context(), oauthCfg, msgraph.TokenStore{Path: tokenPath}, os.Stdout); err != nil {
			fail(err)
		}
		fmt.Println("Signed in. Set [source] kind = \"outlook\" to read your calendar.")
	},
}

func runReview(cmd *cobra.Command, args []string) {
	e := mustSetup()
	from, to := mustWeek(cmd, e)

	res, err := e.run(cmd.Context(), from, to)
	if err != nil {
		fail(err)
	}

	lowOnly, _ := cmd.Flags().GetBool("low-confidence")
	plain, _ := cmd.Flags().GetBool("plain")
	session := review.NewSession(e.idx, res.Report, review.Options{
		LowConfidenceOnly: lowOnly,
		Threshold:         e.cfg.ReviewThreshold,
	})

	var fr models.FinalReport
	if plain {
		runPlain(session, os.Stdin, os.Stdout)
		fr = session.Result()
	} else {
		fr, err = tui.Run(session, tui.Options{Threshold: e.cfg.ReviewThreshold, Colors: e.colors()})
		if err != nil {
			fail(err)
		}
	}
	finish(cmd, e, fr)
}

// finish prints or exports fr according to --format and archives it
// unless --no-save is set.
func finish(cmd *cobra.Command, e *env, fr models.FinalReport) {
	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")
	noSave, _ := cmd.Flags().GetBool("no-save")

	if format == "" || format == "table" {
		fmt.Print(tui.RenderReport(fr, e.colors()))
	} else {
		f, err := export.ParseFormat(format)
		if err != nil {
			fail(err)
		}
		path, err := e.writeReport(fr, f, out)
		if err != nil {
			fail(err)
		}
		fmt.Printf("Report written to %s\n", path)
	}

	if noSave {
		return
	}
	id, err := e.archive(fr)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Archived as run %s\n", id[:8])
}

func mustSetup() *env {
	e, err := setup()
	if err != nil {
		fail(err)
	}
	return e
}

func mustWeek(cmd *cobra.Command, e *env) (time.Time, time.Time) {
	week, _ := cmd.Flags().GetString("week")
	from, to, err := parseWeek(week, time.Now(), e.cfg.Location())
	if err != nil {
		fail(err)
	}
	return from, to
}

func plainTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return style.Bold(true)
			}
			return style
		}).
		String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func addOutputFlags(cmd *cobra.Command, format string) {
	cmd.Flags().StringP("format", "f", format, "Output format: table, csv, json, xlsx")
	cmd.Flags().StringP("out", "o", "", "Output file (default: reports directory)")
	cmd.Flags().Bool("no-save", false, "Do not archive the report")
}

func addReviewFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("low-confidence", false, "Only review meetings below the review threshold")
	cmd.Flags().Bool("plain", false, "Line-oriented review on stdin instead of the TUI")
	addOutputFlags(cmd, "table")
}

func init() {
	rootCmd.PersistentFlags().StringP("week", "w", "", "Week to process: a date within it, or 'last' (default: this week)")

	addReviewFlags(rootCmd)
	addReviewFlags(reviewCmd)
	addOutputFlags(reportCmd, "table")

	historyCmd.Flags().IntP("limit", "n", 10, "Number of runs to show (0 for all)")
	configInitCmd.Flags().Bool("force", false, "Overwrite existing settings and taxonomy")

	configCmd.AddCommand(configInitCmd)
	authCmd.AddCommand(authLoginCmd)
	dbCmd.AddCommand(dbStatusCmd, dbMigrateCmd)

	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(authCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// fail reports err, records it in the error log and exits.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	logError(err)
	os.Exit(1)
}

func logError(err error) {
	logPath, pathErr := config.ErrorLogPath()
	if pathErr != nil {
		return
	}
	l := log.Discard()
	if log.AddErrorFile(l, logPath) != nil {
		return
	}
	l.WithError(err).Error("command failed")
}

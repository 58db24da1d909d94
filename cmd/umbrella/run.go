package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/emilianohg/umbrella/internal/agent"
	"github.com/emilianohg/umbrella/internal/calendar"
	"github.com/emilianohg/umbrella/internal/classify"
	"github.com/emilianohg/umbrella/internal/config"
	"github.com/emilianohg/umbrella/internal/db"
	"github.com/emilianohg/umbrella/internal/export"
	"github.com/emilianohg/umbrella/internal/index"
	"github.com/emilianohg/umbrella/internal/log"
	"github.com/emilianohg/umbrella/internal/models"
	"github.com/emilianohg/umbrella/internal/msgraph"
	"github.com/emilianohg/umbrella/internal/pipeline"
	"github.com/emilianohg/umbrella/internal/repository"
	"github.com/emilianohg/umbrella/internal/review"
	"github.com/emilianohg/umbrella/internal/taxonomy"
	"github.com/emilianohg/umbrella/internal/timecalc"
)

// env is everything a command needs after settings and taxonomy are loaded.
type env struct {
	cfg *config.Config
	log *logrus.Logger
	tax *taxonomy.Taxonomy
	idx *index.Index
}

func setup() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := log.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if path, err := config.ErrorLogPath(); err == nil {
		if err := log.AddErrorFile(logger, path); err != nil {
			logger.WithError(err).Warn("error log unavailable")
		}
	}

	// Seed the sample taxonomy on first run
	if _, err := os.Stat(cfg.TaxonomyDir); os.IsNotExist(err) {
		if err := taxonomy.Save(cfg.TaxonomyDir, taxonomy.Default()); err != nil {
			return nil, fmt.Errorf("seed taxonomy: %w", err)
		}
		logger.WithField("dir", cfg.TaxonomyDir).Info("wrote sample taxonomy")
	}

	tax, err := taxonomy.Load(cfg.TaxonomyDir)
	if err != nil {
		return nil, err
	}
	idx, err := index.Build(tax.Customers, tax.Projects, tax.MeetingTypes)
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, log: logger, tax: tax, idx: idx}, nil
}

func (e *env) source(ctx context.Context) (calendar.Source, error) {
	if !strings.EqualFold(e.cfg.Source.Kind, "outlook") {
		return calendar.New(e.cfg.Source.Kind, e.cfg.Source.ICSPath, e.cfg.Location())
	}

	tokenPath, err := config.TokenPath()
	if err != nil {
		return nil, err
	}
	store := msgraph.TokenStore{Path: tokenPath}
	oauthCfg := msgraph.OAuth2Config(e.cfg.Source.TenantID, e.cfg.Source.ClientID)
	tok, err := msgraph.Token(ctx, oauthCfg, store, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("outlook auth: %w", err)
	}
	client := msgraph.NewClient(ctx, tok, oauthCfg, store)
	return msgraph.NewSource(client, e.cfg.Location(), e.log), nil
}

func (e *env) orchestrator() (*classify.Orchestrator, error) {
	ext, err := agent.New(e.cfg.Classifier)
	if err != nil {
		return nil, err
	}
	backoff := e.cfg.ClassifierBackoff()
	return classify.NewOrchestrator(e.idx, classify.Options{
		Threshold: e.cfg.ConfidenceThreshold,
		External:  ext,
		Retry: classify.RetryPolicy{
			Attempts:        e.cfg.Classifier.Attempts,
			InitialInterval: backoff,
			MaxInterval:     4 * backoff,
			Timeout:         e.cfg.ClassifierTimeout(),
		},
		MaxBodyChars: e.cfg.Classifier.MaxBodyChars,
		Logger:       e.log,
	}), nil
}

// run fetches, classifies and aggregates the window.
func (e *env) run(ctx context.Context, from, to time.Time) (pipeline.Result, error) {
	src, err := e.source(ctx)
	if err != nil {
		return pipeline.Result{}, err
	}
	orch, err := e.orchestrator()
	if err != nil {
		return pipeline.Result{}, err
	}
	p := pipeline.New(src, orch, pipeline.Options{
		WorkHoursPerWeek: e.cfg.WorkHoursPerWeek,
		IncludeAllDay:    e.cfg.IncludeAllDay,
		Logger:           e.log,
	})
	return p.Run(ctx, from, to)
}

// colors maps customer and meeting type names to their configured color.
func (e *env) colors() map[string]string {
	out := make(map[string]string)
	for _, c := range e.tax.Customers {
		out[c.Name] = c.Color
	}
	for _, m := range e.tax.MeetingTypes {
		out[m.Name] = m.Color
	}
	return out
}

// archive stores fr in the SQLite archive and returns the run id.
func (e *env) archive(fr models.FinalReport) (string, error) {
	conn, err := db.OpenAndMigrate()
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer db.Close()

	id, err := repository.NewReportRepo(conn).Save(fr)
	if err != nil {
		return "", fmt.Errorf("archive report: %w", err)
	}
	e.log.WithFields(logrus.Fields{"run_id": id, "window": timecalc.ISOWeekLabel(fr.Report.WindowStart)}).Debug("report archived")
	return id, nil
}

// writeReport writes fr in format f to out, or into the reports directory
// when out is empty. It returns the path written.
func (e *env) writeReport(fr models.FinalReport, f export.Format, out string) (string, error) {
	if out == "" {
		out = filepath.Join(e.cfg.ReportsOutput, export.FileName(fr, f))
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return "", err
	}
	file, err := os.Create(out)
	if err != nil {
		return "", err
	}
	if err := export.Write(file, f, fr); err != nil {
		file.Close()
		return "", err
	}
	return out, file.Close()
}

// parseWeek resolves the window for the week containing date, or the current
// week when date is empty. "last" selects the previous week.
func parseWeek(date string, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	at := now.In(loc)
	switch strings.ToLower(strings.TrimSpace(date)) {
	case "", "this":
	case "last", "prev":
		at = at.AddDate(0, 0, -7)
	default:
		t, err := timecalc.ParseDate(date, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid week %q (expected YYYY-MM-DD or last)", date)
		}
		at = t
	}
	from, to := timecalc.WeekRange(at)
	return from, to, nil
}

// runPlain drives s from line input until it is done. End of input cancels
// the session.
func runPlain(s *review.Session, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	for s.State() != review.StateDone {
		fmt.Fprint(out, review.Prompt(s))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			s.Cancel()
			return
		}
		if err := review.Exec(s, scanner.Text()); err != nil {
			fmt.Fprintf(out, "  %v\n", err)
		}
	}
}

// Package pipeline runs one reporting window end to end: fetch events,
// classify them and aggregate the hours.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/emilianohg/umbrella/internal/aggregate"
	"github.com/emilianohg/umbrella/internal/calendar"
	"github.com/emilianohg/umbrella/internal/classify"
	"github.com/emilianohg/umbrella/internal/models"
	"github.com/emilianohg/umbrella/internal/timecalc"
)

type Options struct {
	WorkHoursPerWeek float64
	IncludeAllDay    bool
	Logger           logrus.FieldLogger
}

type Pipeline struct {
	source calendar.Source
	orch   *classify.Orchestrator
	opts   Options
}

// Result is the aggregated report plus what was left out of it.
type Result struct {
	Report     models.TimeAllocationReport
	Dropped    []models.CalendarEvent
	Invalid    []error
	Classified int
}

func New(source calendar.Source, orch *classify.Orchestrator, opts Options) *Pipeline {
	if opts.WorkHoursPerWeek <= 0 {
		opts.WorkHoursPerWeek = 40
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		opts.Logger = l
	}
	return &Pipeline{source: source, orch: orch, opts: opts}
}

func (p *Pipeline) Run(ctx context.Context, from, to time.Time) (Result, error) {
	events, err := p.source.Events(ctx, from, to)
	if err != nil {
		return Result{}, fmt.Errorf("fetch events: %w", err)
	}

	var res Result
	kept := make([]models.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if ev.Cancelled || (ev.AllDay && !p.opts.IncludeAllDay) {
			res.Dropped = append(res.Dropped, ev)
			continue
		}
		kept = append(kept, ev)
	}

	classified := p.orch.ClassifyAll(ctx, kept)
	res.Classified = len(classified)

	valid, invalid := aggregate.Partition(classified)
	for _, e := range invalid {
		var iee *aggregate.InvalidEventError
		fields := logrus.Fields{"error": e}
		if errors.As(e, &iee) {
			fields["meeting_id"] = iee.EventID
		}
		p.opts.Logger.WithFields(fields).Warn("skipping invalid event")
	}
	res.Invalid = invalid

	expected := timecalc.ExpectedHours(p.opts.WorkHoursPerWeek, from, to)
	report, err := aggregate.Aggregate(valid, from, to, expected)
	if err != nil {
		return Result{}, err
	}
	res.Report = report

	p.opts.Logger.WithFields(logrus.Fields{
		"fetched": len(events),
		"dropped": len(res.Dropped),
		"invalid": len(invalid),
		"hours":   report.TotalHours,
	}).Info("window aggregated")
	return res, nil
}

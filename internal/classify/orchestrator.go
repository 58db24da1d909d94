package classify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/emilianohg/umbrella/internal/index"
	"github.com/emilianohg/umbrella/internal/models"
)

// DefaultThreshold is the rule confidence at or above which the external
// classifier is not consulted.
const DefaultThreshold = 0.7

// ExternalRequest carries only what the external classifier may see: no raw
// attendee addresses.
type ExternalRequest struct {
	Subject        string
	Body           string
	AttendeeCount  int
	KnownCustomers []string
	KnownProjects  []string
	KnownTypes     []string
}

type ExternalResult struct {
	Customer   *string `json:"customer"`
	Project    *string `json:"project"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// ExternalClassifier is implemented by the LLM adapters in internal/agent.
type ExternalClassifier interface {
	Classify(ctx context.Context, req ExternalRequest) (ExternalResult, error)
}

// ClassificationTransportError wraps the last failure after all attempts.
type ClassificationTransportError struct {
	Attempts int
	Err      error
}

func (e *ClassificationTransportError) Error() string {
	return fmt.Sprintf("external classifier failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ClassificationTransportError) Unwrap() error {
	return e.Err
}

// ErrMalformedResult marks an external result that cannot be used.
var ErrMalformedResult = errors.New("malformed classifier result")

type RetryPolicy struct {
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Timeout         time.Duration
}

// DefaultRetryPolicy waits 1s then 2s between three attempts of at most 30s each.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:        3,
		InitialInterval: time.Second,
		MaxInterval:     4 * time.Second,
		Timeout:         30 * time.Second,
	}
}

type Options struct {
	Threshold    float64
	External     ExternalClassifier
	Retry        RetryPolicy
	MaxBodyChars int
	Logger       logrus.FieldLogger
}

type Orchestrator struct {
	idx       *index.Index
	rules     *RuleClassifier
	external  ExternalClassifier
	threshold float64
	retry     RetryPolicy
	maxBody   int
	log       logrus.FieldLogger
}

func NewOrchestrator(idx *index.Index, opts Options) *Orchestrator {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.Retry.Timeout <= 0 {
		opts.Retry.Timeout = DefaultRetryPolicy().Timeout
	}
	if opts.MaxBodyChars <= 0 {
		opts.MaxBodyChars = 500
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		opts.Logger = l
	}
	return &Orchestrator{
		idx:       idx,
		rules:     NewRuleClassifier(idx),
		external:  opts.External,
		threshold: opts.Threshold,
		retry:     opts.Retry,
		maxBody:   opts.MaxBodyChars,
		log:       opts.Logger,
	}
}

// Classify never returns an error: external failures fall back to the rule result.
func (o *Orchestrator) Classify(ctx context.Context, ev models.CalendarEvent) models.Classification {
	ruled := o.rules.Classify(InputFromEvent(ev))
	if ruled.Confidence >= o.threshold || o.external == nil {
		return ruled
	}

	req := ExternalRequest{
		Subject:        ev.Subject,
		Body:           SanitizeBody(ev.Body, o.maxBody),
		AttendeeCount:  len(ev.Attendees),
		KnownCustomers: o.idx.CustomerNames(),
		KnownProjects:  o.idx.ProjectNames(),
		KnownTypes:     o.idx.TypeNames(),
	}

	res, err := o.callExternal(ctx, req)
	if err != nil {
		o.log.WithFields(logrus.Fields{
			"meeting_id": ev.ID,
			"error":      err,
		}).Warn("external classifier unavailable, keeping rule result")
		return ruled
	}
	return o.toClassification(res)
}

func (o *Orchestrator) ClassifyAll(ctx context.Context, events []models.CalendarEvent) []models.ClassifiedEvent {
	out := make([]models.ClassifiedEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, models.ClassifiedEvent{Event: ev, Classification: o.Classify(ctx, ev)})
	}
	return out
}

type outcome struct {
	res ExternalResult
	err error
}

func (o *Orchestrator) callExternal(ctx context.Context, req ExternalRequest) (ExternalResult, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.retry.InitialInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	if o.retry.MaxInterval > 0 {
		b.MaxInterval = o.retry.MaxInterval
	}
	b.MaxElapsedTime = 0

	attempts := 0
	var result ExternalResult
	op := func() error {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, o.retry.Timeout)
		defer cancel()

		done := make(chan outcome, 1)
		go func() {
			res, err := o.external.Classify(callCtx, req)
			done <- outcome{res: res, err: err}
		}()

		select {
		case out := <-done:
			if out.err != nil {
				return out.err
			}
			if err := o.validate(out.res); err != nil {
				return err
			}
			result = out.res
			return nil
		case <-callCtx.Done():
			return callCtx.Err()
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(o.retry.Attempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return ExternalResult{}, &ClassificationTransportError{Attempts: attempts, Err: err}
	}
	return result, nil
}

func (o *Orchestrator) validate(res ExternalResult) error {
	if strings.TrimSpace(res.Type) == "" {
		return fmt.Errorf("%w: missing type", ErrMalformedResult)
	}
	if !o.knownType(res.Type) {
		return fmt.Errorf("%w: unknown type %q", ErrMalformedResult, res.Type)
	}
	return nil
}

func (o *Orchestrator) knownType(name string) bool {
	for _, t := range o.idx.TypeNames() {
		if index.Normalize(t) == index.Normalize(name) {
			return true
		}
	}
	return false
}

// toClassification maps external names onto canonical index names. Names the
// index does not know are dropped.
func (o *Orchestrator) toClassification(res ExternalResult) models.Classification {
	c := models.Classification{
		Confidence: clamp01(res.Confidence),
		Rationale:  strings.TrimSpace(res.Rationale),
		Source:     models.SourceLLM,
	}
	if res.Customer != nil {
		if cust, ok := o.idx.Customer(*res.Customer); ok {
			name := cust.Name
			c.Customer = &name
		}
	}
	if res.Project != nil {
		if p, ok := o.idx.Project(*res.Project); ok {
			name := p.Name
			c.Project = &name
		}
	}
	c.MeetingType = res.Type
	if t, ok := o.idx.MeetingType(res.Type); ok {
		c.MeetingType = t.Name
	} else {
		for _, s := range []string{models.InternalMeeting, models.Uncategorized} {
			if index.Normalize(s) == index.Normalize(res.Type) {
				c.MeetingType = s
			}
		}
	}
	if c.Rationale == "" {
		c.Rationale = "classified by external model"
	}
	return c
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var (
	htmlTag    = regexp.MustCompile(`<[^>]*>`)
	emailAddr  = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	whitespace = regexp.MustCompile(`\s+`)
)

// SanitizeBody strips markup, redacts email addresses and truncates to limit runes.
func SanitizeBody(body string, limit int) string {
	s := htmlTag.ReplaceAllString(body, " ")
	s = emailAddr.ReplaceAllString(s, "[email]")
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	if r := []rune(s); limit > 0 && len(r) > limit {
		s = string(r[:limit])
	}
	return s
}

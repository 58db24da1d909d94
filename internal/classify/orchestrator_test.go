package classify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emilianohg/umbrella/internal/models"
)

type fakeExternal struct {
	mu       sync.Mutex
	calls    int
	requests []ExternalRequest
	respond  func(ctx context.Context, call int) (ExternalResult, error)
}

func (f *fakeExternal) Classify(ctx context.Context, req ExternalRequest) (ExternalResult, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.respond(ctx, call)
}

func (f *fakeExternal) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func fastRetry() RetryPolicy {
	return RetryPolicy{
		Attempts:        3,
		InitialInterval: time.Millisecond,
		MaxInterval:     4 * time.Millisecond,
		Timeout:         20 * time.Millisecond,
	}
}

var lowConfidenceEvent = models.CalendarEvent{
	ID:        "evt_low",
	Subject:   "Quick sync",
	Body:      "<p>Ping alice@example.org about the rollout</p>",
	Attendees: []string{"bob@internal.com", "carol@internal.com"},
}

func TestOrchestratorFallsBackAfterTimeouts(t *testing.T) {
	ext := &fakeExternal{respond: func(ctx context.Context, _ int) (ExternalResult, error) {
		<-ctx.Done()
		return ExternalResult{}, ctx.Err()
	}}
	o := NewOrchestrator(testIndex(t), Options{External: ext, Retry: fastRetry()})

	got := o.Classify(context.Background(), lowConfidenceEvent)

	if ext.callCount() != 3 {
		t.Errorf("external calls = %d, want 3", ext.callCount())
	}
	if got.Source != models.SourceRules {
		t.Errorf("Source = %q, want rules", got.Source)
	}
	if got.MeetingType != models.InternalMeeting || got.Confidence != 0.4 {
		t.Errorf("got %q/%v, want rule result", got.MeetingType, got.Confidence)
	}
}

func TestOrchestratorTimesOutIgnoringCollaborator(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	ext := &fakeExternal{respond: func(context.Context, int) (ExternalResult, error) {
		<-release
		return ExternalResult{}, nil
	}}
	o := NewOrchestrator(testIndex(t), Options{External: ext, Retry: fastRetry()})

	start := time.Now()
	got := o.Classify(context.Background(), lowConfidenceEvent)
	if time.Since(start) > 2*time.Second {
		t.Fatalf("Classify blocked for %v", time.Since(start))
	}
	if got.Source != models.SourceRules {
		t.Errorf("Source = %q, want rules", got.Source)
	}
}

func TestOrchestratorUsesExternalResult(t *testing.T) {
	ext := &fakeExternal{respond: func(context.Context, int) (ExternalResult, error) {
		return ExternalResult{
			Customer:   strPtr("contoso"),
			Project:    strPtr("Unknown Project"),
			Type:       "planning",
			Confidence: 1.4,
			Rationale:  "mentions rollout planning",
		}, nil
	}}
	o := NewOrchestrator(testIndex(t), Options{External: ext, Retry: fastRetry(), MaxBodyChars: 20})

	got := o.Classify(context.Background(), lowConfidenceEvent)

	if got.Source != models.SourceLLM {
		t.Fatalf("Source = %q, want llm", got.Source)
	}
	if name(got.Customer) != "Contoso Corporation" {
		t.Errorf("Customer = %q, want canonical name", name(got.Customer))
	}
	if got.Project != nil {
		t.Errorf("Project = %q, want nil for unknown name", *got.Project)
	}
	if got.MeetingType != "Planning" {
		t.Errorf("MeetingType = %q, want Planning", got.MeetingType)
	}
	if got.Confidence != 1 {
		t.Errorf("Confidence = %v, want clamped 1", got.Confidence)
	}

	req := ext.requests[0]
	if req.AttendeeCount != 2 {
		t.Errorf("AttendeeCount = %d, want 2", req.AttendeeCount)
	}
	if strings.Contains(req.Body, "@") || strings.Contains(req.Body, "<p>") {
		t.Errorf("Body not sanitized: %q", req.Body)
	}
	if len([]rune(req.Body)) > 20 {
		t.Errorf("Body length = %d, want <= 20", len([]rune(req.Body)))
	}
	if len(req.KnownCustomers) != 3 || len(req.KnownProjects) != 2 {
		t.Errorf("known names = %v / %v", req.KnownCustomers, req.KnownProjects)
	}
}

func TestOrchestratorRetriesMalformedResult(t *testing.T) {
	ext := &fakeExternal{respond: func(_ context.Context, call int) (ExternalResult, error) {
		switch call {
		case 1:
			return ExternalResult{}, errors.New("connection reset")
		case 2:
			return ExternalResult{Type: "Brainstorm"}, nil
		}
		return ExternalResult{Type: "Review", Confidence: 0.8}, nil
	}}
	o := NewOrchestrator(testIndex(t), Options{External: ext, Retry: fastRetry()})

	got := o.Classify(context.Background(), lowConfidenceEvent)
	if ext.callCount() != 3 {
		t.Errorf("external calls = %d, want 3", ext.callCount())
	}
	if got.Source != models.SourceLLM || got.MeetingType != "Review" {
		t.Errorf("got %q from %q, want Review from llm", got.MeetingType, got.Source)
	}
}

func TestOrchestratorSkipsExternalWhenConfident(t *testing.T) {
	ext := &fakeExternal{respond: func(context.Context, int) (ExternalResult, error) {
		t.Fatal("external classifier should not be called")
		return ExternalResult{}, nil
	}}
	o := NewOrchestrator(testIndex(t), Options{External: ext})

	got := o.Classify(context.Background(), models.CalendarEvent{
		ID:      "evt_high",
		Subject: "[Contoso] Q1 Planning Session",
	})
	if got.Source != models.SourceRules || got.Confidence < 0.95 {
		t.Errorf("got %v from %q", got.Confidence, got.Source)
	}
}

func TestOrchestratorWithoutExternal(t *testing.T) {
	o := NewOrchestrator(testIndex(t), Options{})
	got := o.ClassifyAll(context.Background(), []models.CalendarEvent{lowConfidenceEvent})
	if len(got) != 1 || got[0].Classification.Source != models.SourceRules {
		t.Fatalf("ClassifyAll = %+v", got)
	}
}

func TestSanitizeBody(t *testing.T) {
	got := SanitizeBody("<div>Hello\n\n <b>team</b>, mail jane.doe@contoso.com</div>", 0)
	want := "Hello team , mail [email]"
	if got != want {
		t.Errorf("SanitizeBody = %q, want %q", got, want)
	}
}

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/emilianohg/umbrella/internal/classify"
	"github.com/emilianohg/umbrella/internal/config"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-5"
	defaultOpenAIModel    = "gpt-4o-mini"
)

// New returns the external classifier selected by cfg.Agent. "none" or an
// empty agent yields a nil classifier, which disables the fallback.
func New(cfg config.ClassifierConfig) (classify.ExternalClassifier, error) {
	switch strings.ToLower(cfg.Agent) {
	case "", "none":
		return nil, nil
	case "codex":
		return &CodexAgent{}, nil
	case "claude":
		return &ClaudeAgent{Model: cfg.Model}, nil
	case "anthropic":
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("anthropic agent: %s is not set", cfg.APIKeyEnv)
		}
		return NewAnthropic(key, cfg.Model, cfg.BaseURL), nil
	case "openai":
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("openai agent: %s is not set", cfg.APIKeyEnv)
		}
		return NewOpenAI(key, cfg.Model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown agent type: %s", cfg.Agent)
	}
}

type CodexAgent struct{}

func (a *CodexAgent) Classify(ctx context.Context, req classify.ExternalRequest) (classify.ExternalResult, error) {
	system, user := buildPrompt(req)

	// Use codex exec for non-interactive mode, pass prompt via stdin
	cmd := exec.CommandContext(ctx, "codex", "exec", "-")
	cmd.Stdin = strings.NewReader(system + "\n\n" + user)

	out, err := run(cmd, "codex")
	if err != nil {
		return classify.ExternalResult{}, err
	}
	return parseResponse(out)
}

type ClaudeAgent struct {
	Model string
}

func (a *ClaudeAgent) Classify(ctx context.Context, req classify.ExternalRequest) (classify.ExternalResult, error) {
	system, user := buildPrompt(req)

	// Use claude -p for non-interactive print mode
	args := []string{"-p", user, "--append-system-prompt", system}
	if a.Model != "" {
		args = append(args, "--model", a.Model)
	}
	cmd := exec.CommandContext(ctx, "claude", args...)

	out, err := run(cmd, "claude")
	if err != nil {
		return classify.ExternalResult{}, err
	}
	return parseResponse(out)
}

func run(cmd *exec.Cmd, name string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s failed: %w\nstderr: %s", name, err, stderr.String())
	}
	return stdout.String(), nil
}

func buildPrompt(req classify.ExternalRequest) (string, string) {
	var sys strings.Builder
	sys.WriteString("You classify calendar meetings for a consultant's weekly time report.\n")
	sys.WriteString("Pick the customer, project and meeting type from the lists below. ")
	sys.WriteString("Use null when no customer or project applies. Never invent names.\n\n")
	sys.WriteString(fmt.Sprintf("Customers: %s\n", joinOrNone(req.KnownCustomers)))
	sys.WriteString(fmt.Sprintf("Projects: %s\n", joinOrNone(req.KnownProjects)))
	sys.WriteString(fmt.Sprintf("Meeting types: %s\n", joinOrNone(req.KnownTypes)))
	sys.WriteString("\nRespond with ONLY a JSON object:\n")
	sys.WriteString(`{"customer": string|null, "project": string|null, "type": string, "confidence": 0.0-1.0, "rationale": string}`)
	sys.WriteString("\n")

	var user strings.Builder
	user.WriteString(fmt.Sprintf("Subject: %s\n", req.Subject))
	user.WriteString(fmt.Sprintf("Attendees: %d\n", req.AttendeeCount))
	if req.Body != "" {
		user.WriteString(fmt.Sprintf("Body: %s\n", req.Body))
	}
	return sys.String(), user.String()
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}

// jsonObject matches the outermost {...} of a response, across lines.
var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

func parseResponse(response string) (classify.ExternalResult, error) {
	match := jsonObject.FindString(response)
	if match == "" {
		return classify.ExternalResult{}, fmt.Errorf("%w: no JSON object in response", classify.ErrMalformedResult)
	}
	var res classify.ExternalResult
	if err := json.Unmarshal([]byte(match), &res); err != nil {
		return classify.ExternalResult{}, fmt.Errorf("%w: %v", classify.ErrMalformedResult, err)
	}
	if res.Customer != nil && strings.TrimSpace(*res.Customer) == "" {
		res.Customer = nil
	}
	if res.Project != nil && strings.TrimSpace(*res.Project) == "" {
		res.Project = nil
	}
	return res, nil
}

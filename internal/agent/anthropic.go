package agent

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/emilianohg/umbrella/internal/classify"
)

// AnthropicAgent calls the Messages API directly. Retries are left to the
// orchestrator, so the SDK's own retry loop is disabled.
type AnthropicAgent struct {
	client anthropic.Client
	model  string
}

func NewAnthropic(apiKey, model, baseURL string) *AnthropicAgent {
	if model == "" {
		model = defaultAnthropicModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicAgent{client: anthropic.NewClient(opts...), model: model}
}

func (a *AnthropicAgent) Classify(ctx context.Context, req classify.ExternalRequest) (classify.ExternalResult, error) {
	system, user := buildPrompt(req)

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return classify.ExternalResult{}, fmt.Errorf("anthropic API error: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return parseResponse(block.Text)
		}
	}
	return classify.ExternalResult{}, fmt.Errorf("%w: no text content in anthropic response", classify.ErrMalformedResult)
}

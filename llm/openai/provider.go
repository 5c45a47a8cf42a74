// Package openai generates day plans with the OpenAI chat completions API
// or any server that speaks it.
package openai

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"mealplanner"
)

const defaultModelID = "gpt-4o-mini"

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

type Provider struct {
	client chatClient
	model  string
}

var _ mealplanner.Provider = (*Provider)(nil)

// New builds a provider for apiKey. A non-empty baseURL points the client at
// an OpenAI-compatible server.
func New(apiKey, baseURL, modelID string, httpClient mealplanner.HTTPClient) *Provider {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return NewWithClient(goopenai.NewClientWithConfig(cfg), modelID)
}

func NewWithClient(client chatClient, modelID string) *Provider {
	if modelID == "" {
		modelID = defaultModelID
	}
	return &Provider{client: client, model: modelID}
}

func (p *Provider) Name() string { return mealplanner.ProviderOpenAI }

func (p *Provider) Generate(ctx context.Context, prompt string, opts mealplanner.GenerateOptions) (string, error) {
	var msgs []goopenai.ChatCompletionMessage
	if strings.TrimSpace(opts.System) != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: opts.System})
	}
	msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: prompt})

	// The request omits a zero temperature, which the API reads as 1.
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:          p.model,
		Messages:       msgs,
		MaxTokens:      int(opts.MaxTokens),
		Temperature:    temperature,
		TopP:           opts.TopP,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		slog.Error("LLM_CLIENT: OpenAI chat completion failed", "model", p.model, "error", err)
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", mealplanner.NewFatalError(p.Name(), 0, errors.New("no choices returned"))
	}
	choice := resp.Choices[0]
	if choice.FinishReason == goopenai.FinishReasonLength {
		slog.Warn("LLM_CLIENT: OpenAI output truncated at max tokens", "model", p.model)
	}
	if choice.FinishReason == goopenai.FinishReasonContentFilter {
		return "", mealplanner.NewFatalError(p.Name(), 0, errors.New("model response blocked by content filter"))
	}

	slog.Info("LLM_CLIENT: OpenAI chat completion succeeded",
		"model", p.model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return choice.Message.Content, nil
}

func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return mealplanner.StatusError(mealplanner.ProviderOpenAI, apiErr.HTTPStatusCode, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return mealplanner.StatusError(mealplanner.ProviderOpenAI, reqErr.HTTPStatusCode, err)
	}
	return mealplanner.TransportError(mealplanner.ProviderOpenAI, err)
}

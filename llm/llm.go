// Package llm selects the configured generation provider.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"mealplanner"
	"mealplanner/llm/bedrock"
	"mealplanner/llm/gemini"
	"mealplanner/llm/mock"
	"mealplanner/llm/ollama"
	"mealplanner/llm/openai"
)

// Closer releases provider resources. It is never nil.
type Closer func() error

func noopCloser() error { return nil }

// New builds the provider named by cfg. Mock mode wins over LLM_PROVIDER and
// needs no credentials. httpClient may be nil.
func New(ctx context.Context, cfg mealplanner.ModelConfig, httpClient mealplanner.HTTPClient) (mealplanner.Provider, Closer, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	modelID := cfg.ResolvedModelID()

	name := cfg.ProviderName()
	slog.Info("LLM: Selecting provider", "provider", name, "model", modelID)

	switch name {
	case mealplanner.ProviderMock:
		return mock.NewProvider(), noopCloser, nil

	case mealplanner.ProviderOllama:
		return ollama.New(cfg.OllamaEndpoint, modelID, httpClient), noopCloser, nil

	case mealplanner.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
			return nil, nil, fmt.Errorf("OPENAI_API_KEY is required for provider %q", name)
		}
		return openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, modelID, httpClient), noopCloser, nil

	case mealplanner.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, nil, fmt.Errorf("GEMINI_API_KEY is required for provider %q", name)
		}
		p, err := gemini.New(ctx, cfg.GeminiAPIKey, modelID)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil

	case mealplanner.ProviderBedrock:
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return bedrock.New(bedrockruntime.NewFromConfig(awsCfg), modelID), noopCloser, nil
	}

	return nil, nil, fmt.Errorf("unsupported LLM provider %q", name)
}

// GenerateOptions maps model configuration onto per-call settings.
func GenerateOptions(cfg mealplanner.ModelConfig, system string) mealplanner.GenerateOptions {
	return mealplanner.GenerateOptions{
		System:      system,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
	}
}

package mealplanner

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

const (
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"
	ProviderBedrock = "bedrock"
	ProviderOllama  = "ollama"
	ProviderMock    = "mock"
)

type ModelConfig struct {
	Provider       string        `env:"LLM_PROVIDER,default=gemini"`
	ModelID        string        `env:"MODEL_ID"`
	MaxTokens      int32         `env:"MAX_TOKENS,default=2048"`
	Temperature    float32       `env:"TEMPERATURE,default=0.2"`
	TopP           float32       `env:"TOP_P,default=0.9"`
	Mock           bool          `env:"LLM_MOCK,default=false"`
	OpenAIAPIKey   string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string        `env:"OPENAI_BASE_URL"`
	GeminiAPIKey   string        `env:"GEMINI_API_KEY"`
	OllamaEndpoint string        `env:"BASE_OLLAMA_ENDPOINT,default=http://localhost:11434"`
	Timeout        time.Duration `env:"LLM_TIMEOUT,default=60s"`
}

// ResolvedModelID returns the configured model or the provider default.
func (c ModelConfig) ResolvedModelID() string {
	if c.ModelID != "" {
		return c.ModelID
	}
	switch c.Provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderBedrock:
		return "us.anthropic.claude-3-7-sonnet-20250219-v1:0"
	case ProviderOllama:
		return "llama3.2"
	case ProviderGemini:
		return "gemini-2.5-flash"
	}
	return ""
}

// ProviderName is the provider actually used once mock mode is applied.
func (c ModelConfig) ProviderName() string {
	if c.Mock {
		return ProviderMock
	}
	return c.Provider
}

type EngineConfig struct {
	UseRAG                       bool          `env:"USE_RAG,default=false"`
	CandidateCount               int           `env:"RAG_CANDIDATES,default=4"`
	ArtifactsRecipesPath         string        `env:"ARTIFACTS_RECIPES_PATH,default=artifacts/recipes.json"`
	ArtifactsS3Bucket            string        `env:"ARTIFACTS_S3_BUCKET"`
	ArtifactsRecipesS3Key        string        `env:"ARTIFACTS_RECIPES_S3_KEY"`
	MaxRepairs                   int           `env:"MAX_REPAIRS,default=2"`
	MaxProviderAttempts          int           `env:"MAX_PROVIDER_ATTEMPTS,default=3"`
	BackoffBase                  time.Duration `env:"BACKOFF_BASE,default=1s"`
	BackoffMax                   time.Duration `env:"BACKOFF_MAX,default=8s"`
	PastMealsLimit               int           `env:"PAST_MEALS_LIMIT,default=20"`
	AcceptRepetitionOnExhaustion bool          `env:"ACCEPT_REPETITION_ON_EXHAUSTION,default=false"`
	MaxDays                      int           `env:"MAX_DAYS,default=14"`
}

type StoreConfig struct {
	DatabasePath string `env:"DATABASE_PATH,default=data/mealplanner.db"`
}

type NotifyConfig struct {
	SlackWebhookURL string `env:"SLACK_WEBHOOK_URL"`
	SlackChannel    string `env:"SLACK_CHANNEL,default=#meal-plans"`
}

type Config struct {
	Model  ModelConfig
	Engine EngineConfig
	Store  StoreConfig
	Notify NotifyConfig
}

// LoadConfig decodes every configuration section from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg.Model); err != nil {
		return cfg, fmt.Errorf("decode model config: %w", err)
	}
	if err := envdecode.Decode(&cfg.Engine); err != nil {
		return cfg, fmt.Errorf("decode engine config: %w", err)
	}
	if err := envdecode.Decode(&cfg.Store); err != nil {
		return cfg, fmt.Errorf("decode store config: %w", err)
	}
	if err := envdecode.Decode(&cfg.Notify); err != nil {
		return cfg, fmt.Errorf("decode notify config: %w", err)
	}

	switch cfg.Model.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderBedrock, ProviderOllama:
	default:
		if !cfg.Model.Mock {
			return cfg, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.Model.Provider)
		}
	}
	return cfg, nil
}

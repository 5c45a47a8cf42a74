package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealplanner"
	"mealplanner/llm/mock"
	"mealplanner/llm/ollama"
	"mealplanner/llm/openai"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     mealplanner.ModelConfig
		want    any
		wantErr string
	}{
		{
			name: "mock wins over provider",
			cfg:  mealplanner.ModelConfig{Provider: mealplanner.ProviderGemini, Mock: true},
			want: &mock.Provider{},
		},
		{
			name: "ollama",
			cfg:  mealplanner.ModelConfig{Provider: mealplanner.ProviderOllama, OllamaEndpoint: "http://localhost:11434"},
			want: &ollama.Provider{},
		},
		{
			name: "openai compatible server without key",
			cfg:  mealplanner.ModelConfig{Provider: mealplanner.ProviderOpenAI, OpenAIBaseURL: "http://localhost:8080/v1"},
			want: &openai.Provider{},
		},
		{
			name:    "openai without key",
			cfg:     mealplanner.ModelConfig{Provider: mealplanner.ProviderOpenAI},
			wantErr: "OPENAI_API_KEY is required",
		},
		{
			name:    "gemini without key",
			cfg:     mealplanner.ModelConfig{Provider: mealplanner.ProviderGemini},
			wantErr: "GEMINI_API_KEY is required",
		},
		{
			name:    "unknown provider",
			cfg:     mealplanner.ModelConfig{Provider: "watson"},
			wantErr: `unsupported LLM provider "watson"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, closer, err := New(context.Background(), tt.cfg, nil)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, p)
			require.NotNil(t, closer)
			assert.NoError(t, closer())
		})
	}
}

func TestGenerateOptions(t *testing.T) {
	cfg := mealplanner.ModelConfig{MaxTokens: 2048, Temperature: 0.2, TopP: 0.9}
	assert.Equal(t, mealplanner.GenerateOptions{
		System:      "sys",
		MaxTokens:   2048,
		Temperature: 0.2,
		TopP:        0.9,
	}, GenerateOptions(cfg, "sys"))
}

// Package ollama generates day plans with a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"mealplanner"
)

const defaultModelID = "llama3.2"

type options struct {
	Temperature   float32 `json:"temperature"`
	TopP          float32 `json:"top_p"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	NumCtx        int     `json:"num_ctx,omitempty"`
	NumPredict    int32   `json:"num_predict,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Format   string    `json:"format,omitempty"`
	Stream   bool      `json:"stream"`
	Options  options   `json:"options"`
}

type wireResponse struct {
	Message message `json:"message"`
	Done    bool    `json:"done"`
}

type Provider struct {
	endpoint   string
	model      string
	httpClient mealplanner.HTTPClient
}

var _ mealplanner.Provider = (*Provider)(nil)

func New(baseEndpoint, modelID string, httpClient mealplanner.HTTPClient) *Provider {
	if modelID == "" {
		modelID = defaultModelID
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Provider{
		endpoint:   strings.TrimRight(baseEndpoint, "/") + "/api/chat",
		model:      modelID,
		httpClient: httpClient,
	}
}

func (p *Provider) Name() string { return mealplanner.ProviderOllama }

// Generate posts a single non-streaming chat request in JSON mode and
// returns the model's content verbatim.
func (p *Provider) Generate(ctx context.Context, prompt string, opts mealplanner.GenerateOptions) (string, error) {
	msgs := make([]message, 0, 2)
	if sp := strings.TrimSpace(opts.System); sp != "" {
		msgs = append(msgs, message{Role: "system", Content: sp})
	}
	msgs = append(msgs, message{Role: "user", Content: prompt})

	body, err := json.Marshal(wireRequest{
		Model:    p.model,
		Messages: msgs,
		Format:   "json",
		Stream:   false,
		Options: options{
			Temperature:   opts.Temperature,
			TopP:          opts.TopP,
			RepeatPenalty: 1.05,
			NumCtx:        16384,
			NumPredict:    opts.MaxTokens,
		},
	})
	if err != nil {
		return "", mealplanner.NewFatalError(p.Name(), 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", mealplanner.NewFatalError(p.Name(), 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		slog.Warn("LLM_CLIENT: Ollama request failed", "endpoint", p.endpoint, "error", err)
		return "", mealplanner.TransportError(p.Name(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", mealplanner.TransportError(p.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", mealplanner.StatusError(p.Name(), resp.StatusCode, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(raw))))
	}

	var wr wireResponse
	if err := json.Unmarshal(raw, &wr); err != nil {
		// The validator extracts JSON leniently, so hand back the raw body.
		slog.Warn("LLM_CLIENT: Ollama decode failed, returning raw body", "error", err)
		return string(raw), nil
	}

	slog.Info("LLM_CLIENT: Ollama chat succeeded", "model", p.model, "content_length", len(wr.Message.Content))
	return wr.Message.Content, nil
}

// Package gemini generates day plans with the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"mealplanner"
)

const defaultModelID = "gemini-2.5-flash"

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type Provider struct {
	client   *genai.Client
	model    string
	newModel func(mealplanner.GenerateOptions) contentGenerator
}

var _ mealplanner.Provider = (*Provider)(nil)

func New(ctx context.Context, apiKey, modelID string) (*Provider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if modelID == "" {
		modelID = defaultModelID
	}

	p := &Provider{client: client, model: modelID}
	p.newModel = func(opts mealplanner.GenerateOptions) contentGenerator {
		m := client.GenerativeModel(modelID)
		configure(m, opts)
		return m
	}
	return p, nil
}

func configure(m *genai.GenerativeModel, opts mealplanner.GenerateOptions) {
	m.ResponseMIMEType = "application/json"
	if strings.TrimSpace(opts.System) != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(opts.System)}}
	}
	if opts.MaxTokens > 0 {
		m.SetMaxOutputTokens(opts.MaxTokens)
	}
	m.SetTemperature(opts.Temperature)
	m.SetTopP(opts.TopP)
}

func (p *Provider) Name() string { return mealplanner.ProviderGemini }

func (p *Provider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *Provider) Generate(ctx context.Context, prompt string, opts mealplanner.GenerateOptions) (string, error) {
	resp, err := p.newModel(opts).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		slog.Error("LLM_CLIENT: Gemini generate failed", "model", p.model, "error", err)
		return "", classify(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", mealplanner.NewFatalError(p.Name(), 0, errors.New("no content generated"))
	}
	cand := resp.Candidates[0]
	truncated := cand.FinishReason == genai.FinishReasonMaxTokens

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if truncated {
		slog.Warn("LLM_CLIENT: Gemini output truncated at max tokens", "model", p.model)
		return b.String(), nil
	}
	if b.Len() == 0 {
		return "", mealplanner.NewFatalError(p.Name(), 0, errors.New("generated content is not text"))
	}

	slog.Info("LLM_CLIENT: Gemini generate succeeded", "model", p.model, "content_length", b.Len())
	return b.String(), nil
}

func classify(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return mealplanner.NewFatalError(mealplanner.ProviderGemini, 0, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return mealplanner.StatusError(mealplanner.ProviderGemini, gerr.Code, err)
	}

	var withCode interface{ HTTPCode() int }
	if errors.As(err, &withCode) && withCode.HTTPCode() > 0 {
		return mealplanner.StatusError(mealplanner.ProviderGemini, withCode.HTTPCode(), err)
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted, codes.Unavailable, codes.DeadlineExceeded, codes.Internal, codes.Aborted:
			return mealplanner.NewTransientError(mealplanner.ProviderGemini, 0, err)
		case codes.Canceled:
			return mealplanner.NewFatalError(mealplanner.ProviderGemini, 0, err)
		case codes.Unknown:
		default:
			return mealplanner.NewFatalError(mealplanner.ProviderGemini, 0, err)
		}
	}
	return mealplanner.TransportError(mealplanner.ProviderGemini, err)
}

// Package bedrock generates day plans with the Bedrock Converse API.
package bedrock

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"mealplanner"
)

const (
	// defaultModelID is an inference profile ID, not a foundation model ID.
	// See https://docs.aws.amazon.com/bedrock/latest/userguide/inference-profiles.html.
	defaultModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

	defaultMaxTokens = 2048
)

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type Provider struct {
	brc     bedrockRuntimeClient
	modelID string
}

var _ mealplanner.Provider = (*Provider)(nil)

func New(brc bedrockRuntimeClient, modelID string) *Provider {
	if modelID == "" {
		modelID = defaultModelID
	}
	return &Provider{brc: brc, modelID: modelID}
}

func (p *Provider) Name() string { return mealplanner.ProviderBedrock }

func (p *Provider) Generate(ctx context.Context, prompt string, opts mealplanner.GenerateOptions) (string, error) {
	opts = withDefaults(opts)

	var sys []types.SystemContentBlock
	if strings.TrimSpace(opts.System) != "" {
		sys = append(sys, &types.SystemContentBlockMemberText{Value: opts.System})
	}

	in := &bedrockruntime.ConverseInput{
		ModelId: aws.String(p.modelID),
		System:  sys,
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(opts.MaxTokens),
			Temperature: aws.Float32(opts.Temperature),
			TopP:        aws.Float32(opts.TopP),
		},
	}

	out, err := p.brc.Converse(ctx, in)
	if err != nil {
		slog.Error("LLM_CLIENT: Bedrock converse failed", "model", p.modelID, "error", err)
		return "", classify(err)
	}

	attrs := []any{"model", p.modelID, "stop_reason", out.StopReason}
	if out.Usage != nil {
		attrs = append(attrs,
			"input_tokens", aws.ToInt32(out.Usage.InputTokens),
			"output_tokens", aws.ToInt32(out.Usage.OutputTokens))
	}
	if out.Metrics != nil {
		attrs = append(attrs, "latency_ms", aws.ToInt64(out.Metrics.LatencyMs))
	}
	slog.Info("LLM_CLIENT: Bedrock converse succeeded", attrs...)

	switch out.StopReason {
	case types.StopReasonMaxTokens:
		// Truncated output is left to the validator so the day can be repaired.
		slog.Warn("LLM_CLIENT: Bedrock output truncated at MaxTokens", "model", p.modelID)
		return textFromOutput(out), nil
	case types.StopReasonGuardrailIntervened, types.StopReasonContentFiltered:
		return "", mealplanner.NewFatalError(p.Name(), 0, errors.New("model response blocked by safety filters"))
	}

	text := textFromOutput(out)
	if text == "" {
		return "", mealplanner.NewFatalError(p.Name(), 0, errors.New("model returned no text"))
	}
	return text, nil
}

func withDefaults(opts mealplanner.GenerateOptions) mealplanner.GenerateOptions {
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	return opts
}

// classify maps Bedrock service exceptions onto provider error kinds.
func classify(err error) error {
	var (
		throttling  *types.ThrottlingException
		unavailable *types.ServiceUnavailableException
		timeout     *types.ModelTimeoutException
		internal    *types.InternalServerException
		notReady    *types.ModelNotReadyException
	)
	switch {
	case errors.As(err, &throttling):
		return mealplanner.NewTransientError(mealplanner.ProviderBedrock, 429, err)
	case errors.As(err, &unavailable):
		return mealplanner.NewTransientError(mealplanner.ProviderBedrock, 503, err)
	case errors.As(err, &timeout):
		return mealplanner.NewTransientError(mealplanner.ProviderBedrock, 408, err)
	case errors.As(err, &internal):
		return mealplanner.NewTransientError(mealplanner.ProviderBedrock, 500, err)
	case errors.As(err, &notReady):
		return mealplanner.NewTransientError(mealplanner.ProviderBedrock, 0, err)
	}

	var withStatus interface{ HTTPStatusCode() int }
	if errors.As(err, &withStatus) {
		return mealplanner.StatusError(mealplanner.ProviderBedrock, withStatus.HTTPStatusCode(), err)
	}
	return mealplanner.TransportError(mealplanner.ProviderBedrock, err)
}

// textFromOutput joins the text blocks of the assistant message.
func textFromOutput(out *bedrockruntime.ConverseOutput) string {
	if out == nil || out.Output == nil {
		return ""
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return ""
	}

	var texts []string
	for _, cb := range msg.Value.Content {
		if t, ok := cb.(*types.ContentBlockMemberText); ok && t != nil && t.Value != "" {
			texts = append(texts, t.Value)
		}
	}
	return strings.Join(texts, "\n")
}

var _ bedrockRuntimeClient = (*bedrockruntime.Client)(nil)

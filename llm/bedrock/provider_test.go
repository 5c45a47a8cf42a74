package bedrock

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealplanner"
)

// mockBedrockClient implements bedrockRuntimeClient for testing
type mockBedrockClient struct {
	input    *bedrockruntime.ConverseInput
	response *bedrockruntime.ConverseOutput
	err      error
}

func (m *mockBedrockClient) Converse(ctx context.Context, input *bedrockruntime.ConverseInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.input = input
	return m.response, m.err
}

// responseError mimics the SDK's HTTP response error wrapper.
type responseError struct {
	status int
	err    error
}

func (e *responseError) Error() string       { return e.err.Error() }
func (e *responseError) Unwrap() error       { return e.err }
func (e *responseError) HTTPStatusCode() int { return e.status }

func textOutput(reason types.StopReason, texts ...string) *bedrockruntime.ConverseOutput {
	var content []types.ContentBlock
	for _, t := range texts {
		content = append(content, &types.ContentBlockMemberText{Value: t})
	}
	return &bedrockruntime.ConverseOutput{
		StopReason: reason,
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role:    types.ConversationRoleAssistant,
			Content: content,
		}},
		Usage: &types.TokenUsage{InputTokens: aws.Int32(10), OutputTokens: aws.Int32(20)},
	}
}

func TestNew(t *testing.T) {
	client := &mockBedrockClient{}
	p := New(client, "")
	assert.Equal(t, defaultModelID, p.modelID)
	assert.Equal(t, client, p.brc)
	assert.Equal(t, mealplanner.ProviderBedrock, p.Name())
}

func TestGenerate(t *testing.T) {
	client := &mockBedrockClient{response: textOutput(types.StopReasonEndTurn, `{"meals":`, `[]}`)}
	p := New(client, "custom-model")

	out, err := p.Generate(context.Background(), "plan", mealplanner.GenerateOptions{System: "system"})
	require.NoError(t, err)
	assert.Equal(t, "{\"meals\":\n[]}", out)

	in := client.input
	assert.Equal(t, "custom-model", aws.ToString(in.ModelId))
	require.Len(t, in.System, 1)
	assert.Equal(t, &types.SystemContentBlockMemberText{Value: "system"}, in.System[0])
	require.Len(t, in.Messages, 1)
	assert.Equal(t, types.ConversationRoleUser, in.Messages[0].Role)
	assert.Equal(t, int32(defaultMaxTokens), aws.ToInt32(in.InferenceConfig.MaxTokens))
	assert.Equal(t, float32(0), aws.ToFloat32(in.InferenceConfig.Temperature))
	assert.Equal(t, float32(0), aws.ToFloat32(in.InferenceConfig.TopP))
}

func TestWithDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   mealplanner.GenerateOptions
		want mealplanner.GenerateOptions
	}{
		{
			name: "explicit values kept",
			in:   mealplanner.GenerateOptions{MaxTokens: 4096, Temperature: 0.7, TopP: 0.5},
			want: mealplanner.GenerateOptions{MaxTokens: 4096, Temperature: 0.7, TopP: 0.5},
		},
		{
			name: "greedy sampling kept",
			in:   mealplanner.GenerateOptions{MaxTokens: 512},
			want: mealplanner.GenerateOptions{MaxTokens: 512},
		},
		{
			name: "max tokens defaulted",
			in:   mealplanner.GenerateOptions{Temperature: 0.2},
			want: mealplanner.GenerateOptions{MaxTokens: defaultMaxTokens, Temperature: 0.2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, withDefaults(tt.in))
		})
	}
}

func TestGenerateReturnsTruncatedOutput(t *testing.T) {
	client := &mockBedrockClient{response: textOutput(types.StopReasonMaxTokens, `{"meals":[`)}

	out, err := New(client, "").Generate(context.Background(), "plan", mealplanner.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, `{"meals":[`, out)
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name     string
		client   *mockBedrockClient
		wantKind mealplanner.ProviderErrorKind
		wantCode int
	}{
		{
			name:     "guardrail",
			client:   &mockBedrockClient{response: textOutput(types.StopReasonGuardrailIntervened)},
			wantKind: mealplanner.Fatal,
		},
		{
			name:     "no text",
			client:   &mockBedrockClient{response: textOutput(types.StopReasonEndTurn)},
			wantKind: mealplanner.Fatal,
		},
		{
			name:     "no output",
			client:   &mockBedrockClient{response: &bedrockruntime.ConverseOutput{StopReason: types.StopReasonEndTurn}},
			wantKind: mealplanner.Fatal,
		},
		{
			name:     "throttled",
			client:   &mockBedrockClient{err: &types.ThrottlingException{Message: aws.String("slow down")}},
			wantKind: mealplanner.Transient,
			wantCode: 429,
		},
		{
			name:     "service unavailable",
			client:   &mockBedrockClient{err: &types.ServiceUnavailableException{}},
			wantKind: mealplanner.Transient,
			wantCode: 503,
		},
		{
			name:     "model timeout",
			client:   &mockBedrockClient{err: &types.ModelTimeoutException{}},
			wantKind: mealplanner.Transient,
			wantCode: 408,
		},
		{
			name:     "access denied",
			client:   &mockBedrockClient{err: &responseError{status: 403, err: &types.AccessDeniedException{Message: aws.String("denied")}}},
			wantKind: mealplanner.Fatal,
			wantCode: 403,
		},
		{
			name:     "unclassified server error",
			client:   &mockBedrockClient{err: &responseError{status: 502, err: errors.New("bad gateway")}},
			wantKind: mealplanner.Transient,
			wantCode: 502,
		},
		{
			name:     "network",
			client:   &mockBedrockClient{err: errors.New("connection reset by peer")},
			wantKind: mealplanner.Transient,
		},
		{
			name:     "canceled",
			client:   &mockBedrockClient{err: context.Canceled},
			wantKind: mealplanner.Fatal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.client, "").Generate(context.Background(), "plan", mealplanner.GenerateOptions{})

			var pe *mealplanner.ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.wantKind, pe.Kind)
			assert.Equal(t, tt.wantCode, pe.StatusCode)
		})
	}
}

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealplanner"
)

// mockHTTPClient implements mealplanner.HTTPClient for testing
type mockHTTPClient struct {
	response *http.Response
	err      error
	request  *http.Request
	body     []byte
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.request = req
	if req.Body != nil {
		m.body, _ = io.ReadAll(req.Body)
	}
	return m.response, m.err
}

func createMockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Status:     http.StatusText(statusCode),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestNew(t *testing.T) {
	p := New("http://localhost:11434/", "", nil)
	assert.Equal(t, "http://localhost:11434/api/chat", p.endpoint)
	assert.Equal(t, defaultModelID, p.model)
	assert.Equal(t, http.DefaultClient, p.httpClient)
	assert.Equal(t, mealplanner.ProviderOllama, p.Name())
}

func TestGenerateRequest(t *testing.T) {
	client := &mockHTTPClient{response: createMockResponse(http.StatusOK, `{"message":{"role":"assistant","content":"{\"meals\":[]}"},"done":true}`)}
	p := New("http://ollama:11434", "qwen3", client)

	out, err := p.Generate(context.Background(), "plan day 1", mealplanner.GenerateOptions{
		System:      "be terse",
		MaxTokens:   512,
		Temperature: 0.3,
		TopP:        0.8,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"meals":[]}`, out)

	assert.Equal(t, http.MethodPost, client.request.Method)
	assert.Equal(t, "http://ollama:11434/api/chat", client.request.URL.String())
	assert.Equal(t, "application/json", client.request.Header.Get("Content-Type"))

	var sent wireRequest
	require.NoError(t, json.Unmarshal(client.body, &sent))
	assert.Equal(t, wireRequest{
		Model: "qwen3",
		Messages: []message{
			{Role: "system", Content: "be terse"},
			{Role: "user", Content: "plan day 1"},
		},
		Format: "json",
		Stream: false,
		Options: options{
			Temperature:   0.3,
			TopP:          0.8,
			RepeatPenalty: 1.05,
			NumCtx:        16384,
			NumPredict:    512,
		},
	}, sent)
}

func TestGenerateWithoutSystemPrompt(t *testing.T) {
	client := &mockHTTPClient{response: createMockResponse(http.StatusOK, `{"message":{"content":"ok"}}`)}
	_, err := New("http://ollama:11434", "", client).Generate(context.Background(), "hi", mealplanner.GenerateOptions{})
	require.NoError(t, err)

	var sent wireRequest
	require.NoError(t, json.Unmarshal(client.body, &sent))
	require.Len(t, sent.Messages, 1)
	assert.Equal(t, "user", sent.Messages[0].Role)
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name      string
		client    *mockHTTPClient
		wantKind  mealplanner.ProviderErrorKind
		wantCode  int
		wantInMsg string
	}{
		{
			name:      "rate limited",
			client:    &mockHTTPClient{response: createMockResponse(http.StatusTooManyRequests, "slow down")},
			wantKind:  mealplanner.Transient,
			wantCode:  http.StatusTooManyRequests,
			wantInMsg: "slow down",
		},
		{
			name:     "server error",
			client:   &mockHTTPClient{response: createMockResponse(http.StatusBadGateway, "")},
			wantKind: mealplanner.Transient,
			wantCode: http.StatusBadGateway,
		},
		{
			name:      "model not found",
			client:    &mockHTTPClient{response: createMockResponse(http.StatusNotFound, `{"error":"model not found"}`)},
			wantKind:  mealplanner.Fatal,
			wantCode:  http.StatusNotFound,
			wantInMsg: "model not found",
		},
		{
			name:     "connection refused",
			client:   &mockHTTPClient{err: errors.New("dial tcp: connection refused")},
			wantKind: mealplanner.Transient,
		},
		{
			name:     "canceled",
			client:   &mockHTTPClient{err: context.Canceled},
			wantKind: mealplanner.Fatal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("http://ollama:11434", "", tt.client).Generate(context.Background(), "hi", mealplanner.GenerateOptions{})

			var pe *mealplanner.ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.wantKind, pe.Kind)
			assert.Equal(t, tt.wantCode, pe.StatusCode)
			assert.Equal(t, mealplanner.ProviderOllama, pe.Provider)
			if tt.wantInMsg != "" {
				assert.Contains(t, err.Error(), tt.wantInMsg)
			}
		})
	}
}

func TestGenerateReturnsUndecodableBody(t *testing.T) {
	client := &mockHTTPClient{response: createMockResponse(http.StatusOK, `{"meals": [] }garbage`)}
	out, err := New("http://ollama:11434", "", client).Generate(context.Background(), "hi", mealplanner.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, `{"meals": [] }garbage`, out)
}

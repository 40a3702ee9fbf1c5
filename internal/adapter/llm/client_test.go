package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteReturnsFirstChoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		assert.Len(t, req.Messages, 2)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ChatCompletionResponse{
			ID:      "x",
			Choices: []Choice{{Message: &ChatMessage{Role: "assistant", Content: "hello"}}},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", "secret", time.Second)
	text, err := Complete(context.Background(), client, "gpt-test", "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestCompleteStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	_, err := Complete(context.Background(), NewClient(srv.URL, "", time.Second), "m", "s", "u")
	require.Error(t, err)
	statusErr, ok := err.(*StatusError)
	require.True(t, ok)
	assert.Equal(t, "overloaded", statusErr.Message)
	assert.True(t, statusErr.Temporary())
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	_, err := Complete(context.Background(), NewClient(srv.URL, "", time.Second), "m", "s", "u")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestMockClientEchoesPrompt(t *testing.T) {
	text, err := Complete(context.Background(), NewMockClient(), "m", "s", "write about go")
	require.NoError(t, err)
	assert.Equal(t, "[MOCK] write about go", text)
}

func TestNewLLMClientMockMode(t *testing.T) {
	t.Setenv(EnvMode, ModeMock)
	_, ok := NewLLMClient("http://x", "", time.Second).(*MockClient)
	assert.True(t, ok)
}

func TestNewLLMClientSelection(t *testing.T) {
	t.Setenv(EnvMode, "")

	_, ok := NewLLMClient("", "", time.Second).(*MockClient)
	assert.True(t, ok, "empty endpoint falls back to the mock client")

	_, ok = NewLLMClient("http://litellm:4000", "key", time.Second).(*Client)
	assert.True(t, ok)
}

package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatSendsAuthorizedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"summary\":\"ok\"}"}}]}`))
	}))
	defer srv.Close()

	c := NewClientWithOptions("sk-test", srv.URL, 5*time.Second)

	resp, err := c.Chat(context.Background(), &ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "analyze"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, resp.GetMessageContent())
}

func TestChatSurfacesProviderError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	c := NewClientWithOptions("sk-bad", srv.URL, 5*time.Second)

	_, err := c.Chat(context.Background(), &ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "analyze"}},
	})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid_api_key", apiErr.Code)

	// Provider failures are never retried here; the insight layer falls back.
	assert.Equal(t, 1, calls)
}

func TestGetMessageContentEmptyChoices(t *testing.T) {
	assert.Equal(t, "", (&ChatResponse{}).GetMessageContent())
}

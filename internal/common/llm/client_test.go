// internal/common/llm/client_test.go
package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestLogger implements the Logger interface for testing
type TestLogger struct {
	t *testing.T
}

func NewTestLogger(t *testing.T) *TestLogger {
	return &TestLogger{t: t}
}

func (l *TestLogger) Debug(msg string, fields map[string]interface{}) {
	l.t.Logf("DEBUG: %s %v", msg, fields)
}

func (l *TestLogger) Error(msg string, fields map[string]interface{}) {
	l.t.Logf("ERROR: %s %v", msg, fields)
}

func createTestConfig(baseURL string) *Config {
	return &Config{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Model:       "gpt-4o-mini",
		MaxTokens:   256,
		Temperature: 0.2,
	}
}

func completionResponse(content string) string {
	response := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	data, _ := json.Marshal(response)
	return string(data)
}

func TestClient_Complete_Success(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionResponse("grounded answer")))
	}))
	defer server.Close()

	client := NewClient(createTestConfig(server.URL), NewTestLogger(t))

	text, err := client.Complete(context.Background(), "system rules", "user question")

	assert.NoError(t, err)
	assert.Equal(t, "grounded answer", text)
	assert.Equal(t, "gpt-4o-mini", captured.Model)
	assert.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "user question", captured.Messages[1].Content)
}

func TestClient_Complete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"auth"}}`))
	}))
	defer server.Close()

	client := NewClient(createTestConfig(server.URL), NewTestLogger(t))

	_, err := client.Complete(context.Background(), "system", "question")

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrModelCall)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestClient_Complete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewClient(createTestConfig(server.URL), NewTestLogger(t))

	_, err := client.Complete(context.Background(), "system", "question")

	assert.ErrorIs(t, err, ErrModelCall)
}

func TestClient_Complete_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte(completionResponse("too late")))
	}))
	defer server.Close()

	client := NewClient(createTestConfig(server.URL), NewTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, "system", "question")

	assert.ErrorIs(t, err, ErrModelTimeout)
}

func TestClient_Complete_ConfigTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte(completionResponse("too late")))
	}))
	defer server.Close()

	config := createTestConfig(server.URL)
	config.Timeout = 50 * time.Millisecond
	client := NewClient(config, NewTestLogger(t))

	// No caller deadline; the configured timeout alone must bound the call.
	_, err := client.Complete(context.Background(), "system", "question")

	assert.ErrorIs(t, err, ErrModelTimeout)
}

func TestClient_Complete_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(createTestConfig(server.URL), NewTestLogger(t))

	_, err := client.Complete(context.Background(), "system", "question")

	assert.ErrorIs(t, err, ErrModelCall)
}

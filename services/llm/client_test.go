package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Backends(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrNoBackend)

	_, err = NewClient(Config{Backend: "none"})
	assert.ErrorIs(t, err, ErrNoBackend)

	_, err = NewClient(Config{Backend: "mystery"})
	assert.Error(t, err)

	c, err := NewClient(Config{Backend: "ollama", BaseURL: "http://localhost:11434/"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, c)

	_, err = NewClient(Config{Backend: "ollama"})
	assert.Error(t, err, "ollama requires a base URL")

	_, err = NewClient(Config{Backend: "openai", SecretPath: "/nonexistent/key"})
	assert.Error(t, err, "openai requires a key")
}

func TestOllamaClient_Generate_JSONMode(t *testing.T) {
	var got ollamaGenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: `{"ok":true}`, Done: true})
	}))
	defer server.Close()

	c, err := NewOllamaClient(Config{BaseURL: server.URL, Model: "llama3"})
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), "hello", GenerationParams{JSONMode: true})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, "json", got.Format)
	assert.Equal(t, "llama3", got.Model)
	assert.False(t, got.Stream)
}

func TestOllamaClient_Generate_ModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'x' not found"}`))
	}))
	defer server.Close()

	c, err := NewOllamaClient(Config{BaseURL: server.URL, Model: "x"})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), "hello", GenerationParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama pull x")
}

func TestAnthropicClient_Generate(t *testing.T) {
	var gotKey string
	var got anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":"\"a\":1}"}]}`))
	}))
	defer server.Close()

	c, err := NewAnthropicClient(Config{APIKey: "sk-ant", BaseURL: server.URL})
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), "score this", GenerationParams{JSONMode: true})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)
	assert.Equal(t, "sk-ant", gotKey)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "assistant", got.Messages[1].Role)
}

func TestAnthropicClient_Generate_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c, err := NewAnthropicClient(Config{APIKey: "sk-ant", BaseURL: server.URL})
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), "x", GenerationParams{})
	assert.Error(t, err)
}

func TestOpenAIClient_Generate(t *testing.T) {
	var gotAuth string
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"x\":1}"}}]}`))
	}))
	defer server.Close()

	c, err := NewOpenAIClient(Config{APIKey: "sk-openai", BaseURL: server.URL, Model: "gpt-test"})
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), "prompt", GenerationParams{JSONMode: true})
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, out)
	assert.Equal(t, "Bearer sk-openai", gotAuth)
	assert.Equal(t, "gpt-test", got["model"])
	rf, ok := got["response_format"].(map[string]any)
	require.True(t, ok, "response_format should be set in JSON mode")
	assert.Equal(t, "json_object", rf["type"])
}

func TestLocalLlamaCppClient_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/completion", r.URL.Path)
		_, _ = w.Write([]byte(`{"content":"hi"}`))
	}))
	defer server.Close()

	c, err := NewLocalLlamaCppClient(Config{BaseURL: server.URL})
	require.NoError(t, err)
	out, err := c.Generate(context.Background(), "x", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

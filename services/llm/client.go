// Package llm provides clients for the text-generation backends the loan
// service uses for assisted review and decision narratives.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
	// JSONMode asks the backend to constrain its reply to a JSON object
	// where the backend supports it.
	JSONMode bool `json:"json_mode"`
}

// LLMClient defines the standard interface for any LLM backend
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// ErrNoBackend is returned by NewClient when no backend is configured.
var ErrNoBackend = errors.New("no LLM backend configured")

// Config selects and configures a backend.
//
// APIKey and SecretPath are alternatives: when APIKey is empty the key is
// read from SecretPath (a mounted container secret).
type Config struct {
	Backend    string
	Model      string
	BaseURL    string
	APIKey     string
	SecretPath string
	Timeout    time.Duration
	// SystemPrompt frames the role of the model for chat-style backends.
	SystemPrompt string
}

const defaultTimeout = 60 * time.Second

// NewClient builds the client named by cfg.Backend: "openai", "anthropic",
// "ollama" or "local". An empty backend or "none" yields ErrNoBackend.
func NewClient(cfg Config) (LLMClient, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none", "disabled":
		return nil, ErrNoBackend
	case "openai":
		return NewOpenAIClient(cfg)
	case "anthropic", "claude":
		return NewAnthropicClient(cfg)
	case "ollama":
		return NewOllamaClient(cfg)
	case "local", "llamacpp":
		return NewLocalLlamaCppClient(cfg)
	default:
		return nil, fmt.Errorf("unknown LLM backend %q", cfg.Backend)
	}
}

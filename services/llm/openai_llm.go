package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/AleutianLoan/pkg/secrets"
	"github.com/sashabaranov/go-openai"
)

const (
	openAISecretPath   = "/run/secrets/openai_api_key"
	defaultOpenAIModel = "gpt-4o-mini"
	defaultSystemRole  = "You are a senior loan underwriter. Answer only with the JSON object requested."
)

type OpenAIClient struct {
	key          *secrets.Sealed
	model        string
	baseURL      string
	systemPrompt string
	httpClient   *http.Client
}

func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	secretPath := cfg.SecretPath
	if secretPath == "" {
		secretPath = openAISecretPath
	}
	apiKey, err := secrets.Resolve(cfg.APIKey, secretPath)
	if err != nil {
		slog.Error("OPENAI_API_KEY not set and secret not found", "path", secretPath)
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set: %w", err)
	}
	key, err := secrets.Seal(apiKey)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
		slog.Warn("OPENAI_MODEL not set, defaulting", "model", model)
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemRole
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	slog.Info("Initializing OpenAI client", "model", model)
	return &OpenAIClient{
		key:          key,
		model:        model,
		baseURL:      cfg.BaseURL,
		systemPrompt: systemPrompt,
		httpClient:   &http.Client{Timeout: timeout},
	}, nil
}

// Generate implements the LLMClient interface
func (o *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	slog.Debug("Generating text via OpenAI", "model", o.model)
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}
	if params.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	var resp openai.ChatCompletionResponse
	err := o.key.Use(func(apiKey string) error {
		config := openai.DefaultConfig(apiKey)
		if o.baseURL != "" {
			config.BaseURL = o.baseURL
		}
		config.HTTPClient = o.httpClient
		var callErr error
		resp, callErr = openai.NewClientWithConfig(config).CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices or empty content")
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	slog.Debug("Received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

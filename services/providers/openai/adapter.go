package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/upb/billbuddy/services/providers"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
)

// OpenAIAdapter implements the embedding and completion providers for OpenAI
type OpenAIAdapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewOpenAIAdapter creates a new OpenAI adapter
func NewOpenAIAdapter(config providers.ProviderConfig, logger *zap.Logger) *OpenAIAdapter {
	defaults := providers.DefaultProviderConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = defaults.EmbeddingModel
	}
	if config.ChatModel == "" {
		config.ChatModel = defaults.ChatModel
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = defaults.MaxTokens
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}
	burst := int(config.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	return &OpenAIAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Name returns the provider name
func (a *OpenAIAdapter) Name() string {
	return "openai"
}

// Embed returns the embedding vector for text
func (a *OpenAIAdapter) Embed(ctx context.Context, text string) ([]float64, error) {
	a.logger.Debug("generating embedding",
		zap.String("model", a.config.EmbeddingModel),
		zap.Int("text_length", len(text)))

	reqBody := EmbeddingRequest{
		Model: a.config.EmbeddingModel,
		Input: []string{text},
	}

	var resp EmbeddingResponse
	if err := a.do(ctx, "/embeddings", reqBody, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, providers.NewProviderError(a.Name(), "EMPTY_EMBEDDING", "embedding response contained no vector", http.StatusOK, false, nil)
	}

	return resp.Data[0].Embedding, nil
}

// Complete performs a chat completion with a system and a user message
func (a *OpenAIAdapter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	startTime := time.Now()

	temperature := a.config.Temperature
	maxTokens := a.config.MaxTokens
	reqBody := ChatRequest{
		Model: a.config.ChatModel,
		Messages: []providers.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}

	var resp ChatResponse
	if err := a.do(ctx, "/chat/completions", reqBody, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", providers.NewProviderError(a.Name(), "EMPTY_COMPLETION", "completion response contained no choices", http.StatusOK, false, nil)
	}

	a.logger.Debug("completion received",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("latency", time.Since(startTime)))

	return resp.Choices[0].Message.Content, nil
}

// IsAvailable checks if the provider is currently available
func (a *OpenAIAdapter) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.BaseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+a.config.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// do posts payload to path and decodes the JSON reply into out, retrying
// transport errors, 5xx and 429 responses.
func (a *OpenAIAdapter) do(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	var lastErr error
	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, a.config.RetryDelay*time.Duration(attempt)); err != nil {
				return providers.NewProviderError(a.Name(), "CANCELLED", "request cancelled during retry backoff", 0, false, err)
			}
			a.logger.Debug("retrying provider request",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
		}

		if err := a.limiter.Wait(ctx); err != nil {
			cause := err
			if ctx.Err() != nil {
				cause = ctx.Err()
			}
			return providers.NewProviderError(a.Name(), "RATE_LIMITED", "request not admitted by rate limiter", 0, false, cause)
		}

		lastErr = a.attempt(ctx, path, body, out)
		if lastErr == nil {
			return nil
		}
		if !providers.IsRetryable(lastErr) || ctx.Err() != nil {
			return lastErr
		}
	}

	return lastErr
}

func (a *OpenAIAdapter) attempt(ctx context.Context, path string, body []byte, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return providers.NewProviderError(a.Name(), "REQUEST_ERROR", "failed to create request", 0, false, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	if a.config.OrgID != "" {
		httpReq.Header.Set("OpenAI-Organization", a.config.OrgID)
	}
	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return providers.NewProviderError(a.Name(), "HTTP_ERROR", "HTTP request failed", 0, ctx.Err() == nil, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return providers.NewProviderError(a.Name(), "READ_ERROR", "failed to read response", httpResp.StatusCode, false, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return a.handleErrorResponse(httpResp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "failed to unmarshal response", httpResp.StatusCode, false, err)
	}
	return nil
}

// handleErrorResponse handles OpenAI error responses
func (a *OpenAIAdapter) handleErrorResponse(statusCode int, body []byte) error {
	retryable := statusCode >= 500 || statusCode == http.StatusTooManyRequests

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError(a.Name(), "UNKNOWN_ERROR",
			fmt.Sprintf("unexpected status %d", statusCode), statusCode, retryable, errors.New(string(body)))
	}

	return providers.NewProviderError(
		a.Name(),
		errResp.Error.Type,
		errResp.Error.Message,
		statusCode,
		retryable,
		errors.New(errResp.Error.Message),
	)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// OpenAI-specific request/response types

type EmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type EmbeddingResponse struct {
	Object string          `json:"object"`
	Model  string          `json:"model"`
	Data   []EmbeddingData `json:"data"`
	Usage  Usage           `json:"usage"`
}

type EmbeddingData struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

type ChatRequest struct {
	Model       string              `json:"model"`
	Messages    []providers.Message `json:"messages"`
	Temperature *float64            `json:"temperature,omitempty"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
}

type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Index        int               `json:"index"`
	Message      providers.Message `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

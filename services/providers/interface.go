package providers

import (
	"context"
	"errors"
	"time"
)

// EmbeddingProvider converts text into a fixed-length vector
type EmbeddingProvider interface {
	// Name returns the provider name (e.g., "openai")
	Name() string

	// Embed returns the embedding of text. Vectors from one provider model
	// always have the same dimensionality.
	Embed(ctx context.Context, text string) ([]float64, error)
}

// CompletionProvider generates free text from a system and a user prompt
type CompletionProvider interface {
	// Name returns the provider name (e.g., "openai")
	Name() string

	// Complete returns the model's reply to userPrompt under systemPrompt
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Message represents a single message in a conversation
type Message struct {
	// Role can be "system", "user", or "assistant"
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`
}

// ProviderConfig holds common configuration for providers
type ProviderConfig struct {
	// APIKey for authentication
	APIKey string

	// BaseURL for the API (optional override)
	BaseURL string

	// EmbeddingModel is the model used for Embed
	EmbeddingModel string

	// ChatModel is the model used for Complete
	ChatModel string

	// Temperature and MaxTokens tune the completion
	Temperature float64
	MaxTokens   int

	// Timeout for a single HTTP attempt
	Timeout time.Duration

	// MaxRetries for failed requests
	MaxRetries int

	// RetryDelay between retries, multiplied by the attempt number
	RetryDelay time.Duration

	// RequestsPerSecond caps outbound calls; zero disables the limiter
	RequestsPerSecond float64

	// Additional headers
	Headers map[string]string

	// OrgID for organization-specific endpoints
	OrgID string
}

// DefaultProviderConfig returns a sensible default configuration
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		EmbeddingModel: "text-embedding-ada-002",
		ChatModel:      "gpt-4",
		Temperature:    0.7,
		MaxTokens:      800,
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		Headers:        make(map[string]string),
	}
}

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the error code
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the request can be retried
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}

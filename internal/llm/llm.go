// Package llm wraps the generative model providers used to grade applications.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"google.golang.org/api/googleapi"
)

// Providers
const (
	ProviderGemini   = "gemini"
	ProviderVertexAI = "vertexai"
	ProviderOpenAI   = "openai"
)

// Generation defaults
const (
	DefaultGeminiModel = "gemini-1.5-flash"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultLocation    = "us-central1"
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 2048
)

// ErrNotConfigured is returned when no provider can be built from the settings
var ErrNotConfigured = errors.New("llm provider not configured")

// Generator produces text for a prompt
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
	Close() error
}

// Settings selects and configures a provider
type Settings struct {
	Provider     string
	GeminiAPIKey string
	GeminiModel  string
	Project      string
	Location     string
	OpenAIAPIKey string
	OpenAIModel  string
}

// New builds the generator named by s.Provider
func New(ctx context.Context, s Settings) (Generator, error) {
	switch strings.ToLower(s.Provider) {
	case "", ProviderGemini:
		if s.GeminiAPIKey == "" {
			return nil, fmt.Errorf("%w: gemini API key is empty", ErrNotConfigured)
		}
		return NewGeminiClient(ctx, s.GeminiAPIKey, s.GeminiModel)
	case ProviderVertexAI:
		return NewVertexAIClient(ctx, s.Project, s.Location, s.GeminiModel)
	case ProviderOpenAI:
		return NewOpenAIClient(s.OpenAIAPIKey, s.OpenAIModel)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNotConfigured, s.Provider)
	}
}

// WithAPIKey returns a copy of s that uses a caller supplied Gemini key
func (s Settings) WithAPIKey(key string) Settings {
	s.Provider = ProviderGemini
	s.GeminiAPIKey = key
	return s
}

// IsRateLimitError reports whether err signals a rate limit or exhausted quota
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusTooManyRequests {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "resourceexhausted") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota")
}

// CleanJSONBlock removes markdown code fences around a JSON payload
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```JSON")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

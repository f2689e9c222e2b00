package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"quillcast/internal/config"
)

// ErrNoAPIKey means the active provider has no credential configured.
// Callers distinguish this from transport failures: the safety gate opens
// on a missing key but closes on any other failure.
var ErrNoAPIKey = errors.New("no api key configured for provider")

// RequestError wraps a transport or provider-side failure.
type RequestError struct {
	Provider string
	Err      error
}

func (e *RequestError) Error() string { return fmt.Sprintf("%s request: %v", e.Provider, e.Err) }
func (e *RequestError) Unwrap() error { return e.Err }

// Provider sends one system+user completion request and returns the reply text.
type Provider interface {
	Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error)
}

// New builds the configured provider. The provider name defaults to anthropic,
// matching config normalization.
func New(cfg config.AIConfig) Provider {
	if strings.ToLower(cfg.Provider) == "openai" {
		return NewOpenAI(cfg.APIKey, cfg.Model)
	}
	return NewAnthropic(cfg.APIKey, cfg.Model)
}

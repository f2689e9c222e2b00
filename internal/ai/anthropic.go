package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"quillcast/internal/metrics"
)

const anthropicURL = "https://api.anthropic.com/v1/messages"

// Anthropic calls the messages API.
type Anthropic struct {
	apiKey string
	model  string
}

func NewAnthropic(apiKey, model string) *Anthropic {
	if model == "" {
		model = "claude-3-5-haiku-20241022"
	}
	return &Anthropic{apiKey: apiKey, model: model}
}

type anMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anRequest struct {
	Model       string      `json:"model"`
	MaxTokens   int         `json:"max_tokens"`
	System      string      `json:"system,omitempty"`
	Messages    []anMessage `json:"messages"`
	Temperature float64     `json:"temperature"`
}

type anResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Anthropic) Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("anthropic: %w", ErrNoAPIKey)
	}
	body, err := json.Marshal(anRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		System:      system,
		Messages:    []anMessage{{Role: "user", Content: user}},
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	req, err := httpNewRequest(ctx, http.MethodPost, anthropicURL, body)
	if err != nil {
		return "", &RequestError{Provider: "anthropic", Err: err}
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")
	start := time.Now()
	resp, err := httpDo(req)
	metrics.ObserveProviderDuration(start)
	if err != nil {
		return "", &RequestError{Provider: "anthropic", Err: err}
	}
	defer resp.Body.Close()
	var out anResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &RequestError{Provider: "anthropic", Err: err}
	}
	if resp.StatusCode >= 400 {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", &RequestError{Provider: "anthropic", Err: fmt.Errorf("%s", msg)}
	}
	for _, blk := range out.Content {
		if blk.Type == "text" {
			return strings.TrimSpace(blk.Text), nil
		}
	}
	return "", nil
}

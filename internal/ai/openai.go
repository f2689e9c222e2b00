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

const openAIURL = "https://api.openai.com/v1/chat/completions"

// OpenAI calls the chat completions API.
type OpenAI struct {
	apiKey string
	model  string
}

func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{apiKey: apiKey, model: model}
}

type oaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaRequest struct {
	Model       string      `json:"model"`
	Messages    []oaMessage `json:"messages"`
	Temperature float64     `json:"temperature"`
	MaxTokens   int         `json:"max_tokens"`
}

type oaResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *OpenAI) Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("openai: %w", ErrNoAPIKey)
	}
	body, err := json.Marshal(oaRequest{
		Model: c.model,
		Messages: []oaMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}
	req, err := httpNewRequest(ctx, http.MethodPost, openAIURL, body)
	if err != nil {
		return "", &RequestError{Provider: "openai", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	start := time.Now()
	resp, err := httpDo(req)
	metrics.ObserveProviderDuration(start)
	if err != nil {
		return "", &RequestError{Provider: "openai", Err: err}
	}
	defer resp.Body.Close()
	var out oaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &RequestError{Provider: "openai", Err: err}
	}
	if resp.StatusCode >= 400 {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", &RequestError{Provider: "openai", Err: fmt.Errorf("%s", msg)}
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

package xclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"quillcast/internal/accounts"
)

// Writer posts tweets through X API v2 with OAuth 1.0a user context.
// It performs no retrying itself: rate-limit and error handling policy
// belongs to the publisher.
type Writer struct {
	baseURL    string
	signer     *oauth1Signer
	httpClient *http.Client
}

// NewWriter builds a write client for one account's credentials.
func NewWriter(consumerKey, consumerSecret string, creds accounts.Credentials) *Writer {
	return &Writer{
		baseURL:    "https://api.twitter.com/2",
		signer:     newOAuth1Signer(consumerKey, consumerSecret, creds.AccessToken, creds.AccessSecret),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type createTweetRequest struct {
	Text  string `json:"text"`
	Media *struct {
		MediaIDs []string `json:"media_ids"`
	} `json:"media,omitempty"`
}

type createTweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Detail string `json:"detail"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// CreatePost submits one tweet and returns the platform-assigned id.
// Failures are classified into the typed errors of this package.
func (w *Writer) CreatePost(ctx context.Context, text string, mediaIDs []string) (string, error) {
	payload := createTweetRequest{Text: text}
	if len(mediaIDs) > 0 {
		payload.Media = &struct {
			MediaIDs []string `json:"media_ids"`
		}{MediaIDs: mediaIDs}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/tweets", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	w.signer.sign(req, nil)
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", &APIError{Status: 0, Detail: err.Error(), class: ErrTransient}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var out createTweetResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode >= 400 {
		detail := out.Detail
		if detail == "" && len(out.Errors) > 0 {
			detail = out.Errors[0].Message
		}
		return "", ClassifyStatus(resp.StatusCode, detail)
	}
	if out.Data.ID == "" {
		return "", ClassifyStatus(resp.StatusCode, "response missing tweet id")
	}
	return out.Data.ID, nil
}

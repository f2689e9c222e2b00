package xclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"quillcast/internal/model"
)

// Reader defines the read-only corpus operations used from the X API.
type Reader interface {
	GetUserID(ctx context.Context, username string) (string, error)
	GetUserTweets(ctx context.Context, userID string, limit int, paginationToken string) ([]model.Tweet, string, error)
}

// HTTPReader is a bearer-token client for X API v2 reads.
type HTTPReader struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
}

func NewHTTPReader(bearerToken string) *HTTPReader {
	return &HTTPReader{
		baseURL:     "https://api.twitter.com/2",
		bearerToken: bearerToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		limiter:     newDefaultLimiter(),
		maxAttempts: getEnvInt("X_API_MAX_ATTEMPTS", 5),
		baseBackoff: time.Duration(getEnvInt("X_API_BASE_BACKOFF_MS", 500)) * time.Millisecond,
	}
}

func (c *HTTPReader) auth(req *http.Request) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	req.Header.Set("Accept", "application/json")
}

// GetUserID resolves a username to its platform id.
func (c *HTTPReader) GetUserID(ctx context.Context, username string) (string, error) {
	if username == "" {
		return "", errors.New("empty username")
	}
	u := fmt.Sprintf("%s/users/by/username/%s", c.baseURL, url.PathEscape(username))
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	c.auth(req)
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", ClassifyStatus(resp.StatusCode, "")
	}
	var raw struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", err
	}
	if raw.Data.ID == "" {
		return "", fmt.Errorf("user not found: %s", username)
	}
	return raw.Data.ID, nil
}

// GetUserTweets returns one page of a user's recent original tweets plus the
// pagination token for the next page ("" when exhausted).
func (c *HTTPReader) GetUserTweets(ctx context.Context, userID string, limit int, paginationToken string) ([]model.Tweet, string, error) {
	u := fmt.Sprintf("%s/users/%s/tweets?max_results=%d&tweet.fields=created_at,public_metrics,entities&exclude=retweets,replies",
		c.baseURL, url.PathEscape(userID), clamp(limit, 5, 100))
	if paginationToken != "" {
		u += "&pagination_token=" + url.QueryEscape(paginationToken)
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	c.auth(req)
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}
	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, "", ClassifyStatus(resp.StatusCode, "")
	}
	var raw struct {
		Data []struct {
			ID            string    `json:"id"`
			Text          string    `json:"text"`
			CreatedAt     time.Time `json:"created_at"`
			PublicMetrics struct {
				LikeCount    int `json:"like_count"`
				ReplyCount   int `json:"reply_count"`
				RetweetCount int `json:"retweet_count"`
				QuoteCount   int `json:"quote_count"`
			} `json:"public_metrics"`
			Entities struct {
				Hashtags []struct {
					Tag string `json:"tag"`
				} `json:"hashtags"`
				Mentions []struct {
					Username string `json:"username"`
				} `json:"mentions"`
			} `json:"entities"`
		} `json:"data"`
		Meta struct {
			NextToken string `json:"next_token"`
		} `json:"meta"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, "", err
	}
	out := make([]model.Tweet, 0, len(raw.Data))
	for _, d := range raw.Data {
		t := model.Tweet{
			ID:           d.ID,
			Text:         d.Text,
			CreatedAt:    d.CreatedAt,
			LikeCount:    d.PublicMetrics.LikeCount,
			ReplyCount:   d.PublicMetrics.ReplyCount,
			RetweetCount: d.PublicMetrics.RetweetCount,
			QuoteCount:   d.PublicMetrics.QuoteCount,
		}
		for _, h := range d.Entities.Hashtags {
			t.Hashtags = append(t.Hashtags, h.Tag)
		}
		for _, m := range d.Entities.Mentions {
			t.Mentions = append(t.Mentions, m.Username)
		}
		out = append(out, t)
	}
	return out, raw.Meta.NextToken, nil
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func (c *HTTPReader) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err == nil {
			if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599) {
				ra := resp.Header.Get("Retry-After")
				_ = resp.Body.Close()
				wait := backoff
				if ra != "" {
					if secs, err := strconv.Atoi(ra); err == nil {
						wait = time.Duration(secs) * time.Second
					} else if t, err := http.ParseTime(ra); err == nil {
						if d := time.Until(t); d > 0 {
							wait = d
						}
					}
				}
				// jitter +/-20%
				jitter := time.Duration(float64(wait) * 0.2)
				if jitter > 0 {
					wait = wait - jitter + time.Duration(time.Now().UnixNano()%int64(2*jitter))
				}
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				backoff *= 2
				continue
			}
			return resp, nil
		}
		lastErr = err
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("request failed after %d attempts: %v", c.maxAttempts, lastErr)
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil && i > 0 {
		return i
	}
	return def
}

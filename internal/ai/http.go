package ai

import (
	"bytes"
	"context"
	"net/http"
	"time"
)

// --- light http helpers (decoupled for testability) ---

var httpNewRequest = defaultNewRequest
var httpDo = defaultDo

func defaultNewRequest(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
}

func defaultDo(req *http.Request) (*http.Response, error) {
	client := &http.Client{Timeout: 60 * time.Second}
	return client.Do(req)
}

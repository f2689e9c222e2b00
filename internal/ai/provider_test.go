package ai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"quillcast/internal/metrics"
)

func withStubDo(t *testing.T, fn func(req *http.Request) (*http.Response, error)) {
	t.Helper()
	orig := httpDo
	httpDo = fn
	t.Cleanup(func() { httpDo = orig })
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestCompleteMissingKeyIsErrNoAPIKey(t *testing.T) {
	for _, p := range []Provider{NewOpenAI("", ""), NewAnthropic("", "")} {
		_, err := p.Complete(context.Background(), "sys", "user", 100, 0)
		if !errors.Is(err, ErrNoAPIKey) {
			t.Fatalf("expected ErrNoAPIKey, got %v", err)
		}
	}
}

func TestOpenAIParsesChoice(t *testing.T) {
	withStubDo(t, func(req *http.Request) (*http.Response, error) {
		if got := req.Header.Get("Authorization"); got != "Bearer k" {
			t.Fatalf("missing auth header: %q", got)
		}
		return jsonResponse(200, `{"choices":[{"message":{"content":"  a short post  "}}]}`), nil
	})
	p := NewOpenAI("k", "gpt-4o-mini")
	got, err := p.Complete(context.Background(), "sys", "user", 150, 0.8)
	if err != nil {
		t.Fatal(err)
	}
	if got != "a short post" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestAnthropicParsesTextBlock(t *testing.T) {
	withStubDo(t, func(req *http.Request) (*http.Response, error) {
		if got := req.Header.Get("x-api-key"); got != "k" {
			t.Fatalf("missing api key header: %q", got)
		}
		return jsonResponse(200, `{"content":[{"type":"text","text":"hello"}]}`), nil
	})
	p := NewAnthropic("k", "")
	got, err := p.Complete(context.Background(), "sys", "user", 150, 0.3)
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func providerCallCount(t *testing.T) uint64 {
	t.Helper()
	var m dto.Metric
	if err := metrics.ProviderDuration.Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestCompleteObservesCallDuration(t *testing.T) {
	withStubDo(t, func(req *http.Request) (*http.Response, error) {
		// a body both decoders accept
		return jsonResponse(200, `{"choices":[{"message":{"content":"x"}}],"content":[{"type":"text","text":"x"}]}`), nil
	})
	before := providerCallCount(t)
	for _, p := range []Provider{NewOpenAI("k", ""), NewAnthropic("k", "")} {
		if _, err := p.Complete(context.Background(), "sys", "user", 100, 0); err != nil {
			t.Fatal(err)
		}
	}
	if got := providerCallCount(t); got != before+2 {
		t.Fatalf("expected %d observations, got %d", before+2, got)
	}
}

func TestProviderErrorStatusIsRequestError(t *testing.T) {
	withStubDo(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(500, `{"error":{"message":"overloaded"}}`), nil
	})
	p := NewAnthropic("k", "")
	_, err := p.Complete(context.Background(), "sys", "user", 150, 0)
	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if errors.Is(err, ErrNoAPIKey) {
		t.Fatal("transport failure must not read as a missing key")
	}
	if !strings.Contains(err.Error(), "overloaded") {
		t.Fatalf("error should carry provider message: %v", err)
	}
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsExposure(t *testing.T) {
	Cycles.WithLabelValues("alice", "published").Inc()
	Publishes.WithLabelValues("alice").Inc()
	GateRejections.WithLabelValues("blocklist").Inc()
	RateLimitRetries.Inc()
	ObserveProviderDuration(time.Now().Add(-1500 * time.Millisecond))
	IncCommandRun("post")
	IncCommandError("post")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, m := range []string{
		"quillcast_cycles_total",
		"quillcast_publishes_total",
		"quillcast_gate_rejections_total",
		"quillcast_publish_rate_limit_retries_total",
		"quillcast_provider_call_duration_seconds",
		"quillcast_command_runs_total",
	} {
		if !strings.Contains(body, m) {
			t.Fatalf("expected metric %s in body", m)
		}
	}
}

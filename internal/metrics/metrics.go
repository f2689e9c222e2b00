package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Cycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quillcast_cycles_total",
		Help: "Scheduled publishing cycles by outcome",
	}, []string{"handle", "outcome"})
	Publishes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quillcast_publishes_total",
		Help: "Successful publishes",
	}, []string{"handle"})
	GateRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quillcast_gate_rejections_total",
		Help: "Candidates rejected per gate",
	}, []string{"gate"})
	RateLimitRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quillcast_publish_rate_limit_retries_total",
		Help: "Publish attempts retried after a rate-limit signal",
	})
	ProviderDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "quillcast_provider_call_duration_seconds",
		Help:    "Language-model provider call duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	FetchRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quillcast_fetch_runs_total",
		Help: "Corpus fetch invocations",
	})
	FetchErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quillcast_fetch_errors_total",
		Help: "Corpus fetch failures",
	})
	FetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "quillcast_fetch_duration_seconds",
		Help:    "Corpus fetch duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quillcast_command_runs_total",
		Help: "CLI command invocations",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quillcast_command_errors_total",
		Help: "CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(Cycles, Publishes, GateRejections, RateLimitRetries, ProviderDuration, FetchRuns, FetchErrors, FetchDuration, CommandRuns, CommandErrors)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, nil) }()
}

// ObserveProviderDuration records one provider call duration.
func ObserveProviderDuration(start time.Time) {
	ProviderDuration.Observe(time.Since(start).Seconds())
}

// ObserveFetchDuration records one corpus fetch duration.
func ObserveFetchDuration(start time.Time) {
	FetchDuration.Observe(time.Since(start).Seconds())
}

// IncCommandRun increments the invocation counter for a CLI command.
func IncCommandRun(cmd string) { CommandRuns.WithLabelValues(cmd).Inc() }

// IncCommandError increments the failure counter for a CLI command.
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }

package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quillcast/internal/accounts"
	"quillcast/internal/guard"
	"quillcast/internal/model"
	"quillcast/internal/publisher"
)

type fakeClock struct {
	mu     sync.Mutex
	ch     chan time.Time
	waited []time.Duration
}

func newFakeClock() *fakeClock { return &fakeClock{ch: make(chan time.Time)} }

func (f *fakeClock) Now() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

func (f *fakeClock) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	f.waited = append(f.waited, d)
	f.mu.Unlock()
	return f.ch
}

type fixedProfiles struct{ err error }

func (f fixedProfiles) Load(handle string) (model.StyleProfile, error) {
	return model.StyleProfile{Handle: handle, Tone: "dry"}, f.err
}

type fixedGen struct {
	text string
	err  error
}

func (f fixedGen) Generate(ctx context.Context, p model.StyleProfile, topic, extra string) (string, error) {
	return f.text, f.err
}

type fixedGate struct{ verdict guard.Verdict }

func (f fixedGate) Review(ctx context.Context, text string, p model.StyleProfile, recent []string) guard.Verdict {
	return f.verdict
}

type memQuota struct {
	mu     sync.Mutex
	counts map[string]int
	limit  int
}

func newMemQuota(limit int) *memQuota { return &memQuota{counts: map[string]int{}, limit: limit} }

func (m *memQuota) Check(ctx context.Context, handle string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[handle] < m.limit, nil
}

func (m *memQuota) Increment(ctx context.Context, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[handle]++
	return nil
}

func (m *memQuota) count(handle string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[handle]
}

type mapCreds struct {
	byHandle map[string]accounts.Credentials
}

func (m mapCreds) Credentials(handle string) (accounts.Credentials, error) {
	if c, ok := m.byHandle[handle]; ok {
		return c, nil
	}
	return accounts.Credentials{}, accounts.ErrMissingCredentials
}

type recordingPoster struct {
	mu        sync.Mutex
	requests  []publisher.Request
	err       error
	published chan string
}

func (r *recordingPoster) Publish(ctx context.Context, req publisher.Request) (publisher.Result, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if r.err != nil {
		return publisher.Result{}, r.err
	}
	if r.published != nil {
		r.published <- req.Handle
	}
	return publisher.Result{ID: "1", DryRun: req.DryRun}, nil
}

func (r *recordingPoster) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

type fixedRecent struct{ texts []string }

func (f fixedRecent) ListRecentTexts(ctx context.Context, handle string, limit int) ([]string, error) {
	return f.texts, nil
}

func newTestScheduler(opts Options, gen Generator, gate Gate, q Quota, creds CredentialSource, poster Poster) (*Scheduler, *fakeClock) {
	clock := newFakeClock()
	s := New(fixedProfiles{}, gen, gate, q, creds, poster, fixedRecent{}, opts)
	s.clock = clock
	s.randFn = func(n int64) int64 { return 0 }
	return s, clock
}

func approved() Gate { return fixedGate{verdict: guard.Verdict{Approved: true}} }

func allCreds() CredentialSource {
	return mapCreds{byHandle: map[string]accounts.Credentials{
		"alice": {AccessToken: "t", AccessSecret: "s"},
		"bob":   {AccessToken: "t", AccessSecret: "s"},
	}}
}

func TestCyclePublishesAndIncrementsQuota(t *testing.T) {
	q := newMemQuota(5)
	poster := &recordingPoster{}
	s, _ := newTestScheduler(Options{SafetyCheck: true}, fixedGen{text: "a post"}, approved(), q, allCreds(), poster)
	out, err := s.Cycle(context.Background(), "alice")
	if err != nil || out != OutcomePublished {
		t.Fatalf("expected published, got %v %v", out, err)
	}
	if q.count("alice") != 1 {
		t.Fatalf("quota should increment once, got %d", q.count("alice"))
	}
}

func TestCycleGateRejectionSkipsWithoutPublish(t *testing.T) {
	q := newMemQuota(5)
	poster := &recordingPoster{}
	gate := fixedGate{verdict: guard.Verdict{Gate: "blocklist", Reason: "hit"}}
	s, _ := newTestScheduler(Options{SafetyCheck: true}, fixedGen{text: "a post"}, gate, q, allCreds(), poster)
	out, err := s.Cycle(context.Background(), "alice")
	if err != nil || out != OutcomeSkipped {
		t.Fatalf("expected skip, got %v %v", out, err)
	}
	if poster.calls() != 0 || q.count("alice") != 0 {
		t.Fatal("rejected candidate must not publish or touch quota")
	}
}

func TestCycleEmptyCandidateSkips(t *testing.T) {
	poster := &recordingPoster{}
	s, _ := newTestScheduler(Options{SafetyCheck: true}, fixedGen{text: ""}, approved(), newMemQuota(5), allCreds(), poster)
	out, err := s.Cycle(context.Background(), "alice")
	if err != nil || out != OutcomeSkipped {
		t.Fatalf("expected skip on empty candidate, got %v %v", out, err)
	}
	if poster.calls() != 0 {
		t.Fatal("empty candidate must not publish")
	}
}

func TestCycleQuotaExhaustedSkips(t *testing.T) {
	q := newMemQuota(0)
	poster := &recordingPoster{}
	s, _ := newTestScheduler(Options{SafetyCheck: true}, fixedGen{text: "a post"}, approved(), q, allCreds(), poster)
	out, err := s.Cycle(context.Background(), "alice")
	if err != nil || out != OutcomeSkipped {
		t.Fatalf("expected skip at ceiling, got %v %v", out, err)
	}
	if poster.calls() != 0 {
		t.Fatal("exhausted quota must not publish")
	}
}

func TestCyclePublishFailureLeavesQuota(t *testing.T) {
	q := newMemQuota(5)
	poster := &recordingPoster{err: errors.New("boom")}
	s, _ := newTestScheduler(Options{SafetyCheck: true}, fixedGen{text: "a post"}, approved(), q, allCreds(), poster)
	out, err := s.Cycle(context.Background(), "alice")
	if err == nil || out != OutcomeFailed {
		t.Fatalf("expected failure, got %v %v", out, err)
	}
	if q.count("alice") != 0 {
		t.Fatal("failed publish must never increment quota")
	}
}

func TestCycleMissingCredentialsFails(t *testing.T) {
	poster := &recordingPoster{}
	s, _ := newTestScheduler(Options{SafetyCheck: true}, fixedGen{text: "a post"}, approved(), newMemQuota(5), mapCreds{}, poster)
	out, err := s.Cycle(context.Background(), "alice")
	if !errors.Is(err, accounts.ErrMissingCredentials) || out != OutcomeFailed {
		t.Fatalf("expected credential failure, got %v %v", out, err)
	}
	if poster.calls() != 0 {
		t.Fatal("no publish without credentials")
	}
}

func TestCycleDryRunBypassesGatesAndQuota(t *testing.T) {
	q := newMemQuota(0) // exhausted; dry runs ignore it
	poster := &recordingPoster{}
	gate := fixedGate{verdict: guard.Verdict{Gate: "blocklist", Reason: "would reject"}}
	s, _ := newTestScheduler(Options{SafetyCheck: true, DryRun: true}, fixedGen{text: "a post"}, gate, q, allCreds(), poster)
	out, err := s.Cycle(context.Background(), "alice")
	if err != nil || out != OutcomePublished {
		t.Fatalf("expected dry-run publish, got %v %v", out, err)
	}
	if poster.calls() != 1 || !poster.requests[0].DryRun {
		t.Fatalf("expected one dry-run request: %+v", poster.requests)
	}
	if q.count("alice") != 0 {
		t.Fatal("dry runs must not increment quota")
	}
}

func TestIntervalFloor(t *testing.T) {
	s, _ := newTestScheduler(Options{Interval: time.Second}, fixedGen{}, approved(), newMemQuota(1), allCreds(), &recordingPoster{})
	if got := s.Interval(); got != MinInterval {
		t.Fatalf("expected %v floor, got %v", MinInterval, got)
	}
	s.opts.Interval = time.Hour
	if got := s.Interval(); got != time.Hour {
		t.Fatalf("longer intervals pass through, got %v", got)
	}
}

func TestCancelDuringHumanDelayAborts(t *testing.T) {
	poster := &recordingPoster{}
	s, clock := newTestScheduler(Options{MinDelay: time.Minute, MaxDelay: 2 * time.Minute}, fixedGen{text: "a post"}, approved(), newMemQuota(5), allCreds(), poster)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var out Outcome
	var err error
	go func() {
		out, err = s.Cycle(ctx, "alice")
		close(done)
	}()
	// the cycle is parked on the fake clock; cancel instead of firing it
	for {
		clock.mu.Lock()
		waiting := len(clock.waited) > 0
		clock.mu.Unlock()
		if waiting {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
	if !errors.Is(err, context.Canceled) || out != OutcomeSkipped {
		t.Fatalf("expected clean abort, got %v %v", out, err)
	}
	if poster.calls() != 0 {
		t.Fatal("cancelled delay must leave no side effects")
	}
}

func TestOneAccountFailureDoesNotStopOthers(t *testing.T) {
	q := newMemQuota(5)
	published := make(chan string, 4)
	poster := &recordingPoster{published: published}
	creds := mapCreds{byHandle: map[string]accounts.Credentials{
		"alice": {AccessToken: "t", AccessSecret: "s"},
		// bob has no credentials and fails every cycle
	}}
	s, _ := newTestScheduler(Options{Handles: []string{"alice", "bob"}, SafetyCheck: true}, fixedGen{text: "a post"}, approved(), q, creds, poster)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	if h := <-published; h != "alice" {
		t.Fatalf("expected alice to publish, got %q", h)
	}
	cancel()
	<-done
	if q.count("alice") != 1 {
		t.Fatalf("alice quota should be 1, got %d", q.count("alice"))
	}
	if q.count("bob") != 0 {
		t.Fatalf("bob must not gain quota, got %d", q.count("bob"))
	}
}

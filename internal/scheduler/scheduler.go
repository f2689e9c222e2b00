package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"quillcast/internal/accounts"
	"quillcast/internal/guard"
	"quillcast/internal/logging"
	"quillcast/internal/metrics"
	"quillcast/internal/model"
	"quillcast/internal/publisher"
)

// MinInterval is the floor below which the configured posting interval is
// clamped, protecting against runaway posting from misconfiguration.
const MinInterval = 5 * time.Minute

// recentCompareLimit is how many stored texts feed the duplicate gate.
const recentCompareLimit = 30

// Outcome is the terminal state of one scheduled cycle.
type Outcome string

const (
	OutcomePublished Outcome = "published"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Collaborators of one publishing cycle. Each account's cycle touches no
// mutable state of any other account.
type (
	ProfileSource interface {
		Load(handle string) (model.StyleProfile, error)
	}
	Generator interface {
		Generate(ctx context.Context, p model.StyleProfile, topic, extra string) (string, error)
	}
	Gate interface {
		Review(ctx context.Context, text string, p model.StyleProfile, recent []string) guard.Verdict
	}
	Quota interface {
		Check(ctx context.Context, handle string) (bool, error)
		Increment(ctx context.Context, handle string) error
	}
	CredentialSource interface {
		Credentials(handle string) (accounts.Credentials, error)
	}
	Poster interface {
		Publish(ctx context.Context, req publisher.Request) (publisher.Result, error)
	}
	RecentSource interface {
		ListRecentTexts(ctx context.Context, handle string, limit int) ([]string, error)
	}
)

// Options configure the loop.
type Options struct {
	Handles     []string
	Interval    time.Duration
	MinDelay    time.Duration
	MaxDelay    time.Duration
	Topic       string
	Extra       string
	DryRun      bool
	SafetyCheck bool
}

// Scheduler drives one generate→gate→publish cycle per account on a fixed
// interval. Accounts run independently; a failing account never stops its
// own loop or any other account's.
type Scheduler struct {
	profiles ProfileSource
	gen      Generator
	gate     Gate
	quota    Quota
	creds    CredentialSource
	poster   Poster
	recent   RecentSource
	opts     Options

	clock  Clock
	randFn func(n int64) int64
}

func New(profiles ProfileSource, gen Generator, gate Gate, q Quota, creds CredentialSource, poster Poster, recent RecentSource, opts Options) *Scheduler {
	return &Scheduler{
		profiles: profiles,
		gen:      gen,
		gate:     gate,
		quota:    q,
		creds:    creds,
		poster:   poster,
		recent:   recent,
		opts:     opts,
		clock:    realClock{},
		randFn:   rand.Int63n,
	}
}

// Interval returns the effective cycle interval after the floor.
func (s *Scheduler) Interval() time.Duration {
	if s.opts.Interval < MinInterval {
		return MinInterval
	}
	return s.opts.Interval
}

// humanDelay suspends the cycle for a randomized interval within the
// configured bounds; nothing has been generated or published yet, so a
// cancellation here aborts the cycle with no side effects.
func (s *Scheduler) humanDelay(ctx context.Context) error {
	min, max := s.opts.MinDelay, s.opts.MaxDelay
	if max < min {
		max = min
	}
	d := min
	if span := int64(max - min); span > 0 {
		d += time.Duration(s.randFn(span + 1))
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-s.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cycle runs one full pipeline invocation for handle. Gate rejections,
// missing candidates and exhausted quota are skips, not errors; credential
// and publish failures fail the cycle without incrementing quota.
func (s *Scheduler) Cycle(ctx context.Context, handle string) (Outcome, error) {
	if err := s.humanDelay(ctx); err != nil {
		return OutcomeSkipped, err
	}

	prof, err := s.profiles.Load(handle)
	if err != nil {
		logging.Error("profile_load_failed", map[string]any{"handle": handle, "error": err.Error()})
		return OutcomeFailed, err
	}

	text, err := s.gen.Generate(ctx, prof, s.opts.Topic, s.opts.Extra)
	if err != nil {
		logging.Error("generate_failed", map[string]any{"handle": handle, "error": err.Error()})
		return OutcomeFailed, err
	}
	if text == "" {
		logging.Info("no_candidate", map[string]any{"handle": handle})
		return OutcomeSkipped, nil
	}

	if !s.opts.DryRun {
		if s.opts.SafetyCheck {
			recent, err := s.recent.ListRecentTexts(ctx, handle, recentCompareLimit)
			if err != nil {
				logging.Error("recent_texts_failed", map[string]any{"handle": handle, "error": err.Error()})
				return OutcomeFailed, err
			}
			v := s.gate.Review(ctx, text, prof, recent)
			if !v.Approved {
				metrics.GateRejections.WithLabelValues(v.Gate).Inc()
				logging.Info("gate_rejected", map[string]any{"handle": handle, "gate": v.Gate, "reason": v.Reason})
				return OutcomeSkipped, nil
			}
			logging.Info("gates_passed", map[string]any{"handle": handle, "reason": v.Reason})
		}
		ok, err := s.quota.Check(ctx, handle)
		if err != nil {
			return OutcomeFailed, err
		}
		if !ok {
			logging.Info("quota_exhausted", map[string]any{"handle": handle})
			return OutcomeSkipped, nil
		}
	}

	creds, err := s.creds.Credentials(handle)
	if err != nil {
		logging.Error("credentials_failed", map[string]any{"handle": handle, "error": err.Error()})
		return OutcomeFailed, err
	}

	res, err := s.poster.Publish(ctx, publisher.Request{
		Handle: handle,
		Text:   text,
		Creds:  creds,
		DryRun: s.opts.DryRun,
	})
	if err != nil {
		return OutcomeFailed, err
	}
	if !res.DryRun {
		if err := s.quota.Increment(ctx, handle); err != nil {
			logging.Error("quota_increment_failed", map[string]any{"handle": handle, "error": err.Error()})
		}
		metrics.Publishes.WithLabelValues(handle).Inc()
	}
	return OutcomePublished, nil
}

// Run starts one serial loop per configured account and blocks until ctx is
// cancelled. Each loop runs a cycle immediately, then once per interval
// regardless of the previous outcome.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, handle := range s.opts.Handles {
		wg.Add(1)
		go func(h string) {
			defer wg.Done()
			s.runAccount(ctx, h)
		}(handle)
	}
	wg.Wait()
}

func (s *Scheduler) runAccount(ctx context.Context, handle string) {
	interval := s.Interval()
	logging.Info("schedule_start", map[string]any{"handle": handle, "interval": interval.String()})
	for {
		outcome, err := s.Cycle(ctx, handle)
		fields := map[string]any{"handle": handle, "outcome": string(outcome)}
		if err != nil {
			fields["error"] = err.Error()
		}
		logging.Info("cycle_done", fields)
		metrics.Cycles.WithLabelValues(handle, string(outcome)).Inc()
		select {
		case <-ctx.Done():
			logging.Info("schedule_stop", map[string]any{"handle": handle})
			return
		case <-s.clock.After(interval):
		}
	}
}

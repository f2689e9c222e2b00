package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quillcast/internal/accounts"
	"quillcast/internal/logging"
	"quillcast/internal/metrics"
	"quillcast/internal/model"
	"quillcast/internal/xclient"
)

// ErrInvalidLength means the text fails the local 1..280 check; the remote
// API is never called for such text.
var ErrInvalidLength = errors.New("invalid post length")

// rateLimitWait is how long a rate-limited publish sleeps before its single
// retry.
const rateLimitWait = 15 * time.Minute

// Platform submits one post to the external platform.
type Platform interface {
	CreatePost(ctx context.Context, text string, mediaIDs []string) (string, error)
}

// PlatformFactory builds a platform client bound to one account's credentials.
type PlatformFactory func(creds accounts.Credentials) Platform

// AuditLog receives one record per publish call, dry-run or real.
type AuditLog interface {
	AppendPost(ctx context.Context, rec model.PostRecord) error
}

// Request is one publish call for one account.
type Request struct {
	Handle   string
	Text     string
	MediaIDs []string
	Creds    accounts.Credentials
	DryRun   bool
}

// Result reports the outcome of a publish call.
type Result struct {
	ID     string
	DryRun bool
}

// Publisher validates, submits, and audit-logs posts. A rate-limit signal is
// retried exactly once after a cancellable wait; every other failure
// surfaces immediately.
type Publisher struct {
	factory PlatformFactory
	audit   AuditLog

	nowFn  func() time.Time
	waitFn func(ctx context.Context, d time.Duration) error
	wait   time.Duration
}

func New(factory PlatformFactory, audit AuditLog) *Publisher {
	return &Publisher{
		factory: factory,
		audit:   audit,
		nowFn:   time.Now,
		waitFn:  sleepCtx,
		wait:    rateLimitWait,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) log(ctx context.Context, req Request, id string) {
	rec := model.PostRecord{
		Timestamp: p.nowFn().UTC(),
		Handle:    req.Handle,
		ID:        id,
		Text:      req.Text,
		DryRun:    req.DryRun,
	}
	if err := p.audit.AppendPost(ctx, rec); err != nil {
		logging.Warn("audit_log_write_failed", map[string]any{"handle": req.Handle, "error": err.Error()})
	}
}

// Publish submits one post. Length is validated before any network call.
// Dry runs are audit-logged and never reach the platform.
func (p *Publisher) Publish(ctx context.Context, req Request) (Result, error) {
	n := len([]rune(req.Text))
	if n < 1 || n > model.MaxPostLen {
		return Result{}, fmt.Errorf("%w: %d characters", ErrInvalidLength, n)
	}
	if req.DryRun {
		p.log(ctx, req, "")
		logging.Info("dry_run_post", map[string]any{"handle": req.Handle, "text": req.Text})
		return Result{DryRun: true}, nil
	}

	platform := p.factory(req.Creds)
	var id string
	var err error
	// bounded loop: one attempt plus at most one retry after a rate limit
	for attempt := 0; attempt < 2; attempt++ {
		id, err = platform.CreatePost(ctx, req.Text, req.MediaIDs)
		if err == nil {
			break
		}
		if attempt == 0 && errors.Is(err, xclient.ErrRateLimited) {
			logging.Warn("publish_rate_limited", map[string]any{"handle": req.Handle, "wait": p.wait.String()})
			metrics.RateLimitRetries.Inc()
			if werr := p.waitFn(ctx, p.wait); werr != nil {
				p.log(ctx, req, "")
				return Result{}, werr
			}
			continue
		}
		p.log(ctx, req, "")
		return Result{}, err
	}
	if err != nil {
		p.log(ctx, req, "")
		return Result{}, err
	}
	p.log(ctx, req, id)
	logging.Info("posted", map[string]any{"handle": req.Handle, "id": id})
	return Result{ID: id}, nil
}

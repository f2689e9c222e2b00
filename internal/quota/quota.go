package quota

import (
	"context"
	"time"
)

const dayFormat = "2006-01-02"

// Store persists the (day, count) pair per handle.
type Store interface {
	LoadQuota(ctx context.Context, handle string) (day string, count int, err error)
	SaveQuota(ctx context.Context, handle, day string, count int) error
}

// Tracker enforces the per-account daily publish ceiling. The stored count
// belongs to a UTC calendar day; a stored day other than today reads as zero.
// Counts are only ever incremented, after a confirmed successful publish.
type Tracker struct {
	store Store
	limit int
	nowFn func() time.Time
}

func NewTracker(store Store, limit int) *Tracker {
	return &Tracker{store: store, limit: limit, nowFn: time.Now}
}

func (t *Tracker) today() string { return t.nowFn().UTC().Format(dayFormat) }

// Count returns today's successful-publish count for handle.
func (t *Tracker) Count(ctx context.Context, handle string) (int, error) {
	day, count, err := t.store.LoadQuota(ctx, handle)
	if err != nil {
		return 0, err
	}
	if day != t.today() {
		return 0, nil
	}
	return count, nil
}

// Check reports whether handle may publish another post today.
func (t *Tracker) Check(ctx context.Context, handle string) (bool, error) {
	count, err := t.Count(ctx, handle)
	if err != nil {
		return false, err
	}
	return count < t.limit, nil
}

// Increment records one successful publish, stamping today's date. Callers
// must invoke it only after the platform returned a success id.
func (t *Tracker) Increment(ctx context.Context, handle string) error {
	count, err := t.Count(ctx, handle)
	if err != nil {
		return err
	}
	return t.store.SaveQuota(ctx, handle, t.today(), count+1)
}

// Limit returns the configured daily ceiling.
func (t *Tracker) Limit() int { return t.limit }

package jobs

import (
	"context"
	"time"

	"quillcast/internal/logging"
	"quillcast/internal/metrics"
	"quillcast/internal/model"
	"quillcast/internal/util"
	"quillcast/internal/xclient"
)

// pageSize is the per-request tweet count; the API caps pages at 100.
const pageSize = 100

// DefaultFetchLimit bounds how many posts one fetch pulls per handle.
const DefaultFetchLimit = 200

// TweetSink receives fetched posts. Re-fetching the same posts is
// idempotent because the sink stores by tweet id.
type TweetSink interface {
	UpsertTweet(ctx context.Context, t model.Tweet) error
}

// FetchCorpus pulls up to limit recent posts for handle and stores them.
// Returns the number of posts stored.
func FetchCorpus(ctx context.Context, sink TweetSink, reader xclient.Reader, handle string, limit int) (int, error) {
	handle = util.StripHandle(handle)
	if limit <= 0 {
		limit = DefaultFetchLimit
	}
	start := time.Now()
	metrics.FetchRuns.Inc()

	userID, err := reader.GetUserID(ctx, handle)
	if err != nil {
		metrics.FetchErrors.Inc()
		return 0, err
	}

	stored := 0
	token := ""
	for stored < limit {
		page := limit - stored
		if page > pageSize {
			page = pageSize
		}
		tweets, next, err := reader.GetUserTweets(ctx, userID, page, token)
		if err != nil {
			metrics.FetchErrors.Inc()
			return stored, err
		}
		for _, t := range tweets {
			t.Handle = handle
			if err := sink.UpsertTweet(ctx, t); err != nil {
				metrics.FetchErrors.Inc()
				return stored, err
			}
			stored++
			if stored >= limit {
				break
			}
		}
		if next == "" || len(tweets) == 0 {
			break
		}
		token = next
	}

	logging.Info("fetch_corpus", map[string]any{"handle": handle, "stored": stored})
	metrics.ObserveFetchDuration(start)
	return stored, nil
}

// FetchAll fetches corpora for every handle, continuing past per-handle
// failures so one private or deleted account does not starve the rest.
// The error returned is the last failure seen, if any.
func FetchAll(ctx context.Context, sink TweetSink, reader xclient.Reader, handles []string, limit int) (int, error) {
	total := 0
	var lastErr error
	for _, h := range handles {
		n, err := FetchCorpus(ctx, sink, reader, h, limit)
		total += n
		if err != nil {
			logging.Error("fetch_handle_failed", map[string]any{"handle": h, "error": err.Error()})
			lastErr = err
		}
	}
	return total, lastErr
}

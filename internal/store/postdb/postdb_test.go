package postdb

import (
	"context"
	"testing"
	"time"

	"quillcast/internal/model"
)

func TestUpsertTweetIsIdempotent(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()
	tw := model.Tweet{ID: "1", Handle: "alice", Text: "hello world", CreatedAt: time.Now().UTC()}
	if err := db.UpsertTweet(ctx, tw); err != nil {
		t.Fatal(err)
	}
	tw.Text = "hello world edited"
	if err := db.UpsertTweet(ctx, tw); err != nil {
		t.Fatal(err)
	}
	got, err := db.ListRecent(ctx, "alice", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 tweet after re-upsert, got %d", len(got))
	}
	if got[0].Text != "hello world edited" {
		t.Fatalf("expected replaced text, got %q", got[0].Text)
	}
}

func TestListRecentOrdersNewestFirstPerHandle(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, txt := range []string{"oldest", "middle", "newest"} {
		tw := model.Tweet{ID: string(rune('a' + i)), Handle: "alice", Text: txt, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := db.UpsertTweet(ctx, tw); err != nil {
			t.Fatal(err)
		}
	}
	_ = db.UpsertTweet(ctx, model.Tweet{ID: "z", Handle: "bob", Text: "other account", CreatedAt: base.Add(48 * time.Hour)})

	texts, err := db.ListRecentTexts(ctx, "alice", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(texts) != 2 || texts[0] != "newest" || texts[1] != "middle" {
		t.Fatalf("unexpected order: %v", texts)
	}
}

func TestQuotaRoundTrip(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()
	day, count, err := db.LoadQuota(ctx, "alice")
	if err != nil || day != "" || count != 0 {
		t.Fatalf("fresh handle should read empty, got %q %d %v", day, count, err)
	}
	if err := db.SaveQuota(ctx, "alice", "2025-06-01", 3); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveQuota(ctx, "alice", "2025-06-02", 1); err != nil {
		t.Fatal(err)
	}
	day, count, err = db.LoadQuota(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if day != "2025-06-02" || count != 1 {
		t.Fatalf("expected latest pair, got %q %d", day, count)
	}
}

func TestPostLogAppendsPerHandle(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	_ = db.AppendPost(ctx, model.PostRecord{Timestamp: now, Handle: "alice", ID: "100", Text: "real"})
	_ = db.AppendPost(ctx, model.PostRecord{Timestamp: now, Handle: "alice", Text: "dry", DryRun: true})
	_ = db.AppendPost(ctx, model.PostRecord{Timestamp: now, Handle: "bob", ID: "200", Text: "bob post"})

	recs, err := db.ListPostLog(ctx, "alice", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 alice entries, got %d", len(recs))
	}
	if recs[0].ID != "100" || recs[0].DryRun {
		t.Fatalf("first entry wrong: %+v", recs[0])
	}
	if recs[1].ID != "" || !recs[1].DryRun {
		t.Fatalf("second entry should be a dry run with no id: %+v", recs[1])
	}
}

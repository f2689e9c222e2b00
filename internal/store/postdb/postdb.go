package postdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"quillcast/internal/model"
)

// DB wraps the SQLite database holding the historical corpus, per-account
// quota counters, and the append-only publish audit log.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS tweets (
	  id TEXT PRIMARY KEY,
	  handle TEXT NOT NULL,
	  text TEXT NOT NULL,
	  created_at TEXT,
	  retweet_count INTEGER,
	  like_count INTEGER,
	  reply_count INTEGER,
	  quote_count INTEGER,
	  hashtags TEXT,
	  mentions TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_tweets_handle_created ON tweets(handle, created_at);
	CREATE TABLE IF NOT EXISTS quota (
	  handle TEXT PRIMARY KEY,
	  day TEXT NOT NULL,
	  count INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS post_log (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  ts TEXT NOT NULL,
	  handle TEXT NOT NULL,
	  post_id TEXT,
	  text TEXT NOT NULL,
	  dry_run INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_post_log_handle ON post_log(handle, ts);
	`)
	return err
}

// UpsertTweet inserts or replaces one historical post. Re-fetching the same
// page is idempotent.
func (d *DB) UpsertTweet(ctx context.Context, t model.Tweet) error {
	hb, _ := json.Marshal(t.Hashtags)
	mb, _ := json.Marshal(t.Mentions)
	_, err := d.sql.ExecContext(ctx, `INSERT OR REPLACE INTO tweets
	  (id, handle, text, created_at, retweet_count, like_count, reply_count, quote_count, hashtags, mentions)
	  VALUES (?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Handle, t.Text, t.CreatedAt.UTC().Format(time.RFC3339),
		t.RetweetCount, t.LikeCount, t.ReplyCount, t.QuoteCount, string(hb), string(mb))
	return err
}

// ListRecent returns up to limit posts for handle, most recent first.
// An empty handle returns posts across all handles.
func (d *DB) ListRecent(ctx context.Context, handle string, limit int) ([]model.Tweet, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if handle == "" {
		rows, err = d.sql.QueryContext(ctx,
			`SELECT id, handle, text, created_at, retweet_count, like_count, reply_count, quote_count, hashtags, mentions
			 FROM tweets ORDER BY created_at DESC LIMIT ?`, limit)
	} else {
		rows, err = d.sql.QueryContext(ctx,
			`SELECT id, handle, text, created_at, retweet_count, like_count, reply_count, quote_count, hashtags, mentions
			 FROM tweets WHERE handle=? ORDER BY created_at DESC LIMIT ?`, handle, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Tweet
	for rows.Next() {
		var t model.Tweet
		var created, hashtags, mentions string
		if err := rows.Scan(&t.ID, &t.Handle, &t.Text, &created, &t.RetweetCount, &t.LikeCount, &t.ReplyCount, &t.QuoteCount, &hashtags, &mentions); err != nil {
			return nil, err
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339, created)
		_ = json.Unmarshal([]byte(hashtags), &t.Hashtags)
		_ = json.Unmarshal([]byte(mentions), &t.Mentions)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListRecentTexts returns just the texts of the most recent posts for handle.
func (d *DB) ListRecentTexts(ctx context.Context, handle string, limit int) ([]string, error) {
	tweets, err := d.ListRecent(ctx, handle, limit)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(tweets))
	for _, t := range tweets {
		out = append(out, t.Text)
	}
	return out, nil
}

// LoadQuota returns the stored (day, count) pair for handle.
// A handle with no row reports an empty day and zero count.
func (d *DB) LoadQuota(ctx context.Context, handle string) (string, int, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT day, count FROM quota WHERE handle=?`, handle)
	var day string
	var count int
	if err := row.Scan(&day, &count); err != nil {
		if err == sql.ErrNoRows {
			return "", 0, nil
		}
		return "", 0, err
	}
	return day, count, nil
}

// SaveQuota writes the (day, count) pair for handle.
func (d *DB) SaveQuota(ctx context.Context, handle, day string, count int) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO quota(handle, day, count) VALUES(?,?,?)
		 ON CONFLICT(handle) DO UPDATE SET day=excluded.day, count=excluded.count`,
		handle, day, count)
	return err
}

// AppendPost records one publish attempt in the audit log.
func (d *DB) AppendPost(ctx context.Context, rec model.PostRecord) error {
	dry := 0
	if rec.DryRun {
		dry = 1
	}
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO post_log(ts, handle, post_id, text, dry_run) VALUES(?,?,?,?,?)`,
		rec.Timestamp.UTC().Format(time.RFC3339Nano), rec.Handle, rec.ID, rec.Text, dry)
	return err
}

// ListPostLog returns audit entries for handle, oldest first.
func (d *DB) ListPostLog(ctx context.Context, handle string, limit int) ([]model.PostRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.sql.QueryContext(ctx,
		`SELECT ts, handle, COALESCE(post_id,''), text, dry_run FROM post_log WHERE handle=? ORDER BY id LIMIT ?`,
		handle, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PostRecord
	for rows.Next() {
		var rec model.PostRecord
		var ts string
		var dry int
		if err := rows.Scan(&ts, &rec.Handle, &rec.ID, &rec.Text, &dry); err != nil {
			return nil, err
		}
		rec.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		rec.DryRun = dry == 1
		out = append(out, rec)
	}
	return out, rows.Err()
}

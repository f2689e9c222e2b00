package model

import "time"

// MaxPostLen is the platform character limit for a single post.
const MaxPostLen = 280

// StyleProfile is the derived description of an account's writing style,
// produced by analysis and consumed by generation and the safety gate.
// LengthRange bracketing AvgLengthWords is a soft expectation only; the
// analyzer may emit values that violate it.
type StyleProfile struct {
	Handle           string   `json:"handle"`
	SourceHandles    []string `json:"source_handles,omitempty"`
	Topics           []string `json:"topics"`
	Tone             string   `json:"tone"`
	AvgLengthWords   int      `json:"avg_length_words"`
	LengthRange      []int    `json:"length_range,omitempty"`
	EmojiUsage       string   `json:"emoji_usage"`
	HashtagStyle     string   `json:"hashtag_style"`
	LanguagePatterns string   `json:"language_patterns"`
	PostingStyle     string   `json:"posting_style"`
	PromptTemplate   string   `json:"prompt_template"`
	AnalyzedCount    int      `json:"analyzed_count"`
}

// Tweet is a stored historical post, used for style analysis sampling
// and near-duplicate comparison.
type Tweet struct {
	ID           string
	Handle       string
	Text         string
	CreatedAt    time.Time
	LikeCount    int
	ReplyCount   int
	RetweetCount int
	QuoteCount   int
	Hashtags     []string
	Mentions     []string
}

// Candidate is an in-flight generated post awaiting gating. It is never
// persisted; a candidate that clears every gate becomes a PostRecord.
type Candidate struct {
	Text      string
	Topic     string
	Handle    string
	CreatedAt time.Time
}

// PostRecord is one append-only audit entry per publish attempt.
// ID is empty for dry runs and attempts that did not produce a post.
type PostRecord struct {
	Timestamp time.Time
	Handle    string
	ID        string
	Text      string
	DryRun    bool
}

package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"quillcast/internal/logging"
	"quillcast/internal/model"
	"quillcast/internal/profile"
	"quillcast/internal/util"
)

// ErrEmptyCorpus means there is no stored history to analyze; a profile is
// never produced from zero evidence.
var ErrEmptyCorpus = errors.New("no posts in corpus")

// ErrProfileParse means the provider reply was not the expected JSON document.
var ErrProfileParse = errors.New("profile response is not valid JSON")

const systemPrompt = `You are an expert at analyzing writing style from a corpus of short texts (tweets).
Given a list of tweets, extract and summarize:
1. Common topics and themes (e.g., tech, space, humor, motivation).
2. Tone (e.g., humorous, professional, casual, sarcastic, enthusiastic).
3. Typical length in words (average and range).
4. Emoji usage (frequency, which emojis appear often).
5. Hashtag usage (frequency, style: single word, phrases, none).
6. Language patterns (sentence structure, questions vs statements, slang, punctuation).
7. Posting style (threads vs single tweets, call-to-actions, links).
8. Any catchphrases or recurring phrases.

Respond with valid JSON only, no markdown or extra text. Use this exact structure:
{
  "topics": ["topic1", "topic2"],
  "tone": "description in a few words",
  "avg_length_words": number,
  "length_range": [min, max],
  "emoji_usage": "description and examples",
  "hashtag_style": "description",
  "language_patterns": "description",
  "posting_style": "description",
  "prompt_template": "Write a tweet in the style of {handle}. Topics often include: {topics}. Tone: {tone}. Length around {avg_length_words} words. {extra_guidance}"
}`

const (
	defaultMaxSamplePosts = 200
	defaultMaxSampleChars = 45000
	combinedMaxPosts      = 500
	combinedMaxChars      = 50000
)

// Provider is the language-model collaborator.
type Provider interface {
	Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error)
}

// Corpus supplies stored historical posts, most recent first.
type Corpus interface {
	ListRecent(ctx context.Context, handle string, limit int) ([]model.Tweet, error)
}

// ProfileStore persists analyzed profiles.
type ProfileStore interface {
	Save(p model.StyleProfile) error
}

// Analyzer derives style profiles from the stored corpus.
type Analyzer struct {
	provider Provider
	corpus   Corpus
	profiles ProfileStore

	// sampling caps; zero means the defaults above
	MaxPosts int
	MaxChars int
}

func New(provider Provider, corpus Corpus, profiles ProfileStore) *Analyzer {
	return &Analyzer{provider: provider, corpus: corpus, profiles: profiles}
}

// buildSample joins post texts in existing order, truncating each to the
// platform limit and stopping before the total character budget would be
// exceeded. A post is never split across the budget boundary.
func buildSample(tweets []model.Tweet, maxPosts, maxChars int) string {
	var b strings.Builder
	total := 0
	n := 0
	for _, t := range tweets {
		if n >= maxPosts {
			break
		}
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		line := util.TruncateRunes(text, model.MaxPostLen) + "\n"
		runes := utf8.RuneCountInString(line)
		if total+runes > maxChars {
			break
		}
		b.WriteString(line)
		total += runes
		n++
	}
	return b.String()
}

// stripCodeFence removes one pair of markdown code fences around s, if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
			break
		}
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

func (a *Analyzer) caps() (int, int) {
	maxPosts, maxChars := a.MaxPosts, a.MaxChars
	if maxPosts <= 0 {
		maxPosts = defaultMaxSamplePosts
	}
	if maxChars <= 0 {
		maxChars = defaultMaxSampleChars
	}
	return maxPosts, maxChars
}

func (a *Analyzer) extract(ctx context.Context, userContent string) (model.StyleProfile, error) {
	var p model.StyleProfile
	reply, err := a.provider.Complete(ctx, systemPrompt, userContent, 2000, 0.3)
	if err != nil {
		return p, err
	}
	cleaned := stripCodeFence(reply)
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrProfileParse, err)
	}
	return p, nil
}

// Analyze builds a style profile for one handle from its stored corpus and
// persists it, overwriting any prior profile atomically.
func (a *Analyzer) Analyze(ctx context.Context, handle string) (model.StyleProfile, error) {
	h := util.StripHandle(handle)
	maxPosts, maxChars := a.caps()
	tweets, err := a.corpus.ListRecent(ctx, h, maxPosts*2)
	if err != nil {
		return model.StyleProfile{}, err
	}
	if len(tweets) == 0 {
		return model.StyleProfile{}, fmt.Errorf("%w for @%s: run fetch first", ErrEmptyCorpus, h)
	}
	sample := buildSample(tweets, maxPosts, maxChars)
	userContent := fmt.Sprintf("Analyze the following tweets from user @%s and extract the style profile.\n\nTweets:\n%s", h, sample)
	p, err := a.extract(ctx, userContent)
	if err != nil {
		return model.StyleProfile{}, err
	}
	p.Handle = h
	p.AnalyzedCount = len(tweets)
	if err := a.profiles.Save(p); err != nil {
		return model.StyleProfile{}, err
	}
	logging.Info("profile_saved", map[string]any{"handle": h, "analyzed": p.AnalyzedCount})
	return p, nil
}

// AnalyzeCombined merges the corpora of several source handles into one
// blended profile saved under the combined handle.
func (a *Analyzer) AnalyzeCombined(ctx context.Context, handles []string) (model.StyleProfile, error) {
	var sources []string
	var combined []model.Tweet
	maxPosts, _ := a.caps()
	for _, h := range handles {
		clean := util.StripHandle(h)
		if clean == "" {
			continue
		}
		sources = append(sources, clean)
		tweets, err := a.corpus.ListRecent(ctx, clean, maxPosts*2)
		if err != nil {
			return model.StyleProfile{}, err
		}
		combined = append(combined, tweets...)
	}
	if len(sources) == 0 {
		return model.StyleProfile{}, errors.New("no source handles configured")
	}
	if len(combined) == 0 {
		return model.StyleProfile{}, fmt.Errorf("%w for @%s: run fetch first", ErrEmptyCorpus, strings.Join(sources, ", @"))
	}
	limit := combinedMaxPosts
	if len(combined) < limit {
		limit = len(combined)
	}
	sample := buildSample(combined, limit, combinedMaxChars)
	prefixed := make([]string, len(sources))
	for i, s := range sources {
		prefixed[i] = "@" + s
	}
	userContent := fmt.Sprintf(
		"Analyze the following tweets from multiple users (combined) and extract a single blended style profile. The tweets are from: %s.\n\n"+
			"Produce one style that captures common themes, tone, length, and patterns across all. Use handle 'combined' in the output.\n\nTweets:\n%s",
		strings.Join(prefixed, ", "), sample)
	p, err := a.extract(ctx, userContent)
	if err != nil {
		return model.StyleProfile{}, err
	}
	p.Handle = profile.CombinedHandle
	p.SourceHandles = sources
	p.AnalyzedCount = len(combined)
	if err := a.profiles.Save(p); err != nil {
		return model.StyleProfile{}, err
	}
	logging.Info("combined_profile_saved", map[string]any{"sources": len(sources), "analyzed": p.AnalyzedCount})
	return p, nil
}

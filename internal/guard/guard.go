package guard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"quillcast/internal/ai"
	"quillcast/internal/model"
	"quillcast/internal/util"
)

const safetySystem = `You are a content safety reviewer for tweets. Given a tweet and the account's style profile, rate it on a scale of 1-5 for SAFE TO POST (5 = definitely safe, 1 = do not post).

Consider:
- No hate speech, slurs, or harassment
- No misinformation or unverified claims presented as fact
- No excessive controversy unrelated to the account's usual topics
- Matches the account's typical tone and topics (from the style profile)
- Nothing that could damage the account holder's reputation
- No spam, all-caps rants, or off-brand political takes (unless that's the brand)

Reply with ONLY a single digit 1-5, then a space, then one short reason (e.g. "5 On-brand and safe" or "2 Too aggressive").`

const (
	// DuplicateThreshold is the word-overlap ratio at or above which a
	// candidate counts as a near-duplicate. Tuned against the plain
	// word-set definition below; do not change one without the other.
	DuplicateThreshold = 0.85
	// recentWindow bounds how many recent texts are compared.
	recentWindow = 20
)

// Provider is the language-model collaborator used for the safety score.
type Provider interface {
	Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error)
}

// Verdict is the outcome of gating one candidate.
type Verdict struct {
	Approved bool
	Gate     string // which gate decided: blocklist, safety, duplicate, or "" when approved
	Reason   string
}

// Guard gates candidates through the blocklist, the AI safety score, and the
// near-duplicate check, in that order.
type Guard struct {
	provider  Provider
	blocklist []string
	minScore  int
}

func New(provider Provider, blocklist []string, minScore int) *Guard {
	if minScore <= 0 {
		minScore = 4
	}
	return &Guard{provider: provider, blocklist: blocklist, minScore: minScore}
}

// BlocklistHit returns the matched phrase, or "" if the text is clean.
func (g *Guard) BlocklistHit(text string) string {
	return util.MatchAnyFold(text, g.blocklist)
}

// SafetyCheck rates the candidate with the provider. A missing provider
// credential approves with a skipped reason; any other provider failure
// rejects. The asymmetry is deliberate: missing setup must not silently
// block posting, and call failures must not silently allow it.
func (g *Guard) SafetyCheck(ctx context.Context, text string, p model.StyleProfile) (bool, string) {
	topics := p.Topics
	if len(topics) > 5 {
		topics = topics[:5]
	}
	user := fmt.Sprintf("Style profile (topics: %s, tone: %s).\n\nTweet to rate:\n%s",
		strings.Join(topics, ", "), p.Tone, text)
	reply, err := g.provider.Complete(ctx, safetySystem, user, 80, 0)
	if err != nil {
		if errors.Is(err, ai.ErrNoAPIKey) {
			return true, "No API key (check skipped)"
		}
		return false, fmt.Sprintf("Safety check error: %v", err)
	}
	score, reason := parseScore(reply)
	return score >= g.minScore, fmt.Sprintf("Score %d: %s", score, reason)
}

func parseScore(reply string) (int, string) {
	reply = strings.TrimSpace(reply)
	parts := strings.SplitN(reply, " ", 2)
	score := 0
	if len(parts) > 0 {
		if n, err := strconv.Atoi(parts[0]); err == nil {
			score = n
		}
	}
	reason := reply
	if len(parts) > 1 {
		reason = parts[1]
	}
	return score, reason
}

// TooSimilar reports whether text shares at least DuplicateThreshold of its
// word set with any of the most recent texts. Candidates with fewer than
// three distinct words never match. The heuristic is intentionally coarse:
// lowercase whitespace words, no stemming, no ordering.
func TooSimilar(text string, recent []string) bool {
	if text == "" || len(recent) == 0 {
		return false
	}
	words := util.WordSet(text)
	if len(words) < 3 {
		return false
	}
	if len(recent) > recentWindow {
		recent = recent[:recentWindow]
	}
	for _, prev := range recent {
		prevWords := util.WordSet(prev)
		shared := 0
		for w := range words {
			if _, ok := prevWords[w]; ok {
				shared++
			}
		}
		if float64(shared)/float64(len(words)) >= DuplicateThreshold {
			return true
		}
	}
	return false
}

// Review runs all three gates for one candidate. The blocklist is checked
// first so a hit never spends a provider call.
func (g *Guard) Review(ctx context.Context, text string, p model.StyleProfile, recent []string) Verdict {
	if phrase := g.BlocklistHit(text); phrase != "" {
		return Verdict{Gate: "blocklist", Reason: fmt.Sprintf("Blocklist hit: %q", phrase)}
	}
	approved, reason := g.SafetyCheck(ctx, text, p)
	if !approved {
		return Verdict{Gate: "safety", Reason: reason}
	}
	if TooSimilar(text, recent) {
		return Verdict{Gate: "duplicate", Reason: "too similar to a recent post"}
	}
	return Verdict{Approved: true, Reason: reason}
}

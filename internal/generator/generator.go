package generator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"quillcast/internal/model"
)

const generationSystem = "You output only the exact tweet text, no quotes, no preamble, no explanation. Maximum 280 characters."

// Provider is the language-model collaborator.
type Provider interface {
	Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error)
}

// Generator produces one candidate post from a style profile.
type Generator struct {
	provider Provider
}

func New(provider Provider) *Generator { return &Generator{provider: provider} }

// BuildPrompt renders the profile's prompt template with its five
// placeholders, or synthesizes an equivalent instruction when the profile
// carries no template, then appends the topic directive and any extra
// instructions.
func BuildPrompt(p model.StyleProfile, topic, extra string) string {
	handle := p.Handle
	if handle == "" {
		handle = "user"
	}
	tone := p.Tone
	if tone == "" {
		tone = "casual"
	}
	avgLen := p.AvgLengthWords
	if avgLen == 0 {
		avgLen = 20
	}
	topics := strings.Join(p.Topics, ", ")

	template := p.PromptTemplate
	if template == "" {
		template = fmt.Sprintf(
			"Write a single tweet in the style of @%s. Topics often include: %s. Tone: %s. "+
				"Length around %d words. Emoji: %s. Hashtags: %s. Language: %s. "+
				"Output only the tweet text, no quotes or explanation.",
			handle, topics, tone, avgLen, p.EmojiUsage, p.HashtagStyle, p.LanguagePatterns)
	} else {
		r := strings.NewReplacer(
			"{handle}", handle,
			"{topics}", topics,
			"{tone}", tone,
			"{avg_length_words}", strconv.Itoa(avgLen),
			"{extra_guidance}", fmt.Sprintf("Emoji: %s. Hashtags: %s.", p.EmojiUsage, p.HashtagStyle),
		)
		template = r.Replace(template)
	}

	instruction := "Choose a theme from the user's usual topics or something timely and on-brand."
	if topic != "" {
		instruction = "Topic or theme for this tweet: " + topic
	}
	if extra != "" {
		instruction += "\nAdditional instructions: " + extra
	}
	return template + "\n\n" + instruction
}

// Generate asks the provider for one candidate. It returns "" only when the
// provider returned nothing; callers treat that as no candidate this cycle.
func (g *Generator) Generate(ctx context.Context, p model.StyleProfile, topic, extra string) (string, error) {
	prompt := BuildPrompt(p, topic, extra)
	text, err := g.provider.Complete(ctx, generationSystem, prompt, 150, 0.8)
	if err != nil {
		return "", err
	}
	return Postprocess(text), nil
}

// Postprocess strips one pair of wrapping quotes and hard-truncates replies
// that overran the platform limit.
func Postprocess(text string) string {
	if len(text) >= 2 && strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) {
		text = text[1 : len(text)-1]
	}
	if r := []rune(text); len(r) > model.MaxPostLen {
		text = string(r[:model.MaxPostLen-3]) + "..."
	}
	return text
}

// SuggestTopics returns the profile's leading topics.
func SuggestTopics(p model.StyleProfile) []string {
	if len(p.Topics) > 5 {
		return p.Topics[:5]
	}
	return p.Topics
}

package reply

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/orsinium-labs/stopwords"

	"github.com/kittclouds/roleforge/internal/store"
)

// Template placeholders.
const (
	topicToken = "{topic}"
	nameToken  = "{name}"
)

var templates = map[store.Personality][]string{
	store.PersonalityFriendly: {
		"That's so nice to hear! Tell me more about {topic}.",
		"I'm really glad you brought up {topic}. How do you feel about it?",
		"You know, I was just thinking about {topic} too!",
		"Thanks for sharing that with me. I'm always happy to chat.",
		"{name} here, and honestly {topic} sounds wonderful.",
	},
	store.PersonalitySarcastic: {
		"Oh wow, {topic}. Truly the most riveting subject ever raised.",
		"Sure, because {topic} is exactly what I wanted to discuss today.",
		"Fascinating. Please, go on. I'm hanging on every word.",
		"Let me guess, you want my honest opinion on {topic}? Bold move.",
	},
	store.PersonalityWise: {
		"Consider {topic} as a river: it changes, yet it remains.",
		"Many have asked about {topic}. Few have listened to the answer.",
		"Patience. Understanding of {topic} comes to those who wait.",
		"The question you ask reveals more than any answer I could give.",
	},
	store.PersonalityDark: {
		"{topic}... the shadows have whispered of it before.",
		"You speak of {topic} as if it were harmless. How quaint.",
		"Every light casts a shadow. Even {topic}.",
		"Some doors are better left closed.",
	},
	store.PersonalityCheerful: {
		"Yay, {topic}! That's the best thing I've heard all day!",
		"Ooh, {topic}! Let's make it amazing together!",
		"Every day is a good day to talk about {topic}!",
		"You just made me smile so wide!",
	},
}

// fallbackTopic fills {topic} when the user message has no content words.
const fallbackTopic = "that"

// Mock generates template replies keyed on personality.
// Safe for concurrent use.
type Mock struct {
	mu    sync.Mutex
	rng   *rand.Rand
	delay time.Duration
	stop  *stopwords.Stopwords
}

// MockOption configures a Mock.
type MockOption func(*Mock)

// WithSeed makes template selection deterministic.
func WithSeed(seed uint64) MockOption {
	return func(m *Mock) {
		m.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithDelay simulates typing latency before each reply.
func WithDelay(d time.Duration) MockOption {
	return func(m *Mock) {
		m.delay = d
	}
}

// NewMock creates a mock generator.
func NewMock(opts ...MockOption) *Mock {
	m := &Mock{
		rng:  rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		stop: stopwords.MustGet("en"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Generate picks a template for the character's personality and fills in the
// most salient word of the last user message.
func (m *Mock) Generate(ctx context.Context, req Request) (string, error) {
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	set, ok := templates[req.Personality]
	if !ok {
		set = templates[store.PersonalityFriendly]
	}

	m.mu.Lock()
	tmpl := set[m.rng.IntN(len(set))]
	m.mu.Unlock()

	topic := m.Topic(req.LastUserText())
	if topic == "" {
		topic = fallbackTopic
	}

	out := strings.ReplaceAll(tmpl, topicToken, topic)
	out = strings.ReplaceAll(out, nameToken, req.Name)
	return capitalize(out), nil
}

// Topic returns the longest non-stopword in text, lowercased.
// Earlier words win ties. Returns "" when nothing qualifies.
func (m *Mock) Topic(text string) string {
	best := ""
	for _, word := range strings.FieldsFunc(text, isSeparator) {
		w := strings.ToLower(word)
		if len([]rune(w)) < 3 || m.stop.Contains(w) {
			continue
		}
		if len([]rune(w)) > len([]rune(best)) {
			best = w
		}
	}
	return best
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
}

func capitalize(s string) string {
	for i, r := range s {
		if unicode.IsLetter(r) {
			return s[:i] + string(unicode.ToUpper(r)) + s[i+len(string(r)):]
		}
		if !unicode.IsPunct(r) {
			break
		}
	}
	return s
}

var _ Generator = (*Mock)(nil)

// Package store provides the data model and persistence adapters for roleforge.
// The whole character collection is persisted as one blob under a fixed key.
package store

import (
	"context"
	"sort"
	"strings"
)

// Personality is the closed set of character temperaments.
type Personality uint8

const (
	PersonalityFriendly Personality = iota
	PersonalitySarcastic
	PersonalityWise
	PersonalityDark
	PersonalityCheerful
)

var personalityNames = [...]string{
	PersonalityFriendly:  "friendly",
	PersonalitySarcastic: "sarcastic",
	PersonalityWise:      "wise",
	PersonalityDark:      "dark",
	PersonalityCheerful:  "cheerful",
}

// Personalities returns every personality in declaration order.
func Personalities() []Personality {
	return []Personality{
		PersonalityFriendly,
		PersonalitySarcastic,
		PersonalityWise,
		PersonalityDark,
		PersonalityCheerful,
	}
}

// ParsePersonality maps a name to a Personality.
// Unrecognized or empty input falls back to PersonalityFriendly.
func ParsePersonality(s string) Personality {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range personalityNames {
		if n == name {
			return Personality(i)
		}
	}
	return PersonalityFriendly
}

// String returns the lowercase personality name.
func (p Personality) String() string {
	if int(p) < len(personalityNames) {
		return personalityNames[p]
	}
	return personalityNames[PersonalityFriendly]
}

// MarshalText encodes the personality as its name.
func (p Personality) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a personality name, applying the friendly fallback.
func (p *Personality) UnmarshalText(b []byte) error {
	*p = ParsePersonality(string(b))
	return nil
}

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderCharacter Sender = "character"
)

// Valid reports whether s is a known sender role.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderCharacter
}

// Message is a single line of a conversation.
// Timestamps are Unix milliseconds.
type Message struct {
	ID        string `json:"id"`
	Sender    Sender `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// IsUser reports whether the message was written by the user.
func (m Message) IsUser() bool {
	return m.Sender == SenderUser
}

// Conversation is an ordered run of messages owned by one character.
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt int64     `json:"createdAt"`
	Messages  []Message `json:"messages"`
}

// Timestamp returns the first message time, or the creation time when empty.
func (c *Conversation) Timestamp() int64 {
	if len(c.Messages) > 0 {
		return c.Messages[0].Timestamp
	}
	return c.CreatedAt
}

// LastMessage returns the most recent message or nil.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// Character is a user-created roleplay persona.
// A character exclusively owns its conversations.
type Character struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Personality   Personality    `json:"personality"`
	Backstory     string         `json:"backstory"`
	Avatar        string         `json:"avatar"`
	AvatarColor   string         `json:"avatarColor"`
	IsFavorite    bool           `json:"isFavorite"`
	CreatedAt     int64          `json:"createdAt"`
	UpdatedAt     int64          `json:"updatedAt"`
	Conversations []Conversation `json:"conversations"`
}

// MessageCount returns the number of messages across all conversations.
func (c *Character) MessageCount() int {
	n := 0
	for i := range c.Conversations {
		n += len(c.Conversations[i].Messages)
	}
	return n
}

// LastActivity returns the newest message timestamp, or UpdatedAt when there
// are no messages.
func (c *Character) LastActivity() int64 {
	for i := len(c.Conversations) - 1; i >= 0; i-- {
		if last := c.Conversations[i].LastMessage(); last != nil {
			return last.Timestamp
		}
	}
	return c.UpdatedAt
}

// Messages returns every message across all conversations as one
// chronological sequence. Ties keep conversation order.
func (c *Character) Messages() []Message {
	out := make([]Message, 0, c.MessageCount())
	for i := range c.Conversations {
		out = append(out, c.Conversations[i].Messages...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

// Clone returns a deep copy. Empty collections are always non-nil so that
// copies encode as [] rather than null.
func (c *Character) Clone() *Character {
	cp := *c
	cp.Conversations = make([]Conversation, len(c.Conversations))
	for i, conv := range c.Conversations {
		cp.Conversations[i] = Conversation{
			ID:        conv.ID,
			CreatedAt: conv.CreatedAt,
			Messages:  append([]Message{}, conv.Messages...),
		}
	}
	return &cp
}

// Snapshot is the full character collection.
// It is the durable storage record and the JSON export format.
type Snapshot struct {
	Characters []*Character `json:"characters"`
}

// Find returns the character with the given id or nil.
func (s *Snapshot) Find(id string) *Character {
	for _, c := range s.Characters {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	cp := &Snapshot{Characters: make([]*Character, len(s.Characters))}
	for i, c := range s.Characters {
		cp.Characters[i] = c.Clone()
	}
	return cp
}

// Storer is the durable key/value boundary. Values are opaque blobs.
// Load returns (nil, nil) when the key has never been written.
type Storer interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

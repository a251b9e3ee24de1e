package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/kittclouds/roleforge/internal/errors"
)

// EncodeSnapshot serializes the snapshot to the durable JSON record.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	out := Snapshot{Characters: []*Character{}}
	if s != nil && s.Characters != nil {
		out.Characters = s.Characters
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeSerialization, "encode snapshot")
	}
	return data, nil
}

// DecodeSnapshot parses and validates a durable record or export blob.
// It never returns a partially decoded snapshot: any structural problem
// yields a SERIALIZATION error and a nil snapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, apperrors.New(apperrors.CodeSerialization, "empty blob")
	}
	if trimmed[0] != '{' {
		return nil, apperrors.New(apperrors.CodeSerialization, "blob is not a JSON object")
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &top); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeSerialization, "invalid JSON")
	}

	raw, ok := top["characters"]
	if !ok {
		return nil, apperrors.New(apperrors.CodeSerialization, "missing characters field")
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, apperrors.New(apperrors.CodeSerialization, "characters must be an array")
	}

	var wire []wireCharacter
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeSerialization, "invalid characters array")
	}

	snap := &Snapshot{Characters: make([]*Character, 0, len(wire))}
	seen := make(map[string]bool, len(wire))
	for i := range wire {
		c, err := wire[i].toCharacter(i)
		if err != nil {
			return nil, err
		}
		if seen[c.ID] {
			return nil, apperrors.Newf(apperrors.CodeSerialization, "duplicate character id %q", c.ID)
		}
		seen[c.ID] = true
		snap.Characters = append(snap.Characters, c)
	}
	return snap, nil
}

// =============================================================================
// Wire types
// =============================================================================

// wireCharacter mirrors Character with pointer fields so missing keys can be
// told apart from zero values.
type wireCharacter struct {
	ID            *string             `json:"id"`
	Name          *string             `json:"name"`
	Personality   *string             `json:"personality"`
	Backstory     *string             `json:"backstory"`
	Avatar        *string             `json:"avatar"`
	AvatarColor   *string             `json:"avatarColor"`
	IsFavorite    *bool               `json:"isFavorite"`
	CreatedAt     *flexTime           `json:"createdAt"`
	UpdatedAt     *flexTime           `json:"updatedAt"`
	Conversations *[]wireConversation `json:"conversations"`
}

type wireConversation struct {
	ID        *string        `json:"id"`
	CreatedAt *flexTime      `json:"createdAt"`
	Timestamp *flexTime      `json:"timestamp"`
	Messages  *[]wireMessage `json:"messages"`
}

type wireMessage struct {
	ID        *string   `json:"id"`
	Sender    *string   `json:"sender"`
	IsUser    *bool     `json:"isUser"`
	Text      *string   `json:"text"`
	Timestamp *flexTime `json:"timestamp"`
}

func (w *wireCharacter) toCharacter(index int) (*Character, error) {
	if w.ID == nil || strings.TrimSpace(*w.ID) == "" {
		return nil, apperrors.Newf(apperrors.CodeSerialization, "character %d: missing id", index)
	}
	id := *w.ID
	if w.Name == nil {
		return nil, apperrors.Newf(apperrors.CodeSerialization, "character %q: missing name", id)
	}
	if w.CreatedAt == nil {
		return nil, apperrors.Newf(apperrors.CodeSerialization, "character %q: missing createdAt", id)
	}

	c := &Character{
		ID:            id,
		Name:          *w.Name,
		Personality:   ParsePersonality(deref(w.Personality)),
		Backstory:     deref(w.Backstory),
		Avatar:        deref(w.Avatar),
		AvatarColor:   deref(w.AvatarColor),
		CreatedAt:     w.CreatedAt.ms,
		UpdatedAt:     w.CreatedAt.ms,
		Conversations: []Conversation{},
	}
	if w.IsFavorite != nil {
		c.IsFavorite = *w.IsFavorite
	}
	if w.UpdatedAt != nil {
		c.UpdatedAt = w.UpdatedAt.ms
	}

	if w.Conversations != nil {
		for i := range *w.Conversations {
			conv, err := (*w.Conversations)[i].toConversation(c, i)
			if err != nil {
				return nil, err
			}
			c.Conversations = append(c.Conversations, conv)
		}
	}
	return c, nil
}

func (w *wireConversation) toConversation(owner *Character, index int) (Conversation, error) {
	conv := Conversation{Messages: []Message{}}
	if w.ID != nil && *w.ID != "" {
		conv.ID = *w.ID
	} else {
		conv.ID = fmt.Sprintf("%s-%d", owner.ID, index)
	}

	seen := make(map[string]bool)
	if w.Messages != nil {
		for i := range *w.Messages {
			m, err := (*w.Messages)[i].toMessage(owner.ID, i)
			if err != nil {
				return Conversation{}, err
			}
			if seen[m.ID] {
				return Conversation{}, apperrors.Newf(apperrors.CodeSerialization,
					"character %q: duplicate message id %q", owner.ID, m.ID)
			}
			seen[m.ID] = true
			conv.Messages = append(conv.Messages, m)
		}
	}

	switch {
	case w.CreatedAt != nil:
		conv.CreatedAt = w.CreatedAt.ms
	case w.Timestamp != nil:
		conv.CreatedAt = w.Timestamp.ms
	case len(conv.Messages) > 0:
		conv.CreatedAt = conv.Messages[0].Timestamp
	default:
		conv.CreatedAt = owner.CreatedAt
	}
	return conv, nil
}

func (w *wireMessage) toMessage(ownerID string, index int) (Message, error) {
	fail := func(what string) (Message, error) {
		return Message{}, apperrors.Newf(apperrors.CodeSerialization,
			"character %q: message %d: %s", ownerID, index, what)
	}

	if w.ID == nil || *w.ID == "" {
		return fail("missing id")
	}
	if w.Text == nil {
		return fail("missing text")
	}
	if w.Timestamp == nil {
		return fail("missing timestamp")
	}

	var sender Sender
	switch {
	case w.Sender != nil:
		sender = Sender(*w.Sender)
	case w.IsUser != nil && *w.IsUser:
		sender = SenderUser
	case w.IsUser != nil:
		sender = SenderCharacter
	}
	if !sender.Valid() {
		return fail("invalid sender")
	}

	return Message{
		ID:        *w.ID,
		Sender:    sender,
		Text:      *w.Text,
		Timestamp: w.Timestamp.ms,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// flexTime accepts Unix milliseconds or an RFC 3339 string.
type flexTime struct {
	ms int64
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("timestamp %q: %w", s, err)
		}
		f.ms = t.UnixMilli()
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	ms, err := n.Int64()
	if err != nil {
		fl, ferr := n.Float64()
		if ferr != nil {
			return fmt.Errorf("timestamp %s: %w", n, err)
		}
		ms = int64(fl)
	}
	f.ms = ms
	return nil
}

package search

import (
	"math"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/kittclouds/roleforge/internal/store"
)

// HistorySort orders a conversation listing.
type HistorySort string

const (
	SortRecent   HistorySort = "recent"
	SortOldest   HistorySort = "oldest"
	SortLongest  HistorySort = "longest"
	SortShortest HistorySort = "shortest"
	SortName     HistorySort = "name"
)

// HistoryQuery filters and orders Conversations.
type HistoryQuery struct {
	// Query matches the character name or any message text.
	Query string
	// CharacterID restricts the listing to one character when set.
	CharacterID string
	Sort        HistorySort
	// Language drives name collation. Defaults to English.
	Language language.Tag
}

// HistoryEntry summarizes one conversation.
type HistoryEntry struct {
	ConversationID  string `json:"conversationId"`
	CharacterID     string `json:"characterId"`
	CharacterName   string `json:"characterName"`
	MessageCount    int    `json:"messageCount"`
	LastMessageText string `json:"lastMessageText"`
	LastMessageTime int64  `json:"lastMessageTime"`
	StartedAt       int64  `json:"startedAt"`
}

// HistoryStats are computed over every conversation, ignoring filters.
type HistoryStats struct {
	TotalConversations  int `json:"totalConversations"`
	TotalMessages       int `json:"totalMessages"`
	AvgMessagesPerConv  int `json:"avgMessagesPerConv"`
	CharactersWithChats int `json:"charactersWithChats"`
}

// History is the result of Conversations.
type History struct {
	Entries []HistoryEntry `json:"entries"`
	Stats   HistoryStats   `json:"stats"`
}

// NoMessagesText stands in for the last message of an empty conversation.
const NoMessagesText = "No messages"

// Conversations lists every conversation of every character.
func Conversations(snap *store.Snapshot, q HistoryQuery) (*History, error) {
	m, err := NewMatcher(q.Query)
	if err != nil {
		return nil, err
	}

	var all []HistoryEntry
	var matched []HistoryEntry
	chatters := make(map[string]bool)
	for _, c := range snap.Characters {
		for i := range c.Conversations {
			conv := &c.Conversations[i]
			e := HistoryEntry{
				ConversationID:  conv.ID,
				CharacterID:     c.ID,
				CharacterName:   c.Name,
				MessageCount:    len(conv.Messages),
				LastMessageText: NoMessagesText,
				LastMessageTime: conv.Timestamp(),
				StartedAt:       conv.Timestamp(),
			}
			if last := conv.LastMessage(); last != nil {
				e.LastMessageText = last.Text
				e.LastMessageTime = last.Timestamp
			}
			all = append(all, e)
			chatters[c.ID] = true

			if q.CharacterID != "" && c.ID != q.CharacterID {
				continue
			}
			if !m.Empty() && !m.Match(c.Name) && !anyMessage(m, conv.Messages) {
				continue
			}
			matched = append(matched, e)
		}
	}

	sortEntries(matched, q)

	h := &History{Entries: matched}
	if h.Entries == nil {
		h.Entries = []HistoryEntry{}
	}
	h.Stats.TotalConversations = len(all)
	for _, e := range all {
		h.Stats.TotalMessages += e.MessageCount
	}
	if len(all) > 0 {
		h.Stats.AvgMessagesPerConv = int(math.Round(float64(h.Stats.TotalMessages) / float64(len(all))))
	}
	h.Stats.CharactersWithChats = len(chatters)
	return h, nil
}

func anyMessage(m *Matcher, msgs []store.Message) bool {
	for _, msg := range msgs {
		if m.Match(msg.Text) {
			return true
		}
	}
	return false
}

func sortEntries(entries []HistoryEntry, q HistoryQuery) {
	switch q.Sort {
	case SortOldest:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].LastMessageTime < entries[j].LastMessageTime
		})
	case SortLongest:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].MessageCount > entries[j].MessageCount
		})
	case SortShortest:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].MessageCount < entries[j].MessageCount
		})
	case SortName:
		col := newCollator(q.Language)
		sort.SliceStable(entries, func(i, j int) bool {
			return col.CompareString(entries[i].CharacterName, entries[j].CharacterName) < 0
		})
	default:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].LastMessageTime > entries[j].LastMessageTime
		})
	}
}

// newCollator returns a case-insensitive collator. Collators are not safe for
// concurrent use, so each sort builds its own.
func newCollator(tag language.Tag) *collate.Collator {
	if tag == language.Und {
		tag = language.English
	}
	return collate.New(tag, collate.IgnoreCase)
}

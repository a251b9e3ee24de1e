package search

import (
	apperrors "github.com/kittclouds/roleforge/internal/errors"
	"github.com/kittclouds/roleforge/internal/store"
)

// Kind tags which field of an entity a global result matched.
type Kind string

const (
	KindCharacterName Kind = "character_name"
	KindBackstory     Kind = "backstory"
	KindMessage       Kind = "message"
)

// Result is one global search hit. Message is set only for KindMessage.
type Result struct {
	Kind          Kind           `json:"kind"`
	CharacterID   string         `json:"characterId"`
	CharacterName string         `json:"characterName"`
	Text          string         `json:"text"`
	Message       *store.Message `json:"message,omitempty"`
	// Hits counts occurrences of the query in Text.
	Hits int `json:"hits"`
}

// Messages returns the character's messages containing query, in
// chronological order. An empty query returns every message.
func Messages(snap *store.Snapshot, characterID, query string) ([]store.Message, error) {
	c := snap.Find(characterID)
	if c == nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "character %q not found", characterID)
	}
	m, err := NewMatcher(query)
	if err != nil {
		return nil, err
	}

	all := c.Messages()
	if m.Empty() {
		return all, nil
	}
	out := make([]store.Message, 0)
	for _, msg := range all {
		if m.Match(msg.Text) {
			out = append(out, msg)
		}
	}
	return out, nil
}

// Global searches names, backstories and messages of every character.
// Results follow character order; within a character the name hit comes
// first, then the backstory hit, then messages chronologically.
// An empty query yields no results.
func Global(snap *store.Snapshot, query string) ([]Result, error) {
	m, err := NewMatcher(query)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0)
	if m.Empty() {
		return out, nil
	}

	for _, c := range snap.Characters {
		if m.Match(c.Name) {
			out = append(out, Result{Kind: KindCharacterName, CharacterID: c.ID, CharacterName: c.Name, Text: c.Name, Hits: m.Count(c.Name)})
		}
		if m.Match(c.Backstory) {
			out = append(out, Result{Kind: KindBackstory, CharacterID: c.ID, CharacterName: c.Name, Text: c.Backstory, Hits: m.Count(c.Backstory)})
		}
		for _, msg := range c.Messages() {
			if m.Match(msg.Text) {
				msg := msg
				out = append(out, Result{
					Kind:          KindMessage,
					CharacterID:   c.ID,
					CharacterName: c.Name,
					Text:          msg.Text,
					Message:       &msg,
					Hits:          m.Count(msg.Text),
				})
			}
		}
	}
	return out, nil
}

// CountByKind tallies results per kind.
func CountByKind(results []Result) map[Kind]int {
	counts := make(map[Kind]int, 3)
	for _, r := range results {
		counts[r.Kind]++
	}
	return counts
}

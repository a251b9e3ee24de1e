// Package search implements read-side queries over a store.Snapshot.
// Every function is pure: it never mutates the snapshot it is given.
package search

import (
	"strings"

	"github.com/coregx/ahocorasick"
)

// Matcher performs case-insensitive substring matching.
// An empty query matches everything.
type Matcher struct {
	ac *ahocorasick.Automaton
}

// NewMatcher compiles the query. Surrounding whitespace is ignored.
func NewMatcher(query string) (*Matcher, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return &Matcher{}, nil
	}

	automaton, err := ahocorasick.NewBuilder().
		AddStrings([]string{q}).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, err
	}
	return &Matcher{ac: automaton}, nil
}

// Empty reports whether the matcher accepts all text.
func (m *Matcher) Empty() bool {
	return m.ac == nil
}

// Match reports whether text contains the query.
func (m *Matcher) Match(text string) bool {
	if m.ac == nil {
		return true
	}
	return m.ac.IsMatch([]byte(strings.ToLower(text)))
}

// Count returns the number of occurrences of the query in text, overlaps
// included. An empty matcher returns 0.
func (m *Matcher) Count(text string) int {
	if m.ac == nil {
		return 0
	}
	return len(m.ac.FindAllOverlapping([]byte(strings.ToLower(text))))
}

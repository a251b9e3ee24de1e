// Package reply produces character responses for the chat flow.
// The store treats a Generator as opaque: any implementation that maps a
// Request to a response string is interchangeable.
package reply

import (
	"context"

	"github.com/kittclouds/roleforge/internal/store"
)

// Request is the input to a Generator.
type Request struct {
	CharacterID string
	Name        string
	Personality store.Personality
	Backstory   string
	// History is the running conversation, oldest first. The last entry is
	// the user message being answered.
	History []store.Message
}

// LastUserText returns the text of the most recent user message.
func (r Request) LastUserText() string {
	for i := len(r.History) - 1; i >= 0; i-- {
		if r.History[i].IsUser() {
			return r.History[i].Text
		}
	}
	return ""
}

// Generator produces a reply for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Func adapts a plain function to the Generator interface.
type Func func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Package responder generates assistant replies for the development
// backend, either canned or via Gemini.
package responder

import (
	"context"
	"strings"
)

// Responder produces an assistant reply for a user message, emitting it
// incrementally through the emit callback.
type Responder interface {
	// Name returns the responder identifier
	Name() string

	// Respond streams the reply for message. Each emit call carries one
	// text delta in order; emit errors abort the stream.
	Respond(ctx context.Context, message string, emit func(delta string) error) error
}

// Canned echoes a fixed acknowledgement, split into word-sized deltas the
// way a model stream would arrive.
type Canned struct{}

// NewCanned creates a canned responder.
func NewCanned() *Canned {
	return &Canned{}
}

func (c *Canned) Name() string {
	return "canned"
}

func (c *Canned) Respond(ctx context.Context, message string, emit func(delta string) error) error {
	reply := "I received your question: \"" + message + "\". " +
		"This is a development backend, so I can only echo it back. " +
		"Point me at a configured model for real answers."

	words := strings.SplitAfter(reply, " ")
	for _, word := range words {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(word); err != nil {
			return err
		}
	}
	return nil
}

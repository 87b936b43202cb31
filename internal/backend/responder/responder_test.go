package responder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookworm-labs/bookchat/internal/config"
)

func TestCanned_EmitsReplyInOrder(t *testing.T) {
	c := NewCanned()

	var deltas []string
	err := c.Respond(context.Background(), "what is a sensor?", func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})

	require.NoError(t, err)
	assert.Greater(t, len(deltas), 1)
	assert.Contains(t, strings.Join(deltas, ""), "what is a sensor?")
}

func TestCanned_EmitErrorAbortsStream(t *testing.T) {
	c := NewCanned()
	boom := errors.New("client went away")

	calls := 0
	err := c.Respond(context.Background(), "hi", func(string) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestCanned_CancelledContext(t *testing.T) {
	c := NewCanned()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Respond(ctx, "hi", func(string) error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
}

func TestGemini_IsConfigured(t *testing.T) {
	assert.False(t, NewGemini(config.GeminiConfig{}).IsConfigured())
	assert.True(t, NewGemini(config.GeminiConfig{APIKey: "some-key", Model: "gemini-2.0-flash"}).IsConfigured())
}

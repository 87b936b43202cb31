package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookworm-labs/bookchat/internal/domain"
)

func TestStateStore_LoadBeforeSaveReturnsNil(t *testing.T) {
	store := NewStateStore()

	state, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestStateStore_RoundTrip(t *testing.T) {
	store := NewStateStore()
	in := &domain.State{
		Sessions: []domain.ChatSession{{
			ID:    "s1",
			Title: "New Chat",
			Messages: []domain.Message{{
				ID:        "m1",
				Content:   "hello",
				Sender:    domain.SenderUser,
				Timestamp: 1700000000000,
			}},
			UpdatedAt: 1700000000000,
		}},
		CurrentID: "s1",
		IsOpen:    true,
	}

	require.NoError(t, store.Save(context.Background(), in))

	out, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in.Sessions, out.Sessions)
	assert.Equal(t, "s1", out.CurrentID)
	assert.True(t, out.IsOpen)
}

func TestStateStore_SaveOverwrites(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.State{
		Sessions:  []domain.ChatSession{{ID: "s1"}, {ID: "s2"}},
		CurrentID: "s2",
	}))
	require.NoError(t, store.Save(ctx, &domain.State{
		Sessions:  []domain.ChatSession{{ID: "s1"}},
		CurrentID: "s1",
	}))

	out, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out.Sessions, 1)
	assert.Equal(t, "s1", out.CurrentID)
}

func TestStateStore_LoadReturnsCopy(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &domain.State{
		Sessions: []domain.ChatSession{{ID: "s1", Title: "original"}},
	}))

	first, err := store.Load(ctx)
	require.NoError(t, err)
	first.Sessions[0].Title = "mutated"

	second, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "original", second.Sessions[0].Title)
}

package chat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookworm-labs/bookchat/internal/domain"
	"github.com/bookworm-labs/bookchat/internal/storage/memory"
)

// sseHandler writes each record as a flushed "data:" line, mimicking a
// chunk-at-a-time streaming backend.
func sseHandler(t *testing.T, records ...string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat/message", r.URL.Path)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		for _, rec := range records {
			fmt.Fprintf(w, "data: %s\n\n", rec)
			flusher.Flush()
		}
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := NewStore(memory.NewStateStore(), zerolog.Nop())
	client := NewClient(store, srv.URL, srv.Client(), zerolog.Nop())
	return client, store
}

func TestClient_StreamAccumulatesIntoOneMessage(t *testing.T) {
	client, store := newTestClient(t, sseHandler(t,
		`{"type":"content","delta":"Hello"}`,
		`{"type":"content","delta":" world"}`,
		`[DONE]`,
	))

	err := client.SendMessage(context.Background(), "hi")
	require.NoError(t, err)

	msgs := store.CurrentSession().Messages
	require.Len(t, msgs, 3) // welcome, user, assistant
	assert.Equal(t, "hi", msgs[1].Content)
	assert.Equal(t, domain.SenderUser, msgs[1].Sender)
	assert.Equal(t, "Hello world", msgs[2].Content)
	assert.Equal(t, domain.SenderSystem, msgs[2].Sender)
	assert.False(t, store.IsError())
	assert.False(t, store.IsLoading())
}

func TestClient_SourcesAttachToAssistantMessage(t *testing.T) {
	client, store := newTestClient(t, sseHandler(t,
		`{"type":"sources","data":[{"id":1,"title":"Chapter 3","url":"/docs/ch3","score":0.92}]}`,
		`{"type":"content","delta":"See chapter 3."}`,
		`[DONE]`,
	))

	err := client.SendMessage(context.Background(), "where?")
	require.NoError(t, err)

	msgs := store.CurrentSession().Messages
	require.Len(t, msgs, 3)
	require.Len(t, msgs[2].Sources, 1)
	assert.Equal(t, "Chapter 3", msgs[2].Sources[0].Title)
	assert.Equal(t, "/docs/ch3", msgs[2].Sources[0].URL)
}

func TestClient_ServerErrorAppendsFixedMessage(t *testing.T) {
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	err := client.SendMessage(context.Background(), "hi")

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusInternalServerError, terr.Status)

	msgs := store.CurrentSession().Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, connectionErrorText, msgs[2].Content)
	assert.Equal(t, domain.SenderSystem, msgs[2].Sender)
	assert.True(t, store.IsError())
	assert.False(t, store.IsLoading())
}

func TestClient_ConnectionRefusedAppendsFixedMessage(t *testing.T) {
	store := NewStore(memory.NewStateStore(), zerolog.Nop())
	client := NewClient(store, "http://127.0.0.1:1", nil, zerolog.Nop())

	err := client.SendMessage(context.Background(), "hi")

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	sess := store.CurrentSession()
	assert.Equal(t, connectionErrorText, sess.LastMessage().Content)
	assert.True(t, store.IsError())
}

func TestClient_MalformedRecordDoesNotAbortStream(t *testing.T) {
	client, store := newTestClient(t, sseHandler(t,
		`{"type":"content","delta":"before"}`,
		`{not json`,
		`{"type":"content","delta":" after"}`,
		`[DONE]`,
	))

	err := client.SendMessage(context.Background(), "hi")
	require.NoError(t, err)

	sess := store.CurrentSession()
	assert.Equal(t, "before after", sess.LastMessage().Content)
	assert.False(t, store.IsError())
}

func TestClient_EmptyStreamLeavesNoAssistantMessage(t *testing.T) {
	// EOF without any content event is the authoritative end of stream.
	client, store := newTestClient(t, sseHandler(t, `[DONE]`))

	err := client.SendMessage(context.Background(), "hi")
	require.NoError(t, err)

	msgs := store.CurrentSession().Messages
	require.Len(t, msgs, 2) // welcome, user
	assert.False(t, store.IsError())
}

func TestClient_NextSendClearsErrorFlag(t *testing.T) {
	var fail atomic.Bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		sseHandler(t, `{"type":"content","delta":"ok"}`, `[DONE]`)(w, r)
	})
	client, store := newTestClient(t, handler)

	fail.Store(true)
	require.Error(t, client.SendMessage(context.Background(), "first"))
	assert.True(t, store.IsError())

	fail.Store(false)
	require.NoError(t, client.SendMessage(context.Background(), "second"))
	assert.False(t, store.IsError())
}

func TestClient_ConcurrentSendOnSameSessionRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		close(started)
		<-release
	})
	client, store := newTestClient(t, handler)
	sessionID := store.CurrentID()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = client.SendMessageTo(context.Background(), sessionID, "slow")
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first send never reached the server")
	}

	err := client.SendMessageTo(context.Background(), sessionID, "concurrent")
	assert.ErrorIs(t, err, ErrSendInFlight)

	close(release)
	wg.Wait()
}

func TestClient_StreamTargetsCapturedSession(t *testing.T) {
	// Switching the current session mid-stream must not redirect the reply.
	client, store := newTestClient(t, sseHandler(t,
		`{"type":"content","delta":"answer"}`,
		`[DONE]`,
	))
	first := store.CurrentID()
	second := store.CreateSession()
	store.SetCurrentSession(first)

	require.NoError(t, client.SendMessageTo(context.Background(), second, "for the other thread"))

	for _, sess := range store.Sessions() {
		switch sess.ID {
		case second:
			assert.Equal(t, "answer", sess.LastMessage().Content)
		case first:
			assert.Equal(t, domain.SenderSystem, sess.LastMessage().Sender)
			assert.NotEqual(t, "answer", sess.LastMessage().Content)
		}
	}
}

func TestClient_SendToUnknownSession(t *testing.T) {
	client, _ := newTestClient(t, sseHandler(t, `[DONE]`))

	err := client.SendMessageTo(context.Background(), "missing", "hi")

	assert.ErrorIs(t, err, ErrSessionNotFound)
}

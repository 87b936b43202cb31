// Package chat implements the conversation core: a session store owning
// the thread collection and a protocol client that streams assistant
// replies into it.
package chat

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bookworm-labs/bookchat/internal/domain"
)

const (
	defaultTitle  = "New Chat"
	maxTitleRunes = 30

	welcomeInitial    = "👋 Hi! I'm your Book Assistant. I can help you answer questions about the textbook. What would you like to explore today? 🤖"
	welcomeNewSession = "👋 Hi! Starting a new conversation. How can I help you? ✨"
	welcomeFreshStart = "👋 Hi! I'm your Book Assistant. Ready for a fresh start! 🤖"
	welcomeCleared    = "👋 Chat cleared. How else can I help you? ✨"

	connectionErrorText = "Sorry, I encountered an error connecting to the server."
)

// Store owns the session collection, the current-session pointer, and the
// open/closed flag. Every mutation is atomic, re-establishes the
// current-pointer invariant, and mirrors the full state to the injected
// StateStore. Persistence failures are logged and never surfaced to
// callers; the store keeps operating in memory.
type Store struct {
	mu        sync.Mutex
	sessions  []domain.ChatSession
	currentID string
	isOpen    bool
	isLoading bool
	isError   bool

	state  domain.StateStore
	logger zerolog.Logger
}

// NewStore creates a session store, restoring persisted state when present.
// If nothing was persisted, a fresh session with a welcome message is
// created and made current.
func NewStore(state domain.StateStore, logger zerolog.Logger) *Store {
	s := &Store{
		state:  state,
		logger: logger.With().Str("component", "chat-store").Logger(),
	}

	restored, err := state.Load(context.Background())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load persisted state, starting fresh")
	}
	if restored != nil && len(restored.Sessions) > 0 {
		s.sessions = restored.Sessions
		s.currentID = restored.CurrentID
		s.isOpen = restored.IsOpen
	} else {
		s.sessions = []domain.ChatSession{newSession(defaultTitle, welcomeInitial)}
	}

	s.reconcile()
	s.persist()
	return s
}

func newSession(title, welcome string) domain.ChatSession {
	return domain.ChatSession{
		ID:    uuid.NewString(),
		Title: title,
		Messages: []domain.Message{{
			ID:        uuid.NewString(),
			Content:   welcome,
			Sender:    domain.SenderSystem,
			Timestamp: domain.NowMillis(),
		}},
		UpdatedAt: domain.NowMillis(),
	}
}

// CreateSession prepends a new session with a welcome message, makes it
// current, and clears the error flag. It returns the new session id.
func (s *Store) CreateSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := newSession(defaultTitle, welcomeNewSession)
	s.sessions = append([]domain.ChatSession{sess}, s.sessions...)
	s.currentID = sess.ID
	s.isError = false

	s.reconcile()
	s.persist()
	return sess.ID
}

// DeleteSession removes the session with the given id. Deleting an unknown
// id is a no-op. If the last session is deleted a fresh replacement is
// synthesized, so the collection is never empty. If the deleted session was
// current, the pointer moves to the first remaining session.
func (s *Store) DeleteSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.sessions[:0]
	for _, sess := range s.sessions {
		if sess.ID != id {
			kept = append(kept, sess)
		}
	}
	s.sessions = kept

	if len(s.sessions) == 0 {
		s.sessions = []domain.ChatSession{newSession(defaultTitle, welcomeFreshStart)}
	}
	if s.currentID == id {
		s.currentID = ""
	}

	s.reconcile()
	s.persist()
}

// SetCurrentSession moves the current pointer. The id is not validated; an
// invalid pointer is healed by the reconciliation rule.
func (s *Store) SetCurrentSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentID = id
	s.reconcile()
	s.persist()
}

// ClearCurrentSession replaces the current session's messages with a single
// fresh welcome message and clears the error flag. The title is kept.
func (s *Store) ClearCurrentSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.sessions {
		if s.sessions[i].ID != s.currentID {
			continue
		}
		s.sessions[i].Messages = []domain.Message{{
			ID:        uuid.NewString(),
			Content:   welcomeCleared,
			Sender:    domain.SenderSystem,
			Timestamp: domain.NowMillis(),
		}}
		s.sessions[i].UpdatedAt = domain.NowMillis()
		break
	}
	s.isError = false

	s.reconcile()
	s.persist()
}

// AppendUserMessage appends a user message to the given session. If it is
// the session's first user message (only the welcome message precedes it),
// the session title is derived from the text: the first 30 characters,
// with "..." appended when truncated.
func (s *Store) AppendUserMessage(sessionID, text string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := domain.Message{
		ID:        uuid.NewString(),
		Content:   text,
		Sender:    domain.SenderUser,
		Timestamp: domain.NowMillis(),
	}

	idx := s.indexOf(sessionID)
	if idx < 0 {
		return domain.Message{}, ErrSessionNotFound
	}

	sess := &s.sessions[idx]
	if len(sess.Messages) == 1 {
		sess.Title = deriveTitle(text)
	}
	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = domain.NowMillis()

	s.reconcile()
	s.persist()
	return msg, nil
}

// Toggle flips the open/closed flag and returns the new value.
func (s *Store) Toggle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.isOpen = !s.isOpen
	s.persist()
	return s.isOpen
}

// Sessions returns a snapshot of the session collection.
func (s *Store) Sessions() []domain.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotSessions(s.sessions)
}

// CurrentSession returns a snapshot of the current session.
func (s *Store) CurrentSession() domain.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(s.currentID)
	if idx < 0 {
		idx = 0
	}
	return snapshotSession(s.sessions[idx])
}

// CurrentID returns the current session id.
func (s *Store) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// IsOpen reports the persisted open/closed flag.
func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isOpen
}

// IsLoading reports whether a reply stream is in progress.
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLoading
}

// IsError reports whether the last send failed.
func (s *Store) IsError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isError
}

// appendMessage appends a fully formed message to the session. Unknown
// session ids are dropped silently: an in-flight stream may outlive the
// session it targeted.
func (s *Store) appendMessage(sessionID string, msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(sessionID)
	if idx < 0 {
		s.logger.Debug().Str("session_id", sessionID).Msg("Dropping message for deleted session")
		return
	}
	s.sessions[idx].Messages = append(s.sessions[idx].Messages, msg)
	s.sessions[idx].UpdatedAt = domain.NowMillis()

	s.reconcile()
	s.persist()
}

// setMessageContent replaces a message's content wholesale with the
// accumulated stream buffer.
func (s *Store) setMessageContent(sessionID, messageID, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(sessionID)
	if idx < 0 {
		return
	}
	sess := &s.sessions[idx]
	for i := range sess.Messages {
		if sess.Messages[i].ID == messageID {
			sess.Messages[i].Content = content
			sess.UpdatedAt = domain.NowMillis()
			break
		}
	}

	s.persist()
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isLoading = v
}

func (s *Store) setError(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isError = v
}

// reconcile re-establishes the current-pointer invariant: whenever the
// pointer does not resolve to an existing session, the first session in
// the collection becomes current. Callers must hold the lock.
func (s *Store) reconcile() {
	if s.indexOf(s.currentID) < 0 {
		s.currentID = s.sessions[0].ID
	}
}

// persist mirrors the full state to the state store. Callers must hold the
// lock. Failures are logged; persistence is best effort.
func (s *Store) persist() {
	state := &domain.State{
		Sessions:  snapshotSessions(s.sessions),
		CurrentID: s.currentID,
		IsOpen:    s.isOpen,
	}
	if err := s.state.Save(context.Background(), state); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist state")
	}
}

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func deriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= maxTitleRunes {
		return text
	}
	return string(runes[:maxTitleRunes]) + "..."
}

func snapshotSession(sess domain.ChatSession) domain.ChatSession {
	out := sess
	out.Messages = make([]domain.Message, len(sess.Messages))
	copy(out.Messages, sess.Messages)
	return out
}

func snapshotSessions(sessions []domain.ChatSession) []domain.ChatSession {
	out := make([]domain.ChatSession, len(sessions))
	for i, sess := range sessions {
		out[i] = snapshotSession(sess)
	}
	return out
}

package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bookworm-labs/bookchat/internal/domain"
	"github.com/bookworm-labs/bookchat/internal/sse"
)

const defaultSendTimeout = 120 * time.Second

// requestState tracks one in-flight send through its lifecycle.
type requestState int

const (
	stateSending   requestState = iota // request issued, no content yet
	stateStreaming                     // assistant message exists, content growing
	stateDone
	stateFailed
)

// Client sends user messages to the chat backend and streams the reply
// into the session store. Updates always target the session id captured
// when the send started, not whichever session is current by the time a
// chunk arrives.
type Client struct {
	store   *Store
	baseURL string
	http    *http.Client
	logger  zerolog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

type sendRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// inflightRequest is the per-send state machine. The first content delta
// creates the assistant message; every later delta replaces its content
// wholesale with the full accumulated buffer.
type inflightRequest struct {
	sessionID string
	msgID     string
	state     requestState
	acc       string
	sources   []domain.Source
}

// NewClient creates a protocol client. A nil httpClient gets a default
// with a cookie jar, so backend session cookies ride along on every send.
func NewClient(store *Store, baseURL string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		jar, _ := cookiejar.New(nil)
		httpClient = &http.Client{Timeout: defaultSendTimeout, Jar: jar}
	}
	return &Client{
		store:    store,
		baseURL:  baseURL,
		http:     httpClient,
		logger:   logger.With().Str("component", "chat-client").Logger(),
		inflight: make(map[string]struct{}),
	}
}

// SendMessage sends text on the current session and blocks until the reply
// stream completes. On transport failure the fixed connection-error
// message is appended to the session and the error flag is set; the
// returned error wraps the cause as a *TransportError.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	return c.SendMessageTo(ctx, c.store.CurrentID(), text)
}

// SendMessageTo is SendMessage targeting an explicit session id.
func (c *Client) SendMessageTo(ctx context.Context, sessionID, text string) error {
	if !c.acquire(sessionID) {
		return ErrSendInFlight
	}
	defer c.release(sessionID)

	if _, err := c.store.AppendUserMessage(sessionID, text); err != nil {
		return err
	}

	c.store.setLoading(true)
	c.store.setError(false)
	defer c.store.setLoading(false)

	req := &inflightRequest{
		sessionID: sessionID,
		msgID:     uuid.NewString(),
		state:     stateSending,
	}

	if err := c.stream(ctx, req, text); err != nil {
		req.state = stateFailed
		c.logger.Error().Err(err).Str("session_id", sessionID).Msg("Send failed")
		c.store.appendMessage(sessionID, domain.Message{
			ID:        uuid.NewString(),
			Content:   connectionErrorText,
			Sender:    domain.SenderSystem,
			Timestamp: domain.NowMillis(),
		})
		c.store.setError(true)
		return err
	}

	req.state = stateDone
	return nil
}

func (c *Client) stream(ctx context.Context, req *inflightRequest, text string) error {
	body, err := json.Marshal(sendRequest{Message: text, SessionID: req.sessionID})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/message", bytes.NewReader(body))
	if err != nil {
		return &TransportError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Status: resp.StatusCode}
	}
	if resp.Body == nil {
		return &TransportError{Err: fmt.Errorf("no response body")}
	}

	dec := sse.NewDecoder(c.logger)
	buf := make([]byte, 4096)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, ev := range dec.Feed(buf[:n]) {
				c.apply(req, ev)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return &TransportError{Err: readErr}
		}
	}

	// Transport EOF is the authoritative end of stream; [DONE] is advisory.
	if req.state == stateSending {
		c.logger.Debug().Str("session_id", req.sessionID).Msg("Stream ended without content")
	}
	return nil
}

// apply feeds one decoded event through the per-request state machine.
func (c *Client) apply(req *inflightRequest, ev sse.Event) {
	switch {
	case ev.Done:
		c.logger.Debug().Msg("Received [DONE] sentinel")

	case ev.Type == sse.EventTypeSources:
		var parsed []domain.Source
		if err := json.Unmarshal(ev.Data, &parsed); err != nil {
			c.logger.Warn().Err(err).Msg("Skipping malformed sources event")
			return
		}
		req.sources = parsed

	case ev.Type == sse.EventTypeContent && ev.Delta != "":
		req.acc += ev.Delta
		switch req.state {
		case stateSending:
			c.store.appendMessage(req.sessionID, domain.Message{
				ID:        req.msgID,
				Content:   req.acc,
				Sender:    domain.SenderSystem,
				Timestamp: domain.NowMillis(),
				Sources:   req.sources,
			})
			req.state = stateStreaming
		case stateStreaming:
			c.store.setMessageContent(req.sessionID, req.msgID, req.acc)
		}
	}
}

func (c *Client) acquire(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[sessionID]; busy {
		return false
	}
	c.inflight[sessionID] = struct{}{}
	return true
}

func (c *Client) release(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, sessionID)
}

// Package backend implements the development backend: the streaming chat
// endpoint plus the auth and profile surfaces the client consumes.
package backend

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/bookworm-labs/bookchat/internal/backend/responder"
	"github.com/bookworm-labs/bookchat/internal/backend/response"
	"github.com/bookworm-labs/bookchat/internal/domain"
)

type chatRequest struct {
	Message   string `json:"message" validate:"required,max=4000"`
	SessionID string `json:"session_id"`
}

type chatHandler struct {
	responder responder.Responder
	logger    zerolog.Logger
}

// sampleSources stands in for retrieval results; the real backend runs a
// vector search over the textbook before answering.
var sampleSources = []domain.Source{
	{ID: 1, Title: "Introduction", URL: "/docs/intro", Score: 0.92},
	{ID: 2, Title: "Getting Started", URL: "/docs/getting-started", Score: 0.87},
}

func newChatHandler(r responder.Responder, logger zerolog.Logger) *chatHandler {
	return &chatHandler{
		responder: r,
		logger:    logger.With().Str("component", "chat-handler").Logger(),
	}
}

// Message streams the assistant reply as "data: <json>" events followed by
// the advisory "data: [DONE]" sentinel.
func (h *chatHandler) Message(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, "message is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalError(w, "streaming unsupported")
		return
	}

	h.logger.Info().Str("session_id", req.SessionID).Int("message_len", len(req.Message)).Msg("Chat message received")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent := func(payload any) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := writeEvent(map[string]any{"type": "sources", "data": sampleSources}); err != nil {
		h.logger.Warn().Err(err).Msg("Client went away while writing sources")
		return
	}

	err := h.responder.Respond(r.Context(), req.Message, func(delta string) error {
		return writeEvent(map[string]any{"type": "content", "delta": delta})
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Responder failed mid-stream")
		// The stream is already committed; the client treats EOF as the end.
		return
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

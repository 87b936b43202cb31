package backend

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/bookworm-labs/bookchat/internal/backend/middleware"
	"github.com/bookworm-labs/bookchat/internal/backend/response"
	"github.com/bookworm-labs/bookchat/internal/domain"
)

type profileHandler struct {
	users  *userStore
	logger zerolog.Logger
}

func newProfileHandler(users *userStore, logger zerolog.Logger) *profileHandler {
	return &profileHandler{
		users:  users,
		logger: logger.With().Str("component", "profile-handler").Logger(),
	}
}

// Upsert creates or updates the caller's background profile
func (h *profileHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req domain.ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, validationErrors(err))
		return
	}

	profile := h.users.upsertProfile(userID, req)
	h.logger.Info().Str("user_id", userID.String()).Msg("Profile saved")
	response.OK(w, profile)
}

// Get returns the caller's profile
func (h *profileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	profile, found := h.users.getProfile(userID)
	if !found {
		response.Error(w, http.StatusNotFound, "profile not found")
		return
	}
	response.OK(w, profile)
}

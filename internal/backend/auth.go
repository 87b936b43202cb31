package backend

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/bookworm-labs/bookchat/internal/backend/middleware"
	"github.com/bookworm-labs/bookchat/internal/backend/response"
	"github.com/bookworm-labs/bookchat/internal/domain"
	"github.com/bookworm-labs/bookchat/internal/security"
)

var validate = validator.New()

type authHandler struct {
	users      *userStore
	jwtManager *security.JWTManager
	logger     zerolog.Logger
}

func newAuthHandler(users *userStore, jwtManager *security.JWTManager, logger zerolog.Logger) *authHandler {
	return &authHandler{
		users:      users,
		jwtManager: jwtManager,
		logger:     logger.With().Str("component", "auth-handler").Logger(),
	}
}

// Register handles sign-up
func (h *authHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input domain.UserCreate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationErrors(err))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		response.InternalError(w, "failed to hash password")
		return
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: string(hashed),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.users.create(user); err != nil {
		if errors.Is(err, errEmailTaken) {
			response.Conflict(w, "email already registered")
			return
		}
		response.InternalError(w, "failed to create user")
		return
	}

	h.logger.Info().Str("email", user.Email).Msg("User registered")
	response.Created(w, user)
}

// Login handles sign-in and returns a token pair. The access token is also
// set as a session cookie so the chat endpoint can identify the caller.
func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input domain.UserLogin
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationErrors(err))
		return
	}

	user, err := h.users.getByEmail(input.Email)
	if err != nil {
		response.Unauthorized(w, "invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		response.Unauthorized(w, "invalid credentials")
		return
	}

	accessToken, refreshToken, expiresIn, err := h.jwtManager.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		response.InternalError(w, "failed to generate tokens")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "bookchat_session",
		Value:    accessToken,
		Path:     "/",
		MaxAge:   int(h.jwtManager.AccessTokenTTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	response.OK(w, domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	})
}

// Logout clears the session cookie
func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "bookchat_session",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	response.OK(w, map[string]string{"message": "signed out"})
}

// Session returns the authenticated caller's session info
func (h *authHandler) Session(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	user, err := h.users.getByID(userID)
	if err != nil {
		response.Unauthorized(w, "unknown user")
		return
	}

	response.OK(w, domain.SessionInfo{
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: time.Now().Add(h.jwtManager.AccessTokenTTL()),
	})
}

func validationErrors(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	out := make(map[string]string)
	for _, e := range verrs {
		switch e.Tag() {
		case "required":
			out[e.Field()] = "field is required"
		case "email":
			out[e.Field()] = "invalid email format"
		case "min":
			out[e.Field()] = "must be at least " + e.Param() + " characters"
		case "max":
			out[e.Field()] = "must be at most " + e.Param() + " characters"
		default:
			out[e.Field()] = "validation failed on " + e.Tag()
		}
	}
	return out
}

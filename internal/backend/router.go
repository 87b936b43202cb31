package backend

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/bookworm-labs/bookchat/internal/backend/middleware"
	"github.com/bookworm-labs/bookchat/internal/backend/responder"
	"github.com/bookworm-labs/bookchat/internal/backend/response"
	"github.com/bookworm-labs/bookchat/internal/config"
	"github.com/bookworm-labs/bookchat/internal/security"
)

// NewRouter creates and configures the HTTP router. With a Gemini API key
// configured, replies come from the model; otherwise a canned responder
// answers so the client remains usable offline.
func NewRouter(cfg *config.Config, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	jwtManager := security.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	users := newUserStore()

	var rsp responder.Responder = responder.NewCanned()
	if gemini := responder.NewGemini(cfg.LLM.Gemini); gemini.IsConfigured() {
		logger.Info().Str("model", cfg.LLM.Gemini.Model).Msg("Using Gemini responder")
		rsp = gemini
	} else {
		logger.Info().Msg("No Gemini API key, using canned responder")
	}

	chatH := newChatHandler(rsp, logger)
	authH := newAuthHandler(users, jwtManager, logger)
	profileH := newProfileHandler(users, logger)

	authMiddleware := middleware.NewAuthMiddleware(jwtManager)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			response.OK(w, map[string]string{"status": "ok"})
		})

		r.Post("/chat/message", chatH.Message)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authH.Register)
			r.Post("/login", authH.Login)
			r.Post("/logout", authH.Logout)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.Authenticate)
				r.Get("/session", authH.Session)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Post("/user/profile", profileH.Upsert)
			r.Get("/user/profile", profileH.Get)
		})
	})

	return r
}

package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tylerfeldstein/portfolio-chat/pkg/health"
	"github.com/tylerfeldstein/portfolio-chat/pkg/middleware"

	"github.com/tylerfeldstein/portfolio-chat/internal/auth"
	"github.com/tylerfeldstein/portfolio-chat/internal/service"
)

// NewRouter creates a chi router with all chat service routes registered.
func NewRouter(
	identityService *service.IdentityService,
	sessionService *service.SessionService,
	chatService *service.ChatService,
	cookies *auth.CookieManager,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("chat"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	sessionHandler := NewSessionHandler(identityService, sessionService, cookies, logger)

	// Session endpoints that work without a verified access token: creation,
	// rotation and sign-out all have to function when the access token is
	// missing or expired.
	r.Route("/api/v1/session", func(r chi.Router) {
		r.With(ContentTypeJSON).Post("/", sessionHandler.Create)
		r.Post("/refresh", sessionHandler.Refresh)
		r.Delete("/", sessionHandler.Delete)

		r.With(SessionAuth(sessionService, cookies)).Get("/", sessionHandler.Get)
	})

	// Chat endpoints (auth required)
	chatHandler := NewChatHandler(chatService, logger)
	r.Route("/api/v1/chats", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(SessionAuth(sessionService, cookies))

		r.Post("/", chatHandler.Create)
		r.Get("/", chatHandler.List)
		r.Get("/{id}", chatHandler.Get)
		r.Patch("/{id}", chatHandler.Rename)
		r.Delete("/{id}", chatHandler.Delete)

		r.Post("/{id}/messages", chatHandler.SendMessage)
		r.Get("/{id}/messages", chatHandler.ListMessages)
		r.Post("/{id}/read", chatHandler.MarkRead)
		r.Get("/{id}/unread", chatHandler.UnreadCount)
		r.Put("/{id}/typing", chatHandler.SetTyping)
		r.Get("/{id}/typing", chatHandler.GetTyping)
	})

	// User administration endpoints (admin required)
	userHandler := NewUserHandler(identityService, logger)
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(SessionAuth(sessionService, cookies))
		r.Use(RequireAdmin)

		r.Get("/", userHandler.List)
		r.Put("/{id}/role", userHandler.AssignRole)
	})

	return r
}

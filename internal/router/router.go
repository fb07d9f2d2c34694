package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"focustrack-backend/internal/handlers"
	"focustrack-backend/internal/middleware"
	"focustrack-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	sessionHandler *handlers.SessionHandler,
	suggestionHandler *handlers.SuggestionHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Mutation rate limiter (60 req/min per IP); generous, but blunts
	// accidental client retry storms on the CAS-guarded endpoints.
	mutationLimiter := middleware.NewRateLimiter(60, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Session Routes ────
		r.Route("/sessions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			r.Get("/current", sessionHandler.GetCurrent)
			r.Get("/unresponsive", sessionHandler.GetUnresponsive)

			r.Group(func(r chi.Router) {
				r.Use(mutationLimiter.Middleware)
				r.Post("/start", sessionHandler.Start)
				r.Post("/pause", sessionHandler.Pause)
				r.Post("/resume", sessionHandler.Resume)
				r.Post("/checkout", sessionHandler.Checkout)
				r.Post("/snooze", sessionHandler.Snooze)
			})
		})

		// ──── Reschedule Suggestion Routes ────
		r.Route("/suggestions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			r.Get("/pending", suggestionHandler.ListPending)

			r.Group(func(r chi.Router) {
				r.Use(mutationLimiter.Middleware)
				r.Post("/{id}/accept", suggestionHandler.Accept)
				r.Post("/{id}/reject", suggestionHandler.Reject)
			})
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}

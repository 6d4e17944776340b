package api

import (
	"net/http"

	"github.com/dom/scrimhub/internal/api/handlers"
	"github.com/dom/scrimhub/internal/api/middleware"
	"github.com/dom/scrimhub/internal/service"
	ws "github.com/dom/scrimhub/internal/websocket"
	"github.com/dom/scrimhub/pkg/ratelimit"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the HTTP surface. Everything except register and
// login requires a bearer token.
func NewRouter(services *service.Services, hub *ws.Hub, limiter ratelimit.Limiter) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS)

	authHandler := handlers.NewAuthHandler(services.Auth)
	queueHandler := handlers.NewQueueHandler(services.Queue, services.Ready)
	matchHandler := handlers.NewMatchHandler(services.Match, services.Ready)
	wsHandler := handlers.NewWebSocketHandler(hub)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(services.Auth))
				r.Post("/logout", authHandler.Logout)
				r.Get("/me", authHandler.Me)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(services.Auth))
			r.Use(middleware.RateLimit(limiter))

			r.Route("/queue", func(r chi.Router) {
				r.Post("/join", queueHandler.Join)
				r.Post("/leave", queueHandler.Leave)
				r.Get("/status", queueHandler.Status)
				r.Post("/accept", queueHandler.Accept)
				r.Post("/decline", queueHandler.Decline)
			})

			r.Route("/matches", func(r chi.Router) {
				r.Get("/current", matchHandler.Current)
				r.Route("/{matchID}", func(r chi.Router) {
					r.Get("/", matchHandler.Get)
					r.Post("/accept", matchHandler.Accept)
					r.Get("/accept-status", matchHandler.AcceptStatus)
					r.Post("/pick", matchHandler.Pick)
					r.Post("/ban", matchHandler.Ban)
					r.Post("/complete", matchHandler.Complete)
					r.Post("/cancel", matchHandler.Cancel)
				})
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(services.Auth))
			r.Get("/ws", wsHandler.Serve)
		})
	})

	return r
}

package handlers

import (
	"net/http"
	"time"

	"github.com/Avexra-AI/SAS-Chatbot/api/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterOptions struct {
	CORSOrigins []string
	// Limiter applies to the chat endpoint only. Nil disables limiting.
	Limiter *RateLimiter
	// Timeout bounds how long a caller waits for an answer. A pipeline run
	// shared with other callers keeps going past it.
	Timeout time.Duration
}

// NewRouter mounts the API on a chi router.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Get("/version", h.GetVersion)

	r.Route("/api", func(r chi.Router) {
		if opts.Timeout > 0 {
			r.Use(middleware.Timeout(opts.Timeout))
		}
		r.Get("/schema", h.Schema)
		r.Group(func(r chi.Router) {
			if opts.Limiter != nil {
				r.Use(RateLimitMiddleware(opts.Limiter))
			}
			r.Post("/chat", h.Chat)
			r.Delete("/chat/{sessionID}", h.ClearChat)
		})
	})
	return r
}

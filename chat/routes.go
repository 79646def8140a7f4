package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	m "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/zjx20/gemini-relay/metrics"
	"github.com/zjx20/gemini-relay/util/middleware"
)

// NewRouter wires the relay endpoints. collector may be nil, in which case
// /metrics is not served.
func NewRouter(h *Handler, collector *metrics.Collector, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(m.RequestID)
	r.Use(m.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", ConversationIDHeader},
		ExposedHeaders: []string{ConversationIDHeader},
		MaxAge:         300,
	}))
	r.Use(m.Compress(5))

	r.Get("/", h.Index)
	r.Get("/api", h.API)
	r.Get("/models", h.Models)
	r.Post("/chat", h.Chat)
	if collector != nil {
		r.Method(http.MethodGet, "/metrics", collector.Handler())
	}
	return r
}

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes builds the HTTP surface. extra mounts diagnostics such as /metrics
// next to the health checks.
func Routes(mw *Middleware, chat *ChatHandler, health *HealthHandler, extra map[string]http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(mw.CORSMiddleware)

	r.Get("/health", health.HandleHealth)
	r.Get("/health/store", health.HandleStoreHealth)
	for path, h := range extra {
		r.Handle(path, h)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.AuthMiddleware)

		r.Post("/chat", chat.HandleChat)
		r.Get("/costs/daily", chat.HandleDailyCosts)
		r.Get("/costs/suggestions", chat.HandleSuggestions)
		r.Get("/conversations/{id}", chat.HandleGetConversation)
		r.Delete("/conversations/{id}", chat.HandleDeleteConversation)
		r.Delete("/me/cache", chat.HandleForgetCaller)
	})

	return r
}

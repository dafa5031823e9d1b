package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

func NewRouter(h *APIHandler, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(requestLogger(log))

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/register", h.RegisterHandler)
		r.Post("/login", h.LoginHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Session-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Post("/chat", h.ChatHandler)
			r.Delete("/chat", h.DeleteChatHandler)

			r.Get("/chats", h.ListChatsHandler)
			r.Get("/chats/{chatID}", h.GetChatHandler)
			r.Patch("/chats/{chatID}/visibility", h.UpdateVisibilityHandler)

			r.Delete("/messages/{messageID}/trailing", h.DeleteTrailingHandler)
		})
	})

	return r
}

// requestLogger emits one structured line per request. The chi wrapper keeps
// http.Flusher intact, which the relay stream depends on.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

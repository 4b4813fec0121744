package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"tweet-quiz-service/internal/app"
	"tweet-quiz-service/internal/auth"
	"tweet-quiz-service/internal/domain"
)

// NewRouter wires the HTTP surface:
//
//	GET /healthz               liveness
//	GET /ws                    one quiz tab per websocket
//	GET /auth/google/callback  completes a redirect sign-in started on a socket
//	GET /api/items             content preview without attributions
func NewRouter(ws *WSHandler, items app.ItemRepository, registry *auth.Registry, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)
	r.Get("/auth/google/callback", callbackHandler(registry, logger))
	r.Get("/api/items", itemsHandler(items, logger))
	return r
}

func callbackHandler(registry *auth.Registry, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			http.Error(w, domain.ErrProviderUnavailable.Error(), http.StatusServiceUnavailable)
			return
		}
		q := r.URL.Query()
		if errParam := q.Get("error"); errParam != "" {
			http.Error(w, "sign-in was cancelled: "+errParam, http.StatusBadRequest)
			return
		}
		provider, ok := registry.Resolve(q.Get("state"))
		if !ok {
			http.Error(w, domain.ErrUnknownState.Error(), http.StatusBadRequest)
			return
		}
		if err := provider.Complete(r.Context(), q.Get("code")); err != nil {
			logger.Warn("oauth callback failed", slog.Any("error", err))
			status := http.StatusBadGateway
			if errors.Is(err, domain.ErrInvalidCredential) {
				status = http.StatusUnauthorized
			}
			http.Error(w, "sign-in failed", status)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("Signed in. You can close this window and return to the game."))
	}
}

func itemsHandler(items app.ItemRepository, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		set, err := items.Items(r.Context())
		if err != nil {
			logger.Error("load content failed", slog.Any("error", err))
			http.Error(w, "content unavailable", http.StatusServiceUnavailable)
			return
		}
		out := make([]itemPayload, 0, len(set))
		for _, item := range set {
			out = append(out, itemPayload{Text: item.Text, Date: item.Date})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"count": len(out), "items": out})
	}
}

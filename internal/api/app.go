package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewAppHandler returns the HTTP surface: an unauthenticated /health check
// and a bearer-guarded /status rollup. Token may be empty, which leaves
// /status open; intended only for loopback deployments.
func NewAppHandler(store Store, token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	status := func(w http.ResponseWriter, req *http.Request) {
		counts, err := store.Counts(req.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "counting rows: %v", err)
			return
		}
		backups, err := store.RecentBackups(req.Context(), 5)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing backups: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"counts":         counts,
			"recent_backups": backups,
		})
	}

	if token != "" {
		r.With(RequireToken(token)).Get("/status", status)
	} else {
		r.Get("/status", status)
	}

	return r
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

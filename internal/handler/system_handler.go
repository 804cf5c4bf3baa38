package handler

import (
	"net/http"
	"time"

	"livechat/internal/pkg/resp"
)

// HandleHealth reports liveness together with the current user and message counts.
func HandleHealth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := deps.Controller.Stats()

		resp.RespondSuccess(w, r, map[string]any{
			"status":      "OK",
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"users":       stats.TotalUsers,
			"messages":    stats.TotalMessages,
			"connections": deps.Hub.Count(),
		})
	}
}

// HandleStats returns the online-user list and counters.
func HandleStats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, deps.Controller.Stats())
	}
}

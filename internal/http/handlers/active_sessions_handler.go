package handlers

import (
	"net/http"

	"chargecore/internal/store"
)

// NewActiveSessionsHandler returns GET /api/sessions/active handler.
func NewActiveSessionsHandler(ledger store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := ledger.ListActiveSessions(r.Context(), 50)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to fetch active sessions")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"sessions": sessions,
		})
	}
}

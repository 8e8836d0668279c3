package handlers

import (
	"errors"
	"net/http"

	"chargecore/internal/http/middleware"
	"chargecore/internal/store"
)

// NewMeHandler returns GET /api/me handler with the caller's account state.
// Crediting the balance happens outside this service; this is a read only.
func NewMeHandler(ledger store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		user, err := ledger.GetUser(r.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				writeError(w, http.StatusNotFound, "user not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to fetch account")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":       user.ID,
			"username": user.Username,
			"balance":  user.Balance,
		})
	}
}

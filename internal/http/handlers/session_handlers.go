package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"chargecore/internal/cache"
	"chargecore/internal/engine"
	"chargecore/internal/http/middleware"
)

// SessionHandlers exposes the engine to authenticated API callers.
type SessionHandlers struct {
	engine      *engine.Engine
	activeCache *cache.ActiveSessions
	logger      *zap.Logger
}

// NewSessionHandlers builds handler set.
func NewSessionHandlers(eng *engine.Engine, activeCache *cache.ActiveSessions, logger *zap.Logger) *SessionHandlers {
	return &SessionHandlers{
		engine:      eng,
		activeCache: activeCache,
		logger:      logger,
	}
}

type stopRequest struct {
	SessionID int64   `json:"session_id"`
	EnergyKWh float64 `json:"energy_kwh"`
}

// Start handles POST /api/session/start.
func (h *SessionHandlers) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	session, err := h.engine.Start(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, engine.ErrInsufficientBalance):
			writeError(w, http.StatusPaymentRequired, "insufficient balance")
		default:
			h.logger.Error("start session failed", zap.Int64("user_id", userID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to start session")
		}
		return
	}

	if err := h.activeCache.Save(r.Context(), cache.ActiveSession{
		SessionID: session.ID,
		UserID:    session.UserID,
	}); err != nil {
		h.logger.Warn("failed to cache active session", zap.Int64("session_id", session.ID), zap.Error(err))
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"session_id": session.ID})
}

// Stop handles POST /api/session/stop.
func (h *SessionHandlers) Stop(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req stopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.SessionID == 0 {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	result, err := h.engine.Stop(r.Context(), req.SessionID, userID, req.EnergyKWh)
	if err != nil {
		switch {
		// Ownership mismatch reads the same as not-found so callers cannot
		// probe other accounts' session ids.
		case errors.Is(err, engine.ErrSessionNotFound), errors.Is(err, engine.ErrOwnershipMismatch):
			writeError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, engine.ErrInvalidEnergy):
			writeError(w, http.StatusBadRequest, "energy must not be negative")
		case errors.Is(err, engine.ErrAlreadySettled):
			writeError(w, http.StatusConflict, "session already settled")
		default:
			h.logger.Error("stop session failed", zap.Int64("session_id", req.SessionID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to stop session")
		}
		return
	}

	if err := h.activeCache.Delete(r.Context(), req.SessionID); err != nil {
		h.logger.Warn("failed to delete active session cache", zap.Int64("session_id", req.SessionID), zap.Error(err))
	}

	if result.Outcome == engine.OutcomeExpired {
		writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"outcome": result.Outcome,
			"error":   "insufficient balance for consumed energy",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"outcome":           result.Outcome,
		"remaining_balance": result.RemainingBalance,
	})
}

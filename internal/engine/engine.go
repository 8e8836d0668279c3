// Package engine implements the charging-session ledger state machine. The
// engine is the single authority over user balance and session status; both
// the HTTP API and the charge-point link drive it through the same two
// operations. It holds no transport knowledge and performs no retries.
package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"chargecore/internal/models"
	"chargecore/internal/store"
)

// Outcome of a settled stop.
type Outcome string

const (
	// OutcomePaid means the balance covered the cost and was deducted.
	OutcomePaid Outcome = "paid"
	// OutcomeExpired means funds ran out mid-session; the session is closed
	// with the full metered energy recorded and nothing charged.
	OutcomeExpired Outcome = "expired"
)

// StopResult reports how a session was settled. RemainingBalance is only
// meaningful for OutcomePaid.
type StopResult struct {
	Outcome          Outcome
	Cost             float64
	RemainingBalance float64
}

// Engine runs sessions against the ledger store.
type Engine struct {
	store   store.Store
	pricing *Pricing
	logger  *zap.Logger
}

// New builds the engine.
func New(ledger store.Store, pricing *Pricing, logger *zap.Logger) *Engine {
	return &Engine{
		store:   ledger,
		pricing: pricing,
		logger:  logger,
	}
}

// Start opens a session for the user. The balance check is a precondition
// only: Start never touches the balance, so a caller that disconnects before
// the response leaves an active, billable session and nothing else.
func (e *Engine) Start(ctx context.Context, userID int64) (*models.ChargingSession, error) {
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, failure(ErrUserNotFound, userID, 0)
		}
		return nil, fmt.Errorf("engine: start: %w", err)
	}

	if user.Balance <= 0 {
		return nil, failure(ErrInsufficientBalance, userID, 0)
	}

	session, err := e.store.CreateSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("engine: start: %w", err)
	}

	e.logger.Info("session started",
		zap.Int64("session_id", session.ID),
		zap.Int64("user_id", userID),
	)
	return session, nil
}

// Stop settles the session against the metered energy. The store's
// compare-and-settle is the sole serialization point: of two racing stops,
// the first commits and the second observes ErrAlreadySettled.
func (e *Engine) Stop(ctx context.Context, sessionID, callerUserID int64, energyKWh float64) (*StopResult, error) {
	session, err := e.store.GetActiveSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, failure(ErrSessionNotFound, callerUserID, sessionID)
		}
		return nil, fmt.Errorf("engine: stop: %w", err)
	}

	if session.UserID != callerUserID {
		return nil, failure(ErrOwnershipMismatch, callerUserID, sessionID)
	}

	if energyKWh < 0 {
		return nil, failure(ErrInvalidEnergy, callerUserID, sessionID)
	}

	cost := e.pricing.Cost(energyKWh)

	owner, err := e.store.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("engine: stop: %w", err)
	}

	if owner.Balance < cost {
		// The hardware may have delivered energy the account cannot pay for.
		// Close the session with the full energy recorded and charge nothing
		// rather than leave it open or drive the balance negative.
		err := e.store.CompareAndSettle(ctx, store.SettleParams{
			SessionID:    sessionID,
			UserID:       session.UserID,
			Outcome:      models.OutcomeExpired,
			EnergyKWh:    energyKWh,
			BalanceDelta: 0,
		})
		if err != nil {
			return nil, e.settleError(err, callerUserID, sessionID)
		}

		e.logger.Info("session expired",
			zap.Int64("session_id", sessionID),
			zap.Int64("user_id", session.UserID),
			zap.Float64("energy_kwh", energyKWh),
			zap.Float64("cost", cost),
			zap.Float64("balance", owner.Balance),
		)
		return &StopResult{Outcome: OutcomeExpired, Cost: cost}, nil
	}

	err = e.store.CompareAndSettle(ctx, store.SettleParams{
		SessionID:    sessionID,
		UserID:       session.UserID,
		Outcome:      models.OutcomePaid,
		EnergyKWh:    energyKWh,
		BalanceDelta: -cost,
	})
	if err != nil {
		return nil, e.settleError(err, callerUserID, sessionID)
	}

	remaining := owner.Balance - cost
	e.logger.Info("session settled",
		zap.Int64("session_id", sessionID),
		zap.Int64("user_id", session.UserID),
		zap.Float64("energy_kwh", energyKWh),
		zap.Float64("cost", cost),
		zap.Float64("remaining_balance", remaining),
	)
	return &StopResult{Outcome: OutcomePaid, Cost: cost, RemainingBalance: remaining}, nil
}

// settleError maps a failed compare-and-settle. A status conflict becomes
// ErrAlreadySettled. A balance-floor abort (another settlement drained the
// account between the read and the commit) is surfaced as a store failure;
// the session stays active and a retried stop then settles it as expired.
func (e *Engine) settleError(err error, callerUserID, sessionID int64) error {
	if errors.Is(err, store.ErrSettleConflict) || errors.Is(err, store.ErrSessionNotFound) {
		return failure(ErrAlreadySettled, callerUserID, sessionID)
	}
	e.logger.Error("settlement failed",
		zap.Int64("session_id", sessionID),
		zap.Error(err),
	)
	return fmt.Errorf("engine: settle: %w", err)
}

// Package store defines the durable ledger contract consumed by the session
// engine. Implementations must make each operation atomic with respect to the
// records it touches; CompareAndSettle is the per-session serialization point.
package store

import (
	"context"
	"errors"

	"chargecore/internal/models"
)

var (
	// ErrUserNotFound represents a missing user record.
	ErrUserNotFound = errors.New("store: user not found")
	// ErrSessionNotFound represents a missing or already settled session.
	ErrSessionNotFound = errors.New("store: active session not found")
	// ErrSettleConflict means the session left the expected status before the
	// settlement committed; a concurrent caller won.
	ErrSettleConflict = errors.New("store: session already settled")
	// ErrBalanceFloor means applying the balance delta would drive the owner's
	// balance below zero. The session is left untouched.
	ErrBalanceFloor = errors.New("store: balance below zero")
)

// SettleParams describes a single atomic settlement: verify the session is
// still active and owned by UserID, apply BalanceDelta to the owner, and
// write the terminal status with the recorded energy.
type SettleParams struct {
	SessionID    int64
	UserID       int64
	Outcome      string
	EnergyKWh    float64
	BalanceDelta float64
}

// Store is the ledger contract. GetActiveSession only returns sessions still
// in active status; CompareAndSettle returns ErrSettleConflict when the
// session was settled concurrently.
type Store interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByTag(ctx context.Context, tag string) (*models.User, error)
	GetActiveSession(ctx context.Context, id int64) (*models.ChargingSession, error)
	CreateSession(ctx context.Context, userID int64) (*models.ChargingSession, error)
	CompareAndSettle(ctx context.Context, p SettleParams) error
	ListActiveSessions(ctx context.Context, limit int) ([]models.ChargingSession, error)
	Close() error
}

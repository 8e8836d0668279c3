package engine

import (
	"errors"
	"fmt"
)

// Failure kinds. Precondition failures (user not found, insufficient balance,
// invalid energy, ownership mismatch) leave no state behind and are safe to
// retry after correcting input. ErrAlreadySettled means a concurrent stop won
// the settlement; the caller must not retry it as a new settlement.
var (
	ErrUserNotFound        = errors.New("engine: user not found")
	ErrInsufficientBalance = errors.New("engine: insufficient balance")
	ErrSessionNotFound     = errors.New("engine: active session not found")
	ErrOwnershipMismatch   = errors.New("engine: session owned by another user")
	ErrInvalidEnergy       = errors.New("engine: metered energy must not be negative")
	ErrAlreadySettled      = errors.New("engine: session already settled")
)

// Error carries the failure kind plus the identifiers involved, so transport
// adapters can map it without parsing message text.
type Error struct {
	Kind      error
	UserID    int64
	SessionID int64
}

func (e *Error) Error() string {
	switch {
	case e.SessionID != 0 && e.UserID != 0:
		return fmt.Sprintf("%v (session %d, user %d)", e.Kind, e.SessionID, e.UserID)
	case e.SessionID != 0:
		return fmt.Sprintf("%v (session %d)", e.Kind, e.SessionID)
	case e.UserID != 0:
		return fmt.Sprintf("%v (user %d)", e.Kind, e.UserID)
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes the kind sentinel for errors.Is.
func (e *Error) Unwrap() error {
	return e.Kind
}

func failure(kind error, userID, sessionID int64) error {
	return &Error{Kind: kind, UserID: userID, SessionID: sessionID}
}

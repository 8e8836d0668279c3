package models

import "time"

// Session status values. A session is created active and settled exactly once;
// there is no transition back.
const (
	SessionStatusActive  = "active"
	SessionStatusSettled = "settled"
)

// Settlement outcomes.
const (
	OutcomePaid    = "paid"
	OutcomeExpired = "expired"
)

// User represents a prepaid account. Balance is mutated only by topup
// (external) and by session settlement.
type User struct {
	ID        int64     `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Balance   float64   `db:"balance" json:"balance"`
	IsAdmin   bool      `db:"is_admin" json:"is_admin"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChargingSession represents one charge-delivery episode bounded by start and stop.
type ChargingSession struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	EnergyKWh float64   `db:"energy_kwh" json:"energy_kwh"`
	Status    string    `db:"status" json:"status"`
	Outcome   string    `db:"outcome" json:"outcome,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Active reports whether the session can still be settled.
func (s *ChargingSession) Active() bool {
	return s.Status == SessionStatusActive
}

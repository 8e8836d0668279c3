// Package postgres implements the ledger store on PostgreSQL via the pgx
// stdlib driver. Settlement atomicity comes from conditional UPDATEs inside a
// single transaction; no advisory or table locks are taken.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"chargecore/internal/db"
	"chargecore/internal/models"
	"chargecore/internal/store"
)

// Store is the PostgreSQL-backed ledger store.
type Store struct {
	db *sql.DB
}

// NewStore opens a connection pool for the given DSN.
func NewStore(dsn string) (*Store, error) {
	sqlDB, err := db.NewPostgresDB(dsn)
	if err != nil {
		return nil, err
	}
	return &Store{db: sqlDB}, nil
}

// NewStoreWithDB wraps an existing pool, mainly for tests.
func NewStoreWithDB(sqlDB *sql.DB) *Store {
	return &Store{db: sqlDB}
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	const query = `
		SELECT id, username, balance, is_admin, created_at
		FROM users
		WHERE id = $1
	`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByTag fetches a user by the tag presented at the charge point.
func (s *Store) GetUserByTag(ctx context.Context, tag string) (*models.User, error) {
	const query = `
		SELECT id, username, balance, is_admin, created_at
		FROM users
		WHERE username = $1
		LIMIT 1
	`
	return scanUser(s.db.QueryRowContext(ctx, query, strings.TrimSpace(tag)))
}

// GetActiveSession returns the session only while its status is active.
func (s *Store) GetActiveSession(ctx context.Context, id int64) (*models.ChargingSession, error) {
	const query = `
		SELECT id, user_id, energy_kwh, status, outcome, created_at, updated_at
		FROM charging_sessions
		WHERE id = $1 AND status = 'active'
	`
	row := s.db.QueryRowContext(ctx, query, id)
	var sess models.ChargingSession
	var outcome sql.NullString
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.EnergyKWh, &sess.Status, &outcome, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSessionNotFound
		}
		return nil, err
	}
	sess.Outcome = outcome.String
	return &sess, nil
}

// CreateSession inserts a new active session for the user.
func (s *Store) CreateSession(ctx context.Context, userID int64) (*models.ChargingSession, error) {
	const query = `
		INSERT INTO charging_sessions (user_id, energy_kwh, status, created_at, updated_at)
		VALUES ($1, 0, 'active', NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	sess := models.ChargingSession{
		UserID: userID,
		Status: models.SessionStatusActive,
	}
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&sess.ID, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	return &sess, nil
}

// CompareAndSettle runs the settlement transaction: the session update only
// matches while status is still active, the balance update only matches while
// the delta keeps the balance at or above zero. Either guard failing aborts
// the whole transaction.
func (s *Store) CompareAndSettle(ctx context.Context, p store.SettleParams) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const settleQuery = `
		UPDATE charging_sessions
		SET status = 'settled',
		    outcome = $3,
		    energy_kwh = $4,
		    updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status = 'active'
	`
	result, err := tx.ExecContext(ctx, settleQuery, p.SessionID, p.UserID, p.Outcome, p.EnergyKWh)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrSettleConflict
	}

	const balanceQuery = `
		UPDATE users
		SET balance = balance + $2
		WHERE id = $1 AND balance + $2 >= 0
	`
	result, err = tx.ExecContext(ctx, balanceQuery, p.UserID, p.BalanceDelta)
	if err != nil {
		return err
	}
	affected, err = result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrBalanceFloor
	}

	return tx.Commit()
}

// ListActiveSessions returns currently active sessions, newest first.
func (s *Store) ListActiveSessions(ctx context.Context, limit int) ([]models.ChargingSession, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, user_id, energy_kwh, status, outcome, created_at, updated_at
		FROM charging_sessions
		WHERE status = 'active'
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.ChargingSession
	for rows.Next() {
		var sess models.ChargingSession
		var outcome sql.NullString
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.EnergyKWh, &sess.Status, &outcome, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, err
		}
		sess.Outcome = outcome.String
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.Balance, &user.IsAdmin, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

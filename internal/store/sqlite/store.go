// Package sqlite implements the ledger store on a single SQLite file using
// the pure-Go modernc driver. Suitable for single-node and dev deployments;
// it owns its schema and migrates on open.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"chargecore/internal/models"
	"chargecore/internal/store"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed ledger store.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at path and runs migrations.
// Use ":memory:" for an ephemeral store.
func NewStore(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single writer avoids SQLITE_BUSY under concurrent settlements.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	s := &Store{db: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			balance REAL NOT NULL DEFAULT 0,
			is_admin INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS charging_sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id),
			energy_kwh REAL NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active',
			outcome TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON charging_sessions(status)`,
	}
	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}

// CreateUser seeds an account. Signup is external to this service; the sqlite
// backend still needs a way to populate its own file in dev and tests.
func (s *Store) CreateUser(ctx context.Context, username string, balance float64) (*models.User, error) {
	const query = `
		INSERT INTO users (username, balance, created_at)
		VALUES (?, ?, ?)
	`
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query, strings.TrimSpace(username), balance, now)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.User{
		ID:        id,
		Username:  strings.TrimSpace(username),
		Balance:   balance,
		CreatedAt: now,
	}, nil
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	const query = `
		SELECT id, username, balance, is_admin, created_at
		FROM users
		WHERE id = ?
	`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByTag fetches a user by the tag presented at the charge point.
func (s *Store) GetUserByTag(ctx context.Context, tag string) (*models.User, error) {
	const query = `
		SELECT id, username, balance, is_admin, created_at
		FROM users
		WHERE username = ?
		LIMIT 1
	`
	return scanUser(s.db.QueryRowContext(ctx, query, strings.TrimSpace(tag)))
}

// GetActiveSession returns the session only while its status is active.
func (s *Store) GetActiveSession(ctx context.Context, id int64) (*models.ChargingSession, error) {
	const query = `
		SELECT id, user_id, energy_kwh, status, outcome, created_at, updated_at
		FROM charging_sessions
		WHERE id = ? AND status = 'active'
	`
	row := s.db.QueryRowContext(ctx, query, id)
	var sess models.ChargingSession
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.EnergyKWh, &sess.Status, &sess.Outcome, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}

// CreateSession inserts a new active session for the user.
func (s *Store) CreateSession(ctx context.Context, userID int64) (*models.ChargingSession, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	const query = `
		INSERT INTO charging_sessions (user_id, energy_kwh, status, created_at, updated_at)
		VALUES (?, 0, 'active', ?, ?)
	`
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query, userID, now, now)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.ChargingSession{
		ID:        id,
		UserID:    userID,
		Status:    models.SessionStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CompareAndSettle mirrors the postgres settlement transaction with SQLite
// placeholders: status guard on the session, zero floor on the balance.
func (s *Store) CompareAndSettle(ctx context.Context, p store.SettleParams) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const settleQuery = `
		UPDATE charging_sessions
		SET status = 'settled',
		    outcome = ?,
		    energy_kwh = ?,
		    updated_at = ?
		WHERE id = ? AND user_id = ? AND status = 'active'
	`
	result, err := tx.ExecContext(ctx, settleQuery, p.Outcome, p.EnergyKWh, time.Now().UTC(), p.SessionID, p.UserID)
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
		SET balance = balance + ?
		WHERE id = ? AND balance + ? >= 0
	`
	result, err = tx.ExecContext(ctx, balanceQuery, p.BalanceDelta, p.UserID, p.BalanceDelta)
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
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.ChargingSession
	for rows.Next() {
		var sess models.ChargingSession
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.EnergyKWh, &sess.Status, &sess.Outcome, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Close releases the database handle.
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

// Package memory provides an in-process ledger store. Each user and session
// record carries its own lock so unrelated settlements proceed in parallel;
// a settlement locks one session then its owner, never more.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"chargecore/internal/models"
	"chargecore/internal/store"
)

type userRecord struct {
	mu   sync.Mutex
	user models.User
}

type sessionRecord struct {
	mu      sync.Mutex
	session models.ChargingSession
}

// Store keeps users and sessions in maps guarded by a registry lock; record
// mutation happens under the per-record locks.
type Store struct {
	mu            sync.RWMutex
	users         map[int64]*userRecord
	byTag         map[string]int64
	sessions      map[int64]*sessionRecord
	nextUserID    int64
	nextSessionID int64
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:    make(map[int64]*userRecord),
		byTag:    make(map[string]int64),
		sessions: make(map[int64]*sessionRecord),
	}
}

// CreateUser seeds an account. Not part of the ledger contract; signup lives
// outside this service, so this exists for tests and dev mode only.
func (s *Store) CreateUser(ctx context.Context, username string, balance float64) (*models.User, error) {
	_ = ctx
	username = strings.TrimSpace(username)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextUserID++
	user := models.User{
		ID:        s.nextUserID,
		Username:  username,
		Balance:   balance,
		CreatedAt: time.Now().UTC(),
	}
	s.users[user.ID] = &userRecord{user: user}
	s.byTag[username] = user.ID
	return cloneUser(user), nil
}

// GetUser returns the user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	_ = ctx
	rec, ok := s.userRecord(id)
	if !ok {
		return nil, store.ErrUserNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return cloneUser(rec.user), nil
}

// GetUserByTag resolves a charge-point tag (username) to the user record.
func (s *Store) GetUserByTag(ctx context.Context, tag string) (*models.User, error) {
	s.mu.RLock()
	id, ok := s.byTag[strings.TrimSpace(tag)]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return s.GetUser(ctx, id)
}

// GetActiveSession returns the session only while it is still active.
func (s *Store) GetActiveSession(ctx context.Context, id int64) (*models.ChargingSession, error) {
	_ = ctx
	rec, ok := s.sessionRecord(id)
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.session.Active() {
		return nil, store.ErrSessionNotFound
	}
	return cloneSession(rec.session), nil
}

// CreateSession opens an active session owned by userID.
func (s *Store) CreateSession(ctx context.Context, userID int64) (*models.ChargingSession, error) {
	_ = ctx
	if _, ok := s.userRecord(userID); !ok {
		return nil, store.ErrUserNotFound
	}

	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSessionID++
	session := models.ChargingSession{
		ID:        s.nextSessionID,
		UserID:    userID,
		Status:    models.SessionStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[session.ID] = &sessionRecord{session: session}
	return cloneSession(session), nil
}

// CompareAndSettle settles the session if it is still active. Lock order is
// session first, then owner, so concurrent settlements of different sessions
// of the same user serialize only on the balance.
func (s *Store) CompareAndSettle(ctx context.Context, p store.SettleParams) error {
	_ = ctx
	sess, ok := s.sessionRecord(p.SessionID)
	if !ok {
		return store.ErrSessionNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.session.Active() || sess.session.UserID != p.UserID {
		return store.ErrSettleConflict
	}

	owner, ok := s.userRecord(p.UserID)
	if !ok {
		return store.ErrUserNotFound
	}

	owner.mu.Lock()
	defer owner.mu.Unlock()

	if owner.user.Balance+p.BalanceDelta < 0 {
		return store.ErrBalanceFloor
	}

	owner.user.Balance += p.BalanceDelta
	sess.session.Status = models.SessionStatusSettled
	sess.session.Outcome = p.Outcome
	sess.session.EnergyKWh = p.EnergyKWh
	sess.session.UpdatedAt = time.Now().UTC()
	return nil
}

// ListActiveSessions returns up to limit sessions still in active status.
func (s *Store) ListActiveSessions(ctx context.Context, limit int) ([]models.ChargingSession, error) {
	_ = ctx
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	records := make([]*sessionRecord, 0, len(s.sessions))
	for _, rec := range s.sessions {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	var sessions []models.ChargingSession
	for _, rec := range records {
		rec.mu.Lock()
		if rec.session.Active() {
			sessions = append(sessions, *cloneSession(rec.session))
		}
		rec.mu.Unlock()
		if len(sessions) >= limit {
			break
		}
	}
	return sessions, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func (s *Store) userRecord(id int64) (*userRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[id]
	return rec, ok
}

func (s *Store) sessionRecord(id int64) (*sessionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[id]
	return rec, ok
}

func cloneUser(u models.User) *models.User {
	c := u
	return &c
}

func cloneSession(s models.ChargingSession) *models.ChargingSession {
	c := s
	return &c
}

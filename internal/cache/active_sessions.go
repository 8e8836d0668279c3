// Package cache keeps a non-authoritative Redis view of active sessions for
// quick operational reads. The ledger store remains the source of truth; a
// lost cache entry never affects billing.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActiveSession is the cached shape of a running session.
type ActiveSession struct {
	SessionID     int64  `json:"session_id"`
	UserID        int64  `json:"user_id"`
	ChargePointID string `json:"charge_point_id,omitempty"`
	ConnectorID   int    `json:"connector_id,omitempty"`
}

// ActiveSessions manages the cache. A nil *ActiveSessions is valid and all
// methods are no-ops, so the service runs without Redis.
type ActiveSessions struct {
	client *redis.Client
	ttl    time.Duration
}

// NewActiveSessions returns a redis-backed cache.
func NewActiveSessions(client *redis.Client, ttl time.Duration) *ActiveSessions {
	return &ActiveSessions{client: client, ttl: ttl}
}

func key(sessionID int64) string {
	return fmt.Sprintf("sessions:active:%d", sessionID)
}

// Save caches the session.
func (s *ActiveSessions) Save(ctx context.Context, session ActiveSession) error {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key(session.SessionID), data, s.ttl).Err()
}

// Get returns the cached session, or redis.Nil when absent.
func (s *ActiveSessions) Get(ctx context.Context, sessionID int64) (*ActiveSession, error) {
	if s == nil {
		return nil, redis.Nil
	}
	result, err := s.client.Get(ctx, key(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	var session ActiveSession
	if err := json.Unmarshal([]byte(result), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Delete drops the cached session.
func (s *ActiveSessions) Delete(ctx context.Context, sessionID int64) error {
	if s == nil {
		return nil
	}
	return s.client.Del(ctx, key(sessionID)).Err()
}

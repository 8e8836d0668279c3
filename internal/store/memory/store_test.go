package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chargecore/internal/models"
	"chargecore/internal/store"
)

func TestGetActiveSessionFiltersSettled(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "alice", 5)
	require.NoError(t, err)
	session, err := s.CreateSession(ctx, user.ID)
	require.NoError(t, err)

	fetched, err := s.GetActiveSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, fetched.Active())

	require.NoError(t, s.CompareAndSettle(ctx, store.SettleParams{
		SessionID:    session.ID,
		UserID:       user.ID,
		Outcome:      models.OutcomePaid,
		EnergyKWh:    1,
		BalanceDelta: -0.2,
	}))

	_, err = s.GetActiveSession(ctx, session.ID)
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestCompareAndSettleConflict(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "alice", 5)
	require.NoError(t, err)
	session, err := s.CreateSession(ctx, user.ID)
	require.NoError(t, err)

	params := store.SettleParams{
		SessionID:    session.ID,
		UserID:       user.ID,
		Outcome:      models.OutcomePaid,
		EnergyKWh:    1,
		BalanceDelta: -0.2,
	}
	require.NoError(t, s.CompareAndSettle(ctx, params))

	err = s.CompareAndSettle(ctx, params)
	assert.ErrorIs(t, err, store.ErrSettleConflict)

	refreshed, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.8, refreshed.Balance, 1e-9, "second settle must not apply a second delta")
}

func TestCompareAndSettleWrongOwnerConflicts(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	owner, err := s.CreateUser(ctx, "alice", 5)
	require.NoError(t, err)
	other, err := s.CreateUser(ctx, "bob", 5)
	require.NoError(t, err)
	session, err := s.CreateSession(ctx, owner.ID)
	require.NoError(t, err)

	err = s.CompareAndSettle(ctx, store.SettleParams{
		SessionID:    session.ID,
		UserID:       other.ID,
		Outcome:      models.OutcomePaid,
		EnergyKWh:    1,
		BalanceDelta: -0.2,
	})
	assert.ErrorIs(t, err, store.ErrSettleConflict)

	fetched, err := s.GetActiveSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, fetched.Active())
}

func TestCompareAndSettleBalanceFloor(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "alice", 1)
	require.NoError(t, err)
	session, err := s.CreateSession(ctx, user.ID)
	require.NoError(t, err)

	err = s.CompareAndSettle(ctx, store.SettleParams{
		SessionID:    session.ID,
		UserID:       user.ID,
		Outcome:      models.OutcomePaid,
		EnergyKWh:    10,
		BalanceDelta: -2,
	})
	assert.ErrorIs(t, err, store.ErrBalanceFloor)

	// The aborted settlement leaves both records untouched.
	refreshed, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, refreshed.Balance)

	fetched, err := s.GetActiveSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, fetched.Active())
}

func TestConcurrentSettleSingleWinner(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "alice", 100)
	require.NoError(t, err)
	session, err := s.CreateSession(ctx, user.ID)
	require.NoError(t, err)

	const racers = 8
	results := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.CompareAndSettle(ctx, store.SettleParams{
				SessionID:    session.ID,
				UserID:       user.ID,
				Outcome:      models.OutcomePaid,
				EnergyKWh:    1,
				BalanceDelta: -0.2,
			})
		}(i)
	}
	wg.Wait()

	var won int
	for _, err := range results {
		if err == nil {
			won++
		} else {
			assert.ErrorIs(t, err, store.ErrSettleConflict)
		}
	}
	assert.Equal(t, 1, won)

	refreshed, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.InDelta(t, 99.8, refreshed.Balance, 1e-9)
}

func TestListActiveSessions(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "alice", 5)
	require.NoError(t, err)

	first, err := s.CreateSession(ctx, user.ID)
	require.NoError(t, err)
	_, err = s.CreateSession(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, s.CompareAndSettle(ctx, store.SettleParams{
		SessionID:    first.ID,
		UserID:       user.ID,
		Outcome:      models.OutcomeExpired,
		EnergyKWh:    1,
		BalanceDelta: 0,
	}))

	sessions, err := s.ListActiveSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.NotEqual(t, first.ID, sessions[0].ID)
}

func TestCreateSessionUnknownUser(t *testing.T) {
	s := NewStore()
	_, err := s.CreateSession(context.Background(), 42)
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

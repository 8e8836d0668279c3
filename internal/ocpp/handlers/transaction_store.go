package handlers

import "sync"

// TransactionContext keeps runtime info for an open transaction: the meter
// reading at start and the user the idTag resolved to.
type TransactionContext struct {
	SessionID  int64
	UserID     int64
	MeterStart int64
}

// TransactionStore maps transaction ids (session ids on the wire) to their
// runtime context for the lifetime of the charge.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[int64]TransactionContext
}

// NewTransactionStore returns initialized store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data: make(map[int64]TransactionContext),
	}
}

// Set stores context for transaction.
func (s *TransactionStore) Set(txID int64, ctx TransactionContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[txID] = ctx
}

// Get returns context and bool.
func (s *TransactionStore) Get(txID int64) (TransactionContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctx, ok := s.data[txID]
	return ctx, ok
}

// Delete removes transaction context.
func (s *TransactionStore) Delete(txID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, txID)
}

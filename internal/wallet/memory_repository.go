package wallet

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu     sync.RWMutex
	byUser map[string]Wallet
}

// NewMemoryRepository constructs an in-memory repository for tests and
// database-less development mode. Reads return copies so callers never
// mutate stored state before Replace commits it.
func NewMemoryRepository() Repository {
	return &memoryRepository{byUser: make(map[string]Wallet)}
}

func (r *memoryRepository) Create(_ context.Context, w Wallet) (Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byUser[w.UserID]; exists {
		return Wallet{}, ErrExists
	}
	w.ID = uuid.NewString()
	r.byUser[w.UserID] = w.Clone()
	return w, nil
}

func (r *memoryRepository) ByUser(_ context.Context, userID string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.byUser[userID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return w.Clone(), nil
}

func (r *memoryRepository) Replace(_ context.Context, w Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[w.UserID]; !ok {
		return ErrNotFound
	}
	r.byUser[w.UserID] = w.Clone()
	return nil
}

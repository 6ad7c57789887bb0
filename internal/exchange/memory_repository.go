package exchange

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memoryOfferRepository struct {
	mu     sync.RWMutex
	offers map[string]Offer
}

// NewMemoryOfferRepository constructs an in-memory offer store for tests and
// database-less development mode.
func NewMemoryOfferRepository() OfferRepository {
	return &memoryOfferRepository{offers: make(map[string]Offer)}
}

func (r *memoryOfferRepository) Create(_ context.Context, offer Offer) (Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	offer.ID = uuid.NewString()
	r.offers[offer.ID] = offer
	return offer, nil
}

func (r *memoryOfferRepository) ByID(_ context.Context, id string) (Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	offer, ok := r.offers[id]
	if !ok {
		return Offer{}, ErrOfferNotFound
	}
	return offer, nil
}

func (r *memoryOfferRepository) All(_ context.Context) ([]Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	offers := make([]Offer, 0, len(r.offers))
	for _, offer := range r.offers {
		offers = append(offers, offer)
	}
	sort.Slice(offers, func(i, j int) bool {
		if !offers[i].CreatedAt.Equal(offers[j].CreatedAt) {
			return offers[i].CreatedAt.Before(offers[j].CreatedAt)
		}
		return offers[i].ID < offers[j].ID
	})
	return offers, nil
}

func (r *memoryOfferRepository) Matching(_ context.Context, wantCurrency, haveCurrency string, maxAsk int64) ([]Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Offer
	for _, offer := range r.offers {
		if offer.FromCurrency == wantCurrency && offer.ToCurrency == haveCurrency && offer.ToValue <= maxAsk {
			out = append(out, offer)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ToValue != out[j].ToValue {
			return out[i].ToValue > out[j].ToValue
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryOfferRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.offers, id)
	return nil
}

type memoryTransactionRepository struct {
	mu  sync.RWMutex
	txs []Transaction
}

// NewMemoryTransactionRepository constructs an in-memory transaction store.
func NewMemoryTransactionRepository() TransactionRepository {
	return &memoryTransactionRepository{}
}

func (r *memoryTransactionRepository) Create(_ context.Context, tx Transaction) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx.ID = uuid.NewString()
	r.txs = append(r.txs, tx)
	return tx, nil
}

func (r *memoryTransactionRepository) All(_ context.Context) ([]Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Transaction, len(r.txs))
	copy(out, r.txs)
	sortTransactions(out)
	return out, nil
}

func (r *memoryTransactionRepository) ByUser(_ context.Context, email string) ([]Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Transaction
	for _, tx := range r.txs {
		if tx.FromUser == email || tx.ToUser == email {
			out = append(out, tx)
		}
	}
	sortTransactions(out)
	return out, nil
}

func sortTransactions(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].CreatedAt.Before(txs[j].CreatedAt)
	})
}

package wallet

import (
	"math/rand"
	"time"
)

// DefaultCurrencies is the currency set every wallet starts with at registration.
var DefaultCurrencies = []string{"USD", "EUR", "GBP", "JPY", "CHF", "PLN"}

const (
	seedMin = 10_000  // 100.00 in minor units
	seedMax = 100_000 // 1000.00 in minor units
)

// Wallet holds one user's balances keyed by currency code. Amounts are
// integer minor units. A wallet may receive a currency it never held, but a
// balance can never go negative.
type Wallet struct {
	ID         string
	UserID     string
	Currencies map[string]int64
	CreatedAt  time.Time
}

// New returns an empty wallet for the given owner.
func New(userID string) Wallet {
	return Wallet{
		UserID:     userID,
		Currencies: make(map[string]int64),
		CreatedAt:  time.Now().UTC(),
	}
}

// NewDefault returns a wallet seeded with randomized balances in every
// default currency, as provisioned at registration.
func NewDefault(userID string) Wallet {
	w := New(userID)
	for _, code := range DefaultCurrencies {
		w.Currencies[code] = seedMin + rand.Int63n(seedMax-seedMin+1)
	}
	return w
}

// Balance returns the held amount for the currency, 0 when absent.
func (w *Wallet) Balance(code string) int64 {
	return w.Currencies[code]
}

// Credit increases the balance for the currency, creating the entry when the
// wallet has never held it.
func (w *Wallet) Credit(code string, amount int64) {
	if w.Currencies == nil {
		w.Currencies = make(map[string]int64)
	}
	w.Currencies[code] += amount
}

// Debit decreases the balance for the currency. It reports false and leaves
// the wallet unchanged when the currency is absent or the held balance is
// smaller than amount. The sufficiency check reads the balance as currently
// held, immediately before mutating.
func (w *Wallet) Debit(code string, amount int64) bool {
	held, ok := w.Currencies[code]
	if !ok || held < amount {
		return false
	}
	w.Currencies[code] = held - amount
	return true
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (w Wallet) Clone() Wallet {
	out := w
	out.Currencies = make(map[string]int64, len(w.Currencies))
	for code, amount := range w.Currencies {
		out.Currencies[code] = amount
	}
	return out
}

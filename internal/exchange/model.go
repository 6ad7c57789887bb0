package exchange

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrWalletNotFound indicates the referenced user has no wallet.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrOfferNotFound indicates the referenced offer does not exist or was already consumed.
	ErrOfferNotFound = errors.New("offer not found")
	// ErrNotOwner indicates a cancellation attempt by someone other than the offer's creator.
	ErrNotOwner = errors.New("not authorized to cancel this offer")
	// ErrSelfAccept indicates a user tried to accept their own offer.
	ErrSelfAccept = errors.New("cannot accept your own offer")
	// ErrSettlementConflict indicates a counter-party record vanished mid-settlement;
	// the whole operation is aborted with nothing persisted.
	ErrSettlementConflict = errors.New("settlement conflict")
)

// Offer is a standing intent to exchange FromValue of FromCurrency for
// ToValue of ToCurrency. While outstanding, FromValue of FromCurrency is
// escrowed out of the owner's wallet; the offer record is the receipt for
// that escrow. Immutable once created; the store assigns the identifier.
type Offer struct {
	ID           string    `json:"id"`
	FromUser     string    `json:"from_user"`
	FromValue    int64     `json:"from_value"`
	FromCurrency string    `json:"from_currency"`
	ToValue      int64     `json:"to_value"`
	ToCurrency   string    `json:"to_currency"`
	CreatedAt    time.Time `json:"created_at"`
}

// Transaction is an append-only record of one completed exchange: one per
// consumed offer in a multi-offer match, or one per direct acceptance.
type Transaction struct {
	ID           string    `json:"id"`
	FromUser     string    `json:"from_user"`
	ToUser       string    `json:"to_user"`
	FromValue    int64     `json:"from_value"`
	FromCurrency string    `json:"from_currency"`
	ToValue      int64     `json:"to_value"`
	ToCurrency   string    `json:"to_currency"`
	CreatedAt    time.Time `json:"created_at"`
}

// ValidationError reports every violated offer constraint at once, keyed by field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	return fmt.Sprintf("invalid offer: %s", strings.Join(keys, ", "))
}

// InsufficientFundsError indicates a wallet balance too low to cover a debit.
type InsufficientFundsError struct {
	Currency string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("not enough %s in wallet", e.Currency)
}

// ValidateOffer checks offer parameters and reports all violations together
// so a caller can surface every problem in one response.
func ValidateOffer(fromValue int64, fromCurrency string, toValue int64, toCurrency string) error {
	fields := make(map[string]string)

	if fromValue <= 0 {
		fields["from_value"] = "value must be greater than 0"
	}
	if toValue <= 0 {
		fields["to_value"] = "value must be greater than 0"
	}
	if fromCurrency == "" {
		fields["from_currency"] = "currency code is required"
	}
	if toCurrency == "" {
		fields["to_currency"] = "currency code is required"
	}
	if fromCurrency == toCurrency {
		fields["currency"] = "cannot exchange the same currency"
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

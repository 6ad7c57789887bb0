package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cambio-fx/cambio_fx/internal/identity"
	"github.com/cambio-fx/cambio_fx/internal/notification"
	"github.com/cambio-fx/cambio_fx/internal/wallet"
)

// maxLockAttempts bounds the optimistic lock-set widening loop in Submit so a
// submission never blocks indefinitely under a churning offer pool.
const maxLockAttempts = 10

// Service is the offer matching and settlement engine. It holds no state of
// its own beyond the per-user lock table; every decision is a function of the
// injected repositories plus the incoming request.
type Service struct {
	users        identity.Repository
	wallets      wallet.Repository
	offers       OfferRepository
	transactions TransactionRepository
	locks        *userLocks
	notifier     notification.Notifier
	logger       *slog.Logger
}

// NewService wires the engine to its record stores and collaborators.
func NewService(users identity.Repository, wallets wallet.Repository, offers OfferRepository, transactions TransactionRepository, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{
		users:        users,
		wallets:      wallets,
		offers:       offers,
		transactions: transactions,
		locks:        newUserLocks(),
		notifier:     notifier,
		logger:       logger,
	}
}

// SubmitInput captures the parameters of a new exchange offer.
type SubmitInput struct {
	FromUser     string
	FromValue    int64
	FromCurrency string
	ToValue      int64
	ToCurrency   string
}

// SubmitResult reports the outcome of a submission: either the offer settled
// against outstanding counter-offers, or it was posted with funds escrowed.
type SubmitResult struct {
	Settled      bool
	Offer        *Offer
	Transactions []Transaction
}

// Submit validates the offer, escrows the submitter's funds and either
// settles it against a greedy combination of outstanding counter-offers or
// posts it to the pool. Funds are debited before the candidate search so a
// concurrent submission from the same user can never double-spend them.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (SubmitResult, error) {
	if err := ValidateOffer(input.FromValue, input.FromCurrency, input.ToValue, input.ToCurrency); err != nil {
		return SubmitResult{}, err
	}

	user, err := s.users.FindByEmail(ctx, input.FromUser)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return SubmitResult{}, ErrUserNotFound
		}
		return SubmitResult{}, err
	}

	// Settlement may involve users discovered only after the candidate scan.
	// Locks are always taken in sorted order over the full involved set; when
	// the scan turns up owners outside the held set, release, widen and redo
	// the whole selection under the wider set.
	held := []string{user.ID}
	for attempt := 0; attempt < maxLockAttempts; attempt++ {
		release := s.locks.Acquire(held...)
		res, missing, err := s.submitLocked(ctx, user, input, held)
		release()
		if err != nil {
			return SubmitResult{}, err
		}
		if len(missing) == 0 {
			return res, nil
		}
		held = append(held, missing...)
	}

	s.logger.Error("lock set never converged", "from_user", user.Email)
	return SubmitResult{}, ErrSettlementConflict
}

type settlementLeg struct {
	offer Offer
	owner identity.User
}

// submitLocked runs escrow, candidate selection and settlement while the
// caller holds the locks for every user id in held. When settlement would
// involve users outside held, it returns their ids with nothing persisted.
func (s *Service) submitLocked(ctx context.Context, user identity.User, input SubmitInput, held []string) (SubmitResult, []string, error) {
	heldSet := make(map[string]struct{}, len(held))
	for _, id := range held {
		heldSet[id] = struct{}{}
	}

	w, err := s.wallets.ByUser(ctx, user.ID)
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			return SubmitResult{}, nil, ErrWalletNotFound
		}
		return SubmitResult{}, nil, err
	}

	// Escrow before searching for matches.
	if !w.Debit(input.FromCurrency, input.FromValue) {
		return SubmitResult{}, nil, &InsufficientFundsError{Currency: input.FromCurrency}
	}

	candidates, err := s.offers.Matching(ctx, input.ToCurrency, input.FromCurrency, input.FromValue)
	if err != nil {
		return SubmitResult{}, nil, err
	}

	// Greedy accumulation: consume larger asks first, stop at the first
	// candidate that carries the running sum to or past the target. The final
	// candidate is consumed whole even when that overshoots the target.
	var matched []Offer
	var sum int64
	for _, cand := range candidates {
		matched = append(matched, cand)
		sum += cand.ToValue
		if sum >= input.ToValue {
			break
		}
	}

	if sum < input.ToValue {
		return s.postOffer(ctx, user, input, w)
	}

	// Resolve every counter-party before the first write. A missing owner or
	// wallet aborts the whole submission with nothing persisted; partial
	// settlement is never observable.
	legs := make([]settlementLeg, 0, len(matched))
	var missing []string
	for _, cand := range matched {
		owner, err := s.users.FindByEmail(ctx, cand.FromUser)
		if err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				s.logger.Error("matched offer owner missing", "offer_id", cand.ID, "owner", cand.FromUser)
				return SubmitResult{}, nil, ErrSettlementConflict
			}
			return SubmitResult{}, nil, err
		}
		if _, ok := heldSet[owner.ID]; !ok {
			missing = append(missing, owner.ID)
		}
		legs = append(legs, settlementLeg{offer: cand, owner: owner})
	}
	if len(missing) > 0 {
		return SubmitResult{}, missing, nil
	}

	walletsByUser := map[string]*wallet.Wallet{user.ID: &w}
	for _, leg := range legs {
		if _, ok := walletsByUser[leg.owner.ID]; ok {
			continue
		}
		ow, err := s.wallets.ByUser(ctx, leg.owner.ID)
		if err != nil {
			if errors.Is(err, wallet.ErrNotFound) {
				s.logger.Error("matched offer owner has no wallet", "offer_id", leg.offer.ID, "owner", leg.owner.Email)
				return SubmitResult{}, nil, ErrSettlementConflict
			}
			return SubmitResult{}, nil, err
		}
		walletsByUser[leg.owner.ID] = &ow
	}

	// Settle each consumed offer in accumulation order. The owner receives
	// its ask; its own side was escrowed when the offer was posted, so no
	// owner debit happens here. The submitter collects each offer's escrow
	// and its wallet is persisted once, last.
	txs := make([]Transaction, 0, len(legs))
	for _, leg := range legs {
		ow := walletsByUser[leg.owner.ID]
		ow.Credit(leg.offer.ToCurrency, leg.offer.ToValue)
		walletsByUser[user.ID].Credit(leg.offer.FromCurrency, leg.offer.FromValue)

		if err := s.wallets.Replace(ctx, *ow); err != nil {
			return SubmitResult{}, nil, fmt.Errorf("persist counter-party wallet: %w", err)
		}
		tx, err := s.transactions.Create(ctx, Transaction{
			FromUser:     leg.owner.Email,
			ToUser:       user.Email,
			FromValue:    leg.offer.FromValue,
			FromCurrency: leg.offer.FromCurrency,
			ToValue:      leg.offer.ToValue,
			ToCurrency:   leg.offer.ToCurrency,
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			return SubmitResult{}, nil, fmt.Errorf("record transaction: %w", err)
		}
		if err := s.offers.Delete(ctx, leg.offer.ID); err != nil {
			return SubmitResult{}, nil, fmt.Errorf("consume offer: %w", err)
		}
		txs = append(txs, tx)

		if s.notifier != nil {
			_ = s.notifier.Send(ctx, notification.Message{
				Kind:        notification.KindOfferMatched,
				Destination: leg.owner.Email,
				Body:        fmt.Sprintf("Your offer of %d %s was matched", leg.offer.FromValue, leg.offer.FromCurrency),
			})
		}
	}

	if err := s.wallets.Replace(ctx, *walletsByUser[user.ID]); err != nil {
		return SubmitResult{}, nil, fmt.Errorf("persist submitter wallet: %w", err)
	}

	s.logger.Info("offer settled",
		"from_user", user.Email,
		"from_currency", input.FromCurrency,
		"to_currency", input.ToCurrency,
		"consumed_offers", len(legs),
	)

	return SubmitResult{Settled: true, Transactions: txs}, nil, nil
}

// postOffer persists the escrowed wallet and inserts the new offer.
func (s *Service) postOffer(ctx context.Context, user identity.User, input SubmitInput, w wallet.Wallet) (SubmitResult, []string, error) {
	if err := s.wallets.Replace(ctx, w); err != nil {
		return SubmitResult{}, nil, fmt.Errorf("persist escrow: %w", err)
	}

	offer, err := s.offers.Create(ctx, Offer{
		FromUser:     user.Email,
		FromValue:    input.FromValue,
		FromCurrency: input.FromCurrency,
		ToValue:      input.ToValue,
		ToCurrency:   input.ToCurrency,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return SubmitResult{}, nil, fmt.Errorf("post offer: %w", err)
	}

	s.logger.Info("offer posted",
		"offer_id", offer.ID,
		"from_user", user.Email,
		"from_currency", offer.FromCurrency,
		"to_currency", offer.ToCurrency,
	)

	return SubmitResult{Offer: &offer}, nil, nil
}

// Accept settles one specific outstanding offer against the accepting user's
// wallet without running the matching search. The owner's wallet is credited
// with its ask; its debit already happened at escrow time.
func (s *Service) Accept(ctx context.Context, offerID, email string) (Transaction, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return Transaction{}, ErrUserNotFound
		}
		return Transaction{}, err
	}

	offer, err := s.offers.ByID(ctx, offerID)
	if err != nil {
		return Transaction{}, err
	}
	if offer.FromUser == user.Email {
		return Transaction{}, ErrSelfAccept
	}

	owner, err := s.users.FindByEmail(ctx, offer.FromUser)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			s.logger.Error("offer owner missing", "offer_id", offer.ID, "owner", offer.FromUser)
			return Transaction{}, ErrSettlementConflict
		}
		return Transaction{}, err
	}

	release := s.locks.Acquire(user.ID, owner.ID)
	defer release()

	// Re-read under the locks: the offer may have been consumed or cancelled
	// while we resolved the parties.
	offer, err = s.offers.ByID(ctx, offerID)
	if err != nil {
		return Transaction{}, err
	}

	aw, err := s.wallets.ByUser(ctx, user.ID)
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			return Transaction{}, ErrWalletNotFound
		}
		return Transaction{}, err
	}
	ow, err := s.wallets.ByUser(ctx, owner.ID)
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			return Transaction{}, ErrWalletNotFound
		}
		return Transaction{}, err
	}

	if !aw.Debit(offer.ToCurrency, offer.ToValue) {
		return Transaction{}, &InsufficientFundsError{Currency: offer.ToCurrency}
	}
	aw.Credit(offer.FromCurrency, offer.FromValue)
	ow.Credit(offer.ToCurrency, offer.ToValue)

	if err := s.wallets.Replace(ctx, ow); err != nil {
		return Transaction{}, fmt.Errorf("persist owner wallet: %w", err)
	}
	if err := s.wallets.Replace(ctx, aw); err != nil {
		return Transaction{}, fmt.Errorf("persist accepting wallet: %w", err)
	}

	tx, err := s.transactions.Create(ctx, Transaction{
		FromUser:     owner.Email,
		ToUser:       user.Email,
		FromValue:    offer.FromValue,
		FromCurrency: offer.FromCurrency,
		ToValue:      offer.ToValue,
		ToCurrency:   offer.ToCurrency,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return Transaction{}, fmt.Errorf("record transaction: %w", err)
	}
	if err := s.offers.Delete(ctx, offer.ID); err != nil {
		return Transaction{}, fmt.Errorf("consume offer: %w", err)
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindOfferAccepted,
			Destination: owner.Email,
			Body:        fmt.Sprintf("Your offer of %d %s was accepted", offer.FromValue, offer.FromCurrency),
		})
	}

	s.logger.Info("offer accepted", "offer_id", offer.ID, "owner", owner.Email, "accepted_by", user.Email)
	return tx, nil
}

// Cancel removes one of the caller's own outstanding offers and reverses its
// escrow exactly. No transaction is recorded; a cancellation is a reversal,
// not an exchange.
func (s *Service) Cancel(ctx context.Context, offerID, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	offer, err := s.offers.ByID(ctx, offerID)
	if err != nil {
		return err
	}
	if offer.FromUser != user.Email {
		return ErrNotOwner
	}

	release := s.locks.Acquire(user.ID)
	defer release()

	offer, err = s.offers.ByID(ctx, offerID)
	if err != nil {
		return err
	}

	w, err := s.wallets.ByUser(ctx, user.ID)
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			return ErrWalletNotFound
		}
		return err
	}

	w.Credit(offer.FromCurrency, offer.FromValue)
	if err := s.wallets.Replace(ctx, w); err != nil {
		return fmt.Errorf("reverse escrow: %w", err)
	}
	if err := s.offers.Delete(ctx, offer.ID); err != nil {
		return fmt.Errorf("remove offer: %w", err)
	}

	s.logger.Info("offer cancelled", "offer_id", offer.ID, "owner", user.Email)
	return nil
}

// Offers returns a snapshot of every outstanding offer.
func (s *Service) Offers(ctx context.Context) ([]Offer, error) {
	return s.offers.All(ctx)
}

// Transactions returns settlement history sorted by timestamp ascending,
// optionally filtered to those involving the given user email.
func (s *Service) Transactions(ctx context.Context, email string) ([]Transaction, error) {
	if email == "" {
		return s.transactions.All(ctx)
	}
	return s.transactions.ByUser(ctx, email)
}

package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestBalanceAbsentCurrencyIsZero(t *testing.T) {
	w := New(uuid.NewString())
	if got := w.Balance("USD"); got != 0 {
		t.Fatalf("expected 0 for absent currency, got %d", got)
	}
}

func TestCreditCreatesAbsentCurrency(t *testing.T) {
	w := New(uuid.NewString())
	w.Credit("EUR", 2_500)
	if got := w.Balance("EUR"); got != 2_500 {
		t.Fatalf("expected 2500, got %d", got)
	}
	w.Credit("EUR", 500)
	if got := w.Balance("EUR"); got != 3_000 {
		t.Fatalf("expected 3000 after second credit, got %d", got)
	}
}

func TestDebitGuards(t *testing.T) {
	w := New(uuid.NewString())
	w.Credit("USD", 1_000)

	if w.Debit("EUR", 1) {
		t.Fatal("debit of absent currency must fail")
	}
	if w.Debit("USD", 1_001) {
		t.Fatal("debit beyond balance must fail")
	}
	if got := w.Balance("USD"); got != 1_000 {
		t.Fatalf("failed debit mutated wallet: %d", got)
	}

	if !w.Debit("USD", 1_000) {
		t.Fatal("debit of full balance must succeed")
	}
	if got := w.Balance("USD"); got != 0 {
		t.Fatalf("expected 0 after debit, got %d", got)
	}
}

func TestNewDefaultSeedsEveryCurrency(t *testing.T) {
	w := NewDefault(uuid.NewString())
	if len(w.Currencies) != len(DefaultCurrencies) {
		t.Fatalf("expected %d currencies, got %d", len(DefaultCurrencies), len(w.Currencies))
	}
	for _, code := range DefaultCurrencies {
		bal := w.Balance(code)
		if bal < seedMin || bal > seedMax {
			t.Fatalf("seed balance for %s out of range: %d", code, bal)
		}
	}
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	userID := uuid.NewString()

	created, err := repo.Create(ctx, NewDefault(userID))
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected store-assigned wallet id")
	}

	w, err := repo.ByUser(ctx, userID)
	if err != nil {
		t.Fatalf("by user: %v", err)
	}
	before := w.Balance("USD")
	w.Debit("USD", before)

	again, err := repo.ByUser(ctx, userID)
	if err != nil {
		t.Fatalf("by user: %v", err)
	}
	if again.Balance("USD") != before {
		t.Fatal("uncommitted mutation leaked into stored wallet")
	}

	if err := repo.Replace(ctx, w); err != nil {
		t.Fatalf("replace: %v", err)
	}
	committed, _ := repo.ByUser(ctx, userID)
	if committed.Balance("USD") != 0 {
		t.Fatalf("expected committed balance 0, got %d", committed.Balance("USD"))
	}
}

func TestMemoryRepositoryNotFound(t *testing.T) {
	repo := NewMemoryRepository()
	if _, err := repo.ByUser(context.Background(), uuid.NewString()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Replace(context.Background(), New(uuid.NewString())); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on replace, got %v", err)
	}
}

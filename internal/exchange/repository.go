package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OfferRepository persists outstanding offers. Create assigns the identifier.
// Matching returns offers whose from_currency equals wantCurrency, whose
// to_currency equals haveCurrency and whose to_value does not exceed maxAsk,
// ordered by to_value descending, then creation time, then id, so matching is
// deterministic for a fixed pool. Delete of an absent offer is a no-op.
type OfferRepository interface {
	Create(ctx context.Context, offer Offer) (Offer, error)
	ByID(ctx context.Context, id string) (Offer, error)
	All(ctx context.Context) ([]Offer, error)
	Matching(ctx context.Context, wantCurrency, haveCurrency string, maxAsk int64) ([]Offer, error)
	Delete(ctx context.Context, id string) error
}

// TransactionRepository persists settlement records. Listings are sorted by
// timestamp ascending.
type TransactionRepository interface {
	Create(ctx context.Context, tx Transaction) (Transaction, error)
	All(ctx context.Context) ([]Transaction, error)
	ByUser(ctx context.Context, email string) ([]Transaction, error)
}

// PostgresOfferRepository stores offers in PostgreSQL.
type PostgresOfferRepository struct {
	db *pgxpool.Pool
}

// NewPostgresOfferRepository builds an offer repository backed by PostgreSQL.
func NewPostgresOfferRepository(db *pgxpool.Pool) *PostgresOfferRepository {
	return &PostgresOfferRepository{db: db}
}

// Create inserts an offer, assigning its identifier.
func (r *PostgresOfferRepository) Create(ctx context.Context, offer Offer) (Offer, error) {
	offer.ID = uuid.NewString()
	_, err := r.db.Exec(ctx, `INSERT INTO offers (id, from_user, from_value, from_currency, to_value, to_currency, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.MustParse(offer.ID), offer.FromUser, offer.FromValue, offer.FromCurrency,
		offer.ToValue, offer.ToCurrency, offer.CreatedAt.UTC())
	if err != nil {
		return Offer{}, err
	}
	return offer, nil
}

const offerColumns = `id, from_user, from_value, from_currency, to_value, to_currency, created_at`

// ByID fetches an offer by identifier.
func (r *PostgresOfferRepository) ByID(ctx context.Context, id string) (Offer, error) {
	offerID, err := uuid.Parse(id)
	if err != nil {
		return Offer{}, ErrOfferNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, offerID)
	return scanOffer(row)
}

// All returns a snapshot of every outstanding offer.
func (r *PostgresOfferRepository) All(ctx context.Context) ([]Offer, error) {
	rows, err := r.db.Query(ctx, `SELECT `+offerColumns+` FROM offers ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOffers(rows)
}

// Matching returns candidate counter-offers in greedy consumption order.
func (r *PostgresOfferRepository) Matching(ctx context.Context, wantCurrency, haveCurrency string, maxAsk int64) ([]Offer, error) {
	rows, err := r.db.Query(ctx, `SELECT `+offerColumns+` FROM offers
        WHERE from_currency = $1 AND to_currency = $2 AND to_value <= $3
        ORDER BY to_value DESC, created_at ASC, id ASC`, wantCurrency, haveCurrency, maxAsk)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOffers(rows)
}

// Delete removes an offer. Deleting an already-deleted offer is not an error.
func (r *PostgresOfferRepository) Delete(ctx context.Context, id string) error {
	offerID, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	_, err = r.db.Exec(ctx, `DELETE FROM offers WHERE id = $1`, offerID)
	return err
}

// PostgresTransactionRepository stores settlement records in PostgreSQL.
type PostgresTransactionRepository struct {
	db *pgxpool.Pool
}

// NewPostgresTransactionRepository builds a transaction repository backed by PostgreSQL.
func NewPostgresTransactionRepository(db *pgxpool.Pool) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

// Create appends a settlement record, assigning its identifier.
func (r *PostgresTransactionRepository) Create(ctx context.Context, tx Transaction) (Transaction, error) {
	tx.ID = uuid.NewString()
	_, err := r.db.Exec(ctx, `INSERT INTO transactions (id, from_user, to_user, from_value, from_currency, to_value, to_currency, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.MustParse(tx.ID), tx.FromUser, tx.ToUser, tx.FromValue, tx.FromCurrency,
		tx.ToValue, tx.ToCurrency, tx.CreatedAt.UTC())
	if err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

const txColumns = `id, from_user, to_user, from_value, from_currency, to_value, to_currency, created_at`

// All returns every settlement record, oldest first.
func (r *PostgresTransactionRepository) All(ctx context.Context) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `SELECT `+txColumns+` FROM transactions ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ByUser returns settlement records involving the user, oldest first.
func (r *PostgresTransactionRepository) ByUser(ctx context.Context, email string) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `SELECT `+txColumns+` FROM transactions
        WHERE from_user = $1 OR to_user = $1 ORDER BY created_at ASC, id ASC`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func scanOffer(row pgx.Row) (Offer, error) {
	var (
		id        uuid.UUID
		createdAt time.Time
		offer     Offer
	)
	if err := row.Scan(&id, &offer.FromUser, &offer.FromValue, &offer.FromCurrency, &offer.ToValue, &offer.ToCurrency, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Offer{}, ErrOfferNotFound
		}
		return Offer{}, err
	}
	offer.ID = id.String()
	offer.CreatedAt = createdAt.UTC()
	return offer, nil
}

func collectOffers(rows pgx.Rows) ([]Offer, error) {
	var offers []Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}
	return offers, rows.Err()
}

func collectTransactions(rows pgx.Rows) ([]Transaction, error) {
	var txs []Transaction
	for rows.Next() {
		var (
			id        uuid.UUID
			createdAt time.Time
			tx        Transaction
		)
		if err := rows.Scan(&id, &tx.FromUser, &tx.ToUser, &tx.FromValue, &tx.FromCurrency, &tx.ToValue, &tx.ToCurrency, &createdAt); err != nil {
			return nil, err
		}
		tx.ID = id.String()
		tx.CreatedAt = createdAt.UTC()
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

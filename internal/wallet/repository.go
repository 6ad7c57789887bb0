package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no wallet exists for the requested owner.
	ErrNotFound = errors.New("wallet not found")
	// ErrExists indicates the owner already has a wallet.
	ErrExists = errors.New("wallet exists")
)

// Repository persists wallets. Replace swaps the whole currency record in a
// single store call so a committed mutation is never partially visible.
type Repository interface {
	Create(ctx context.Context, w Wallet) (Wallet, error)
	ByUser(ctx context.Context, userID string) (Wallet, error)
	Replace(ctx context.Context, w Wallet) error
}

// PostgresRepository stores wallets in PostgreSQL with the currency map as jsonb.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet record, assigning its identifier.
func (r *PostgresRepository) Create(ctx context.Context, w Wallet) (Wallet, error) {
	ownerID, err := uuid.Parse(w.UserID)
	if err != nil {
		return Wallet{}, err
	}
	w.ID = uuid.NewString()
	currencies, err := json.Marshal(w.Currencies)
	if err != nil {
		return Wallet{}, err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallets (id, user_id, currencies, created_at)
        VALUES ($1, $2, $3, $4)`, uuid.MustParse(w.ID), ownerID, currencies, w.CreatedAt.UTC())
	if err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// ByUser fetches the wallet owned by the given user.
func (r *PostgresRepository) ByUser(ctx context.Context, userID string) (Wallet, error) {
	ownerID, err := uuid.Parse(userID)
	if err != nil {
		return Wallet{}, err
	}
	row := r.db.QueryRow(ctx, `SELECT id, user_id, currencies, created_at
        FROM wallets WHERE user_id = $1`, ownerID)
	var (
		id         uuid.UUID
		owner      uuid.UUID
		currencies []byte
		createdAt  time.Time
	)
	if err := row.Scan(&id, &owner, &currencies, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	w := Wallet{ID: id.String(), UserID: owner.String(), CreatedAt: createdAt.UTC()}
	if err := json.Unmarshal(currencies, &w.Currencies); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// Replace overwrites the stored currency record for the wallet's owner.
func (r *PostgresRepository) Replace(ctx context.Context, w Wallet) error {
	ownerID, err := uuid.Parse(w.UserID)
	if err != nil {
		return err
	}
	currencies, err := json.Marshal(w.Currencies)
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, `UPDATE wallets SET currencies = $1 WHERE user_id = $2`, currencies, ownerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

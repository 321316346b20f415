package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresAccountStore keeps accounts in the accounts table so logins survive restarts.
type PostgresAccountStore struct {
	pool *pgxpool.Pool
}

// NewPostgresAccountStore creates a PostgreSQL-backed account store.
func NewPostgresAccountStore(pool *pgxpool.Pool) (*PostgresAccountStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresAccountStore{pool: pool}, nil
}

func (s *PostgresAccountStore) ByEmail(ctx context.Context, email string) (Account, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var a Account
	err := s.pool.QueryRow(ctx,
		`SELECT uid, email, name, password_hash, federated_subject
		 FROM accounts
		 WHERE email = $1`,
		normalizeEmail(email),
	).Scan(&a.UID, &a.Email, &a.Name, &a.PasswordHash, &a.FederatedSubject)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, fmt.Errorf("fetch account: %w", err)
	}
	return a, true, nil
}

func (s *PostgresAccountStore) Insert(ctx context.Context, a Account) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (email, uid, name, password_hash, federated_subject)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (email) DO NOTHING`,
		normalizeEmail(a.Email), a.UID, a.Name, a.PasswordHash, a.FederatedSubject,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errAccountExists
	}
	return nil
}

func (s *PostgresAccountStore) Update(ctx context.Context, a Account) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`UPDATE accounts
		 SET name = $2, password_hash = $3, federated_subject = $4
		 WHERE email = $1`,
		normalizeEmail(a.Email), a.Name, a.PasswordHash, a.FederatedSubject,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

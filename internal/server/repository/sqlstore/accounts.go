package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gamevault/internal/server/models"
	"gamevault/internal/server/repository"
)

// CreateAccount inserts acc with the given password verifier. A taken
// email yields repository.ErrDuplicate.
func (s *Store) CreateAccount(ctx context.Context, acc models.Account, passwordHash string) (models.Account, error) {
	id, err := s.newID()
	if err != nil {
		return models.Account{}, err
	}
	acc.ID = id
	acc.CreatedAt = s.timestamp()

	b := &binder{dialect: s.dialect}
	query := `INSERT INTO accounts (id, email, password_hash, name, created_at) VALUES (` +
		b.bind(acc.ID) + `, ` + b.bind(acc.Email) + `, ` + b.bind(passwordHash) + `, ` +
		b.bind(acc.Name) + `, ` + b.bind(acc.CreatedAt) + `)`
	if _, err := s.db.ExecContext(ctx, query, b.args...); err != nil {
		if isUniqueViolation(err) {
			return models.Account{}, repository.ErrDuplicate
		}
		return models.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return acc, nil
}

// GetAccountByEmail returns the account and its password verifier.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (models.Account, string, error) {
	b := &binder{dialect: s.dialect}
	query := `SELECT id, email, password_hash, name, created_at FROM accounts WHERE email = ` + b.bind(email)

	var acc models.Account
	var hash string
	err := s.db.QueryRowContext(ctx, query, b.args...).Scan(&acc.ID, &acc.Email, &hash, &acc.Name, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, "", repository.ErrNotFound
		}
		return models.Account{}, "", fmt.Errorf("select account: %w", err)
	}
	return acc, hash, nil
}

// Package sqlite stores accounts and newsletter subscribers in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jcmexdev/gym-membership/internal/account-service/domain"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z"

// Repository implements app.Repository. Tables come from the database
// migrations.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

type userRow struct {
	ID           int64  `db:"id"`
	Name         string `db:"name"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	CreatedAt    string `db:"created_at"`
}

func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const q = `
		INSERT INTO users (name, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO NOTHING`

	res, err := r.db.ExecContext(ctx, q,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: create user: %w", err)
	}
	if n == 0 {
		return domain.ErrUserExists
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: create user id: %w", err)
	}
	user.ID = id
	return nil
}

func (r *Repository) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	const q = `
		SELECT id, name, email, password_hash, created_at
		FROM   users
		WHERE  email = ?`

	var row userRow
	if err := r.db.GetContext(ctx, &row, q, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("sqlite: find user: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return domain.User{}, fmt.Errorf("sqlite: parse time %q: %w", row.CreatedAt, err)
	}
	return domain.User{
		ID:           row.ID,
		Name:         row.Name,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		CreatedAt:    createdAt,
	}, nil
}

func (r *Repository) AddSubscriber(ctx context.Context, sub domain.Subscriber) (bool, error) {
	const q = `
		INSERT INTO subscriptions (email, created_at)
		VALUES (?, ?)
		ON CONFLICT(email) DO NOTHING`

	res, err := r.db.ExecContext(ctx, q, sub.Email, sub.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return false, fmt.Errorf("sqlite: add subscriber: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: add subscriber: %w", err)
	}
	return n == 1, nil
}

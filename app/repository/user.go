package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-autonomax/app/entity"
)

type UserRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewUserRepository constructs a user repository for the given dialect.
func NewUserRepository(db *sql.DB, dialect Dialect) *UserRepository {
	return &UserRepository{db: db, dialect: dialect}
}

// Create inserts a user; a taken email yields ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, email string, passwordHash string) error {
	const query = `
		INSERT INTO users (email, password_hash)
		VALUES (?, ?)
	`
	if _, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), email, passwordHash); err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// FindByEmail loads a user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	const query = `
		SELECT id, email, password_hash
		FROM users
		WHERE email = ?
	`
	var u entity.User
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), email).Scan(&u.ID, &u.Email, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/login-api/internal/domain"
)

// UserRepository defines persistence access for accounts.
// Lookups that find nothing return pgx.ErrNoRows.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByLoginID(ctx context.Context, loginID string) (*domain.User, error)
	ExistsByLoginID(ctx context.Context, loginID string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// ErrNotConfigured is returned when no database pool is available.
var ErrNotConfigured = errors.New("repository: database not configured")

const uniqueViolation = "23505"

// UniqueViolation reports the constraint a duplicate-key write collided with.
func UniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if r.pool == nil {
		return ErrNotConfigured
	}
	const query = `
        INSERT INTO users (name, login_id, password_hash, email, age, authorities)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		user.Name,
		user.LoginID,
		user.PasswordHash,
		user.Email,
		user.Age,
		user.Authorities,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) GetByLoginID(ctx context.Context, loginID string) (*domain.User, error) {
	if r.pool == nil {
		return nil, ErrNotConfigured
	}
	const query = `
        SELECT id, name, login_id, password_hash, email, age, authorities, created_at, updated_at
        FROM users WHERE login_id=$1`

	var user domain.User
	if err := r.pool.QueryRow(ctx, query, loginID).Scan(
		&user.ID,
		&user.Name,
		&user.LoginID,
		&user.PasswordHash,
		&user.Email,
		&user.Age,
		&user.Authorities,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ExistsByLoginID(ctx context.Context, loginID string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE login_id=$1)`, loginID)
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email=$1)`, email)
}

func (r *userRepository) exists(ctx context.Context, query, arg string) (bool, error) {
	if r.pool == nil {
		return false, ErrNotConfigured
	}
	var found bool
	if err := r.pool.QueryRow(ctx, query, arg).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

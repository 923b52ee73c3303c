package repository

import (
	"context"
	"errors"
	"fmt"

	"stocktrader/database"
	"stocktrader/models"
	"stocktrader/service"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const userColumns = `
	id,
	COALESCE(first_name, ''),
	COALESCE(last_name, ''),
	user_name,
	COALESCE(password, ''),
	cash_balance,
	created_at,
	updated_at`

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByIDForUpdate retrieves a user by ID and locks the row until the transaction ends
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *UserRepository) getOne(ctx context.Context, query string, id int64) (*models.User, error) {
	user, err := scanUser(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return user, nil
}

// AdjustCash adds delta to a user's cash balance atomically
func (r *UserRepository) AdjustCash(ctx context.Context, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE users
		SET cash_balance = cash_balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING cash_balance
	`

	var balance decimal.Decimal
	err := r.q.QueryRow(ctx, query, delta, id).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, service.NewUserNotFoundError(id)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to adjust cash for user %d: %w", id, err)
	}

	return balance, nil
}

// Create creates a new user and fills in the assigned ID and timestamps
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (first_name, last_name, user_name, password, cash_balance)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		user.FirstName,
		user.LastName,
		user.UserName,
		user.PasswordHash,
		user.CashBalance,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.UserName, err)
	}

	return nil
}

// Count returns the number of users
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.UserName,
		&user.PasswordHash,
		&user.CashBalance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

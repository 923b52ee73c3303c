package repository

import (
	"context"
	"errors"
	"fmt"

	"stocktrader/database"
	"stocktrader/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const holdingColumns = `id, user_id, symbol, display_name, quantity, created_at, updated_at`

// HoldingRepository implements the HoldingRepository interface
type HoldingRepository struct {
	q queryable
}

// NewHoldingRepository creates a new holding repository
func NewHoldingRepository(db *database.DB) *HoldingRepository {
	return &HoldingRepository{q: db.Pool}
}

// newHoldingRepositoryWithTx creates a new holding repository with a transaction
func newHoldingRepositoryWithTx(tx queryable) *HoldingRepository {
	return &HoldingRepository{q: tx}
}

// Get retrieves the holding of a user for one symbol
func (r *HoldingRepository) Get(ctx context.Context, userID int64, symbol string) (*models.Holding, error) {
	query := `SELECT ` + holdingColumns + ` FROM holdings WHERE user_id = $1 AND symbol = $2`

	holding, err := scanHolding(r.q.QueryRow(ctx, query, userID, symbol))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s holding for user %d: %w", symbol, userID, err)
	}

	return holding, nil
}

// UpsertDelta inserts the holding or adds delta to its quantity
func (r *HoldingRepository) UpsertDelta(ctx context.Context, userID int64, symbol string, delta decimal.Decimal) (*models.Holding, error) {
	query := `
		INSERT INTO holdings (symbol, display_name, quantity, user_id)
		VALUES ($1, $1, $2, $3)
		ON CONFLICT (user_id, symbol)
		DO UPDATE SET quantity = holdings.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING ` + holdingColumns

	holding, err := scanHolding(r.q.QueryRow(ctx, query, symbol, delta, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to update %s holding for user %d: %w", symbol, userID, err)
	}

	return holding, nil
}

// ListByUser returns all holdings of a user ordered by insertion
func (r *HoldingRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Holding, error) {
	query := `SELECT ` + holdingColumns + ` FROM holdings WHERE user_id = $1 ORDER BY id`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings for user %d: %w", userID, err)
	}
	defer rows.Close()

	holdings := make([]*models.Holding, 0)
	for rows.Next() {
		holding, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, holding)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate holdings: %w", err)
	}

	return holdings, nil
}

func scanHolding(row pgx.Row) (*models.Holding, error) {
	var holding models.Holding
	err := row.Scan(
		&holding.ID,
		&holding.UserID,
		&holding.Symbol,
		&holding.DisplayName,
		&holding.Quantity,
		&holding.CreatedAt,
		&holding.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &holding, nil
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is a user's share balance for one symbol.
// Rows are never deleted; a zero quantity is a valid state.
type Holding struct {
	ID          int64           `db:"id"`
	UserID      int64           `db:"user_id"`
	Symbol      string          `db:"symbol"`
	DisplayName string          `db:"display_name"`
	Quantity    decimal.Decimal `db:"quantity"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

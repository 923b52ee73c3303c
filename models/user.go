package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents an account holding cash in the ledger
type User struct {
	ID           int64           `db:"id"`
	FirstName    string          `db:"first_name"`
	LastName     string          `db:"last_name"`
	UserName     string          `db:"user_name"`
	PasswordHash string          `db:"password"`
	CashBalance  decimal.Decimal `db:"cash_balance"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// DisplayName returns "first last", as shown by BALANCE
func (u *User) DisplayName() string {
	return u.FirstName + " " + u.LastName
}

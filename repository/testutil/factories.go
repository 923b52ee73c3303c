package testutil

import (
	"time"

	"stocktrader/models"

	"github.com/shopspring/decimal"
)

// CreateTestUser creates a test user with a cash balance of 100.00
func CreateTestUser(userName string) *models.User {
	now := time.Now()
	return &models.User{
		FirstName:   "Test",
		LastName:    userName,
		UserName:    userName,
		CashBalance: decimal.NewFromInt(100),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CreateTestUserWithBalance creates a test user with a specific balance
func CreateTestUserWithBalance(userName string, balance string) *models.User {
	user := CreateTestUser(userName)
	user.CashBalance = decimal.RequireFromString(balance)
	return user
}

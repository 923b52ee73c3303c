package service

import (
	"context"

	"stocktrader/events"
	"stocktrader/models"

	"github.com/shopspring/decimal"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user by ID, returning nil when no such user exists
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetByIDForUpdate retrieves a user by ID and holds that user's write lock until the unit of work ends
	GetByIDForUpdate(ctx context.Context, id int64) (*models.User, error)

	// AdjustCash adds delta (possibly negative) to the user's cash and returns the new balance
	AdjustCash(ctx context.Context, id int64, delta decimal.Decimal) (decimal.Decimal, error)

	// Create inserts a user and assigns its ID
	Create(ctx context.Context, user *models.User) error

	// Count returns the number of users
	Count(ctx context.Context) (int64, error)
}

// HoldingRepository defines the interface for holding data access
type HoldingRepository interface {
	// Get retrieves the holding for (userID, symbol), returning nil when there is no row yet
	Get(ctx context.Context, userID int64, symbol string) (*models.Holding, error)

	// UpsertDelta creates the holding with quantity delta, or adds delta to the existing quantity
	UpsertDelta(ctx context.Context, userID int64, symbol string, delta decimal.Decimal) (*models.Holding, error)

	// ListByUser returns all holdings of a user in insertion order
	ListByUser(ctx context.Context, userID int64) ([]*models.Holding, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	UserRepository() UserRepository
	HoldingRepository() HoldingRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// TradingService defines the interface for BUY and SELL
type TradingService interface {
	// Buy debits amount*price from the user's cash and credits amount shares of symbol
	Buy(ctx context.Context, req models.TradeRequest) (*models.TradeResult, error)

	// Sell debits amount shares of symbol and credits amount*price to the user's cash
	Sell(ctx context.Context, req models.TradeRequest) (*models.TradeResult, error)
}

// QueryService defines the interface for read-only projections
type QueryService interface {
	// List returns all holdings of a user
	List(ctx context.Context, userID int64) ([]*models.Holding, error)

	// Balance returns the user's name and cash balance
	Balance(ctx context.Context, userID int64) (*models.BalanceResult, error)
}

// UserService defines the interface for user provisioning
type UserService interface {
	// EnsureDefaultUser seeds the default user when no users exist yet.
	// Returns the created user, or nil when users already existed.
	EnsureDefaultUser(ctx context.Context, seed DefaultUser) (*models.User, error)
}

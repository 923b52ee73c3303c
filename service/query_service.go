package service

import (
	"context"

	"stocktrader/models"
)

// queryService implements the QueryService interface
type queryService struct {
	uowFactory UnitOfWorkFactory
	strictList bool
}

// NewQueryService creates a new query service. With strictList, List fails
// with UserNotFound for unknown users the same way Balance does.
func NewQueryService(uowFactory UnitOfWorkFactory, strictList bool) QueryService {
	return &queryService{
		uowFactory: uowFactory,
		strictList: strictList,
	}
}

// List returns all holdings of a user in insertion order
func (s *queryService) List(ctx context.Context, userID int64) ([]*models.Holding, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, NewStoreFailure(err)
	}
	// Read-only, nothing to commit
	defer uow.Rollback()

	if s.strictList {
		user, err := uow.UserRepository().GetByID(ctx, userID)
		if err != nil {
			return nil, asLedgerError(err)
		}
		if user == nil {
			return nil, NewUserNotFoundError(userID)
		}
	}

	holdings, err := uow.HoldingRepository().ListByUser(ctx, userID)
	if err != nil {
		return nil, asLedgerError(err)
	}

	return holdings, nil
}

// Balance returns the user's name and cash balance
func (s *queryService) Balance(ctx context.Context, userID int64) (*models.BalanceResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, NewStoreFailure(err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, asLedgerError(err)
	}
	if user == nil {
		return nil, NewUserNotFoundError(userID)
	}

	return &models.BalanceResult{
		UserID:      user.ID,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		CashBalance: user.CashBalance,
	}, nil
}

package service

import (
	"context"
	"fmt"

	"stocktrader/events"
	"stocktrader/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// DefaultUser describes the account created on first start
type DefaultUser struct {
	FirstName       string
	LastName        string
	UserName        string
	Password        string
	StartingBalance decimal.Decimal
}

// userService implements the UserService interface
type userService struct {
	uowFactory UnitOfWorkFactory
}

// NewUserService creates a new user service
func NewUserService(uowFactory UnitOfWorkFactory) UserService {
	return &userService{uowFactory: uowFactory}
}

// EnsureDefaultUser creates seed when the user table is empty
func (s *userService) EnsureDefaultUser(ctx context.Context, seed DefaultUser) (*models.User, error) {
	if seed.UserName == "" {
		return nil, fmt.Errorf("default user name is required")
	}
	if seed.StartingBalance.IsNegative() {
		return nil, fmt.Errorf("starting balance cannot be negative: %s", seed.StartingBalance)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	count, err := uow.UserRepository().Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing users: %w", err)
	}
	if count > 0 {
		log.WithField("users", count).Debug("Users already exist, skipping default user")
		return nil, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash default user password: %w", err)
	}

	user := &models.User{
		FirstName:    seed.FirstName,
		LastName:     seed.LastName,
		UserName:     seed.UserName,
		PasswordHash: string(hash),
		CashBalance:  seed.StartingBalance,
	}
	if err := uow.UserRepository().Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create default user: %w", err)
	}

	uow.EventBus().Publish(events.UserCreatedEvent{
		UserID:         user.ID,
		UserName:       user.UserName,
		InitialBalance: user.CashBalance,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit default user: %w", err)
	}

	return user, nil
}

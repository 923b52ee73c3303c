package service

import (
	"context"

	"stocktrader/events"
	"stocktrader/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// tradingService implements the TradingService interface
type tradingService struct {
	uowFactory UnitOfWorkFactory
}

// NewTradingService creates a new trading service
func NewTradingService(uowFactory UnitOfWorkFactory) TradingService {
	return &tradingService{uowFactory: uowFactory}
}

// Buy debits amount*price from the user's cash and credits amount shares of symbol
func (s *tradingService) Buy(ctx context.Context, req models.TradeRequest) (*models.TradeResult, error) {
	if err := validateTradeRequest(req); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, NewStoreFailure(err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByIDForUpdate(ctx, req.UserID)
	if err != nil {
		return nil, asLedgerError(err)
	}
	if user == nil {
		return nil, NewUserNotFoundError(req.UserID)
	}

	total := req.Total()
	if user.CashBalance.LessThan(total) {
		return nil, NewInsufficientFundsError(user.CashBalance, total)
	}

	newBalance, err := uow.UserRepository().AdjustCash(ctx, req.UserID, total.Neg())
	if err != nil {
		return nil, asLedgerError(err)
	}

	holding, err := uow.HoldingRepository().UpsertDelta(ctx, req.UserID, req.Symbol, req.Amount)
	if err != nil {
		return nil, asLedgerError(err)
	}

	result := newTradeResult(models.TradeSideBuy, req, holding, newBalance)
	uow.EventBus().Publish(tradeExecutedEvent(result))

	if err := uow.Commit(); err != nil {
		return nil, NewStoreFailure(err)
	}

	log.WithFields(log.Fields{
		"userID":     req.UserID,
		"symbol":     req.Symbol,
		"amount":     req.Amount.String(),
		"price":      req.Price.String(),
		"newBalance": newBalance.StringFixed(2),
	}).Debug("Buy committed")

	return result, nil
}

// Sell debits amount shares of symbol and credits amount*price to the user's cash.
// A user that does not exist owns nothing, so it fails like a missing holding.
func (s *tradingService) Sell(ctx context.Context, req models.TradeRequest) (*models.TradeResult, error) {
	if err := validateTradeRequest(req); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, NewStoreFailure(err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByIDForUpdate(ctx, req.UserID)
	if err != nil {
		return nil, asLedgerError(err)
	}
	if user == nil {
		return nil, NewNoHoldingError(req.Symbol, req.UserID)
	}

	current, err := uow.HoldingRepository().Get(ctx, req.UserID, req.Symbol)
	if err != nil {
		return nil, asLedgerError(err)
	}
	if current == nil {
		return nil, NewNoHoldingError(req.Symbol, req.UserID)
	}
	if current.Quantity.LessThan(req.Amount) {
		return nil, NewInsufficientHoldingsError(req.Symbol, current.Quantity, req.Amount)
	}

	holding, err := uow.HoldingRepository().UpsertDelta(ctx, req.UserID, req.Symbol, req.Amount.Neg())
	if err != nil {
		return nil, asLedgerError(err)
	}

	newBalance, err := uow.UserRepository().AdjustCash(ctx, req.UserID, req.Total())
	if err != nil {
		return nil, asLedgerError(err)
	}

	result := newTradeResult(models.TradeSideSell, req, holding, newBalance)
	uow.EventBus().Publish(tradeExecutedEvent(result))

	if err := uow.Commit(); err != nil {
		return nil, NewStoreFailure(err)
	}

	log.WithFields(log.Fields{
		"userID":     req.UserID,
		"symbol":     req.Symbol,
		"amount":     req.Amount.String(),
		"price":      req.Price.String(),
		"newBalance": newBalance.StringFixed(2),
	}).Debug("Sell committed")

	return result, nil
}

func validateTradeRequest(req models.TradeRequest) error {
	if req.Symbol == "" {
		return NewInvalidArgumentError("Stock symbol is required")
	}
	if !req.Amount.IsPositive() {
		return NewInvalidArgumentError("Amount must be positive")
	}
	if !req.Price.IsPositive() {
		return NewInvalidArgumentError("Price must be positive")
	}
	return nil
}

func newTradeResult(side models.TradeSide, req models.TradeRequest, holding *models.Holding, newBalance decimal.Decimal) *models.TradeResult {
	return &models.TradeResult{
		Side:        side,
		UserID:      req.UserID,
		Symbol:      req.Symbol,
		Amount:      req.Amount,
		Price:       req.Price,
		Total:       req.Total(),
		NewQuantity: holding.Quantity,
		NewBalance:  newBalance,
	}
}

func tradeExecutedEvent(result *models.TradeResult) events.TradeExecutedEvent {
	return events.TradeExecutedEvent{
		UserID:      result.UserID,
		Side:        result.Side,
		Symbol:      result.Symbol,
		Amount:      result.Amount,
		Price:       result.Price,
		Total:       result.Total,
		NewQuantity: result.NewQuantity,
		NewBalance:  result.NewBalance,
	}
}

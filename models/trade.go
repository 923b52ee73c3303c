package models

import (
	"github.com/shopspring/decimal"
)

// TradeSide is the direction of a trade
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// TradeRequest carries the arguments of a BUY or SELL
type TradeRequest struct {
	UserID int64
	Symbol string
	Amount decimal.Decimal
	Price  decimal.Decimal
}

// Total returns amount * price
func (r TradeRequest) Total() decimal.Decimal {
	return r.Amount.Mul(r.Price)
}

// TradeResult contains the result of a completed trade
type TradeResult struct {
	Side        TradeSide
	UserID      int64
	Symbol      string
	Amount      decimal.Decimal
	Price       decimal.Decimal
	Total       decimal.Decimal
	NewQuantity decimal.Decimal // holding quantity after the trade
	NewBalance  decimal.Decimal // cash balance after the trade
}

// BalanceResult is the projection returned by BALANCE
type BalanceResult struct {
	UserID      int64
	FirstName   string
	LastName    string
	CashBalance decimal.Decimal
}

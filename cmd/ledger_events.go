package cmd

import (
	"context"

	"stocktrader/events"

	log "github.com/sirupsen/logrus"
)

// subscribeLedgerEvents logs committed trades and user creation
func subscribeLedgerEvents(bus *events.Bus) {
	bus.Subscribe(events.EventTypeTradeExecuted, func(ctx context.Context, event events.Event) {
		trade, ok := event.(events.TradeExecutedEvent)
		if !ok {
			return
		}
		log.WithFields(log.Fields{
			"userID":      trade.UserID,
			"side":        trade.Side,
			"symbol":      trade.Symbol,
			"amount":      trade.Amount.String(),
			"price":       trade.Price.String(),
			"total":       trade.Total.StringFixed(2),
			"newQuantity": trade.NewQuantity.StringFixed(2),
			"newBalance":  trade.NewBalance.StringFixed(2),
		}).Info("Trade executed")
	})

	bus.Subscribe(events.EventTypeUserCreated, func(ctx context.Context, event events.Event) {
		created, ok := event.(events.UserCreatedEvent)
		if !ok {
			return
		}
		log.WithFields(log.Fields{
			"userID":         created.UserID,
			"userName":       created.UserName,
			"initialBalance": created.InitialBalance.StringFixed(2),
		}).Info("User created")
	})
}

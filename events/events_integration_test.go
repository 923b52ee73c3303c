package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"stocktrader/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// TestEventDeliveryIntegration tests the complete event flow from TransactionalBus to main Bus
func TestEventDeliveryIntegration(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	eventReceived := make(chan TradeExecutedEvent, 1)
	var wg sync.WaitGroup
	wg.Add(1)

	mainBus.Subscribe(EventTypeTradeExecuted, func(ctx context.Context, event Event) {
		defer wg.Done()
		if tradeEvent, ok := event.(TradeExecutedEvent); ok {
			select {
			case eventReceived <- tradeEvent:
			case <-time.After(1 * time.Second):
				t.Error("Timeout sending event to channel")
			}
		} else {
			t.Errorf("Expected TradeExecutedEvent, got %T", event)
		}
	})

	testEvent := TradeExecutedEvent{
		UserID:      1,
		Side:        models.TradeSideBuy,
		Symbol:      "MSFT",
		Amount:      decimal.RequireFromString("3.4"),
		Price:       decimal.RequireFromString("1.35"),
		Total:       decimal.RequireFromString("4.59"),
		NewQuantity: decimal.RequireFromString("3.4"),
		NewBalance:  decimal.RequireFromString("95.41"),
	}

	transactionalBus.Publish(testEvent)
	assert.Equal(t, 1, transactionalBus.Pending())

	transactionalBus.Flush(context.Background())
	assert.Equal(t, 0, transactionalBus.Pending())

	wg.Wait()

	select {
	case received := <-eventReceived:
		assert.Equal(t, testEvent.UserID, received.UserID)
		assert.Equal(t, testEvent.Symbol, received.Symbol)
		assert.True(t, testEvent.NewBalance.Equal(received.NewBalance))
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for event to be received")
	}
}

func TestTransactionalBusDiscard(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	called := false
	mainBus.Subscribe(EventTypeUserCreated, func(ctx context.Context, event Event) {
		called = true
	})

	transactionalBus.Publish(UserCreatedEvent{UserID: 1, UserName: "Rob_bob", InitialBalance: decimal.NewFromInt(100)})
	transactionalBus.Discard()
	transactionalBus.Flush(context.Background())
	mainBus.Wait()

	assert.False(t, called, "discarded events must not reach subscribers")
}

func TestBusRecoversFromHandlerPanic(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	delivered := 0
	bus.Subscribe(EventTypeUserCreated, func(ctx context.Context, event Event) {
		panic("boom")
	})
	bus.Subscribe(EventTypeUserCreated, func(ctx context.Context, event Event) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	bus.Emit(context.Background(), UserCreatedEvent{UserID: 7})
	bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, delivered)
}

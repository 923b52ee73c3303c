package protocol

import (
	"context"
	"testing"
	"time"

	"stocktrader/events"
	"stocktrader/models"
	"stocktrader/repository"
	"stocktrader/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testingT is satisfied by both *testing.T and *rapid.T
type testingT interface {
	require.TestingT
	Helper()
}

// newTestInterpreter returns an interpreter over a fresh in-memory ledger
// holding the default user (id 1, Robby Bobby, $100.00)
func newTestInterpreter(t testingT) *Interpreter {
	t.Helper()
	ctx := context.Background()
	factory := repository.NewMemoryUnitOfWorkFactory(repository.NewMemoryStore(), events.NewBus())

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.UserRepository().Create(ctx, &models.User{
		FirstName:   "Robby",
		LastName:    "Bobby",
		UserName:    "Rob_bob",
		CashBalance: decimal.NewFromInt(100),
	}))
	require.NoError(t, uow.Commit())

	return NewInterpreter(service.NewTradingService(factory), service.NewQueryService(factory, false), 1)
}

func TestInterpreter_Scenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("buy debits cash", func(t *testing.T) {
		interp := newTestInterpreter(t)

		resp, transition := interp.Execute(ctx, "BUY MSFT 3.4 1.35 1")
		assert.Equal(t, Continue, transition)
		assert.Equal(t, "200 OK\nBOUGHT: New balance: 3.40 MSFT. USD balance $95.41\n\n", resp.Render())

		resp, _ = interp.Execute(ctx, "BALANCE")
		assert.Equal(t, []string{"Balance for user Robby Bobby: $95.41"}, resp.Lines)
	})

	t.Run("oversell leaves state unchanged", func(t *testing.T) {
		interp := newTestInterpreter(t)
		interp.Execute(ctx, "BUY MSFT 3.4 1.35 1")

		resp, _ := interp.Execute(ctx, "SELL MSFT 5 1.00 1")
		assert.Equal(t, "403 message format error", resp.Status())
		assert.Equal(t, []string{"Not enough MSFT stock balance. Current: 3.40, Requested: 5.00"}, resp.Lines)

		resp, _ = interp.Execute(ctx, "LIST 1")
		assert.Equal(t, []string{"The list of records in the Stocks database for user 1:", "1 MSFT 3.40 1"}, resp.Lines)
		resp, _ = interp.Execute(ctx, "BALANCE 1")
		assert.Equal(t, []string{"Balance for user Robby Bobby: $95.41"}, resp.Lines)
	})

	t.Run("balance of unknown user", func(t *testing.T) {
		resp, _ := newTestInterpreter(t).Execute(ctx, "BALANCE 999")
		assert.Equal(t, "403 message format error\nUser 999 doesn't exist\n\n", resp.Render())
	})

	t.Run("list of unknown user is empty", func(t *testing.T) {
		resp, _ := newTestInterpreter(t).Execute(ctx, "LIST 999")
		assert.Equal(t, "200 OK", resp.Status())
		assert.Equal(t, []string{
			"The list of records in the Stocks database for user 999:",
			"No stocks found for this user",
		}, resp.Lines)
	})

	t.Run("repeated buys accumulate", func(t *testing.T) {
		interp := newTestInterpreter(t)

		resp, _ := interp.Execute(ctx, "BUY AAPL 2 1.45 1")
		assert.Equal(t, []string{"BOUGHT: New balance: 2.00 AAPL. USD balance $97.10"}, resp.Lines)
		resp, _ = interp.Execute(ctx, "BUY AAPL 1 1.45 1")
		assert.Equal(t, []string{"BOUGHT: New balance: 3.00 AAPL. USD balance $95.65"}, resp.Lines)

		resp, _ = interp.Execute(ctx, "LIST")
		assert.Equal(t, []string{"The list of records in the Stocks database for user 1:", "1 AAPL 3.00 1"}, resp.Lines)
	})

	t.Run("sell returns proceeds", func(t *testing.T) {
		interp := newTestInterpreter(t)
		interp.Execute(ctx, "BUY MSFT 3.4 1.35 1")

		resp, _ := interp.Execute(ctx, "SELL MSFT 3.4 1.35 1")
		assert.Equal(t, []string{"SOLD: New balance: 0.00 MSFT. USD $100.00"}, resp.Lines)
	})

	t.Run("errors do not end the session", func(t *testing.T) {
		interp := newTestInterpreter(t)

		for _, line := range []string{"HELLO", "BUY MSFT", "BUY MSFT 0 1 1", "SELL AAPL 1 1 1", "BUY X 1 1 404"} {
			resp, transition := interp.Execute(ctx, line)
			assert.NotEqual(t, CodeOK, resp.Code, line)
			assert.Equal(t, Continue, transition, line)
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		resp, _ := newTestInterpreter(t).Execute(ctx, "HELLO")
		assert.Equal(t, "400 invalid command\n\n", resp.Render())
	})
}

func TestSession_StateMachine(t *testing.T) {
	ctx := context.Background()

	t.Run("quit closes", func(t *testing.T) {
		session := NewSession(newTestInterpreter(t), nil)
		assert.Equal(t, StateOpen, session.State())

		resp, transition, err := session.Handle(ctx, "BALANCE")
		require.NoError(t, err)
		assert.Equal(t, CodeOK, resp.Code)
		assert.Equal(t, Continue, transition)
		assert.Equal(t, StateOpen, session.State())

		resp, transition, err = session.Handle(ctx, "QUIT")
		require.NoError(t, err)
		assert.Equal(t, "200 OK\n\n", resp.Render())
		assert.Equal(t, Close, transition)
		assert.Equal(t, StateClosed, session.State())

		_, _, err = session.Handle(ctx, "BALANCE")
		assert.ErrorIs(t, err, ErrSessionClosed)
	})

	t.Run("shutdown closes with the global transition", func(t *testing.T) {
		session := NewSession(newTestInterpreter(t), nil)

		resp, transition, err := session.Handle(ctx, "SHUTDOWN")
		require.NoError(t, err)
		assert.Equal(t, CodeOK, resp.Code)
		assert.Equal(t, Shutdown, transition)
		assert.Equal(t, StateClosed, session.State())
	})

	t.Run("close without a line", func(t *testing.T) {
		session := NewSession(newTestInterpreter(t), nil)
		session.Close()

		_, _, err := session.Handle(ctx, "LIST")
		assert.ErrorIs(t, err, ErrSessionClosed)
	})
}

func TestInterpreter_StrictList(t *testing.T) {
	factory := repository.NewMemoryUnitOfWorkFactory(repository.NewMemoryStore(), events.NewBus())
	interp := NewInterpreter(service.NewTradingService(factory), service.NewQueryService(factory, true), 1)

	resp, _ := interp.Execute(context.Background(), "LIST 999")
	assert.Equal(t, "403 message format error\nUser 999 doesn't exist\n\n", resp.Render())
}

func TestInterpreter_ExponentQuantitiesAreRejectedPromptly(t *testing.T) {
	interp := newTestInterpreter(t)
	ctx := context.Background()

	for _, line := range []string{
		"BUY X 1e-100000000 1 1",
		"BUY Y 1e100000000 1e-100000000 1",
		"SELL Z 1 1E5 1",
	} {
		done := make(chan Response, 1)
		go func() {
			resp, _ := interp.Execute(ctx, line)
			done <- resp
		}()

		select {
		case resp := <-done:
			assert.Equal(t, CodeFormatError, resp.Code, line)
		case <-time.After(5 * time.Second):
			t.Fatalf("no response to %q", line)
		}
	}

	// The store is still usable afterwards
	resp, _ := interp.Execute(ctx, "BALANCE")
	assert.Equal(t, []string{"Balance for user Robby Bobby: $100.00"}, resp.Lines)
}

package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"stocktrader/events"
	"stocktrader/repository/testutil"
	"stocktrader/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// factoriesUnderTest returns every unit of work implementation sharing the same contract
func factoriesUnderTest(t *testing.T, bus *events.Bus) map[string]service.UnitOfWorkFactory {
	factories := map[string]service.UnitOfWorkFactory{
		"memory": NewMemoryUnitOfWorkFactory(NewMemoryStore(), bus),
	}
	if !testing.Short() {
		testDB := testutil.SetupTestDatabase(t)
		factories["postgres"] = NewUnitOfWorkFactory(testDB.DB, bus)
	}
	return factories
}

func seedUser(t *testing.T, factory service.UnitOfWorkFactory, balance string) int64 {
	t.Helper()
	ctx := context.Background()

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	user := testutil.CreateTestUserWithBalance("seed", balance)
	require.NoError(t, uow.UserRepository().Create(ctx, user))
	require.NoError(t, uow.Commit())

	return user.ID
}

func TestUnitOfWork_CommitAndRollback(t *testing.T) {
	bus := events.NewBus()
	for name, factory := range factoriesUnderTest(t, bus) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			userID := seedUser(t, factory, "100")

			// rolled back writes are invisible
			uow := factory.Create()
			require.NoError(t, uow.Begin(ctx))
			_, err := uow.UserRepository().AdjustCash(ctx, userID, decimal.NewFromInt(-40))
			require.NoError(t, err)
			_, err = uow.HoldingRepository().UpsertDelta(ctx, userID, "MSFT", decimal.NewFromInt(2))
			require.NoError(t, err)
			require.NoError(t, uow.Rollback())

			uow = factory.Create()
			require.NoError(t, uow.Begin(ctx))
			user, err := uow.UserRepository().GetByID(ctx, userID)
			require.NoError(t, err)
			assert.Equal(t, "100.00", user.CashBalance.StringFixed(2))
			holding, err := uow.HoldingRepository().Get(ctx, userID, "MSFT")
			require.NoError(t, err)
			assert.Nil(t, holding)

			// committed writes are visible together
			_, err = uow.UserRepository().AdjustCash(ctx, userID, decimal.NewFromInt(-40))
			require.NoError(t, err)
			_, err = uow.HoldingRepository().UpsertDelta(ctx, userID, "MSFT", decimal.NewFromInt(2))
			require.NoError(t, err)
			require.NoError(t, uow.Commit())
			require.NoError(t, uow.Rollback(), "rollback after commit is a no-op")

			uow = factory.Create()
			require.NoError(t, uow.Begin(ctx))
			defer uow.Rollback()
			user, err = uow.UserRepository().GetByID(ctx, userID)
			require.NoError(t, err)
			assert.Equal(t, "60.00", user.CashBalance.StringFixed(2))
			holding, err = uow.HoldingRepository().Get(ctx, userID, "MSFT")
			require.NoError(t, err)
			require.NotNil(t, holding)
			assert.Equal(t, "2.00", holding.Quantity.StringFixed(2))
		})
	}
}

func TestUnitOfWork_EventsFlushOnlyOnCommit(t *testing.T) {
	bus := events.NewBus()
	var delivered atomic.Int32
	bus.Subscribe(events.EventTypeUserCreated, func(ctx context.Context, event events.Event) {
		delivered.Add(1)
	})

	for name, factory := range factoriesUnderTest(t, bus) {
		t.Run(name, func(t *testing.T) {
			delivered.Store(0)
			ctx := context.Background()

			uow := factory.Create()
			require.NoError(t, uow.Begin(ctx))
			uow.EventBus().Publish(events.UserCreatedEvent{UserID: 1})
			require.NoError(t, uow.Rollback())
			bus.Wait()
			assert.Equal(t, int32(0), delivered.Load())

			uow = factory.Create()
			require.NoError(t, uow.Begin(ctx))
			uow.EventBus().Publish(events.UserCreatedEvent{UserID: 1})
			require.NoError(t, uow.Commit())
			bus.Wait()
			assert.Equal(t, int32(1), delivered.Load())
		})
	}
}

func TestUnitOfWork_LockedReadSerializesWriters(t *testing.T) {
	bus := events.NewBus()
	for name, factory := range factoriesUnderTest(t, bus) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			userID := seedUser(t, factory, "100")

			const workers = 20
			var succeeded atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()

					uow := factory.Create()
					if err := uow.Begin(ctx); err != nil {
						t.Errorf("begin: %v", err)
						return
					}
					defer uow.Rollback()

					user, err := uow.UserRepository().GetByIDForUpdate(ctx, userID)
					if err != nil || user == nil {
						t.Errorf("lock user: %v", err)
						return
					}
					if user.CashBalance.LessThan(decimal.NewFromInt(10)) {
						return
					}
					if _, err := uow.UserRepository().AdjustCash(ctx, userID, decimal.NewFromInt(-10)); err != nil {
						t.Errorf("adjust: %v", err)
						return
					}
					if err := uow.Commit(); err == nil {
						succeeded.Add(1)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, int32(10), succeeded.Load())

			uow := factory.Create()
			require.NoError(t, uow.Begin(ctx))
			defer uow.Rollback()
			user, err := uow.UserRepository().GetByID(ctx, userID)
			require.NoError(t, err)
			assert.True(t, user.CashBalance.IsZero())
		})
	}
}

func TestUnitOfWork_RepositoriesRequireBegin(t *testing.T) {
	uow := NewMemoryUnitOfWorkFactory(NewMemoryStore(), events.NewBus()).Create()
	assert.Panics(t, func() { uow.UserRepository() })
	assert.Panics(t, func() { uow.HoldingRepository() })
	assert.Error(t, uow.Commit())
	assert.NoError(t, uow.Rollback())
}

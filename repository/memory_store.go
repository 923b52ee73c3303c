package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stocktrader/events"
	"stocktrader/models"
	"stocktrader/service"

	"github.com/shopspring/decimal"
)

type holdingKey struct {
	userID int64
	symbol string
}

// MemoryStore is a process-local ledger. A unit of work holds the store
// exclusively from Begin until Commit or Rollback, and its writes are staged
// and applied together on Commit.
type MemoryStore struct {
	sem           chan struct{}
	users         map[int64]models.User
	holdings      map[int64]models.Holding
	holdingIndex  map[holdingKey]int64
	nextUserID    int64
	nextHoldingID int64
}

// NewMemoryStore creates an empty in-memory ledger
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sem:           make(chan struct{}, 1),
		users:         make(map[int64]models.User),
		holdings:      make(map[int64]models.Holding),
		holdingIndex:  make(map[holdingKey]int64),
		nextUserID:    1,
		nextHoldingID: 1,
	}
}

// NewMemoryUnitOfWorkFactory creates a UnitOfWork factory backed by store
func NewMemoryUnitOfWorkFactory(store *MemoryStore, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &memoryUnitOfWorkFactory{store: store, eventBus: eventBus}
}

type memoryUnitOfWorkFactory struct {
	store    *MemoryStore
	eventBus *events.Bus
}

func (f *memoryUnitOfWorkFactory) Create() service.UnitOfWork {
	return &memoryUnitOfWork{
		store:            f.store,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// memoryUnitOfWork stages changes over the committed maps of its store
type memoryUnitOfWork struct {
	store            *MemoryStore
	ctx              context.Context
	active           bool
	transactionalBus *events.TransactionalBus

	users         map[int64]models.User
	holdings      map[int64]models.Holding
	holdingIndex  map[holdingKey]int64
	nextUserID    int64
	nextHoldingID int64

	userRepo    *memoryUserRepository
	holdingRepo *memoryHoldingRepository
}

// Begin waits for exclusive access to the store
func (u *memoryUnitOfWork) Begin(ctx context.Context) error {
	if u.active {
		return fmt.Errorf("transaction already started")
	}

	select {
	case u.store.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("failed to begin transaction: %w", ctx.Err())
	}

	u.ctx = ctx
	u.active = true
	u.users = make(map[int64]models.User)
	u.holdings = make(map[int64]models.Holding)
	u.holdingIndex = make(map[holdingKey]int64)
	u.nextUserID = u.store.nextUserID
	u.nextHoldingID = u.store.nextHoldingID

	u.userRepo = &memoryUserRepository{u: u}
	u.holdingRepo = &memoryHoldingRepository{u: u}

	return nil
}

// Commit applies every staged write and releases the store
func (u *memoryUnitOfWork) Commit() error {
	if !u.active {
		return fmt.Errorf("no transaction to commit")
	}

	s := u.store
	for id, user := range u.users {
		s.users[id] = user
	}
	for id, holding := range u.holdings {
		s.holdings[id] = holding
	}
	for key, id := range u.holdingIndex {
		s.holdingIndex[key] = id
	}
	s.nextUserID = u.nextUserID
	s.nextHoldingID = u.nextHoldingID

	u.release()
	u.transactionalBus.Flush(u.ctx)

	return nil
}

// Rollback drops every staged write and releases the store
func (u *memoryUnitOfWork) Rollback() error {
	if !u.active {
		return nil
	}

	u.release()
	u.transactionalBus.Discard()

	return nil
}

func (u *memoryUnitOfWork) release() {
	u.active = false
	u.users = nil
	u.holdings = nil
	u.holdingIndex = nil
	<-u.store.sem
}

func (u *memoryUnitOfWork) UserRepository() service.UserRepository {
	if u.userRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.userRepo
}

func (u *memoryUnitOfWork) HoldingRepository() service.HoldingRepository {
	if u.holdingRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.holdingRepo
}

func (u *memoryUnitOfWork) EventBus() service.EventPublisher {
	return u.transactionalBus
}

func (u *memoryUnitOfWork) checkActive() error {
	if !u.active {
		return fmt.Errorf("unit of work is not active")
	}
	return nil
}

func (u *memoryUnitOfWork) user(id int64) (models.User, bool) {
	if user, ok := u.users[id]; ok {
		return user, true
	}
	user, ok := u.store.users[id]
	return user, ok
}

func (u *memoryUnitOfWork) holding(key holdingKey) (models.Holding, bool) {
	id, ok := u.holdingIndex[key]
	if !ok {
		id, ok = u.store.holdingIndex[key]
	}
	if !ok {
		return models.Holding{}, false
	}
	if holding, ok := u.holdings[id]; ok {
		return holding, true
	}
	holding, ok := u.store.holdings[id]
	return holding, ok
}

type memoryUserRepository struct {
	u *memoryUnitOfWork
}

func (r *memoryUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if err := r.u.checkActive(); err != nil {
		return nil, err
	}
	user, ok := r.u.user(id)
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// GetByIDForUpdate is GetByID: the unit of work already owns the whole store
func (r *memoryUserRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.User, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryUserRepository) AdjustCash(ctx context.Context, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	if err := r.u.checkActive(); err != nil {
		return decimal.Zero, err
	}

	user, ok := r.u.user(id)
	if !ok {
		return decimal.Zero, service.NewUserNotFoundError(id)
	}

	balance := user.CashBalance.Add(delta)
	if balance.IsNegative() {
		return decimal.Zero, fmt.Errorf("failed to adjust cash for user %d: balance would be %s", id, balance)
	}

	user.CashBalance = balance
	user.UpdatedAt = time.Now()
	r.u.users[id] = user

	return balance, nil
}

func (r *memoryUserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.u.checkActive(); err != nil {
		return err
	}
	if user.CashBalance.IsNegative() {
		return fmt.Errorf("failed to create user %s: negative cash balance", user.UserName)
	}

	now := time.Now()
	user.ID = r.u.nextUserID
	user.CreatedAt = now
	user.UpdatedAt = now
	r.u.nextUserID++
	r.u.users[user.ID] = *user

	return nil
}

func (r *memoryUserRepository) Count(ctx context.Context) (int64, error) {
	if err := r.u.checkActive(); err != nil {
		return 0, err
	}

	count := int64(len(r.u.store.users))
	for id := range r.u.users {
		if _, committed := r.u.store.users[id]; !committed {
			count++
		}
	}
	return count, nil
}

type memoryHoldingRepository struct {
	u *memoryUnitOfWork
}

func (r *memoryHoldingRepository) Get(ctx context.Context, userID int64, symbol string) (*models.Holding, error) {
	if err := r.u.checkActive(); err != nil {
		return nil, err
	}
	holding, ok := r.u.holding(holdingKey{userID: userID, symbol: symbol})
	if !ok {
		return nil, nil
	}
	return &holding, nil
}

func (r *memoryHoldingRepository) UpsertDelta(ctx context.Context, userID int64, symbol string, delta decimal.Decimal) (*models.Holding, error) {
	if err := r.u.checkActive(); err != nil {
		return nil, err
	}
	if _, ok := r.u.user(userID); !ok {
		return nil, fmt.Errorf("failed to update %s holding: user %d does not exist", symbol, userID)
	}

	key := holdingKey{userID: userID, symbol: symbol}
	now := time.Now()

	holding, ok := r.u.holding(key)
	if !ok {
		holding = models.Holding{
			ID:          r.u.nextHoldingID,
			UserID:      userID,
			Symbol:      symbol,
			DisplayName: symbol,
			Quantity:    decimal.Zero,
			CreatedAt:   now,
		}
	}

	quantity := holding.Quantity.Add(delta)
	if quantity.IsNegative() {
		return nil, fmt.Errorf("failed to update %s holding for user %d: quantity would be %s", symbol, userID, quantity)
	}

	if !ok {
		r.u.nextHoldingID++
		r.u.holdingIndex[key] = holding.ID
	}
	holding.Quantity = quantity
	holding.UpdatedAt = now
	r.u.holdings[holding.ID] = holding

	return &holding, nil
}

func (r *memoryHoldingRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Holding, error) {
	if err := r.u.checkActive(); err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	holdings := make([]*models.Holding, 0)
	collect := func(id int64, holding models.Holding) {
		if holding.UserID != userID || seen[id] {
			return
		}
		seen[id] = true
		holdings = append(holdings, &holding)
	}

	for id, holding := range r.u.holdings {
		collect(id, holding)
	}
	for id, holding := range r.u.store.holdings {
		collect(id, holding)
	}

	sort.Slice(holdings, func(i, j int) bool {
		return holdings[i].ID < holdings[j].ID
	})

	return holdings, nil
}

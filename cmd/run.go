package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stocktrader/config"
	"stocktrader/database"
	"stocktrader/events"
	"stocktrader/protocol"
	"stocktrader/repository"
	"stocktrader/server"
	"stocktrader/service"

	log "github.com/sirupsen/logrus"
)

// ledgerStore owns the backing store for the lifetime of the server
type ledgerStore struct {
	uowFactory service.UnitOfWorkFactory
	closeFn    func()
	closeOnce  sync.Once
}

// Close releases the store. Only the first call has an effect.
func (s *ledgerStore) Close() {
	s.closeOnce.Do(func() {
		if s.closeFn != nil {
			s.closeFn()
		}
	})
}

// Run initializes the ledger and serves connections until SHUTDOWN or ctx is cancelled
func Run(ctx context.Context, cfg *config.Config) error {
	log.WithFields(log.Fields{
		"environment": cfg.Environment,
		"store":       cfg.StoreDriver,
	}).Info("Starting stocktrader server...")

	// Initialize event bus
	eventBus := events.NewBus()
	subscribeLedgerEvents(eventBus)

	// Initialize store
	log.Info("Opening ledger store...")
	store, err := openStore(ctx, cfg, eventBus)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing ledger store...")
		store.Close()
	}()
	log.Info("Ledger store opened successfully")

	// Initialize services
	userService := service.NewUserService(store.uowFactory)
	tradingService := service.NewTradingService(store.uowFactory)
	queryService := service.NewQueryService(store.uowFactory, cfg.StrictList)

	// Seed the default user
	seeded, err := userService.EnsureDefaultUser(ctx, service.DefaultUser{
		FirstName:       cfg.DefaultFirstName,
		LastName:        cfg.DefaultLastName,
		UserName:        cfg.DefaultUserName,
		Password:        cfg.DefaultPassword,
		StartingBalance: cfg.StartingBalance,
	})
	if err != nil {
		return fmt.Errorf("failed to seed default user: %w", err)
	}
	if seeded != nil && seeded.ID != cfg.DefaultUserID {
		log.WithFields(log.Fields{
			"seededUserID":  seeded.ID,
			"defaultUserID": cfg.DefaultUserID,
		}).Warn("Seeded user does not match DEFAULT_USER_ID")
	}

	interpreter := protocol.NewInterpreter(tradingService, queryService, cfg.DefaultUserID)
	srv := server.New(server.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		ShutdownTimeout: cfg.ShutdownTimeout,
		MaxLineBytes:    cfg.MaxLineBytes,
	}, interpreter)

	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("Server shutting down...")
	waitForEventHandlers(eventBus, 2*time.Second)

	return nil
}

func openStore(ctx context.Context, cfg *config.Config, eventBus *events.Bus) (*ledgerStore, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn("Using in-memory store; the ledger is lost when the server stops")
		return &ledgerStore{
			uowFactory: repository.NewMemoryUnitOfWorkFactory(repository.NewMemoryStore(), eventBus),
		}, nil
	}

	databaseURL := database.ConstructDatabaseURL(cfg.DatabaseURL, cfg.DatabaseName)

	if cfg.AutoMigrate {
		log.Info("Running database migrations...")
		if err := database.MigrateUp(databaseURL); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, databaseURL, database.PoolOptions{
		MinConns: cfg.DBMinConns,
		MaxConns: cfg.DBMaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.CheckSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema check failed: %w", err)
	}
	log.Info("Database connection established successfully")

	return &ledgerStore{
		uowFactory: repository.NewUnitOfWorkFactory(db, eventBus),
		closeFn:    db.Close,
	}, nil
}

func waitForEventHandlers(bus *events.Bus, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		bus.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn("Timed out waiting for event handlers")
	}
}

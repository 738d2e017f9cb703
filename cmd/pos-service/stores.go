package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/billing"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/dedup"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/payment"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/reconcile"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/sequence"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/users"
)

// stores is the storage side of the service, backed either by Postgres or by
// process memory.
type stores struct {
	catalog  catalog.Repository
	sessions payment.SessionStore
	guard    interface {
		billing.StockDecrementer
		payment.Guard
	}
	users    users.Repository
	sequence sequence.Sequencer
	recorder billing.Recorder

	checkpoints dedup.Checkpointer
	close       func()
}

func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (stores, error) {
	if cfg.StoreBackend == config.BackendMemory {
		logger.Warn("using in-memory stores; data is lost on restart")
		cat := catalog.NewMemoryRepository()
		sessions := payment.NewMemorySessionStore()
		return stores{
			catalog:  cat,
			sessions: sessions,
			guard:    reconcile.NewLocalGuard(cat, sessions),
			users:    users.NewMemoryRepository(),
			sequence: sequence.NewMemoryRepository(),

			checkpoints: dedup.NewMemoryRepository(),
			close:       func() {},
		}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		return stores{}, fmt.Errorf("db connect: %w", err)
	}

	if cfg.RunMigrations {
		if err := db.RunMigrations(ctx, cfg.DatabaseDSN, logger); err != nil {
			pool.Close()
			return stores{}, fmt.Errorf("db migrate: %w", err)
		}
	}

	sqlDB, err := db.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		pool.Close()
		return stores{}, fmt.Errorf("db open: %w", err)
	}

	return stores{
		catalog:  catalog.NewPostgresRepository(pool),
		sessions: payment.NewPostgresSessionStore(pool),
		guard:    reconcile.NewPostgresGuard(pool),
		users:    users.NewRepository(sqlDB),
		sequence: sequence.NewPostgresRepository(pool),
		recorder: billing.NewPostgresRecorder(pool),

		checkpoints: dedup.NewPostgresRepository(pool),
		close: func() {
			_ = sqlDB.Close()
			pool.Close()
		},
	}, nil
}

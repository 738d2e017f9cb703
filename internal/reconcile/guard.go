// Package reconcile owns every stock decrement. The billing path calls
// Decrement; the payment path calls ConsumeSession, which ties the
// paid -> consumed transition of a session to its decrement so a session
// can never decrement stock twice.
package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/logging"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/payment"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// PostgresGuard runs the session transition and the decrement in one
// transaction.
type PostgresGuard struct {
	pool DBPool
}

func NewPostgresGuard(pool DBPool) *PostgresGuard {
	return &PostgresGuard{pool: pool}
}

func (g *PostgresGuard) Decrement(ctx context.Context, ownerID, productID string, qty int) (int, error) {
	return catalog.DecrementStock(ctx, g.pool, ownerID, productID, qty)
}

func (g *PostgresGuard) ConsumeSession(ctx context.Context, s payment.Session) (bool, int, error) {
	tx, err := g.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var tag pgconn.CommandTag
	tag, err = tx.Exec(ctx, `
		UPDATE payment_sessions SET status='consumed', updated_at=now()
		WHERE id=$1 AND status='paid'
	`, s.ID)
	if err != nil {
		return false, 0, fmt.Errorf("consume session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Another confirmation got here first.
		return false, 0, nil
	}

	remaining, err := catalog.DecrementStock(ctx, tx, s.OwnerID, s.ProductID, s.Quantity)
	if err != nil {
		return false, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, fmt.Errorf("commit consume: %w", err)
	}
	return true, remaining, nil
}

// LocalGuard works on stores that offer compare-and-swap but no
// transactions. One lock covers the status check, the decrement and the
// paid -> consumed swap, so a session is never observed as consumed before
// its stock has been taken.
type LocalGuard struct {
	catalog  catalog.Repository
	sessions payment.SessionStore

	mu sync.Mutex
}

func NewLocalGuard(cat catalog.Repository, sessions payment.SessionStore) *LocalGuard {
	return &LocalGuard{catalog: cat, sessions: sessions}
}

func (g *LocalGuard) Decrement(ctx context.Context, ownerID, productID string, qty int) (int, error) {
	return g.catalog.DecrementStock(ctx, ownerID, productID, qty)
}

func (g *LocalGuard) ConsumeSession(ctx context.Context, s payment.Session) (bool, int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cur, err := g.sessions.Get(ctx, s.ID)
	if err != nil {
		return false, 0, err
	}
	if cur.Status != payment.StatusPaid {
		return false, 0, nil
	}

	remaining, err := g.catalog.DecrementStock(ctx, s.OwnerID, s.ProductID, s.Quantity)
	if err != nil {
		return false, 0, err
	}

	swapped, err := g.sessions.CompareAndSwapStatus(ctx, s.ID, payment.StatusPaid, payment.StatusConsumed)
	if err != nil || !swapped {
		logging.FromContext(ctx).Error("stock taken but session not marked consumed",
			zap.String("session_id", s.ID), zap.Bool("swapped", swapped), zap.Error(err))
		if err == nil {
			err = fmt.Errorf("session %s changed status during consume", s.ID)
		}
		return false, 0, err
	}
	return true, remaining, nil
}

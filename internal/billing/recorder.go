package billing

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxBeginner matches the part of *pgxpool.Pool the recorder needs.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// PostgresRecorder stores committed bills with their line items.
type PostgresRecorder struct {
	pool TxBeginner
}

func NewPostgresRecorder(pool TxBeginner) *PostgresRecorder {
	return &PostgresRecorder{pool: pool}
}

func (r *PostgresRecorder) Record(ctx context.Context, b Bill) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO bills (id, owner_id, total, created_at)
		VALUES ($1, $2, $3::numeric, $4)
	`, b.ID, b.MerchantID, b.Total.String(), b.CreatedAt); err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}

	for i, it := range b.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO bill_items (bill_id, line_no, product_id, name, qty, price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric)
		`, b.ID, i+1, it.ProductID, it.Name, it.Qty, it.Price.String(), it.Subtotal.String()); err != nil {
			return fmt.Errorf("insert bill item %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit bill: %w", err)
	}
	return nil
}

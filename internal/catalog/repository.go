package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrOwnerMismatch     = errors.New("product owned by another merchant")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Repository is the catalog store. All stock mutations are conditional so
// concurrent writers can never drive stock below zero.
type Repository interface {
	Get(ctx context.Context, id string) (Product, error)
	// Upsert creates the product or overwrites it when owner matches.
	// Returns ErrOwnerMismatch for a product id held by another merchant.
	Upsert(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, ownerID, id string, patch Patch) (Product, error)
	Delete(ctx context.Context, ownerID, id string) error
	ListByOwner(ctx context.Context, ownerID string) ([]Product, error)
	// DecrementStock subtracts qty only if stock >= qty and returns the
	// remaining stock. A product of another owner reads as ErrNotFound.
	DecrementStock(ctx context.Context, ownerID, id string, qty int) (int, error)
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	Querier
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const productColumns = `id, owner_id, name, price::text, stock, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &price, &p.Stock, &p.UpdatedAt); err != nil {
		return Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return Product{}, fmt.Errorf("parse price %q: %w", price, err)
	}
	p.Price = d
	return p, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, p Product) (Product, error) {
	out, err := scanProduct(r.pool.QueryRow(ctx, `
		INSERT INTO products (id, owner_id, name, price, stock)
		VALUES ($1, $2, $3, $4::numeric, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, price = EXCLUDED.price, stock = EXCLUDED.stock, updated_at = now()
		WHERE products.owner_id = EXCLUDED.owner_id
		RETURNING `+productColumns,
		p.ID, p.OwnerID, p.Name, p.Price.String(), p.Stock))
	if err != nil {
		// The conflict branch filtered the row out: someone else owns the id.
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrOwnerMismatch
		}
		return Product{}, fmt.Errorf("upsert product: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Update(ctx context.Context, ownerID, id string, patch Patch) (Product, error) {
	var price *string
	if patch.Price != nil {
		s := patch.Price.String()
		price = &s
	}

	p, err := scanProduct(r.pool.QueryRow(ctx, `
		UPDATE products
		SET name = COALESCE($3, name),
		    price = COALESCE($4::numeric, price),
		    stock = COALESCE($5, stock),
		    updated_at = now()
		WHERE id=$1 AND owner_id=$2
		RETURNING `+productColumns,
		id, ownerID, patch.Name, price, patch.Stock))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, r.missOrForeign(ctx, id)
		}
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id=$1 AND owner_id=$2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrForeign(ctx, id)
	}
	return nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE owner_id=$1 ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) DecrementStock(ctx context.Context, ownerID, id string, qty int) (int, error) {
	return DecrementStock(ctx, r.pool, ownerID, id, qty)
}

// DecrementStock runs the conditional decrement on q, which may be a pool or
// an open transaction.
func DecrementStock(ctx context.Context, q Querier, ownerID, id string, qty int) (int, error) {
	var remaining int
	err := q.QueryRow(ctx, `
		UPDATE products
		SET stock = stock - $3, updated_at = now()
		WHERE id=$1 AND owner_id=$2 AND stock >= $3
		RETURNING stock
	`, id, ownerID, qty).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("decrement stock: %w", err)
	}

	var stock int
	err = q.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 AND owner_id=$2`, id, ownerID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("decrement stock: %w", err)
	}
	return stock, ErrInsufficientStock
}

// missOrForeign tells a missing product from one owned by someone else after
// an owner-scoped statement matched nothing.
func (r *PostgresRepository) missOrForeign(ctx context.Context, id string) error {
	var owner string
	err := r.pool.QueryRow(ctx, `SELECT owner_id FROM products WHERE id=$1`, id).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup product owner: %w", err)
	}
	return ErrOwnerMismatch
}

package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrSessionNotFound = errors.New("payment session not found")

type SessionStore interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	// MarkPaid records s as paid, inserting it if unknown. A consumed
	// session stays consumed. Returns the stored record.
	MarkPaid(ctx context.Context, s Session) (Session, error)
	// CompareAndSwapStatus moves the session from one status to another and
	// reports whether it did.
	CompareAndSwapStatus(ctx context.Context, id string, from, to Status) (bool, error)
}

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type PostgresSessionStore struct {
	pool DBPool
}

func NewPostgresSessionStore(pool DBPool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

const sessionColumns = `id, owner_id, product_id, quantity, status, url, created_at, updated_at`

func scanSession(row pgx.Row) (Session, error) {
	var (
		s      Session
		status string
	)
	if err := row.Scan(&s.ID, &s.OwnerID, &s.ProductID, &s.Quantity, &status, &s.URL, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return Session{}, err
	}
	s.Status = Status(status)
	return s, nil
}

func (r *PostgresSessionStore) Create(ctx context.Context, s Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payment_sessions (id, owner_id, product_id, quantity, status, url)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.OwnerID, s.ProductID, s.Quantity, string(s.Status), s.URL)
	if err != nil {
		return fmt.Errorf("insert payment session: %w", err)
	}
	return nil
}

func (r *PostgresSessionStore) Get(ctx context.Context, id string) (Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM payment_sessions WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("get payment session: %w", err)
	}
	return s, nil
}

func (r *PostgresSessionStore) MarkPaid(ctx context.Context, s Session) (Session, error) {
	out, err := scanSession(r.pool.QueryRow(ctx, `
		INSERT INTO payment_sessions (id, owner_id, product_id, quantity, status, url)
		VALUES ($1, $2, $3, $4, 'paid', $5)
		ON CONFLICT (id) DO UPDATE
		SET status = CASE WHEN payment_sessions.status = 'consumed' THEN 'consumed' ELSE 'paid' END,
		    updated_at = now()
		RETURNING `+sessionColumns,
		s.ID, s.OwnerID, s.ProductID, s.Quantity, s.URL))
	if err != nil {
		return Session{}, fmt.Errorf("mark session paid: %w", err)
	}
	return out, nil
}

func (r *PostgresSessionStore) CompareAndSwapStatus(ctx context.Context, id string, from, to Status) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payment_sessions SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2
	`, id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("swap session status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

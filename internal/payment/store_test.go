package payment

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionCols = []string{"id", "owner_id", "product_id", "quantity", "status", "url", "created_at", "updated_at"}

func TestPostgresSessionStore_CreateAndGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewPostgresSessionStore(mock)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payment_sessions (id, owner_id, product_id, quantity, status, url)")).
		WithArgs("cs_1", "m1", "p1", 2, "pending", "https://pay/cs_1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM payment_sessions WHERE id=$1")).
		WithArgs("cs_1").
		WillReturnRows(pgxmock.NewRows(sessionCols).AddRow("cs_1", "m1", "p1", 2, "pending", "https://pay/cs_1", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM payment_sessions WHERE id=$1")).
		WithArgs("cs_2").
		WillReturnRows(pgxmock.NewRows(sessionCols))

	require.NoError(t, store.Create(ctx, Session{ID: "cs_1", OwnerID: "m1", ProductID: "p1", Quantity: 2, Status: StatusPending, URL: "https://pay/cs_1"}))

	s, err := store.Get(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, s.Status)

	_, err = store.Get(ctx, "cs_2")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSessionStore_MarkPaidKeepsConsumed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (id) DO UPDATE SET status = CASE WHEN payment_sessions.status = 'consumed'")).
		WithArgs("cs_1", "m1", "p1", 2, "").
		WillReturnRows(pgxmock.NewRows(sessionCols).AddRow("cs_1", "m1", "p1", 2, "consumed", "", now, now))

	s, err := NewPostgresSessionStore(mock).MarkPaid(context.Background(), Session{ID: "cs_1", OwnerID: "m1", ProductID: "p1", Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, StatusConsumed, s.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSessionStore_CompareAndSwap(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewPostgresSessionStore(mock)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payment_sessions SET status=$3")).
		WithArgs("cs_1", "paid", "consumed").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payment_sessions SET status=$3")).
		WithArgs("cs_1", "paid", "consumed").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := store.CompareAndSwapStatus(context.Background(), "cs_1", StatusPaid, StatusConsumed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CompareAndSwapStatus(context.Background(), "cs_1", StatusPaid, StatusConsumed)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemorySessionStore_MarkPaid(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()

	s, err := store.MarkPaid(ctx, Session{ID: "cs_1", OwnerID: "m1", ProductID: "p1", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, s.Status, "unknown sessions are recorded as paid")

	ok, _ := store.CompareAndSwapStatus(ctx, "cs_1", StatusPaid, StatusConsumed)
	require.True(t, ok)

	s, err = store.MarkPaid(ctx, Session{ID: "cs_1", OwnerID: "m1", ProductID: "p1", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, StatusConsumed, s.Status)

	ok, _ = store.CompareAndSwapStatus(ctx, "missing", StatusPaid, StatusConsumed)
	assert.False(t, ok)
}

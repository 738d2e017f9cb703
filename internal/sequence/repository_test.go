package sequence

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepository_NextSequence(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO event_sequence (partition_key, last_sequence)")).
		WithArgs("m1").
		WillReturnRows(pgxmock.NewRows([]string{"last_sequence"}).AddRow(int64(4)))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO event_sequence")).
		WithArgs("m2").
		WillReturnError(errors.New("deadlock detected"))

	repo := NewPostgresRepository(mock)
	seq, err := repo.NextSequence(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), seq)

	_, err = repo.NextSequence(context.Background(), "m2")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryRepository_PerPartition(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := repo.NextSequence(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	got, _ := repo.NextSequence(ctx, "m2")
	assert.Equal(t, int64(1), got)
}

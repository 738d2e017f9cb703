package sequence

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
)

// Sequencer hands out a gap-free, increasing sequence per partition key.
type Sequencer interface {
	NextSequence(ctx context.Context, partitionKey string) (int64, error)
}

type Store interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	store Store
}

func NewPostgresRepository(store Store) *PostgresRepository {
	return &PostgresRepository{store: store}
}

// NextSequence atomically increments and returns the next sequence for a partition.
func (r *PostgresRepository) NextSequence(ctx context.Context, partitionKey string) (int64, error) {
	var seq int64
	err := r.store.QueryRow(ctx, `
		INSERT INTO event_sequence (partition_key, last_sequence)
		VALUES ($1, 1)
		ON CONFLICT (partition_key)
		DO UPDATE SET last_sequence = event_sequence.last_sequence + 1, updated_at = now()
		RETURNING last_sequence
	`, partitionKey).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

// MemoryRepository is the in-process Sequencer used with the memory store
// backend. Sequences restart with the process.
type MemoryRepository struct {
	mu   sync.Mutex
	last map[string]int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{last: make(map[string]int64)}
}

func (r *MemoryRepository) NextSequence(_ context.Context, partitionKey string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[partitionKey]++
	return r.last[partitionKey], nil
}

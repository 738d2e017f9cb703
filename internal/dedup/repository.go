// Package dedup keeps per-consumer sequence checkpoints so redelivered or
// replayed events are processed at most once.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Checkpointer interface {
	GetLastSequence(ctx context.Context, consumerName, partitionKey string) (int64, bool, error)
	UpsertLastSequence(ctx context.Context, consumerName, partitionKey string, seq int64) error
}

// Executor represents the subset of pgx methods required for dedup operations.
type Executor interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type PostgresRepository struct {
	executor Executor
}

func NewPostgresRepository(exec Executor) *PostgresRepository {
	return &PostgresRepository{executor: exec}
}

// GetLastSequence returns the last processed sequence for a consumer/partition.
// The boolean indicates whether a checkpoint existed.
func (r *PostgresRepository) GetLastSequence(ctx context.Context, consumerName, partitionKey string) (int64, bool, error) {
	var last int64
	if err := r.executor.QueryRow(ctx, `
		SELECT last_sequence
		FROM event_dedup_checkpoint
		WHERE consumer_name=$1 AND partition_key=$2
	`, consumerName, partitionKey).Scan(&last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("select checkpoint: %w", err)
	}
	return last, true, nil
}

// UpsertLastSequence advances the checkpoint. It never moves backwards, even
// when two deliveries race.
func (r *PostgresRepository) UpsertLastSequence(ctx context.Context, consumerName, partitionKey string, seq int64) error {
	_, err := r.executor.Exec(ctx, `
		INSERT INTO event_dedup_checkpoint (consumer_name, partition_key, last_sequence)
		VALUES ($1, $2, $3)
		ON CONFLICT (consumer_name, partition_key)
		DO UPDATE SET
			last_sequence = GREATEST(event_dedup_checkpoint.last_sequence, EXCLUDED.last_sequence),
			updated_at = now()
	`, consumerName, partitionKey, seq)
	if err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}
	return nil
}

type MemoryRepository struct {
	mu   sync.Mutex
	last map[[2]string]int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{last: make(map[[2]string]int64)}
}

func (r *MemoryRepository) GetLastSequence(_ context.Context, consumerName, partitionKey string) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	last, ok := r.last[[2]string{consumerName, partitionKey}]
	return last, ok, nil
}

func (r *MemoryRepository) UpsertLastSequence(_ context.Context, consumerName, partitionKey string, seq int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := [2]string{consumerName, partitionKey}
	if cur, ok := r.last[k]; !ok || seq > cur {
		r.last[k] = seq
	}
	return nil
}

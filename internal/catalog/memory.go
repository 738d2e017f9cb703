package catalog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps the catalog in process. Every method holds the lock
// for its full check-and-write so it gives the same guarantees as the
// conditional SQL in PostgresRepository.
type MemoryRepository struct {
	mu       sync.RWMutex
	products map[string]Product
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		products: make(map[string]Product),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepository) Upsert(_ context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.products[p.ID]; ok && existing.OwnerID != p.OwnerID {
		return Product{}, ErrOwnerMismatch
	}
	p.UpdatedAt = r.now()
	r.products[p.ID] = p
	return p, nil
}

func (r *MemoryRepository) Update(_ context.Context, ownerID, id string, patch Patch) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	if p.OwnerID != ownerID {
		return Product{}, ErrOwnerMismatch
	}
	patch.apply(&p)
	p.UpdatedAt = r.now()
	r.products[id] = p
	return p, nil
}

func (r *MemoryRepository) Delete(_ context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return ErrNotFound
	}
	if p.OwnerID != ownerID {
		return ErrOwnerMismatch
	}
	delete(r.products, id)
	return nil
}

func (r *MemoryRepository) ListByOwner(_ context.Context, ownerID string) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Product, 0)
	for _, p := range r.products {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) DecrementStock(_ context.Context, ownerID, id string, qty int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok || p.OwnerID != ownerID {
		return 0, ErrNotFound
	}
	if p.Stock < qty {
		return p.Stock, ErrInsufficientStock
	}
	p.Stock -= qty
	p.UpdatedAt = r.now()
	r.products[id] = p
	return p.Stock, nil
}

package payment

import (
	"context"
	"sync"
	"time"
)

type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session)}
}

func (m *MemorySessionStore) Create(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	m.sessions[s.ID] = s
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (m *MemorySessionStore) MarkPaid(_ context.Context, s Session) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	cur, ok := m.sessions[s.ID]
	if !ok {
		s.Status = StatusPaid
		s.CreatedAt, s.UpdatedAt = now, now
		m.sessions[s.ID] = s
		return s, nil
	}
	if cur.Status != StatusConsumed {
		cur.Status = StatusPaid
		cur.UpdatedAt = now
		m.sessions[s.ID] = cur
	}
	return cur, nil
}

func (m *MemorySessionStore) CompareAndSwapStatus(_ context.Context, id string, from, to Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || s.Status != from {
		return false, nil
	}
	s.Status = to
	s.UpdatedAt = time.Now().UTC()
	m.sessions[id] = s
	return true, nil
}

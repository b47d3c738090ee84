package service

import (
	"context"
	"sync"
	"time"
)

// IdempotencyStore maps a client key to the request it created.
// *redisclient.Client implements it.
type IdempotencyStore interface {
	LookupRequest(ctx context.Context, key string) (int64, bool, error)
	RememberRequest(ctx context.Context, key string, requestID int64) error
}

// MemoryIdempotency is an in-process IdempotencyStore for single instance deployments
type MemoryIdempotency struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]idempotencyEntry
	now     func() time.Time
}

type idempotencyEntry struct {
	requestID int64
	expires   time.Time
}

func NewMemoryIdempotency(ttl time.Duration) *MemoryIdempotency {
	return &MemoryIdempotency{
		ttl:     ttl,
		entries: make(map[string]idempotencyEntry),
		now:     time.Now,
	}
}

func (m *MemoryIdempotency) LookupRequest(_ context.Context, key string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return 0, false, nil
	}
	if m.now().After(e.expires) {
		delete(m.entries, key)
		return 0, false, nil
	}
	return e.requestID, true, nil
}

func (m *MemoryIdempotency) RememberRequest(_ context.Context, key string, requestID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = idempotencyEntry{requestID: requestID, expires: now.Add(m.ttl)}
	return nil
}

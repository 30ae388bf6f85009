package kv

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	entry     Entry
	expiresAt time.Time
}

// MemStore keeps entries in memory. Expired entries are removed lazily on Get.
type MemStore struct {
	mu   sync.Mutex
	now  func() time.Time
	data map[string]memEntry
}

func NewMemStore() *MemStore {
	return &MemStore{now: time.Now, data: map[string]memEntry{}}
}

func (m *MemStore) Put(_ context.Context, key string, entry Entry, opts PutOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry.Stored = now
	e := memEntry{entry: entry}
	if opts.TTL > 0 {
		e.expiresAt = now.Add(opts.TTL)
	}
	m.data[key] = e
	return nil
}

func (m *MemStore) Get(_ context.Context, key string) (entry Entry, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.data[key]
	if !ok {
		return entry, ErrNotFound
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.data, key)
		return entry, ErrNotFound
	}
	return e.entry, nil
}

func (m *MemStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

var _ Store = (*MemStore)(nil)

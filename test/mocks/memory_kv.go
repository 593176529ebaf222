package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/GX-mob/gx-service-template/internal/core/ports"
)

type kvEntry struct {
	value   []byte
	expires time.Time
}

// MemoryKV is an in-memory KVBackend with TTL and error injection.
type MemoryKV struct {
	mu      sync.Mutex
	entries map[string]kvEntry
	now     func() time.Time

	GetErr   error
	SetErr   error
	DelErr   error
	BatchErr error

	Gets    int
	Batches int
}

var _ ports.KVBackend = (*MemoryKV)(nil)

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{entries: make(map[string]kvEntry), now: time.Now}
}

// SetClock replaces the clock used for expiry.
func (m *MemoryKV) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets++
	if m.GetErr != nil {
		return nil, false, m.GetErr
	}
	e, ok := m.lookup(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.put(key, value, ttl)
	return nil
}

func (m *MemoryKV) Del(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DelErr != nil {
		return 0, m.DelErr
	}
	if _, ok := m.lookup(key); !ok {
		return 0, nil
	}
	delete(m.entries, key)
	return 1, nil
}

func (m *MemoryKV) SetBatch(_ context.Context, entries []ports.KVEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Batches++
	if m.BatchErr != nil {
		return m.BatchErr
	}
	for _, e := range entries {
		m.put(e.Key, e.Value, e.TTL)
	}
	return nil
}

// Raw returns the stored bytes of key without decoding.
func (m *MemoryKV) Raw(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	return e.value, ok
}

// Put writes raw bytes under key without expiry.
func (m *MemoryKV) Put(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, value, 0)
}

// TTL returns the remaining lifetime of key.
func (m *MemoryKV) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	if !ok || e.expires.IsZero() {
		return 0
	}
	return e.expires.Sub(m.now())
}

// Keys lists live keys in sorted order.
func (m *MemoryKV) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		if _, ok := m.lookup(k); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (m *MemoryKV) lookup(key string) (kvEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return kvEntry{}, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return kvEntry{}, false
	}
	return e, true
}

func (m *MemoryKV) put(key string, value []byte, ttl time.Duration) {
	e := kvEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
}

package studio

import (
	"context"
	"sync"
	"time"
)

// Store keeps sessions for as long as their browser tab is alive.
type Store interface {
	Load(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	session Session
	touched time.Time
}

// MemoryStore is a process-local Store. Sessions idle for longer than the TTL
// are dropped.
type MemoryStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	items     map[string]memoryEntry
	lastSweep time.Time
}

// NewMemoryStore creates a MemoryStore. A zero ttl keeps sessions forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, items: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Load(ctx context.Context, id string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.items[id]
	if !ok || m.expired(entry) {
		delete(m.items, id)
		return Session{}, ErrSessionNotFound
	}
	entry.touched = m.now()
	m.items[id] = entry
	return entry.session, nil
}

func (m *MemoryStore) Save(ctx context.Context, s Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	m.items[s.ID] = memoryEntry{session: s, touched: m.now()}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, entry := range m.items {
		if !m.expired(entry) {
			n++
		}
	}
	return n
}

func (m *MemoryStore) expired(entry memoryEntry) bool {
	return m.ttl > 0 && m.now().Sub(entry.touched) > m.ttl
}

// sweep drops expired sessions at most once per minute. Caller holds mu.
func (m *MemoryStore) sweep() {
	if m.ttl <= 0 {
		return
	}
	now := m.now()
	if now.Sub(m.lastSweep) < time.Minute {
		return
	}
	m.lastSweep = now
	for id, entry := range m.items {
		if m.expired(entry) {
			delete(m.items, id)
		}
	}
}

var _ Store = (*MemoryStore)(nil)

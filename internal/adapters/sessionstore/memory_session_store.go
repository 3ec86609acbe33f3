package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"route-tracker/internal/session"
)

// sweepInterval bounds how often Save scans for expired entries.
const sweepInterval = time.Minute

type memoryEntry struct {
	data      []byte
	version   int64
	expiresAt time.Time
}

// MemorySessionStore keeps sessions in process memory. Sessions are stored
// encoded so every Get hands out an independent copy.
type MemorySessionStore struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

// NewMemorySessionStore returns a store whose entries expire ttl after their
// last save. A ttl of zero keeps sessions until they are deleted.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemorySessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	e, ok := m.lookup(id)
	m.mu.Unlock()

	if !ok {
		return nil, session.ErrSessionNotFound
	}

	var s session.Session
	if err := json.Unmarshal(e.data, &s); err != nil {
		return nil, fmt.Errorf("memory session store: decode %s: %w", id, err)
	}
	return &s, nil
}

func (m *MemorySessionStore) Save(ctx context.Context, s *session.Session) error {
	next := *s
	next.Version++
	data, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("memory session store: encode %s: %w", s.ID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	stored, found := m.lookup(s.ID)
	if err := checkVersion(s.ID, stored.version, found, s.Version); err != nil {
		return fmt.Errorf("memory session store: %w", err)
	}

	e := memoryEntry{data: data, version: next.Version}
	if m.ttl > 0 {
		e.expiresAt = now.Add(m.ttl)
	}
	m.entries[s.ID] = e
	s.Version = next.Version
	return nil
}

func (m *MemorySessionStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

// lookup returns the live entry for id, dropping it when expired.
// Callers hold m.mu.
func (m *MemorySessionStore) lookup(id string) (memoryEntry, bool) {
	e, ok := m.entries[id]
	if ok && m.expired(e, m.now()) {
		delete(m.entries, id)
		return memoryEntry{}, false
	}
	return e, ok
}

// sweep drops every expired entry, at most once per sweepInterval, so
// sessions abandoned without a logout do not accumulate. Callers hold m.mu.
func (m *MemorySessionStore) sweep(now time.Time) {
	if m.ttl <= 0 || now.Sub(m.lastSweep) < sweepInterval {
		return
	}
	m.lastSweep = now
	for id, e := range m.entries {
		if m.expired(e, now) {
			delete(m.entries, id)
		}
	}
}

func (m *MemorySessionStore) expired(e memoryEntry, now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

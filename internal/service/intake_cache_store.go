package service

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// IntakeCacheStore holds serialized admin views of intake records keyed by
// record id. Every Invalidate bumps the id's version; Set stores only when the
// version still matches the one read before the database lookup, so a read
// that raced an update cannot put the old record back.
type IntakeCacheStore interface {
	Get(ctx context.Context, id uint) ([]byte, bool, error)
	Version(ctx context.Context, id uint) (uint64, error)
	Set(ctx context.Context, id uint, version uint64, value []byte, ttl time.Duration) (bool, error)
	Invalidate(ctx context.Context, id uint) error
}

type NoopIntakeCacheStore struct{}

func NewNoopIntakeCacheStore() *NoopIntakeCacheStore {
	return &NoopIntakeCacheStore{}
}

func (s *NoopIntakeCacheStore) Get(context.Context, uint) ([]byte, bool, error) {
	return nil, false, nil
}

func (s *NoopIntakeCacheStore) Version(context.Context, uint) (uint64, error) {
	return 0, nil
}

func (s *NoopIntakeCacheStore) Set(context.Context, uint, uint64, []byte, time.Duration) (bool, error) {
	return false, nil
}

func (s *NoopIntakeCacheStore) Invalidate(context.Context, uint) error {
	return nil
}

type intakeCacheEntry struct {
	payload   []byte
	expiresAt time.Time
}

type InMemoryIntakeCacheStore struct {
	mu       sync.RWMutex
	entries  map[uint]intakeCacheEntry
	versions map[uint]uint64
	now      func() time.Time
}

func NewInMemoryIntakeCacheStore() *InMemoryIntakeCacheStore {
	return &InMemoryIntakeCacheStore{
		entries:  map[uint]intakeCacheEntry{},
		versions: map[uint]uint64{},
		now:      time.Now,
	}
}

func (s *InMemoryIntakeCacheStore) Get(_ context.Context, id uint) ([]byte, bool, error) {
	now := s.now().UTC()
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if now.After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), entry.payload...), true, nil
}

func (s *InMemoryIntakeCacheStore) Version(_ context.Context, id uint) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[id], nil
}

func (s *InMemoryIntakeCacheStore) Set(_ context.Context, id uint, version uint64, value []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.versions[id] != version {
		return false, nil
	}
	s.entries[id] = intakeCacheEntry{payload: append([]byte(nil), value...), expiresAt: s.now().UTC().Add(ttl)}
	return true, nil
}

func (s *InMemoryIntakeCacheStore) Invalidate(_ context.Context, id uint) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.versions[id]++
	s.mu.Unlock()
	return nil
}

func intakeCacheKey(prefix string, id uint) string {
	return prefix + ":intake:" + strconv.FormatUint(uint64(id), 10)
}

func intakeCacheVersionKey(prefix string, id uint) string {
	return intakeCacheKey(prefix, id) + ":v"
}

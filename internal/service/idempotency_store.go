package service

import (
	"context"
	"sync"
	"time"
)

type IdempotencyState string

const (
	IdempotencyStateNew        IdempotencyState = "new"
	IdempotencyStateReplay     IdempotencyState = "replay"
	IdempotencyStateConflict   IdempotencyState = "conflict"
	IdempotencyStateInProgress IdempotencyState = "in_progress"
)

type CachedHTTPResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type IdempotencyBeginResult struct {
	State  IdempotencyState
	Cached *CachedHTTPResponse
}

// IdempotencyStore backs Idempotency-Key handling for finalize and token
// issuance. A key is reserved by Begin, then either completed with the
// response to replay or released so the client may retry.
type IdempotencyStore interface {
	Begin(ctx context.Context, scope, key, fingerprint string, ttl time.Duration) (IdempotencyBeginResult, error)
	Complete(ctx context.Context, scope, key, fingerprint string, response CachedHTTPResponse, ttl time.Duration) error
	Release(ctx context.Context, scope, key, fingerprint string) error
}

type idempotencyEntry struct {
	fingerprint string
	completed   bool
	response    CachedHTTPResponse
	expiresAt   time.Time
}

// InMemoryIdempotencyStore is used when Redis is disabled. Entries are local
// to the process.
type InMemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]*idempotencyEntry
	now     func() time.Time
}

func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{entries: map[string]*idempotencyEntry{}, now: time.Now}
}

func (s *InMemoryIdempotencyStore) Begin(_ context.Context, scope, key, fingerprint string, ttl time.Duration) (IdempotencyBeginResult, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	k := scope + ":" + key
	entry, ok := s.entries[k]
	if !ok || now.After(entry.expiresAt) {
		s.entries[k] = &idempotencyEntry{fingerprint: fingerprint, expiresAt: now.Add(ttl)}
		return IdempotencyBeginResult{State: IdempotencyStateNew}, nil
	}
	if entry.fingerprint != fingerprint {
		return IdempotencyBeginResult{State: IdempotencyStateConflict}, nil
	}
	if !entry.completed {
		return IdempotencyBeginResult{State: IdempotencyStateInProgress}, nil
	}
	cached := entry.response
	cached.Body = append([]byte(nil), entry.response.Body...)
	return IdempotencyBeginResult{State: IdempotencyStateReplay, Cached: &cached}, nil
}

func (s *InMemoryIdempotencyStore) Complete(_ context.Context, scope, key, fingerprint string, response CachedHTTPResponse, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[scope+":"+key]
	if !ok || entry.fingerprint != fingerprint {
		return nil
	}
	entry.completed = true
	entry.response = CachedHTTPResponse{
		StatusCode:  response.StatusCode,
		ContentType: response.ContentType,
		Body:        append([]byte(nil), response.Body...),
	}
	entry.expiresAt = s.now().Add(ttl)
	return nil
}

func (s *InMemoryIdempotencyStore) Release(_ context.Context, scope, key, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := scope + ":" + key
	if entry, ok := s.entries[k]; ok && entry.fingerprint == fingerprint && !entry.completed {
		delete(s.entries, k)
	}
	return nil
}

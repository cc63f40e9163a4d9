// Package idempotency defines the key store behind the X-Idempotency-Key
// header and an in-memory implementation of it.
package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"lotcost/internal/core/apperror"
)

// Status represents the state of an idempotent operation.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// StaleAfter is how long a pending key may stay untouched before a retry reclaims it.
const StaleAfter = time.Minute

// Replay is the cached HTTP response of a completed request.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store manages idempotency keys.
//
// AcquireKey returns (nil, nil) when the caller now owns the key, a Replay when
// the operation already completed, and an error when the key is in flight or
// was used for a different request.
type Store interface {
	AcquireKey(ctx context.Context, key, scope, operation, requestHash string) (*Replay, error)
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
	CleanupExpired(ctx context.Context) (int64, error)
}

// MarshalResponse encodes a response body for storage.
func MarshalResponse(response any) ([]byte, error) {
	if response == nil {
		return nil, nil
	}
	b, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return b, nil
}

// NormalizeReplay fills defaults of records stored without status or content type.
func NormalizeReplay(r *Replay) *Replay {
	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}
	if r.ContentType == "" {
		r.ContentType = "application/json"
	}
	return r
}

type record struct {
	scope       string
	operation   string
	requestHash string
	status      Status
	replay      Replay
	updatedAt   time.Time
	expiresAt   time.Time
}

// MemoryStore keeps keys in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	records map[string]*record
}

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory store whose keys expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, records: make(map[string]*record)}
}

// AcquireKey implements Store.
func (s *MemoryStore) AcquireKey(_ context.Context, key, scope, operation, requestHash string) (*Replay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.records[key]
	if !ok || now.After(rec.expiresAt) {
		s.records[key] = &record{
			scope:       scope,
			operation:   operation,
			requestHash: requestHash,
			status:      StatusPending,
			updatedAt:   now,
			expiresAt:   now.Add(s.ttl),
		}
		return nil, nil
	}

	if rec.scope != scope || rec.operation != operation || rec.requestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key)
	}

	switch rec.status {
	case StatusSuccess, StatusFailed:
		replay := rec.replay
		return NormalizeReplay(&replay), nil
	}

	if now.Sub(rec.updatedAt) > StaleAfter {
		rec.updatedAt = now
		return nil, nil
	}
	return nil, apperror.NewIdempotencyConflict(key)
}

// CompleteKey implements Store.
func (s *MemoryStore) CompleteKey(_ context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(key, StatusSuccess, statusCode, contentType, response)
}

// FailKey implements Store.
func (s *MemoryStore) FailKey(_ context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(key, StatusFailed, statusCode, contentType, response)
}

func (s *MemoryStore) finish(key string, status Status, statusCode int, contentType string, response any) error {
	body, err := MarshalResponse(response)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil
	}
	rec.status = status
	rec.replay = Replay{StatusCode: statusCode, ContentType: contentType, Body: body}
	rec.updatedAt = s.now()
	return nil
}

// CleanupExpired implements Store.
func (s *MemoryStore) CleanupExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for key, rec := range s.records {
		if now.After(rec.expiresAt) {
			delete(s.records, key)
			n++
		}
	}
	return n, nil
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"workshop/internal/core/apperror"
)

const (
	idempotencyPrefix = "workshop:idem"

	// pendingTTL bounds how long a crashed request keeps its key locked.
	pendingTTL = time.Minute
)

type idempotencyStatus string

const (
	idempotencyPending idempotencyStatus = "pending"
	idempotencyDone    idempotencyStatus = "done"
)

// Replay is a stored response returned for a repeated request.
type Replay struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type idempotencyRecord struct {
	Fingerprint string            `json:"fingerprint"`
	Status      idempotencyStatus `json:"status"`
	Response    *Replay           `json:"response,omitempty"`
}

// IdempotencyStore guards mutating requests against double execution.
// A key is locked while the first request runs, then holds its response
// for ttl. Failed requests release the key so the client may retry.
type IdempotencyStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewIdempotencyStore creates a store. ttl <= 0 keeps responses for 24h.
func NewIdempotencyStore(rdb redis.UniversalClient, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

func (s *IdempotencyStore) redisKey(key string) string {
	return idempotencyPrefix + ":" + key
}

// Acquire locks key for a request identified by fingerprint.
// Returns (nil, nil) when the caller owns the key, a Replay when the same
// request already completed, or an error when the key is busy or was used
// for another request.
func (s *IdempotencyStore) Acquire(ctx context.Context, key, fingerprint string) (*Replay, error) {
	pending, err := json.Marshal(idempotencyRecord{Fingerprint: fingerprint, Status: idempotencyPending})
	if err != nil {
		return nil, fmt.Errorf("encode idempotency record: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.rdb.SetNX(ctx, s.redisKey(key), pending, pendingTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire idempotency key: %w", err)
		}
		if ok {
			return nil, nil
		}

		raw, err := s.rdb.Get(ctx, s.redisKey(key)).Bytes()
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read idempotency key: %w", err)
		}

		var rec idempotencyRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode idempotency record: %w", err)
		}
		if rec.Fingerprint != fingerprint {
			return nil, apperror.NewIdempotencyKeyMismatch(key)
		}
		if rec.Status == idempotencyDone && rec.Response != nil {
			return rec.Response, nil
		}
		return nil, apperror.NewIdempotencyInProgress(key)
	}
	return nil, apperror.NewIdempotencyInProgress(key)
}

// Complete stores the response of a successful request.
func (s *IdempotencyStore) Complete(ctx context.Context, key, fingerprint string, resp Replay) error {
	raw, err := json.Marshal(idempotencyRecord{Fingerprint: fingerprint, Status: idempotencyDone, Response: &resp})
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}
	if err := s.rdb.Set(ctx, s.redisKey(key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release drops the lock of a failed request.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

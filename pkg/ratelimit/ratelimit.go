package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter answers whether a keyed caller may proceed right now. Callers
// are identified by an opaque key, usually a user ID.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// TokenBucket is an in-memory per-key token bucket. Each key starts with
// a full burst and refills at refillPerSec tokens per second.
type TokenBucket struct {
	mu           sync.Mutex
	buckets      map[string]*bucket
	burst        float64
	refillPerSec float64
	now          func() time.Time
}

func NewTokenBucket(burst int, refillPerSec int) *TokenBucket {
	return &TokenBucket{
		buckets:      make(map[string]*bucket),
		burst:        float64(burst),
		refillPerSec: float64(refillPerSec),
		now:          time.Now,
	}
}

func (t *TokenBucket) Allow(_ context.Context, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{tokens: t.burst, lastFill: now}
		t.buckets[key] = b
	}

	elapsed := now.Sub(b.lastFill).Seconds()
	b.tokens += elapsed * t.refillPerSec
	if b.tokens > t.burst {
		b.tokens = t.burst
	}
	b.lastFill = now

	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

func (t *TokenBucket) Reset(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.buckets, key)
	return nil
}

// Unlimited never rejects. Used in tests and local development.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, error) { return true, nil }
func (Unlimited) Reset(context.Context, string) error         { return nil }

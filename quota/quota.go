// Package quota implements the quota keeper (C3): a per-user rolling daily
// usage counter with a reset boundary, plus an optional Redis-backed
// distributed store for multi-instance deployments.
//
// The in-process Keeper is grounded on core.MemoryStore's per-key locking
// idiom, generalized from an arbitrary key/value store to a counter-with-
// reset-time record. The Redis backend is new, built in the same idiom
// using go-redis/redis/v8.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Record is one user's current usage window.
type Record struct {
	Used    int
	ResetAt int64 // unix seconds
}

// bucket is the in-process per-user counter, guarded by its own mutex so
// concurrent users never contend on a single global lock.
type bucket struct {
	mu      sync.Mutex
	used    int
	resetAt time.Time
	// hourly is the optional secondary bucket (§9 decision): when
	// HourlyLimit > 0 a request must satisfy both windows.
	hourlyUsed    int
	hourlyResetAt time.Time
}

// Keeper is the default in-process quota store.
type Keeper struct {
	mu          sync.RWMutex
	buckets     map[string]*bucket
	dailyLimit  int
	hourlyLimit int // 0 disables the secondary bucket
	now         func() time.Time
}

// Option configures a Keeper.
type Option func(*Keeper)

// WithHourlyLimit enables the optional secondary hourly bucket.
func WithHourlyLimit(limit int) Option {
	return func(k *Keeper) { k.hourlyLimit = limit }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(k *Keeper) { k.now = now }
}

// NewKeeper builds an in-process Keeper enforcing dailyLimit requests per
// user per rolling day.
func NewKeeper(dailyLimit int, opts ...Option) *Keeper {
	k := &Keeper{buckets: make(map[string]*bucket), dailyLimit: dailyLimit, now: time.Now}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *Keeper) getBucket(userID string) *bucket {
	k.mu.RLock()
	b, ok := k.buckets[userID]
	k.mu.RUnlock()
	if ok {
		return b
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if b, ok := k.buckets[userID]; ok {
		return b
	}
	b = &bucket{}
	k.buckets[userID] = b
	return b
}

// IncrementAndCheck increments userID's usage and reports whether the
// request is still within dailyLimit (the caller's per-user override, or
// k.dailyLimit if 0 is passed). resetAt is the unix-seconds boundary after
// which the counter rolls over.
func (k *Keeper) IncrementAndCheck(ctx context.Context, userID string, dailyLimit int) (bool, int, int64, error) {
	if dailyLimit <= 0 {
		dailyLimit = k.dailyLimit
	}
	b := k.getBucket(userID)
	now := k.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.resetAt.IsZero() || now.After(b.resetAt) {
		b.used = 0
		b.resetAt = now.Add(24 * time.Hour)
	}
	if k.hourlyLimit > 0 && (b.hourlyResetAt.IsZero() || now.After(b.hourlyResetAt)) {
		b.hourlyUsed = 0
		b.hourlyResetAt = now.Add(time.Hour)
	}

	b.used++
	if k.hourlyLimit > 0 {
		b.hourlyUsed++
	}

	allowed := b.used <= dailyLimit
	if k.hourlyLimit > 0 && b.hourlyUsed > k.hourlyLimit {
		allowed = false
	}

	return allowed, b.used, b.resetAt.Unix(), nil
}

// Get returns userID's current usage without incrementing it.
func (k *Keeper) Get(ctx context.Context, userID string) (int, int64, error) {
	b := k.getBucket(userID)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.resetAt.IsZero() {
		now := k.now()
		return 0, now.Add(24 * time.Hour).Unix(), nil
	}
	return b.used, b.resetAt.Unix(), nil
}

// Reset clears userID's counters immediately.
func (k *Keeper) Reset(ctx context.Context, userID string) error {
	b := k.getBucket(userID)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.used = 0
	b.resetAt = time.Time{}
	b.hourlyUsed = 0
	b.hourlyResetAt = time.Time{}
	return nil
}

// RetryAfter computes the "seconds until the window resets" hint used for
// the Retry-After response header, floored at 1 second.
func RetryAfter(resetAt int64, now time.Time) int {
	secs := int(resetAt - now.Unix())
	if secs < 1 {
		return 1
	}
	return secs
}

// RedisStore is the optional distributed backend (§6), keyed per user with
// a TTL matching the rolling daily window. Falls back to the caller-
// supplied in-process Keeper on any Redis error — see Fallback.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing *redis.Client. prefix namespaces keys,
// e.g. "intentgw:quota:".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(userID string) string {
	return r.prefix + userID
}

// IncrementAndCheck atomically increments the Redis counter, setting its
// expiry to 24h only on first creation (INCR then conditional EXPIRE so the
// window doesn't reset on every call).
func (r *RedisStore) IncrementAndCheck(ctx context.Context, userID string, dailyLimit int) (bool, int, int64, error) {
	key := r.key(userID)
	used, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, 0, fmt.Errorf("quota: redis incr: %w", err)
	}
	if used == 1 {
		if err := r.client.Expire(ctx, key, 24*time.Hour).Err(); err != nil {
			return false, 0, 0, fmt.Errorf("quota: redis expire: %w", err)
		}
	}
	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return false, 0, 0, fmt.Errorf("quota: redis ttl: %w", err)
	}
	resetAt := time.Now().Add(ttl).Unix()
	return int(used) <= dailyLimit, int(used), resetAt, nil
}

// Get returns the current counter without incrementing it.
func (r *RedisStore) Get(ctx context.Context, userID string) (int, int64, error) {
	key := r.key(userID)
	used, err := r.client.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, time.Now().Add(24 * time.Hour).Unix(), nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("quota: redis get: %w", err)
	}
	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("quota: redis ttl: %w", err)
	}
	return used, time.Now().Add(ttl).Unix(), nil
}

// Reset deletes userID's Redis counter.
func (r *RedisStore) Reset(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("quota: redis del: %w", err)
	}
	return nil
}

// Fallback wraps a RedisStore and an in-process Keeper: on any Redis error
// it falls back to the Keeper so a transient backend outage never blocks
// admission (§6 explicitly allows degraded in-process operation).
type Fallback struct {
	primary  *RedisStore
	fallback *Keeper
}

// NewFallback builds a QuotaStore that prefers primary and degrades to
// fallback on error.
func NewFallback(primary *RedisStore, fallback *Keeper) *Fallback {
	return &Fallback{primary: primary, fallback: fallback}
}

func (f *Fallback) IncrementAndCheck(ctx context.Context, userID string, dailyLimit int) (bool, int, int64, error) {
	allowed, used, resetAt, err := f.primary.IncrementAndCheck(ctx, userID, dailyLimit)
	if err != nil {
		return f.fallback.IncrementAndCheck(ctx, userID, dailyLimit)
	}
	return allowed, used, resetAt, nil
}

func (f *Fallback) Get(ctx context.Context, userID string) (int, int64, error) {
	used, resetAt, err := f.primary.Get(ctx, userID)
	if err != nil {
		return f.fallback.Get(ctx, userID)
	}
	return used, resetAt, nil
}

func (f *Fallback) Reset(ctx context.Context, userID string) error {
	if err := f.primary.Reset(ctx, userID); err != nil {
		return f.fallback.Reset(ctx, userID)
	}
	return nil
}

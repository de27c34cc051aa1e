package limiter

import (
	"context"
	"sync"

	"tanjun/pkg/command"
)

// ConcurrencyStore holds per-(bucket, key) counters for one backend.
type ConcurrencyStore interface {
	TryAcquire(ctx context.Context, bucket, key string, limit int) (bool, error)
	Release(ctx context.Context, bucket, key string) error
}

// ConcurrencyLimiter bounds how many invocations run at once per
// bucket and resource key.
type ConcurrencyLimiter struct {
	mu    sync.RWMutex
	table *bucketTable
	store ConcurrencyStore
}

// NewConcurrencyLimiter creates a concurrency limiter over the given
// store. The default bucket starts at one concurrent call per user.
func NewConcurrencyLimiter(store ConcurrencyStore) *ConcurrencyLimiter {
	return &ConcurrencyLimiter{
		table: newBucketTable(Bucket{Resource: ResourceUser, Limit: 1}),
		store: store,
	}
}

// SetBucket configures a named bucket.
func (l *ConcurrencyLimiter) SetBucket(name string, resource BucketResource, limit int) *ConcurrencyLimiter {
	l.mu.Lock()
	l.table.set(name, Bucket{Resource: resource, Limit: limit})
	l.mu.Unlock()
	return l
}

// SetCustomBucket configures a named bucket with a custom key function.
func (l *ConcurrencyLimiter) SetCustomBucket(name string, key KeyFunc, limit int) *ConcurrencyLimiter {
	l.mu.Lock()
	l.table.set(name, Bucket{Resource: ResourceCustom, Key: key, Limit: limit})
	l.mu.Unlock()
	return l
}

// DisableBucket makes a named bucket unbounded.
func (l *ConcurrencyLimiter) DisableBucket(name string) *ConcurrencyLimiter {
	l.mu.Lock()
	l.table.disable(name)
	l.mu.Unlock()
	return l
}

// TryAcquire takes a concurrency slot and returns the handle that frees
// it. Failure is a *ConcurrencyError. The handle captures the key
// resolved here, so runtime bucket changes between acquire and release
// cannot leak the hold.
func (l *ConcurrencyLimiter) TryAcquire(ctx context.Context, cctx command.Context, bucket string) (ReleaseFunc, error) {
	l.mu.RLock()
	b := l.table.lookup(bucket)
	l.mu.RUnlock()

	if b.Limit == Unlimited {
		return noRelease, nil
	}

	key := resourceKey(cctx, b)
	ok, err := l.store.TryAcquire(ctx, bucket, key, b.Limit)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ConcurrencyError{Bucket: bucket}
	}
	return func(ctx context.Context) error {
		return l.store.Release(ctx, bucket, key)
	}, nil
}

// LocalConcurrencyStore is the in-memory concurrency backend.
type LocalConcurrencyStore struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewLocalConcurrencyStore creates an in-memory concurrency store.
func NewLocalConcurrencyStore() *LocalConcurrencyStore {
	return &LocalConcurrencyStore{counts: make(map[string]int)}
}

func (s *LocalConcurrencyStore) TryAcquire(_ context.Context, bucket, key string, limit int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := bucket + "\x00" + key
	if s.counts[id] >= limit {
		return false, nil
	}
	s.counts[id]++
	return true, nil
}

func (s *LocalConcurrencyStore) Release(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := bucket + "\x00" + key
	if n := s.counts[id]; n > 1 {
		s.counts[id] = n - 1
	} else {
		delete(s.counts, id)
	}
	return nil
}

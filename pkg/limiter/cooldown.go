package limiter

import (
	"context"
	"sync"
	"time"

	"tanjun/pkg/command"
)

// CooldownStore holds sliding-window state for one backend. Keys are
// (bucket, resource key) pairs.
type CooldownStore interface {
	// TryAcquire reserves a slot. When the bucket is depleted it
	// returns ok=false and the time the oldest in-window slot expires
	// (zero if every slot is held by an in-flight call).
	TryAcquire(ctx context.Context, bucket, key string, limit int, window time.Duration) (waitUntil time.Time, ok bool, err error)
	// Release finishes a held slot, starting its window.
	Release(ctx context.Context, bucket, key string, window time.Duration) error
}

// CooldownManager applies sliding-window cooldowns per bucket. A slot is
// held while the guarded call runs and its window only starts once the
// call finishes, so concurrent long-running calls cannot prematurely
// free capacity.
type CooldownManager struct {
	mu    sync.RWMutex
	table *bucketTable
	store CooldownStore
}

// NewCooldownManager creates a cooldown manager over the given store.
// The default bucket starts at 2 calls per 5 seconds per user.
func NewCooldownManager(store CooldownStore) *CooldownManager {
	return &CooldownManager{
		table: newBucketTable(Bucket{Resource: ResourceUser, Limit: 2, Window: 5 * time.Second}),
		store: store,
	}
}

// SetBucket configures a named bucket.
func (m *CooldownManager) SetBucket(name string, resource BucketResource, limit int, window time.Duration) *CooldownManager {
	m.mu.Lock()
	m.table.set(name, Bucket{Resource: resource, Limit: limit, Window: window})
	m.mu.Unlock()
	return m
}

// SetCustomBucket configures a named bucket with a custom key function.
func (m *CooldownManager) SetCustomBucket(name string, key KeyFunc, limit int, window time.Duration) *CooldownManager {
	m.mu.Lock()
	m.table.set(name, Bucket{Resource: ResourceCustom, Key: key, Limit: limit, Window: window})
	m.mu.Unlock()
	return m
}

// DisableBucket makes a named bucket never limit.
func (m *CooldownManager) DisableBucket(name string) *CooldownManager {
	m.mu.Lock()
	m.table.disable(name)
	m.mu.Unlock()
	return m
}

// TryAcquire reserves a cooldown slot for the invocation and returns
// the handle that finishes it, starting the slot's window. Failure is a
// *CooldownError carrying the wait-until time. The handle captures the
// key and window resolved here, so runtime bucket changes between
// acquire and release cannot leak the hold.
func (m *CooldownManager) TryAcquire(ctx context.Context, cctx command.Context, bucket string) (ReleaseFunc, error) {
	m.mu.RLock()
	b := m.table.lookup(bucket)
	m.mu.RUnlock()

	if b.Limit == Unlimited {
		return noRelease, nil
	}

	key := resourceKey(cctx, b)
	waitUntil, ok, err := m.store.TryAcquire(ctx, bucket, key, b.Limit, b.Window)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &CooldownError{Bucket: bucket, WaitUntil: waitUntil}
	}
	return func(ctx context.Context) error {
		return m.store.Release(ctx, bucket, key, b.Window)
	}, nil
}

// localCooldown is one (bucket, key) sliding window.
type localCooldown struct {
	locked int
	resets []time.Time
}

// prune drops expired window entries and reports the remaining count
// including in-flight holds.
func (c *localCooldown) prune(now time.Time) int {
	i := 0
	for i < len(c.resets) && c.resets[i].Before(now) {
		i++
	}
	c.resets = c.resets[i:]
	return len(c.resets) + c.locked
}

// LocalCooldownStore is the in-memory cooldown backend.
type LocalCooldownStore struct {
	mu      sync.Mutex
	entries map[string]*localCooldown
	now     func() time.Time
}

// NewLocalCooldownStore creates an in-memory cooldown store.
func NewLocalCooldownStore() *LocalCooldownStore {
	return &LocalCooldownStore{
		entries: make(map[string]*localCooldown),
		now:     time.Now,
	}
}

func (s *LocalCooldownStore) TryAcquire(_ context.Context, bucket, key string, limit int, _ time.Duration) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := bucket + "\x00" + key
	entry, ok := s.entries[id]
	if !ok {
		entry = &localCooldown{}
		s.entries[id] = entry
	}

	if entry.prune(s.now()) >= limit {
		var waitUntil time.Time
		if len(entry.resets) > 0 {
			waitUntil = entry.resets[0]
		}
		return waitUntil, false, nil
	}

	entry.locked++
	return time.Time{}, true, nil
}

// StartJanitor periodically drops idle entries so buckets touched once
// don't accumulate forever. The returned func stops the janitor.
func (s *LocalCooldownStore) StartJanitor(interval time.Duration) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.gc()
			}
		}
	}()
	return func() { close(stop) }
}

func (s *LocalCooldownStore) gc() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.entries {
		if entry.prune(s.now()) == 0 {
			delete(s.entries, id)
		}
	}
}

func (s *LocalCooldownStore) Release(_ context.Context, bucket, key string, window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := bucket + "\x00" + key
	entry, ok := s.entries[id]
	if !ok || entry.locked == 0 {
		return nil
	}

	entry.locked--
	entry.resets = append(entry.resets, s.now().Add(window))

	if entry.prune(s.now()) == 0 {
		delete(s.entries, id)
	}
	return nil
}

package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"tanjun/pkg/command"
)

type stubContext struct {
	command.Context
	userID    string
	channelID string
	guildID   string
}

func (s *stubContext) UserID() string    { return s.userID }
func (s *stubContext) ChannelID() string { return s.channelID }
func (s *stubContext) GuildID() string   { return s.guildID }

func TestCooldownSlidingWindow(t *testing.T) {
	store := NewLocalCooldownStore()
	now := time.Unix(1000, 0)
	store.now = func() time.Time { return now }

	m := NewCooldownManager(store).SetBucket("b", ResourceUser, 5, 60*time.Second)
	cctx := &stubContext{userID: "u1"}
	ctx := context.Background()

	// Five acquisitions within the window all succeed.
	for i := 0; i < 5; i++ {
		release, err := m.TryAcquire(ctx, cctx, "b")
		if err != nil {
			t.Fatalf("Acquisition %d failed: %v", i+1, err)
		}
		if err := release(ctx); err != nil {
			t.Fatal(err)
		}
	}

	// The sixth within the window fails with a wait-until timestamp.
	_, err := m.TryAcquire(ctx, cctx, "b")
	var depleted *CooldownError
	if !errors.As(err, &depleted) {
		t.Fatalf("Expected CooldownError, got %v", err)
	}
	if depleted.WaitUntil.Before(now) {
		t.Errorf("Expected wait-until >= now, got %v", depleted.WaitUntil)
	}

	// After the window elapses from the first call's completion, a slot
	// frees up.
	now = now.Add(61 * time.Second)
	if _, err := m.TryAcquire(ctx, cctx, "b"); err != nil {
		t.Fatalf("Expected acquisition after window, got %v", err)
	}
}

func TestCooldownWindowStartsAtRelease(t *testing.T) {
	store := NewLocalCooldownStore()
	now := time.Unix(1000, 0)
	store.now = func() time.Time { return now }

	m := NewCooldownManager(store).SetBucket("b", ResourceUser, 1, 10*time.Second)
	cctx := &stubContext{userID: "u1"}
	ctx := context.Background()

	release, err := m.TryAcquire(ctx, cctx, "b")
	if err != nil {
		t.Fatal(err)
	}

	// The call runs for 30s; the slot stays held the whole time.
	now = now.Add(30 * time.Second)
	if _, err := m.TryAcquire(ctx, cctx, "b"); err == nil {
		t.Fatal("Expected in-flight call to hold the slot")
	}

	if err := release(ctx); err != nil {
		t.Fatal(err)
	}

	// The window starts at release, not at call start: 5s later the
	// bucket is still depleted.
	now = now.Add(5 * time.Second)
	if _, err := m.TryAcquire(ctx, cctx, "b"); err == nil {
		t.Fatal("Expected window to start at release")
	}

	now = now.Add(6 * time.Second)
	if _, err := m.TryAcquire(ctx, cctx, "b"); err != nil {
		t.Fatalf("Expected acquisition after window from release, got %v", err)
	}
}

func TestCooldownKeysAreIndependent(t *testing.T) {
	m := NewCooldownManager(NewLocalCooldownStore()).SetBucket("b", ResourceUser, 1, time.Minute)
	ctx := context.Background()

	if _, err := m.TryAcquire(ctx, &stubContext{userID: "u1"}, "b"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.TryAcquire(ctx, &stubContext{userID: "u2"}, "b"); err != nil {
		t.Fatalf("Expected a different user to have its own window, got %v", err)
	}
}

func TestCooldownUnconfiguredBucketInheritsDefault(t *testing.T) {
	m := NewCooldownManager(NewLocalCooldownStore())
	m.SetBucket(DefaultBucket, ResourceUser, 1, time.Minute)
	cctx := &stubContext{userID: "u1"}
	ctx := context.Background()

	if _, err := m.TryAcquire(ctx, cctx, "unknown"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.TryAcquire(ctx, cctx, "unknown"); err == nil {
		t.Fatal("Expected unconfigured bucket to inherit the default limit")
	}
}

func TestCooldownDisabledBucketNeverLimits(t *testing.T) {
	m := NewCooldownManager(NewLocalCooldownStore())
	m.SetBucket("b", ResourceUser, 1, time.Minute)
	m.DisableBucket("b")
	cctx := &stubContext{userID: "u1"}
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := m.TryAcquire(ctx, cctx, "b"); err != nil {
			t.Fatalf("Disabled bucket must never limit: %v", err)
		}
	}
}

func TestCooldownJanitorDropsIdleEntries(t *testing.T) {
	store := NewLocalCooldownStore()
	now := time.Unix(1000, 0)
	store.now = func() time.Time { return now }

	m := NewCooldownManager(store).SetBucket("b", ResourceUser, 5, 10*time.Second)
	cctx := &stubContext{userID: "u1"}
	ctx := context.Background()

	release, err := m.TryAcquire(ctx, cctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	if err := release(ctx); err != nil {
		t.Fatal(err)
	}

	store.mu.Lock()
	entries := len(store.entries)
	store.mu.Unlock()
	if entries != 1 {
		t.Fatalf("Expected one live entry, got %d", entries)
	}

	now = now.Add(11 * time.Second)
	store.gc()

	store.mu.Lock()
	entries = len(store.entries)
	store.mu.Unlock()
	if entries != 0 {
		t.Errorf("Expected expired entries to be collected, got %d", entries)
	}
}

func TestCooldownReleaseSurvivesBucketReload(t *testing.T) {
	store := NewLocalCooldownStore()
	now := time.Unix(1000, 0)
	store.now = func() time.Time { return now }

	m := NewCooldownManager(store).SetBucket("b", ResourceUser, 1, 10*time.Second)
	cctx := &stubContext{userID: "u1", channelID: "c1"}
	ctx := context.Background()

	release, err := m.TryAcquire(ctx, cctx, "b")
	if err != nil {
		t.Fatal(err)
	}

	// The bucket is re-keyed while the call is in flight; release must
	// still free the slot acquired under the old key.
	m.SetBucket("b", ResourceChannel, 1, 10*time.Second)
	if err := release(ctx); err != nil {
		t.Fatal(err)
	}
	m.SetBucket("b", ResourceUser, 1, 10*time.Second)

	now = now.Add(11 * time.Second)
	if _, err := m.TryAcquire(ctx, cctx, "b"); err != nil {
		t.Fatalf("Expected held slot to have been freed, got %v", err)
	}
}

func TestCooldownReleaseSurvivesDisable(t *testing.T) {
	store := NewLocalCooldownStore()
	now := time.Unix(1000, 0)
	store.now = func() time.Time { return now }

	m := NewCooldownManager(store).SetBucket("b", ResourceUser, 1, 10*time.Second)
	cctx := &stubContext{userID: "u1"}
	ctx := context.Background()

	release, err := m.TryAcquire(ctx, cctx, "b")
	if err != nil {
		t.Fatal(err)
	}

	// Disabling the bucket mid-flight must not swallow the release.
	m.DisableBucket("b")
	if err := release(ctx); err != nil {
		t.Fatal(err)
	}
	m.SetBucket("b", ResourceUser, 1, 10*time.Second)

	now = now.Add(11 * time.Second)
	if _, err := m.TryAcquire(ctx, cctx, "b"); err != nil {
		t.Fatalf("Expected held slot to have been freed, got %v", err)
	}
}

func TestConcurrencyLimit(t *testing.T) {
	l := NewConcurrencyLimiter(NewLocalConcurrencyStore()).SetBucket("b", ResourceUser, 2)
	cctx := &stubContext{userID: "u1"}
	ctx := context.Background()

	release, err := l.TryAcquire(ctx, cctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.TryAcquire(ctx, cctx, "b"); err != nil {
		t.Fatal(err)
	}

	_, err = l.TryAcquire(ctx, cctx, "b")
	var atLimit *ConcurrencyError
	if !errors.As(err, &atLimit) {
		t.Fatalf("Expected ConcurrencyError for third concurrent call, got %v", err)
	}

	if err := release(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := l.TryAcquire(ctx, cctx, "b"); err != nil {
		t.Fatalf("Expected acquisition after release, got %v", err)
	}
}

func TestConcurrencyDisableBucket(t *testing.T) {
	l := NewConcurrencyLimiter(NewLocalConcurrencyStore()).SetBucket("b", ResourceGlobal, 1)
	l.DisableBucket("b")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := l.TryAcquire(ctx, &stubContext{userID: "u"}, "b"); err != nil {
			t.Fatalf("Disabled bucket must be unbounded: %v", err)
		}
	}
}

func TestConcurrencyReleaseSurvivesBucketReload(t *testing.T) {
	l := NewConcurrencyLimiter(NewLocalConcurrencyStore()).SetBucket("b", ResourceUser, 1)
	cctx := &stubContext{userID: "u1", channelID: "c1"}
	ctx := context.Background()

	release, err := l.TryAcquire(ctx, cctx, "b")
	if err != nil {
		t.Fatal(err)
	}

	l.SetBucket("b", ResourceChannel, 1)
	if err := release(ctx); err != nil {
		t.Fatal(err)
	}
	l.SetBucket("b", ResourceUser, 1)

	if _, err := l.TryAcquire(ctx, cctx, "b"); err != nil {
		t.Fatalf("Expected held slot to have been freed, got %v", err)
	}
}

func TestResourceKeys(t *testing.T) {
	cctx := &stubContext{userID: "u", channelID: "c", guildID: "g"}
	dm := &stubContext{userID: "u", channelID: "c"}

	cases := []struct {
		resource BucketResource
		cctx     command.Context
		want     string
	}{
		{ResourceUser, cctx, "u"},
		{ResourceMember, cctx, "g:u"},
		{ResourceMember, dm, "u"},
		{ResourceChannel, cctx, "c"},
		{ResourceGuild, cctx, "g"},
		{ResourceGuild, dm, "c"},
		{ResourceGlobal, cctx, "*"},
	}
	for _, tc := range cases {
		if got := resourceKey(tc.cctx, Bucket{Resource: tc.resource}); got != tc.want {
			t.Errorf("%v: got %q, want %q", tc.resource, got, tc.want)
		}
	}

	custom := Bucket{Resource: ResourceCustom, Key: func(c command.Context) string {
		return "custom:" + c.UserID()
	}}
	if got := resourceKey(cctx, custom); got != "custom:u" {
		t.Errorf("Custom key: got %q", got)
	}
}

func TestParseResource(t *testing.T) {
	r, err := ParseResource("guild")
	if err != nil || r != ResourceGuild {
		t.Errorf("Expected guild, got %v (%v)", r, err)
	}
	if _, err := ParseResource("planet"); err == nil {
		t.Error("Expected error for unknown resource")
	}
}

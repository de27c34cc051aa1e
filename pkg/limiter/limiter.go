// Package limiter provides the cooldown and concurrency guards applied
// around command execution. Both share one bucket-configuration model:
// named buckets scoped to a resource (user, channel, guild, ...), with
// unconfigured bucket names inheriting the "default" bucket and
// disabled buckets never limiting.
package limiter

import (
	"context"
	"fmt"
	"time"

	"tanjun/pkg/command"
)

// DefaultBucket is the bucket name whose configuration unset buckets
// inherit.
const DefaultBucket = "default"

// ReleaseFunc frees the slot a successful TryAcquire reserved. It
// targets the resource key resolved at acquisition time, so
// reconfiguring or disabling the bucket mid-flight cannot strand the
// hold. Call it exactly once, on every exit path.
type ReleaseFunc func(ctx context.Context) error

// noRelease is the handle returned for disabled buckets.
func noRelease(context.Context) error { return nil }

// Unlimited disables limiting for a bucket.
const Unlimited = -1

// BucketResource identifies the entity a limiter counts against.
type BucketResource int

const (
	// ResourceUser counts per invoking user.
	ResourceUser BucketResource = iota
	// ResourceMember counts per (guild, user) pair, falling back to the
	// user in direct messages.
	ResourceMember
	// ResourceChannel counts per channel.
	ResourceChannel
	// ResourceParentChannel counts per thread parent, falling back to
	// the channel itself.
	ResourceParentChannel
	// ResourceTopRole counts per the member's highest role, falling
	// back to the guild.
	ResourceTopRole
	// ResourceGuild counts per guild, falling back to the channel in
	// direct messages.
	ResourceGuild
	// ResourceGlobal shares one counter for everything.
	ResourceGlobal
	// ResourceCustom derives the key with a user-supplied function.
	ResourceCustom
)

func (r BucketResource) String() string {
	switch r {
	case ResourceUser:
		return "user"
	case ResourceMember:
		return "member"
	case ResourceChannel:
		return "channel"
	case ResourceParentChannel:
		return "parent_channel"
	case ResourceTopRole:
		return "top_role"
	case ResourceGuild:
		return "guild"
	case ResourceGlobal:
		return "global"
	case ResourceCustom:
		return "custom"
	}
	return fmt.Sprintf("resource(%d)", int(r))
}

// ParseResource converts a configuration string to a BucketResource.
func ParseResource(s string) (BucketResource, error) {
	switch s {
	case "user":
		return ResourceUser, nil
	case "member":
		return ResourceMember, nil
	case "channel":
		return ResourceChannel, nil
	case "parent_channel":
		return ResourceParentChannel, nil
	case "top_role":
		return ResourceTopRole, nil
	case "guild":
		return ResourceGuild, nil
	case "global":
		return ResourceGlobal, nil
	case "custom":
		return ResourceCustom, nil
	}
	return 0, fmt.Errorf("unknown bucket resource %q", s)
}

// KeyFunc derives the resource key for a custom bucket.
type KeyFunc func(cctx command.Context) string

// Bucket is one named limiter configuration.
type Bucket struct {
	Resource BucketResource
	Limit    int
	// Window is the sliding window length; only cooldowns use it.
	Window time.Duration
	// Key derives custom resource keys; required for ResourceCustom.
	Key KeyFunc
}

// resourceKey derives the counter key for a context under a bucket.
func resourceKey(cctx command.Context, b Bucket) string {
	switch b.Resource {
	case ResourceUser:
		return cctx.UserID()
	case ResourceMember:
		if cctx.GuildID() == "" {
			return cctx.UserID()
		}
		return cctx.GuildID() + ":" + cctx.UserID()
	case ResourceChannel:
		return cctx.ChannelID()
	case ResourceParentChannel:
		if p, ok := cctx.(command.ParentChannelProvider); ok && p.ParentChannelID() != "" {
			return p.ParentChannelID()
		}
		return cctx.ChannelID()
	case ResourceTopRole:
		if p, ok := cctx.(command.TopRoleProvider); ok && p.TopRoleID() != "" {
			return p.TopRoleID()
		}
		return cctx.GuildID()
	case ResourceGuild:
		if cctx.GuildID() == "" {
			return cctx.ChannelID()
		}
		return cctx.GuildID()
	case ResourceGlobal:
		return "*"
	case ResourceCustom:
		if b.Key != nil {
			return b.Key(cctx)
		}
		return "*"
	}
	return "*"
}

// CooldownError reports a depleted cooldown bucket.
type CooldownError struct {
	Bucket string
	// WaitUntil is when the oldest in-window slot frees up; zero when
	// unknown (all slots held by in-flight calls).
	WaitUntil time.Time
}

func (e *CooldownError) Error() string {
	if e.WaitUntil.IsZero() {
		return fmt.Sprintf("cooldown bucket %q is depleted", e.Bucket)
	}
	return fmt.Sprintf("cooldown bucket %q is depleted until %s", e.Bucket, e.WaitUntil.Format(time.RFC3339))
}

// ConcurrencyError reports a concurrency bucket at its limit.
type ConcurrencyError struct {
	Bucket string
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrency bucket %q is at its limit", e.Bucket)
}

// bucketTable holds the shared bucket configuration of both managers.
type bucketTable struct {
	buckets map[string]Bucket
}

func newBucketTable(defaultBucket Bucket) *bucketTable {
	return &bucketTable{buckets: map[string]Bucket{DefaultBucket: defaultBucket}}
}

func (t *bucketTable) set(name string, b Bucket) {
	t.buckets[name] = b
}

func (t *bucketTable) disable(name string) {
	b := t.lookup(name)
	b.Limit = Unlimited
	t.buckets[name] = b
}

// lookup returns the bucket configuration, deferring to "default" for
// unconfigured names.
func (t *bucketTable) lookup(name string) Bucket {
	if b, ok := t.buckets[name]; ok {
		return b
	}
	return t.buckets[DefaultBucket]
}

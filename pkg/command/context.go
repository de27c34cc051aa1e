package command

import "context"

// Context is the per-invocation view the framework hands to checks,
// hooks and command callbacks. Concrete implementations wrap a message
// event or an interaction from the gateway.
type Context interface {
	// InvocationID uniquely identifies this invocation for logging.
	InvocationID() string

	// TriggeringName is the full name path that matched, joined with
	// spaces ("groupy tour de france").
	TriggeringName() string

	// UserID identifies the invoking user.
	UserID() string
	// ChannelID identifies the channel the invocation came from.
	ChannelID() string
	// GuildID identifies the guild, or "" in direct messages.
	GuildID() string

	// Respond creates the initial response, or a follow-up when an
	// initial response (or deferral) already exists.
	Respond(ctx context.Context, content string, ephemeral bool) error
	// Defer acknowledges the invocation before the real response is
	// ready.
	Defer(ctx context.Context, ephemeral bool) error
	// Followup sends an additional response after the initial one.
	Followup(ctx context.Context, content string, ephemeral bool) error
	// Edit replaces the content of the initial response.
	Edit(ctx context.Context, content string) error

	// HasResponded reports whether an initial response exists.
	HasResponded() bool
	// HasDeferred reports whether the invocation has been deferred.
	HasDeferred() bool
}

// ParentChannelProvider is implemented by contexts that know the parent
// of a thread channel. Limiters keyed on the parent channel fall back to
// the channel itself otherwise.
type ParentChannelProvider interface {
	ParentChannelID() string
}

// TopRoleProvider is implemented by contexts that know the invoking
// member's highest role.
type TopRoleProvider interface {
	TopRoleID() string
}

// PermissionsProvider is implemented by contexts that know the invoking
// member's permission bits in the current channel.
type PermissionsProvider interface {
	Permissions() int64
}

// Package checks provides stock command checks and the combinators for
// composing them.
package checks

import (
	"context"

	"tanjun/pkg/command"
)

// All passes only when every sub-check passes, short-circuiting on the
// first failure. Sub-checks run sequentially so their side effects keep
// declaration order.
func All(subChecks ...command.Check) command.Check {
	return func(ctx context.Context, cctx command.Context) (bool, error) {
		for _, check := range subChecks {
			ok, err := check(ctx, cctx)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
}

// Any passes when any sub-check passes, short-circuiting on the first
// success. A hard error from a sub-check still aborts immediately.
func Any(subChecks ...command.Check) command.Check {
	return func(ctx context.Context, cctx command.Context) (bool, error) {
		for _, check := range subChecks {
			ok, err := check(ctx, cctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}

// GuildOnly soft-fails outside of guilds.
func GuildOnly() command.Check {
	return func(_ context.Context, cctx command.Context) (bool, error) {
		return cctx.GuildID() != "", nil
	}
}

// DMOnly soft-fails inside guilds.
func DMOnly() command.Check {
	return func(_ context.Context, cctx command.Context) (bool, error) {
		return cctx.GuildID() == "", nil
	}
}

// OwnerOnly errors with a user-facing message unless the invoker is one
// of the given owner IDs.
func OwnerOnly(ownerIDs ...string) command.Check {
	owners := make(map[string]struct{}, len(ownerIDs))
	for _, id := range ownerIDs {
		owners[id] = struct{}{}
	}
	return func(_ context.Context, cctx command.Context) (bool, error) {
		if _, ok := owners[cctx.UserID()]; !ok {
			return false, &command.CommandError{Message: "Only the bot owner can use this command.", Ephemeral: true}
		}
		return true, nil
	}
}

// RequirePermissions errors with a user-facing message unless the
// invoking member holds every bit in perms. It soft-fails when the
// context cannot report permissions (direct messages, plain message
// events).
func RequirePermissions(perms int64) command.Check {
	return func(_ context.Context, cctx command.Context) (bool, error) {
		p, ok := cctx.(command.PermissionsProvider)
		if !ok {
			return false, nil
		}
		if p.Permissions()&perms != perms {
			return false, &command.CommandError{Message: "You are missing the permissions needed for this command.", Ephemeral: true}
		}
		return true, nil
	}
}

// UserIn soft-fails unless the invoker is in the given set. Useful for
// building custom allowlists.
func UserIn(userIDs ...string) command.Check {
	allowed := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		allowed[id] = struct{}{}
	}
	return func(_ context.Context, cctx command.Context) (bool, error) {
		_, ok := allowed[cctx.UserID()]
		return ok, nil
	}
}

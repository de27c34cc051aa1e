// Package command provides the command model: slash, message and
// context-menu commands, groups, components and the check/hook types
// that surround execution.
package command

import (
	"context"

	"tanjun/pkg/injector"
)

// Check decides whether a matched command may execute. Returning false
// without an error is a soft failure: the dispatcher treats the command
// as not matched and keeps searching. Returning an error aborts the
// invocation (a *CommandError produces a user-facing response).
type Check func(ctx context.Context, cctx Context) (bool, error)

// ExecFunc is a command callback body. args holds the parsed option
// values merged with the injector-resolved parameters.
type ExecFunc func(ctx context.Context, cctx Context, args injector.Args) error

// Executable is the view the execution pipeline needs of any command
// kind.
type Executable interface {
	Name() string
	Checks() []Check
	Hooks() *Hooks
	Params() []injector.Param
	Metadata() map[string]any
	Component() *Component

	// EphemeralDefault reports the command-level ephemeral default and
	// whether it was explicitly set (unset defers to component, then
	// client).
	EphemeralDefault() (value, set bool)
	// AlwaysDefer makes the pipeline defer before running the callback.
	AlwaysDefer() bool

	// CooldownBucket and ConcurrencyBucket name the limiter buckets
	// guarding this command; empty means unguarded.
	CooldownBucket() string
	ConcurrencyBucket() string

	Execute(ctx context.Context, cctx Context, args injector.Args) error
}

// base carries the configuration shared by every command kind.
type base struct {
	checks    []Check
	hooks     *Hooks
	metadata  map[string]any
	params    []injector.Param
	component *Component

	ephemeral    bool
	ephemeralSet bool
	alwaysDefer  bool

	cooldownBucket    string
	concurrencyBucket string
}

func (b *base) Checks() []Check           { return b.checks }
func (b *base) Hooks() *Hooks             { return b.hooks }
func (b *base) Params() []injector.Param  { return b.params }
func (b *base) Component() *Component     { return b.component }
func (b *base) AlwaysDefer() bool         { return b.alwaysDefer }
func (b *base) CooldownBucket() string    { return b.cooldownBucket }
func (b *base) ConcurrencyBucket() string { return b.concurrencyBucket }

func (b *base) Metadata() map[string]any {
	if b.metadata == nil {
		b.metadata = make(map[string]any)
	}
	return b.metadata
}

func (b *base) EphemeralDefault() (bool, bool) { return b.ephemeral, b.ephemeralSet }

func (b *base) addCheck(fn Check)             { b.checks = append(b.checks, fn) }
func (b *base) setHooks(h *Hooks)             { b.hooks = h }
func (b *base) addParam(p injector.Param)     { b.params = append(b.params, p) }
func (b *base) setEphemeralDefault(v bool)    { b.ephemeral, b.ephemeralSet = v, true }
func (b *base) setAlwaysDefer(v bool)         { b.alwaysDefer = v }
func (b *base) setCooldownBucket(n string)    { b.cooldownBucket = n }
func (b *base) setConcurrencyBucket(n string) { b.concurrencyBucket = n }

func (b *base) setMetadata(key string, value any) {
	b.Metadata()[key] = value
}

// Package injector provides the dependency resolution registry used to
// supply declared parameters to command callbacks, checks, hooks and
// scheduled callbacks.
//
// Dependencies are registered against a type or supplied as explicit
// callbacks. Resolution happens per invocation through a Resolver, which
// caches each callback's result so a provider shared by several
// parameters runs at most once per execution.
package injector

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Provider produces a dependency value. Providers may block (network,
// database) and may request their own dependencies through the passed
// Resolver.
type Provider func(ctx context.Context, res *Resolver) (any, error)

// Callback wraps a Provider with a stable identity. Result caching and
// override lookup are keyed by the Callback pointer, not by the function
// value, so two callbacks built from the same function literal stay
// distinct.
type Callback struct {
	name string
	fn   Provider
}

// NewCallback creates a named injection callback around fn.
func NewCallback(name string, fn Provider) *Callback {
	if fn == nil {
		panic("injector: nil provider")
	}
	return &Callback{name: name, fn: fn}
}

// Constant returns a callback that always resolves to value.
func Constant(name string, value any) *Callback {
	return NewCallback(name, func(context.Context, *Resolver) (any, error) {
		return value, nil
	})
}

// Name returns the callback's registered name.
func (c *Callback) Name() string { return c.name }

// Registry maps types and callbacks to their providers. Registration is
// expected to happen during client setup; lookups during steady-state
// traffic only take the read lock.
type Registry struct {
	mu        sync.RWMutex
	types     map[reflect.Type]*Callback
	overrides map[*Callback]*Callback
}

// NewRegistry creates an empty dependency registry.
func NewRegistry() *Registry {
	return &Registry{
		types:     make(map[reflect.Type]*Callback),
		overrides: make(map[*Callback]*Callback),
	}
}

// RegisterType registers a provider for the given type and returns its
// callback handle. Registering a type twice replaces the previous
// provider.
func (r *Registry) RegisterType(t reflect.Type, fn Provider) *Callback {
	cb := NewCallback(t.String(), fn)
	r.mu.Lock()
	r.types[t] = cb
	r.mu.Unlock()
	return cb
}

// RegisterValue registers a constant value for the given type.
func (r *Registry) RegisterValue(t reflect.Type, value any) *Callback {
	return r.RegisterType(t, func(context.Context, *Resolver) (any, error) {
		return value, nil
	})
}

// RegisterTypeOf registers a provider for type T.
func RegisterTypeOf[T any](r *Registry, fn Provider) *Callback {
	return r.RegisterType(TypeFor[T](), fn)
}

// RegisterValueOf registers a constant value for type T.
func RegisterValueOf[T any](r *Registry, value T) *Callback {
	return r.RegisterValue(TypeFor[T](), value)
}

// SetOverride substitutes override for cb everywhere cb would otherwise
// be invoked. Passing a nil override removes a previous substitution.
func (r *Registry) SetOverride(cb, override *Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if override == nil {
		delete(r.overrides, cb)
		return
	}
	r.overrides[cb] = override
}

// TypeFor returns the reflect.Type for T, including interface types.
func TypeFor[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (r *Registry) typeCallback(t reflect.Type) (*Callback, bool) {
	r.mu.RLock()
	cb, ok := r.types[t]
	r.mu.RUnlock()
	return cb, ok
}

func (r *Registry) override(cb *Callback) *Callback {
	r.mu.RLock()
	o, ok := r.overrides[cb]
	r.mu.RUnlock()
	if ok {
		return o
	}
	return cb
}

// MissingDependencyError reports a parameter the resolver could not
// satisfy. It is fatal for the invocation it occurred in.
type MissingDependencyError struct {
	// Param is the name of the unresolved parameter.
	Param string
	// Type is the requested type, if the request was type-keyed.
	Type reflect.Type
	// Owner names the callback or command the parameter belongs to.
	Owner string
}

func (e *MissingDependencyError) Error() string {
	if e.Type != nil {
		return fmt.Sprintf("injector: cannot resolve parameter %q (type %s) for %s", e.Param, e.Type, e.Owner)
	}
	return fmt.Sprintf("injector: cannot resolve parameter %q for %s", e.Param, e.Owner)
}

// CircularDependencyError reports a provider that directly or indirectly
// requested itself.
type CircularDependencyError struct {
	Callback string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("injector: circular dependency through callback %q", e.Callback)
}

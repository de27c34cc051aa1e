package injector

import (
	"context"
	"reflect"
)

// Resolver resolves declared parameters for a single invocation. It is
// confined to that invocation's goroutine: steps within one execution
// are never parallelized, so no locking is needed around the cache.
//
// Special values (the current context, the current command) are checked
// before any registered provider, then callback overrides, then
// type-registered providers, then declared defaults.
type Resolver struct {
	reg      *Registry
	specials map[reflect.Type]any
	cache    map[*Callback]any
	active   map[*Callback]struct{}
}

// NewResolver creates a resolver bound to the given registry.
func NewResolver(reg *Registry) *Resolver {
	return &Resolver{
		reg:      reg,
		specials: make(map[reflect.Type]any),
		cache:    make(map[*Callback]any),
		active:   make(map[*Callback]struct{}),
	}
}

// SetSpecial binds a context-scoped value for t, taking precedence over
// every registered provider for the lifetime of this resolver.
func (r *Resolver) SetSpecial(t reflect.Type, value any) {
	r.specials[t] = value
}

// SetSpecialOf binds a context-scoped value for type T.
func SetSpecialOf[T any](r *Resolver, value T) {
	r.SetSpecial(TypeFor[T](), value)
}

// ResolveCallback invokes cb (or its registered override), caching the
// result so repeated requests within this resolver return the first
// value.
func (r *Resolver) ResolveCallback(ctx context.Context, cb *Callback) (any, error) {
	effective := r.reg.override(cb)

	if v, ok := r.cache[effective]; ok {
		return v, nil
	}
	if _, running := r.active[effective]; running {
		return nil, &CircularDependencyError{Callback: effective.name}
	}

	r.active[effective] = struct{}{}
	v, err := effective.fn(ctx, r)
	delete(r.active, effective)
	if err != nil {
		return nil, err
	}

	r.cache[effective] = v
	return v, nil
}

// ResolveType resolves a value for t: special values first, then the
// registered provider. The boolean reports whether any source matched.
func (r *Resolver) ResolveType(ctx context.Context, t reflect.Type) (any, bool, error) {
	if v, ok := r.specials[t]; ok {
		return v, true, nil
	}
	if cb, ok := r.reg.typeCallback(t); ok {
		v, err := r.ResolveCallback(ctx, cb)
		if err != nil {
			return nil, true, err
		}
		return v, true, nil
	}
	return nil, false, nil
}

// ResolveParam resolves a single declared parameter. owner names the
// callback or command the parameter belongs to, for error reporting.
func (r *Resolver) ResolveParam(ctx context.Context, owner string, p Param) (any, error) {
	switch p.Kind {
	case KindDefault:
		return p.DefaultValue, nil

	case KindCallback:
		return r.ResolveCallback(ctx, p.Callback)

	case KindType:
		for _, t := range p.Types {
			v, ok, err := r.ResolveType(ctx, t)
			if err != nil {
				return nil, err
			}
			if ok {
				return v, nil
			}
		}
		if p.NilOnMiss {
			return nil, nil
		}
		if p.HasDefault {
			return p.DefaultValue, nil
		}
		var primary reflect.Type
		if len(p.Types) > 0 {
			primary = p.Types[0]
		}
		return nil, &MissingDependencyError{Param: p.Name, Type: primary, Owner: owner}
	}

	return nil, &MissingDependencyError{Param: p.Name, Owner: owner}
}

// ResolveParams resolves a full parameter list into an argument map.
func (r *Resolver) ResolveParams(ctx context.Context, owner string, params []Param) (Args, error) {
	args := make(Args, len(params))
	for _, p := range params {
		v, err := r.ResolveParam(ctx, owner, p)
		if err != nil {
			return nil, err
		}
		args[p.Name] = v
	}
	return args, nil
}

package injector

import "reflect"

// ParamKind discriminates the three ways a declared parameter can be
// satisfied.
type ParamKind int

const (
	// KindDefault means the parameter carries a literal value.
	KindDefault ParamKind = iota
	// KindType means the parameter requests a registered type, with
	// optional ordered fallback types.
	KindType
	// KindCallback means the parameter requests a specific callback's
	// result.
	KindCallback
)

// Param describes one declared parameter of a callback. Parameters are
// built with Default, Type, Union or FromCallback rather than literal
// struct construction.
type Param struct {
	// Name is the keyword the resolved value is bound to.
	Name string

	Kind ParamKind

	// DefaultValue is used when Kind is KindDefault, or as the fallback
	// for an unresolvable type request when HasDefault is set.
	DefaultValue any
	HasDefault   bool

	// Types is the ordered list of type keys tried for a type request.
	// The first entry is the primary type; the rest are union members.
	Types []reflect.Type

	// NilOnMiss resolves the parameter to nil when no type key matched,
	// mirroring a union with an optional member.
	NilOnMiss bool

	// Callback is the requested callback for KindCallback.
	Callback *Callback
}

// Default declares a parameter with a literal value.
func Default(name string, value any) Param {
	return Param{Name: name, Kind: KindDefault, DefaultValue: value, HasDefault: true}
}

// Type declares a parameter requesting type T.
func Type[T any](name string) Param {
	return Param{Name: name, Kind: KindType, Types: []reflect.Type{TypeFor[T]()}}
}

// TypeWithDefault declares a parameter requesting type T, falling back
// to value when T has no registered provider.
func TypeWithDefault[T any](name string, value T) Param {
	p := Type[T](name)
	p.DefaultValue = value
	p.HasDefault = true
	return p
}

// Union declares a parameter tried against several type keys in order.
// When nilOnMiss is set an exhausted union resolves to nil instead of
// failing, matching an optional member.
func Union(name string, nilOnMiss bool, types ...reflect.Type) Param {
	return Param{Name: name, Kind: KindType, Types: types, NilOnMiss: nilOnMiss}
}

// FromCallback declares a parameter bound to a callback's result.
func FromCallback(name string, cb *Callback) Param {
	return Param{Name: name, Kind: KindCallback, Callback: cb}
}

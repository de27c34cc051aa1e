package injector

import (
	"context"
	"errors"
	"testing"
)

type database struct{ dsn string }

type cache struct{ db *database }

func TestResolveTypeCachesPerResolver(t *testing.T) {
	reg := NewRegistry()

	calls := 0
	RegisterTypeOf[*database](reg, func(context.Context, *Resolver) (any, error) {
		calls++
		return &database{dsn: "test"}, nil
	})

	ctx := context.Background()
	res := NewResolver(reg)

	first, ok, err := res.ResolveType(ctx, TypeFor[*database]())
	if err != nil || !ok {
		t.Fatalf("First resolve failed: ok=%v err=%v", ok, err)
	}
	second, ok, err := res.ResolveType(ctx, TypeFor[*database]())
	if err != nil || !ok {
		t.Fatalf("Second resolve failed: ok=%v err=%v", ok, err)
	}

	if calls != 1 {
		t.Errorf("Expected provider to run once, ran %d times", calls)
	}
	if first != second {
		t.Error("Expected cached value on second resolve")
	}

	// A fresh resolver is a fresh execution: the provider runs again.
	if _, _, err := NewResolver(reg).ResolveType(ctx, TypeFor[*database]()); err != nil {
		t.Fatalf("Resolve in second resolver failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected provider to run twice across resolvers, ran %d times", calls)
	}
}

func TestSharedCallbackResolvesOnce(t *testing.T) {
	reg := NewRegistry()

	calls := 0
	cb := NewCallback("shared", func(context.Context, *Resolver) (any, error) {
		calls++
		return &database{}, nil
	})

	// Two distinct types backed by the same callback.
	reg.mu.Lock()
	reg.types[TypeFor[*database]()] = cb
	reg.types[TypeFor[any]()] = cb
	reg.mu.Unlock()

	res := NewResolver(reg)
	ctx := context.Background()
	if _, _, err := res.ResolveType(ctx, TypeFor[*database]()); err != nil {
		t.Fatal(err)
	}
	if _, _, err := res.ResolveType(ctx, TypeFor[any]()); err != nil {
		t.Fatal(err)
	}

	if calls != 1 {
		t.Errorf("Expected one call for shared callback, got %d", calls)
	}
}

func TestOverrideSubstitutesCallback(t *testing.T) {
	reg := NewRegistry()
	cb := RegisterValueOf(reg, &database{dsn: "real"})
	reg.SetOverride(cb, Constant("fake", &database{dsn: "fake"}))

	res := NewResolver(reg)
	v, _, err := res.ResolveType(context.Background(), TypeFor[*database]())
	if err != nil {
		t.Fatal(err)
	}
	if v.(*database).dsn != "fake" {
		t.Errorf("Expected override value, got %q", v.(*database).dsn)
	}

	// Removing the override restores the original provider.
	reg.SetOverride(cb, nil)
	v, _, err = NewResolver(reg).ResolveType(context.Background(), TypeFor[*database]())
	if err != nil {
		t.Fatal(err)
	}
	if v.(*database).dsn != "real" {
		t.Errorf("Expected original value, got %q", v.(*database).dsn)
	}
}

func TestSpecialValueBeatsProvider(t *testing.T) {
	reg := NewRegistry()
	RegisterValueOf(reg, &database{dsn: "registered"})

	res := NewResolver(reg)
	SetSpecialOf(res, &database{dsn: "special"})

	v, _, err := res.ResolveType(context.Background(), TypeFor[*database]())
	if err != nil {
		t.Fatal(err)
	}
	if v.(*database).dsn != "special" {
		t.Errorf("Expected special value to win, got %q", v.(*database).dsn)
	}
}

func TestNestedInjection(t *testing.T) {
	reg := NewRegistry()
	dbCalls := 0
	RegisterTypeOf[*database](reg, func(context.Context, *Resolver) (any, error) {
		dbCalls++
		return &database{dsn: "nested"}, nil
	})
	RegisterTypeOf[*cache](reg, func(ctx context.Context, res *Resolver) (any, error) {
		v, ok, err := res.ResolveType(ctx, TypeFor[*database]())
		if err != nil || !ok {
			return nil, err
		}
		return &cache{db: v.(*database)}, nil
	})

	res := NewResolver(reg)
	ctx := context.Background()
	v, _, err := res.ResolveType(ctx, TypeFor[*cache]())
	if err != nil {
		t.Fatal(err)
	}
	if v.(*cache).db.dsn != "nested" {
		t.Error("Expected nested database to be injected")
	}

	// The nested resolve shares the cache with direct requests.
	if _, _, err := res.ResolveType(ctx, TypeFor[*database]()); err != nil {
		t.Fatal(err)
	}
	if dbCalls != 1 {
		t.Errorf("Expected database provider to run once, ran %d times", dbCalls)
	}
}

func TestUnionFallbackOrder(t *testing.T) {
	reg := NewRegistry()
	RegisterValueOf(reg, &cache{})

	res := NewResolver(reg)
	p := Union("dep", false, TypeFor[*database](), TypeFor[*cache]())
	v, err := res.ResolveParam(context.Background(), "test", p)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.(*cache); !ok {
		t.Errorf("Expected fallback to *cache, got %T", v)
	}
}

func TestUnionNilOnMiss(t *testing.T) {
	res := NewResolver(NewRegistry())
	p := Union("dep", true, TypeFor[*database]())
	v, err := res.ResolveParam(context.Background(), "test", p)
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Errorf("Expected nil for optional union, got %v", v)
	}
}

func TestMissingDependency(t *testing.T) {
	res := NewResolver(NewRegistry())
	_, err := res.ResolveParam(context.Background(), "ping", Type[*database]("db"))

	var missing *MissingDependencyError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingDependencyError, got %v", err)
	}
	if missing.Param != "db" || missing.Owner != "ping" {
		t.Errorf("Error should name the parameter and owner: %v", missing)
	}
}

func TestTypeWithDefault(t *testing.T) {
	res := NewResolver(NewRegistry())
	v, err := res.ResolveParam(context.Background(), "test", TypeWithDefault("n", 42))
	if err != nil {
		t.Fatal(err)
	}
	if v.(int) != 42 {
		t.Errorf("Expected declared default, got %v", v)
	}
}

func TestCircularDependency(t *testing.T) {
	reg := NewRegistry()
	RegisterTypeOf[*database](reg, func(ctx context.Context, res *Resolver) (any, error) {
		_, _, err := res.ResolveType(ctx, TypeFor[*database]())
		return nil, err
	})

	_, _, err := NewResolver(reg).ResolveType(context.Background(), TypeFor[*database]())
	var circ *CircularDependencyError
	if !errors.As(err, &circ) {
		t.Fatalf("Expected CircularDependencyError, got %v", err)
	}
}

func TestResolveParams(t *testing.T) {
	reg := NewRegistry()
	RegisterValueOf(reg, &database{dsn: "x"})

	res := NewResolver(reg)
	args, err := res.ResolveParams(context.Background(), "cmd", []Param{
		Default("greeting", "hello"),
		Type[*database]("db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if args.String("greeting") != "hello" {
		t.Errorf("Expected literal default in args, got %q", args.String("greeting"))
	}
	if _, ok := args.Get("db"); !ok {
		t.Error("Expected db in args")
	}
}

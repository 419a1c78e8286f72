// FILE: lixenwraith/classconfig/resolver_test.go
package classconfig

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/classconfig/internal/cache"
)

// classDef is a test fixture for one declared type
type classDef struct {
	name      string
	parent    string
	extension bool
	config    map[string]any
	provider  ExtraConfigProvider
}

func newTestDeclarations(t *testing.T, defs ...classDef) *Declarations {
	t.Helper()
	reg := NewRegistry()
	for _, d := range defs {
		if d.extension {
			require.NoError(t, reg.DeclareExtension(d.name, d.parent, d.provider))
		} else {
			require.NoError(t, reg.DeclareClass(d.name, d.parent))
		}
		if d.config != nil {
			require.NoError(t, reg.SetConfig(d.name, SourceFile, d.config))
		}
	}
	decl, err := reg.Snapshot()
	require.NoError(t, err)
	return decl
}

func newTestResolver(t *testing.T, defs []classDef, opts ...Option) *Resolver {
	t.Helper()
	r, err := New(newTestDeclarations(t, defs...), opts...)
	require.NoError(t, err)
	return r
}

func zooDefs() []classDef {
	return []classDef{
		{name: "Animal", config: map[string]any{"legs": 4}},
		{name: "Bird", parent: "Animal", config: map[string]any{
			"legs":       2,
			"canFly":     true,
			"extensions": []any{"Migratory"},
		}},
		{name: "Migratory", extension: true, config: map[string]any{"migrates": true}},
	}
}

func TestResolveProperties(t *testing.T) {
	t.Run("Idempotence", func(t *testing.T) {
		r := newTestResolver(t, zooDefs(), WithoutMemo())

		first, err := r.Resolve("Bird", 0)
		require.NoError(t, err)
		second, err := r.Resolve("Bird", 0)
		require.NoError(t, err)

		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("second resolution differs (-first +second):\n%s", diff)
		}
	})

	t.Run("ResultIsOwnedByCaller", func(t *testing.T) {
		r := newTestResolver(t, zooDefs())

		first, err := r.Resolve("Bird", 0)
		require.NoError(t, err)
		first["legs"] = 99
		first["extensions"].([]any)[0] = "Tampered"

		second, err := r.Resolve("Bird", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(2), second["legs"])
		assert.Equal(t, []any{"Migratory"}, second["extensions"])
	})

	t.Run("DisableAllEquivalence", func(t *testing.T) {
		r := newTestResolver(t, zooDefs())
		for _, class := range r.Declarations().Classes() {
			resolved, err := r.Resolve(class, DisableAll)
			require.NoError(t, err)
			raw, err := r.Raw(class)
			require.NoError(t, err)
			if diff := cmp.Diff(raw, resolved); diff != "" {
				t.Errorf("%s: DisableAll differs from raw (-raw +resolved):\n%s", class, diff)
			}
		}
	})

	t.Run("OverrideDirection", func(t *testing.T) {
		r := newTestResolver(t, []classDef{
			{name: "A", config: map[string]any{"x": 1}},
			{name: "B", parent: "A", config: map[string]any{"x": 2}},
		})

		b, err := r.Resolve("B", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(2), b["x"])

		a, err := r.Resolve("A", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), a["x"])
	})

	t.Run("NestedMappingMerge", func(t *testing.T) {
		r := newTestResolver(t, []classDef{
			{name: "A", config: map[string]any{"opts": map[string]any{"a": 1, "b": 1}}},
			{name: "B", parent: "A", config: map[string]any{"opts": map[string]any{"b": 2}}},
		})

		b, err := r.Resolve("B", 0)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": int64(1), "b": int64(2)}, b["opts"])
	})

	t.Run("SequenceReplaceNotMerge", func(t *testing.T) {
		r := newTestResolver(t, []classDef{
			{name: "A", config: map[string]any{"list": []any{1, 2}}},
			{name: "B", parent: "A", config: map[string]any{"list": []any{3}}},
		})

		b, err := r.Resolve("B", 0)
		require.NoError(t, err)
		assert.Equal(t, []any{int64(3)}, b["list"])
	})

	t.Run("ExtensionContribution", func(t *testing.T) {
		r := newTestResolver(t, []classDef{
			{name: "C", config: map[string]any{"extensions": []any{"E"}}},
			{name: "E", extension: true, config: map[string]any{"y": 5}},
		})

		c, err := r.Resolve("C", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(5), c["y"])
	})

	t.Run("UnknownExtensionFails", func(t *testing.T) {
		r := newTestResolver(t, []classDef{
			{name: "C", config: map[string]any{"extensions": []any{"Ghost"}}},
		})

		_, err := r.Resolve("C", 0)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownExtension)

		var uerr *UnknownExtensionError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "C", uerr.Host)
		assert.Equal(t, "Ghost", uerr.Extension)
	})

	t.Run("OrdinaryClassIsNotAnExtension", func(t *testing.T) {
		r := newTestResolver(t, []classDef{
			{name: "Plain", config: map[string]any{"z": 1}},
			{name: "C", config: map[string]any{"extensions": []any{"Plain"}}},
		})

		_, err := r.Resolve("C", 0)
		var uerr *UnknownExtensionError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "declared as an ordinary class", uerr.Reason)
	})

	t.Run("Scenario", func(t *testing.T) {
		r := newTestResolver(t, zooDefs())

		bird, err := r.Resolve("Bird", 0)
		require.NoError(t, err)

		want := ClassConfig{
			"legs":       int64(2),
			"canFly":     true,
			"migrates":   true,
			"extensions": []any{"Migratory"},
		}
		if diff := cmp.Diff(want, bird); diff != "" {
			t.Errorf("Bird mismatch (-want +got):\n%s", diff)
		}
	})
}

// TestOverridePrecedence pins the pipeline order: the extension stage wraps
// the inheritance stage, so extension values beat the host's own values and
// those of its ancestors.
func TestOverridePrecedence(t *testing.T) {
	defs := []classDef{
		{name: "A", config: map[string]any{"x": "A", "y": "A", "extensions": []any{"E"}}},
		{name: "B", parent: "A", config: map[string]any{"x": "B", "y": "B"}},
		{name: "E", extension: true, config: map[string]any{"x": "E"}},
	}
	r := newTestResolver(t, defs)

	b, err := r.Resolve("B", 0)
	require.NoError(t, err)
	assert.Equal(t, "E", b["x"], "ancestor's extension overrides subclass own value")
	assert.Equal(t, "B", b["y"], "subclass overrides ancestor where no extension contributes")

	b, err = r.Resolve("B", DisableExtensions)
	require.NoError(t, err)
	assert.Equal(t, "B", b["x"])

	b, err = r.Resolve("B", DisableInheritance)
	require.NoError(t, err)
	assert.Equal(t, ClassConfig{"x": "B", "y": "B"}, b, "without inheritance B has no extensions")
}

func TestDisableFlagsPerStage(t *testing.T) {
	r := newTestResolver(t, zooDefs())

	tests := []struct {
		name  string
		flags DisableFlags
		want  ClassConfig
	}{
		{"Full", 0, ClassConfig{"legs": int64(2), "canFly": true, "migrates": true, "extensions": []any{"Migratory"}}},
		{"NoExtensions", DisableExtensions, ClassConfig{"legs": int64(2), "canFly": true, "extensions": []any{"Migratory"}}},
		{"NoInheritance", DisableInheritance, ClassConfig{"legs": int64(2), "canFly": true, "migrates": true, "extensions": []any{"Migratory"}}},
		{"Both", DisableInheritance | DisableExtensions, ClassConfig{"legs": int64(2), "canFly": true, "extensions": []any{"Migratory"}}},
		{"All", DisableAll, ClassConfig{"legs": int64(2), "canFly": true, "extensions": []any{"Migratory"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve("Bird", tt.flags)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}

	animal, err := r.Resolve("Animal", DisableInheritance)
	require.NoError(t, err)
	assert.Equal(t, ClassConfig{"legs": int64(4)}, animal)
}

func TestExtensionResolution(t *testing.T) {
	t.Run("ExtensionAncestryRootFirst", func(t *testing.T) {
		r := newTestResolver(t, []classDef{
			{name: "Base", extension: true, config: map[string]any{"a": 1, "b": 1}},
			{name: "Derived", parent: "Base", extension: true, config: map[string]any{"b": 2}},
			{name: "Host", config: map[string]any{"extensions": []any{"Derived"}}},
		})

		host, err := r.Resolve("Host", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), host["a"])
		assert.Equal(t, int64(2), host["b"])
	})

	t.Run("LaterExtensionWins", func(t *testing.T) {
		r := newTestResolver(t, []classDef{
			{name: "First", extension: true, config: map[string]any{"v": "first"}},
			{name: "Second", extension: true, config: map[string]any{"v": "second"}},
			{name: "Host", config: map[string]any{"extensions": []any{"First", "Second"}}},
		})

		host, err := r.Resolve("Host", 0)
		require.NoError(t, err)
		assert.Equal(t, "second", host["v"])
	})

	t.Run("ExtensionsKeyOfExtensionNotMerged", func(t *testing.T) {
		r := newTestResolver(t, []classDef{
			{name: "Other", extension: true, config: map[string]any{"o": 1}},
			{name: "E", extension: true, config: map[string]any{"e": 1, "extensions": []any{"Other"}}},
			{name: "Host", config: map[string]any{"extensions": []any{"E"}}},
		})

		host, err := r.Resolve("Host", 0)
		require.NoError(t, err)
		assert.Equal(t, []any{"E"}, host["extensions"])
		assert.Equal(t, int64(1), host["e"])
		assert.NotContains(t, host, "o")
	})

	t.Run("KeyedExtensionsMergeAndRemove", func(t *testing.T) {
		r := newTestResolver(t, []classDef{
			{name: "Migratory", extension: true, config: map[string]any{"migrates": true}},
			{name: "Flying", extension: true, config: map[string]any{"flies": true}},
			{name: "Bird", config: map[string]any{"extensions": map[string]any{"travel": "Migratory"}}},
			{name: "Penguin", parent: "Bird", config: map[string]any{"extensions": map[string]any{"travel": nil, "air": "Flying"}}},
			{name: "Sparrow", parent: "Bird", config: map[string]any{"extensions": map[string]any{"air": "Flying"}}},
		})

		penguin, err := r.Resolve("Penguin", 0)
		require.NoError(t, err)
		assert.NotContains(t, penguin, "migrates")
		assert.Equal(t, true, penguin["flies"])

		sparrow, err := r.Resolve("Sparrow", 0)
		require.NoError(t, err)
		assert.Equal(t, true, sparrow["migrates"])
		assert.Equal(t, true, sparrow["flies"])
	})

	t.Run("SequenceExtensionsReplaceInherited", func(t *testing.T) {
		r := newTestResolver(t, []classDef{
			{name: "Migratory", extension: true, config: map[string]any{"migrates": true}},
			{name: "Flying", extension: true, config: map[string]any{"flies": true}},
			{name: "Bird", config: map[string]any{"extensions": []any{"Migratory"}}},
			{name: "Swift", parent: "Bird", config: map[string]any{"extensions": []any{"Flying"}}},
		})

		swift, err := r.Resolve("Swift", 0)
		require.NoError(t, err)
		assert.Equal(t, []any{"Flying"}, swift["extensions"])
		assert.NotContains(t, swift, "migrates")
	})

	t.Run("ProviderReceivesArguments", func(t *testing.T) {
		var gotHost, gotExt string
		var gotArgs []any
		provider := ExtraConfigFunc(func(host, extension string, args []any) (map[string]any, error) {
			gotHost, gotExt, gotArgs = host, extension, args
			return map[string]any{"stage": args[0], "extensions": []any{"Ignored"}}, nil
		})

		r := newTestResolver(t, []classDef{
			{name: "Versioned", extension: true, provider: provider, config: map[string]any{"versioned": true}},
			{name: "Page", config: map[string]any{"extensions": []any{`Versioned("Stage", 2)`}}},
		})

		page, err := r.Resolve("Page", 0)
		require.NoError(t, err)
		assert.Equal(t, "Page", gotHost)
		assert.Equal(t, "Versioned", gotExt)
		assert.Equal(t, []any{"Stage", int64(2)}, gotArgs)
		assert.Equal(t, "Stage", page["stage"])
		assert.Equal(t, true, page["versioned"])
		assert.Equal(t, []any{`Versioned("Stage", 2)`}, page["extensions"])
	})

	t.Run("ProviderErrorPropagates", func(t *testing.T) {
		provider := ExtraConfigFunc(func(string, string, []any) (map[string]any, error) {
			return nil, errors.New("boom")
		})
		r := newTestResolver(t, []classDef{
			{name: "E", extension: true, provider: provider},
			{name: "Host", config: map[string]any{"extensions": []any{"E"}}},
		})

		_, err := r.Resolve("Host", 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestResolveErrors(t *testing.T) {
	t.Run("UnknownClass", func(t *testing.T) {
		r := newTestResolver(t, zooDefs())
		for _, flags := range []DisableFlags{0, DisableInheritance, DisableAll} {
			_, err := r.Resolve("Dragon", flags)
			assert.ErrorIs(t, err, ErrClassNotFound, "flags %s", flags)
		}
	})

	t.Run("CyclicDeclarationRejected", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.DeclareClass("A", "B"))
		require.NoError(t, reg.DeclareClass("B", "A"))

		_, err := reg.Snapshot()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCyclicAncestry)
	})

	t.Run("ReentryDepthBounded", func(t *testing.T) {
		loop := NewMiddleware("loop", 1<<4, func(p *Pass, class string, flags DisableFlags, next NextFunc) (ClassConfig, error) {
			return p.Resolve(class, flags)
		})
		r := newTestResolver(t, zooDefs(), WithMiddleware(loop), WithMaxDepth(8))

		_, err := r.Resolve("Bird", 0)
		var cerr *CyclicAncestryError
		require.ErrorAs(t, err, &cerr)
		assert.Len(t, cerr.Chain, 9)
	})
}

func TestCustomMiddleware(t *testing.T) {
	const stampBit DisableFlags = 1 << 2

	stamp := NewMiddleware("stamp", stampBit, func(p *Pass, class string, flags DisableFlags, next NextFunc) (ClassConfig, error) {
		cfg, err := next(class, flags)
		if err != nil {
			return nil, err
		}
		cfg["stamped"] = class
		return cfg, nil
	})

	r := newTestResolver(t, zooDefs(), WithMiddleware(stamp))

	bird, err := r.Resolve("Bird", 0)
	require.NoError(t, err)
	assert.Equal(t, "Bird", bird["stamped"])
	assert.Equal(t, true, bird["migrates"])

	bird, err = r.Resolve("Bird", stampBit)
	require.NoError(t, err)
	assert.NotContains(t, bird, "stamped")

	bird, err = r.Resolve("Bird", DisableAll)
	require.NoError(t, err)
	assert.NotContains(t, bird, "stamped")

	t.Run("OverlappingBitRejected", func(t *testing.T) {
		clash := NewMiddleware("clash", DisableInheritance, func(p *Pass, class string, flags DisableFlags, next NextFunc) (ClassConfig, error) {
			return next(class, flags)
		})
		_, err := New(newTestDeclarations(t, zooDefs()...), WithMiddleware(clash))
		assert.ErrorIs(t, err, ErrInvalidMiddlewareBit)

		zero := NewMiddleware("zero", 0, nil)
		_, err = New(newTestDeclarations(t, zooDefs()...), WithMiddleware(zero))
		assert.ErrorIs(t, err, ErrInvalidMiddlewareBit)
	})
}

func TestAddExtension(t *testing.T) {
	defs := append(zooDefs(), classDef{name: "Flying", extension: true, config: map[string]any{"flies": true}})
	r := newTestResolver(t, defs)

	before := r.Declarations()
	_, err := r.Resolve("Bird", 0) // populate memo
	require.NoError(t, err)

	require.NoError(t, r.AddExtension("Bird", "Flying"))

	bird, err := r.Resolve("Bird", 0)
	require.NoError(t, err)
	assert.Equal(t, true, bird["flies"])
	assert.Equal(t, true, bird["migrates"])
	assert.Equal(t, []any{"Migratory", "Flying"}, bird["extensions"])

	// Copy-on-write: the old snapshot is untouched
	raw, err := before.Raw("Bird")
	require.NoError(t, err)
	assert.Equal(t, []any{"Migratory"}, raw["extensions"])
	assert.NotEqual(t, before.Fingerprint(), r.Declarations().Fingerprint())

	// Applying twice is a no-op
	require.NoError(t, r.AddExtension("Bird", "Flying"))
	bird, err = r.Resolve("Bird", 0)
	require.NoError(t, err)
	assert.Equal(t, []any{"Migratory", "Flying"}, bird["extensions"])

	assert.ErrorIs(t, r.AddExtension("Dragon", "Flying"), ErrClassNotFound)
	assert.ErrorIs(t, r.AddExtension("Bird", "Bad("), ErrInvalidCallSpec)
}

func TestResolveAll(t *testing.T) {
	r := newTestResolver(t, zooDefs())

	all, err := r.ResolveAll(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, true, all["Bird"]["migrates"])
	assert.Equal(t, int64(4), all["Animal"]["legs"])

	_, err = r.ResolveAll(context.Background(), []string{"Bird", "Dragon"}, 0)
	assert.ErrorIs(t, err, ErrClassNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.ResolveAll(ctx, []string{"Bird"}, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

// mapStore is an in-memory Store counting accesses
type mapStore struct {
	mu      sync.Mutex
	entries map[string]map[string]any
	gets    int
	puts    int
}

func newMapStore() *mapStore {
	return &mapStore{entries: make(map[string]map[string]any)}
}

func (s *mapStore) Get(key string) (map[string]any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	cfg, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	return deepCopyMap(cfg), true, nil
}

func (s *mapStore) Put(key string, cfg map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	s.entries[key] = deepCopyMap(cfg)
	return nil
}

func (s *mapStore) Close() error { return nil }

func TestCaching(t *testing.T) {
	t.Run("MemoServesRepeatedResolutions", func(t *testing.T) {
		store := newMapStore()
		r := newTestResolver(t, zooDefs(), WithStore(store))

		for i := 0; i < 3; i++ {
			_, err := r.Resolve("Bird", 0)
			require.NoError(t, err)
		}
		assert.Equal(t, 1, store.gets)
		assert.Equal(t, 1, store.puts)
	})

	t.Run("StoreSharedAcrossResolvers", func(t *testing.T) {
		store := newMapStore()
		decl := newTestDeclarations(t, zooDefs()...)

		first, err := New(decl, WithStore(store))
		require.NoError(t, err)
		want, err := first.Resolve("Bird", 0)
		require.NoError(t, err)

		second, err := New(decl, WithStore(store))
		require.NoError(t, err)
		got, err := second.Resolve("Bird", 0)
		require.NoError(t, err)

		assert.Equal(t, want, got)
		assert.Equal(t, 1, store.puts)
		assert.Len(t, store.entries, 1)
		for key := range store.entries {
			assert.Equal(t, decl.Fingerprint()+"/Bird/0", key)
		}
	})

	t.Run("StoreHitMatchesFreshResolution", func(t *testing.T) {
		fs, err := cache.OpenFileStore(t.TempDir())
		require.NoError(t, err)
		decl := newTestDeclarations(t, classDef{name: "Tagged", config: map[string]any{
			"tags":  []string{"x", "y"},
			"ratio": float32(0.5),
			"ports": map[string]int{"http": 80},
			"grid":  [][]int{{1, 2}},
		}})

		first, err := New(decl, WithStore(fs))
		require.NoError(t, err)
		fresh, err := first.Resolve("Tagged", 0)
		require.NoError(t, err)

		_, stored, err := fs.Get(decl.Fingerprint() + "/Tagged/0")
		require.NoError(t, err)
		require.True(t, stored)

		second, err := New(decl, WithStore(fs))
		require.NoError(t, err)
		hit, err := second.Resolve("Tagged", 0)
		require.NoError(t, err)

		if diff := cmp.Diff(fresh, hit); diff != "" {
			t.Errorf("store hit differs from fresh resolution (-fresh +hit):\n%s", diff)
		}
		assert.Equal(t, []any{"x", "y"}, fresh["tags"])
		assert.Equal(t, 0.5, fresh["ratio"])
	})

	t.Run("UnencodableValuesNotStored", func(t *testing.T) {
		store := newMapStore()
		r := newTestResolver(t, []classDef{{name: "Timer", config: map[string]any{"rest": time.Second}}}, WithStore(store))

		timer, err := r.Resolve("Timer", 0)
		require.NoError(t, err)
		assert.Equal(t, time.Second, timer["rest"])
		assert.Equal(t, 0, store.puts)
	})

	t.Run("ProviderResultsNotStored", func(t *testing.T) {
		store := newMapStore()
		withProvider := func(v int) *Declarations {
			return newTestDeclarations(t,
				classDef{name: "Ext", extension: true, provider: ExtraConfigFunc(func(_, _ string, _ []any) (map[string]any, error) {
					return map[string]any{"v": v}, nil
				})},
				classDef{name: "Host", config: map[string]any{"extensions": []any{"Ext"}}},
			)
		}
		one, two := withProvider(1), withProvider(2)
		require.Equal(t, one.Fingerprint(), two.Fingerprint(), "provider behaviour is not part of the fingerprint")

		for want, decl := range map[int64]*Declarations{1: one, 2: two} {
			r, err := New(decl, WithStore(store))
			require.NoError(t, err)
			host, err := r.Resolve("Host", 0)
			require.NoError(t, err)
			assert.Equal(t, want, host["v"])
		}
		assert.Equal(t, 0, store.puts)

		r, err := New(one, WithStore(store))
		require.NoError(t, err)
		_, err = r.Resolve("Host", DisableExtensions)
		require.NoError(t, err)
		assert.Equal(t, 1, store.puts, "results without providers are still stored")
	})

	t.Run("SwapInvalidates", func(t *testing.T) {
		r := newTestResolver(t, zooDefs())
		_, err := r.Resolve("Animal", 0)
		require.NoError(t, err)

		r.Swap(newTestDeclarations(t, classDef{name: "Animal", config: map[string]any{"legs": 6}}))

		animal, err := r.Resolve("Animal", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(6), animal["legs"])
	})
}

func TestConcurrentResolution(t *testing.T) {
	defs := zooDefs()
	for i := 0; i < 8; i++ {
		defs = append(defs, classDef{name: fmt.Sprintf("Ext%d", i), extension: true, config: map[string]any{fmt.Sprintf("e%d", i): i}})
	}
	r := newTestResolver(t, defs)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				cfg, err := r.Resolve("Bird", 0)
				if err != nil {
					errs <- err
					return
				}
				if cfg["legs"] != int64(2) {
					errs <- fmt.Errorf("legs = %v", cfg["legs"])
					return
				}
			}
		}()
		go func(i int) {
			defer wg.Done()
			if err := r.AddExtension("Bird", fmt.Sprintf("Ext%d", i)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	bird, err := r.Resolve("Bird", 0)
	require.NoError(t, err)
	assert.Len(t, bird["extensions"], 9)
	for i := 0; i < 8; i++ {
		assert.Equal(t, int64(i), bird[fmt.Sprintf("e%d", i)])
	}
}

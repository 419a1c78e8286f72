// FILE: lixenwraith/classconfig/explain_test.go
package classconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplain(t *testing.T) {
	r := newTestResolver(t, []classDef{
		{name: "Animal", config: map[string]any{"legs": 4, "diet": map[string]any{"kind": "omnivore", "meals": 3}}},
		{name: "Bird", parent: "Animal", config: map[string]any{
			"legs":       2,
			"diet":       map[string]any{"kind": "seeds"},
			"extensions": []any{"Migratory"},
		}},
		{name: "Travel", extension: true, config: map[string]any{"range": "short"}},
		{name: "Migratory", parent: "Travel", extension: true, config: map[string]any{"range": "long", "legs": 3}},
	})

	e, err := r.Explain("Bird", 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"Animal", "Bird"}, e.Ancestry)
	require.Len(t, e.Extensions, 1)
	assert.Equal(t, "Migratory", e.Extensions[0].Name)

	effective, err := r.Resolve("Bird", 0)
	require.NoError(t, err)
	assert.Equal(t, effective, e.Effective)

	t.Run("ChainsEndWithEffectiveValue", func(t *testing.T) {
		for _, path := range e.Paths() {
			winner, ok := e.Winner(path)
			require.True(t, ok, path)
			value, _ := e.Effective.Get(path)
			assert.Equal(t, value, winner.Value, path)
		}
	})

	t.Run("InheritedNestedKey", func(t *testing.T) {
		chain := e.Provenance["diet.meals"]
		require.Len(t, chain, 1)
		assert.Equal(t, Contribution{Stage: StageInherited, Class: "Animal", Value: int64(3)}, chain[0])

		winner, _ := e.Winner("diet.kind")
		assert.Equal(t, StageOwn, winner.Stage)
		assert.Equal(t, "seeds", winner.Value)
	})

	t.Run("ExtensionOverridesOwn", func(t *testing.T) {
		chain := e.Provenance["legs"]
		require.Len(t, chain, 3)
		assert.Equal(t, []Stage{StageInherited, StageOwn, StageExtension}, []Stage{chain[0].Stage, chain[1].Stage, chain[2].Stage})
		assert.Equal(t, "Migratory", chain[2].Class)
		assert.Equal(t, int64(3), chain[2].Value)
	})

	t.Run("ExtensionAncestors", func(t *testing.T) {
		chain := e.Provenance["range"]
		require.Len(t, chain, 2)
		assert.Equal(t, "Travel", chain[0].Class)
		assert.Equal(t, "Migratory", chain[0].Extension)
		assert.Equal(t, "long", chain[1].Value)
	})

	t.Run("String", func(t *testing.T) {
		s := e.String()
		assert.Contains(t, s, "Bird (disabled: none)")
		assert.Contains(t, s, "ancestry: Animal -> Bird")
		assert.Contains(t, s, "extensions: Migratory")
		assert.Contains(t, s, "Migratory via Travel")
	})

	t.Run("Flags", func(t *testing.T) {
		e, err := r.Explain("Bird", DisableInheritance|DisableExtensions)
		require.NoError(t, err)
		assert.Equal(t, []string{"Bird"}, e.Ancestry)
		assert.Empty(t, e.Extensions)
		assert.NotContains(t, e.Provenance, "diet.meals")
		assert.NotContains(t, e.Provenance, "range")
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := r.Explain("Dragon", 0)
		assert.ErrorIs(t, err, ErrClassNotFound)

		_, ok := (&Explanation{}).Winner("x")
		assert.False(t, ok)
	})
}

func TestExplainProvider(t *testing.T) {
	provider := ExtraConfigFunc(func(_, _ string, args []any) (map[string]any, error) {
		return map[string]any{"stage": args[0]}, nil
	})
	r := newTestResolver(t, []classDef{
		{name: "Versioned", extension: true, provider: provider},
		{name: "Page", config: map[string]any{"stage": "draft", "extensions": []any{`Versioned("live")`}}},
	})

	e, err := r.Explain("Page", 0)
	require.NoError(t, err)

	winner, ok := e.Winner("stage")
	require.True(t, ok)
	assert.Equal(t, Contribution{Stage: StageExtension, Class: "Versioned", Extension: `Versioned("live")`, Value: "live"}, winner)
}

func TestExplainReplacedMappings(t *testing.T) {
	r := newTestResolver(t, []classDef{
		{name: "Animal", config: map[string]any{
			"diet": map[string]any{"kind": "omnivore", "meals": 3},
			"move": "walk",
		}},
		{name: "Bird", parent: "Animal", config: map[string]any{
			"diet": "none",
			"move": map[string]any{"air": true},
		}},
		{name: "Sparrow", parent: "Bird", config: map[string]any{"diet": map[string]any{"kind": "seeds"}}},
	})

	e, err := r.Explain("Sparrow", 0)
	require.NoError(t, err)
	assert.Equal(t, ClassConfig{"diet": map[string]any{"kind": "seeds"}, "move": map[string]any{"air": true}}, e.Effective)

	assert.Equal(t, []Contribution{{Stage: StageOwn, Class: "Sparrow", Value: "seeds"}}, e.Provenance["diet.kind"],
		"the scalar on Bird cut off Animal's diet mapping")
	assert.Equal(t, []Contribution{{Stage: StageInherited, Class: "Bird", Value: true}}, e.Provenance["move.air"],
		"the mapping on Bird replaced Animal's scalar")
	assert.Equal(t, []string{"diet.kind", "move.air"}, e.Paths())
}

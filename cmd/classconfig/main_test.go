// FILE: lixenwraith/classconfig/cmd/classconfig/main_test.go
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const zooFile = `
classes:
  Animal: {}
  Bird: Animal
  Migratory: {extension: true}
config:
  Animal: {legs: 4}
  Bird: {legs: 2, extensions: [Migratory]}
  Migratory: {migrates: true}
`

// withGlobals points the global flags at a fresh declaration file
func withGlobals(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zoo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(zooFile), 0o644))

	saved, savedResolve := globalFlags, resolveFlags
	t.Cleanup(func() { globalFlags, resolveFlags = saved, savedResolve })
	globalFlags.files = []string{path}
	globalFlags.logLevel = "error"
	globalFlags.cacheKind = "none"
}

func runResolve(t *testing.T, classes ...string) (map[string]any, error) {
	t.Helper()
	var out bytes.Buffer
	resolveCmd.SetOut(&out)
	if err := resolveCmd.RunE(resolveCmd, classes); err != nil {
		return nil, err
	}
	var got map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	return got, nil
}

func TestResolveCommand(t *testing.T) {
	withGlobals(t)
	resolveFlags.format = "yaml"

	got, err := runResolve(t, "Bird")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"legs": 2, "migrates": true, "extensions": []any{"Migratory"}}, got)

	t.Run("Disable", func(t *testing.T) {
		resolveFlags.disable = "extensions"
		defer func() { resolveFlags.disable = "" }()
		got, err := runResolve(t, "Bird")
		require.NoError(t, err)
		assert.NotContains(t, got, "migrates")
	})

	t.Run("SetOverride", func(t *testing.T) {
		globalFlags.sets = []string{"Animal.legs=6"}
		defer func() { globalFlags.sets = nil }()
		got, err := runResolve(t, "Animal")
		require.NoError(t, err)
		assert.Equal(t, 6, got["legs"])
	})

	t.Run("Many", func(t *testing.T) {
		resolveFlags.path = "legs"
		defer func() { resolveFlags.path = "" }()
		got, err := runResolve(t, "Animal", "Bird")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"Animal": 4, "Bird": 2}, got)
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := runResolve(t)
		assert.Error(t, err)

		_, err = runResolve(t, "Dragon")
		assert.Error(t, err)

		resolveFlags.format = "xml"
		_, err = runResolve(t, "Bird")
		assert.Error(t, err)
		resolveFlags.format = "yaml"
	})
}

func TestSetArgs(t *testing.T) {
	withGlobals(t)

	globalFlags.sets = []string{"Bird.legs=3", "Bird.diet.kind=seeds"}
	args, err := setArgs()
	require.NoError(t, err)
	assert.Equal(t, []string{"--Bird.legs=3", "--Bird.diet.kind=seeds"}, args)

	globalFlags.sets = []string{"Bird.legs"}
	_, err = setArgs()
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	withGlobals(t)
	globalFlags.cacheDir = t.TempDir()

	for _, kind := range []string{"file", "bolt"} {
		globalFlags.cacheKind = kind
		s, err := openStore()
		require.NoError(t, err, kind)
		require.NotNil(t, s, kind)
		require.NoError(t, s.Close())
	}

	globalFlags.cacheKind = "none"
	s, err := openStore()
	require.NoError(t, err)
	assert.Nil(t, s)

	globalFlags.cacheKind = "redis"
	_, err = openStore()
	assert.Error(t, err)
}

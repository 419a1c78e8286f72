// FILE: lixenwraith/classconfig/flags_test.go
package classconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisableFlags(t *testing.T) {
	t.Run("Has", func(t *testing.T) {
		f := DisableInheritance | DisableFlags(8)
		assert.True(t, f.Has(DisableInheritance))
		assert.False(t, f.Has(DisableExtensions))
		assert.False(t, f.Has(DisableInheritance|DisableExtensions))
		assert.True(t, DisableAll.Has(DisableExtensions))
		assert.True(t, DisableAll.Has(DisableFlags(1<<20)))
	})

	t.Run("String", func(t *testing.T) {
		assert.Equal(t, "none", DisableFlags(0).String())
		assert.Equal(t, "all", DisableAll.String())
		assert.Equal(t, "inheritance", DisableInheritance.String())
		assert.Equal(t, "inheritance,extensions", (DisableInheritance | DisableExtensions).String())
		assert.Equal(t, "extensions,8", (DisableExtensions | DisableFlags(8)).String())
	})

	t.Run("ParseRoundTrip", func(t *testing.T) {
		for _, f := range []DisableFlags{0, DisableInheritance, DisableExtensions, DisableInheritance | DisableFlags(16), DisableAll} {
			parsed, err := ParseDisableFlags(f.String())
			require.NoError(t, err)
			assert.Equal(t, f, parsed, "round trip of %s", f)
		}
	})

	t.Run("ParseAliases", func(t *testing.T) {
		f, err := ParseDisableFlags(" Uninherited , extra ")
		require.NoError(t, err)
		assert.Equal(t, DisableInheritance|DisableExtensions, f)

		f, err = ParseDisableFlags("0x4")
		require.NoError(t, err)
		assert.Equal(t, DisableFlags(4), f)

		f, err = ParseDisableFlags("")
		require.NoError(t, err)
		assert.Zero(t, f)

		_, err = ParseDisableFlags("inheritance,bogus")
		assert.Error(t, err)
	})
}

package module

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSingleSection(t *testing.T) {
	unit, err := Parse([]byte(`
var Greeting = "hello"

func Double(n int) int { return n * 2 }
`), WithOrigin("test.go"))
	require.NoError(t, err)

	assert.NotEmpty(t, unit.ID)
	assert.Equal(t, "test.go", unit.Origin)
	assert.False(t, unit.LoadedAt.IsZero())
	require.Len(t, unit.Entries, 1)

	entry := unit.Entries[0]
	assert.Equal(t, unit.ID, entry.Owner())
	assert.Equal(t, "body", entry.Section())

	names := entry.Names()
	sort.Strings(names)
	if diff := cmp.Diff([]string{"Double", "Greeting"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMultiSection(t *testing.T) {
	unit, err := Parse([]byte(`
-- first --
var Shared = "from-first"

-- second --
var Shared = "from-second"
var OnlySecond = true
`))
	require.NoError(t, err)
	require.Len(t, unit.Entries, 2)
	assert.Equal(t, "first", unit.Entries[0].Section())
	assert.Equal(t, "second", unit.Entries[1].Section())

	// Section order is the tie-break: both define Shared, the first one in
	// the container wins when scanned front-to-back.
	v, ok := unit.Entries[0].Lookup("Shared")
	require.True(t, ok)
	assert.Equal(t, "from-first", v)

	v, ok = unit.Entries[1].Lookup("Shared")
	require.True(t, ok)
	assert.Equal(t, "from-second", v)

	_, ok = unit.Entries[0].Lookup("OnlySecond")
	assert.False(t, ok)
}

func TestLookup(t *testing.T) {
	unit, err := Parse([]byte(`
var Answer = 42

func Greet(name string) string { return "hi " + name }

var hidden = "nope"
`))
	require.NoError(t, err)
	entry := unit.Entries[0]

	t.Run("variable", func(t *testing.T) {
		v, ok := entry.Lookup("Answer")
		require.True(t, ok)
		assert.Equal(t, 42, v)
	})

	t.Run("function is callable", func(t *testing.T) {
		v, ok := entry.Lookup("Greet")
		require.True(t, ok)
		fn, ok := v.(func(string) string)
		require.True(t, ok, "Greet has unexpected signature")
		assert.Equal(t, "hi bob", fn("bob"))
	})

	t.Run("unexported names never resolve", func(t *testing.T) {
		_, ok := entry.Lookup("hidden")
		assert.False(t, ok)
	})

	t.Run("unknown name misses", func(t *testing.T) {
		_, ok := entry.Lookup("Nope")
		assert.False(t, ok)
	})

	t.Run("repeat lookups return the cached value", func(t *testing.T) {
		a, ok := entry.Lookup("Answer")
		require.True(t, ok)
		b, ok := entry.Lookup("Answer")
		require.True(t, ok)
		assert.Equal(t, a, b)
	})
}

func TestParseAllowedImport(t *testing.T) {
	unit, err := Parse([]byte(`
import "strings"

func Upper(s string) string { return strings.ToUpper(s) }
`))
	require.NoError(t, err)

	v, ok := unit.Entries[0].Lookup("Upper")
	require.True(t, ok)
	fn := v.(func(string) string)
	assert.Equal(t, "ABC", fn("abc"))
}

func TestParseErrors(t *testing.T) {
	t.Run("empty container", func(t *testing.T) {
		_, err := Parse([]byte("   \n\t\n"))
		assert.ErrorIs(t, err, ErrParse)
	})

	t.Run("empty section", func(t *testing.T) {
		_, err := Parse([]byte("-- a --\n\n-- b --\nvar X = 1\n"))
		assert.ErrorIs(t, err, ErrParse)
	})

	t.Run("invalid code", func(t *testing.T) {
		_, err := Parse([]byte("var Broken = \n"))
		assert.ErrorIs(t, err, ErrParse)
	})

	t.Run("forbidden import", func(t *testing.T) {
		_, err := Parse([]byte(`
import "os"

var Home = os.Getenv("HOME")
`))
		require.ErrorIs(t, err, ErrParse)
		assert.Contains(t, err.Error(), "forbidden import")
	})

	t.Run("forbidden import in block", func(t *testing.T) {
		_, err := Parse([]byte(`
import (
	"strings"
	"net/http"
)

var C = http.DefaultClient
var S = strings.ToUpper("x")
`))
		assert.ErrorIs(t, err, ErrParse)
	})

	t.Run("custom whitelist", func(t *testing.T) {
		_, err := Parse([]byte(`
import "strings"

func Upper(s string) string { return strings.ToUpper(s) }
`), WithAllowedImports([]string{"fmt"}))
		assert.ErrorIs(t, err, ErrParse)
	})
}

func TestParseWithExplicitPackageClause(t *testing.T) {
	unit, err := Parse([]byte("package main\n\nvar V = 7\n"))
	require.NoError(t, err)
	v, ok := unit.Entries[0].Lookup("V")
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestUnitIDsAreUnique(t *testing.T) {
	src := []byte("var X = 1\n")
	a, err := Parse(src)
	require.NoError(t, err)
	b, err := Parse(src)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

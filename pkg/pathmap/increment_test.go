package pathmap_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plmrlnsnts/http-extended/pkg/pathmap"
)

type page int

func TestPathMap_Increment(t *testing.T) {
	t.Parallel()

	m := pathmap.New()
	m.Set("page", 1)
	require.NoError(t, m.Increment("page", 1))
	assert.Equal(t, 2, m.Get("page", nil))

	m.Set("nested.count", int64(10))
	require.NoError(t, m.Increment("nested.count", -3))
	assert.Equal(t, int64(7), m.Get("nested.count", nil))

	m.Set("custom", page(5))
	require.NoError(t, m.Increment("custom", 2))
	assert.Equal(t, page(7), m.Get("custom", nil))

	m.Set("uint", uint8(1))
	require.NoError(t, m.Increment("uint", 1))
	assert.Equal(t, uint8(2), m.Get("uint", nil))
}

func TestPathMap_Increment_Float(t *testing.T) {
	t.Parallel()

	m := pathmap.New()
	m.Set("int", 1)
	require.NoError(t, m.Increment("int", 0.5))
	assert.Equal(t, 1.5, m.Get("int", nil))

	m.Set("float", 1.25)
	require.NoError(t, m.Increment("float", 1))
	assert.Equal(t, 2.25, m.Get("float", nil))
}

func TestPathMap_Increment_Missing(t *testing.T) {
	t.Parallel()

	m := pathmap.New()
	err := m.Increment("page", 1)
	require.Error(t, err)
	var arithmeticErr *pathmap.ArithmeticError
	require.True(t, errors.As(err, &arithmeticErr))
	assert.False(t, arithmeticErr.Found)
	assert.Equal(t, `cannot increment "page": value not found`, err.Error())

	// Nothing is written
	assert.True(t, m.IsEmpty())
}

func TestPathMap_Increment_NotNumber(t *testing.T) {
	t.Parallel()

	m := pathmap.New()
	m.Set("page", "1")
	err := m.Increment("page", 1)
	require.Error(t, err)
	assert.Equal(t, `cannot increment "page": value of type string is not a number`, err.Error())
	assert.Equal(t, "1", m.Get("page", nil))

	m.Set("count", 1)
	err = m.Increment("count", "1")
	require.Error(t, err)
	assert.Equal(t, `cannot increment "count": delta of type string is not a number`, err.Error())
	assert.Equal(t, 1, m.Get("count", nil))
}

func TestPathMap_Increment_Map(t *testing.T) {
	t.Parallel()

	m := pathmap.New()
	m.Set("a.b", 1)
	err := m.Increment("a", 1)
	require.Error(t, err)
	assert.Equal(t, `cannot increment "a": value of type map[string]interface {} is not a number`, err.Error())
}

func TestPathMap_Increment_Overflow(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		current  any
		delta    any
		expected any
	}{
		{name: "uint below zero", current: uint(0), delta: -1, expected: float64(-1)},
		{name: "int8 above max", current: int8(127), delta: 1, expected: float64(128)},
		{name: "int8 below min", current: int8(-128), delta: -1, expected: float64(-129)},
		{name: "int64 above max", current: int64(math.MaxInt64), delta: 1, expected: float64(math.MaxInt64) + 1},
		{name: "uint64 delta", current: 1, delta: uint64(math.MaxUint64), expected: float64(math.MaxUint64) + 1},
		{name: "int8 fits", current: int8(126), delta: 1, expected: int8(127)},
		{name: "uint fits", current: uint(1), delta: -1, expected: uint(0)},
	}

	for _, tc := range cases {
		m := pathmap.New()
		m.Set("count", tc.current)
		require.NoError(t, m.Increment("count", tc.delta), tc.name)
		assert.Equal(t, tc.expected, m.Get("count", nil), tc.name)
	}
}

func TestPathMap_Increment_ListItem(t *testing.T) {
	t.Parallel()

	m := pathmap.New()
	m.Set("pages", []int{1, 5})
	require.NoError(t, m.Increment("pages.1", 1))
	assert.Equal(t, []int{1, 6}, m.Get("pages", nil))
}

package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedArray_AppendToCapacity(t *testing.T) {
	a := NewFixedArray[int](4)
	for i := 0; i < 4; i++ {
		require.True(t, a.Append(i), "append %d should succeed", i)
	}
	assert.True(t, a.Full())
	assert.False(t, a.Append(99), "append beyond capacity must fail")
	assert.Equal(t, 4, a.Len())

	v, ok := a.At(2)
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestFixedArray_InsertAtShiftsUp(t *testing.T) {
	a := NewFixedArray[string](5)
	require.True(t, a.Append("a"))
	require.True(t, a.Append("c"))
	require.True(t, a.InsertAt(1, "b"))

	var got []string
	a.ForEach(func(_ int, v string) bool { got = append(got, v); return true })
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestFixedArray_InsertAtBounds(t *testing.T) {
	a := NewFixedArray[int](2)
	require.True(t, a.Append(1))
	require.True(t, a.Append(2))
	assert.False(t, a.InsertAt(1, 3), "full array rejects insert")
	assert.False(t, a.InsertAt(-1, 3))
	assert.False(t, a.InsertAt(10, 3))
}

func TestFixedArray_RemoveAtShiftsDown(t *testing.T) {
	// spec.md §9: RemoveAt(index) shifts size-index-1 elements down,
	// not the off-by-one the C ancestor used.
	a := NewFixedArray[int](5)
	for _, v := range []int{10, 20, 30, 40} {
		require.True(t, a.Append(v))
	}
	require.True(t, a.RemoveAt(1)) // remove 20

	var got []int
	a.ForEach(func(_ int, v int) bool { got = append(got, v); return true })
	assert.Equal(t, []int{10, 30, 40}, got)
	assert.Equal(t, 3, a.Len())
}

func TestFixedArray_RemoveAtOutOfRange(t *testing.T) {
	a := NewFixedArray[int](3)
	require.True(t, a.Append(1))
	assert.False(t, a.RemoveAt(-1))
	assert.False(t, a.RemoveAt(5))
}

func TestFixedArray_IterationOrderIsInsertionOrder(t *testing.T) {
	a := NewFixedArray[int](10)
	for i := 0; i < 10; i++ {
		require.True(t, a.Append(i))
	}
	i := 0
	a.ForEach(func(_ int, v int) bool {
		assert.Equal(t, i, v)
		i++
		return true
	})
}

func TestFixedArray_IndexFunc(t *testing.T) {
	a := NewFixedArray[int](5)
	for _, v := range []int{5, 10, 15} {
		require.True(t, a.Append(v))
	}
	assert.Equal(t, 1, a.IndexFunc(func(v int) bool { return v == 10 }))
	assert.Equal(t, -1, a.IndexFunc(func(v int) bool { return v == 99 }))
}

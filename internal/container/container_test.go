package container

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVectorPushGrowth(t *testing.T) {
	v := NewVector[int](0)
	for i := 0; i < 100; i++ {
		v.Push(i)
	}
	require.Equal(t, 100, v.Len())
	require.Equal(t, 42, *v.Get(42))

	val, ok := v.Pop()
	require.True(t, ok)
	require.Equal(t, 99, val)
	require.Equal(t, 99, v.Len())
}

func TestVectorSwapRemove(t *testing.T) {
	v := NewVector[string](4)
	v.Push("a")
	v.Push("b")
	v.Push("c")
	require.True(t, v.SwapRemove(0))
	require.Equal(t, []string{"c", "b"}, v.Slice())
}

func TestArrayFixedLength(t *testing.T) {
	a, err := NewArray[int](3)
	require.NoError(t, err)
	require.Equal(t, 3, a.Len())
	require.True(t, a.Set(1, 7))
	require.Equal(t, 7, *a.Get(1))
	require.False(t, a.Set(10, 1))
}

func TestQueueFIFOFailsOnFull(t *testing.T) {
	q := NewQueue[int](2)
	require.True(t, q.Enqueue(1))
	require.True(t, q.Enqueue(2))
	require.False(t, q.Enqueue(3))

	v, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, 1, v)

	require.True(t, q.Enqueue(3))
	v, ok = q.Dequeue()
	require.True(t, ok)
	require.Equal(t, 2, v)
	v, ok = q.Dequeue()
	require.True(t, ok)
	require.Equal(t, 3, v)
	require.True(t, q.Empty())
}

func TestHashTableSetGetDeleteWithTombstones(t *testing.T) {
	h := NewHashTable[string, int](8, func(s string) uint64 {
		var x uint64
		for i := 0; i < len(s); i++ {
			x = x*31 + uint64(s[i])
		}
		return x
	})
	h.Set("a", 1)
	h.Set("b", 2)
	h.Set("c", 3)
	require.True(t, h.Delete("b"))

	// "c" must still be reachable even though its probe chain may have
	// crossed the tombstone left by "b".
	v, ok := h.Get("c")
	require.True(t, ok)
	require.Equal(t, 3, v)

	_, ok = h.Get("b")
	require.False(t, ok)
	require.Equal(t, 2, h.Len())
}

func TestHashTableGrowPreservesEntries(t *testing.T) {
	h := NewHashTable[int, int](8, func(k int) uint64 { return uint64(k) })
	for i := 0; i < 50; i++ {
		h.Set(i, i*i)
	}
	for i := 0; i < 50; i++ {
		v, ok := h.Get(i)
		require.True(t, ok)
		require.Equal(t, i*i, v)
	}
}

func TestBitsetIncludeExclude(t *testing.T) {
	sig := NewBitset(8)
	sig.Set(1)
	sig.Set(3)

	include := NewBitset(8)
	include.Set(1)
	require.True(t, sig.ContainsAll(include))

	exclude := NewBitset(8)
	exclude.Set(5)
	require.False(t, sig.Intersects(exclude))

	exclude.Set(3)
	require.True(t, sig.Intersects(exclude))
}

func TestString8Equal(t *testing.T) {
	a := NewString8("present")
	b := NewString8("present")
	require.True(t, a.Equal(b))
	require.Equal(t, "present", a.String())
}

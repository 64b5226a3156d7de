package trie

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrie_EmptyGetMisses(t *testing.T) {
	tr := New()
	_, ok := Get[int](tr, "a")
	require.False(t, ok)
}

func TestTrie_PutGetRoundTrip(t *testing.T) {
	tr := New()
	tr2 := Put(tr, "hello", 42)

	v, ok := Get[int](tr2, "hello")
	require.True(t, ok)
	require.Equal(t, 42, v)

	_, ok = Get[int](tr, "hello")
	require.False(t, ok, "original trie must be unaffected by Put")
}

func TestTrie_PutOverwritesValue(t *testing.T) {
	tr := Put(New(), "k", 1)
	tr2 := Put(tr, "k", 2)

	v, _ := Get[int](tr, "k")
	require.Equal(t, 1, v)
	v2, _ := Get[int](tr2, "k")
	require.Equal(t, 2, v2)
}

func TestTrie_SharedPrefixIndependence(t *testing.T) {
	tr := Put(New(), "app", 1)
	tr = Put(tr, "apple", 2)
	tr2 := Put(tr, "app", 100)

	v, _ := Get[int](tr2, "app")
	require.Equal(t, 100, v)
	v2, _ := Get[int](tr2, "apple")
	require.Equal(t, 2, v2)

	v3, _ := Get[int](tr, "app")
	require.Equal(t, 1, v3)
}

// TestTrie_TypeMismatch covers retrieving a key at the wrong type
// parameter.
func TestTrie_TypeMismatch(t *testing.T) {
	t1 := Put[uint32](New(), "a", 1)
	t2 := Put[string](t1, "a", "x")

	_, ok := Get[string](t1, "a")
	require.False(t, ok, "t1's value is a uint32, not a string")

	_, ok = Get[uint32](t2, "a")
	require.False(t, ok, "t2's value is a string, not a uint32")

	s, ok := Get[string](t2, "a")
	require.True(t, ok)
	require.Equal(t, "x", s)

	n, ok := Get[uint32](t1, "a")
	require.True(t, ok)
	require.Equal(t, uint32(1), n)
}

func TestTrie_RemovePropagatesUpwardThroughEmptyAncestors(t *testing.T) {
	tr := Put(New(), "abc", 1)
	tr = Remove(tr, "abc")

	_, ok := Get[int](tr, "abc")
	require.False(t, ok)
	require.Nil(t, tr.root, "every ancestor left empty and valueless must be omitted")
}

func TestTrie_RemoveKeepsSiblingBranch(t *testing.T) {
	tr := Put(New(), "abc", 1)
	tr = Put(tr, "abd", 2)
	tr = Remove(tr, "abc")

	_, ok := Get[int](tr, "abc")
	require.False(t, ok)
	v, ok := Get[int](tr, "abd")
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestTrie_RemoveAbsentKeyIsNoop(t *testing.T) {
	tr := Put(New(), "a", 1)
	tr2 := Remove(tr, "nonexistent")
	require.Same(t, tr, tr2)
}

func TestTrie_RemoveKeepsValuedAncestorEvenWhenChildless(t *testing.T) {
	tr := Put(New(), "a", 1)
	tr = Put(tr, "ab", 2)
	tr = Remove(tr, "ab")

	v, ok := Get[int](tr, "a")
	require.True(t, ok)
	require.Equal(t, 1, v)
	_, ok = Get[int](tr, "ab")
	require.False(t, ok)
}

package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplacer_EvictsOnlyEvictableFrames(t *testing.T) {
	r := NewReplacer(4, 2)
	r.RecordAccess(0)
	r.RecordAccess(1)

	_, ok := r.Evict()
	require.False(t, ok, "no frame is evictable yet")

	r.SetEvictable(0, true)
	id, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, 0, id)
}

func TestReplacer_InfinitePrefixBeatsFiniteSuffix(t *testing.T) {
	r := NewReplacer(4, 2)
	// frame 0 gets two accesses (finite K-distance); frame 1 gets one
	// (infinite K-distance). The infinite prefix must evict first.
	r.RecordAccess(0)
	r.RecordAccess(0)
	r.RecordAccess(1)
	r.SetEvictable(0, true)
	r.SetEvictable(1, true)

	id, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, 1, id)
}

// TestReplacer_KDistancePrecedence covers access order 1,2,3,1,2,3
// (all evictable): must evict 1, then 2, then 3.
func TestReplacer_KDistancePrecedence(t *testing.T) {
	r := NewReplacer(4, 2)
	for _, f := range []int{1, 2, 3, 1, 2, 3} {
		r.RecordAccess(f)
	}
	r.SetEvictable(1, true)
	r.SetEvictable(2, true)
	r.SetEvictable(3, true)

	for _, want := range []int{1, 2, 3} {
		got, ok := r.Evict()
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	_, ok := r.Evict()
	require.False(t, ok)
}

func TestReplacer_SetEvictableTogglesSize(t *testing.T) {
	r := NewReplacer(4, 2)
	r.RecordAccess(0)
	require.Equal(t, 0, r.Size())

	r.SetEvictable(0, true)
	require.Equal(t, 1, r.Size())

	r.SetEvictable(0, true) // idempotent
	require.Equal(t, 1, r.Size())

	r.SetEvictable(0, false)
	require.Equal(t, 0, r.Size())
}

func TestReplacer_RemovePanicsOnPinnedFrame(t *testing.T) {
	r := NewReplacer(4, 2)
	r.RecordAccess(0)
	require.Panics(t, func() { r.Remove(0) })
}

func TestReplacer_RemoveOnUnknownFrameIsNoop(t *testing.T) {
	r := NewReplacer(4, 2)
	require.NotPanics(t, func() { r.Remove(99) })
}

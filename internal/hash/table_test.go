package hash

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duskdb/duskdb/internal/buffer"
	"github.com/duskdb/duskdb/internal/disk"
)

func u32Codec() Codec[uint32, uint32] {
	return Codec[uint32, uint32]{
		KeySize:   4,
		ValueSize: 4,
		EncodeKey: func(k uint32, b []byte) { binary.LittleEndian.PutUint32(b, k) },
		DecodeKey: func(b []byte) uint32 { return binary.LittleEndian.Uint32(b) },
		EncodeValue: func(v uint32, b []byte) { binary.LittleEndian.PutUint32(b, v) },
		DecodeValue: func(b []byte) uint32 { return binary.LittleEndian.Uint32(b) },
		Hash:        func(k uint32) uint32 { return k }, // identity: lets tests pick exact hash bit patterns
		Compare: func(a, b uint32) int {
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			default:
				return 0
			}
		},
	}
}

func newTestTable(t *testing.T, bucketMaxSize uint32) (*Table[uint32, uint32], *buffer.Pool) {
	t.Helper()
	dm, err := disk.Open(filepath.Join(t.TempDir(), "data.db"), true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	pool := buffer.NewPool(64, 2, dm, nil, nil)
	t.Cleanup(pool.Close)

	table := NewTable[uint32, uint32](pool, u32Codec(), 4, 4, bucketMaxSize, nil)
	return table, pool
}

func TestTable_InsertGetRoundTrip(t *testing.T) {
	table, _ := newTestTable(t, 4)

	require.True(t, table.Insert(1, 100))
	require.True(t, table.Insert(2, 200))
	require.False(t, table.Insert(1, 999)) // duplicate rejected

	v, ok := table.Get(1)
	require.True(t, ok)
	require.Equal(t, uint32(100), v)

	v, ok = table.Get(2)
	require.True(t, ok)
	require.Equal(t, uint32(200), v)

	_, ok = table.Get(3)
	require.False(t, ok)
}

// TestTable_SplitOnOverflow covers bucket_max_size=2: inserting hashes
// 0b000, 0b100, 0b010, 0b110 (identity hash here) causes a split after
// the third insert.
func TestTable_SplitOnOverflow(t *testing.T) {
	table, _ := newTestTable(t, 2)

	require.True(t, table.Insert(0b000, 1))
	require.True(t, table.Insert(0b100, 2))
	require.True(t, table.Insert(0b010, 3))
	require.True(t, table.Insert(0b110, 4))

	for k, want := range map[uint32]uint32{0b000: 1, 0b100: 2, 0b010: 3, 0b110: 4} {
		v, ok := table.Get(k)
		require.True(t, ok, "key %b", k)
		require.Equal(t, want, v)
	}
}

// TestTable_RemoveMergesAndShrinks covers removing both members of the
// ..10 bucket: it merges with its split image (..00) and the directory
// shrinks from global_depth 2 to 1. Slot 1 still holds the bucket the
// first split left empty, at local depth 1, so it shrinks no further.
func TestTable_RemoveMergesAndShrinks(t *testing.T) {
	table, _ := newTestTable(t, 2)
	require.True(t, table.Insert(0b000, 1))
	require.True(t, table.Insert(0b100, 2))
	require.True(t, table.Insert(0b010, 3))
	require.True(t, table.Insert(0b110, 4))

	require.True(t, table.Remove(0b010))
	require.True(t, table.Remove(0b110))

	_, ok := table.Get(0b010)
	require.False(t, ok)
	_, ok = table.Get(0b110)
	require.False(t, ok)

	// Surviving keys remain reachable after the merge/shrink.
	v, ok := table.Get(0b000)
	require.True(t, ok)
	require.Equal(t, uint32(1), v)
	v, ok = table.Get(0b100)
	require.True(t, ok)
	require.Equal(t, uint32(2), v)
}

func TestTable_RemoveAbsentKeyReturnsFalse(t *testing.T) {
	table, _ := newTestTable(t, 4)
	require.True(t, table.Insert(1, 1))
	require.False(t, table.Remove(42))
}

package hash

import "encoding/binary"

const bucketHeaderSize = 8

// bucketView interprets a raw page buffer as a bucket page:
// [u32 max_size][u32 size][(K,V) entries[max_size]], entries sorted
// ascending by key under codec.Compare.
type bucketView[K, V any] struct {
	data  []byte
	codec Codec[K, V]
}

func newBucketView[K, V any](data []byte, codec Codec[K, V]) bucketView[K, V] {
	return bucketView[K, V]{data: data, codec: codec}
}

func (b bucketView[K, V]) Init(maxSize uint32) {
	binary.LittleEndian.PutUint32(b.data[0:4], maxSize)
	binary.LittleEndian.PutUint32(b.data[4:8], 0)
}

func (b bucketView[K, V]) MaxSize() uint32 { return binary.LittleEndian.Uint32(b.data[0:4]) }
func (b bucketView[K, V]) Size() uint32    { return binary.LittleEndian.Uint32(b.data[4:8]) }
func (b bucketView[K, V]) setSize(n uint32) { binary.LittleEndian.PutUint32(b.data[4:8], n) }

func (b bucketView[K, V]) IsFull() bool  { return b.Size() == b.MaxSize() }
func (b bucketView[K, V]) IsEmpty() bool { return b.Size() == 0 }

func (b bucketView[K, V]) entryOffset(i uint32) int {
	return bucketHeaderSize + int(i)*b.codec.entrySize()
}

func (b bucketView[K, V]) KeyAt(i uint32) K {
	off := b.entryOffset(i)
	return b.codec.DecodeKey(b.data[off : off+b.codec.KeySize])
}

func (b bucketView[K, V]) ValueAt(i uint32) V {
	off := b.entryOffset(i) + b.codec.KeySize
	return b.codec.DecodeValue(b.data[off : off+b.codec.ValueSize])
}

func (b bucketView[K, V]) EntryAt(i uint32) (K, V) { return b.KeyAt(i), b.ValueAt(i) }

func (b bucketView[K, V]) setEntry(i uint32, key K, value V) {
	off := b.entryOffset(i)
	b.codec.EncodeKey(key, b.data[off:off+b.codec.KeySize])
	b.codec.EncodeValue(value, b.data[off+b.codec.KeySize:off+b.codec.entrySize()])
}

// search returns the index of key if present (found=true), or the
// insertion point that keeps entries sorted (found=false).
func (b bucketView[K, V]) search(key K) (idx uint32, found bool) {
	lo, hi := uint32(0), b.Size()
	for lo < hi {
		mid := (lo + hi) / 2
		c := b.codec.Compare(b.KeyAt(mid), key)
		switch {
		case c == 0:
			return mid, true
		case c < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false
}

// Lookup returns the value stored under key, if present.
func (b bucketView[K, V]) Lookup(key K) (V, bool) {
	idx, found := b.search(key)
	if !found {
		var zero V
		return zero, false
	}
	return b.ValueAt(idx), true
}

// Insert places (key, value) in sorted position, shifting the tail
// right. Rejects duplicate keys and a full bucket.
func (b bucketView[K, V]) Insert(key K, value V) bool {
	if b.IsFull() {
		return false
	}
	idx, found := b.search(key)
	if found {
		return false
	}
	size := b.Size()
	for i := size; i > idx; i-- {
		k, v := b.EntryAt(i - 1)
		b.setEntry(i, k, v)
	}
	b.setEntry(idx, key, value)
	b.setSize(size + 1)
	return true
}

// Remove deletes key's entry, shifting the tail left. Returns false
// if key is absent.
func (b bucketView[K, V]) Remove(key K) bool {
	idx, found := b.search(key)
	if !found {
		return false
	}
	size := b.Size()
	for i := idx; i < size-1; i++ {
		k, v := b.EntryAt(i + 1)
		b.setEntry(i, k, v)
	}
	b.setSize(size - 1)
	return true
}

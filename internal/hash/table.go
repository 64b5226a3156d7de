package hash

import (
	"go.uber.org/zap"

	"github.com/duskdb/duskdb/internal/buffer"
	"github.com/duskdb/duskdb/internal/page"
)

// Table is a disk extendible hash table: a fixed header page fanning
// out to directory pages, each fanning out to bucket pages, entirely
// mediated through the buffer pool's page guards. header_max_depth,
// directory_max_depth, and bucket_max_size are fixed at construction.
type Table[K, V any] struct {
	pool  *buffer.Pool
	codec Codec[K, V]

	headerPageID      page.PageID
	headerMaxDepth    uint32
	directoryMaxDepth uint32
	bucketMaxSize     uint32

	logger *zap.Logger
}

// NewTable allocates and initializes a header page and returns a
// Table backed by it.
func NewTable[K, V any](pool *buffer.Pool, codec Codec[K, V], headerMaxDepth, directoryMaxDepth, bucketMaxSize uint32, logger *zap.Logger) *Table[K, V] {
	if logger == nil {
		logger = zap.NewNop()
	}
	id, guard := pool.NewPageGuarded()
	wg := guard.UpgradeWrite()
	newHeaderView(wg.Data()).Init(headerMaxDepth)
	wg.Drop()

	return &Table[K, V]{
		pool:              pool,
		codec:             codec,
		headerPageID:      id,
		headerMaxDepth:    headerMaxDepth,
		directoryMaxDepth: directoryMaxDepth,
		bucketMaxSize:     bucketMaxSize,
		logger:            logger,
	}
}

// Get returns the value stored under key, if present. It releases
// each page's guard as soon as the child page id is known, keeping
// the traversal read-only end to end.
func (t *Table[K, V]) Get(key K) (V, bool) {
	var zero V
	h := t.codec.Hash(key)

	headerGuard, ok := t.pool.FetchPageRead(t.headerPageID)
	if !ok {
		return zero, false
	}
	header := newHeaderView(headerGuard.Data())
	dirIdx := header.HashToDirectoryIndex(h)
	dirID := header.DirectoryPageID(dirIdx)
	headerGuard.Drop()
	if dirID == 0 {
		return zero, false
	}

	dirGuard, ok := t.pool.FetchPageRead(page.PageID(dirID))
	if !ok {
		return zero, false
	}
	dirView := newDirectoryView(dirGuard.Data())
	bucketIdx := dirView.HashToBucketIndex(h)
	bucketID := dirView.BucketPageID(bucketIdx)
	dirGuard.Drop()
	if bucketID == 0 {
		return zero, false
	}

	bucketGuard, ok := t.pool.FetchPageRead(page.PageID(bucketID))
	if !ok {
		return zero, false
	}
	bv := newBucketView(bucketGuard.Data(), t.codec)
	value, found := bv.Lookup(key)
	bucketGuard.Drop()
	return value, found
}

// Insert places (key, value) in the table, splitting buckets and
// growing the directory as needed. Returns false on a duplicate key
// or if the split ladder is exhausted at directory_max_depth.
func (t *Table[K, V]) Insert(key K, value V) bool {
	h := t.codec.Hash(key)

	headerGuard, ok := t.pool.FetchPageWrite(t.headerPageID)
	if !ok {
		return false
	}
	header := newHeaderView(headerGuard.Data())
	dirIdx := header.HashToDirectoryIndex(h)
	dirIDu32 := header.DirectoryPageID(dirIdx)

	var dirGuard buffer.WritePageGuard
	if dirIDu32 == 0 {
		newID, basic := t.pool.NewPageGuarded()
		if !basic.Valid() {
			headerGuard.Drop()
			return false
		}
		dirGuard = basic.UpgradeWrite()
		newDirectoryView(dirGuard.Data()).Init(t.directoryMaxDepth)
		header.SetDirectoryPageID(dirIdx, uint32(newID))
		headerGuard.Drop()
		dirIDu32 = uint32(newID)
	} else {
		headerGuard.Drop()
		g, ok := t.pool.FetchPageWrite(page.PageID(dirIDu32))
		if !ok {
			return false
		}
		dirGuard = g
	}
	dirView := newDirectoryView(dirGuard.Data())

	bucketIdx := dirView.HashToBucketIndex(h)
	bucketIDu32 := dirView.BucketPageID(bucketIdx)

	var bucketGuard buffer.WritePageGuard
	if bucketIDu32 == 0 {
		newID, basic := t.pool.NewPageGuarded()
		if !basic.Valid() {
			dirGuard.Drop()
			return false
		}
		bucketGuard = basic.UpgradeWrite()
		newBucketView(bucketGuard.Data(), t.codec).Init(t.bucketMaxSize)
		dirView.SetBucketPageID(bucketIdx, uint32(newID))
		bucketIDu32 = uint32(newID)
	} else {
		g, ok := t.pool.FetchPageWrite(page.PageID(bucketIDu32))
		if !ok {
			dirGuard.Drop()
			return false
		}
		bucketGuard = g
	}
	bv := newBucketView(bucketGuard.Data(), t.codec)

	if _, found := bv.search(key); found {
		bucketGuard.Drop()
		dirGuard.Drop()
		return false
	}

	for bv.IsFull() {
		localDepth := dirView.LocalDepth(bucketIdx)
		if uint32(localDepth) >= t.directoryMaxDepth {
			bucketGuard.Drop()
			dirGuard.Drop()
			return false
		}
		if uint32(localDepth) == dirView.GlobalDepth() {
			dirView.IncrGlobalDepth()
		}
		newLocalDepth := localDepth + 1

		size := dirView.Size()
		for i := uint32(0); i < size; i++ {
			if dirView.BucketPageID(i) == bucketIDu32 {
				dirView.SetLocalDepth(i, newLocalDepth)
			}
		}

		id1, basic1 := t.pool.NewPageGuarded()
		if !basic1.Valid() {
			bucketGuard.Drop()
			dirGuard.Drop()
			return false
		}
		id2, basic2 := t.pool.NewPageGuarded()
		if !basic2.Valid() {
			basic1.Drop()
			bucketGuard.Drop()
			dirGuard.Drop()
			return false
		}
		wg1 := basic1.UpgradeWrite()
		wg2 := basic2.UpgradeWrite()
		bv1 := newBucketView(wg1.Data(), t.codec)
		bv2 := newBucketView(wg2.Data(), t.codec)
		bv1.Init(t.bucketMaxSize)
		bv2.Init(t.bucketMaxSize)

		distinguishingBit := uint32(1) << (newLocalDepth - 1)
		oldSize := bv.Size()
		for i := uint32(0); i < oldSize; i++ {
			k, v := bv.EntryAt(i)
			if t.codec.Hash(k)&distinguishingBit == 0 {
				bv1.Insert(k, v)
			} else {
				bv2.Insert(k, v)
			}
		}

		for i := uint32(0); i < size; i++ {
			if dirView.BucketPageID(i) == bucketIDu32 {
				if i&distinguishingBit == 0 {
					dirView.SetBucketPageID(i, uint32(id1))
				} else {
					dirView.SetBucketPageID(i, uint32(id2))
				}
			}
		}

		bucketGuard.Drop()
		t.pool.DeletePage(page.PageID(bucketIDu32))

		bucketIdx = dirView.HashToBucketIndex(h)
		newBucketIDu32 := dirView.BucketPageID(bucketIdx)
		if newBucketIDu32 == uint32(id1) {
			wg2.Drop()
			bucketGuard = wg1
			bucketIDu32 = uint32(id1)
		} else {
			wg1.Drop()
			bucketGuard = wg2
			bucketIDu32 = uint32(id2)
		}
		bv = newBucketView(bucketGuard.Data(), t.codec)
	}

	ok = bv.Insert(key, value)
	bucketGuard.Drop()
	dirGuard.Drop()
	return ok
}

// Remove deletes key's entry, merging emptied buckets with their
// split image and shrinking the directory while possible. Returns
// false if key is absent.
func (t *Table[K, V]) Remove(key K) bool {
	h := t.codec.Hash(key)

	headerGuard, ok := t.pool.FetchPageRead(t.headerPageID)
	if !ok {
		return false
	}
	header := newHeaderView(headerGuard.Data())
	dirIdx := header.HashToDirectoryIndex(h)
	dirIDu32 := header.DirectoryPageID(dirIdx)
	headerGuard.Drop()
	if dirIDu32 == 0 {
		return false
	}

	dirGuard, ok := t.pool.FetchPageWrite(page.PageID(dirIDu32))
	if !ok {
		return false
	}
	dirView := newDirectoryView(dirGuard.Data())
	bucketIdx := dirView.HashToBucketIndex(h)
	bucketIDu32 := dirView.BucketPageID(bucketIdx)
	if bucketIDu32 == 0 {
		dirGuard.Drop()
		return false
	}

	bucketGuard, ok := t.pool.FetchPageWrite(page.PageID(bucketIDu32))
	if !ok {
		dirGuard.Drop()
		return false
	}
	bv := newBucketView(bucketGuard.Data(), t.codec)

	if !bv.Remove(key) {
		bucketGuard.Drop()
		dirGuard.Drop()
		return false
	}

	for bv.IsEmpty() {
		localDepth := dirView.LocalDepth(bucketIdx)
		if localDepth == 0 {
			break
		}
		splitIdx := dirView.GetSplitImageIndex(bucketIdx)
		if dirView.LocalDepth(splitIdx) != localDepth {
			break
		}
		survivorID := dirView.BucketPageID(splitIdx)
		if survivorID == bucketIDu32 {
			break
		}

		size := dirView.Size()
		for i := uint32(0); i < size; i++ {
			bid := dirView.BucketPageID(i)
			if bid == bucketIDu32 || bid == survivorID {
				dirView.SetBucketPageID(i, survivorID)
				dirView.DecrLocalDepth(i)
			}
		}

		bucketGuard.Drop()
		t.pool.DeletePage(page.PageID(bucketIDu32))

		bucketIdx = dirView.HashToBucketIndex(h)
		bucketIDu32 = survivorID
		g, ok := t.pool.FetchPageWrite(page.PageID(bucketIDu32))
		if !ok {
			dirGuard.Drop()
			return true
		}
		bucketGuard = g
		bv = newBucketView(bucketGuard.Data(), t.codec)
	}
	bucketGuard.Drop()

	for dirView.CanShrink() {
		dirView.DecrGlobalDepth()
	}
	dirGuard.Drop()
	return true
}

package hash

import "encoding/binary"

const directoryHeaderSize = 8

// directoryView interprets a raw page buffer as a directory page:
// [u32 max_depth][u32 global_depth][u32 bucket_page_ids[2^max_depth]]
// [u8 local_depths[2^max_depth]].
type directoryView struct {
	data []byte
}

func newDirectoryView(data []byte) directoryView { return directoryView{data: data} }

func (d directoryView) bucketIDsOffset() int { return directoryHeaderSize }
func (d directoryView) localDepthsOffset(maxDepth uint32) int {
	return directoryHeaderSize + int(uint32(1)<<maxDepth)*4
}

// Init writes maxDepth, sets global_depth to 0, and zero-fills the
// bucket id and local depth arrays.
func (d directoryView) Init(maxDepth uint32) {
	binary.LittleEndian.PutUint32(d.data[0:4], maxDepth)
	binary.LittleEndian.PutUint32(d.data[4:8], 0)
	size := int(uint32(1) << maxDepth)
	bOff := d.bucketIDsOffset()
	for i := 0; i < size; i++ {
		binary.LittleEndian.PutUint32(d.data[bOff+i*4:bOff+i*4+4], 0)
	}
	lOff := d.localDepthsOffset(maxDepth)
	for i := 0; i < size; i++ {
		d.data[lOff+i] = 0
	}
}

func (d directoryView) MaxDepth() uint32 { return binary.LittleEndian.Uint32(d.data[0:4]) }
func (d directoryView) GlobalDepth() uint32 { return binary.LittleEndian.Uint32(d.data[4:8]) }
func (d directoryView) setGlobalDepth(v uint32) { binary.LittleEndian.PutUint32(d.data[4:8], v) }

// Size returns the number of live slots, 2^global_depth.
func (d directoryView) Size() uint32 { return uint32(1) << d.GlobalDepth() }

// HashToBucketIndex takes the low global_depth bits of a 32-bit hash.
func (d directoryView) HashToBucketIndex(hash uint32) uint32 {
	return hash & (d.Size() - 1)
}

func (d directoryView) BucketPageID(i uint32) uint32 {
	off := d.bucketIDsOffset() + int(i)*4
	return binary.LittleEndian.Uint32(d.data[off : off+4])
}

func (d directoryView) SetBucketPageID(i uint32, id uint32) {
	off := d.bucketIDsOffset() + int(i)*4
	binary.LittleEndian.PutUint32(d.data[off:off+4], id)
}

func (d directoryView) LocalDepth(i uint32) uint8 {
	off := d.localDepthsOffset(d.MaxDepth()) + int(i)
	return d.data[off]
}

func (d directoryView) SetLocalDepth(i uint32, depth uint8) {
	off := d.localDepthsOffset(d.MaxDepth()) + int(i)
	d.data[off] = depth
}

func (d directoryView) IncrLocalDepth(i uint32) { d.SetLocalDepth(i, d.LocalDepth(i)+1) }
func (d directoryView) DecrLocalDepth(i uint32) { d.SetLocalDepth(i, d.LocalDepth(i)-1) }

// GetSplitImageIndex flips slot i's highest local bit: i ^ (1 <<
// (local_depth[i]-1)). Masking by global_depth instead (as some
// extendible-hashing references do) is wrong once global_depth
// exceeds a slot's local depth.
func (d directoryView) GetSplitImageIndex(i uint32) uint32 {
	ld := d.LocalDepth(i)
	if ld == 0 {
		return i
	}
	return i ^ (uint32(1) << (ld - 1))
}

// IncrGlobalDepth doubles the directory by mirroring every slot i
// into i+Size() (same bucket id, same local depth) before bumping
// global_depth.
func (d directoryView) IncrGlobalDepth() {
	size := d.Size()
	for i := uint32(0); i < size; i++ {
		d.SetBucketPageID(i+size, d.BucketPageID(i))
		d.SetLocalDepth(i+size, d.LocalDepth(i))
	}
	d.setGlobalDepth(d.GlobalDepth() + 1)
}

// CanShrink reports whether every live slot has local_depth <
// global_depth, the precondition for DecrGlobalDepth.
func (d directoryView) CanShrink() bool {
	gd := d.GlobalDepth()
	if gd == 0 {
		return false
	}
	size := d.Size()
	for i := uint32(0); i < size; i++ {
		if d.LocalDepth(i) >= uint8(gd) {
			return false
		}
	}
	return true
}

// DecrGlobalDepth halves the directory: zeroes the upper half and
// decrements global_depth. Caller must ensure CanShrink().
func (d directoryView) DecrGlobalDepth() {
	gd := d.GlobalDepth()
	newSize := d.Size() / 2
	for i := newSize; i < d.Size(); i++ {
		d.SetBucketPageID(i, 0)
		d.SetLocalDepth(i, 0)
	}
	d.setGlobalDepth(gd - 1)
}

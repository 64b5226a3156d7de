// Package hash implements an on-disk extendible hash index: a header
// page fanning out to directory pages, each fanning out to bucket
// pages, with directory doubling/halving and bucket split/merge
// driven entirely by page guards.
package hash

import "encoding/binary"

// headerHeaderSize is the size, in bytes, of a header page's fixed
// portion (max_depth), before the directory_page_ids array.
const headerHeaderSize = 4

// headerView interprets a raw page buffer as a header page:
// [u32 max_depth][u32 directory_page_ids[2^max_depth]]. Page ids are
// stored on disk as u32, independent of the wider in-memory
// page.PageID type.
type headerView struct {
	data []byte
}

func newHeaderView(data []byte) headerView { return headerView{data: data} }

// Init writes maxDepth and zero-fills the directory id slots.
func (h headerView) Init(maxDepth uint32) {
	binary.LittleEndian.PutUint32(h.data[0:4], maxDepth)
	size := int(1) << maxDepth
	for i := 0; i < size; i++ {
		binary.LittleEndian.PutUint32(h.data[headerHeaderSize+i*4:headerHeaderSize+i*4+4], 0)
	}
}

func (h headerView) MaxDepth() uint32 {
	return binary.LittleEndian.Uint32(h.data[0:4])
}

// HashToDirectoryIndex takes the top max_depth bits of a 32-bit hash.
func (h headerView) HashToDirectoryIndex(hash uint32) uint32 {
	maxDepth := h.MaxDepth()
	if maxDepth == 0 {
		return 0
	}
	return hash >> (32 - maxDepth)
}

func (h headerView) DirectoryPageID(i uint32) uint32 {
	off := headerHeaderSize + int(i)*4
	return binary.LittleEndian.Uint32(h.data[off : off+4])
}

func (h headerView) SetDirectoryPageID(i uint32, id uint32) {
	off := headerHeaderSize + int(i)*4
	binary.LittleEndian.PutUint32(h.data[off:off+4], id)
}

// Size returns the number of directory slots, 2^max_depth.
func (h headerView) Size() uint32 { return uint32(1) << h.MaxDepth() }

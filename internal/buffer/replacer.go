package buffer

import (
	"container/list"
	"fmt"
	"sync"
)

// lruKNode tracks one frame's bounded access history and evictable
// flag.
type lruKNode struct {
	frameID   int
	k         int
	history   []uint64 // bounded to k entries, oldest first; history[0] is the K-th most recent once full
	evictable bool
}

// record pushes ts into the bounded history and reports whether the
// node now has at least k accesses (i.e. has a finite backward
// K-distance).
func (n *lruKNode) record(ts uint64) bool {
	n.history = append(n.history, ts)
	if len(n.history) > n.k {
		n.history = n.history[1:]
	}
	return len(n.history) >= n.k
}

type location struct {
	inFinite bool
	elem     *list.Element
}

// Replacer implements the LRU-K eviction policy: an "infinite" prefix
// of frames with fewer than k accesses, ordered by
// classical LRU (most-recently-touched at the tail), followed by a
// "finite" suffix of frames with >=k accesses, ordered by ascending
// K-th-most-recent timestamp (equivalently, descending backward
// K-distance, since timestamps are monotonic).
type Replacer struct {
	mu       sync.Mutex
	k        int
	size     int // replacer capacity, i.e. number of frames it may track
	now      uint64
	currSize int

	nodes map[int]*lruKNode
	inf   *list.List
	fin   *list.List
	locs  map[int]location
}

// NewReplacer constructs a replacer tracking up to numFrames frames
// with the given K.
func NewReplacer(numFrames, k int) *Replacer {
	return &Replacer{
		k:     k,
		size:  numFrames,
		nodes: make(map[int]*lruKNode),
		inf:   list.New(),
		fin:   list.New(),
		locs:  make(map[int]location),
	}
}

func (r *Replacer) removeFromList(loc location) {
	if loc.inFinite {
		r.fin.Remove(loc.elem)
	} else {
		r.inf.Remove(loc.elem)
	}
}

// RecordAccess stamps a new access for frameID, creating its node on
// first sight.
func (r *Replacer) RecordAccess(frameID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.now++
	node, exists := r.nodes[frameID]
	if !exists {
		node = &lruKNode{frameID: frameID, k: r.k}
		r.nodes[frameID] = node
		elem := r.inf.PushBack(frameID)
		r.locs[frameID] = location{inFinite: false, elem: elem}
	}

	finite := node.record(r.now)
	loc := r.locs[frameID]
	r.removeFromList(loc)
	if finite {
		// Insert after the last node whose K-th-most-recent timestamp
		// is not newer than this node's, keeping the suffix sorted.
		kth := node.history[0]
		var elem *list.Element
		for e := r.fin.Back(); e != nil; e = e.Prev() {
			if r.nodes[e.Value.(int)].history[0] <= kth {
				elem = r.fin.InsertAfter(frameID, e)
				break
			}
		}
		if elem == nil {
			elem = r.fin.PushFront(frameID)
		}
		r.locs[frameID] = location{inFinite: true, elem: elem}
	} else {
		elem := r.inf.PushBack(frameID)
		r.locs[frameID] = location{inFinite: false, elem: elem}
	}
}

// SetEvictable flips frameID's evictable flag and adjusts the count of
// evictable frames accordingly.
func (r *Replacer) SetEvictable(frameID int, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	node, ok := r.nodes[frameID]
	if !ok {
		return
	}
	if node.evictable == evictable {
		return
	}
	node.evictable = evictable
	if evictable {
		r.currSize++
	} else {
		r.currSize--
	}
}

// Evict selects the first evictable node in list order (infinite
// prefix first, then finite suffix), removes it entirely, and returns
// its frame id. ok is false if no frame is evictable.
func (r *Replacer) Evict() (frameID int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.currSize == 0 {
		return 0, false
	}
	for e := r.inf.Front(); e != nil; e = e.Next() {
		id := e.Value.(int)
		if r.nodes[id].evictable {
			r.removeLocked(id)
			return id, true
		}
	}
	for e := r.fin.Front(); e != nil; e = e.Next() {
		id := e.Value.(int)
		if r.nodes[id].evictable {
			r.removeLocked(id)
			return id, true
		}
	}
	return 0, false
}

// Remove unconditionally removes frameID's tracking state. It panics
// if the node exists and is not evictable: that is an internal
// contract violation, not a reportable outcome.
func (r *Replacer) Remove(frameID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	node, ok := r.nodes[frameID]
	if !ok {
		return
	}
	if !node.evictable {
		panic(fmt.Sprintf("lru-k replacer: Remove(%d) on non-evictable frame", frameID))
	}
	r.removeLocked(frameID)
}

// removeLocked must be called with r.mu held.
func (r *Replacer) removeLocked(frameID int) {
	loc := r.locs[frameID]
	r.removeFromList(loc)
	delete(r.locs, frameID)
	delete(r.nodes, frameID)
	r.currSize--
}

// Size returns the number of currently evictable frames.
func (r *Replacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currSize
}

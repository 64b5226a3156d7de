// Package buffer implements the LRU-K replacement policy, the buffer
// pool manager, and the scoped page guards built on top of it.
package buffer

import (
	"sync"

	"go.uber.org/zap"

	"github.com/duskdb/duskdb/internal/disk"
	"github.com/duskdb/duskdb/internal/page"
)

// Metrics is the subset of pkg/telemetry.BufferPoolMetrics the pool
// drives. Kept as a small interface here so the buffer package does
// not import pkg/telemetry: telemetry only needs to be driven, not
// depended on.
type Metrics interface {
	RecordHit()
	RecordMiss()
	RecordEviction()
	SetPinned(n int)
}

type noopMetrics struct{}

func (noopMetrics) RecordHit()       {}
func (noopMetrics) RecordMiss()      {}
func (noopMetrics) RecordEviction()  {}
func (noopMetrics) SetPinned(int)    {}

// Pool is the buffer pool manager: it owns the frame array, free
// list, page table, and pin/dirty bookkeeping, and mediates all
// fetch/new/unpin/flush/delete traffic against the replacer and the
// disk scheduler.
type Pool struct {
	// poolMu guards the page table, free list, and replacer — never
	// held across an I/O wait or a per-frame latch acquisition.
	poolMu sync.Mutex

	frames    []*page.Page
	frameMu   []sync.Mutex // guards each frame's header fields (pin_count, is_dirty, page_id)
	pageTable map[page.PageID]int
	freeList  []int
	loading   map[page.PageID]chan struct{} // page ids currently being loaded from disk by another caller

	replacer  *Replacer
	device    disk.Device
	scheduler *disk.Scheduler
	logger    *zap.Logger
	metrics   Metrics

	pinned int // count of resident pages with pin_count > 0, for metrics only
}

// NewPool constructs a buffer pool of poolSize frames backed by
// device, using LRU-K with the given k.
func NewPool(poolSize, k int, device disk.Device, logger *zap.Logger, metrics Metrics) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	p := &Pool{
		frames:    make([]*page.Page, poolSize),
		frameMu:   make([]sync.Mutex, poolSize),
		pageTable: make(map[page.PageID]int, poolSize),
		freeList:  make([]int, poolSize),
		loading:   make(map[page.PageID]chan struct{}),
		replacer:  NewReplacer(poolSize, k),
		device:    device,
		scheduler: disk.NewScheduler(device, logger, nil),
		logger:    logger,
		metrics:   metrics,
	}
	for i := 0; i < poolSize; i++ {
		p.frames[i] = page.New()
		p.freeList[i] = i
	}
	logger.Info("buffer pool initialized", zap.Int("pool_size", poolSize), zap.Int("k", k))
	return p
}

// Close stops the pool's disk scheduler. Call once no further pool
// operations will occur.
func (p *Pool) Close() { p.scheduler.Stop() }

// reserveFrame pops a frame from the free list or evicts one via the
// replacer, flushing it first if dirty. Must be called without poolMu
// held; it acquires and releases poolMu internally, and never holds
// it across the flush's I/O wait.
func (p *Pool) reserveFrame() (int, bool) {
	p.poolMu.Lock()
	var frame int
	if n := len(p.freeList); n > 0 {
		frame = p.freeList[0]
		p.freeList = p.freeList[1:]
		p.poolMu.Unlock()
		return frame, true
	}
	frame, ok := p.replacer.Evict()
	if !ok {
		p.poolMu.Unlock()
		return 0, false
	}
	p.metrics.RecordEviction()
	victimID := p.frames[frame].ID()
	if victimID != page.InvalidPageID {
		delete(p.pageTable, victimID)
	}
	p.poolMu.Unlock()

	if victimID != page.InvalidPageID && p.frames[frame].IsDirty() {
		p.flushFrame(frame, victimID)
	}
	return frame, true
}

// flushFrame writes frame's contents to disk under the page's read
// latch and clears its dirty bit. Used both by explicit FlushPage and
// by eviction of a dirty victim.
func (p *Pool) flushFrame(frame int, pageID page.PageID) {
	pg := p.frames[frame]
	pg.RLock()
	req := disk.NewRequest(true, pageID, pg.Data())
	p.scheduler.Schedule(req)
	err := req.Wait()
	pg.RUnlock()
	if err != nil {
		p.logger.Error("flush failed", zap.Uint64("page_id", uint64(pageID)), zap.Error(err))
		return
	}
	p.frameMu[frame].Lock()
	pg.SetDirty(false)
	p.frameMu[frame].Unlock()
}

// NewPage allocates a fresh page id, pins it into a frame, and returns
// it. Returns (InvalidPageID, nil) if the pool is exhausted.
func (p *Pool) NewPage() (page.PageID, *page.Page) {
	frame, ok := p.reserveFrame()
	if !ok {
		return page.InvalidPageID, nil
	}
	newID, err := p.device.(interface {
		AllocatePage() (page.PageID, error)
	}).AllocatePage()
	if err != nil {
		p.logger.Error("allocate page failed", zap.Error(err))
		return page.InvalidPageID, nil
	}

	p.poolMu.Lock()
	p.pageTable[newID] = frame
	p.poolMu.Unlock()

	p.replacer.RecordAccess(frame)
	p.replacer.SetEvictable(frame, false)

	p.frameMu[frame].Lock()
	pg := p.frames[frame]
	pg.Reset()
	pg.SetID(newID)
	pg.SetPinCount(1)
	pg.SetDirty(true)
	p.frameMu[frame].Unlock()

	p.pinned++
	p.metrics.SetPinned(p.pinned)
	return newID, pg
}

// FetchPage returns the requested page, pinning it. It is resident
// already (a "hit") or loaded from disk (a "miss"). Concurrent callers
// racing on the same not-yet-resident pageID never both reach the hit
// branch against a half-loaded frame: the first caller to observe a
// miss becomes the sole loader for that id, and every other caller
// blocks on the loader's completion signal before re-checking.
func (p *Pool) FetchPage(pageID page.PageID) *page.Page {
	for {
		p.poolMu.Lock()
		if ch, loading := p.loading[pageID]; loading {
			p.poolMu.Unlock()
			<-ch
			continue
		}
		if frame, ok := p.pageTable[pageID]; ok {
			p.poolMu.Unlock()
			p.metrics.RecordHit()

			p.frameMu[frame].Lock()
			pg := p.frames[frame]
			firstPin := pg.PinCount() == 0
			pg.Pin()
			p.frameMu[frame].Unlock()

			p.replacer.RecordAccess(frame)
			if firstPin {
				p.replacer.SetEvictable(frame, false)
				p.pinned++
				p.metrics.SetPinned(p.pinned)
			}
			return pg
		}

		ch := make(chan struct{})
		p.loading[pageID] = ch
		p.poolMu.Unlock()
		p.metrics.RecordMiss()
		return p.loadPage(pageID, ch)
	}
}

// loadPage does the actual disk read for a page id this caller has
// exclusively claimed via p.loading, and always clears that claim
// (closing ch to release any blocked waiters) before returning.
func (p *Pool) loadPage(pageID page.PageID, ch chan struct{}) *page.Page {
	defer func() {
		p.poolMu.Lock()
		delete(p.loading, pageID)
		p.poolMu.Unlock()
		close(ch)
	}()

	frame, ok := p.reserveFrame()
	if !ok {
		return nil
	}

	p.replacer.RecordAccess(frame)
	p.replacer.SetEvictable(frame, false)

	pg := p.frames[frame]
	pg.RLock() // content access during load; no other path can reach this fresh frame yet, but this mirrors the latch discipline writers rely on
	req := disk.NewRequest(false, pageID, pg.Data())
	p.scheduler.Schedule(req)
	err := req.Wait()
	pg.RUnlock()

	p.frameMu[frame].Lock()
	if err != nil {
		p.logger.Error("fetch page failed", zap.Uint64("page_id", uint64(pageID)), zap.Error(err))
		pg.Reset()
		p.frameMu[frame].Unlock()

		p.replacer.SetEvictable(frame, true)
		p.replacer.Remove(frame)

		p.poolMu.Lock()
		p.freeList = append(p.freeList, frame)
		p.poolMu.Unlock()
		return nil
	}
	pg.SetID(pageID)
	pg.SetPinCount(1)
	pg.SetDirty(false)
	p.frameMu[frame].Unlock()

	p.poolMu.Lock()
	p.pageTable[pageID] = frame
	p.poolMu.Unlock()

	p.pinned++
	p.metrics.SetPinned(p.pinned)
	return pg
}

// UnpinPage decrements pageID's pin count and ORs isDirty into its
// dirty bit. Returns false if the page is not resident or already
// unpinned.
func (p *Pool) UnpinPage(pageID page.PageID, isDirty bool) bool {
	p.poolMu.Lock()
	frame, ok := p.pageTable[pageID]
	p.poolMu.Unlock()
	if !ok {
		return false
	}

	p.frameMu[frame].Lock()
	pg := p.frames[frame]
	if pg.PinCount() == 0 {
		p.frameMu[frame].Unlock()
		return false
	}
	pg.Unpin()
	if isDirty {
		pg.SetDirty(true)
	}
	reachedZero := pg.PinCount() == 0
	p.frameMu[frame].Unlock()

	if reachedZero {
		p.replacer.SetEvictable(frame, true)
		p.pinned--
		p.metrics.SetPinned(p.pinned)
	}
	return true
}

// FlushPage writes pageID's current contents to disk regardless of
// pin state.
func (p *Pool) FlushPage(pageID page.PageID) bool {
	p.poolMu.Lock()
	frame, ok := p.pageTable[pageID]
	p.poolMu.Unlock()
	if !ok {
		return false
	}
	p.flushFrame(frame, pageID)
	return true
}

// FlushAllPages flushes every resident page.
func (p *Pool) FlushAllPages() {
	p.poolMu.Lock()
	ids := make([]page.PageID, 0, len(p.pageTable))
	for id := range p.pageTable {
		ids = append(ids, id)
	}
	p.poolMu.Unlock()
	for _, id := range ids {
		p.FlushPage(id)
	}
}

// DeletePage removes pageID from the pool entirely, deallocating its
// id via the disk collaborator. Returns false only if the page is
// resident and still pinned; returns true (a no-op) if the page was
// never resident.
func (p *Pool) DeletePage(pageID page.PageID) bool {
	p.poolMu.Lock()
	frame, ok := p.pageTable[pageID]
	if !ok {
		p.poolMu.Unlock()
		return true
	}
	p.poolMu.Unlock()

	p.frameMu[frame].Lock()
	pinned := p.frames[frame].PinCount() > 0
	p.frameMu[frame].Unlock()
	if pinned {
		return false
	}

	p.poolMu.Lock()
	delete(p.pageTable, pageID)
	p.poolMu.Unlock()

	p.replacer.SetEvictable(frame, true)
	p.replacer.Remove(frame)

	p.frameMu[frame].Lock()
	p.frames[frame].Reset()
	p.frameMu[frame].Unlock()

	if dealloc, ok := p.device.(interface{ DeallocatePage(page.PageID) error }); ok {
		_ = dealloc.DeallocatePage(pageID)
	}

	p.poolMu.Lock()
	p.freeList = append(p.freeList, frame)
	p.poolMu.Unlock()
	return true
}

// NewPageGuarded is NewPage wrapped in a BasicPageGuard.
func (p *Pool) NewPageGuarded() (page.PageID, BasicPageGuard) {
	id, pg := p.NewPage()
	if pg == nil {
		return page.InvalidPageID, BasicPageGuard{}
	}
	return id, BasicPageGuard{pool: p, pg: pg, pageID: id, valid: true}
}

// FetchPageBasic is FetchPage wrapped in a BasicPageGuard.
func (p *Pool) FetchPageBasic(pageID page.PageID) (BasicPageGuard, bool) {
	pg := p.FetchPage(pageID)
	if pg == nil {
		return BasicPageGuard{}, false
	}
	return BasicPageGuard{pool: p, pg: pg, pageID: pageID, valid: true}, true
}

// FetchPageRead is FetchPage immediately upgraded to a ReadPageGuard.
func (p *Pool) FetchPageRead(pageID page.PageID) (ReadPageGuard, bool) {
	g, ok := p.FetchPageBasic(pageID)
	if !ok {
		return ReadPageGuard{}, false
	}
	return g.UpgradeRead(), true
}

// FetchPageWrite is FetchPage immediately upgraded to a WritePageGuard.
func (p *Pool) FetchPageWrite(pageID page.PageID) (WritePageGuard, bool) {
	g, ok := p.FetchPageBasic(pageID)
	if !ok {
		return WritePageGuard{}, false
	}
	return g.UpgradeWrite(), true
}

package buffer

import "github.com/duskdb/duskdb/internal/page"

// BasicPageGuard, ReadPageGuard, and WritePageGuard implement
// scoped-ownership page guards. Go has no destructors and no move
// semantics, so ownership transfer is modeled explicitly:
// Upgrade{Read,Write} invalidates the source guard before returning
// the new one, and Drop is idempotent so a guard that has already
// been upgraded, or already dropped, is inert on a second Drop.
// Callers are expected to treat a guard as moved-from after any of
// these calls, exactly as they would stop using a moved-from value in
// a language that enforces it at compile time.

// BasicPageGuard owns a pin on a page but claims no read/write latch
// on its contents. Its only purpose is to be upgraded.
type BasicPageGuard struct {
	pool   *Pool
	pg     *page.Page
	pageID page.PageID
	valid  bool
}

// PageID returns the guarded page's id.
func (g *BasicPageGuard) PageID() page.PageID { return g.pageID }

// Valid reports whether g still owns a pin (false if the pool was
// exhausted when it was created, or it has already been dropped or
// upgraded).
func (g *BasicPageGuard) Valid() bool { return g.valid }

// UpgradeRead consumes g and returns a ReadPageGuard holding the same
// pin plus the page's read latch.
func (g *BasicPageGuard) UpgradeRead() ReadPageGuard {
	pg, pool, id := g.pg, g.pool, g.pageID
	g.invalidate()
	pg.RLock()
	return ReadPageGuard{pool: pool, pg: pg, pageID: id, valid: true}
}

// UpgradeWrite consumes g and returns a WritePageGuard holding the
// same pin plus the page's write latch.
func (g *BasicPageGuard) UpgradeWrite() WritePageGuard {
	pg, pool, id := g.pg, g.pool, g.pageID
	g.invalidate()
	pg.Lock()
	return WritePageGuard{pool: pool, pg: pg, pageID: id, valid: true}
}

// Drop releases the pin without touching the dirty bit. Safe to call
// more than once.
func (g *BasicPageGuard) Drop() {
	if !g.valid {
		return
	}
	g.pool.UnpinPage(g.pageID, false)
	g.invalidate()
}

func (g *BasicPageGuard) invalidate() {
	g.valid = false
	g.pool = nil
	g.pg = nil
}

// ReadPageGuard holds a pin and the page's read latch. Data returns
// the page's bytes; callers must not mutate what it returns.
type ReadPageGuard struct {
	pool   *Pool
	pg     *page.Page
	pageID page.PageID
	valid  bool
}

func (g *ReadPageGuard) PageID() page.PageID { return g.pageID }
func (g *ReadPageGuard) Data() []byte        { return g.pg.Data() }

// Drop releases the read latch and the pin, in that order. Safe to
// call more than once.
func (g *ReadPageGuard) Drop() {
	if !g.valid {
		return
	}
	g.pg.RUnlock()
	g.pool.UnpinPage(g.pageID, false)
	g.valid = false
	g.pool = nil
	g.pg = nil
}

// WritePageGuard holds a pin and the page's write latch. Dropping it
// always marks the page dirty: any code that acquires a write guard
// is assumed to intend a mutation.
type WritePageGuard struct {
	pool   *Pool
	pg     *page.Page
	pageID page.PageID
	valid  bool
}

func (g *WritePageGuard) PageID() page.PageID { return g.pageID }
func (g *WritePageGuard) Data() []byte        { return g.pg.Data() }

// Drop releases the write latch and the pin, marking the page dirty.
// Safe to call more than once.
func (g *WritePageGuard) Drop() {
	if !g.valid {
		return
	}
	g.pg.Unlock()
	g.pool.UnpinPage(g.pageID, true)
	g.valid = false
	g.pool = nil
	g.pg = nil
}

package buffer

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duskdb/duskdb/internal/disk"
	"github.com/duskdb/duskdb/internal/page"
)

func newTestPool(t *testing.T, poolSize, k int) *Pool {
	t.Helper()
	dm, err := disk.Open(filepath.Join(t.TempDir(), "data.db"), true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	p := NewPool(poolSize, k, dm, nil, nil)
	t.Cleanup(p.Close)
	return p
}

// TestPool_SmallPoolChurn covers pool size 3, K=2. New p1,p2,p3 (all
// pinned); Unpin(p1,true), Unpin(p2,false); New p4 must evict p1
// (flushing it) into p4's frame.
func TestPool_SmallPoolChurn(t *testing.T) {
	p := newTestPool(t, 3, 2)

	p1, pg1 := p.NewPage()
	_, pg2 := p.NewPage()
	_, pg3 := p.NewPage()
	require.NotNil(t, pg1)
	require.NotNil(t, pg2)
	require.NotNil(t, pg3)

	copy(pg1.Data(), []byte("p1-payload"))

	require.True(t, p.UnpinPage(p1, true))
	require.True(t, p.UnpinPage(pg2.ID(), false))

	p4, pg4 := p.NewPage()
	require.NotNil(t, pg4)
	require.NotEqual(t, p1, p4)

	// p1 must now be readable back from disk with the bytes last written.
	reread := p.FetchPage(p1)
	require.NotNil(t, reread)
	require.Equal(t, []byte("p1-payload"), reread.Data()[:len("p1-payload")])
	p.UnpinPage(p1, false)
}

func TestPool_ExhaustionWhenNothingEvictable(t *testing.T) {
	p := newTestPool(t, 2, 2)
	_, pg1 := p.NewPage()
	_, pg2 := p.NewPage()
	require.NotNil(t, pg1)
	require.NotNil(t, pg2)

	id3, pg3 := p.NewPage()
	require.Nil(t, pg3)
	require.Equal(t, page.InvalidPageID, id3)
}

// TestPool_FlushThenReloadRoundTrips uses a one-frame pool so the
// second NewPage evicts the flushed page and the final FetchPage has
// to read it back from disk.
func TestPool_FlushThenReloadRoundTrips(t *testing.T) {
	p := newTestPool(t, 1, 2)
	id, pg := p.NewPage()
	copy(pg.Data(), []byte("hello-world"))
	require.True(t, p.FlushPage(id))
	require.True(t, p.UnpinPage(id, false))

	_, pg2 := p.NewPage()
	require.NotNil(t, pg2)
	require.True(t, p.UnpinPage(pg2.ID(), false))

	reread := p.FetchPage(id)
	require.NotNil(t, reread)
	require.Equal(t, []byte("hello-world"), reread.Data()[:len("hello-world")])
}

func TestPool_DeletePageFailsWhilePinned(t *testing.T) {
	p := newTestPool(t, 2, 2)
	id, pg := p.NewPage()
	require.NotNil(t, pg)

	require.False(t, p.DeletePage(id))
	require.True(t, p.UnpinPage(id, false))
	require.True(t, p.DeletePage(id))
}

// TestPool_FirstAllocatedPageIsNeverInvalid guards against the first
// page a fresh database ever allocates colliding with
// page.InvalidPageID: the disk manager reserves page 0 for a header
// so real allocations start at 1.
func TestPool_FirstAllocatedPageIsNeverInvalid(t *testing.T) {
	p := newTestPool(t, 2, 2)
	id, pg := p.NewPage()
	require.NotNil(t, pg)
	require.NotEqual(t, page.InvalidPageID, id)
}

// TestPool_ConcurrentFetchOfSamePageIsSerialized covers two goroutines
// racing FetchPage against the same not-yet-resident page id. Both
// must observe a fully loaded page with a correctly counted pin
// (rather than one caller's pin being silently discarded by the
// loader's unconditional SetPinCount), and the id must end up backed
// by exactly one frame. A one-frame pool and a second page evict id
// before the race, so both fetches start from a miss.
func TestPool_ConcurrentFetchOfSamePageIsSerialized(t *testing.T) {
	p := newTestPool(t, 1, 2)
	id, pg := p.NewPage()
	copy(pg.Data(), []byte("shared"))
	require.True(t, p.UnpinPage(id, true))

	other, opg := p.NewPage()
	require.NotNil(t, opg)
	require.True(t, p.UnpinPage(other, false))

	var wg sync.WaitGroup
	results := make([]*page.Page, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.FetchPage(id)
		}(i)
	}
	wg.Wait()

	require.NotNil(t, results[0])
	require.NotNil(t, results[1])
	require.Same(t, results[0], results[1])
	require.Equal(t, []byte("shared"), results[0].Data()[:len("shared")])
	require.Equal(t, 2, results[0].PinCount())

	require.True(t, p.UnpinPage(id, false))
	require.True(t, p.UnpinPage(id, false))
}

func TestPool_GuardedFetchUpgradesAndDrops(t *testing.T) {
	p := newTestPool(t, 2, 2)
	id, basic := p.NewPageGuarded()
	wg := basic.UpgradeWrite()
	copy(wg.Data(), []byte("guarded"))
	wg.Drop()

	rg, ok := p.FetchPageRead(id)
	require.True(t, ok)
	require.Equal(t, []byte("guarded"), rg.Data()[:len("guarded")])
	rg.Drop()

	require.True(t, p.DeletePage(id))
}

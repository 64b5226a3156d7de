// Package disk provides the file-backed device collaborator and the
// FIFO scheduler that serializes page-sized I/O against it.
package disk

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/duskdb/duskdb/internal/page"
	"github.com/duskdb/duskdb/internal/storeerrors"
)

// Manager is the disk collaborator: it reads and writes exactly
// page.PageSize bytes at page_id * page.PageSize, and hands out page
// ids. Deallocated ids are not reclaimed.
type Manager struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	numPages uint64
	logger   *zap.Logger
}

// Open opens an existing database file, or creates one if create is
// true and the file does not yet exist.
func Open(path string, create bool, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	_, statErr := os.Stat(path)
	var file *os.File
	var err error
	freshlyCreated := false
	switch {
	case os.IsNotExist(statErr):
		if !create {
			return nil, fmt.Errorf("%w: %s", storeerrors.ErrDBFileNotFound, path)
		}
		file, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
		freshlyCreated = true
	case statErr == nil:
		if create {
			return nil, fmt.Errorf("%w: %s", storeerrors.ErrDBFileExists, path)
		}
		file, err = os.OpenFile(path, os.O_RDWR, 0o666)
	default:
		return nil, fmt.Errorf("%w: stat %s: %v", storeerrors.ErrIO, path, statErr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", storeerrors.ErrIO, path, err)
	}

	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", storeerrors.ErrIO, path, err)
	}

	dm := &Manager{
		file:     file,
		path:     path,
		numPages: uint64(fi.Size()) / uint64(page.PageSize),
		logger:   logger,
	}
	// PageID 0 doubles as page.InvalidPageID, so a brand-new file
	// reserves page 0 for a header and starts real allocations at 1 —
	// otherwise the first page ever allocated would be
	// indistinguishable from "no page".
	if freshlyCreated {
		if _, err := file.WriteAt(make([]byte, page.PageSize), 0); err != nil {
			file.Close()
			return nil, fmt.Errorf("%w: reserving header page for %s: %v", storeerrors.ErrIO, path, err)
		}
		dm.numPages = 1
	}
	logger.Info("disk manager opened", zap.String("path", path), zap.Uint64("num_pages", dm.numPages))
	return dm, nil
}

// ReadPage reads pageID's image into buf, which must be exactly
// page.PageSize bytes.
func (dm *Manager) ReadPage(pageID page.PageID, buf []byte) error {
	if len(buf) != page.PageSize {
		return storeerrors.ErrInvalidPageSize
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	offset := int64(pageID) * int64(page.PageSize)
	n, err := dm.file.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return fmt.Errorf("%w: reading page %d: %v", storeerrors.ErrIO, pageID, err)
	}
	if n != page.PageSize {
		return fmt.Errorf("%w: short read for page %d, got %d bytes", storeerrors.ErrIO, pageID, n)
	}
	return nil
}

// WritePage writes buf (exactly page.PageSize bytes) to pageID's slot.
func (dm *Manager) WritePage(pageID page.PageID, buf []byte) error {
	if len(buf) != page.PageSize {
		return storeerrors.ErrInvalidPageSize
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	offset := int64(pageID) * int64(page.PageSize)
	if _, err := dm.file.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("%w: writing page %d: %v", storeerrors.ErrIO, pageID, err)
	}
	return nil
}

// AllocatePage extends the backing file by one page and returns its id.
func (dm *Manager) AllocatePage() (page.PageID, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	id := page.PageID(dm.numPages)
	offset := int64(id) * int64(page.PageSize)
	if _, err := dm.file.WriteAt(make([]byte, page.PageSize), offset); err != nil {
		return page.InvalidPageID, fmt.Errorf("%w: allocating page %d: %v", storeerrors.ErrIO, id, err)
	}
	dm.numPages++
	return id, nil
}

// DeallocatePage is a no-op that always succeeds. duskdb does not
// reclaim disk space (no free-space map), and nothing about pageID is
// recorded.
func (dm *Manager) DeallocatePage(page.PageID) error {
	return nil
}

// Sync flushes buffered writes to stable storage.
func (dm *Manager) Sync() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.file.Sync()
}

// Close syncs and closes the backing file.
func (dm *Manager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file == nil {
		return nil
	}
	_ = dm.file.Sync()
	err := dm.file.Close()
	dm.file = nil
	return err
}

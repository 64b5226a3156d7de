package disk

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/duskdb/duskdb/internal/page"
)

// Device is the minimal collaborator a Scheduler drives. Manager
// satisfies it; tests may substitute a fake to inject I/O failures.
type Device interface {
	ReadPage(id page.PageID, buf []byte) error
	WritePage(id page.PageID, buf []byte) error
}

// Request is a single page-sized transfer. Construct with NewRequest
// and submit via Scheduler.Schedule; call Wait to block for the
// completion signal.
type Request struct {
	IsWrite bool
	PageID  page.PageID
	Buf     []byte
	ID      uuid.UUID

	done chan error
}

// NewRequest builds a request for the given page and buffer.
func NewRequest(isWrite bool, pageID page.PageID, buf []byte) *Request {
	return &Request{
		IsWrite: isWrite,
		PageID:  pageID,
		Buf:     buf,
		ID:      uuid.New(),
		done:    make(chan error, 1),
	}
}

// Wait blocks until the request's completion signal fires and returns
// its outcome: nil, or the error the device returned.
func (r *Request) Wait() error { return <-r.done }

// LatencyObserver is notified of each request's end-to-end latency.
// pkg/telemetry.BufferPoolMetrics implements this to drive its
// histogram; it is optional (Scheduler works with a nil observer).
type LatencyObserver interface {
	ObserveDiskLatency(isWrite bool, d time.Duration)
}

// Scheduler serializes requests to a Device in FIFO order on a single
// worker goroutine: writes and reads to the same page_id are
// serialized in the order submitted. Driving every request through
// one queue gives that property for free, without per-page
// bookkeeping.
type Scheduler struct {
	device   Device
	queue    chan *Request
	logger   *zap.Logger
	observer LatencyObserver
	stop     chan struct{}
}

// NewScheduler starts a Scheduler's background worker. Call Stop to
// shut it down once all in-flight requests have drained.
func NewScheduler(device Device, logger *zap.Logger, observer LatencyObserver) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		device:   device,
		queue:    make(chan *Request, 256),
		logger:   logger,
		observer: observer,
		stop:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Schedule enqueues req for processing. It never blocks the caller on
// I/O; the caller blocks (if it chooses to) only in req.Wait().
func (s *Scheduler) Schedule(req *Request) {
	s.queue <- req
}

// Stop drains the queue and halts the worker. It must only be called
// once no further Schedule calls will occur.
func (s *Scheduler) Stop() {
	close(s.queue)
	<-s.stop
}

func (s *Scheduler) run() {
	defer close(s.stop)
	for req := range s.queue {
		start := time.Now()
		var err error
		if req.IsWrite {
			err = s.device.WritePage(req.PageID, req.Buf)
		} else {
			err = s.device.ReadPage(req.PageID, req.Buf)
		}
		if err != nil {
			s.logger.Error("disk request failed",
				zap.Stringer("request_id", req.ID),
				zap.Uint64("page_id", uint64(req.PageID)),
				zap.Bool("is_write", req.IsWrite),
				zap.Error(err))
		}
		if s.observer != nil {
			s.observer.ObserveDiskLatency(req.IsWrite, time.Since(start))
		}
		req.done <- err
	}
}

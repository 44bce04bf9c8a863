package gpuio

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StreamPriority hints the backend scheduler.
type StreamPriority int

const (
	PriorityLow StreamPriority = iota - 1
	PriorityNormal
	PriorityHigh
)

// Stream is an opaque, generation-checked handle to a stream. The zero
// value means "all streams" where a null stream is meaningful (synchronize)
// and is invalid everywhere else.
type Stream struct {
	idx int32
	gen uint32
}

func (s Stream) valid() bool { return s.gen != 0 }

// streamRecord is the internal stream state. Slots in the context stream
// array are append-only: a stream's id equals its index at append time and
// never changes or gets reused; destroying a stream retires the record in
// place with gen set to zero so stale handles fail lookup.
type streamRecord struct {
	id           int
	priority     StreamPriority
	vendorHandle uintptr

	// gen is guarded by the context stream lock, like the slot array
	// itself; it is never touched under the record's own mutex.
	gen uint32

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*Request
	busy   bool
	closed bool
}

func newStreamRecord(priority StreamPriority) *streamRecord {
	s := &streamRecord{id: -1, priority: priority}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *streamRecord) live() bool { return s.gen != 0 }

// enqueue appends a request to the pending queue in submission order.
func (s *streamRecord) enqueue(req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrInvalidArg
	}
	s.queue = append(s.queue, req)
	s.cond.Broadcast()
	return nil
}

// dispatch processes the pending queue in FIFO order, one request at a
// time, giving the in-order completion guarantee within a stream. Runs on
// its own goroutine for backend-backed streams.
func (s *streamRecord) dispatch(ctx *Context) {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		req := s.queue[0]
		s.queue = s.queue[1:]
		s.busy = true
		s.mu.Unlock()

		ctx.execute(req, s)

		s.mu.Lock()
		s.busy = false
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

// drain blocks until the pending queue is empty and no request is in
// flight, then asks the backend to synchronize its stream.
func (s *streamRecord) drain(ops VendorOps) {
	s.mu.Lock()
	for len(s.queue) > 0 || s.busy {
		s.cond.Wait()
	}
	s.mu.Unlock()
	if ops != nil && s.vendorHandle != 0 {
		_ = ops.StreamSynchronize(s.vendorHandle)
	}
}

// retire closes the queue so the dispatcher exits. The caller must have
// already invalidated the handle generation under the context stream lock.
// Returns the requests that were still pending so the caller can cancel
// them.
func (s *streamRecord) retire() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	pending := s.queue
	s.queue = nil
	s.cond.Broadcast()
	return pending
}

func (s *streamRecord) idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) == 0 && !s.busy
}

// StreamCreate creates a stream with the given priority. Stream ids are
// assigned sequentially in creation order and stay stable for the life of
// the Context even after other streams are destroyed.
func (ctx *Context) StreamCreate(priority StreamPriority) (Stream, error) {
	if err := ctx.check(); err != nil {
		return Stream{}, err
	}
	rec := newStreamRecord(priority)

	if ctx.ops != nil {
		handle, err := ctx.ops.StreamCreate(priority)
		if err != nil {
			ctx.log.Warn("vendor stream creation failed", zap.Error(err))
			return Stream{}, ErrGeneral
		}
		rec.vendorHandle = handle
	}

	ctx.strmu.Lock()
	rec.id = len(ctx.streams)
	rec.gen = uint32(rec.id + 1)
	ctx.streams = append(ctx.streams, rec)
	handle := Stream{idx: int32(rec.id), gen: rec.gen}
	ctx.strmu.Unlock()

	if ctx.ops != nil {
		go rec.dispatch(ctx)
	}

	ctx.log.Debug("created stream",
		zap.Int("stream", rec.id), zap.Int("priority", int(priority)))
	return handle, nil
}

// StreamDestroy tears down a stream. Requests still pending on its queue
// are canceled. The slot is retired in place: ids of surviving streams do
// not change, and the destroyed handle is rejected from then on.
func (ctx *Context) StreamDestroy(s Stream) error {
	if err := ctx.check(); err != nil {
		return err
	}
	rec, err := ctx.takeStream(s)
	if err != nil {
		return err
	}

	pending := rec.retire()
	for _, req := range pending {
		req.finish(ctx, 0, ErrCanceled)
	}

	if ctx.ops != nil && rec.vendorHandle != 0 {
		if err := ctx.ops.StreamDestroy(rec.vendorHandle); err != nil {
			ctx.log.Warn("vendor stream destroy failed",
				zap.Int("stream", rec.id), zap.Error(err))
		}
	}

	ctx.log.Debug("destroyed stream", zap.Int("stream", rec.id))
	return nil
}

// StreamSynchronize blocks until the stream's pending work has completed.
// The zero Stream synchronizes every live stream.
func (ctx *Context) StreamSynchronize(s Stream) error {
	if err := ctx.check(); err != nil {
		return err
	}
	if !s.valid() {
		ctx.strmu.Lock()
		live := make([]*streamRecord, 0, len(ctx.streams))
		for _, rec := range ctx.streams {
			if rec.live() {
				live = append(live, rec)
			}
		}
		ctx.strmu.Unlock()

		var g errgroup.Group
		for _, rec := range live {
			rec := rec
			g.Go(func() error {
				rec.drain(ctx.ops)
				return nil
			})
		}
		return g.Wait()
	}

	rec, err := ctx.lookupStream(s)
	if err != nil {
		return err
	}
	rec.drain(ctx.ops)
	return nil
}

// StreamQuery reports whether a stream is idle. Without a backend the
// answer for an empty queue is the optimistic default, idle.
func (ctx *Context) StreamQuery(s Stream) (bool, error) {
	if err := ctx.check(); err != nil {
		return false, err
	}
	rec, err := ctx.lookupStream(s)
	if err != nil {
		return false, err
	}
	if ctx.ops != nil && rec.vendorHandle != 0 {
		idle, err := ctx.ops.StreamQuery(rec.vendorHandle)
		if err != nil {
			return false, ErrGeneral
		}
		return idle && rec.idle(), nil
	}
	return rec.idle(), nil
}

func (ctx *Context) lookupStream(s Stream) (*streamRecord, error) {
	if !s.valid() {
		return nil, ErrInvalidArg
	}
	ctx.strmu.Lock()
	defer ctx.strmu.Unlock()
	if int(s.idx) >= len(ctx.streams) {
		return nil, ErrInvalidArg
	}
	rec := ctx.streams[s.idx]
	if !rec.live() || rec.gen != s.gen {
		return nil, ErrNotFound
	}
	return rec, nil
}

// takeStream resolves a handle and invalidates its generation in the same
// critical section, so a destroyed stream cannot race a concurrent lookup.
func (ctx *Context) takeStream(s Stream) (*streamRecord, error) {
	if !s.valid() {
		return nil, ErrInvalidArg
	}
	ctx.strmu.Lock()
	defer ctx.strmu.Unlock()
	if int(s.idx) >= len(ctx.streams) {
		return nil, ErrInvalidArg
	}
	rec := ctx.streams[s.idx]
	if !rec.live() || rec.gen != s.gen {
		return nil, ErrNotFound
	}
	rec.gen = 0
	return rec, nil
}

package gpuio

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReqType is the kind of transfer a request describes.
type ReqType int

const (
	ReqRead ReqType = iota
	ReqWrite
	ReqCopy
)

// Engine selects the IO engine a backend should use for a transfer. The
// runtime records the choice and passes it through; dispatch is identical
// for all engines in the software path.
type Engine int

const (
	EngineAuto Engine = iota
	EngineGDS
	EngineP2P
	EngineBounce
)

// Status is the lifecycle state of a request:
// created → queued → submitted → {completed | failed | canceled}.
type Status int

const (
	StatusCreated Status = iota
	StatusQueued
	StatusSubmitted
	StatusCompleted
	StatusFailed
	StatusCanceled
)

func (s Status) terminal() bool { return s >= StatusCompleted }

// Callback is invoked exactly once with a request's final status.
type Callback func(req *Request, status Code, userData any)

// TransferDesc describes an asynchronous transfer to be tracked as a
// request.
type TransferDesc struct {
	Type      ReqType
	Engine    Engine
	Src       Region
	Dst       Region
	SrcOffset int
	DstOffset int
	Length    int
	Stream    Stream
	Callback  Callback
	UserData  any
}

// Request is one tracked asynchronous transfer. The Context holds a request
// only while it is active; once the callback has run the runtime drops its
// reference and the caller's handle is the last one.
type Request struct {
	id     uint64
	typ    ReqType
	engine Engine
	src    []byte
	dst    []byte
	stream *streamRecord

	mu        sync.Mutex
	status    Status
	code      Code
	bytes     int
	callback  Callback
	userData  any
	createdAt time.Time
	done      chan struct{}
	cbOnce    sync.Once
}

// ID returns the request id, unique and monotonically increasing within the
// owning Context.
func (r *Request) ID() uint64 { return r.id }

// Type returns the request's transfer kind.
func (r *Request) Type() ReqType { return r.typ }

// Engine returns the IO engine recorded for this request.
func (r *Request) Engine() Engine { return r.engine }

// Status returns the current lifecycle state.
func (r *Request) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// BytesCompleted returns how many bytes have been transferred.
func (r *Request) BytesCompleted() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bytes
}

// Err returns the final code, OK while the request is still in flight.
func (r *Request) Err() Code {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.code
}

// NewRequest creates a request from a transfer description, assigns it an
// id and links it into the context's active set. Offsets and length must
// fall within the referenced regions.
func (ctx *Context) NewRequest(desc TransferDesc) (*Request, error) {
	if err := ctx.check(); err != nil {
		return nil, err
	}
	if desc.Length <= 0 || desc.SrcOffset < 0 || desc.DstOffset < 0 {
		return nil, ErrInvalidArg
	}
	src, err := ctx.lookupRegion(desc.Src)
	if err != nil {
		return nil, err
	}
	dst, err := ctx.lookupRegion(desc.Dst)
	if err != nil {
		return nil, err
	}
	if desc.SrcOffset+desc.Length > src.length || desc.DstOffset+desc.Length > dst.length {
		return nil, ErrInvalidArg
	}
	return ctx.newRawRequest(desc.Type, desc.Engine,
		dst.buf[desc.DstOffset:desc.DstOffset+desc.Length],
		src.buf[desc.SrcOffset:desc.SrcOffset+desc.Length],
		desc.Stream, desc.Callback, desc.UserData)
}

// newRawRequest builds a request over resolved byte ranges. The stream
// handle may be zero, meaning the default (synchronous) path.
func (ctx *Context) newRawRequest(typ ReqType, engine Engine, dst, src []byte,
	stream Stream, cb Callback, userData any) (*Request, error) {

	var srec *streamRecord
	if stream.valid() {
		rec, err := ctx.lookupStream(stream)
		if err != nil {
			return nil, err
		}
		srec = rec
	}

	req := &Request{
		typ:       typ,
		engine:    engine,
		src:       src,
		dst:       dst,
		stream:    srec,
		status:    StatusCreated,
		callback:  cb,
		userData:  userData,
		createdAt: time.Now(),
		done:      make(chan struct{}),
	}

	ctx.reqmu.Lock()
	ctx.nextID++
	req.id = ctx.nextID
	ctx.active[req.id] = req
	ctx.reqmu.Unlock()

	return req, nil
}

// Submit hands the request to its stream's pending queue. On a backend-
// backed stream the transfer completes asynchronously in submission order;
// otherwise it is performed synchronously on the calling goroutine before
// Submit returns.
func (ctx *Context) Submit(req *Request) error {
	if err := ctx.check(); err != nil {
		return err
	}
	if req == nil {
		return ErrInvalidArg
	}

	req.mu.Lock()
	if req.status != StatusCreated {
		req.mu.Unlock()
		return ErrInvalidArg
	}
	req.status = StatusQueued
	req.mu.Unlock()

	ctx.stats.submitted()
	ctx.log.Debug("submitted request",
		zap.Uint64("id", req.id), zap.Int("length", len(req.src)))

	if req.stream != nil && ctx.ops != nil {
		if err := req.stream.enqueue(req); err != nil {
			req.finish(ctx, 0, ErrCanceled)
			return err
		}
		return nil
	}

	ctx.execute(req, req.stream)
	return nil
}

// execute performs the transfer for one request. Runs either on a stream
// dispatcher goroutine (backend mode) or on the submitter's goroutine
// (software mode). The vendor copy primitive is tried first; its failure is
// absorbed by the plain byte-copy fallback.
func (ctx *Context) execute(req *Request, s *streamRecord) {
	req.mu.Lock()
	if req.status.terminal() {
		req.mu.Unlock()
		return
	}
	req.status = StatusSubmitted
	req.mu.Unlock()

	n := len(req.src)
	if ctx.ops != nil {
		var handle uintptr
		if s != nil {
			handle = s.vendorHandle
		}
		if err := ctx.ops.Memcpy(req.dst, req.src, handle); err == nil {
			req.finish(ctx, n, OK)
			return
		}
		ctx.log.Warn("vendor memcpy failed, using byte copy",
			zap.Uint64("id", req.id))
	}
	copy(req.dst, req.src)
	req.finish(ctx, n, OK)
}

// finish moves the request to its terminal state exactly once: records the
// outcome, updates statistics, unlinks the request from the context and
// fires the callback.
func (r *Request) finish(ctx *Context, bytes int, code Code) {
	r.mu.Lock()
	if r.status.terminal() {
		r.mu.Unlock()
		return
	}
	switch code {
	case OK:
		r.status = StatusCompleted
	case ErrCanceled:
		r.status = StatusCanceled
	default:
		r.status = StatusFailed
	}
	r.code = code
	r.bytes = bytes
	cb := r.callback
	userData := r.userData
	elapsed := time.Since(r.createdAt)
	close(r.done)
	r.mu.Unlock()

	ctx.stats.completed(r.typ, bytes, code, elapsed)

	ctx.reqmu.Lock()
	delete(ctx.active, r.id)
	ctx.reqmu.Unlock()

	if cb != nil {
		r.cbOnce.Do(func() { cb(r, code, userData) })
	}
}

// WaitForever blocks Wait until the request reaches a terminal state.
const WaitForever = ^uint64(0)

// Wait blocks until the request completes or timeoutMicros expires. A zero
// timeout polls: it returns immediately, with ErrTimeout if the request is
// still in flight. Expiry does not cancel the underlying transfer.
func (ctx *Context) Wait(req *Request, timeoutMicros uint64) error {
	if err := ctx.check(); err != nil {
		return err
	}
	if req == nil {
		return ErrInvalidArg
	}

	switch timeoutMicros {
	case 0:
		select {
		case <-req.done:
		default:
			return ErrTimeout
		}
	case WaitForever:
		<-req.done
	default:
		timer := time.NewTimer(time.Duration(timeoutMicros) * time.Microsecond)
		defer timer.Stop()
		select {
		case <-req.done:
		case <-timer.C:
			return ErrTimeout
		}
	}

	if code := req.Err(); code != OK {
		return code
	}
	return nil
}

// Cancel marks a pending request canceled. Best effort: a transfer already
// handed to a backend may or may not be interruptible and can still
// complete.
func (ctx *Context) Cancel(req *Request) error {
	if err := ctx.check(); err != nil {
		return err
	}
	if req == nil {
		return ErrInvalidArg
	}

	req.mu.Lock()
	status := req.status
	req.mu.Unlock()

	if status.terminal() || status == StatusSubmitted {
		return nil
	}
	req.finish(ctx, 0, ErrCanceled)
	return nil
}

// ActiveRequests reports how many requests are currently tracked.
func (ctx *Context) ActiveRequests() (int, error) {
	if err := ctx.check(); err != nil {
		return 0, err
	}
	ctx.reqmu.Lock()
	defer ctx.reqmu.Unlock()
	return len(ctx.active), nil
}

package gpuio

import (
	"time"

	"go.uber.org/zap"
)

// Event is an opaque, generation-checked handle to a synchronization
// marker. The zero value is invalid.
type Event struct {
	idx int32
	gen uint32
}

func (e Event) valid() bool { return e.gen != 0 }

type eventRecord struct {
	vendorHandle uintptr
	recordedAt   time.Time
	gen          uint32
}

// EventCreate creates an event. Without a backend the event is a pure
// bookkeeping marker that still behaves correctly for record/synchronize.
func (ctx *Context) EventCreate() (Event, error) {
	if err := ctx.check(); err != nil {
		return Event{}, err
	}
	rec := &eventRecord{}
	if ctx.ops != nil {
		handle, err := ctx.ops.EventCreate()
		if err != nil {
			ctx.log.Warn("vendor event creation failed", zap.Error(err))
			return Event{}, ErrGeneral
		}
		rec.vendorHandle = handle
	}

	ctx.evmu.Lock()
	idx := len(ctx.events)
	rec.gen = uint32(idx + 1)
	ctx.events = append(ctx.events, rec)
	handle := Event{idx: int32(idx), gen: rec.gen}
	ctx.evmu.Unlock()

	return handle, nil
}

// EventDestroy releases an event.
func (ctx *Context) EventDestroy(e Event) error {
	if err := ctx.check(); err != nil {
		return err
	}
	rec, err := ctx.lookupEvent(e)
	if err != nil {
		return err
	}

	ctx.evmu.Lock()
	rec.gen = 0
	ctx.evmu.Unlock()

	if ctx.ops != nil && rec.vendorHandle != 0 {
		if err := ctx.ops.EventDestroy(rec.vendorHandle); err != nil {
			ctx.log.Warn("vendor event destroy failed", zap.Error(err))
		}
	}
	return nil
}

// EventRecord places the event in the stream's ordered operation sequence.
func (ctx *Context) EventRecord(e Event, s Stream) error {
	if err := ctx.check(); err != nil {
		return err
	}
	rec, err := ctx.lookupEvent(e)
	if err != nil {
		return err
	}
	srec, err := ctx.lookupStream(s)
	if err != nil {
		return err
	}

	if ctx.ops != nil {
		if err := ctx.ops.EventRecord(rec.vendorHandle, srec.vendorHandle); err != nil {
			ctx.log.Warn("vendor event record failed", zap.Error(err))
			return ErrGeneral
		}
	}
	ctx.evmu.Lock()
	rec.recordedAt = time.Now()
	ctx.evmu.Unlock()
	return nil
}

// EventSynchronize blocks until the event's point in its stream has been
// reached. A no-op that succeeds in software-only mode.
func (ctx *Context) EventSynchronize(e Event) error {
	if err := ctx.check(); err != nil {
		return err
	}
	rec, err := ctx.lookupEvent(e)
	if err != nil {
		return err
	}
	if ctx.ops != nil {
		if err := ctx.ops.EventSynchronize(rec.vendorHandle); err != nil {
			ctx.log.Warn("vendor event synchronize failed", zap.Error(err))
			return ErrGeneral
		}
	}
	return nil
}

// EventElapsedTime reports the milliseconds between two recorded events.
// Without a backend the result is zero: callers must not infer a meaningful
// duration in software-only mode.
func (ctx *Context) EventElapsedTime(start, end Event) (float64, error) {
	if err := ctx.check(); err != nil {
		return 0, err
	}
	srec, err := ctx.lookupEvent(start)
	if err != nil {
		return 0, err
	}
	erec, err := ctx.lookupEvent(end)
	if err != nil {
		return 0, err
	}
	if ctx.ops != nil {
		ms, err := ctx.ops.EventElapsedTime(srec.vendorHandle, erec.vendorHandle)
		if err != nil {
			return 0, ErrGeneral
		}
		return ms, nil
	}
	return 0, nil
}

func (ctx *Context) lookupEvent(e Event) (*eventRecord, error) {
	if !e.valid() {
		return nil, ErrInvalidArg
	}
	ctx.evmu.Lock()
	defer ctx.evmu.Unlock()
	if int(e.idx) >= len(ctx.events) {
		return nil, ErrInvalidArg
	}
	rec := ctx.events[e.idx]
	if rec.gen != e.gen {
		return nil, ErrNotFound
	}
	return rec, nil
}

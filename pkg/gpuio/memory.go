package gpuio

import (
	"unsafe"

	"go.uber.org/zap"
)

// AccessMode is the permitted access of a registered memory region.
type AccessMode int

const (
	AccessRead AccessMode = 1 << iota
	AccessWrite
	AccessReadWrite AccessMode = AccessRead | AccessWrite
)

// MemType classifies a memory extent.
type MemType int

const (
	MemHost MemType = iota
	MemPinned
	MemDevice
	MemUnified
)

// Region is an opaque, generation-checked handle to a registered memory
// region. The zero value is invalid.
type Region struct {
	idx int32
	gen uint32
}

func (r Region) valid() bool { return r.gen != 0 }

// MemoryRegion is the public description of a registered region.
type MemoryRegion struct {
	BaseAddr   uintptr
	GPUAddr    uintptr
	BusAddr    uint64
	Length     int
	Access     AccessMode
	DeviceID   int
	Registered bool
	Pinned     bool
}

type regionRecord struct {
	buf        []byte
	base       uintptr
	length     int
	access     AccessMode
	deviceID   int
	registered bool
	pinned     bool
	reg        Registration
	gen        uint32
}

type allocKind int

const (
	allocHost allocKind = iota
	allocMapped
	allocVendor
)

type allocation struct {
	buf  []byte
	base uintptr
	kind allocKind
	typ  MemType
}

func sliceBase(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// Register registers caller-owned memory with the runtime. The caller must
// keep buf alive while the region stays registered; the runtime only tracks
// it and never frees it. With a vendor table present the backend performs
// the real registration (pinning, bus-address resolution) and its failure
// fails the whole call: registration semantics are meaningful only through
// a backend, so there is no silent fallback.
func (ctx *Context) Register(buf []byte, access AccessMode) (Region, error) {
	if err := ctx.check(); err != nil {
		return Region{}, err
	}
	if len(buf) == 0 {
		return Region{}, ErrInvalidArg
	}

	ctx.devmu.Lock()
	deviceID := ctx.current
	ctx.devmu.Unlock()

	rec := &regionRecord{
		buf:        buf,
		base:       sliceBase(buf),
		length:     len(buf),
		access:     access,
		deviceID:   deviceID,
		registered: true,
	}

	if ctx.ops != nil {
		reg, err := ctx.ops.RegisterMemory(buf, access)
		if err != nil {
			ctx.log.Warn("vendor memory registration failed",
				zap.Int("length", len(buf)), zap.Error(err))
			return Region{}, ErrGeneral
		}
		rec.reg = reg
		rec.pinned = reg.Pinned
	} else {
		// Software mode: track the region; gpu/bus addresses mirror the
		// host address.
		rec.reg = Registration{GPUAddr: rec.base, BusAddr: uint64(rec.base)}
	}

	ctx.regmu.Lock()
	idx := len(ctx.regs)
	rec.gen = uint32(idx + 1)
	ctx.regs = append(ctx.regs, rec)
	ctx.byAddr[rec.base]++
	ctx.regmu.Unlock()

	ctx.log.Debug("registered memory region",
		zap.Uintptr("addr", rec.base), zap.Int("length", rec.length))
	return Region{idx: int32(idx), gen: rec.gen}, nil
}

// Unregister removes a region from the registry. The vendor unregister hook
// is best effort: its failure is logged, not propagated, because the entry
// must be removed either way.
func (ctx *Context) Unregister(r Region) error {
	if err := ctx.check(); err != nil {
		return err
	}
	rec, err := ctx.lookupRegion(r)
	if err != nil {
		return err
	}

	ctx.regmu.Lock()
	if !rec.registered {
		ctx.regmu.Unlock()
		return ErrInvalidArg
	}
	rec.registered = false
	rec.gen++
	// The same buffer may carry several registrations; the address stays
	// busy until the last one goes away.
	if n := ctx.byAddr[rec.base]; n > 1 {
		ctx.byAddr[rec.base] = n - 1
	} else {
		delete(ctx.byAddr, rec.base)
	}
	ctx.regmu.Unlock()

	if ctx.ops != nil {
		if err := ctx.ops.UnregisterMemory(rec.reg); err != nil {
			ctx.log.Warn("vendor memory unregistration failed", zap.Error(err))
		}
	}

	ctx.log.Debug("unregistered memory region", zap.Uintptr("addr", rec.base))
	return nil
}

// RegionInfo returns the public description of a region.
func (ctx *Context) RegionInfo(r Region) (MemoryRegion, error) {
	if err := ctx.check(); err != nil {
		return MemoryRegion{}, err
	}
	rec, err := ctx.lookupRegion(r)
	if err != nil {
		return MemoryRegion{}, err
	}
	ctx.regmu.Lock()
	defer ctx.regmu.Unlock()
	return MemoryRegion{
		BaseAddr:   rec.base,
		GPUAddr:    rec.reg.GPUAddr,
		BusAddr:    rec.reg.BusAddr,
		Length:     rec.length,
		Access:     rec.access,
		DeviceID:   rec.deviceID,
		Registered: rec.registered,
		Pinned:     rec.pinned,
	}, nil
}

// RegisteredRegions reports the number of live registrations.
func (ctx *Context) RegisteredRegions() (int, error) {
	if err := ctx.check(); err != nil {
		return 0, err
	}
	ctx.regmu.Lock()
	defer ctx.regmu.Unlock()
	n := 0
	for _, rec := range ctx.regs {
		if rec.registered {
			n++
		}
	}
	return n, nil
}

// lookupRegion resolves a handle, rejecting zero and stale generations.
func (ctx *Context) lookupRegion(r Region) (*regionRecord, error) {
	if !r.valid() {
		return nil, ErrInvalidArg
	}
	ctx.regmu.Lock()
	defer ctx.regmu.Unlock()
	if int(r.idx) >= len(ctx.regs) {
		return nil, ErrInvalidArg
	}
	rec := ctx.regs[r.idx]
	if rec.gen != r.gen {
		return nil, ErrInvalidArg
	}
	return rec, nil
}

// Malloc allocates plain host memory owned by the runtime.
func (ctx *Context) Malloc(size int) ([]byte, error) {
	if err := ctx.check(); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, ErrInvalidArg
	}
	buf := make([]byte, size)
	ctx.trackAllocation(&allocation{buf: buf, base: sliceBase(buf), kind: allocHost, typ: MemHost})
	ctx.log.Debug("allocated host memory", zap.Int("size", size))
	return buf, nil
}

// MallocPinned allocates page-locked host memory. The vendor table is tried
// first; without one (or on its failure) the allocation falls back to a
// page-mapped anonymous mapping with a sequential-access hint.
func (ctx *Context) MallocPinned(size int) ([]byte, error) {
	if err := ctx.check(); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, ErrInvalidArg
	}
	if ctx.ops != nil {
		buf, err := ctx.ops.MallocPinned(size)
		if err == nil {
			ctx.trackAllocation(&allocation{buf: buf, base: sliceBase(buf), kind: allocVendor, typ: MemPinned})
			ctx.log.Debug("allocated pinned memory (vendor)", zap.Int("size", size))
			return buf, nil
		}
		ctx.log.Debug("vendor pinned allocation failed, falling back",
			zap.Int("size", size), zap.Error(err))
	}
	buf, mapped, err := mapAnonymous(size)
	if err != nil {
		return nil, ErrNoMem
	}
	kind := allocHost
	if mapped {
		kind = allocMapped
	}
	ctx.trackAllocation(&allocation{buf: buf, base: sliceBase(buf), kind: kind, typ: MemPinned})
	ctx.log.Debug("allocated pinned memory (mapped)", zap.Int("size", size))
	return buf, nil
}

// MallocDevice allocates device memory through the vendor table, falling
// back to a pinned host allocation when no backend can serve it.
func (ctx *Context) MallocDevice(size int) ([]byte, error) {
	if err := ctx.check(); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, ErrInvalidArg
	}
	if ctx.ops != nil {
		buf, err := ctx.ops.MallocDevice(size)
		if err == nil {
			ctx.trackAllocation(&allocation{buf: buf, base: sliceBase(buf), kind: allocVendor, typ: MemDevice})
			ctx.log.Debug("allocated device memory", zap.Int("size", size))
			return buf, nil
		}
		ctx.log.Debug("vendor device allocation failed, falling back",
			zap.Int("size", size), zap.Error(err))
	}
	return ctx.MallocPinned(size)
}

// MallocUnified allocates unified memory. There is no safe software
// emulation: without a vendor table the call reports ErrUnsupported.
func (ctx *Context) MallocUnified(size int) ([]byte, error) {
	if err := ctx.check(); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, ErrInvalidArg
	}
	if ctx.ops == nil {
		return nil, ErrUnsupported
	}
	// Device memory stands in for true unified memory on backends without a
	// dedicated slot.
	return ctx.MallocDevice(size)
}

// Free releases memory previously allocated through the context. Freeing
// memory whose region is still registered fails with ErrBusy; the region
// must be unregistered first. Freeing nil succeeds.
func (ctx *Context) Free(buf []byte) error {
	if err := ctx.check(); err != nil {
		return err
	}
	if buf == nil {
		return nil
	}
	base := sliceBase(buf)

	ctx.regmu.Lock()
	if ctx.byAddr[base] > 0 {
		ctx.regmu.Unlock()
		return ErrBusy
	}
	a := ctx.owned[base]
	delete(ctx.owned, base)
	ctx.regmu.Unlock()

	if a != nil {
		ctx.releaseAllocation(a)
		ctx.log.Debug("freed memory", zap.Uintptr("addr", base))
		return nil
	}

	// Not runtime-owned. Offer it to the backend; otherwise the garbage
	// collector owns it and there is nothing to do.
	if ctx.ops != nil {
		if err := ctx.ops.Free(buf); err == nil {
			ctx.log.Debug("freed memory (vendor)", zap.Uintptr("addr", base))
			return nil
		}
	}
	return nil
}

func (ctx *Context) trackAllocation(a *allocation) {
	ctx.regmu.Lock()
	ctx.owned[a.base] = a
	ctx.regmu.Unlock()
}

// releaseAllocation returns an allocation to wherever it came from. Called
// without any registry lock held.
func (ctx *Context) releaseAllocation(a *allocation) {
	switch a.kind {
	case allocVendor:
		if ctx.ops != nil {
			if err := ctx.ops.Free(a.buf); err != nil {
				ctx.log.Warn("vendor free failed", zap.Error(err))
			}
		}
	case allocMapped:
		if err := unmapAnonymous(a.buf); err != nil {
			ctx.log.Warn("unmap failed", zap.Error(err))
		}
	case allocHost:
		// Garbage collected.
	}
}

// Memcpy copies size bytes from src to dst through the vendor table,
// falling back to an ordinary byte copy. Statistics record the copied
// length as bytes written either way.
func (ctx *Context) Memcpy(dst, src []byte, size int, stream Stream) error {
	if err := ctx.check(); err != nil {
		return err
	}
	if dst == nil || src == nil {
		return ErrInvalidArg
	}
	if size < 0 || size > len(dst) || size > len(src) {
		return ErrInvalidArg
	}

	var handle uintptr
	if stream.valid() {
		rec, err := ctx.lookupStream(stream)
		if err != nil {
			return err
		}
		handle = rec.vendorHandle
	}

	if ctx.ops != nil {
		if err := ctx.ops.Memcpy(dst[:size], src[:size], handle); err == nil {
			ctx.stats.addCopy(size)
			return nil
		}
	}
	copy(dst[:size], src[:size])
	ctx.stats.addCopy(size)
	return nil
}

// MemcpyAsync queues a copy on the given stream and returns the tracking
// request. Without a backend the copy happens synchronously before return.
func (ctx *Context) MemcpyAsync(dst, src []byte, size int, stream Stream) (*Request, error) {
	if err := ctx.check(); err != nil {
		return nil, err
	}
	if dst == nil || src == nil {
		return nil, ErrInvalidArg
	}
	if size < 0 || size > len(dst) || size > len(src) {
		return nil, ErrInvalidArg
	}
	req, err := ctx.newRawRequest(ReqCopy, EngineAuto, dst[:size], src[:size], stream, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := ctx.Submit(req); err != nil {
		return nil, err
	}
	return req, nil
}

package gpuio

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/nightstaker/gpuio/internal/logger"
)

// Config controls Context initialization.
type Config struct {
	// Logger is used for all diagnostics. When nil, a logger is built from
	// LogLevel; when LogLevel is also empty the context logs nothing.
	Logger   *zap.Logger
	LogLevel string

	// Backend injects a vendor table, bypassing builtin probing. Used by
	// out-of-tree backends and tests.
	Backend VendorOps

	// PreferredVendor restricts builtin probing to one vendor.
	// VendorUnknown means any.
	PreferredVendor Vendor

	// DeviceIndex selects the initial current device.
	DeviceIndex int
}

// Context is the top-level owner of all runtime state for one session:
// devices, memory regions, streams, events, requests and statistics. Every
// entity is reachable only through its owning Context and none outlives it.
//
// A Context is safe for concurrent use. Each registry is protected by its
// own lock; no operation holds more than one registry lock at a time.
type Context struct {
	cfg Config
	log *zap.Logger
	ops VendorOps // nil in software-only mode

	initialized atomic.Bool

	// Device registry.
	devmu   sync.Mutex
	devices []DeviceInfo
	current int

	// Memory region registry. Slots are append-only; byAddr counts live
	// registrations per base address for the free-while-registered check,
	// so the same buffer registered twice stays busy until both handles
	// are unregistered. owned tracks allocations made by the runtime
	// itself.
	regmu  sync.Mutex
	regs   []*regionRecord
	byAddr map[uintptr]int
	owned  map[uintptr]*allocation

	// Stream registry. Slots are append-only so ids never shift; a
	// destroyed stream's slot stays retired with a bumped generation.
	strmu   sync.Mutex
	streams []*streamRecord

	// Event registry.
	evmu   sync.Mutex
	events []*eventRecord

	// Request bookkeeping. active holds requests between creation and their
	// terminal state; completed requests are dropped from the map so the
	// Context never retains them indefinitely.
	reqmu  sync.Mutex
	nextID uint64
	active map[uint64]*Request

	stats statsCollector
}

// Init creates and initializes a Context: validates the configuration,
// detects devices, and selects a vendor table appropriate to the detected
// hardware — or none, leaving the runtime in a fully software-emulated mode.
func Init(cfg Config) (*Context, error) {
	log := cfg.Logger
	if log == nil {
		if cfg.LogLevel != "" {
			l, err := logger.New(cfg.LogLevel)
			if err != nil {
				return nil, ErrInvalidArg
			}
			log = l
		} else {
			log = zap.NewNop()
		}
	}
	log = log.Named("gpuio")

	ctx := &Context{
		cfg:    cfg,
		log:    log,
		byAddr: make(map[uintptr]int),
		owned:  make(map[uintptr]*allocation),
		active: make(map[uint64]*Request),
	}

	ctx.ops = selectBackend(cfg, log)
	ctx.devices = detectDevices(ctx.ops, log)

	if cfg.DeviceIndex < 0 || cfg.DeviceIndex >= len(ctx.devices) {
		if cfg.DeviceIndex != 0 {
			return nil, ErrInvalidArg
		}
	}
	if ctx.ops != nil && cfg.DeviceIndex != 0 {
		if err := ctx.ops.DeviceSetCurrent(cfg.DeviceIndex); err != nil {
			log.Warn("initial device select failed",
				zap.Int("device", cfg.DeviceIndex), zap.Error(err))
			return nil, ErrGeneral
		}
	}
	ctx.current = cfg.DeviceIndex
	ctx.stats.init()
	ctx.initialized.Store(true)

	backend := "software"
	if ctx.ops != nil {
		backend = ctx.ops.Name()
	}
	log.Info("context initialized",
		zap.String("backend", backend),
		zap.Int("devices", len(ctx.devices)))
	return ctx, nil
}

// selectBackend picks the vendor table for this context: an injected one
// wins, otherwise the builtin tables are probed in order. A table is chosen
// only if it reports at least one device.
func selectBackend(cfg Config, log *zap.Logger) VendorOps {
	if cfg.Backend != nil {
		return cfg.Backend
	}
	for _, ops := range builtinTables() {
		if cfg.PreferredVendor != VendorUnknown && ops.Vendor() != cfg.PreferredVendor {
			continue
		}
		n, err := ops.DeviceCount()
		if err != nil || n <= 0 {
			continue
		}
		log.Debug("selected vendor backend", zap.String("backend", ops.Name()))
		return ops
	}
	return nil
}

// check gates every public operation: a nil context is an invalid argument,
// an uninitialized one is rejected before any registry is touched.
func (ctx *Context) check() error {
	if ctx == nil {
		return ErrInvalidArg
	}
	if !ctx.initialized.Load() {
		return ErrNotInitialized
	}
	return nil
}

// Close finalizes the Context, releasing every region, stream, event and
// pending request it still owns. Streams are synchronized before any memory
// or stream teardown so no pending vendor call can reference freed state.
// Registry locks are taken one at a time, never nested.
func (ctx *Context) Close() error {
	if ctx == nil {
		return ErrInvalidArg
	}
	if !ctx.initialized.CompareAndSwap(true, false) {
		return ErrNotInitialized
	}

	// Claim every live stream under the registry lock, then drain the
	// queues. Zeroing the generations here keeps a racing lookup from
	// observing a half-torn-down stream.
	ctx.strmu.Lock()
	streams := make([]*streamRecord, 0, len(ctx.streams))
	for _, s := range ctx.streams {
		if s.gen != 0 {
			s.gen = 0
			streams = append(streams, s)
		}
	}
	ctx.strmu.Unlock()
	for _, s := range streams {
		s.drain(ctx.ops)
	}

	// Cancel whatever is still tracked as active.
	ctx.reqmu.Lock()
	pending := make([]*Request, 0, len(ctx.active))
	for _, r := range ctx.active {
		pending = append(pending, r)
	}
	ctx.active = make(map[uint64]*Request)
	ctx.reqmu.Unlock()
	for _, r := range pending {
		r.finish(ctx, 0, ErrCanceled)
	}

	// Unregister remaining regions (best effort) and release runtime-owned
	// allocations. Record state is cleared under the registry lock; only
	// the vendor calls happen outside it.
	ctx.regmu.Lock()
	registrations := make([]Registration, 0, len(ctx.regs))
	for _, r := range ctx.regs {
		if r.registered {
			r.registered = false
			registrations = append(registrations, r.reg)
		}
	}
	ctx.regs = nil
	ctx.byAddr = make(map[uintptr]int)
	owned := ctx.owned
	ctx.owned = make(map[uintptr]*allocation)
	ctx.regmu.Unlock()
	if ctx.ops != nil {
		for _, reg := range registrations {
			if err := ctx.ops.UnregisterMemory(reg); err != nil {
				ctx.log.Warn("unregister during close failed", zap.Error(err))
			}
		}
	}
	for _, a := range owned {
		ctx.releaseAllocation(a)
	}

	// Events, then streams.
	ctx.evmu.Lock()
	eventHandles := make([]uintptr, 0, len(ctx.events))
	for _, e := range ctx.events {
		if e.gen != 0 {
			e.gen = 0
			if e.vendorHandle != 0 {
				eventHandles = append(eventHandles, e.vendorHandle)
			}
		}
	}
	ctx.events = nil
	ctx.evmu.Unlock()
	if ctx.ops != nil {
		for _, h := range eventHandles {
			if err := ctx.ops.EventDestroy(h); err != nil {
				ctx.log.Warn("event destroy during close failed", zap.Error(err))
			}
		}
	}

	for _, s := range streams {
		s.retire()
		if ctx.ops != nil && s.vendorHandle != 0 {
			if err := ctx.ops.StreamDestroy(s.vendorHandle); err != nil {
				ctx.log.Warn("stream destroy during close failed", zap.Error(err))
			}
		}
	}

	ctx.log.Info("context finalized")
	return nil
}

// Stats returns a snapshot of the context statistics.
func (ctx *Context) Stats() (Stats, error) {
	if err := ctx.check(); err != nil {
		return Stats{}, err
	}
	return ctx.stats.snapshot(), nil
}

// ResetStats zeroes all statistics counters.
func (ctx *Context) ResetStats() error {
	if err := ctx.check(); err != nil {
		return err
	}
	ctx.stats.reset()
	return nil
}

package gpuio

// VendorOps is the capability contract a vendor backend implements. The
// runtime calls through exactly one table per Context, selected at Init and
// never mixed with another. A slot that a backend cannot serve returns
// ErrUnsupported; each call site in the runtime decides the fallback policy:
//
//   - MallocPinned/MallocDevice: software allocation path
//   - RegisterMemory: no fallback, the registration fails
//   - Memcpy: plain byte copy
//   - stream/event operations: no-op or optimistic default
//
// Backends should be safe for concurrent use; the runtime never holds a
// registry lock across a vendor call.
type VendorOps interface {
	// Name identifies the backend in logs and device info.
	Name() string
	// Vendor reports which vendor the table serves.
	Vendor() Vendor

	// Device management.
	DeviceCount() (int, error)
	DeviceInit(device int) error
	DeviceGetInfo(device int) (DeviceInfo, error)
	DeviceSetCurrent(device int) error

	// Memory management. Memcpy receives the backend stream handle of the
	// request's stream, or zero for the default stream.
	MallocDevice(size int) ([]byte, error)
	MallocPinned(size int) ([]byte, error)
	Free(buf []byte) error
	Memcpy(dst, src []byte, stream uintptr) error
	RegisterMemory(buf []byte, access AccessMode) (Registration, error)
	UnregisterMemory(reg Registration) error

	// Stream management. Handles are backend-opaque.
	StreamCreate(priority StreamPriority) (uintptr, error)
	StreamDestroy(handle uintptr) error
	StreamSynchronize(handle uintptr) error
	StreamQuery(handle uintptr) (idle bool, err error)

	// Event management.
	EventCreate() (uintptr, error)
	EventDestroy(handle uintptr) error
	EventRecord(event, stream uintptr) error
	EventSynchronize(event uintptr) error
	EventElapsedTime(start, end uintptr) (ms float64, err error)
}

// Registration is what a backend reports for a registered memory extent.
type Registration struct {
	// GPUAddr is the device-visible address of the extent, if any.
	GPUAddr uintptr
	// BusAddr is the bus address of the extent, if resolvable.
	BusAddr uint64
	// Pinned reports whether the backend pinned the pages.
	Pinned bool
	// Handle is backend bookkeeping passed back to UnregisterMemory.
	Handle uintptr
}

// builtinTables lists the vendor tables compiled into the runtime, probed in
// order during Init when no table is injected through Config. A table whose
// DeviceCount reports zero devices (or fails) is skipped.
func builtinTables() []VendorOps {
	return []VendorOps{
		newNvidiaOps(),
		newAMDOps(),
	}
}

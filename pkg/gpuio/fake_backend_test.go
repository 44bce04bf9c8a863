package gpuio

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeOps is a controllable vendor table for exercising the backend-backed
// paths: async dispatch, registration failure, memcpy blocking.
type fakeOps struct {
	mu          sync.Mutex
	memcpyCalls int
	registers   int
	unregisters int
	frees       int
	streams     uintptr
	events      uintptr
	streamSyncs int
	setCurrent  []int

	// deviceCount overrides the default single device when positive.
	deviceCount int

	registerErr error
	pinnedErr   error
	deviceErr   error
	memcpyErr   error
	// blockMemcpy, when non-nil, makes Memcpy wait until the channel is
	// closed. memcpyStarted, when non-nil, receives a signal as each copy
	// begins. Used for the timeout and cancellation tests.
	blockMemcpy   chan struct{}
	memcpyStarted chan struct{}
}

func (f *fakeOps) Name() string   { return "fake" }
func (f *fakeOps) Vendor() Vendor { return VendorNVIDIA }

func (f *fakeOps) DeviceCount() (int, error) {
	if f.deviceCount > 0 {
		return f.deviceCount, nil
	}
	return 1, nil
}

func (f *fakeOps) DeviceInit(device int) error { return nil }

func (f *fakeOps) DeviceGetInfo(device int) (DeviceInfo, error) {
	return DeviceInfo{
		Vendor:      VendorNVIDIA,
		Name:        "Fake GPU",
		TotalMemory: 16 << 30,
		FreeMemory:  8 << 30,
		SupportsGDS: true,
		SupportsGDR: true,
	}, nil
}

func (f *fakeOps) DeviceSetCurrent(device int) error {
	f.mu.Lock()
	f.setCurrent = append(f.setCurrent, device)
	f.mu.Unlock()
	return nil
}

func (f *fakeOps) MallocDevice(size int) ([]byte, error) {
	if f.deviceErr != nil {
		return nil, f.deviceErr
	}
	return make([]byte, size), nil
}

func (f *fakeOps) MallocPinned(size int) ([]byte, error) {
	if f.pinnedErr != nil {
		return nil, f.pinnedErr
	}
	return make([]byte, size), nil
}

func (f *fakeOps) Free(buf []byte) error {
	f.mu.Lock()
	f.frees++
	f.mu.Unlock()
	return nil
}

func (f *fakeOps) Memcpy(dst, src []byte, stream uintptr) error {
	if f.memcpyStarted != nil {
		f.memcpyStarted <- struct{}{}
	}
	if f.blockMemcpy != nil {
		<-f.blockMemcpy
	}
	if f.memcpyErr != nil {
		return f.memcpyErr
	}
	f.mu.Lock()
	f.memcpyCalls++
	f.mu.Unlock()
	copy(dst, src)
	return nil
}

func (f *fakeOps) RegisterMemory(buf []byte, access AccessMode) (Registration, error) {
	if f.registerErr != nil {
		return Registration{}, f.registerErr
	}
	f.mu.Lock()
	f.registers++
	f.mu.Unlock()
	base := sliceBase(buf)
	return Registration{GPUAddr: base, BusAddr: uint64(base), Pinned: true}, nil
}

func (f *fakeOps) UnregisterMemory(reg Registration) error {
	f.mu.Lock()
	f.unregisters++
	f.mu.Unlock()
	return nil
}

func (f *fakeOps) StreamCreate(priority StreamPriority) (uintptr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams++
	return f.streams, nil
}

func (f *fakeOps) StreamDestroy(handle uintptr) error { return nil }

func (f *fakeOps) StreamSynchronize(handle uintptr) error {
	f.mu.Lock()
	f.streamSyncs++
	f.mu.Unlock()
	return nil
}

func (f *fakeOps) StreamQuery(handle uintptr) (bool, error) { return true, nil }

func (f *fakeOps) EventCreate() (uintptr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events++
	return f.events, nil
}

func (f *fakeOps) EventDestroy(handle uintptr) error       { return nil }
func (f *fakeOps) EventRecord(event, stream uintptr) error { return nil }
func (f *fakeOps) EventSynchronize(event uintptr) error    { return nil }
func (f *fakeOps) EventElapsedTime(start, end uintptr) (float64, error) {
	return 1.5, nil
}

// softwareContext returns a context in software-only mode; the builtin
// tables report no usable devices without driver linkage, so this is
// deterministic in CI.
func softwareContext(t *testing.T) *Context {
	t.Helper()
	ctx, err := Init(Config{})
	require.NoError(t, err)
	return ctx
}

func backendContext(t *testing.T, ops VendorOps) *Context {
	t.Helper()
	ctx, err := Init(Config{Backend: ops})
	require.NoError(t, err)
	return ctx
}

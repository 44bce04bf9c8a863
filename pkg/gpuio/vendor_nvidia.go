package gpuio

// nvidiaOps is the NVIDIA vendor table. Without the CUDA toolkit linked in,
// this build ships the shell only: device discovery reports zero devices
// and every capability slot reports ErrUnsupported, which routes each call
// site to its fallback. A cgo-enabled build replaces the slot bodies with
// real CUDA runtime calls.
type nvidiaOps struct{}

func newNvidiaOps() *nvidiaOps { return &nvidiaOps{} }

func (*nvidiaOps) Name() string   { return "nvidia" }
func (*nvidiaOps) Vendor() Vendor { return VendorNVIDIA }

func (*nvidiaOps) DeviceCount() (int, error) { return 0, nil }

func (*nvidiaOps) DeviceInit(device int) error { return ErrUnsupported }

func (*nvidiaOps) DeviceGetInfo(device int) (DeviceInfo, error) {
	return DeviceInfo{}, ErrUnsupported
}

func (*nvidiaOps) DeviceSetCurrent(device int) error { return ErrUnsupported }

func (*nvidiaOps) MallocDevice(size int) ([]byte, error) { return nil, ErrUnsupported }
func (*nvidiaOps) MallocPinned(size int) ([]byte, error) { return nil, ErrUnsupported }
func (*nvidiaOps) Free(buf []byte) error                 { return ErrUnsupported }

func (*nvidiaOps) Memcpy(dst, src []byte, stream uintptr) error { return ErrUnsupported }

func (*nvidiaOps) RegisterMemory(buf []byte, access AccessMode) (Registration, error) {
	return Registration{}, ErrUnsupported
}

func (*nvidiaOps) UnregisterMemory(reg Registration) error { return ErrUnsupported }

func (*nvidiaOps) StreamCreate(priority StreamPriority) (uintptr, error) {
	return 0, ErrUnsupported
}
func (*nvidiaOps) StreamDestroy(handle uintptr) error     { return ErrUnsupported }
func (*nvidiaOps) StreamSynchronize(handle uintptr) error { return ErrUnsupported }
func (*nvidiaOps) StreamQuery(handle uintptr) (bool, error) {
	return false, ErrUnsupported
}

func (*nvidiaOps) EventCreate() (uintptr, error)            { return 0, ErrUnsupported }
func (*nvidiaOps) EventDestroy(handle uintptr) error        { return ErrUnsupported }
func (*nvidiaOps) EventRecord(event, stream uintptr) error  { return ErrUnsupported }
func (*nvidiaOps) EventSynchronize(event uintptr) error     { return ErrUnsupported }
func (*nvidiaOps) EventElapsedTime(start, end uintptr) (float64, error) {
	return 0, ErrUnsupported
}

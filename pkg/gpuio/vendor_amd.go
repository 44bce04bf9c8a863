package gpuio

// amdOps is the AMD vendor table shell, the ROCm counterpart of nvidiaOps.
type amdOps struct{}

func newAMDOps() *amdOps { return &amdOps{} }

func (*amdOps) Name() string   { return "amd" }
func (*amdOps) Vendor() Vendor { return VendorAMD }

func (*amdOps) DeviceCount() (int, error) { return 0, nil }

func (*amdOps) DeviceInit(device int) error { return ErrUnsupported }

func (*amdOps) DeviceGetInfo(device int) (DeviceInfo, error) {
	return DeviceInfo{}, ErrUnsupported
}

func (*amdOps) DeviceSetCurrent(device int) error { return ErrUnsupported }

func (*amdOps) MallocDevice(size int) ([]byte, error) { return nil, ErrUnsupported }
func (*amdOps) MallocPinned(size int) ([]byte, error) { return nil, ErrUnsupported }
func (*amdOps) Free(buf []byte) error                 { return ErrUnsupported }

func (*amdOps) Memcpy(dst, src []byte, stream uintptr) error { return ErrUnsupported }

func (*amdOps) RegisterMemory(buf []byte, access AccessMode) (Registration, error) {
	return Registration{}, ErrUnsupported
}

func (*amdOps) UnregisterMemory(reg Registration) error { return ErrUnsupported }

func (*amdOps) StreamCreate(priority StreamPriority) (uintptr, error) {
	return 0, ErrUnsupported
}
func (*amdOps) StreamDestroy(handle uintptr) error     { return ErrUnsupported }
func (*amdOps) StreamSynchronize(handle uintptr) error { return ErrUnsupported }
func (*amdOps) StreamQuery(handle uintptr) (bool, error) {
	return false, ErrUnsupported
}

func (*amdOps) EventCreate() (uintptr, error)           { return 0, ErrUnsupported }
func (*amdOps) EventDestroy(handle uintptr) error       { return ErrUnsupported }
func (*amdOps) EventRecord(event, stream uintptr) error { return ErrUnsupported }
func (*amdOps) EventSynchronize(event uintptr) error    { return ErrUnsupported }
func (*amdOps) EventElapsedTime(start, end uintptr) (float64, error) {
	return 0, ErrUnsupported
}

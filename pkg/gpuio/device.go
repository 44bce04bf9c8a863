package gpuio

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

// Vendor tags the GPU vendor of a device or backend.
type Vendor int

const (
	VendorUnknown Vendor = iota
	VendorNVIDIA
	VendorAMD
	VendorIntel
)

func (v Vendor) String() string {
	switch v {
	case VendorNVIDIA:
		return "nvidia"
	case VendorAMD:
		return "amd"
	case VendorIntel:
		return "intel"
	}
	return "unknown"
}

// DeviceInfo describes one compute device. Filled during Context Init from
// the vendor table; immutable afterwards except for FreeMemory refresh.
type DeviceInfo struct {
	ID          int
	Vendor      Vendor
	Name        string
	TotalMemory uint64
	FreeMemory  uint64

	// Capability flags: direct-storage path, direct remote memory access,
	// CXL-attached memory.
	SupportsGDS bool
	SupportsGDR bool
	SupportsCXL bool

	NUMANode int

	// VendorHandle is backend-opaque device state.
	VendorHandle uintptr
}

// Software-mode figures when no backend reports a device. The runtime stays
// usable with a single synthetic host device.
const (
	softwareTotalMemory = 8 << 30
	softwareFreeMemory  = 4 << 30
)

func softwareDevice() DeviceInfo {
	return DeviceInfo{
		ID:          0,
		Vendor:      VendorUnknown,
		Name:        fmt.Sprintf("Software (%s)", runtime.GOARCH),
		TotalMemory: softwareTotalMemory,
		FreeMemory:  softwareFreeMemory,
		NUMANode:    0,
	}
}

// detectDevices enumerates devices through the vendor table. With no table,
// or a table that reports nothing, a synthetic software device is produced.
func detectDevices(ops VendorOps, log *zap.Logger) []DeviceInfo {
	if ops == nil {
		return []DeviceInfo{softwareDevice()}
	}

	count, err := ops.DeviceCount()
	if err != nil || count <= 0 {
		log.Debug("backend reported no devices, using software device",
			zap.String("backend", ops.Name()), zap.Error(err))
		return []DeviceInfo{softwareDevice()}
	}

	devices := make([]DeviceInfo, 0, count)
	for i := 0; i < count; i++ {
		if err := ops.DeviceInit(i); err != nil {
			log.Warn("device init failed, skipping",
				zap.Int("device", i), zap.Error(err))
			continue
		}
		info, err := ops.DeviceGetInfo(i)
		if err != nil {
			log.Warn("device info failed, skipping",
				zap.Int("device", i), zap.Error(err))
			continue
		}
		info.ID = i
		devices = append(devices, info)
	}
	if len(devices) == 0 {
		return []DeviceInfo{softwareDevice()}
	}
	return devices
}

// DeviceCount returns the number of detected devices.
func (ctx *Context) DeviceCount() (int, error) {
	if err := ctx.check(); err != nil {
		return 0, err
	}
	ctx.devmu.Lock()
	defer ctx.devmu.Unlock()
	return len(ctx.devices), nil
}

// DeviceInfo returns the description of device i.
func (ctx *Context) DeviceInfo(i int) (DeviceInfo, error) {
	if err := ctx.check(); err != nil {
		return DeviceInfo{}, err
	}
	ctx.devmu.Lock()
	defer ctx.devmu.Unlock()
	if i < 0 || i >= len(ctx.devices) {
		return DeviceInfo{}, ErrInvalidArg
	}
	return ctx.devices[i], nil
}

// SetDevice selects the current device. The selection becomes the default
// device id recorded on newly registered memory regions.
func (ctx *Context) SetDevice(i int) error {
	if err := ctx.check(); err != nil {
		return err
	}
	ctx.devmu.Lock()
	defer ctx.devmu.Unlock()
	if i < 0 || i >= len(ctx.devices) {
		return ErrInvalidArg
	}
	if ctx.ops != nil {
		if err := ctx.ops.DeviceSetCurrent(i); err != nil {
			ctx.log.Warn("device select failed", zap.Int("device", i), zap.Error(err))
			return ErrGeneral
		}
	}
	ctx.current = i
	ctx.log.Debug("current device set", zap.Int("device", i))
	return nil
}

// CurrentDevice returns the index of the current device.
func (ctx *Context) CurrentDevice() (int, error) {
	if err := ctx.check(); err != nil {
		return 0, err
	}
	ctx.devmu.Lock()
	defer ctx.devmu.Unlock()
	return ctx.current, nil
}

//go:build linux
// +build linux

package gpuio

import "golang.org/x/sys/unix"

// mapAnonymous backs the pinned-allocation fallback with an anonymous
// private mapping and advises the kernel of sequential access, matching the
// transfer pattern the runtime drives through these buffers.
func mapAnonymous(size int) ([]byte, bool, error) {
	buf, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, false, err
	}
	// Advisory only, failure is harmless.
	_ = unix.Madvise(buf, unix.MADV_SEQUENTIAL)
	return buf, true, nil
}

func unmapAnonymous(buf []byte) error {
	return unix.Munmap(buf)
}

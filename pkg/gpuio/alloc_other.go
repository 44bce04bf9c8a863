//go:build !linux
// +build !linux

package gpuio

// mapAnonymous falls back to an ordinary heap allocation on platforms
// without the mmap path. The second return reports whether the buffer is a
// real mapping that must be unmapped.
func mapAnonymous(size int) ([]byte, bool, error) {
	return make([]byte, size), false, nil
}

func unmapAnonymous(buf []byte) error {
	return nil
}

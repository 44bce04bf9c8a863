package gpuio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterUnregister(t *testing.T) {
	ctx := softwareContext(t)
	defer ctx.Close()

	buf := make([]byte, 4096)
	region, err := ctx.Register(buf, AccessReadWrite)
	require.NoError(t, err)

	info, err := ctx.RegionInfo(region)
	require.NoError(t, err)
	assert.Equal(t, 4096, info.Length)
	assert.Equal(t, AccessReadWrite, info.Access)
	assert.True(t, info.Registered)
	// Software mode mirrors the host address.
	assert.Equal(t, info.BaseAddr, info.GPUAddr)

	n, err := ctx.RegisteredRegions()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, ctx.Unregister(region))
	n, err = ctx.RegisteredRegions()
	require.NoError(t, err)
	assert.Equal(t, 0, n, "registry should be empty after unregistration")

	// A stale handle is rejected, as is a second unregister.
	assert.ErrorIs(t, ctx.Unregister(region), ErrInvalidArg)
	_, err = ctx.RegionInfo(region)
	assert.ErrorIs(t, err, ErrInvalidArg)
}

func TestRegister_InvalidArgs(t *testing.T) {
	ctx := softwareContext(t)
	defer ctx.Close()

	_, err := ctx.Register(nil, AccessReadWrite)
	assert.ErrorIs(t, err, ErrInvalidArg)
	_, err = ctx.Register([]byte{}, AccessRead)
	assert.ErrorIs(t, err, ErrInvalidArg)

	assert.ErrorIs(t, ctx.Unregister(Region{}), ErrInvalidArg)
}

func TestRegister_VendorFailureFailsWhole(t *testing.T) {
	fake := &fakeOps{registerErr: ErrIO}
	ctx := backendContext(t, fake)
	defer ctx.Close()

	// Registration has no software fallback when a backend is active.
	_, err := ctx.Register(make([]byte, 64), AccessRead)
	assert.ErrorIs(t, err, ErrGeneral)

	n, err := ctx.RegisteredRegions()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFree_WhileRegisteredIsBusy(t *testing.T) {
	ctx := softwareContext(t)
	defer ctx.Close()

	buf, err := ctx.MallocPinned(4096)
	require.NoError(t, err)

	region, err := ctx.Register(buf, AccessReadWrite)
	require.NoError(t, err)

	assert.ErrorIs(t, ctx.Free(buf), ErrBusy)

	require.NoError(t, ctx.Unregister(region))
	assert.NoError(t, ctx.Free(buf))
}

func TestFree_DuplicateRegistrationsStayBusy(t *testing.T) {
	ctx := softwareContext(t)
	defer ctx.Close()

	buf, err := ctx.MallocPinned(4096)
	require.NoError(t, err)

	first, err := ctx.Register(buf, AccessRead)
	require.NoError(t, err)
	second, err := ctx.Register(buf, AccessWrite)
	require.NoError(t, err)

	// Dropping one registration must not release the address while the
	// other is still live.
	require.NoError(t, ctx.Unregister(first))
	assert.ErrorIs(t, ctx.Free(buf), ErrBusy)

	info, err := ctx.RegionInfo(second)
	require.NoError(t, err)
	assert.True(t, info.Registered)

	require.NoError(t, ctx.Unregister(second))
	assert.NoError(t, ctx.Free(buf))
}

func TestMalloc_Helpers(t *testing.T) {
	ctx := softwareContext(t)
	defer ctx.Close()

	t.Run("host", func(t *testing.T) {
		buf, err := ctx.Malloc(128)
		require.NoError(t, err)
		assert.Len(t, buf, 128)
		assert.NoError(t, ctx.Free(buf))
	})

	t.Run("pinned falls back to mapping", func(t *testing.T) {
		buf, err := ctx.MallocPinned(8192)
		require.NoError(t, err)
		assert.Len(t, buf, 8192)
		buf[0] = 0xAB
		assert.NoError(t, ctx.Free(buf))
	})

	t.Run("device falls back to pinned", func(t *testing.T) {
		buf, err := ctx.MallocDevice(4096)
		require.NoError(t, err)
		assert.Len(t, buf, 4096)
		assert.NoError(t, ctx.Free(buf))
	})

	t.Run("unified is unsupported without a backend", func(t *testing.T) {
		_, err := ctx.MallocUnified(4096)
		assert.ErrorIs(t, err, ErrUnsupported)
	})

	t.Run("zero size", func(t *testing.T) {
		_, err := ctx.Malloc(0)
		assert.ErrorIs(t, err, ErrInvalidArg)
		_, err = ctx.MallocPinned(0)
		assert.ErrorIs(t, err, ErrInvalidArg)
	})

	t.Run("free nil succeeds", func(t *testing.T) {
		assert.NoError(t, ctx.Free(nil))
	})
}

func TestMalloc_VendorPaths(t *testing.T) {
	fake := &fakeOps{}
	ctx := backendContext(t, fake)
	defer ctx.Close()

	buf, err := ctx.MallocUnified(256)
	require.NoError(t, err)
	assert.Len(t, buf, 256)
	require.NoError(t, ctx.Free(buf))

	// Vendor pinned failure falls back to the software path.
	fake.pinnedErr = ErrNoMem
	buf, err = ctx.MallocPinned(256)
	require.NoError(t, err)
	assert.Len(t, buf, 256)
	require.NoError(t, ctx.Free(buf))
}

func TestMemcpy_SoftwareFallback(t *testing.T) {
	ctx := softwareContext(t)
	defer ctx.Close()

	src := make([]byte, 1024)
	for i := range src {
		src[i] = byte(i * 7)
	}
	dst := make([]byte, 1024)

	before, err := ctx.Stats()
	require.NoError(t, err)

	require.NoError(t, ctx.Memcpy(dst, src, len(src), Stream{}))
	assert.True(t, bytes.Equal(src, dst), "fallback copy must be byte-for-byte identical")

	after, err := ctx.Stats()
	require.NoError(t, err)
	assert.Equal(t, before.BytesWritten+1024, after.BytesWritten)
}

func TestMemcpy_InvalidArgs(t *testing.T) {
	ctx := softwareContext(t)
	defer ctx.Close()

	buf := make([]byte, 8)
	assert.ErrorIs(t, ctx.Memcpy(nil, buf, 8, Stream{}), ErrInvalidArg)
	assert.ErrorIs(t, ctx.Memcpy(buf, nil, 8, Stream{}), ErrInvalidArg)
	assert.ErrorIs(t, ctx.Memcpy(buf, buf, 16, Stream{}), ErrInvalidArg)
}

func TestMemcpyAsync_SoftwareCompletesInline(t *testing.T) {
	ctx := softwareContext(t)
	defer ctx.Close()

	src := []byte("transfer payload")
	dst := make([]byte, len(src))

	req, err := ctx.MemcpyAsync(dst, src, len(src), Stream{})
	require.NoError(t, err)
	require.NoError(t, ctx.Wait(req, 0), "software path completes before return")
	assert.Equal(t, src, dst)
	assert.Equal(t, StatusCompleted, req.Status())
}

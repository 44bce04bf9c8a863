package gpuio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats_CountersAndBandwidth(t *testing.T) {
	ctx := softwareContext(t)
	defer ctx.Close()

	buf := make([]byte, 1024)
	region, err := ctx.Register(buf, AccessReadWrite)
	require.NoError(t, err)
	dstRegion, err := ctx.Register(make([]byte, 1024), AccessReadWrite)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		req, err := ctx.NewRequest(TransferDesc{
			Type: ReqCopy, Src: region, Dst: dstRegion, Length: 1024,
		})
		require.NoError(t, err)
		require.NoError(t, ctx.Submit(req))
		require.NoError(t, ctx.Wait(req, WaitForever))
	}

	stats, err := ctx.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), stats.RequestsSubmitted)
	assert.Equal(t, uint64(4), stats.RequestsCompleted)
	assert.Zero(t, stats.RequestsFailed)
	assert.Equal(t, uint64(4096), stats.BytesRead)
	assert.Equal(t, uint64(4096), stats.BytesWritten)
	assert.Greater(t, stats.BandwidthGBps, 0.0,
		"recent completions must produce a non-zero bandwidth estimate")
	assert.Zero(t, stats.CacheHitRate, "reserved field stays zero")
}

func TestStats_ReadAndWriteAccounting(t *testing.T) {
	ctx := softwareContext(t)
	defer ctx.Close()

	region, err := ctx.Register(make([]byte, 512), AccessReadWrite)
	require.NoError(t, err)
	other, err := ctx.Register(make([]byte, 512), AccessReadWrite)
	require.NoError(t, err)

	submit := func(typ ReqType) {
		req, err := ctx.NewRequest(TransferDesc{
			Type: typ, Src: region, Dst: other, Length: 512,
		})
		require.NoError(t, err)
		require.NoError(t, ctx.Submit(req))
		require.NoError(t, ctx.Wait(req, WaitForever))
	}

	submit(ReqRead)
	submit(ReqWrite)

	stats, err := ctx.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(512), stats.BytesRead, "reads account bytes read only")
	assert.Equal(t, uint64(512), stats.BytesWritten, "writes account bytes written only")
}

func TestStats_Reset(t *testing.T) {
	ctx := softwareContext(t)
	defer ctx.Close()

	src := make([]byte, 64)
	dst := make([]byte, 64)
	require.NoError(t, ctx.Memcpy(dst, src, 64, Stream{}))

	stats, err := ctx.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(64), stats.BytesWritten)

	require.NoError(t, ctx.ResetStats())
	stats, err = ctx.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.BytesWritten)
	assert.Zero(t, stats.RequestsSubmitted)
	assert.Zero(t, stats.BandwidthGBps)
}

func TestErrorStrings(t *testing.T) {
	assert.Equal(t, "success", OK.String())
	assert.Equal(t, "resource busy", ErrBusy.Error())
	assert.Equal(t, "not initialized", ErrNotInitialized.Error())
	assert.Equal(t, "unknown error", Code(-99).String())
}

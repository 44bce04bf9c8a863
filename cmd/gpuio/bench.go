package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nightstaker/gpuio/internal/config"
	"github.com/nightstaker/gpuio/pkg/gpuio"
)

func benchCommand(cfg **config.Config, log **zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "Run a register-and-copy transfer loop and report statistics",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "size", Usage: "transfer size in bytes (overrides config)"},
			&cli.IntFlag{Name: "iterations", Usage: "number of transfers (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			size := (*cfg).Bench.Size
			iterations := (*cfg).Bench.Iterations
			if c.IsSet("size") {
				size = c.Int("size")
			}
			if c.IsSet("iterations") {
				iterations = c.Int("iterations")
			}

			app := fx.New(
				fx.NopLogger,
				fx.Provide(
					func() *config.Config { return *cfg },
					func() *zap.Logger { return *log },
					newRuntime,
				),
				fx.Invoke(func(ctx *gpuio.Context) error {
					return runBench(ctx, size, iterations)
				}),
			)

			startCtx := context.Background()
			if err := app.Start(startCtx); err != nil {
				return err
			}
			return app.Stop(startCtx)
		},
	}
}

// newRuntime initializes the gpuio context and ties its finalization to the
// fx lifecycle.
func newRuntime(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*gpuio.Context, error) {
	ctx, err := gpuio.Init(runtimeConfig(cfg, log))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return ctx.Close()
		},
	})
	return ctx, nil
}

func runBench(ctx *gpuio.Context, size, iterations int) error {
	src, err := ctx.MallocPinned(size)
	if err != nil {
		return err
	}
	dst, err := ctx.MallocPinned(size)
	if err != nil {
		return err
	}
	for i := range src {
		src[i] = byte(i)
	}

	srcRegion, err := ctx.Register(src, gpuio.AccessRead)
	if err != nil {
		return err
	}
	dstRegion, err := ctx.Register(dst, gpuio.AccessWrite)
	if err != nil {
		return err
	}

	stream, err := ctx.StreamCreate(gpuio.PriorityNormal)
	if err != nil {
		return err
	}

	for i := 0; i < iterations; i++ {
		req, err := ctx.NewRequest(gpuio.TransferDesc{
			Type:   gpuio.ReqCopy,
			Src:    srcRegion,
			Dst:    dstRegion,
			Length: size,
			Stream: stream,
		})
		if err != nil {
			return err
		}
		if err := ctx.Submit(req); err != nil {
			return err
		}
		if err := ctx.Wait(req, gpuio.WaitForever); err != nil {
			return err
		}
	}

	if err := ctx.StreamSynchronize(stream); err != nil {
		return err
	}
	stats, err := ctx.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("transfers:  %d completed, %d failed\n",
		stats.RequestsCompleted, stats.RequestsFailed)
	fmt.Printf("bytes:      %d written, %d read\n",
		stats.BytesWritten, stats.BytesRead)
	fmt.Printf("bandwidth:  %.3f GB/s\n", stats.BandwidthGBps)

	if err := ctx.Unregister(srcRegion); err != nil {
		return err
	}
	if err := ctx.Unregister(dstRegion); err != nil {
		return err
	}
	if err := ctx.Free(src); err != nil {
		return err
	}
	return ctx.Free(dst)
}

package main

import (
	"fmt"

	"github.com/common-nighthawk/go-figure"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/nightstaker/gpuio/internal/config"
	"github.com/nightstaker/gpuio/pkg/gpuio"
)

func infoCommand(cfg **config.Config, log **zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show detected devices and runtime mode",
		Action: func(c *cli.Context) error {
			ctx, err := gpuio.Init(runtimeConfig(*cfg, *log))
			if err != nil {
				return err
			}
			defer ctx.Close()

			banner := figure.NewFigure("gpuio", "", true)
			banner.Print()
			fmt.Println("")
			fmt.Printf("Runtime version: %s\n", gpuio.Version())

			count, err := ctx.DeviceCount()
			if err != nil {
				return err
			}
			fmt.Printf("Devices: %d\n", count)
			for i := 0; i < count; i++ {
				info, err := ctx.DeviceInfo(i)
				if err != nil {
					return err
				}
				fmt.Printf("  [%d] %s (%s)\n", info.ID, info.Name, info.Vendor)
				fmt.Printf("      memory: %d MiB total, %d MiB free, numa %d\n",
					info.TotalMemory>>20, info.FreeMemory>>20, info.NUMANode)
				fmt.Printf("      gds=%v gdr=%v cxl=%v\n",
					info.SupportsGDS, info.SupportsGDR, info.SupportsCXL)
			}
			return nil
		},
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/nightstaker/gpuio/internal/config"
	"github.com/nightstaker/gpuio/internal/logger"
	"github.com/nightstaker/gpuio/pkg/gpuio"
)

func main() {
	var cfg *config.Config
	var log *zap.Logger

	app := &cli.App{
		Name:  "gpuio",
		Usage: "Inspect and exercise the gpuio transfer runtime",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{"GPUIO_CONFIG"},
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			if path := c.String("config"); path != "" {
				cfg, err = config.LoadConfig(path)
				if err != nil {
					return err
				}
			} else {
				cfg = config.Default()
			}
			zapLogger, err := logger.New(cfg.Logger.Verbosity)
			if err != nil {
				return err
			}
			log = zapLogger.Named("cli")
			return nil
		},
		Commands: []*cli.Command{
			infoCommand(&cfg, &log),
			benchCommand(&cfg, &log),
			{
				Name:  "version",
				Usage: "Print the runtime version",
				Action: func(c *cli.Context) error {
					fmt.Println(gpuio.Version())
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		if log != nil {
			log.Fatal("failed to run app", zap.Error(err))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

func parseVendor(s string) gpuio.Vendor {
	switch s {
	case "nvidia":
		return gpuio.VendorNVIDIA
	case "amd":
		return gpuio.VendorAMD
	case "intel":
		return gpuio.VendorIntel
	}
	return gpuio.VendorUnknown
}

func runtimeConfig(cfg *config.Config, log *zap.Logger) gpuio.Config {
	return gpuio.Config{
		Logger:          log,
		PreferredVendor: parseVendor(cfg.Runtime.PreferredVendor),
		DeviceIndex:     cfg.Runtime.DeviceIndex,
	}
}

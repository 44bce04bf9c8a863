package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the CLI-facing configuration file. The runtime library itself
// takes a gpuio.Config struct; this loader exists so the command line tool
// can drive it from yaml.
type Config struct {
	Logger struct {
		Verbosity string `yaml:"verbosity"`
	} `yaml:"logger"`
	Runtime struct {
		PreferredVendor string `yaml:"preferredVendor"`
		DeviceIndex     int    `yaml:"deviceIndex"`
	} `yaml:"runtime"`
	Bench struct {
		Size       int `yaml:"size"`
		Iterations int `yaml:"iterations"`
	} `yaml:"bench"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.Logger.Verbosity = "info"
	cfg.Bench.Size = 1 << 20
	cfg.Bench.Iterations = 16
	return &cfg
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, err
	}

	return config, nil
}

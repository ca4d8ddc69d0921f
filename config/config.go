// Package config loads the process configuration from a yaml file and
// fans it out to the logger, telemetry and storage layers.
package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/JaimeZepeda08/CS564-Stage4/pkg/logger"
	"github.com/JaimeZepeda08/CS564-Stage4/pkg/telemetry"
)

// Storage configures the disk and buffer-pool layers.
type Storage struct {
	// PageSize is the fixed page size in bytes for every heap file.
	PageSize int `yaml:"page_size"`
	// BufferPoolSize is the number of page frames kept in memory.
	BufferPoolSize int `yaml:"buffer_pool_size"`
	// DataDir is where heap files live.
	DataDir string `yaml:"data_dir"`
}

// Config is the root of the yaml configuration file.
type Config struct {
	Logger    logger.Config    `yaml:"logger"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Storage   Storage          `yaml:"storage"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Logger: logger.Config{
			Level:      "info",
			Format:     "console",
			OutputFile: "stderr",
		},
		Telemetry: telemetry.Config{
			Enabled:        false,
			ServiceName:    "heapdb",
			PrometheusPort: 2112,
		},
		Storage: Storage{
			PageSize:       4096,
			BufferPoolSize: 64,
			DataDir:        "data",
		},
	}
}

// Load reads a yaml config file, layered over Default for any field the
// file leaves unset.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Storage.PageSize <= 0 {
		return cfg, fmt.Errorf("config %s: page_size must be positive", path)
	}
	// Pages track offsets in 16-bit fields; anything wider would wrap
	// silently.
	if cfg.Storage.PageSize > math.MaxUint16 {
		return cfg, fmt.Errorf("config %s: page_size must be at most %d", path, math.MaxUint16)
	}
	if cfg.Storage.BufferPoolSize <= 0 {
		return cfg, fmt.Errorf("config %s: buffer_pool_size must be positive", path)
	}
	return cfg, nil
}

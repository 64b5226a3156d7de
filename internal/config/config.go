// Package config loads duskdb's YAML configuration file into the
// structs each subsystem already declares with yaml tags
// (pkg/logger.Config, pkg/telemetry.Config).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/duskdb/duskdb/pkg/logger"
	"github.com/duskdb/duskdb/pkg/telemetry"
)

// BufferPool holds the sizing knobs fixed at pool construction.
type BufferPool struct {
	PoolSize  int `yaml:"pool_size"`
	ReplacerK int `yaml:"replacer_k"`
	PageSize  int `yaml:"page_size"`
}

// Disk holds the backing file location.
type Disk struct {
	DataFile string `yaml:"data_file"`
}

// Index holds the extendible hash table's fixed depth/size knobs.
type Index struct {
	HeaderMaxDepth    uint32 `yaml:"header_max_depth"`
	DirectoryMaxDepth uint32 `yaml:"directory_max_depth"`
	BucketMaxSize     uint32 `yaml:"bucket_max_size"`
}

// Config is the top-level document.
type Config struct {
	BufferPool BufferPool         `yaml:"buffer_pool"`
	Disk       Disk               `yaml:"disk"`
	Index      Index              `yaml:"index"`
	Logging    logger.Config      `yaml:"logging"`
	Telemetry  telemetry.Config   `yaml:"telemetry"`
}

// Default returns the configuration duskdb runs with absent a config
// file: a small pool, LRU-2, a data file in the working directory,
// console logging, and telemetry disabled.
func Default() Config {
	return Config{
		BufferPool: BufferPool{PoolSize: 64, ReplacerK: 2, PageSize: 4096},
		Disk:       Disk{DataFile: "duskdb.db"},
		Index:      Index{HeaderMaxDepth: 9, DirectoryMaxDepth: 9, BucketMaxSize: 128},
		Logging:    logger.Config{Level: "info", Format: "console", OutputFile: "stdout"},
		Telemetry:  telemetry.Config{Enabled: false, ServiceName: "duskdb", PrometheusPort: 9464},
	}
}

// Load reads and parses the YAML file at path, starting from Default
// so a partial file only overrides the fields it sets.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Package config loads store configuration from YAML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-kv/pkg/command"
	"github.com/dd0wney/cluso-kv/pkg/logging"
	"github.com/dd0wney/cluso-kv/pkg/lsm"
	"github.com/dd0wney/cluso-kv/pkg/metrics"
)

// validate is a singleton validator instance
var validate = validator.New()

// Config is the on-disk configuration of a store
type Config struct {
	Dir                string `yaml:"dir" validate:"required"`
	MemTableThreshold  int    `yaml:"memtable_threshold" validate:"min=1"`
	PartitionSize      int    `yaml:"partition_size" validate:"min=1,max=65536"`
	Compression        string `yaml:"compression" validate:"oneof=none snappy zstd"`
	SyncWrites         bool   `yaml:"sync_writes"`
	UseMmap            bool   `yaml:"use_mmap"`
	PartitionCacheSize int    `yaml:"partition_cache_size" validate:"min=0"`
	LogLevel           string `yaml:"log_level" validate:"oneof=debug info warn warning error"`
}

// Default returns the default configuration
func Default() Config {
	defaults := lsm.DefaultOptions("data")
	return Config{
		Dir:                defaults.Dir,
		MemTableThreshold:  defaults.MemTableThreshold,
		PartitionSize:      defaults.PartitionSize,
		Compression:        defaults.Compression.String(),
		SyncWrites:         defaults.SyncWrites,
		PartitionCacheSize: 0,
		LogLevel:           "info",
	}
}

// Load reads a YAML file on top of the defaults. Unknown fields are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.Compression = strings.ToLower(cfg.Compression)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags
func (c Config) Validate() error {
	return formatValidationError(validate.Struct(c))
}

// Options converts the configuration into store options
func (c Config) Options(logger logging.Logger, registry *metrics.Registry) (lsm.Options, error) {
	if err := c.Validate(); err != nil {
		return lsm.Options{}, err
	}

	compression, err := command.ParseCompression(c.Compression)
	if err != nil {
		return lsm.Options{}, err
	}

	return lsm.Options{
		Dir:                c.Dir,
		MemTableThreshold:  c.MemTableThreshold,
		PartitionSize:      c.PartitionSize,
		Compression:        compression,
		SyncWrites:         c.SyncWrites,
		UseMmap:            c.UseMmap,
		PartitionCacheSize: c.PartitionCacheSize,
		Logger:             logger,
		Metrics:            registry,
	}, nil
}

// Level returns the configured log level
func (c Config) Level() logging.Level {
	return logging.ParseLevel(c.LogLevel)
}

func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Return the first validation error in a user-friendly format
	for _, e := range validationErrs {
		field := e.Field()
		param := e.Param()

		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s], got %q", field, param, e.Value())
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}

	return err
}

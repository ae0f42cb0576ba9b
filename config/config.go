// Package config holds the pipeline configuration: storage target, key
// layout, size limits, and flush cadence. A Config is validated once before
// the pipeline starts and is immutable for the process lifetime.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Limits on the configurable sizes. A buffer larger than 50 MB or objects
// beyond 50 GB accumulate far past the latency the pipeline is built for.
const (
	MaxBufferSizeLimitKB = 50_000
	MaxObjectSizeLimitMB = 50_000
)

// StorageConfig selects the bucket the pipeline ships to.
type StorageConfig struct {
	Backend   string `yaml:"backend"` // "s3" | "gcs" | "local" | "mem"
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	LocalDir  string `yaml:"local_dir"`
}

// UploadConfig bounds retry behavior for one flush cycle.
type UploadConfig struct {
	Attempts         int `yaml:"attempts"`
	BackoffBaseMs    int `yaml:"backoff_base_ms"`
	AttemptTimeoutMs int `yaml:"attempt_timeout_ms"`
}

// MetricsConfig configures the optional Prometheus endpoint (agent only).
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig configures the process logger (agent only).
type LoggingConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Config is the full pipeline configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`

	// Key layout: objects land at {date}/{index}/{prefix}-{id}.{postfix}.
	Prefix  string `yaml:"prefix"`
	Postfix string `yaml:"postfix"`

	// Encoding of the object body: "none" | "gzip" | "zstd".
	Encoding string `yaml:"encoding"`

	ObjectSizeLimitMB int  `yaml:"object_size_limit_mb"`
	BufferSizeLimitKB int  `yaml:"buffer_size_limit_kb"`
	FlushIntervalMs   int  `yaml:"flush_interval_ms"`
	SizeTrigger       bool `yaml:"size_trigger"` // flush early when the buffer crosses its limit

	// StateDir, when set, persists partition state across restarts.
	StateDir string `yaml:"state_dir"`

	Upload  UploadConfig  `yaml:"upload"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// Default returns a config with working limits; storage and key layout
// still need to be filled in.
func Default() Config {
	return Config{
		Storage:           StorageConfig{Backend: "s3", Region: "us-west-2"},
		Prefix:            "logs",
		Postfix:           "jsonl",
		Encoding:          "none",
		ObjectSizeLimitMB: 100,
		BufferSizeLimitKB: 1024,
		FlushIntervalMs:   5000,
		SizeTrigger:       true,
		Upload: UploadConfig{
			Attempts:         3,
			BackoffBaseMs:    1000,
			AttemptTimeoutMs: 30_000,
		},
	}
}

// FromEnv overlays environment variables onto the default config. The
// variable names are the ones services already export for this pipeline.
func FromEnv() Config {
	cfg := Default()
	cfg.Storage.Region = getenvDefault("S3_TRACING_AWS_REGION", cfg.Storage.Region)
	cfg.Storage.Bucket = os.Getenv("S3_TRACING_BUCKET")
	cfg.Storage.AccessKey = os.Getenv("S3_TRACING_AWS_ACCESS_KEY_ID")
	cfg.Storage.SecretKey = os.Getenv("S3_TRACING_AWS_SECRET_ACCESS_KEY")
	cfg.Storage.Endpoint = os.Getenv("S3_TRACING_ENDPOINT")
	return cfg
}

// Load reads a YAML config file over the defaults and validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects invalid settings before the pipeline starts.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case "s3", "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("config: bucket required for %s backend", c.Storage.Backend)
		}
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("config: local_dir required for local backend")
		}
	case "mem":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}

	if c.Prefix == "" {
		return fmt.Errorf("config: prefix must not be empty")
	}
	if c.Postfix == "" {
		return fmt.Errorf("config: postfix must not be empty")
	}

	if c.ObjectSizeLimitMB < 1 {
		return fmt.Errorf("config: object_size_limit_mb must be larger than 0")
	}
	if c.ObjectSizeLimitMB > MaxObjectSizeLimitMB {
		return fmt.Errorf("config: object_size_limit_mb must be at most %d", MaxObjectSizeLimitMB)
	}
	if c.BufferSizeLimitKB < 1 {
		return fmt.Errorf("config: buffer_size_limit_kb must be larger than 0")
	}
	if c.BufferSizeLimitKB > MaxBufferSizeLimitKB {
		return fmt.Errorf("config: buffer_size_limit_kb must be at most %d", MaxBufferSizeLimitKB)
	}
	if c.FlushIntervalMs < 1 {
		return fmt.Errorf("config: flush_interval_ms must be larger than 0")
	}

	switch c.Encoding {
	case "", "none", "gzip", "zstd":
	default:
		return fmt.Errorf("config: unknown encoding %q", c.Encoding)
	}

	if c.Upload.Attempts < 0 || c.Upload.BackoffBaseMs < 0 || c.Upload.AttemptTimeoutMs < 0 {
		return fmt.Errorf("config: upload settings must not be negative")
	}

	return nil
}

// FlushInterval returns the flush interval as a duration.
func (c Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMs) * time.Millisecond
}

// ObjectSizeLimit returns the per-partition accumulation limit in bytes.
func (c Config) ObjectSizeLimit() int64 {
	return int64(c.ObjectSizeLimitMB) * 1024 * 1024
}

// BufferSizeLimit returns the buffer threshold in bytes.
func (c Config) BufferSizeLimit() int64 {
	return int64(c.BufferSizeLimitKB) * 1024
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

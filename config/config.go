// Package config handles service configuration for the pipeline.
//
// Environment variables are the authoritative source (the deployment
// contract); an optional YAML file supplies defaults for values the
// environment leaves unset. ${VAR} and ${VAR:-default} patterns in the
// file are expanded before parsing.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults for values neither the environment nor a config file provides.
const (
	DefaultStreamKey     = "transaction_events"
	DefaultBlobPath      = "./data/local-s3"
	DefaultFlushInterval = 10 * time.Second
	DefaultBatchSize     = 100

	DefaultThresholdAllow = 0.3
	DefaultThresholdBlock = 0.7

	DefaultRedisHost = "localhost"
	DefaultRedisPort = 6379
)

// Config holds the shared configuration for all three services.
// Fields not used by a given service are ignored by it.
type Config struct {
	RedisHost string `yaml:"redis_host"`
	RedisPort int    `yaml:"redis_port"`

	// StreamKey is the event-log stream name.
	StreamKey string `yaml:"stream_key"`

	// Blob storage. Path is either a local directory or, when Bucket is
	// set, a prefix within that S3 bucket.
	Storage StorageConfig `yaml:"storage"`

	// Ingest columnar writer knobs.
	FlushInterval Duration `yaml:"flush_interval"`
	BatchSize     int      `yaml:"batch_size"`

	// Inference.
	ModelPath      string  `yaml:"model_path"`
	ThresholdAllow float64 `yaml:"threshold_allow"`
	ThresholdBlock float64 `yaml:"threshold_block"`

	// ListenAddr is the HTTP bind address for the running service.
	ListenAddr string `yaml:"listen_addr"`
}

// StorageConfig selects and configures the blob-store backend.
// An empty Bucket selects the local filesystem backend rooted at Path.
type StorageConfig struct {
	Path      string `yaml:"path"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// RedisAddr returns the host:port address of the Redis endpoint.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// applyDefaults fills zero values with pipeline defaults.
func (c *Config) applyDefaults() {
	if c.RedisHost == "" {
		c.RedisHost = DefaultRedisHost
	}
	if c.RedisPort == 0 {
		c.RedisPort = DefaultRedisPort
	}
	if c.StreamKey == "" {
		c.StreamKey = DefaultStreamKey
	}
	if c.Storage.Path == "" && c.Storage.Bucket == "" {
		c.Storage.Path = DefaultBlobPath
	}
	if c.FlushInterval.Duration == 0 {
		c.FlushInterval.Duration = DefaultFlushInterval
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.ThresholdAllow == 0 {
		c.ThresholdAllow = DefaultThresholdAllow
	}
	if c.ThresholdBlock == 0 {
		c.ThresholdBlock = DefaultThresholdBlock
	}
}

// applyEnv overlays environment variables onto the config.
// The environment always wins over file values.
func (c *Config) applyEnv() error {
	setString(&c.RedisHost, "REDIS_HOST")
	if err := setInt(&c.RedisPort, "REDIS_PORT"); err != nil {
		return err
	}
	setString(&c.StreamKey, "STREAM_KEY")
	setString(&c.Storage.Path, "S3_BUCKET")
	setString(&c.Storage.Region, "S3_REGION")
	setString(&c.Storage.Endpoint, "S3_ENDPOINT")
	if v, ok := os.LookupEnv("S3_PATH_STYLE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("S3_PATH_STYLE: %w", err)
		}
		c.Storage.PathStyle = b
	}
	if v, ok := os.LookupEnv("FLUSH_INTERVAL"); ok {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FLUSH_INTERVAL: %w", err)
		}
		c.FlushInterval.Duration = time.Duration(secs) * time.Second
	}
	if err := setInt(&c.BatchSize, "BATCH_SIZE"); err != nil {
		return err
	}
	setString(&c.ModelPath, "MODEL_PATH")
	if err := setFloat(&c.ThresholdAllow, "THRESHOLD_ALLOW"); err != nil {
		return err
	}
	if err := setFloat(&c.ThresholdBlock, "THRESHOLD_BLOCK"); err != nil {
		return err
	}
	setString(&c.ListenAddr, "LISTEN_ADDR")
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

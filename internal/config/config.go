// Package config provides unified configuration for the logmill pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TrendBucket is the truncation unit applied to timestamps before grouping
// for trend analysis.
type TrendBucket string

const (
	BucketMinute TrendBucket = "minute"
	BucketHour   TrendBucket = "hour"
	BucketDay    TrendBucket = "day"
)

// Config holds the full pipeline configuration.
type Config struct {
	// Input is the path to the access-log file to ingest.
	Input string `json:"input" yaml:"input"`

	// Ingest configuration
	Ingest IngestConfig `json:"ingest" yaml:"ingest"`

	// Analysis configuration
	Analysis AnalysisConfig `json:"analysis" yaml:"analysis"`

	// Output configuration
	Output OutputConfig `json:"output" yaml:"output"`

	// Publish configuration (optional object-storage export)
	Publish PublishConfig `json:"publish" yaml:"publish"`
}

// IngestConfig holds ingestion configuration.
type IngestConfig struct {
	// Delimiter is the field delimiter for input rows.
	Delimiter string `json:"delimiter" yaml:"delimiter"`

	// HasHeader marks the first row as a header to skip.
	HasHeader bool `json:"has_header" yaml:"has_header"`

	// Strict aborts ingestion on the first malformed row instead of
	// tallying and skipping it.
	Strict bool `json:"strict" yaml:"strict"`
}

// AnalysisConfig holds aggregation engine configuration.
type AnalysisConfig struct {
	// TopK is the number of entries for top-K analyses.
	TopK int `json:"top_k" yaml:"top_k"`

	// FailureStatuses is the status-code set that counts as a failure
	// for suspicious-IP detection.
	FailureStatuses []int `json:"failure_statuses" yaml:"failure_statuses"`

	// SuspiciousThreshold is the strict lower bound on failure count
	// for a client to be reported as suspicious.
	SuspiciousThreshold int `json:"suspicious_threshold" yaml:"suspicious_threshold"`

	// TrendBucket is the bucket granularity for the traffic trend.
	TrendBucket TrendBucket `json:"trend_bucket" yaml:"trend_bucket"`

	// Timeout bounds each individual analysis. Zero means no deadline.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Workers caps concurrent analyses. Zero means one worker per analysis.
	Workers int `json:"workers" yaml:"workers"`
}

// OutputConfig holds result sink configuration.
type OutputConfig struct {
	// Dir is the directory where result files are written.
	Dir string `json:"dir" yaml:"dir"`

	// SQLite also writes all results into a results.db database.
	SQLite bool `json:"sqlite" yaml:"sqlite"`

	// CompressExport writes partition export streams snappy-compressed.
	CompressExport bool `json:"compress_export" yaml:"compress_export"`
}

// PublishConfig holds optional object-storage publication settings.
type PublishConfig struct {
	// Type is the object storage type: none, local, s3.
	Type string `json:"type" yaml:"type"`

	// Path is the local object storage path (for local type).
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name.
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region.
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage).
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			Delimiter: ",",
			HasHeader: true,
		},
		Analysis: AnalysisConfig{
			TopK:                3,
			FailureStatuses:     []int{404, 500},
			SuspiciousThreshold: 3,
			TrendBucket:         BucketMinute,
			Timeout:             0,
			Workers:             0,
		},
		Output: OutputConfig{
			Dir:            "./results",
			SQLite:         true,
			CompressExport: false,
		},
		Publish: PublishConfig{
			Type: "none",
		},
	}
}

// FailureStatusSet returns the failure statuses as a set.
func (c *AnalysisConfig) FailureStatusSet() map[int]bool {
	set := make(map[int]bool, len(c.FailureStatuses))
	for _, s := range c.FailureStatuses {
		set[s] = true
	}
	return set
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Ingest.Delimiter == "" {
		return fmt.Errorf("ingest.delimiter is required")
	}
	if len(c.Ingest.Delimiter) != 1 {
		return fmt.Errorf("ingest.delimiter must be a single character, got %q", c.Ingest.Delimiter)
	}

	if c.Analysis.TopK <= 0 {
		return fmt.Errorf("analysis.top_k must be > 0, got %d", c.Analysis.TopK)
	}
	if c.Analysis.SuspiciousThreshold < 0 {
		return fmt.Errorf("analysis.suspicious_threshold must be >= 0, got %d", c.Analysis.SuspiciousThreshold)
	}
	if len(c.Analysis.FailureStatuses) == 0 {
		return fmt.Errorf("analysis.failure_statuses must not be empty")
	}
	for _, s := range c.Analysis.FailureStatuses {
		if s < 100 || s > 599 {
			return fmt.Errorf("analysis.failure_statuses: %d outside 100-599", s)
		}
	}
	switch c.Analysis.TrendBucket {
	case BucketMinute, BucketHour, BucketDay:
		// Valid granularities
	default:
		return fmt.Errorf("invalid trend_bucket: %s (must be minute, hour, or day)", c.Analysis.TrendBucket)
	}
	if c.Analysis.Timeout < 0 {
		return fmt.Errorf("analysis.timeout must be >= 0")
	}
	if c.Analysis.Workers < 0 {
		return fmt.Errorf("analysis.workers must be >= 0, got %d", c.Analysis.Workers)
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}

	switch c.Publish.Type {
	case "none", "local", "s3":
		// Valid publish targets
	default:
		return fmt.Errorf("invalid publish type: %s (must be none, local, or s3)", c.Publish.Type)
	}
	if c.Publish.Type == "s3" && c.Publish.S3.Bucket == "" {
		return fmt.Errorf("publish.s3.bucket is required when publish type is s3")
	}
	if c.Publish.Type == "local" && c.Publish.Path == "" {
		return fmt.Errorf("publish.path is required when publish type is local")
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the LOGMILL_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("LOGMILL_INPUT"); v != "" {
		cfg.Input = v
	}
	if v := os.Getenv("LOGMILL_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("LOGMILL_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.TopK = n
		}
	}
	if v := os.Getenv("LOGMILL_SUSPICIOUS_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.SuspiciousThreshold = n
		}
	}
	if v := os.Getenv("LOGMILL_FAILURE_STATUSES"); v != "" {
		if statuses, err := parseStatusList(v); err == nil {
			cfg.Analysis.FailureStatuses = statuses
		}
	}
	if v := os.Getenv("LOGMILL_TREND_BUCKET"); v != "" {
		cfg.Analysis.TrendBucket = TrendBucket(v)
	}
	if v := os.Getenv("LOGMILL_ANALYSIS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Analysis.Timeout = d
		}
	}
	if v := os.Getenv("LOGMILL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.Workers = n
		}
	}
	if v := os.Getenv("LOGMILL_STRICT"); v != "" {
		cfg.Ingest.Strict = v == "true" || v == "1"
	}
	if v := os.Getenv("LOGMILL_PUBLISH_TYPE"); v != "" {
		cfg.Publish.Type = v
	}
	if v := os.Getenv("LOGMILL_PUBLISH_PATH"); v != "" {
		cfg.Publish.Path = v
	}
	if v := os.Getenv("LOGMILL_S3_BUCKET"); v != "" {
		cfg.Publish.S3.Bucket = v
	}
	if v := os.Getenv("LOGMILL_S3_REGION"); v != "" {
		cfg.Publish.S3.Region = v
	}
	if v := os.Getenv("LOGMILL_S3_ENDPOINT"); v != "" {
		cfg.Publish.S3.Endpoint = v
	}
}

// parseStatusList parses a comma-separated status code list, e.g. "404,500".
func parseStatusList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	statuses := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid status code %q: %w", p, err)
		}
		statuses = append(statuses, n)
	}
	sort.Ints(statuses)
	return statuses, nil
}

// EnsureOutputDir creates the output directory if needed.
func (c *Config) EnsureOutputDir() error {
	if err := os.MkdirAll(c.Output.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", c.Output.Dir, err)
	}
	return nil
}

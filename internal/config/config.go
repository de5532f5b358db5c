// Package config loads hls-stitch settings from an optional YAML file and the
// environment. Precedence: defaults, then the file, then HLS_STITCH_* variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	AssemblerFFmpeg = "ffmpeg"
	AssemblerMemory = "memory"

	DefaultOutputName = "output.mp4"
	// MemoryOutputName replaces the default name when the memory assembler,
	// which can only produce MPEG-TS, is selected.
	MemoryOutputName = "output.ts"
)

// Config holds downloader, server and storage settings.
type Config struct {
	// Pipeline
	BatchSize       int    `yaml:"batch_size"`       // concurrent fetches per batch (default 10)
	OutputName      string `yaml:"output_name"`      // assembler output; extension picks the container
	ContentType     string `yaml:"content_type"`     // "" = derived from OutputName
	ForwardHeaders  bool   `yaml:"forward_headers"`  // send manifest request headers with segment requests
	RequireComplete bool   `yaml:"require_complete"` // fail instead of stitching a partial download

	// HTTP
	HTTPTimeout       time.Duration `yaml:"http_timeout"`
	MaxConnsPerHost   int           `yaml:"max_conns_per_host"`  // 0 = unlimited
	RequestsPerSecond float64       `yaml:"requests_per_second"` // per host; 0 = unlimited
	RequestBurst      int           `yaml:"request_burst"`

	// Assembler
	Assembler  string `yaml:"assembler"`   // "ffmpeg" | "memory"
	FFmpegPath string `yaml:"ffmpeg_path"` // "" = look up "ffmpeg" in PATH
	WorkDir    string `yaml:"work_dir"`    // scratch space for ffmpeg sessions; "" = os.TempDir

	// Output
	OutputDir string   `yaml:"output_dir"`
	S3        S3Config `yaml:"s3"`

	// Service
	HistoryDB  string `yaml:"history_db"` // "" = no job history
	ListenAddr string `yaml:"listen_addr"`
	RetainJobs int    `yaml:"retain_jobs"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // "console" | "json"
}

// S3Config selects an S3-compatible bucket for artifacts. Empty Bucket keeps output local.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"` // e.g. http://minio:9000
	PathStyle bool   `yaml:"path_style"`
}

// Defaults returns the built-in settings.
func Defaults() *Config {
	return &Config{
		BatchSize:       10,
		OutputName:      DefaultOutputName,
		HTTPTimeout:     60 * time.Second,
		MaxConnsPerHost: 10,
		RequestBurst:    1,
		Assembler:       AssemblerFFmpeg,
		OutputDir:       ".",
		ListenAddr:      ":8080",
		RetainJobs:      32,
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// Load builds the config: defaults, then path (if non-empty), then environment.
// Call LoadEnvFile(".env") first to pick up a .env file.
func Load(path string) (*Config, error) {
	c := Defaults()
	if path != "" {
		if err := c.applyFile(path); err != nil {
			return nil, err
		}
	}
	c.applyEnv()
	return c, nil
}

// applyFile reads a YAML file, expands ${VAR} references and unmarshals it over c.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", path)
		}
		return fmt.Errorf("cannot read config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), c); err != nil {
		return fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.BatchSize = getEnvInt("HLS_STITCH_BATCH_SIZE", c.BatchSize)
	c.OutputName = getEnv("HLS_STITCH_OUTPUT_NAME", c.OutputName)
	c.ContentType = getEnv("HLS_STITCH_CONTENT_TYPE", c.ContentType)
	c.ForwardHeaders = getEnvBool("HLS_STITCH_FORWARD_HEADERS", c.ForwardHeaders)
	c.RequireComplete = getEnvBool("HLS_STITCH_REQUIRE_COMPLETE", c.RequireComplete)
	c.HTTPTimeout = getEnvDuration("HLS_STITCH_HTTP_TIMEOUT", c.HTTPTimeout)
	c.MaxConnsPerHost = getEnvInt("HLS_STITCH_MAX_CONNS_PER_HOST", c.MaxConnsPerHost)
	c.RequestsPerSecond = getEnvFloat("HLS_STITCH_REQUESTS_PER_SECOND", c.RequestsPerSecond)
	c.RequestBurst = getEnvInt("HLS_STITCH_REQUEST_BURST", c.RequestBurst)
	c.Assembler = strings.ToLower(getEnv("HLS_STITCH_ASSEMBLER", c.Assembler))
	c.FFmpegPath = getEnv("HLS_STITCH_FFMPEG_PATH", c.FFmpegPath)
	c.WorkDir = getEnv("HLS_STITCH_WORK_DIR", c.WorkDir)
	c.OutputDir = getEnv("HLS_STITCH_OUTPUT_DIR", c.OutputDir)
	c.S3.Bucket = getEnv("HLS_STITCH_S3_BUCKET", c.S3.Bucket)
	c.S3.Prefix = getEnv("HLS_STITCH_S3_PREFIX", c.S3.Prefix)
	c.S3.Region = getEnv("HLS_STITCH_S3_REGION", c.S3.Region)
	c.S3.Endpoint = getEnv("HLS_STITCH_S3_ENDPOINT", c.S3.Endpoint)
	c.S3.PathStyle = getEnvBool("HLS_STITCH_S3_PATH_STYLE", c.S3.PathStyle)
	c.HistoryDB = getEnv("HLS_STITCH_HISTORY_DB", c.HistoryDB)
	c.ListenAddr = getEnv("HLS_STITCH_LISTEN", c.ListenAddr)
	c.RetainJobs = getEnvInt("HLS_STITCH_RETAIN_JOBS", c.RetainJobs)
	c.LogLevel = getEnv("HLS_STITCH_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("HLS_STITCH_LOG_FORMAT", c.LogFormat)
}

// Finalize fills settings that depend on other settings. Call it once every
// override (file, environment, flags) is applied and before Validate.
func (c *Config) Finalize() {
	if c.Assembler == AssemblerMemory && c.OutputName == DefaultOutputName {
		c.OutputName = MemoryOutputName
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch_size must be positive, got %d", c.BatchSize))
	}
	if strings.TrimSpace(c.OutputName) == "" || strings.ContainsAny(c.OutputName, `/\`) {
		errs = append(errs, fmt.Errorf("output_name must be a bare file name, got %q", c.OutputName))
	}
	if c.HTTPTimeout < 0 {
		errs = append(errs, fmt.Errorf("http_timeout must not be negative"))
	}
	if c.MaxConnsPerHost < 0 {
		errs = append(errs, fmt.Errorf("max_conns_per_host must not be negative"))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests_per_second must not be negative"))
	}
	if c.RequestsPerSecond > 0 && c.RequestBurst <= 0 {
		errs = append(errs, fmt.Errorf("request_burst must be positive when requests_per_second is set"))
	}
	switch c.Assembler {
	case AssemblerFFmpeg:
	case AssemblerMemory:
		if !strings.EqualFold(filepath.Ext(c.OutputName), ".ts") {
			errs = append(errs, fmt.Errorf("output_name must end in .ts with the memory assembler, got %q", c.OutputName))
		}
	default:
		errs = append(errs, fmt.Errorf("assembler must be %q or %q, got %q", AssemblerFFmpeg, AssemblerMemory, c.Assembler))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be console or json, got %q", c.LogFormat))
	}
	if c.S3.Bucket == "" && (c.S3.Endpoint != "" || c.S3.Prefix != "") {
		errs = append(errs, fmt.Errorf("s3.bucket is required when s3 endpoint or prefix is set"))
	}
	return errors.Join(errs...)
}

// UseS3 reports whether artifacts go to a bucket instead of OutputDir.
func (c *Config) UseS3() bool { return c.S3.Bucket != "" }

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return defaultVal
		}
		return f
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch v {
	case "":
		return defaultVal
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

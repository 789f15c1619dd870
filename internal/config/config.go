// Package config provides configuration loading and validation for the
// crawler. Values come from an optional JSON file, environment variables,
// and CLI flags, in increasing order of precedence.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jwtham/folioharvest/internal/crawl"
)

// EnvPrefix is the prefix of all environment variables read by FromEnv.
const EnvPrefix = "FOLIOHARVEST_"

// Config is the crawler configuration. All fields are optional in the file;
// missing values fall back to defaults or must come from flags.
type Config struct {
	// Portal access.
	BaseURL string `json:"base_url,omitempty" validate:"omitempty,url"`
	Cookie  string `json:"cookie,omitempty"`

	// Browser.
	Headless bool `json:"headless,omitempty"`

	// Storage. StorageDir selects the file store; DatabaseURL, when set,
	// selects Postgres instead.
	StorageDir  string `json:"storage_dir,omitempty"`
	DatabaseURL string `json:"database_url,omitempty"`

	// Server.
	ListenAddr string `json:"listen_addr,omitempty" validate:"omitempty,hostname_port"`

	// Politeness delays, in milliseconds.
	ItemProcessDelayMs  int `json:"item_process_delay_ms,omitempty" validate:"min=0"`
	ScrollSettleDelayMs int `json:"scroll_settle_delay_ms,omitempty" validate:"min=0"`
	ModalSettleDelayMs  int `json:"modal_settle_delay_ms,omitempty" validate:"min=0"`
	RetryDelayMs        int `json:"retry_delay_ms,omitempty" validate:"min=0"`

	MaxRetries          int `json:"max_retries,omitempty" validate:"min=0"`
	DownloadConcurrency int `json:"download_concurrency,omitempty" validate:"min=0"`

	// Logging.
	LogLevel string `json:"log_level,omitempty" validate:"omitempty,oneof=trace debug info warn error"`
	LogDir   string `json:"log_dir,omitempty"`
}

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	d := crawl.DefaultDelays()
	return Config{
		Headless:            true,
		StorageDir:          ".folioharvest",
		ListenAddr:          "127.0.0.1:8797",
		ItemProcessDelayMs:  int(d.ItemProcess / time.Millisecond),
		ScrollSettleDelayMs: int(d.ScrollSettle / time.Millisecond),
		ModalSettleDelayMs:  int(d.ModalSettle / time.Millisecond),
		RetryDelayMs:        int(d.Retry / time.Millisecond),
		MaxRetries:          crawl.DefaultMaxRetries,
		DownloadConcurrency: 4,
		LogLevel:            "info",
	}
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &cfg, nil
}

// FromEnv overlays FOLIOHARVEST_* environment variables onto c. Unset
// variables leave the existing value alone.
func (c *Config) FromEnv() {
	setStr := func(dst *string, key string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setStr(&c.BaseURL, "BASE_URL")
	setStr(&c.Cookie, "COOKIE")
	setStr(&c.StorageDir, "STORAGE_DIR")
	setStr(&c.DatabaseURL, "DATABASE_URL")
	setStr(&c.ListenAddr, "LISTEN_ADDR")
	setStr(&c.LogLevel, "LOG_LEVEL")
	setStr(&c.LogDir, "LOG_DIR")
	setInt(&c.ItemProcessDelayMs, "ITEM_PROCESS_DELAY_MS")
	setInt(&c.ScrollSettleDelayMs, "SCROLL_SETTLE_DELAY_MS")
	setInt(&c.ModalSettleDelayMs, "MODAL_SETTLE_DELAY_MS")
	setInt(&c.RetryDelayMs, "RETRY_DELAY_MS")
	setInt(&c.MaxRetries, "MAX_RETRIES")
	setInt(&c.DownloadConcurrency, "DOWNLOAD_CONCURRENCY")
	if v, ok := os.LookupEnv(EnvPrefix + "HEADLESS"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Headless = b
		}
	}
}

// Merge returns a copy of c with empty fields filled from defaults.
func (c *Config) Merge(defaults Config) Config {
	result := *c
	if result.BaseURL == "" {
		result.BaseURL = defaults.BaseURL
	}
	if result.Cookie == "" {
		result.Cookie = defaults.Cookie
	}
	if result.StorageDir == "" {
		result.StorageDir = defaults.StorageDir
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.ListenAddr == "" {
		result.ListenAddr = defaults.ListenAddr
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.LogDir == "" {
		result.LogDir = defaults.LogDir
	}
	if result.ItemProcessDelayMs == 0 {
		result.ItemProcessDelayMs = defaults.ItemProcessDelayMs
	}
	if result.ScrollSettleDelayMs == 0 {
		result.ScrollSettleDelayMs = defaults.ScrollSettleDelayMs
	}
	if result.ModalSettleDelayMs == 0 {
		result.ModalSettleDelayMs = defaults.ModalSettleDelayMs
	}
	if result.RetryDelayMs == 0 {
		result.RetryDelayMs = defaults.RetryDelayMs
	}
	if result.MaxRetries == 0 {
		result.MaxRetries = defaults.MaxRetries
	}
	if result.DownloadConcurrency == 0 {
		result.DownloadConcurrency = defaults.DownloadConcurrency
	}
	return result
}

// Validate checks field formats and ranges.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// Delays converts the millisecond fields into crawl delays.
func (c *Config) Delays() crawl.Delays {
	return crawl.Delays{
		ItemProcess:  time.Duration(c.ItemProcessDelayMs) * time.Millisecond,
		ScrollSettle: time.Duration(c.ScrollSettleDelayMs) * time.Millisecond,
		ModalSettle:  time.Duration(c.ModalSettleDelayMs) * time.Millisecond,
		Retry:        time.Duration(c.RetryDelayMs) * time.Millisecond,
	}
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ligustah/trawl/internal/progress"
	"gopkg.in/yaml.v3"
)

// Config defines configuration for the trawl CLI.
type Config struct {
	BaseURL        string        `yaml:"base_url"`
	Start          int           `yaml:"start"`
	End            int           `yaml:"end"`
	Output         string        `yaml:"output"`
	Extension      string        `yaml:"extension"`
	LocalExtension string        `yaml:"local_extension"`
	Accept         string        `yaml:"accept"`
	Timeout        time.Duration `yaml:"timeout"`
	BufferSize     int64         `yaml:"buffer_size"`
	SkipExisting   bool          `yaml:"skip_existing"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Start:      1,
		End:        10000,
		Output:     "nft_collection_images",
		Extension:  ".jpg",
		Accept:     "image/",
		BufferSize: 32 * 1024, // 32KB
	}
}

// yamlConfig is used for YAML unmarshaling with string sizes and durations.
// Pointers distinguish an explicit zero or empty value from an absent key.
type yamlConfig struct {
	BaseURL        string  `yaml:"base_url"`
	Start          int     `yaml:"start"`
	End            int     `yaml:"end"`
	Output         string  `yaml:"output"`
	Extension      *string `yaml:"extension"`
	LocalExtension *string `yaml:"local_extension"`
	Accept         string  `yaml:"accept"`
	Timeout        string  `yaml:"timeout"`
	BufferSize     string  `yaml:"buffer_size"`
	SkipExisting   bool    `yaml:"skip_existing"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.BaseURL != "" {
		cfg.BaseURL = yc.BaseURL
	}
	if yc.Start != 0 {
		cfg.Start = yc.Start
	}
	if yc.End != 0 {
		cfg.End = yc.End
	}
	if yc.Output != "" {
		cfg.Output = yc.Output
	}
	if yc.Extension != nil {
		cfg.Extension = *yc.Extension
	}
	if yc.LocalExtension != nil {
		cfg.LocalExtension = *yc.LocalExtension
	}
	if yc.Accept != "" {
		cfg.Accept = yc.Accept
	}
	if yc.Timeout != "" {
		d, err := time.ParseDuration(yc.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if yc.BufferSize != "" {
		size, err := progress.ParseBytes(yc.BufferSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse buffer_size: %w", err)
		}
		cfg.BufferSize = size
	}
	cfg.SkipExisting = yc.SkipExisting

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the TRAWL_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("TRAWL_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("TRAWL_START"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse TRAWL_START: %w", err)
		}
		c.Start = n
	}
	if v := os.Getenv("TRAWL_END"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse TRAWL_END: %w", err)
		}
		c.End = n
	}
	if v := os.Getenv("TRAWL_OUTPUT"); v != "" {
		c.Output = v
	}
	// An empty extension is meaningful (extensionless remote names).
	if v, ok := os.LookupEnv("TRAWL_EXTENSION"); ok {
		c.Extension = v
	}
	if v, ok := os.LookupEnv("TRAWL_LOCAL_EXTENSION"); ok {
		c.LocalExtension = v
	}
	if v := os.Getenv("TRAWL_ACCEPT"); v != "" {
		c.Accept = v
	}
	if v := os.Getenv("TRAWL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse TRAWL_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("TRAWL_BUFFER_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse TRAWL_BUFFER_SIZE: %w", err)
		}
		c.BufferSize = size
	}
	if v := os.Getenv("TRAWL_SKIP_EXISTING"); v != "" {
		c.SkipExisting = v == "true" || v == "1"
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("config: base URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("config: invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config: base URL must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("config: base URL has no host")
	}
	if c.Start < 1 {
		return errors.New("config: start must be at least 1")
	}
	if c.End < c.Start {
		return errors.New("config: end must not be less than start")
	}
	if c.Output == "" {
		return errors.New("config: output is required")
	}
	if c.Accept == "" {
		return errors.New("config: accept prefix is required")
	}
	if c.BufferSize <= 0 {
		return errors.New("config: buffer_size must be positive")
	}
	if c.Timeout < 0 {
		return errors.New("config: timeout must not be negative")
	}
	return nil
}

// Overrides holds explicitly set values, typically from command-line flags.
// Nil fields leave the Config unchanged, so an override can set a field to
// its zero value.
type Overrides struct {
	BaseURL        *string
	Start          *int
	End            *int
	Output         *string
	Extension      *string
	LocalExtension *string
	Accept         *string
	Timeout        *time.Duration
	BufferSize     *int64
	SkipExisting   *bool
}

// Merge applies the non-nil fields of o to c, returning a new Config.
func (c Config) Merge(o Overrides) Config {
	if o.BaseURL != nil {
		c.BaseURL = *o.BaseURL
	}
	if o.Start != nil {
		c.Start = *o.Start
	}
	if o.End != nil {
		c.End = *o.End
	}
	if o.Output != nil {
		c.Output = *o.Output
	}
	if o.Extension != nil {
		c.Extension = *o.Extension
	}
	if o.LocalExtension != nil {
		c.LocalExtension = *o.LocalExtension
	}
	if o.Accept != nil {
		c.Accept = *o.Accept
	}
	if o.Timeout != nil {
		c.Timeout = *o.Timeout
	}
	if o.BufferSize != nil {
		c.BufferSize = *o.BufferSize
	}
	if o.SkipExisting != nil {
		c.SkipExisting = *o.SkipExisting
	}
	return c
}

// ObjectExtension returns the extension used for saved files. It falls back
// to the remote extension when no local extension is set.
func (c *Config) ObjectExtension() string {
	if c.LocalExtension != "" {
		return c.LocalExtension
	}
	return c.Extension
}

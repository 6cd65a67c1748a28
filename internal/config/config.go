// Package config handles configuration loading and validation for the BAR
// file syncer. Settings come from an optional YAML file overridden by
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the merged runtime configuration.
type Config struct {
	WatchDirectory      string `yaml:"watch_directory"`
	FileExtension       string `yaml:"file_extension"`
	APIBaseURL          string `yaml:"api_base_url"`
	ClientID            string `yaml:"client_id"`
	ClientSecret        string `yaml:"client_secret"`
	APIKey              string `yaml:"api_key"`
	InstanceID          string `yaml:"instance_id"`
	IntegrationServerID string `yaml:"integration_server_id"`
	DebounceMs          int    `yaml:"debounce_ms"`
	LogLevel            string `yaml:"log_level"`
	MetricsAddr         string `yaml:"metrics_addr"`
}

// Defaults returns a Config populated with the default settings.
func Defaults() Config {
	return Config{
		FileExtension: ".bar",
		DebounceMs:    1000,
		LogLevel:      "info",
	}
}

// Debounce returns the quiet period as a duration.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// GetenvPresent wraps os.LookupEnv to satisfy the getenv func signature.
func GetenvPresent(name string) (string, bool) { return os.LookupEnv(name) }

// FromFile overlays settings from a YAML file onto cfg.
func FromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// FromEnv overlays environment variables onto cfg. Missing variables are
// ignored; the environment always wins over the config file.
func FromEnv(cfg *Config, getenv func(string) (string, bool)) error {
	strVars := []struct {
		env string
		dst *string
	}{
		{"WATCH_DIRECTORY", &cfg.WatchDirectory},
		{"FILE_EXTENSION", &cfg.FileExtension},
		{"API_BASE_URL", &cfg.APIBaseURL},
		{"CLIENT_ID", &cfg.ClientID},
		{"CLIENT_SECRET", &cfg.ClientSecret},
		{"API_KEY", &cfg.APIKey},
		{"INSTANCE_ID", &cfg.InstanceID},
		{"INTEGRATION_SERVER_ID", &cfg.IntegrationServerID},
		{"LOG_LEVEL", &cfg.LogLevel},
		{"METRICS_ADDR", &cfg.MetricsAddr},
	}
	for _, sv := range strVars {
		if v, ok := getenv(sv.env); ok {
			*sv.dst = v
		}
	}

	if v, ok := getenv("DEBOUNCE_MS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DEBOUNCE_MS: %w", err)
		}
		cfg.DebounceMs = n
	}
	return nil
}

// Normalize cleans up values after loading: the file extension always
// carries a leading dot and the base URL no trailing slash.
func (c *Config) Normalize() {
	if c.FileExtension != "" && !strings.HasPrefix(c.FileExtension, ".") {
		c.FileExtension = "." + c.FileExtension
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
}

// MissingFieldError reports a required setting that was not provided.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("required setting %s is not set", e.Field)
}

// DirectoryError reports a watch directory that does not exist or is not a
// directory.
type DirectoryError struct {
	Dir string
	Err error
}

func (e *DirectoryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("watch directory %s: %v", e.Dir, e.Err)
	}
	return fmt.Sprintf("watch directory %s is not a directory", e.Dir)
}

func (e *DirectoryError) Unwrap() error { return e.Err }

// Validate performs field checks only and returns every problem found, so
// an operator sees all missing settings at once. It does not touch the
// file system; see CheckWatchDirectory.
func Validate(cfg Config) []error {
	required := []struct {
		field string
		value string
	}{
		{"WATCH_DIRECTORY", cfg.WatchDirectory},
		{"API_BASE_URL", cfg.APIBaseURL},
		{"CLIENT_ID", cfg.ClientID},
		{"CLIENT_SECRET", cfg.ClientSecret},
		{"API_KEY", cfg.APIKey},
		{"INSTANCE_ID", cfg.InstanceID},
		{"INTEGRATION_SERVER_ID", cfg.IntegrationServerID},
	}

	var errs []error
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, &MissingFieldError{Field: r.field})
		}
	}
	if cfg.DebounceMs <= 0 {
		errs = append(errs, fmt.Errorf("DEBOUNCE_MS must be > 0"))
	}
	return errs
}

// CheckWatchDirectory verifies that the configured watch path exists and is
// a directory.
func CheckWatchDirectory(dir string) error {
	st, err := os.Stat(dir)
	if err != nil {
		return &DirectoryError{Dir: dir, Err: err}
	}
	if !st.IsDir() {
		return &DirectoryError{Dir: dir}
	}
	return nil
}

// Load runs the full pipeline: defaults, optional config file, environment
// overlay, normalization and field validation. cfgFile may be empty.
func Load(cfgFile string, getenv func(string) (string, bool)) (*Config, []error) {
	cfg := Defaults()
	if cfgFile != "" {
		if err := FromFile(cfgFile, &cfg); err != nil {
			return nil, []error{err}
		}
	}
	if err := FromEnv(&cfg, getenv); err != nil {
		return nil, []error{err}
	}
	cfg.Normalize()
	if errs := Validate(cfg); len(errs) > 0 {
		return nil, errs
	}
	return &cfg, nil
}

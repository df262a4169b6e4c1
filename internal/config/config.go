package config

import (
	"fmt"
	"strings"
	"time"
)

const DefaultPath = "~/.yasp/config.yaml"

// Config represents the service configuration (config.yaml).
type Config struct {
	Server    ServerSection    `yaml:"server"`
	Fetch     FetchSection     `yaml:"fetch"`
	Storage   StorageSection   `yaml:"storage"`
	RateLimit RateLimitSection `yaml:"rateLimit"`
	Logging   LoggingSection   `yaml:"logging"`
}

type ServerSection struct {
	Listen          string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"readTimeout,omitempty"`
	WriteTimeout    time.Duration `yaml:"writeTimeout,omitempty"`
	MaxRequestBytes int64         `yaml:"maxRequestBytes,omitempty"`
}

type FetchSection struct {
	Timeout             time.Duration `yaml:"timeout,omitempty"`
	MaxBytes            int64         `yaml:"maxBytes,omitempty"`
	MaxRedirects        int           `yaml:"maxRedirects,omitempty"`
	AllowedSchemes      []string      `yaml:"allowedSchemes,omitempty"`
	BlockedHostKeywords []string      `yaml:"blockedHostKeywords,omitempty"`
}

type StorageSection struct {
	Database string `yaml:"database"`
}

// RateLimitSection bounds outbound fetches per client IP. Zero disables a
// window.
type RateLimitSection struct {
	FetchPerMinute int `yaml:"fetchPerMinute"`
	FetchPerHour   int `yaml:"fetchPerHour"`
}

type LoggingSection struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with every field set.
func Default() *Config {
	cfg := &Config{
		RateLimit: RateLimitSection{
			FetchPerMinute: 30,
			FetchPerHour:   600,
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in missing fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = "localhost:8787"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.MaxRequestBytes == 0 {
		c.Server.MaxRequestBytes = 8 << 20
	}

	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.MaxBytes == 0 {
		c.Fetch.MaxBytes = 5 << 20
	}
	if c.Fetch.MaxRedirects == 0 {
		c.Fetch.MaxRedirects = 3
	}
	if len(c.Fetch.AllowedSchemes) == 0 {
		c.Fetch.AllowedSchemes = []string{"http", "https"}
	}
	if c.Fetch.BlockedHostKeywords == nil {
		c.Fetch.BlockedHostKeywords = []string{"metadata", "instance-data"}
	}

	if c.Storage.Database == "" {
		c.Storage.Database = "~/.yasp/yasp.db"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Listen) == "" {
		return fmt.Errorf("server.listen is required")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server timeouts must be >= 0")
	}
	if c.Server.MaxRequestBytes < 0 {
		return fmt.Errorf("server.maxRequestBytes must be >= 0")
	}
	if c.Fetch.Timeout < 0 {
		return fmt.Errorf("fetch.timeout must be >= 0")
	}
	if c.Fetch.MaxBytes < 0 {
		return fmt.Errorf("fetch.maxBytes must be >= 0")
	}
	if c.Fetch.MaxRedirects < 0 {
		return fmt.Errorf("fetch.maxRedirects must be >= 0")
	}
	for i, scheme := range c.Fetch.AllowedSchemes {
		switch strings.ToLower(scheme) {
		case "http", "https":
		default:
			return fmt.Errorf("fetch.allowedSchemes[%d]: unsupported scheme %q", i, scheme)
		}
	}
	for i, kw := range c.Fetch.BlockedHostKeywords {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("fetch.blockedHostKeywords[%d]: keyword cannot be empty", i)
		}
	}
	if c.RateLimit.FetchPerMinute < 0 || c.RateLimit.FetchPerHour < 0 {
		return fmt.Errorf("rateLimit values must be >= 0")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unsupported logging.level %q", c.Logging.Level)
	}
	return nil
}

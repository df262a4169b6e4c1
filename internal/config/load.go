package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads config from path and returns the defaults if the file does
// not exist.
func Load(path string) (*Config, error) {
	path, err := ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses YAML config bytes, expands env vars, applies defaults, and validates.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded, err := ExpandEnvStrict(string(data))
	if err != nil {
		return nil, fmt.Errorf("expand config: %w", err)
	}
	cfg := Config{
		RateLimit: RateLimitSection{FetchPerMinute: 30, FetchPerHour: 600},
	}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ExpandPath expands ~ to the home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// GenerateDefault writes a commented default config.yaml.
func GenerateDefault(path string) error {
	path, err := ExpandPath(path)
	if err != nil {
		return fmt.Errorf("get home dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

const defaultConfig = `# yasp configuration

server:
  listen: "localhost:8787"
  readTimeout: 15s
  writeTimeout: 60s
  maxRequestBytes: 8388608

fetch:
  timeout: 30s
  maxBytes: 5242880
  maxRedirects: 3
  allowedSchemes: [http, https]
  # Hostnames containing any of these are refused (case-insensitive).
  blockedHostKeywords: [metadata, instance-data]

storage:
  database: "~/.yasp/yasp.db"

# Per client IP; 0 disables the window.
rateLimit:
  fetchPerMinute: 30
  fetchPerHour: 600

logging:
  level: "info"  # debug, info, warn, error
  format: "text" # text or json
`

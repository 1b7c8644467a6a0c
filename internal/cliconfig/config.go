// Package cliconfig loads and saves the CLI's YAML settings file.
package cliconfig

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvServerURL overrides server.url from the file.
const EnvServerURL = "TEAMFACES_SERVER_URL"

// EnvConfigDir overrides the config directory (tests, multiple profiles).
const EnvConfigDir = "TEAMFACES_CONFIG_DIR"

const (
	defaultServerURL = "http://localhost:8080"
	defaultErrorTTL  = 5 * time.Second
)

// Config holds the CLI configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
}

// ServerConfig is where the team board API lives.
type ServerConfig struct {
	URL string `yaml:"url"`
}

// SessionConfig tunes the session store.
type SessionConfig struct {
	// ErrorTTL is how long a session error stays visible before it clears itself.
	ErrorTTL time.Duration `yaml:"error_ttl"`
}

// GetConfigDir returns ~/.config/teamfaces unless overridden.
func GetConfigDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "teamfaces")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "teamfaces")
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{URL: defaultServerURL},
		Session: SessionConfig{ErrorTTL: defaultErrorTTL},
	}
}

// Load reads the config file if present, applies defaults and the environment override.
func Load() (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(GetConfigPath())
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", GetConfigPath(), err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", GetConfigPath(), err)
	}

	if v := os.Getenv(EnvServerURL); v != "" {
		cfg.Server.URL = v
	}
	if cfg.Server.URL == "" {
		cfg.Server.URL = defaultServerURL
	}
	if cfg.Session.ErrorTTL <= 0 {
		cfg.Session.ErrorTTL = defaultErrorTTL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return errors.New("server URL cannot be empty")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server URL must be an http(s) URL, got %q", c.Server.URL)
	}
	return nil
}

// Save writes the configuration to GetConfigPath, creating the directory if needed.
func (c *Config) Save() error {
	if err := os.MkdirAll(GetConfigDir(), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(GetConfigPath(), data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

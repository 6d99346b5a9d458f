package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/strrl/castor/pkg/models"
)

// Config holds all castor client configuration
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Logging LoggingConfig `yaml:"logging"`
	Archive ArchiveConfig `yaml:"archive"`
	Chat    ChatConfig    `yaml:"chat"`
}

// BackendConfig configures the REST backend
type BackendConfig struct {
	URL string `yaml:"url"`
	// Timeout is a duration string; empty means requests never time out
	Timeout string `yaml:"timeout"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level string `yaml:"level"`
	// File is a log file path, or "stderr"
	File string `yaml:"file"`
}

// ArchiveConfig points at the backend's chat_sessions directory for offline reads
type ArchiveConfig struct {
	Dir string `yaml:"dir"`
}

// ChatConfig holds chat defaults
type ChatConfig struct {
	DefaultPhase string `yaml:"default_phase"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	logFile := "castor.log"
	if home, err := os.UserHomeDir(); err == nil {
		logFile = filepath.Join(home, ".castor", "castor.log")
	}

	return &Config{
		Backend: BackendConfig{
			URL: "http://localhost:8000",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  logFile,
		},
		Chat: ChatConfig{
			DefaultPhase: models.DefaultPhase,
		},
	}
}

// DefaultPath returns ~/.castor/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "castor.yaml"
	}
	return filepath.Join(home, ".castor", "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the configuration for obviously broken values
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend url %q", c.Backend.URL)
	}
	if _, err := c.RequestTimeout(); err != nil {
		return err
	}
	if c.Chat.DefaultPhase != "" && !models.IsKnownPhase(c.Chat.DefaultPhase) {
		return fmt.Errorf("unknown default phase %q", c.Chat.DefaultPhase)
	}
	return nil
}

// RequestTimeout parses Backend.Timeout. Zero means no timeout.
func (c *Config) RequestTimeout() (time.Duration, error) {
	if strings.TrimSpace(c.Backend.Timeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Backend.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid backend timeout %q: %w", c.Backend.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("backend timeout must not be negative")
	}
	return d, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CASTOR_BACKEND_URL"); v != "" {
		c.Backend.URL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("CASTOR_BACKEND_TIMEOUT"); v != "" {
		c.Backend.Timeout = v
	}
	if v := os.Getenv("CASTOR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CASTOR_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("CASTOR_ARCHIVE_DIR"); v != "" {
		c.Archive.Dir = v
	}
	if v := os.Getenv("CASTOR_DEFAULT_PHASE"); v != "" {
		c.Chat.DefaultPhase = v
	}
}

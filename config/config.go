// Package config loads the YAML configuration file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nedpals/davi-tagauth/tagauth"
)

// Reader backends.
const (
	BackendAuto   = "auto"
	BackendLibNFC = "libnfc"
	BackendPCSC   = "pcsc"
)

const (
	DefaultPort         = 18080
	DefaultPollTimeout  = 10 * time.Second
	DefaultPollInterval = 250 * time.Millisecond
	DefaultKeyEnv       = "TAGAUTH_KEY"
)

type Config struct {
	Reader ReaderConfig `yaml:"reader"`
	Auth   AuthConfig   `yaml:"auth"`
	Server ServerConfig `yaml:"server"`
}

type ReaderConfig struct {
	Backend string `yaml:"backend"`
	Device  string `yaml:"device"`

	// PollTimeout is how long a session waits for a tag. An explicit 0
	// means a single poll; unset means DefaultPollTimeout.
	PollTimeout  *time.Duration `yaml:"poll_timeout"`
	PollInterval time.Duration  `yaml:"poll_interval"`
}

type AuthConfig struct {
	MACSize int    `yaml:"mac_size"`
	KeyFile string `yaml:"key_file"`
	KeyEnv  string `yaml:"key_env"`
	Prompt  bool   `yaml:"prompt"`
}

type ServerConfig struct {
	Port      int    `yaml:"port"`
	APISecret string `yaml:"api_secret"`
	MDNS      *bool  `yaml:"mdns"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads, defaults and validates the file at path.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.applyDefaults()
	cfg.resolvePaths(path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MDNSEnabled reports whether the server should advertise itself.
func (c *Config) MDNSEnabled() bool {
	return c.Server.MDNS == nil || *c.Server.MDNS
}

// ReaderPollTimeout returns the configured poll timeout, or
// DefaultPollTimeout when none is set.
func (c *Config) ReaderPollTimeout() time.Duration {
	if c.Reader.PollTimeout == nil {
		return DefaultPollTimeout
	}
	return *c.Reader.PollTimeout
}

func (c *Config) applyDefaults() {
	if c.Reader.Backend == "" {
		c.Reader.Backend = BackendAuto
	}
	if c.Reader.PollInterval == 0 {
		c.Reader.PollInterval = DefaultPollInterval
	}
	if c.Auth.MACSize == 0 {
		c.Auth.MACSize = tagauth.DefaultMACSize
	}
	if c.Auth.KeyEnv == "" {
		c.Auth.KeyEnv = DefaultKeyEnv
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
}

func (c *Config) Validate() error {
	switch c.Reader.Backend {
	case BackendAuto, BackendLibNFC, BackendPCSC:
	default:
		return fmt.Errorf("config.reader.backend must be one of %s, %s, %s", BackendAuto, BackendLibNFC, BackendPCSC)
	}
	if c.Reader.PollTimeout != nil && *c.Reader.PollTimeout < 0 {
		return fmt.Errorf("config.reader.poll_timeout must be >= 0")
	}
	if c.Reader.PollInterval <= 0 {
		return fmt.Errorf("config.reader.poll_interval must be > 0")
	}
	if c.Auth.MACSize < tagauth.MinMACSize || c.Auth.MACSize > tagauth.MaxMACSize {
		return fmt.Errorf("config.auth.mac_size must be %d..%d", tagauth.MinMACSize, tagauth.MaxMACSize)
	}
	if c.Auth.KeyFile != "" {
		if err := validateReadableFile(c.Auth.KeyFile, "config.auth.key_file"); err != nil {
			return err
		}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config.server.port must be 0..65535")
	}
	return nil
}

func (c *Config) resolvePaths(configPath string) {
	configDir := filepath.Dir(configPath)
	c.Auth.KeyFile = resolvePath(configDir, c.Auth.KeyFile)
}

func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Clean(filepath.Join(baseDir, trimmed))
}

func validateReadableFile(path string, field string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s must point to a file, got directory", field)
	}
	return nil
}

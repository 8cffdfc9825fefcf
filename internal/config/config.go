// Package config loads portalctl settings from ~/.agentmitra/config.yaml
// with environment overrides.
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentmitra/portalctl/internal/errors"
	"github.com/agentmitra/portalctl/internal/log"
)

// Dir is the per-user directory under the home directory holding config
// and session files.
const Dir = ".agentmitra"

// Defaults.
const (
	DefaultAPIURL     = "http://localhost"
	DefaultTimeout    = 30 * time.Second
	DefaultServerAddr = "127.0.0.1:3000"
)

// Environment variables that override the file.
const (
	EnvAPIURL      = "PORTAL_API_URL"
	EnvSessionFile = "PORTAL_SESSION_FILE"
	EnvLogLevel    = "PORTAL_LOG_LEVEL"
	EnvLogFormat   = "PORTAL_LOG_FORMAT"
	EnvTimeout     = "PORTAL_TIMEOUT"
	EnvConfigFile  = "PORTAL_CONFIG"
)

// Config is the on-disk configuration.
type Config struct {
	APIURL      string `yaml:"api_url" json:"api_url"`
	SessionFile string `yaml:"session_file,omitempty" json:"session_file,omitempty"`
	LogLevel    string `yaml:"log_level" json:"log_level"`
	LogFormat   string `yaml:"log_format" json:"log_format"`
	Timeout     string `yaml:"timeout" json:"timeout"`
	ServerAddr  string `yaml:"server_addr,omitempty" json:"server_addr,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIURL:     DefaultAPIURL,
		LogLevel:   "warn",
		LogFormat:  "text",
		Timeout:    DefaultTimeout.String(),
		ServerAddr: DefaultServerAddr,
	}
}

// Keys lists the settable keys in display order.
func Keys() []string {
	return []string{"api_url", "session_file", "log_level", "log_format", "timeout", "server_addr"}
}

// Path returns the config file location. PORTAL_CONFIG wins over the
// default under the home directory.
func Path() (string, error) {
	if p := os.Getenv(EnvConfigFile); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeDirectoryFailed, "failed to get home directory", err)
	}
	return filepath.Join(home, Dir, "config.yaml"), nil
}

// DefaultSessionFile returns ~/.agentmitra/session.json.
func DefaultSessionFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeDirectoryFailed, "failed to get home directory", err)
	}
	return filepath.Join(home, Dir, "session.json"), nil
}

// Load reads path, falling back to defaults when it does not exist, then
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadFile reads path without applying the environment. A missing file
// yields defaults; missing keys keep their defaults.
func ReadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "failed to read config", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "YAML", err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, "failed to create config directory", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "failed to marshal config", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write config", err)
	}
	return nil
}

// ApplyEnv overrides fields from the environment. getenv is os.Getenv in
// production.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.APIURL, EnvAPIURL)
	set(&c.SessionFile, EnvSessionFile)
	set(&c.LogLevel, EnvLogLevel)
	set(&c.LogFormat, EnvLogFormat)
	set(&c.Timeout, EnvTimeout)
}

// Validate checks values that would otherwise fail later.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return invalid("api_url must not be empty")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return invalid(err.Error())
	}
	if _, err := log.ParseFormat(c.LogFormat); err != nil {
		return invalid(err.Error())
	}
	if _, err := c.TimeoutDuration(); err != nil {
		return invalid(err.Error())
	}
	return nil
}

// TimeoutDuration parses Timeout. Empty means DefaultTimeout; a bare number
// is seconds.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return DefaultTimeout, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if n, aerr := strconv.Atoi(c.Timeout); aerr == nil {
		d, err = time.Duration(n)*time.Second, nil
	}
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q", c.Timeout)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %s", d)
	}
	return d, nil
}

// SessionPath returns SessionFile or the default location.
func (c *Config) SessionPath() (string, error) {
	if c.SessionFile != "" {
		return c.SessionFile, nil
	}
	return DefaultSessionFile()
}

// Get returns the value of key.
func (c *Config) Get(key string) (string, error) {
	p, err := c.field(key)
	if err != nil {
		return "", err
	}
	return *p, nil
}

// Set assigns key and validates the result. On error c is unchanged.
func (c *Config) Set(key, value string) error {
	p, err := c.field(key)
	if err != nil {
		return err
	}
	old := *p
	*p = value
	if err := c.Validate(); err != nil {
		*p = old
		return err
	}
	return nil
}

func (c *Config) field(key string) (*string, error) {
	switch key {
	case "api_url":
		return &c.APIURL, nil
	case "session_file":
		return &c.SessionFile, nil
	case "log_level":
		return &c.LogLevel, nil
	case "log_format":
		return &c.LogFormat, nil
	case "timeout":
		return &c.Timeout, nil
	case "server_addr":
		return &c.ServerAddr, nil
	}
	return nil, errors.New(errors.ErrCodeConfigUnknown, fmt.Sprintf("unknown configuration key: %s", key)).
		WithSuggestion("Valid keys: " + strings.Join(Keys(), ", "))
}

func invalid(msg string) error {
	return errors.New(errors.ErrCodeConfigInvalid, msg).
		WithSuggestion("Run 'portalctl config view' to inspect the effective configuration")
}

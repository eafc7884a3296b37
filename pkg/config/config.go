package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is read from a YAML file under the user's home directory.
// All fields are optional; defaults are applied by the accessor helpers.
//
// Example (~/.frontdesk/config.yaml):
//
// server:
//   host: 127.0.0.1
//   port: 8090
// model:
//   provider: openai
//   api_key: sk-...
//   model: gpt-4o-mini
//   max_tokens: 500
// chat:
//   max_retries: 3
//   max_rate_limit_retries: 3
//   history_ttl_minutes: 120
// booking:
//   max_party_size: 10
//   max_lookahead_hours: 8760
//
// Notes:
// - If the config file does not exist, Load returns defaults without error.
// - If the config file exists but cannot be parsed, Load returns an error.
// - Port must be between 1 and 65535.

type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Model   ModelConfig   `yaml:"model"`
	Chat    ChatConfig    `yaml:"chat"`
	Booking BookingConfig `yaml:"booking"`
}

type ServerConfig struct {
	Host *string `yaml:"host"`
	Port *int    `yaml:"port"`
}

// ModelConfig selects the chat-completion provider used by the assistant.
type ModelConfig struct {
	Provider  string `yaml:"provider"` // openai, custom, anthropic, deepseek, ollama, google, qwen
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens *int   `yaml:"max_tokens"`
}

// ChatConfig bounds the conversation engine's retry and cache behavior.
type ChatConfig struct {
	MaxRetries          *int `yaml:"max_retries"`
	MaxRateLimitRetries *int `yaml:"max_rate_limit_retries"`
	HistoryTTLMinutes   *int `yaml:"history_ttl_minutes"`
}

// BookingConfig bounds the appointment domain rules.
type BookingConfig struct {
	MaxPartySize      *int `yaml:"max_party_size"`
	MaxLookaheadHours *int `yaml:"max_lookahead_hours"`
}

const (
	DefaultHost                = "127.0.0.1"
	DefaultPort                = 8090
	DefaultProvider            = "openai"
	DefaultModel               = "gpt-4o-mini"
	DefaultMaxTokens           = 500
	DefaultMaxRetries          = 3
	DefaultMaxRateLimitRetries = 3
	DefaultHistoryTTL          = 2 * time.Hour
	DefaultMaxPartySize        = 10
	DefaultMaxLookaheadHours   = 8760
)

// DefaultPaths returns the config dir and config file path.
func DefaultPaths() (configDir string, configFile string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("get user home dir: %w", err)
	}
	configDir = filepath.Join(home, ".frontdesk")
	configFile = filepath.Join(configDir, "config.yaml")
	return configDir, configFile, nil
}

// DataFile returns the path of the sqlite database file, creating the data
// directory if necessary.
func DataFile() (string, error) {
	configDir, _, err := DefaultPaths()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("create data dir %s: %w", configDir, err)
	}
	return filepath.Join(configDir, "frontdesk.db"), nil
}

// Load reads ~/.frontdesk/config.yaml.
// If the file doesn't exist, it returns a default config and nil error.
func Load() (*AppConfig, string, error) {
	_, configFile, err := DefaultPaths()
	if err != nil {
		return nil, "", err
	}

	cfg := &AppConfig{}

	b, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, configFile, nil
		}
		return nil, "", fmt.Errorf("read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, "", fmt.Errorf("parse yaml config %s: %w", configFile, err)
	}

	// Validate
	host := cfg.Host()
	if strings.TrimSpace(host) == "" {
		return nil, "", fmt.Errorf("invalid server.host (empty) in %s", configFile)
	}

	port := cfg.Port()
	if port < 1 || port > 65535 {
		return nil, "", fmt.Errorf("invalid server.port %d in %s", port, configFile)
	}

	if cfg.MaxPartySize() < 1 {
		return nil, "", fmt.Errorf("invalid booking.max_party_size %d in %s", cfg.MaxPartySize(), configFile)
	}

	if cfg.MaxLookaheadHours() < 1 {
		return nil, "", fmt.Errorf("invalid booking.max_lookahead_hours %d in %s", cfg.MaxLookaheadHours(), configFile)
	}

	return cfg, configFile, nil
}

// EnsureDefaultConfig writes a default config file if it doesn't already exist.
// It is safe to call on startup.
func EnsureDefaultConfig() (string, error) {
	configDir, configFile, err := DefaultPaths()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configFile); err == nil {
		return configFile, nil
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir %s: %w", configDir, err)
	}

	defaultCfg := AppConfig{
		Server: ServerConfig{Host: ptr(DefaultHost), Port: ptr(DefaultPort)},
		Model:  ModelConfig{Provider: DefaultProvider, Model: DefaultModel, MaxTokens: ptr(DefaultMaxTokens)},
	}
	b, err := yaml.Marshal(&defaultCfg)
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}

	// Write with restrictive permissions; the file may hold an API key.
	if err := os.WriteFile(configFile, b, 0o600); err != nil {
		return "", fmt.Errorf("write default config file %s: %w", configFile, err)
	}

	return configFile, nil
}

func (c *AppConfig) Host() string {
	if c == nil || c.Server.Host == nil {
		return DefaultHost
	}
	v := strings.TrimSpace(*c.Server.Host)
	if v == "" {
		return DefaultHost
	}
	return v
}

func (c *AppConfig) Port() int {
	if c == nil || c.Server.Port == nil {
		return DefaultPort
	}
	return *c.Server.Port
}

func (c *AppConfig) Provider() string {
	if c == nil || strings.TrimSpace(c.Model.Provider) == "" {
		return DefaultProvider
	}
	return c.Model.Provider
}

func (c *AppConfig) ModelName() string {
	if c == nil || strings.TrimSpace(c.Model.Model) == "" {
		return DefaultModel
	}
	return c.Model.Model
}

func (c *AppConfig) MaxTokens() int {
	if c == nil || c.Model.MaxTokens == nil {
		return DefaultMaxTokens
	}
	return *c.Model.MaxTokens
}

func (c *AppConfig) MaxRetries() int {
	if c == nil || c.Chat.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *c.Chat.MaxRetries
}

func (c *AppConfig) MaxRateLimitRetries() int {
	if c == nil || c.Chat.MaxRateLimitRetries == nil {
		return DefaultMaxRateLimitRetries
	}
	return *c.Chat.MaxRateLimitRetries
}

func (c *AppConfig) HistoryTTL() time.Duration {
	if c == nil || c.Chat.HistoryTTLMinutes == nil {
		return DefaultHistoryTTL
	}
	return time.Duration(*c.Chat.HistoryTTLMinutes) * time.Minute
}

func (c *AppConfig) MaxPartySize() int {
	if c == nil || c.Booking.MaxPartySize == nil {
		return DefaultMaxPartySize
	}
	return *c.Booking.MaxPartySize
}

func (c *AppConfig) MaxLookaheadHours() int {
	if c == nil || c.Booking.MaxLookaheadHours == nil {
		return DefaultMaxLookaheadHours
	}
	return *c.Booking.MaxLookaheadHours
}

func ptr[T any](v T) *T { return &v }

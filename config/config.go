package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete synchronizer configuration
type Config struct {
	Server   ServerConfig `json:"server" yaml:"server"`
	Sync     SyncConfig   `json:"sync" yaml:"sync"`
	Cache    CacheConfig  `json:"cache" yaml:"cache"`
	Store    StoreConfig  `json:"store" yaml:"store"`
	Accounts []string     `json:"accounts" yaml:"accounts"`
}

// ServerConfig locates the remote trading server
type ServerConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	WSURL   string `json:"ws_url" yaml:"ws_url"`
	Token   string `json:"token,omitempty" yaml:"token,omitempty"`
}

// SyncConfig contains refresh and switch timing parameters.
// Durations are strings like "1s", "500ms".
type SyncConfig struct {
	MetricsInterval string `json:"metrics_interval" yaml:"metrics_interval"`
	TradesInterval  string `json:"trades_interval" yaml:"trades_interval"`
	HistoryInterval string `json:"history_interval" yaml:"history_interval"`
	SwitchTimeout   string `json:"switch_timeout" yaml:"switch_timeout"`
	ReconnectDelay  string `json:"reconnect_delay" yaml:"reconnect_delay"`
}

// CacheConfig bounds the in-memory tier
type CacheConfig struct {
	Capacity int `json:"capacity" yaml:"capacity"`
}

// StoreConfig locates the durable tier
type StoreConfig struct {
	Path string `json:"path" yaml:"path"`
}

// Duration parses one of the SyncConfig interval strings; empty means zero
// (callers substitute their defaults).
func Duration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// LoadFromFile loads configuration from a file (JSON or YAML based on content)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if (len(path) > 5 && path[len(path)-5:] == ".yaml") || (len(path) > 4 && path[len(path)-4:] == ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	if c.Server.WSURL == "" {
		return fmt.Errorf("server.ws_url is required")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Cache.Capacity < 0 {
		return fmt.Errorf("cache.capacity must not be negative")
	}
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account is required")
	}

	for name, v := range map[string]string{
		"sync.metrics_interval": c.Sync.MetricsInterval,
		"sync.trades_interval":  c.Sync.TradesInterval,
		"sync.history_interval": c.Sync.HistoryInterval,
		"sync.switch_timeout":   c.Sync.SwitchTimeout,
		"sync.reconnect_delay":  c.Sync.ReconnectDelay,
	} {
		if _, err := Duration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://127.0.0.1:8002",
			WSURL:   "ws://127.0.0.1:8002",
		},
		Sync: SyncConfig{
			MetricsInterval: "1s",
			TradesInterval:  "1s",
			HistoryInterval: "2s",
			SwitchTimeout:   "10s",
			ReconnectDelay:  "5s",
		},
		Cache: CacheConfig{
			Capacity: 3,
		},
		Store: StoreConfig{
			Path: "./tradesync.db",
		},
		Accounts: []string{"VIP", "DEMO", "PRO", "MONEY"},
	}
}

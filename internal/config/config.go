// Package config loads robotctl client settings from TOML or YAML files.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/danmuck/robolink/internal/protocol/session"
)

// ClientConfig is the resolved client configuration.
type ClientConfig struct {
	AuthURL        string
	WSURL          string
	Username       string
	Password       string
	ReconnectDelay time.Duration
	DialTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxFrameBytes  uint64
	SecurityMode   string
	StatusAddr     string
	CORSOrigins    []string
	LogLevel       string
}

// fileConfig is the on-disk shape. Durations are Go duration strings.
type fileConfig struct {
	AuthURL        string   `toml:"auth_url" yaml:"auth_url"`
	WSURL          string   `toml:"ws_url" yaml:"ws_url"`
	Username       string   `toml:"username" yaml:"username"`
	Password       string   `toml:"password" yaml:"password"`
	ReconnectDelay string   `toml:"reconnect_delay" yaml:"reconnect_delay"`
	DialTimeout    string   `toml:"dial_timeout" yaml:"dial_timeout"`
	WriteTimeout   string   `toml:"write_timeout" yaml:"write_timeout"`
	MaxFrameBytes  uint64   `toml:"max_frame_bytes" yaml:"max_frame_bytes"`
	SecurityMode   string   `toml:"security_mode" yaml:"security_mode"`
	StatusAddr     string   `toml:"status_addr" yaml:"status_addr"`
	CORSOrigins    []string `toml:"cors_origins" yaml:"cors_origins"`
	LogLevel       string   `toml:"log_level" yaml:"log_level"`
}

// Env overrides, applied after the file.
const (
	EnvAuthURL  = "ROBOLINK_AUTH_URL"
	EnvWSURL    = "ROBOLINK_WS_URL"
	EnvUsername = "ROBOLINK_USERNAME"
	EnvPassword = "ROBOLINK_PASSWORD"
)

func Default() ClientConfig {
	def := session.DefaultConfig()
	return ClientConfig{
		AuthURL:        "http://127.0.0.1:8080",
		WSURL:          "ws://127.0.0.1:9948/test_websocket",
		ReconnectDelay: def.ReconnectDelay,
		DialTimeout:    def.DialTimeout,
		WriteTimeout:   def.WriteTimeout,
		MaxFrameBytes:  def.MaxFrameBytes,
		SecurityMode:   string(session.SecurityModeDevelopment),
		LogLevel:       "info",
	}
}

// Load reads path, choosing the decoder by extension, then applies env
// overrides and validates.
func Load(path string) (ClientConfig, error) {
	cfg := Default()
	var (
		raw     fileConfig
		defined func(key string) bool
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return ClientConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
		defined = func(key string) bool { return meta.IsDefined(key) }
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return ClientConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
		}
		keys := map[string]any{}
		if err := yaml.Unmarshal(data, &keys); err != nil {
			return ClientConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return ClientConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
		defined = func(key string) bool {
			_, ok := keys[key]
			return ok
		}
	default:
		return ClientConfig{}, fmt.Errorf("config %s: unsupported extension %q", path, filepath.Ext(path))
	}
	if err := cfg.merge(raw, defined); err != nil {
		return ClientConfig{}, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *ClientConfig) merge(raw fileConfig, defined func(string) bool) error {
	if defined("auth_url") {
		c.AuthURL = strings.TrimSpace(raw.AuthURL)
	}
	if defined("ws_url") {
		c.WSURL = strings.TrimSpace(raw.WSURL)
	}
	if defined("username") {
		c.Username = strings.TrimSpace(raw.Username)
	}
	if defined("password") {
		c.Password = raw.Password
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"reconnect_delay", raw.ReconnectDelay, &c.ReconnectDelay},
		{"dial_timeout", raw.DialTimeout, &c.DialTimeout},
		{"write_timeout", raw.WriteTimeout, &c.WriteTimeout},
	}
	for _, d := range durations {
		if !defined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	if defined("max_frame_bytes") {
		c.MaxFrameBytes = raw.MaxFrameBytes
	}
	if defined("security_mode") {
		c.SecurityMode = strings.TrimSpace(raw.SecurityMode)
	}
	if defined("status_addr") {
		c.StatusAddr = strings.TrimSpace(raw.StatusAddr)
	}
	if defined("cors_origins") {
		c.CORSOrigins = normalizeOrigins(raw.CORSOrigins)
	}
	if defined("log_level") {
		c.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	return nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		if v := strings.TrimRight(strings.TrimSpace(o), "/"); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ApplyEnv overrides endpoints and credentials from the environment.
func (c *ClientConfig) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAuthURL); ok && strings.TrimSpace(v) != "" {
		c.AuthURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvWSURL); ok && strings.TrimSpace(v) != "" {
		c.WSURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvUsername); ok && strings.TrimSpace(v) != "" {
		c.Username = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvPassword); ok && v != "" {
		c.Password = v
	}
}

func (c ClientConfig) Validate() error {
	u, err := url.Parse(c.AuthURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("auth_url must be an http(s) url, got %q", c.AuthURL)
	}
	if err := session.ValidateEndpoint(session.SecurityMode(c.SecurityMode), c.WSURL); err != nil {
		return fmt.Errorf("ws_url: %w", err)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect_delay must be positive")
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive")
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	return nil
}

// SessionConfig converts to connection manager settings.
func (c ClientConfig) SessionConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.ReconnectDelay = c.ReconnectDelay
	cfg.DialTimeout = c.DialTimeout
	cfg.WriteTimeout = c.WriteTimeout
	if c.MaxFrameBytes > 0 {
		cfg.MaxFrameBytes = c.MaxFrameBytes
	}
	cfg.SecurityMode = session.SecurityMode(c.SecurityMode)
	return cfg
}

// Package config loads the YAML configuration consumed by the conduitd
// binary.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the runtime exposes, with the defaults from
// spec.md §3 baked into Defaults. Duration fields are written in the YAML
// file as duration strings parsed by time.ParseDuration, e.g.
// request_timeout: 60s; yaml.v3 rejects bare integers for them.
type Config struct {
	ListenAddr        string        `yaml:"listen_addr"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	MaxFrameBytes     int32         `yaml:"max_frame_bytes"`
	LogLevel          string        `yaml:"log_level"`
}

// Defaults returns the baseline configuration: 60s request timeout, 10s
// handshake timeout, 10 reconnect attempts at 5s apart, and a 5,000,000
// byte frame payload ceiling.
func Defaults() Config {
	return Config{
		ListenAddr:        "127.0.0.1:9090",
		RequestTimeout:    60 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		ReconnectAttempts: 10,
		ReconnectDelay:    5 * time.Second,
		MaxFrameBytes:     5_000_000,
		LogLevel:          "info",
	}
}

// Load reads and decodes a YAML config file at path, starting from
// Defaults so a file only needs to set the fields it wants to override.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// Package config loads the YAML configuration for an mcclassic server
// process: listen address, world metadata, metrics endpoint, and which
// CPE extensions to advertise.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig is the top-level configuration for a classic.Serve host.
type ServerConfig struct {
	Listen ListenConfig `yaml:"listen"`
	World  WorldConfig  `yaml:"world"`
	Extensions ExtensionsConfig `yaml:"extensions"`
	Metrics MetricsConfig `yaml:"metrics"`
	Bridge  BridgeConfig  `yaml:"bridge"`
}

// ListenConfig is the raw TCP address players connect to.
type ListenConfig struct {
	Addr string `yaml:"addr"`
}

// WorldConfig holds the values sent in every hello reply.
type WorldConfig struct {
	Name           string        `yaml:"name"`
	MOTD           string        `yaml:"motd"`
	HeartbeatEvery time.Duration `yaml:"heartbeat_every"`
}

// ExtensionsConfig holds per-extension disable flags. The fields are
// parsed but nothing in this module reads them: ClientSession always
// advertises its full extension set.
type ExtensionsConfig struct {
	DisablePlayerList      bool `yaml:"disable_player_list"`
	DisableEntityPositions bool `yaml:"disable_entity_positions"`
	DisableHeldBlock       bool `yaml:"disable_held_block"`
	DisableFullCP437       bool `yaml:"disable_full_cp437"`
	DisableMessageTypes    bool `yaml:"disable_message_types"`
	DisableLongerMessages  bool `yaml:"disable_longer_messages"`
	DisableTextColors      bool `yaml:"disable_text_colors"`
	DisableBlockPermissions bool `yaml:"disable_block_permissions"`
	DisablePlayerClick     bool `yaml:"disable_player_click"`
}

// MetricsConfig controls the Prometheus/health HTTP server.
type MetricsConfig struct {
	Enable bool   `yaml:"enable"`
	Addr   string `yaml:"addr"`
}

// BridgeConfig describes a WebSocket bridge listener, for clients that
// cannot open a raw TCP socket. It is parsed, defaulted and validated;
// cmd/mcclassic-server does not read it and starts no bridge listener.
type BridgeConfig struct {
	Enable bool   `yaml:"enable"`
	Addr   string `yaml:"addr"`
	Path   string `yaml:"path"`
}

// Validate reports whether c is well formed enough to serve.
func (c *ServerConfig) Validate() error {
	if c.Listen.Addr == "" {
		return fmt.Errorf("listen.addr is required")
	}
	if c.World.Name == "" {
		return fmt.Errorf("world.name is required")
	}
	if c.Metrics.Enable && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics.enable is true")
	}
	if c.Bridge.Enable && c.Bridge.Addr == "" {
		return fmt.Errorf("bridge.addr is required when bridge.enable is true")
	}
	return nil
}

// Load reads and parses path, filling in defaults for anything left
// unset.
func Load(path string) (*ServerConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c ServerConfig
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func applyDefaults(c *ServerConfig) {
	if c.Listen.Addr == "" {
		c.Listen.Addr = "0.0.0.0:25565"
	}
	if c.World.MOTD == "" {
		c.World.MOTD = "Welcome!"
	}
	if c.World.HeartbeatEvery == 0 {
		c.World.HeartbeatEvery = 30 * time.Second
	}
	if c.Metrics.Enable && c.Metrics.Addr == "" {
		c.Metrics.Addr = "127.0.0.1:9100"
	}
	if c.Bridge.Enable {
		if c.Bridge.Addr == "" {
			c.Bridge.Addr = "0.0.0.0:25566"
		}
		if c.Bridge.Path == "" {
			c.Bridge.Path = "/classic"
		}
	}
}

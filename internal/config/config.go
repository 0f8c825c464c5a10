// Package config loads ubus's YAML configuration file, covering both the
// broker daemon and client runtime defaults.
//
// Called by: cmd/ubusd
// Calls: gopkg.in/yaml.v3
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tenzoki/ubus/internal/broker"
	"github.com/tenzoki/ubus/internal/client"
)

// Config is the top-level ubus configuration file shape.
type Config struct {
	Debug  bool         `yaml:"debug"`
	Broker BrokerConfig `yaml:"broker"`
	Client ClientConfig `yaml:"client"`
}

// BrokerConfig mirrors broker.Config with YAML-friendly field names.
type BrokerConfig struct {
	SocketPath string `yaml:"socket_path"`
	Backlog    int    `yaml:"backlog"`
	Workers    int    `yaml:"workers"`
}

// ClientConfig mirrors client.Config with YAML-friendly field names. The
// timeout is given in whole seconds on disk.
type ClientConfig struct {
	SocketPath     string `yaml:"socket_path"`
	CallTimeoutSec int    `yaml:"call_timeout_seconds"`
	HandlerWorkers int    `yaml:"handler_workers"`
}

// Load reads and parses a YAML configuration file.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filename, err)
	}
	return &cfg, nil
}

// Default returns the hardcoded configuration used when no config file is
// present.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			SocketPath: broker.DefaultSocketPath,
			Backlog:    32,
			Workers:    5,
		},
		Client: ClientConfig{
			SocketPath:     broker.DefaultSocketPath,
			CallTimeoutSec: 15,
			HandlerWorkers: 4,
		},
	}
}

// ToBrokerConfig converts the loaded configuration to broker.Config.
func (c *Config) ToBrokerConfig() broker.Config {
	return broker.Config{
		SocketPath: c.Broker.SocketPath,
		Backlog:    c.Broker.Backlog,
		Workers:    c.Broker.Workers,
	}
}

// ToClientConfig converts the loaded configuration to client.Config.
func (c *Config) ToClientConfig() client.Config {
	cfg := client.Config{
		SocketPath:     c.Client.SocketPath,
		HandlerWorkers: c.Client.HandlerWorkers,
	}
	if c.Client.CallTimeoutSec > 0 {
		cfg.CallTimeout = time.Duration(c.Client.CallTimeoutSec) * time.Second
	}
	return cfg
}

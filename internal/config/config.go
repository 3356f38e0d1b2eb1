// Package config loads server and client configuration from YAML, with
// environment-variable overrides for the handful of values that must come
// from the environment. Defaults are applied in code so a missing or
// partial file still produces a runnable configuration.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// ServerConfig is the server's full runtime configuration.
type ServerConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`

	MaxPlayers        int           `yaml:"maxPlayers"`
	PasscodeLength    int           `yaml:"passcodeLength"`
	IdleShutdownAfter time.Duration `yaml:"idleShutdownAfter"`

	Tick TickConfig `yaml:"tick"`
}

// TickConfig holds the fixed wire/timing constants that, while fixed by
// §6 for interoperability, are still exposed here so a deployment can
// tune queue sizing without touching code.
type TickConfig struct {
	CommandQueueCapacity int `yaml:"commandQueueCapacity"`
	PerActorCommandLimit int `yaml:"perActorCommandLimit"`
	CatchupMaxTicks      int `yaml:"catchupMaxTicks"`
}

// DefaultServerConfig returns the configuration a bare deployment runs
// with before any YAML file or environment override is applied.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		IP:                "0.0.0.0",
		Port:              9000,
		MaxPlayers:        32,
		PasscodeLength:    4,
		IdleShutdownAfter: 2 * time.Minute,
		Tick: TickConfig{
			CommandQueueCapacity: 256,
			PerActorCommandLimit: 8,
			CatchupMaxTicks:      5,
		},
	}
}

// LoadServerConfig reads path (if it exists) over DefaultServerConfig,
// then applies IP/PORT environment overrides per §6. A missing file is
// not an error: the defaults (plus any environment overrides) are used.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return ServerConfig{}, err
			}
		} else if !os.IsNotExist(err) {
			return ServerConfig{}, err
		}
	}

	if ip := os.Getenv("IP"); ip != "" {
		cfg.IP = ip
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}

	return cfg, nil
}

// ClientConfig is the client's configuration, including the decided
// answer to the "ServerAddress bypass" open question: when
// DefaultServerAddress is non-empty, the lobby's ServerAddress substate
// auto-submits it instead of waiting on user input.
type ClientConfig struct {
	DefaultServerAddress string `yaml:"defaultServerAddress"`
	DefaultIP            string `yaml:"ip"`
	DefaultPort          int    `yaml:"port"`
}

// DefaultClientConfig returns a client configuration with no auto-submit
// address, matching §9's decision that the bypass is opt-in.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		DefaultIP:   "127.0.0.1",
		DefaultPort: 9000,
	}
}

// LoadClientConfig mirrors LoadServerConfig for the client side.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return ClientConfig{}, err
			}
		} else if !os.IsNotExist(err) {
			return ClientConfig{}, err
		}
	}

	if ip := os.Getenv("IP"); ip != "" {
		cfg.DefaultIP = ip
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.DefaultPort = p
		}
	}

	return cfg, nil
}

// Package config provides TOML configuration file loading for the agent.
// Every field can also be set with a CLI flag; flags take precedence over
// file values.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the agent configuration file structure.
type Config struct {
	// APIBaseURL is the backend REST endpoint.
	APIBaseURL string `toml:"api_base_url"`

	// ProvisioningURL is the thermostat's setup endpoint while it runs
	// its own access point. Default: http://192.168.4.1/setup
	ProvisioningURL string `toml:"provisioning_url"`

	// Broker is the MQTT broker URL. Empty disables MQTT publishing.
	Broker string `toml:"broker"`

	// HTTPAddr is the listen address for the control API.
	// Default: :8090
	HTTPAddr string `toml:"http_addr"`

	// DatabasePath is the SQLite session database location.
	// Default: /var/lib/home-agent/agent.db
	DatabasePath string `toml:"database_path"`

	// SampleMs is the location sampling interval in milliseconds.
	// Default: 10000
	SampleMs int64 `toml:"sample_ms"`

	// TelemetryMs is the distance telemetry interval in milliseconds.
	// Default: 120000
	TelemetryMs int64 `toml:"telemetry_ms"`

	// PollMs is the pairing confirmation poll interval in milliseconds.
	// Default: 5000
	PollMs int64 `toml:"poll_ms"`

	// PairTimeoutMs is the pairing confirmation window in milliseconds.
	// Default: 30000
	PairTimeoutMs int64 `toml:"pair_timeout_ms"`

	// LocationSource selects where position fixes come from:
	// "http" (LocationURL) or "static" (StaticLat/StaticLon).
	LocationSource string `toml:"location_source"`

	// LocationURL is the fix provider endpoint for the http source.
	LocationURL string `toml:"location_url"`

	// StaticLat and StaticLon pin the static source's position.
	StaticLat float64 `toml:"static_lat"`
	StaticLon float64 `toml:"static_lon"`
}

// Default returns the configuration used when no file or flags are given.
func Default() *Config {
	return &Config{
		ProvisioningURL: "http://192.168.4.1/setup",
		HTTPAddr:        ":8090",
		DatabasePath:    "/var/lib/home-agent/agent.db",
		SampleMs:        10000,
		TelemetryMs:     120000,
		PollMs:          5000,
		PairTimeoutMs:   30000,
		LocationSource:  "http",
		LocationURL:     "http://127.0.0.1:8100/fix",
	}
}

// Load reads a TOML config file from the given path, layered over defaults.
//
// Behavior:
//   - If path is empty, returns defaults without error.
//   - If path is specified, returns an error if the file doesn't exist.
//   - Returns an error if the file exists but cannot be parsed.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

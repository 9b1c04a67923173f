package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ProvisioningURL != "http://192.168.4.1/setup" {
		t.Errorf("unexpected provisioning url %q", cfg.ProvisioningURL)
	}
	if cfg.PollMs != 5000 || cfg.PairTimeoutMs != 30000 {
		t.Errorf("unexpected pairing defaults: %+v", cfg)
	}
	if cfg.SampleMs != 10000 || cfg.TelemetryMs != 120000 {
		t.Errorf("unexpected presence defaults: %+v", cfg)
	}
}

func TestLoadMissingExplicitFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
broker = "tcp://broker.local:1883"
sample_ms = 5000
location_source = "static"
static_lat = 51.5
static_lon = -0.12
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Broker != "tcp://broker.local:1883" {
		t.Errorf("broker: %q", cfg.Broker)
	}
	if cfg.SampleMs != 5000 {
		t.Errorf("sample_ms: %d", cfg.SampleMs)
	}
	if cfg.LocationSource != "static" || cfg.StaticLat != 51.5 || cfg.StaticLon != -0.12 {
		t.Errorf("location: %+v", cfg)
	}
	// Untouched fields keep their defaults.
	if cfg.PollMs != 5000 || cfg.HTTPAddr != ":8090" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("broker = [not toml"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

package market_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"marketfeed/pkg/fetch"
	market "marketfeed/pkg/market"
	_ "marketfeed/pkg/market/providers/coingecko"
	_ "marketfeed/pkg/market/providers/finnhub"
	_ "marketfeed/pkg/market/providers/jupiter"
	_ "marketfeed/pkg/market/providers/polygon"
)

func TestLoadMarketConfig(t *testing.T) {
	dir := t.TempDir()
	configYAML := `
default: polygon
providers:
  polygon:
    type: polygon
    base_url: https://api.polygon.io
    api_key: test-key
    timeout: 6s
  finnhub:
    type: finnhub
    base_url: https://finnhub.io/api/v1
    api_key: another-key
`
	path := filepath.Join(dir, "market.yaml")
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := market.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Default != "polygon" {
		t.Fatalf("unexpected default: %s", cfg.Default)
	}

	providers, err := cfg.BuildProviders(fetch.New())
	if err != nil {
		t.Fatalf("BuildProviders error: %v", err)
	}
	if len(providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(providers))
	}
	if _, ok := providers["polygon"]; !ok {
		t.Fatalf("provider map missing polygon")
	}
	if _, ok := providers["finnhub"]; !ok {
		t.Fatalf("provider map missing finnhub")
	}
}

func TestMarketConfigInvalidType(t *testing.T) {
	dir := t.TempDir()
	configYAML := `
providers:
  demo:
    type: foobar
`
	path := filepath.Join(dir, "market.yaml")
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := market.LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported type error, got %v", err)
	}
}

func TestMarketConfigUnknownDefault(t *testing.T) {
	dir := t.TempDir()
	configYAML := `
default: missing
providers:
  coingecko:
    type: coingecko
`
	path := filepath.Join(dir, "market.yaml")
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := market.LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "not defined") {
		t.Fatalf("expected default-not-defined error, got %v", err)
	}
}

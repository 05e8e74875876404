package store

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "mode: SIM\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Pool.Size != 2 {
		t.Errorf("Expected default pool size 2, got %d", cfg.Pool.Size)
	}
	if cfg.Pool.SlotCapacity != 200 {
		t.Errorf("Expected default slot capacity 200, got %d", cfg.Pool.SlotCapacity)
	}
	if cfg.Relogin.MaxRetry != 20 {
		t.Errorf("Expected default relogin max retry 20, got %d", cfg.Relogin.MaxRetry)
	}
	if cfg.Relogin.DelaySeconds != 5 {
		t.Errorf("Expected default relogin delay 5s, got %d", cfg.Relogin.DelaySeconds)
	}
	if cfg.Dispatch.QueueSize != 1024 {
		t.Errorf("Expected default queue size 1024, got %d", cfg.Dispatch.QueueSize)
	}
	if cfg.ProbeSymbol != "2330" {
		t.Errorf("Expected default probe symbol 2330, got %s", cfg.ProbeSymbol)
	}
}

func TestLoadConfigRejectsBadMode(t *testing.T) {
	path := writeConfig(t, "mode: PAPER\n")

	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected invalid mode to be rejected")
	}
}

func TestLoadConfigRejectsOversizedPool(t *testing.T) {
	path := writeConfig(t, "mode: SIM\npool:\n  size: 6\n")

	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected pool size above 5 to be rejected")
	}
}

func TestLoadConfigLiveRequiresFeedURL(t *testing.T) {
	path := writeConfig(t, "mode: LIVE\n")

	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected LIVE mode without feed url to be rejected")
	}
}

func TestLoadConfigExplicitValues(t *testing.T) {
	path := writeConfig(t, `
mode: LIVE
feed:
  url: wss://example.com/stream
pool:
  size: 4
relogin:
  max_retry: 10
universe_static: ["2330", "2317"]
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Pool.Size != 4 {
		t.Errorf("Expected pool size 4, got %d", cfg.Pool.Size)
	}
	if cfg.Relogin.MaxRetry != 10 {
		t.Errorf("Expected max retry 10, got %d", cfg.Relogin.MaxRetry)
	}
	if len(cfg.UniverseStatic) != 2 {
		t.Errorf("Expected 2 universe symbols, got %d", len(cfg.UniverseStatic))
	}
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv("GATEWAY_ID", "user1")
	t.Setenv("GATEWAY_PASSWORD", "secret")
	t.Setenv("GATEWAY_ACCOUNT", "12345")

	c := CredentialsFromEnv()
	if c.ID != "user1" || c.Password != "secret" || c.AccountNo != "12345" {
		t.Errorf("Unexpected credentials: %+v", c)
	}
}

package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("LOG_DIR", filepath.Join(dir, "logs"))
	t.Setenv("WORKERS", "3")
	t.Setenv("CONVERT_TIMEOUT", "90s")
	t.Setenv("DEBOUNCE_DELAY", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Workers)
	}
	if cfg.ConvertTime != 90*time.Second {
		t.Errorf("ConvertTime = %v", cfg.ConvertTime)
	}
	if cfg.DebounceDelay != debounceDelay {
		t.Errorf("DebounceDelay = %v, want default %v", cfg.DebounceDelay, debounceDelay)
	}
	if cfg.DBPath != filepath.Join(cfg.DataDir, cfg.DBFileName) {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
}

func TestParseHelpers(t *testing.T) {
	if got := parseIntOrDefault("not-a-number", 7); got != 7 {
		t.Errorf("parseIntOrDefault = %d, want 7", got)
	}
	if got := parseIntOrDefault("0", 7); got != 7 {
		t.Errorf("non-positive worker count should fall back, got %d", got)
	}
	if got := parseDurationOrDefault("5m", time.Second); got != 5*time.Minute {
		t.Errorf("parseDurationOrDefault = %v", got)
	}
	if got := parseDurationOrDefault("garbage", time.Second); got != time.Second {
		t.Errorf("parseDurationOrDefault fallback = %v", got)
	}
}

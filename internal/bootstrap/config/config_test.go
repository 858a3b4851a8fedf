package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadClampsRegistryTimeouts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
database:
  dsn: ` + filepath.Join(dir, "db.sqlite") + `
cupo:
  default_size: 25
renaper:
  base_url: https://renaper.example
  timeout: 10m
sintys:
  timeout: 45s
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Renaper.Timeout != MaxExternalTimeout {
		t.Fatalf("renaper timeout = %s", cfg.Renaper.Timeout)
	}
	if cfg.Sintys.Timeout != 45*time.Second {
		t.Fatalf("sintys timeout = %s", cfg.Sintys.Timeout)
	}
	if cfg.Cupo.DefaultSize != 25 {
		t.Fatalf("cupo default size = %d", cfg.Cupo.DefaultSize)
	}
	if cfg.Worker.BatchSize != 50 || cfg.Storage.Root == "" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("Load() expected error for missing explicit config")
	}
}

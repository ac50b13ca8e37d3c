package config

import (
	"testing"
	"time"
)

func TestLoadClient(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://localhost:8090")
	t.Setenv("AUTH_TOKEN", "tok-alice")

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}
	if cfg.BackendURL != "http://localhost:8090" {
		t.Fatalf("BackendURL = %q", cfg.BackendURL)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Fatalf("HTTPTimeout = %v, want 10s", cfg.HTTPTimeout)
	}
}

func TestLoadClientMissingURL(t *testing.T) {
	t.Setenv("AUTH_TOKEN", "tok")

	if _, err := LoadClient(); err == nil {
		t.Fatal("expected error for missing BACKEND_URL")
	}
}

func TestLoadBackendDefaults(t *testing.T) {
	cfg, err := LoadBackend()
	if err != nil {
		t.Fatalf("LoadBackend() error = %v", err)
	}
	if cfg.HTTPAddr != ":8090" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if len(cfg.SeedUsers) != 2 {
		t.Fatalf("SeedUsers = %v", cfg.SeedUsers)
	}
}

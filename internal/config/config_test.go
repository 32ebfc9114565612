package config

import (
	"os"
	"testing"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, "DATABASE_URL", "postgres://localhost/lis_test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.IngestWorkers != 4 {
		t.Errorf("expected default 4 ingest workers, got %d", cfg.IngestWorkers)
	}
	if !cfg.IsDev() {
		t.Error("expected development mode by default")
	}
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	setEnv(t, "DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestValidate_ProductionRequiresAuthSecret(t *testing.T) {
	cfg := &Config{Env: "production", IngestWorkers: 4, IngestQueueSize: 256}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when AUTH_SECRET is missing in production")
	}

	cfg.AuthSecret = "s3cret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_WorkerBounds(t *testing.T) {
	cfg := &Config{Env: "development", IngestWorkers: 0, IngestQueueSize: 256}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero workers")
	}
	cfg.IngestWorkers = 2
	cfg.IngestQueueSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero queue size")
	}
}

package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBBackend != DatabaseSQLite {
		t.Fatalf("unexpected default backend: %q", cfg.DBBackend)
	}
	if cfg.DBDSN != "heimdall.db" {
		t.Fatalf("expected sqlite DSN default, got %q", cfg.DBDSN)
	}
	if cfg.LeadTime != 3*time.Second {
		t.Fatalf("unexpected default lead time: %v", cfg.LeadTime)
	}
}

func TestLoadRequiresDSNForServerBackends(t *testing.T) {
	t.Setenv("HEIMDALL_DB_BACKEND", "postgres")

	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail without a DSN for postgres")
	}

	t.Setenv("HEIMDALL_DB_DSN", "host=localhost user=test dbname=test sslmode=disable")
	if _, err := Load(); err != nil {
		t.Fatalf("expected load with DSN to succeed: %v", err)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("HEIMDALL_DB_BACKEND", "oracle")

	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail for unknown backend")
	}
}

func TestLoadRejectsNegativeLeadTime(t *testing.T) {
	t.Setenv("HEIMDALL_LEAD_TIME_MS", "-100")

	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail for negative lead time")
	}
}

func TestLoadS3RequiresCredentials(t *testing.T) {
	t.Setenv("HEIMDALL_S3_BUCKET", "signage-media")
	t.Setenv("AWS_ACCESS_KEY_ID", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail when S3 bucket is set without credentials")
	}

	t.Setenv("HEIMDALL_S3_ACCESS_KEY_ID", "AKIATEST")
	if _, err := Load(); err != nil {
		t.Fatalf("expected load with S3 credentials to succeed: %v", err)
	}
}

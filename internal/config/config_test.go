package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, raw string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestLoadFromFile checks file values override defaults and defaults fill gaps.
func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  port: 9090
  trust_proxy: true
auth:
  worker_key: sekrit
dispatch:
  max_pages: 3
database:
  host: db.internal
  port: 5433
  user: serp
  password: pw
  name: serps
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Server.TrustProxy {
		t.Fatal("expected trust_proxy to be true")
	}
	if cfg.Auth.WorkerKey != "sekrit" {
		t.Fatalf("expected worker key from file, got %q", cfg.Auth.WorkerKey)
	}
	if cfg.Dispatch.MaxPages != 3 {
		t.Fatalf("expected max_pages 3, got %d", cfg.Dispatch.MaxPages)
	}
	if cfg.Archive.Backend != "memory" {
		t.Fatalf("expected default archive backend memory, got %q", cfg.Archive.Backend)
	}
	if cfg.Sampler.Spec != "@every 30s" {
		t.Fatalf("expected default sampler spec, got %q", cfg.Sampler.Spec)
	}
	want := "postgres://serp:pw@db.internal:5433/serps?sslmode=disable"
	if got := cfg.Database.ConnString(); got != want {
		t.Fatalf("expected DSN %q, got %q", want, got)
	}
}

// TestLoadDSNOverride ensures an explicit DSN wins over assembled parts.
func TestLoadDSNOverride(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
auth:
  enabled: false
database:
  host: ignored
  dsn: postgres://u:p@elsewhere:5432/other
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Database.ConnString(); got != "postgres://u:p@elsewhere:5432/other" {
		t.Fatalf("expected DSN override, got %q", got)
	}
}

// TestLoadEnvOverride checks SERPFLOW_* variables reach the config.
func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SERPFLOW_SERVER_PORT", "7070")
	t.Setenv("SERPFLOW_AUTH_WORKER_KEY", "env-key")
	t.Setenv("SERPFLOW_DATABASE_HOST", "env-db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected port 7070, got %d", cfg.Server.Port)
	}
	if cfg.Auth.WorkerKey != "env-key" {
		t.Fatalf("expected env worker key, got %q", cfg.Auth.WorkerKey)
	}
	if cfg.Database.Host != "env-db" {
		t.Fatalf("expected env database host, got %q", cfg.Database.Host)
	}
}

// TestLoadValidation exercises the validation failures.
func TestLoadValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "missing worker key",
			raw:  "server:\n  port: 8080\n",
			want: "auth.worker_key",
		},
		{
			name: "bad port",
			raw:  "auth:\n  enabled: false\nserver:\n  port: -1\n",
			want: "server.port",
		},
		{
			name: "bad max pages",
			raw:  "auth:\n  enabled: false\ndispatch:\n  max_pages: 0\n",
			want: "dispatch.max_pages",
		},
		{
			name: "gcs without bucket",
			raw:  "auth:\n  enabled: false\narchive:\n  enabled: true\n  backend: gcs\n",
			want: "archive.gcs_bucket",
		},
		{
			name: "unknown archive backend",
			raw:  "auth:\n  enabled: false\narchive:\n  enabled: true\n  backend: s3\n",
			want: "archive.backend",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(writeConfig(t, tc.raw))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8080"
  name: "market-gateway"
  shutdown_timeout: "30s"

ledger:
  path: "./test.db"

docs:
  dir: "./docs"
  watch: true

seed:
  path: "./seed.toml"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Server.Name != "market-gateway" {
		t.Errorf("Server.Name = %q, want %q", cfg.Server.Name, "market-gateway")
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want %v", cfg.Server.ShutdownTimeout, 30*time.Second)
	}

	if cfg.Ledger.Path != "./test.db" {
		t.Errorf("Ledger.Path = %q, want %q", cfg.Ledger.Path, "./test.db")
	}

	if cfg.Docs.Dir != "./docs" {
		t.Errorf("Docs.Dir = %q, want %q", cfg.Docs.Dir, "./docs")
	}
	if !cfg.Docs.Watch {
		t.Error("Docs.Watch = false, want true")
	}

	if cfg.Seed.Path != "./seed.toml" {
		t.Errorf("Seed.Path = %q, want %q", cfg.Seed.Path, "./seed.toml")
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("AGORA_TEST_LEDGER", "/var/lib/agora/agora.db")

	cfg, err := Load(writeConfig(t, `
server:
  http_addr: "localhost:8080"

ledger:
  path: "${AGORA_TEST_LEDGER}"
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Ledger.Path != "/var/lib/agora/agora.db" {
		t.Errorf("Ledger.Path = %q, want expanded env value", cfg.Ledger.Path)
	}
}

func TestLoad_UnsetEnvVarBecomesEmpty(t *testing.T) {
	_, err := Load(writeConfig(t, `
server:
  http_addr: "localhost:8080"

ledger:
  path: "${AGORA_DEFINITELY_UNSET_VAR}"
`))
	if err == nil {
		t.Fatal("expected validation error for empty ledger path")
	}
	if !strings.Contains(err.Error(), "ledger.path") {
		t.Errorf("error = %v, want mention of ledger.path", err)
	}
}

func TestLoad_DefaultShutdownTimeout(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  http_addr: "localhost:8080"

ledger:
  path: "./test.db"
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want default 10s", cfg.Server.ShutdownTimeout)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Load(writeConfig(t, `
server:
  http_addr: "localhost:8080"
  shutdown_timeout: "not-a-duration"

ledger:
  path: "./test.db"
`))
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "shutdown_timeout") {
		t.Errorf("error = %v, want mention of shutdown_timeout", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed"))
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing http addr",
			mutate:  func(c *Config) { c.Server.HTTPAddr = "" },
			wantErr: "server.http_addr",
		},
		{
			name:    "missing ledger path",
			mutate:  func(c *Config) { c.Ledger.Path = "" },
			wantErr: "ledger.path",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name:    "watch without dir",
			mutate:  func(c *Config) { c.Docs.Watch = true },
			wantErr: "docs.dir",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error mentioning %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

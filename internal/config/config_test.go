package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bpmon.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
base_url = "https://bpm.example.com/bpm/"
check_timeout = "45s"

[auth]
username = "ops"
password = "secret"

[tls]
verify_ssl = false
ca_bundle = "/etc/ssl/bpm-ca.pem"

[server]
listen = ":9090"
base_path = "/bpmon"

[store]
dsn = "sqlite://data/monitors.db"

[log]
level = "debug"
path = "logs/bpmon.log"
max_size_mb = 20
max_backups = 5
max_age_days = 14
compress = true

[metrics]
enabled = true
listen = ":9091"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// trailing slash stripped
	if cfg.BaseURL != "https://bpm.example.com/bpm" {
		t.Fatalf("base_url: %q", cfg.BaseURL)
	}
	if cfg.CheckTimeout != 45*time.Second {
		t.Fatalf("check_timeout: %v", cfg.CheckTimeout)
	}
	if cfg.BearerMode() {
		t.Fatal("username/password config must not be bearer mode")
	}
	if cfg.TLS.VerifySSL || cfg.TLS.CABundle != "/etc/ssl/bpm-ca.pem" {
		t.Fatalf("tls: %+v", cfg.TLS)
	}
	if cfg.Server.Listen != ":9090" || cfg.Server.BasePath != "/bpmon" {
		t.Fatalf("server: %+v", cfg.Server)
	}
	if cfg.Store.DSN != "sqlite://data/monitors.db" {
		t.Fatalf("store: %+v", cfg.Store)
	}
	if cfg.Log.Level != "debug" || cfg.Log.MaxBackups != 5 || !cfg.Log.Compress {
		t.Fatalf("log: %+v", cfg.Log)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Listen != ":9091" {
		t.Fatalf("metrics: %+v", cfg.Metrics)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
base_url = "https://bpm.example.com"

[auth]
api_key = "tok"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CheckTimeout != 30*time.Second {
		t.Fatalf("default check_timeout: %v", cfg.CheckTimeout)
	}
	if !cfg.TLS.VerifySSL {
		t.Fatal("verify_ssl must default to true")
	}
	if cfg.Server.Listen != ":8080" || cfg.Server.BasePath != "/api" {
		t.Fatalf("server defaults: %+v", cfg.Server)
	}
	if cfg.Store.DSN != "data/monitors.json" {
		t.Fatalf("store default: %q", cfg.Store.DSN)
	}
	if !cfg.BearerMode() {
		t.Fatal("api_key config must be bearer mode")
	}
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing base_url", "[auth]\napi_key = \"tok\"\n", "base_url"},
		{"missing auth", "base_url = \"https://x\"\n", "auth requires"},
		{"password without username", "base_url = \"https://x\"\n[auth]\npassword = \"p\"\n", "auth requires"},
		{"non-positive timeout", "base_url = \"https://x\"\ncheck_timeout = \"0s\"\n[auth]\napi_key = \"t\"\n", "check_timeout"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

package config

import (
	"testing"
	"time"
)

func TestParseServerFlagsDefaults(t *testing.T) {
	t.Setenv("GRIDHUD_SECRET", "")
	t.Setenv("GRIDHUD_TOLERANCE", "")
	t.Setenv("GRIDHUD_REGISTER_LIMIT", "")
	t.Setenv("GRIDHUD_SCAN_LIMIT", "")

	cfg, err := ParseServerFlags([]string{"--secret", "hunter2"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenHTTP != ":8080" {
		t.Fatalf("ListenHTTP = %q, want :8080", cfg.ListenHTTP)
	}
	if cfg.TLSMode != "off" {
		t.Fatalf("TLSMode = %q, want off", cfg.TLSMode)
	}
	if cfg.Tolerance != 60*time.Second {
		t.Fatalf("Tolerance = %v, want 60s", cfg.Tolerance)
	}
	if cfg.RegisterLimit != 60 || cfg.ScanLimit != 120 {
		t.Fatalf("limits = %d/%d, want 60/120", cfg.RegisterLimit, cfg.ScanLimit)
	}
	if cfg.MaxScanIDs != 25 {
		t.Fatalf("MaxScanIDs = %d, want 25", cfg.MaxScanIDs)
	}
	if cfg.RateWindow != time.Minute {
		t.Fatalf("RateWindow = %v, want 1m", cfg.RateWindow)
	}
}

func TestParseServerFlagsEnvDefaults(t *testing.T) {
	t.Setenv("GRIDHUD_SECRET", "from-env")
	t.Setenv("GRIDHUD_LISTEN", ":9090")
	t.Setenv("GRIDHUD_TOLERANCE", "120")
	t.Setenv("GRIDHUD_DB_PATH", "/var/lib/gridhud/registry.db")

	cfg, err := ParseServerFlags(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Secret != "from-env" {
		t.Fatalf("Secret = %q, want from-env", cfg.Secret)
	}
	if cfg.ListenHTTP != ":9090" {
		t.Fatalf("ListenHTTP = %q, want :9090", cfg.ListenHTTP)
	}
	if cfg.Tolerance != 2*time.Minute {
		t.Fatalf("Tolerance = %v, want 2m", cfg.Tolerance)
	}
	if cfg.DBPath != "/var/lib/gridhud/registry.db" {
		t.Fatalf("DBPath = %q", cfg.DBPath)
	}
}

func TestParseServerFlagsFlagBeatsEnv(t *testing.T) {
	t.Setenv("GRIDHUD_SECRET", "from-env")
	t.Setenv("GRIDHUD_TOLERANCE", "120")

	cfg, err := ParseServerFlags([]string{"--secret", "from-flag", "--tolerance", "30"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Secret != "from-flag" {
		t.Fatalf("Secret = %q, want from-flag", cfg.Secret)
	}
	if cfg.Tolerance != 30*time.Second {
		t.Fatalf("Tolerance = %v, want 30s", cfg.Tolerance)
	}
}

func TestParseServerFlagsValidation(t *testing.T) {
	t.Setenv("GRIDHUD_SECRET", "")
	t.Setenv("GRIDHUD_TLS_MODE", "")
	t.Setenv("GRIDHUD_DOMAIN", "")

	tests := []struct {
		name string
		args []string
	}{
		{
			name: "missing secret",
			args: nil,
		},
		{
			name: "bad tls mode",
			args: []string{"--secret", "s", "--tls-mode", "wildcard"},
		},
		{
			name: "auto without domain",
			args: []string{"--secret", "s", "--tls-mode", "auto"},
		},
		{
			name: "static without cert files",
			args: []string{"--secret", "s", "--tls-mode", "static"},
		},
		{
			name: "h3 without tls",
			args: []string{"--secret", "s", "--h3"},
		},
		{
			name: "zero tolerance",
			args: []string{"--secret", "s", "--tolerance", "0"},
		},
		{
			name: "zero register limit",
			args: []string{"--secret", "s", "--register-limit", "0"},
		},
		{
			name: "zero scan cap",
			args: []string{"--secret", "s", "--max-scan-ids", "0"},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseServerFlags(tc.args); err == nil {
				t.Fatalf("expected validation error for %v", tc.args)
			}
		})
	}
}

func TestParseServerFlagsTLSStatic(t *testing.T) {
	t.Setenv("GRIDHUD_SECRET", "")

	cfg, err := ParseServerFlags([]string{
		"--secret", "s",
		"--tls-mode", "STATIC",
		"--tls-cert-file", "/etc/gridhud/cert.pem",
		"--tls-key-file", "/etc/gridhud/key.pem",
		"--h3",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TLSMode != "static" {
		t.Fatalf("TLSMode = %q, want static (lower-cased)", cfg.TLSMode)
	}
	if !cfg.EnableH3 {
		t.Fatal("EnableH3 = false, want true")
	}
}

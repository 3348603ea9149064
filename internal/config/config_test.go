package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_SQLite(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "wedding-table-test")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", "/tmp/test.db")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("API_PREFIX", "/api/")
	t.Setenv("CORS_ALLOW_ORIGINS", "http://localhost:3000, http://localhost:4000 ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBDriver != "sqlite" || cfg.DBPath != "/tmp/test.db" {
		t.Errorf("unexpected db settings: %+v", cfg)
	}
	if cfg.APIPrefix != "/api" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.APIPrefix)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %q", cfg.Port)
	}
	if len(cfg.CORSAllowOrigins) != 2 {
		t.Errorf("expected 2 origins, got %v", cfg.CORSAllowOrigins)
	}
	if cfg.FirebaseCertsURL != DefaultFirebaseCertsURL {
		t.Errorf("expected default certs url, got %q", cfg.FirebaseCertsURL)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_NAME", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing variables")
	}
	for _, key := range []string{"FIREBASE_PROJECT_ID", "DB_USER", "DB_HOST", "DB_NAME"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}

func TestLoad_UnsupportedDriver(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "p")
	t.Setenv("DB_DRIVER", "oracle")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestLoadRateLimitConfig_Normalizes(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "-3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	if cfg.Capacity != 1 || cfg.RefillTokens != 1 {
		t.Errorf("expected capacity and refill clamped to 1, got %+v", cfg)
	}
	if cfg.TTL != 10*time.Second {
		t.Errorf("expected ttl raised to 5 refill intervals, got %s", cfg.TTL)
	}
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"off", true, false},
		{"YES", false, true},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		t.Setenv("SOME_FLAG", tt.value)
		if got := envBool("SOME_FLAG", tt.def); got != tt.want {
			t.Errorf("envBool(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

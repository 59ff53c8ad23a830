package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PLAZA_JWT_SECRET", "s3cret")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Fatalf("expected 10m ttl, got %s", cfg.CacheTTL)
	}
	if cfg.RatePerSecond != 20 || cfg.RateBurst != 40 {
		t.Fatalf("unexpected rate limits %v/%d", cfg.RatePerSecond, cfg.RateBurst)
	}
	if cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("unexpected body limit %d", cfg.MaxBodyBytes)
	}
	if cfg.BanDuration != 7*24*time.Hour {
		t.Fatalf("unexpected ban duration %s", cfg.BanDuration)
	}
	if cfg.JWTSecret != "s3cret" {
		t.Fatalf("env secret not applied")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plaza.yaml")
	body := "http_addr: \":9000\"\ncache_backend: redis\nredis_addr: localhost:6379\ncache_ttl: 2m\njwt_secret: from-file\ncors_origins:\n  - https://plaza.example\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PLAZA_CACHE_TTL", "30s")
	t.Setenv("PLAZA_JWT_SECRET", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9000" || cfg.CacheBackend != CacheRedis {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Fatalf("env override not applied, got %s", cfg.CacheTTL)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "https://plaza.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{CacheBackend: "disk", MaxBodyBytes: 1}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"jwt_secret", "cache_ttl", "cache_backend"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := splitList([]string{"a, b", "", "c"})
	if strings.Join(got, "|") != "a|b|c" {
		t.Fatalf("unexpected %v", got)
	}
}

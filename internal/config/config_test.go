package config

import (
	"testing"
	"time"
)

var allKeys = []string{
	"HTTP_ADDR", "WS_ADDR", "STORE_BACKEND", "AUTH_BACKEND", "REDIS_URL", "DATABASE_URL",
	"BADGER_DIR", "AUTH_TOKEN_TTL_SEC", "MSGCAT_DIR", "WS_SEND_BUFFER", "BCRYPT_COST",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.WSAddr != ":8081" {
		t.Fatalf("addrs = %q %q", cfg.HTTPAddr, cfg.WSAddr)
	}
	if cfg.StoreBackend != BackendMemory || cfg.AuthBackend != BackendMemory {
		t.Fatalf("backends = %q %q", cfg.StoreBackend, cfg.AuthBackend)
	}
	if cfg.AuthTokenTTL() != 24*time.Hour || cfg.WSSendBuffer != 32 || cfg.BcryptCost != 10 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("AUTH_TOKEN_TTL_SEC", "60")
	t.Setenv("WS_SEND_BUFFER", "not-a-number")
	t.Setenv("BCRYPT_COST", "4")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StoreBackend != BackendRedis || cfg.AuthBackend != BackendRedis {
		t.Fatalf("backends = %q %q", cfg.StoreBackend, cfg.AuthBackend)
	}
	if cfg.AuthTokenTTLSec != 60 || cfg.BcryptCost != 4 {
		t.Fatalf("overrides ignored: %+v", cfg)
	}
	if cfg.WSSendBuffer != 32 {
		t.Fatalf("bad WS_SEND_BUFFER should keep the default, got %d", cfg.WSSendBuffer)
	}
}

func TestBadgerKeepsAccountsInMemory(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "badger")
	t.Setenv("BADGER_DIR", t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AuthBackend != BackendMemory {
		t.Fatalf("AuthBackend = %q, want memory", cfg.AuthBackend)
	}
}

func TestLoadRequiredKeys(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"redis without url", map[string]string{"STORE_BACKEND": "redis"}},
		{"postgres auth without url", map[string]string{"AUTH_BACKEND": "postgres"}},
		{"badger without dir", map[string]string{"STORE_BACKEND": "badger"}},
		{"unknown store", map[string]string{"STORE_BACKEND": "mongo"}},
		{"badger auth", map[string]string{"AUTH_BACKEND": "badger", "BADGER_DIR": "/tmp/x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("Load should fail")
			}
		})
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by STORE_BACKEND and AUTH_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

type AppConfig struct {
	HTTPAddr string
	WSAddr   string

	StoreBackend string
	AuthBackend  string

	RedisURL    string
	DatabaseURL string
	BadgerDir   string

	AuthTokenTTLSec int
	BcryptCost      int

	MsgcatDir    string
	WSSendBuffer int
}

// AuthTokenTTL is AuthTokenTTLSec as a duration.
func (c *AppConfig) AuthTokenTTL() time.Duration {
	return time.Duration(c.AuthTokenTTLSec) * time.Second
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:        ":8080",
		WSAddr:          ":8081",
		StoreBackend:    BackendMemory,
		AuthTokenTTLSec: 86400,
		BcryptCost:      10,
		WSSendBuffer:    32,
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("WS_ADDR")); v != "" {
		cfg.WSAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("STORE_BACKEND")); v != "" {
		cfg.StoreBackend = strings.ToLower(v)
	}
	cfg.AuthBackend = strings.ToLower(strings.TrimSpace(os.Getenv("AUTH_BACKEND")))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.BadgerDir = strings.TrimSpace(os.Getenv("BADGER_DIR"))
	cfg.MsgcatDir = strings.TrimSpace(os.Getenv("MSGCAT_DIR"))

	if v := strings.TrimSpace(os.Getenv("AUTH_TOKEN_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AuthTokenTTLSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("WS_SEND_BUFFER")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WSSendBuffer = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("BCRYPT_COST")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BcryptCost = n
		}
	}

	switch cfg.StoreBackend {
	case BackendMemory, BackendRedis, BackendPostgres, BackendBadger:
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	// badger holds games only; accounts then live in memory unless told otherwise
	if cfg.AuthBackend == "" {
		cfg.AuthBackend = cfg.StoreBackend
		if cfg.AuthBackend == BackendBadger {
			cfg.AuthBackend = BackendMemory
		}
	}
	switch cfg.AuthBackend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		return nil, fmt.Errorf("unknown AUTH_BACKEND %q", cfg.AuthBackend)
	}

	if cfg.uses(BackendRedis) && cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.uses(BackendPostgres) && cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.StoreBackend == BackendBadger && cfg.BadgerDir == "" {
		return nil, errors.New("BADGER_DIR is required")
	}

	return cfg, nil
}

func (c *AppConfig) uses(backend string) bool {
	return c.StoreBackend == backend || c.AuthBackend == backend
}

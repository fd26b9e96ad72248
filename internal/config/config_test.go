package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	os.Unsetenv("SERVER_PORT")
	os.Unsetenv("ENVIRONMENT")
	os.Unsetenv("JWT_SECRET")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.IsProduction() {
		t.Error("Expected development environment by default")
	}
	if cfg.JWT.Secret == "" {
		t.Error("Expected development fallback secret")
	}
	if cfg.GetRedisAddr() != "localhost:6379" {
		t.Errorf("Expected localhost:6379, got %s", cfg.GetRedisAddr())
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("REDIS_HOST", "redis.internal")
	os.Setenv("REDIS_PORT", "6380")
	os.Setenv("JWT_ACCESS_TTL", "30m")
	defer func() {
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("REDIS_HOST")
		os.Unsetenv("REDIS_PORT")
		os.Unsetenv("JWT_ACCESS_TTL")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.GetRedisAddr() != "redis.internal:6380" {
		t.Errorf("Expected redis.internal:6380, got %s", cfg.GetRedisAddr())
	}
	if cfg.JWT.AccessTTL != 30*time.Minute {
		t.Errorf("Expected 30m access ttl, got %v", cfg.JWT.AccessTTL)
	}
}

func TestProductionRequiresSecret(t *testing.T) {
	os.Setenv("ENVIRONMENT", "production")
	os.Unsetenv("JWT_SECRET")
	defer os.Unsetenv("ENVIRONMENT")

	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error when JWT_SECRET missing in production")
	}

	os.Setenv("JWT_SECRET", "prod-secret")
	defer os.Unsetenv("JWT_SECRET")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed with secret set: %v", err)
	}
	if !cfg.IsProduction() {
		t.Error("Expected production environment")
	}
}

func TestInvalidEnvValuesFallBack(t *testing.T) {
	os.Setenv("SERVER_PORT", "not-a-number")
	os.Setenv("JWT_ACCESS_TTL", "not-a-duration")
	defer func() {
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("JWT_ACCESS_TTL")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected fallback port 8080, got %d", cfg.Server.Port)
	}
	if cfg.JWT.AccessTTL != time.Hour {
		t.Errorf("Expected fallback 1h ttl, got %v", cfg.JWT.AccessTTL)
	}
}

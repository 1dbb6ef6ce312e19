package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_ENV", "")
	t.Setenv("NOTIFY_DRIVER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.AdjustInventory() {
		t.Error("development env should not adjust inventory")
	}
	if cfg.Analytics.CacheTTL != time.Minute {
		t.Errorf("Expected cache TTL 1m, got %s", cfg.Analytics.CacheTTL)
	}
	if cfg.Redis.Enabled() {
		t.Error("Redis should be disabled without REDIS_ADDR")
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Error("Expected error without JWT_SECRET")
	}
}

func TestLoadRejectsUnknownNotifyDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("NOTIFY_DRIVER", "smtp")

	if _, err := Load(); err == nil {
		t.Error("Expected error for unknown notify driver")
	}
}

func TestLoadProductionAndBrokers(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_ENV", EnvProduction)
	t.Setenv("NOTIFY_DRIVER", "kafka")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !cfg.App.AdjustInventory() {
		t.Error("production env should adjust inventory")
	}
	if len(cfg.Notify.KafkaBrokers) != 2 || cfg.Notify.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("Unexpected brokers: %v", cfg.Notify.KafkaBrokers)
	}
}

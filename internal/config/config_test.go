package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Storage.Driver != StoragePostgres {
		t.Errorf("expected postgres storage, got %s", cfg.Storage.Driver)
	}
	if cfg.Payment.ChallengeCode != "111111" {
		t.Errorf("expected challenge code 111111, got %s", cfg.Payment.ChallengeCode)
	}
	if cfg.Payment.ChallengeTTL != 5*time.Minute {
		t.Errorf("expected 5m challenge ttl, got %s", cfg.Payment.ChallengeTTL)
	}
	if cfg.Payment.MaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", cfg.Payment.MaxAttempts)
	}
	if cfg.Webhook.URL != "" || cfg.Webhook.MaxRetries != 5 || cfg.Outbox.PollInterval != 5*time.Second {
		t.Errorf("unexpected outbox/webhook defaults: %+v %+v", cfg.Outbox, cfg.Webhook)
	}
	rate, _ := cfg.Payment.DefaultCommissionRate()
	if rate.String() != "1.99" {
		t.Errorf("expected default commission 1.99, got %s", rate)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("PAYMENT_MAX_ATTEMPTS", "5")
	t.Setenv("PAYMENT_PENDING_TTL", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Storage.Driver != StorageMemory {
		t.Errorf("expected memory storage, got %s", cfg.Storage.Driver)
	}
	if cfg.Payment.MaxAttempts != 5 {
		t.Errorf("expected 5 attempts, got %d", cfg.Payment.MaxAttempts)
	}
	if cfg.Payment.PendingTTL != time.Hour {
		t.Errorf("expected 1h pending ttl, got %s", cfg.Payment.PendingTTL)
	}
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("STORAGE_DRIVER", "sqlite")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an unknown storage driver")
	}
}

func TestLoad_RejectsMalformedChallengeCode(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	for _, code := range []string{"12345", "1234567", "12a456"} {
		t.Setenv("PAYMENT_CHALLENGE_CODE", code)
		if _, err := Load(); err == nil {
			t.Errorf("expected an error for challenge code %q", code)
		}
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := []byte("server:\n  port: \"9090\"\npayment:\n  challenge_code: \"222222\"\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("expected port from file, got %s", cfg.Server.Port)
	}
	if cfg.Payment.ChallengeCode != "222222" {
		t.Errorf("expected challenge code from file, got %s", cfg.Payment.ChallengeCode)
	}
}

func TestLoadClient_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient() error: %v", err)
	}
	if cfg.BaseURL != "http://localhost:8080" || cfg.Timeout != 10*time.Second {
		t.Errorf("unexpected client config: %+v", cfg)
	}
}

package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Tokens.RefreshTTL != 336*time.Hour {
		t.Fatalf("expected 14 day refresh ttl, got %v", cfg.Tokens.RefreshTTL)
	}
	if cfg.Cookies.AccessTokenName != "access_token" || cfg.Cookies.RefreshTokenName != "refresh_token" {
		t.Fatalf("unexpected cookie names: %+v", cfg.Cookies)
	}
	if len(cfg.Authorization.AdminRoles) != 1 || cfg.Authorization.AdminRoles[0] != "Admin" {
		t.Fatalf("unexpected admin roles: %v", cfg.Authorization.AdminRoles)
	}
	if cfg.Catalog.ConsumerGroup == cfg.Kafka.ConsumerGroup || cfg.MailWorker.ConsumerGroup == cfg.Kafka.ConsumerGroup {
		t.Fatalf("worker consumer groups must differ from the api group: %+v %+v", cfg.Catalog, cfg.MailWorker)
	}
	if cfg.Password.MinLength != 6 {
		t.Fatalf("expected min password length 6, got %d", cfg.Password.MinLength)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("IAM_TOKENS_RESET_TTL", "5m")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("IAM_AUTH_DISCLOSE_UNKNOWN_EMAIL", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Tokens.ResetTTL != 5*time.Minute {
		t.Fatalf("expected prefixed override, got %v", cfg.Tokens.ResetTTL)
	}
	if cfg.App.Port != 9000 {
		t.Fatalf("expected unprefixed override, got %d", cfg.App.Port)
	}
	if !cfg.Auth.DiscloseUnknownEmail {
		t.Fatal("expected disclose_unknown_email to be true")
	}
}

func TestLoadRejectsUnknownTokenStore(t *testing.T) {
	t.Setenv("IAM_TOKENS_STORE", "memcached")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown token store")
	}
}

func TestLoadRejectsSharedWorkerGroup(t *testing.T) {
	t.Setenv("IAM_MAIL_WORKER_CONSUMER_GROUP", "storefront-catalog")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when catalog and mail worker share a consumer group")
	}
}

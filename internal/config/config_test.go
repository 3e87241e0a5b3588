package config

import (
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"INSTANCE_ID", "INSTANCE_FLAGS", "TELEGRAM_TOKEN", "TG_OWNER_ID",
		"MONGO_URI", "MONGO_DB_NAME", "QQ_CLIENT_TYPE", "NAPCAT_WS_URL",
		"QQ_UIN", "QQ_PASSWORD", "QQ_PLATFORM", "LISTEN_ADDR", "WEB_BASE_URL",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("NAPCAT_WS_URL", "ws://127.0.0.1:3001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MongoDBName != "qtbridge" {
		t.Errorf("expected default db name, got %q", cfg.MongoDBName)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("expected default listen addr, got %q", cfg.ListenAddr)
	}
	if cfg.QQClient.Type != "napcat" {
		t.Errorf("expected napcat default, got %q", cfg.QQClient.Type)
	}
}

func TestLoadNapcatRequiresWSURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("QQ_CLIENT_TYPE", "napcat")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "NAPCAT_WS_URL") {
		t.Fatalf("expected missing ws url error, got %v", err)
	}
}

func TestLoadOICQ(t *testing.T) {
	clearEnv(t)
	t.Setenv("QQ_CLIENT_TYPE", "oicq")
	t.Setenv("QQ_UIN", "10000")
	t.Setenv("QQ_PASSWORD", "secret")
	t.Setenv("QQ_PLATFORM", "2")
	t.Setenv("INSTANCE_ID", "3")
	t.Setenv("INSTANCE_FLAGS", "16")
	t.Setenv("WEB_BASE_URL", "https://bridge.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.QQClient.Uin != 10000 || cfg.QQClient.Password != "secret" || cfg.QQClient.Platform != 2 {
		t.Errorf("oicq config not loaded: %+v", cfg.QQClient)
	}
	if cfg.InstanceID != 3 || cfg.InstanceFlags != 16 {
		t.Errorf("instance fields not loaded: %+v", cfg)
	}
	if cfg.WebBaseURL != "https://bridge.example.com" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.WebBaseURL)
	}
}

func TestLoadOICQRequiresUin(t *testing.T) {
	clearEnv(t)
	t.Setenv("QQ_CLIENT_TYPE", "oicq")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "QQ_UIN") {
		t.Fatalf("expected missing uin error, got %v", err)
	}
}

func TestLoadUnknownClientType(t *testing.T) {
	clearEnv(t)
	t.Setenv("QQ_CLIENT_TYPE", "mirai")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "unknown QQ_CLIENT_TYPE") {
		t.Fatalf("expected unknown type error, got %v", err)
	}
}

func TestLoadRejectsBadInt(t *testing.T) {
	clearEnv(t)
	t.Setenv("NAPCAT_WS_URL", "ws://127.0.0.1:3001")
	t.Setenv("INSTANCE_ID", "abc")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "INSTANCE_ID") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

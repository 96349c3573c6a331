package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestLoadEnvironmentConfigDefaults(t *testing.T) {
	t.Setenv("TRANSPORT", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REGISTROBOT_STATE_DIR", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("API_ADDR", "")
	t.Setenv("STOCK_TRACKING", "")

	config := loadEnvironmentConfig()

	if config.Transport != TransportTelegram {
		t.Errorf("default transport = %q, want %q", config.Transport, TransportTelegram)
	}
	if config.StateDir != DefaultStateDir {
		t.Errorf("default state dir = %q, want %q", config.StateDir, DefaultStateDir)
	}
	want := filepath.Join(DefaultStateDir, DefaultDBFileName)
	if config.DatabaseURL != want {
		t.Errorf("default database URL = %q, want %q", config.DatabaseURL, want)
	}
	if !config.StockTracking {
		t.Error("stock tracking should default to enabled")
	}
}

func TestLoadEnvironmentConfigOverrides(t *testing.T) {
	t.Setenv("TRANSPORT", "twilio")
	t.Setenv("DATABASE_URL", "postgres://localhost/registrobot")
	t.Setenv("REGISTROBOT_STATE_DIR", "/tmp/registrobot-test")
	t.Setenv("STOCK_TRACKING", "false")

	config := loadEnvironmentConfig()

	if config.Transport != "twilio" {
		t.Errorf("transport = %q, want twilio", config.Transport)
	}
	if config.DatabaseURL != "postgres://localhost/registrobot" {
		t.Errorf("database URL = %q, want the explicit DSN", config.DatabaseURL)
	}
	if config.StockTracking {
		t.Error("STOCK_TRACKING=false should disable stock tracking")
	}
}

func TestBuildStoreSQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "registrobot.db")
	st, err := buildStore(dsn)
	if err != nil {
		t.Fatalf("buildStore(%q) error: %v", dsn, err)
	}
	defer st.Close()

	stock, err := st.ListStock()
	if err != nil {
		t.Fatalf("ListStock on fresh store: %v", err)
	}
	if len(stock) != 0 {
		t.Errorf("fresh store has %d stock entries, want 0", len(stock))
	}
}

func TestBuildSessionsDefaultsToInMemory(t *testing.T) {
	sessions, err := buildSessions(context.Background(), "")
	if err != nil {
		t.Fatalf("buildSessions with no Redis address: %v", err)
	}
	if sessions == nil {
		t.Fatal("expected an in-memory session manager")
	}
}

func TestBuildTransportRequiresBotToken(t *testing.T) {
	transport := TransportTelegram
	empty := ""
	flags := Flags{transport: &transport, botToken: &empty}

	_, _, err := buildTransport(flags)
	if !errors.Is(err, errMissingBotToken) {
		t.Errorf("buildTransport error = %v, want %v", err, errMissingBotToken)
	}
}

func TestBuildTransportRejectsUnknown(t *testing.T) {
	transport := "carrier-pigeon"
	token := "tok"
	flags := Flags{transport: &transport, botToken: &token}

	_, _, err := buildTransport(flags)
	if err == nil {
		t.Fatal("expected an error for an unknown transport")
	}
}

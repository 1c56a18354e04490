package config

import (
	"testing"
	"time"
)

var keys = []string{
	"HTTP_ADDR", "SHUTDOWN_TIMEOUT", "LOG_MODE", "BACKEND_URL", "BACKEND_TOKEN", "MAX_UPLOAD_MB",
	"SOCKET_URL", "SOCKET_PATH", "SOCKET_TOKEN", "SOCKET_TRANSPORTS", "RECONNECT_DELAY_MS",
	"RECONNECT_ATTEMPTS", "CAROUSEL_INTERVAL_MS", "SETTINGS_REFRESH_MS", "DISPLAY_RESTORE",
	"DB_DRIVER", "DB_DSN",
}

func clearEnv(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	c := Load()
	if c.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr default")
	}
	if c.ShutdownTimeout != 10*time.Second {
		t.Fatalf("ShutdownTimeout default")
	}
	if c.BackendURL != "http://localhost:4000" || c.SocketURL != c.BackendURL {
		t.Fatalf("backend and socket url default: %q %q", c.BackendURL, c.SocketURL)
	}
	if c.SocketPath != "/socket.io/" {
		t.Fatalf("SocketPath default")
	}
	if len(c.SocketTransports) != 2 || c.SocketTransports[0] != "websocket" || c.SocketTransports[1] != "polling" {
		t.Fatalf("SocketTransports default: %v", c.SocketTransports)
	}
	if c.ReconnectDelay != 5*time.Second || c.ReconnectionAttempts != 0 {
		t.Fatalf("reconnect default")
	}
	if c.CarouselInterval != 5*time.Second {
		t.Fatalf("CarouselInterval default")
	}
	if c.SettingsRefresh != time.Minute || c.DisplayRestore {
		t.Fatalf("settings refresh / restore default")
	}
	if c.MaxUploadBytes() != 10<<20 {
		t.Fatalf("upload limit default")
	}
	if c.DBDriver != "sqlite3" {
		t.Fatalf("DBDriver default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("BACKEND_URL", "https://api.example.com/")
	t.Setenv("BACKEND_TOKEN", "svc")
	t.Setenv("SOCKET_TRANSPORTS", " polling , ")
	t.Setenv("RECONNECT_DELAY_MS", "250")
	t.Setenv("RECONNECT_ATTEMPTS", "3")
	t.Setenv("CAROUSEL_INTERVAL_MS", "1500")
	t.Setenv("SETTINGS_REFRESH_MS", "0")
	t.Setenv("DISPLAY_RESTORE", "true")
	t.Setenv("MAX_UPLOAD_MB", "2")
	c := Load()
	if c.HTTPAddr != ":9090" {
		t.Fatalf("HTTPAddr env")
	}
	if c.BackendURL != "https://api.example.com" || c.SocketURL != "https://api.example.com" {
		t.Fatalf("backend url env: %q %q", c.BackendURL, c.SocketURL)
	}
	if c.SocketToken != "svc" {
		t.Fatalf("SocketToken falls back to BACKEND_TOKEN")
	}
	if len(c.SocketTransports) != 1 || c.SocketTransports[0] != "polling" {
		t.Fatalf("SocketTransports env: %v", c.SocketTransports)
	}
	if c.ReconnectDelay != 250*time.Millisecond || c.ReconnectionAttempts != 3 {
		t.Fatalf("reconnect env")
	}
	if c.CarouselInterval != 1500*time.Millisecond {
		t.Fatalf("CarouselInterval env")
	}
	if c.SettingsRefresh != 0 || !c.DisplayRestore {
		t.Fatalf("settings refresh / restore env")
	}
	if c.MaxUploadBytes() != 2<<20 {
		t.Fatalf("upload limit env")
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_UPLOAD_MB", "ten")
	t.Setenv("DISPLAY_RESTORE", "maybe")
	c := Load()
	if c.MaxUploadMB != 10 {
		t.Fatalf("MaxUploadMB should fall back")
	}
	if c.DisplayRestore {
		t.Fatalf("DisplayRestore should fall back")
	}
}

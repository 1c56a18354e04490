// Package config provides runtime configuration values for the display server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration knobs for HTTP, backend, push channel and storage.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	LogMode         string

	BackendURL   string
	BackendToken string
	MaxUploadMB  int

	SocketURL            string
	SocketPath           string
	SocketToken          string
	SocketTransports     []string
	ReconnectDelay       time.Duration
	ReconnectionAttempts int
	CarouselInterval     time.Duration
	SettingsRefresh      time.Duration
	DisplayRestore       bool

	DBDriver string
	DBDSN    string
	DBUser   string
	DBPass   string
	DBAddr   string
	DBName   string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvms(key string, defMs int) time.Duration {
	ms := atoienv(key, defMs)
	return time.Duration(ms) * time.Millisecond
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

func boolenv(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func listenv(key, def string) []string {
	var out []string
	for _, part := range strings.Split(getenv(key, def), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load collects configuration from environment with defaults.
func Load() Config {
	backend := strings.TrimRight(getenv("BACKEND_URL", "http://localhost:4000"), "/")
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: durenvs("SHUTDOWN_TIMEOUT", 10),
		LogMode:         getenv("LOG_MODE", "dev"),

		BackendURL:   backend,
		BackendToken: getenv("BACKEND_TOKEN", ""),
		MaxUploadMB:  atoienv("MAX_UPLOAD_MB", 10),

		SocketURL:            getenv("SOCKET_URL", backend),
		SocketPath:           getenv("SOCKET_PATH", "/socket.io/"),
		SocketToken:          getenv("SOCKET_TOKEN", getenv("BACKEND_TOKEN", "")),
		SocketTransports:     listenv("SOCKET_TRANSPORTS", "websocket,polling"),
		ReconnectDelay:       durenvms("RECONNECT_DELAY_MS", 5000),
		ReconnectionAttempts: atoienv("RECONNECT_ATTEMPTS", 0),
		CarouselInterval:     durenvms("CAROUSEL_INTERVAL_MS", 5000),
		SettingsRefresh:      durenvms("SETTINGS_REFRESH_MS", 60000),
		DisplayRestore:       boolenv("DISPLAY_RESTORE", false),

		DBDriver: getenv("DB_DRIVER", "sqlite3"),
		DBDSN:    getenv("DB_DSN", "file:display-cache.db?cache=shared"),
		DBUser:   getenv("DBUSER", ""),
		DBPass:   getenv("DBPASS", ""),
		DBAddr:   getenv("DB_ADDR", "127.0.0.1:3306"),
		DBName:   getenv("DB_NAME", "merch_display"),
	}
}

// MaxUploadBytes is the upload ceiling enforced before forwarding files.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "busgo.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNewDefaults(t *testing.T) {
	cfg, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.Server.Port != 8050 || cfg.Store.Driver != StoreFile || cfg.Presence.Interval != 2*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ServerAddr() != "0.0.0.0:8050" {
		t.Fatalf("ServerAddr = %s", cfg.ServerAddr())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, `
server:
  port: 9100
session:
  idle_timeout: 30s
  wire_format: sentinel
log_level: debug
timezone: UTC
`)
	t.Setenv("SERVER_PORT", "9200")
	t.Setenv("BROADCAST_ENABLED", "false")

	cfg, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if cfg.Server.Port != 9200 {
		t.Errorf("port = %d, want env value 9200", cfg.Server.Port)
	}
	if cfg.Session.IdleTimeout != 30*time.Second || cfg.Session.WireFormat != "sentinel" {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Presence.Enabled {
		t.Error("presence still enabled")
	}
	if lvl, _ := cfg.SlogLevel(); lvl != slog.LevelDebug {
		t.Errorf("level = %v", lvl)
	}
	if loc, _ := cfg.Location(); loc != time.UTC {
		t.Errorf("location = %v", loc)
	}
}

func TestNewRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "bad port", env: map[string]string{"SERVER_PORT": "eighty"}, want: "SERVER_PORT"},
		{name: "bad duration", env: map[string]string{"SESSION_IDLE_TIMEOUT": "soon"}, want: "SESSION_IDLE_TIMEOUT"},
		{name: "unknown driver", env: map[string]string{"STORE_DRIVER": "sqlite"}, want: "STORE_DRIVER"},
		{name: "postgres without user", env: map[string]string{"STORE_DRIVER": "postgres", "POSTGRES_USER": ""}, want: "POSTGRES_USER"},
		{name: "bad timezone", env: map[string]string{"TIMEZONE": "Mars/Olympus"}, want: "TIMEZONE"},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "loud"}, want: "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := New("")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	c := PostgresConfig{User: "bus", Password: "p@ss", Name: "busgo", Host: "db", Port: 5432, SSLMode: "disable"}

	want := "postgres://bus:p%40ss@db:5432/busgo?sslmode=disable"
	if got := c.DSN(); got != want {
		t.Fatalf("DSN = %s, want %s", got, want)
	}
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreFile     = "file"
	StorePostgres = "postgres"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	HTTP     HTTPConfig     `yaml:"http"`
	Store    StoreConfig    `yaml:"store"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Presence PresenceConfig `yaml:"presence"`
	Session  SessionConfig  `yaml:"session"`
	Booking  BookingConfig  `yaml:"booking"`
	LogLevel string         `yaml:"log_level"`
	// Timezone names the IANA zone departures are entered and shown in.
	Timezone string `yaml:"timezone"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// HTTPConfig configures the read-only ops API. Port 0 disables it.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

type StoreConfig struct {
	Driver  string `yaml:"driver"`
	DataDir string `yaml:"data_dir"`
}

type PostgresConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"db"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
}

// RedisConfig enables the cache, seat events and booking limiter. An empty
// Addr disables all three.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PresenceConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Interval time.Duration `yaml:"interval"`
}

type SessionConfig struct {
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	WireFormat  string        `yaml:"wire_format"`
	AcceptRate  float64       `yaml:"accept_rate"`
	AcceptBurst int           `yaml:"accept_burst"`
}

// BookingConfig bounds bookings per client IP. RateLimit 0 disables it.
type BookingConfig struct {
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8050},
		HTTP:   HTTPConfig{Port: 8080},
		Store:  StoreConfig{Driver: StoreFile, DataDir: "data"},
		Postgres: PostgresConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		Presence: PresenceConfig{
			Enabled:  true,
			Addr:     "255.255.255.255:9000",
			Interval: 2 * time.Second,
		},
		Session: SessionConfig{
			IdleTimeout: 10 * time.Minute,
			WireFormat:  "framed",
			AcceptRate:  5,
			AcceptBurst: 10,
		},
		Booking: BookingConfig{
			RateLimit:  10,
			RateWindow: time.Minute,
		},
		LogLevel: "info",
		Timezone: "Local",
	}
}

// New builds the configuration from defaults, then the YAML file at path
// (or CONFIG_FILE when path is empty), then .env and the environment.
func New(path string) (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	envString("SERVER_HOST", &c.Server.Host)
	envString("STORE_DRIVER", &c.Store.Driver)
	envString("DATA_DIR", &c.Store.DataDir)
	envString("POSTGRES_HOST", &c.Postgres.Host)
	envString("POSTGRES_USER", &c.Postgres.User)
	envString("POSTGRES_PASSWORD", &c.Postgres.Password)
	envString("POSTGRES_DB", &c.Postgres.Name)
	envString("POSTGRES_SSLMODE", &c.Postgres.SSLMode)
	envString("REDIS_ADDR", &c.Redis.Addr)
	envString("REDIS_PASSWORD", &c.Redis.Password)
	envString("BROADCAST_ADDR", &c.Presence.Addr)
	envString("WIRE_FORMAT", &c.Session.WireFormat)
	envString("LOG_LEVEL", &c.LogLevel)
	envString("TIMEZONE", &c.Timezone)

	return errors.Join(
		envInt("SERVER_PORT", &c.Server.Port),
		envInt("HTTP_PORT", &c.HTTP.Port),
		envInt("POSTGRES_PORT", &c.Postgres.Port),
		envInt("REDIS_DB", &c.Redis.DB),
		envInt("ACCEPT_BURST", &c.Session.AcceptBurst),
		envInt("BOOKING_RATE_LIMIT", &c.Booking.RateLimit),
		envBool("BROADCAST_ENABLED", &c.Presence.Enabled),
		envDuration("BROADCAST_INTERVAL", &c.Presence.Interval),
		envDuration("SESSION_IDLE_TIMEOUT", &c.Session.IdleTimeout),
		envDuration("BOOKING_RATE_WINDOW", &c.Booking.RateWindow),
		envFloat("ACCEPT_RATE", &c.Session.AcceptRate),
	)
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTP.Port)
	}

	switch c.Store.Driver {
	case StoreFile:
		if c.Store.DataDir == "" {
			return errors.New("missing DATA_DIR")
		}
	case StorePostgres:
		if c.Postgres.User == "" {
			return errors.New("missing POSTGRES_USER")
		}
		if c.Postgres.Password == "" {
			return errors.New("missing POSTGRES_PASSWORD")
		}
		if c.Postgres.Name == "" {
			return errors.New("missing POSTGRES_DB")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	return nil
}

func (c *Config) ServerAddr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

func (c *Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	return loc, nil
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return level, nil
}

func (c PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = strings.TrimSpace(v)
	}
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func envFloat(key string, dst *float64) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = f
	return nil
}

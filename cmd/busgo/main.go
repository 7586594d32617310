package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/kirinyoku/bus-go/internal/app"
	"github.com/kirinyoku/bus-go/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "busgo:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = pflag.String("config", "", "path to a YAML config file (default $CONFIG_FILE)")
		port       = pflag.Int("port", 0, "TCP port for booking sessions")
		httpPort   = pflag.Int("http-port", -1, "port for the read-only HTTP API, 0 disables it")
		dataDir    = pflag.String("data-dir", "", "directory holding the record files")
		storeKind  = pflag.String("store", "", "storage backend: file or postgres")
		wireFormat = pflag.String("wire-format", "", "session wire format: framed or sentinel")
		logLevel   = pflag.String("log-level", "", "log level: debug, info, warn or error")
		noPresence = pflag.Bool("no-broadcast", false, "do not announce the server over UDP")
	)
	pflag.Parse()

	cfg, err := config.New(*configPath)
	if err != nil {
		return err
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *httpPort >= 0 {
		cfg.HTTP.Port = *httpPort
	}
	if *dataDir != "" {
		cfg.Store.DataDir = *dataDir
	}
	if *storeKind != "" {
		cfg.Store.Driver = *storeKind
	}
	if *wireFormat != "" {
		cfg.Session.WireFormat = *wireFormat
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *noPresence {
		cfg.Presence.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx := context.Background()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application finished with error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}

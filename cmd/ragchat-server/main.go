package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"RagChat/internal/chatbot"
	"RagChat/internal/config"
	"RagChat/internal/server"
	"RagChat/internal/telemetry"
)

func main() {
	var (
		configPath string
		overrides  config.Config
	)

	flag.StringVar(&configPath, "config", "", "Path to a TOML config file")
	flag.StringVar(&overrides.ListenAddr, "listen", ":8080", "Address to listen on")
	flag.StringVar(&overrides.ArchiveBackend, "archive", config.ArchiveFile, "Archive backend (file|sqlite|bolt)")
	flag.StringVar(&overrides.ConversationsDir, "conversations", "conversations", "Directory of the file archive")
	flag.BoolVar(&overrides.Debug, "debug", false, "Enable debug logging")

	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.ListenAddr = overrides.ListenAddr
		case "archive":
			cfg.ArchiveBackend = overrides.ArchiveBackend
		case "conversations":
			cfg.ConversationsDir = overrides.ConversationsDir
		case "debug":
			cfg.Debug = overrides.Debug
		}
	})
	// the server is the archive; it never forwards to another one
	cfg.ArchiveURL = ""
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	tracer, meter, shutdown, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer shutdown()

	deps, cleanup, err := chatbot.Wire(ctx, cfg, logger, tracer, meter)
	if err != nil {
		return fmt.Errorf("failed to initialize chat sessions: %w", err)
	}
	defer cleanup()

	srv := server.New(deps.Archive, deps, cfg.AllowedOrigins, logger)
	return srv.Run(ctx, cfg.ListenAddr)
}

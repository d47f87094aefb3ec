package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"RagChat/internal/archive"
	"RagChat/internal/chatbot"
	"RagChat/internal/config"
	"RagChat/internal/telemetry"
)

func main() {
	var (
		configPath string
		overrides  config.Config
	)

	flag.StringVar(&configPath, "config", "", "Path to a TOML config file")
	flag.StringVar(&overrides.ModelBackend, "backend", config.BackendOllama, "Model server wire format (ollama|openai)")
	flag.StringVar(&overrides.ModelBaseURL, "model-url", "", "Model server base URL")
	flag.StringVar(&overrides.Model, "model", "", "Model to use (format: model:version)")
	flag.StringVar(&overrides.VectorSearchBaseURL, "search-url", "", "Vector search base URL")
	flag.StringVar(&overrides.ArchiveURL, "archive-url", "", "Persistence backend URL, empty for a local archive")
	flag.StringVar(&overrides.ArchiveBackend, "archive", config.ArchiveFile, "Local archive backend (file|sqlite|bolt)")
	flag.StringVar(&overrides.Conversation, "conversation", "", "Open an archived conversation by file name")
	flag.BoolVar(&overrides.RenderMarkdown, "markdown", false, "Render answers as markdown")
	flag.BoolVar(&overrides.Debug, "debug", false, "Enable debug logging")

	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.ModelBackend = overrides.ModelBackend
		case "model-url":
			cfg.ModelBaseURL = overrides.ModelBaseURL
		case "model":
			cfg.Model = overrides.Model
		case "search-url":
			cfg.VectorSearchBaseURL = overrides.VectorSearchBaseURL
		case "archive-url":
			cfg.ArchiveURL = overrides.ArchiveURL
		case "archive":
			cfg.ArchiveBackend = overrides.ArchiveBackend
		case "conversation":
			cfg.Conversation = overrides.Conversation
		case "markdown":
			cfg.RenderMarkdown = overrides.RenderMarkdown
		case "debug":
			cfg.Debug = overrides.Debug
		}
	})
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
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if cfg.Debug {
		logger.Info("Debug mode enabled")
	}

	tracer, meter, shutdown, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer shutdown()

	deps, cleanup, err := chatbot.Wire(ctx, cfg, logger, tracer, meter)
	if err != nil {
		return fmt.Errorf("failed to initialize chatbot: %w", err)
	}
	defer cleanup()

	bot := chatbot.New(deps)
	term := chatbot.NewTerminal(bot, os.Stdin, os.Stdout, cfg.RenderMarkdown)

	if cfg.Conversation != "" {
		ref := archive.ConversationRef{FilePath: filepath.Base(cfg.Conversation)}
		if err := bot.LoadConversation(ctx, ref); err != nil {
			logger.Warn("failed to load conversation, starting a new one", "file", cfg.Conversation, "error", err)
		}
	}

	return term.Run(ctx)
}

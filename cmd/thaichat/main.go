// Command thaichat serves the Thailand travel chatbot.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Napakamol/ThailandChatbot/internal/config"
	"github.com/Napakamol/ThailandChatbot/internal/startup"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	// Parse configuration from CLI flags and the environment
	cfg, err := config.Parse(args, stderr)
	if errors.Is(err, config.ErrShowHelp) || errors.Is(err, config.ErrShowVersion) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	logger := startup.CreateLogger(cfg)

	logger.Info("Starting thaichat...")
	logger.Debug("Configuration: port=%d, context-mode=%s, session-store=%s, default-place=%s",
		cfg.Port, cfg.ContextMode, cfg.SessionStore, cfg.DefaultPlace)
	logger.Debug("Ollama: url=%s, model=%s", cfg.OllamaURL, cfg.OllamaModel)
	logger.Debug("Log level: %s", cfg.LogLevel)

	components, err := startup.InitializeAll(ctx, cfg, logger)
	if err != nil {
		logger.Error("Initialization failed: %v", err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer startup.Close(components)

	// Validate ollama is running and has the model
	logger.Debug("Validating ollama connection...")
	if err := startup.ValidateOllama(ctx, components.OllamaClient); err != nil {
		logger.Error("Ollama validation failed: %v", err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprintf(stderr, "\nPlease ensure ollama is running:\n")
		fmt.Fprintf(stderr, "  ollama serve\n")
		fmt.Fprintf(stderr, "\nAnd that the model is available:\n")
		fmt.Fprintf(stderr, "  ollama pull %s\n", cfg.OllamaModel)
		return 1
	}
	logger.Info("Connected to ollama at %s (model: %s)", cfg.OllamaURL, cfg.OllamaModel)

	logger.Info("Listening on http://localhost:%d", cfg.Port)

	if err := startup.Run(ctx, components.WebServer, logger); err != nil {
		logger.Error("Server error: %v", err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	return 0
}

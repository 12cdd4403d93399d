package startup

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Napakamol/ThailandChatbot/internal/conversation"
	"github.com/Napakamol/ThailandChatbot/internal/logging"
	"github.com/Napakamol/ThailandChatbot/internal/web"
)

// Run starts the web server and blocks until a shutdown signal is received.
// It handles SIGTERM and SIGINT signals for graceful shutdown.
//
// Returns nil on clean shutdown, error otherwise.
func Run(ctx context.Context, server *web.Server, logger *logging.Logger) error {
	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The web.Server itself logs "Shutting down..." and "Web server stopped"
	if err := server.ListenAndServe(shutdownCtx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Close releases the session store and the image store.
// Errors are logged and do not stop the remaining steps.
// A nil components is a no-op.
func Close(components *Components) {
	if components == nil {
		return
	}
	logger := components.Logger

	switch store := components.Store.(type) {
	case *conversation.MemoryStore:
		store.Shutdown()
	case *conversation.RedisStore:
		if err := store.Close(); err != nil {
			logger.Error("Failed to close redis client: %v", err)
		}
	}

	if components.Repository != nil {
		if err := components.Repository.Close(); err != nil {
			logger.Error("Failed to close database: %v", err)
		}
	}

	logger.Debug("Components closed")
}

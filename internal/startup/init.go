package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Napakamol/ThailandChatbot/internal/chat"
	"github.com/Napakamol/ThailandChatbot/internal/config"
	"github.com/Napakamol/ThailandChatbot/internal/conversation"
	"github.com/Napakamol/ThailandChatbot/internal/gallery"
	"github.com/Napakamol/ThailandChatbot/internal/logging"
	"github.com/Napakamol/ThailandChatbot/internal/ollama"
	"github.com/Napakamol/ThailandChatbot/internal/web"
)

// Components holds all initialized application components
type Components struct {
	OllamaClient *ollama.Client
	Images       gallery.Lookup
	Repository   *gallery.Repository // nil when pictures are disabled
	Store        conversation.Store
	Chat         *chat.Service
	WebServer    *web.Server
	Logger       *logging.Logger
}

// CreateLogger creates a logger with the configured log level
func CreateLogger(cfg *config.Config) *logging.Logger {
	return logging.NewFromString(cfg.LogLevel, nil)
}

// CreateOllamaClient creates an ollama client with the configured URL and model.
// It does NOT validate connection - use ValidateOllama() separately.
func CreateOllamaClient(cfg *config.Config, logger *logging.Logger) *ollama.Client {
	return ollama.NewClientWithConfig(cfg.OllamaURL, cfg.OllamaModel, ollama.DefaultTimeout*time.Second, logger)
}

// CreateGallery opens the image store, migrates it and loads the seed file.
// Without a DSN every lookup reports no image and the repository is nil.
func CreateGallery(ctx context.Context, cfg *config.Config, logger *logging.Logger) (gallery.Lookup, *gallery.Repository, error) {
	if cfg.DatabaseDSN == "" {
		logger.Info("No database configured, picture requests will get the not-found message")
		return gallery.Disabled{}, nil, nil
	}

	repo, err := gallery.Open(cfg.DatabaseDSN, logger)
	if err != nil {
		return nil, nil, err
	}

	if err := repo.Migrate(ctx); err != nil {
		_ = repo.Close()
		return nil, nil, err
	}

	if cfg.PlacesSeed != "" {
		n, err := repo.Seed(ctx, cfg.PlacesSeed)
		if err != nil {
			_ = repo.Close()
			return nil, nil, fmt.Errorf("failed to seed places from %s: %w", cfg.PlacesSeed, err)
		}
		logger.Info("Loaded %d places from %s", n, cfg.PlacesSeed)
	}

	return repo, repo, nil
}

// CreateSessionStore creates the configured session store. A redis store is
// pinged before it is returned.
func CreateSessionStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (conversation.Store, error) {
	switch cfg.SessionStore {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := conversation.NewRedisStore(client, cfg.SessionTTL)
		if err := validatePing(ctx, "redis", store); err != nil {
			_ = store.Close()
			return nil, err
		}
		logger.Debug("Using redis session store at %s (db %d)", cfg.RedisAddr, cfg.RedisDB)
		return store, nil
	default:
		logger.Debug("Using in-memory session store")
		return conversation.NewMemoryStore(logger), nil
	}
}

// CreateChatService creates the turn manager.
func CreateChatService(cfg *config.Config, model chat.Model, images gallery.Lookup, store conversation.Store, logger *logging.Logger) (*chat.Service, error) {
	mode, err := chat.ParseContextMode(cfg.ContextMode)
	if err != nil {
		return nil, err
	}
	return chat.NewService(model, images, store, chat.Options{
		SystemPrompt: ollama.SystemPrompt,
		DefaultPlace: cfg.DefaultPlace,
		Mode:         mode,
		Logger:       logger,
	}), nil
}

// CreateWebServer creates the HTTP server with all dependencies wired
func CreateWebServer(cfg *config.Config, turns web.TurnHandler, store conversation.Store, logger *logging.Logger) (*web.Server, error) {
	server, err := web.NewServer(turns, store, web.Options{
		Addr:          fmt.Sprintf("localhost:%d", cfg.Port),
		SessionTTL:    cfg.SessionTTL,
		SecureCookies: cfg.SecureCookies,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create web server: %w", err)
	}
	return server, nil
}

// InitializeAll creates and initializes all application components.
// It does NOT validate ollama - validation should be done separately.
// On error, components created so far are closed.
func InitializeAll(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Components, error) {
	logger.Debug("Initializing components")

	c := &Components{Logger: logger}

	c.OllamaClient = CreateOllamaClient(cfg, logger)
	logger.Debug("Created ollama client: endpoint=%s, model=%s", cfg.OllamaURL, cfg.OllamaModel)

	images, repo, err := CreateGallery(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open image store: %w", err)
	}
	c.Images, c.Repository = images, repo

	store, err := CreateSessionStore(ctx, cfg, logger)
	if err != nil {
		Close(c)
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}
	c.Store = store
	logger.Debug("Created %s session store", cfg.SessionStore)

	c.Chat, err = CreateChatService(cfg, c.OllamaClient, c.Images, c.Store, logger)
	if err != nil {
		Close(c)
		return nil, fmt.Errorf("failed to create chat service: %w", err)
	}

	c.WebServer, err = CreateWebServer(cfg, c.Chat, c.Store, logger)
	if err != nil {
		Close(c)
		return nil, err
	}
	logger.Debug("Created web server on port %d", cfg.Port)

	return c, nil
}

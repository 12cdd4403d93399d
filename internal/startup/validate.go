// Package startup wires the thaichat components together and checks that
// the services they depend on are reachable before the server starts.
package startup

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Napakamol/ThailandChatbot/internal/ollama"
)

var (
	// ErrOllamaNotRunning is returned when ollama is not reachable
	ErrOllamaNotRunning = errors.New("ollama not running")
	// ErrModelMissing is returned when ollama is up but the model is not pulled
	ErrModelMissing = errors.New("ollama model missing")
)

const (
	// ollamaTimeout is the timeout for ollama validation request
	ollamaTimeout = 5 * time.Second
	// dependencyTimeout bounds each database and redis check
	dependencyTimeout = 5 * time.Second
)

// ValidateOllama checks that ollama answers at the client's endpoint and
// has the client's model.
func ValidateOllama(ctx context.Context, client *ollama.Client) error {
	// SECURITY: only plain http(s) endpoints with a host are contacted
	parsedURL, err := url.Parse(client.Endpoint())
	if err != nil {
		return fmt.Errorf("%w: invalid URL: %v", ErrOllamaNotRunning, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%w: URL must use http or https scheme, got: %s", ErrOllamaNotRunning, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%w: URL must have a host", ErrOllamaNotRunning)
	}

	ctx, cancel := context.WithTimeout(ctx, ollamaTimeout)
	defer cancel()

	err = client.Connect(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ollama.ErrModelNotFound):
		return fmt.Errorf("%w: %v", ErrModelMissing, err)
	default:
		return fmt.Errorf("%w at %s: %v", ErrOllamaNotRunning, client.Endpoint(), err)
	}
}

// pinger is implemented by stores that can check their backend.
type pinger interface {
	Ping(ctx context.Context) error
}

// validatePing runs p's health check with dependencyTimeout.
func validatePing(ctx context.Context, name string, p pinger) error {
	ctx, cancel := context.WithTimeout(ctx, dependencyTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("%s not reachable: %w", name, err)
	}
	return nil
}

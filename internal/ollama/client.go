package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/Napakamol/ThailandChatbot/internal/logging"
)

// Sentinel errors for ollama client operations
var (
	// ErrNotRunning is returned when ollama is not running at the configured endpoint
	ErrNotRunning = errors.New("ollama not running")
	// ErrModelNotFound is returned when the requested model is not available
	ErrModelNotFound = errors.New("model not available in ollama")
	// ErrConnectionTimeout is returned when the connection times out
	ErrConnectionTimeout = errors.New("ollama connection timeout")
	// ErrRequestFailed is returned when an API request fails
	ErrRequestFailed = errors.New("ollama request failed")
	// ErrConnectionFailed is returned when connection fails for unknown reasons
	ErrConnectionFailed = errors.New("ollama connection failed")
	// ErrEmptyMessages is returned when Chat is called without messages
	ErrEmptyMessages = errors.New("messages cannot be empty")
)

// Maximum response size to prevent unbounded memory usage (1 MB)
const maxResponseSize = 1024 * 1024

// Client provides methods to communicate with the ollama API.
type Client struct {
	endpoint   string
	model      string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a new ollama client with default settings.
// The client connects to http://localhost:11434 with a 60-second timeout
// for the tags check.
func NewClient() *Client {
	return NewClientWithConfig(DefaultEndpoint, DefaultModel, time.Duration(DefaultTimeout)*time.Second, nil)
}

// NewClientWithConfig creates a new ollama client with custom configuration.
// Parameters:
//   - endpoint: Ollama API endpoint URL (e.g., "http://localhost:11434")
//   - model: Model name (e.g., "llama3:latest")
//   - timeout: HTTP timeout for the tags check only; generation is not time limited
//   - logger: optional, nil discards
func NewClientWithConfig(endpoint, model string, timeout time.Duration, logger *logging.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		model:    model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("ollama"),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Endpoint returns the configured endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Connect verifies that ollama is reachable and the required model is available.
// It makes a GET request to /api/tags to check connectivity and model availability.
//
// Returns ErrNotRunning if ollama is not reachable.
// Returns ErrModelNotFound if the configured model is not available.
// Returns ErrConnectionTimeout if the connection times out.
func (c *Client) Connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+EndpointTags, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.wrapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", ErrRequestFailed, resp.StatusCode)
	}

	var tagsResp TagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tagsResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	for _, model := range tagsResp.Models {
		if model.Name == c.model {
			return nil
		}
	}

	return fmt.Errorf("%w: %s (pull with: ollama pull %s)", ErrModelNotFound, c.model, c.model)
}

// Chat sends the conversation to /api/chat and returns the complete reply.
// The response is streamed as newline-delimited JSON and collected; callers
// see a single string once the model signals completion.
//
// Only the first message may have role "system".
//
// There is no timeout on generation. Cancel ctx to abort.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", ErrEmptyMessages
	}

	for i, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			if i != 0 {
				return "", errors.New("system message must be first in conversation")
			}
		case RoleUser, RoleAssistant:
		default:
			return "", fmt.Errorf("invalid message role: %q", msg.Role)
		}
	}

	resp, err := c.post(ctx, EndpointChat, ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return c.collectStream(resp.Body)
}

// Generate sends a single prompt to /api/generate and returns the reply.
// system is passed as the generate system override and may be empty.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := c.post(ctx, EndpointGenerate, GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		System: system,
		Stream: false,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var genResp GenerateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if genResp.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrRequestFailed, genResp.Error)
	}
	return genResp.Response, nil
}

// post encodes body as JSON and posts it to path. On success the caller owns
// the response body. Non-200 responses are turned into ErrRequestFailed.
func (c *Client) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Generation can run far longer than c.httpClient's timeout, so use a
	// client without one. ctx controls the request lifetime.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, c.wrapTransportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if readErr != nil {
			return nil, fmt.Errorf("%w: status %d (failed to read error: %v)", ErrRequestFailed, resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, string(bytes.TrimSpace(errBody)))
	}

	return resp, nil
}

// collectStream reads newline-delimited JSON chunks until one has Done set.
func (c *Client) collectStream(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxResponseSize)
	var full bytes.Buffer

	chunks := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		chunks++

		var chunk ChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			c.logger.Debug("chunk %d: malformed JSON: %s", chunks, string(line))
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrRequestFailed, chunk.Error)
		}

		full.WriteString(chunk.Message.Content)
		if full.Len() > maxResponseSize {
			return "", fmt.Errorf("response too large (>%d bytes)", maxResponseSize)
		}

		if chunk.Done {
			c.logger.Debug("stream complete after %d chunks (%d bytes, reason=%s)", chunks, full.Len(), chunk.DoneReason)
			return full.String(), nil
		}
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("stream read error: %w", err)
	}

	// EOF without a done chunk: the connection dropped mid-reply.
	return "", fmt.Errorf("%w: stream ended before completion", ErrRequestFailed)
}

// wrapTransportError classifies err and adds the endpoint and a hint when
// ollama is simply not running.
func (c *Client) wrapTransportError(err error) error {
	classified := c.classifyError(err)
	if errors.Is(classified, ErrNotRunning) {
		return fmt.Errorf("%w at %s (start with: ollama serve)", ErrNotRunning, c.endpoint)
	}
	return classified
}

// classifyError converts low-level HTTP errors into user-friendly errors.
func (c *Client) classifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrConnectionTimeout
	}

	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrConnectionTimeout
	}

	// Connection refused means nothing is listening at the endpoint
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrNotRunning
	}

	// DNS errors, TLS errors, etc.
	return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
}

package startup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Napakamol/ThailandChatbot/internal/ollama"
)

func fakeOllama(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ollama.EndpointTags {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestValidateOllama_Success(t *testing.T) {
	server := fakeOllama(t, http.StatusOK, `{"models":[{"name":"llama3:latest"}]}`)
	client := ollama.NewClientWithConfig(server.URL, "llama3:latest", time.Second, nil)

	if err := ValidateOllama(context.Background(), client); err != nil {
		t.Errorf("ValidateOllama() error = %v, want nil", err)
	}
}

func TestValidateOllama_ModelMissing(t *testing.T) {
	server := fakeOllama(t, http.StatusOK, `{"models":[{"name":"mistral:7b"}]}`)
	client := ollama.NewClientWithConfig(server.URL, "llama3:latest", time.Second, nil)

	err := ValidateOllama(context.Background(), client)
	if !errors.Is(err, ErrModelMissing) {
		t.Errorf("ValidateOllama() error = %v, want %v", err, ErrModelMissing)
	}
}

func TestValidateOllama_NotRunning(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := ollama.NewClientWithConfig(url, "llama3:latest", time.Second, nil)
	err := ValidateOllama(context.Background(), client)

	if !errors.Is(err, ErrOllamaNotRunning) {
		t.Errorf("error does not wrap ErrOllamaNotRunning: %v", err)
	}
}

func TestValidateOllama_UnexpectedStatusCode(t *testing.T) {
	server := fakeOllama(t, http.StatusInternalServerError, "")
	client := ollama.NewClientWithConfig(server.URL, "llama3:latest", time.Second, nil)

	err := ValidateOllama(context.Background(), client)
	if !errors.Is(err, ErrOllamaNotRunning) {
		t.Errorf("error does not wrap ErrOllamaNotRunning: %v", err)
	}
}

// SECURITY TEST: ValidateOllama must reject invalid URL schemes (SSRF prevention)
func TestValidateOllama_InvalidScheme(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"file scheme", "file:///etc/passwd"},
		{"ftp scheme", "ftp://example.com"},
		{"data scheme", "data:text/plain,hello"},
		{"javascript scheme", "javascript:alert(1)"},
		{"no host", "http://"},
		{"unparsable", "http://[::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := ollama.NewClientWithConfig(tt.url, "llama3:latest", time.Second, nil)
			err := ValidateOllama(context.Background(), client)
			if !errors.Is(err, ErrOllamaNotRunning) {
				t.Errorf("ValidateOllama(%q) error = %v, want ErrOllamaNotRunning", tt.url, err)
			}
		})
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestValidatePing(t *testing.T) {
	if err := validatePing(context.Background(), "redis", fakePinger{}); err != nil {
		t.Errorf("validatePing() error = %v, want nil", err)
	}

	cause := errors.New("refused")
	err := validatePing(context.Background(), "redis", fakePinger{err: cause})
	if !errors.Is(err, cause) {
		t.Errorf("validatePing() error = %v, want it to wrap %v", err, cause)
	}
}

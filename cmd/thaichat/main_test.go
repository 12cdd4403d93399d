package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRun_HelpAndVersion(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"help", []string{"--help"}, "USAGE:"},
		{"version", []string{"--version"}, "thaichat "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			if code := run(context.Background(), tt.args, &stderr); code != 0 {
				t.Errorf("run() = %d, want 0", code)
			}
			if !strings.Contains(stderr.String(), tt.want) {
				t.Errorf("output %q does not contain %q", stderr.String(), tt.want)
			}
		})
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	var stderr bytes.Buffer
	if code := run(context.Background(), []string{"--port", "1"}, &stderr); code != 1 {
		t.Errorf("run() = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "Error:") {
		t.Errorf("stderr = %q, want an error message", stderr.String())
	}
}

func TestRun_OllamaMissingModel(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"mistral:7b"}]}`))
	}))
	defer ollama.Close()

	var stderr bytes.Buffer
	code := run(context.Background(), []string{"--ollama-url", ollama.URL, "--port", "18282"}, &stderr)

	if code != 1 {
		t.Errorf("run() = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "ollama pull llama3:latest") {
		t.Errorf("stderr = %q, want a pull hint", stderr.String())
	}
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest"}]}`))
	}))
	defer ollama.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() {
		var stderr bytes.Buffer
		done <- run(ctx, []string{"--ollama-url", ollama.URL, "--port", "18283", "--log-level", "error"}, &stderr)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get("http://localhost:18283/healthz")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("server never became ready: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()

	select {
	case code := <-done:
		if code != 0 {
			t.Errorf("run() = %d, want 0", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

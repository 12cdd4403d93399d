package config

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	output := &bytes.Buffer{}
	cfg, err := Parse([]string{}, output)
	if err != nil {
		t.Fatalf("Parse() error = %v, want nil", err)
	}

	if cfg.Port != defaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, defaultPort)
	}
	if cfg.OllamaURL != defaultOllamaURL {
		t.Errorf("OllamaURL = %s, want %s", cfg.OllamaURL, defaultOllamaURL)
	}
	if cfg.OllamaModel != defaultOllamaModel {
		t.Errorf("OllamaModel = %s, want %s", cfg.OllamaModel, defaultOllamaModel)
	}
	if cfg.ContextMode != defaultContextMode {
		t.Errorf("ContextMode = %s, want %s", cfg.ContextMode, defaultContextMode)
	}
	if cfg.DatabaseDSN != "" {
		t.Errorf("DatabaseDSN = %q, want empty", cfg.DatabaseDSN)
	}
	if cfg.DefaultPlace != defaultDefaultPlace {
		t.Errorf("DefaultPlace = %s, want %s", cfg.DefaultPlace, defaultDefaultPlace)
	}
	if cfg.SessionStore != defaultSessionStore {
		t.Errorf("SessionStore = %s, want %s", cfg.SessionStore, defaultSessionStore)
	}
	if cfg.SessionTTL != defaultSessionTTL {
		t.Errorf("SessionTTL = %v, want %v", cfg.SessionTTL, defaultSessionTTL)
	}
	if cfg.SecureCookies {
		t.Error("SecureCookies = true, want false")
	}
	if cfg.LogLevel != defaultLogLevel {
		t.Errorf("LogLevel = %s, want %s", cfg.LogLevel, defaultLogLevel)
	}
}

func TestParse_CustomFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, c *Config)
	}{
		{
			name: "custom port",
			args: []string{"--port", "3000"},
			check: func(t *testing.T, c *Config) {
				if c.Port != 3000 {
					t.Errorf("Port = %d, want 3000", c.Port)
				}
			},
		},
		{
			name: "custom ollama settings",
			args: []string{"--ollama-url", "http://localhost:12345", "--ollama-model", "llama3.2:3b", "--context-mode", "message"},
			check: func(t *testing.T, c *Config) {
				if c.OllamaURL != "http://localhost:12345" {
					t.Errorf("OllamaURL = %s", c.OllamaURL)
				}
				if c.OllamaModel != "llama3.2:3b" {
					t.Errorf("OllamaModel = %s", c.OllamaModel)
				}
				if c.ContextMode != "message" {
					t.Errorf("ContextMode = %s", c.ContextMode)
				}
			},
		},
		{
			name: "redis sessions",
			args: []string{"--session-store", "redis", "--redis-addr", "cache:6380", "--redis-db", "2", "--session-ttl", "2h"},
			check: func(t *testing.T, c *Config) {
				if c.SessionStore != "redis" || c.RedisAddr != "cache:6380" || c.RedisDB != 2 {
					t.Errorf("redis config = %s %s %d", c.SessionStore, c.RedisAddr, c.RedisDB)
				}
				if c.SessionTTL != 2*time.Hour {
					t.Errorf("SessionTTL = %v, want 2h", c.SessionTTL)
				}
			},
		},
		{
			name: "database with seed",
			args: []string{"--database-dsn", "host=db dbname=chat", "--places-seed", "places.yaml", "--default-place", "Bangkok"},
			check: func(t *testing.T, c *Config) {
				if c.DatabaseDSN != "host=db dbname=chat" || c.PlacesSeed != "places.yaml" {
					t.Errorf("database config = %q %q", c.DatabaseDSN, c.PlacesSeed)
				}
				if c.DefaultPlace != "Bangkok" {
					t.Errorf("DefaultPlace = %s", c.DefaultPlace)
				}
			},
		},
		{
			name: "secure cookies and debug",
			args: []string{"--secure-cookies", "--log-level", "debug"},
			check: func(t *testing.T, c *Config) {
				if !c.SecureCookies {
					t.Error("SecureCookies = false, want true")
				}
				if c.LogLevel != "debug" {
					t.Errorf("LogLevel = %s", c.LogLevel)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse(tt.args, &bytes.Buffer{})
			if err != nil {
				t.Fatalf("Parse() error = %v, want nil", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"port too low", []string{"--port", "100"}, ErrInvalidPort},
		{"port too high", []string{"--port", "70000"}, ErrInvalidPort},
		{"ollama url without scheme", []string{"--ollama-url", "localhost:11434"}, ErrInvalidOllamaURL},
		{"ollama url with ftp scheme", []string{"--ollama-url", "ftp://localhost"}, ErrInvalidOllamaURL},
		{"empty model", []string{"--ollama-model", " "}, ErrMissingModel},
		{"invalid context mode", []string{"--context-mode", "summary"}, ErrInvalidContextMode},
		{"seed without database", []string{"--places-seed", "places.yaml"}, ErrSeedWithoutDatabase},
		{"invalid session store", []string{"--session-store", "file"}, ErrInvalidSessionStore},
		{"redis without address", []string{"--session-store", "redis", "--redis-addr", ""}, ErrMissingRedisAddr},
		{"redis db too high", []string{"--redis-db", "16"}, ErrInvalidRedisDB},
		{"zero session ttl", []string{"--session-ttl", "0s"}, ErrInvalidSessionTTL},
		{"invalid log level", []string{"--log-level", "trace"}, ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.args, &bytes.Buffer{})
			if err != tt.wantErr {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParse_Environment(t *testing.T) {
	t.Setenv("THAICHAT_OLLAMA_MODEL", "llama3.2:3b")
	t.Setenv("THAICHAT_PORT", "9000")
	t.Setenv("THAICHAT_SESSION_STORE", "redis")
	t.Setenv("THAICHAT_SECURE_COOKIES", "true")

	cfg, err := Parse([]string{"--port", "8000"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Parse() error = %v, want nil", err)
	}

	if cfg.OllamaModel != "llama3.2:3b" {
		t.Errorf("OllamaModel = %s, want value from environment", cfg.OllamaModel)
	}
	if cfg.Port != 8000 {
		t.Errorf("Port = %d, want flag to take precedence over environment", cfg.Port)
	}
	if cfg.SessionStore != "redis" {
		t.Errorf("SessionStore = %s, want redis", cfg.SessionStore)
	}
	if !cfg.SecureCookies {
		t.Error("SecureCookies = false, want true from environment")
	}
}

func TestParse_EnvironmentInvalid(t *testing.T) {
	t.Setenv("THAICHAT_REDIS_DB", "one")

	_, err := Parse([]string{}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("Parse() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "THAICHAT_REDIS_DB") {
		t.Errorf("error %q does not name the variable", err)
	}
}

func TestParse_EnvironmentValidated(t *testing.T) {
	t.Setenv("THAICHAT_LOG_LEVEL", "verbose")

	_, err := Parse([]string{}, &bytes.Buffer{})
	if !errors.Is(err, ErrInvalidLogLevel) {
		t.Errorf("Parse() error = %v, want %v", err, ErrInvalidLogLevel)
	}
}

func TestParse_Help(t *testing.T) {
	output := &bytes.Buffer{}
	cfg, err := Parse([]string{"--help"}, output)
	if !errors.Is(err, ErrShowHelp) {
		t.Errorf("Parse() error = %v, want %v", err, ErrShowHelp)
	}
	if cfg != nil {
		t.Errorf("Parse() cfg = %v, want nil", cfg)
	}
	if !strings.Contains(output.String(), "USAGE:") {
		t.Error("help output missing USAGE section")
	}
}

func TestParse_Version(t *testing.T) {
	output := &bytes.Buffer{}
	_, err := Parse([]string{"--version"}, output)
	if !errors.Is(err, ErrShowVersion) {
		t.Errorf("Parse() error = %v, want %v", err, ErrShowVersion)
	}
	if !strings.Contains(output.String(), Version) {
		t.Errorf("version output = %q, want it to contain %s", output.String(), Version)
	}
}

func TestParse_UnknownFlag(t *testing.T) {
	_, err := Parse([]string{"--steps", "4"}, &bytes.Buffer{})
	if err == nil {
		t.Error("Parse() error = nil, want error for unknown flag")
	}
}

func TestPrintHelp(t *testing.T) {
	output := &bytes.Buffer{}
	printHelp(output)

	helpText := output.String()
	for _, want := range []string{
		"thaichat",
		"--port",
		"--ollama-url",
		"--ollama-model",
		"--context-mode",
		"--database-dsn",
		"--session-store",
		"--log-level",
		"THAICHAT",
		defaultOllamaModel,
	} {
		if !strings.Contains(helpText, want) {
			t.Errorf("help text missing %q", want)
		}
	}
}

func TestEnvName(t *testing.T) {
	tests := []struct {
		flag string
		want string
	}{
		{"port", "THAICHAT_PORT"},
		{"ollama-model", "THAICHAT_OLLAMA_MODEL"},
		{"redis-db", "THAICHAT_REDIS_DB"},
	}

	for _, tt := range tests {
		if got := EnvName(tt.flag); got != tt.want {
			t.Errorf("EnvName(%q) = %q, want %q", tt.flag, got, tt.want)
		}
	}
}

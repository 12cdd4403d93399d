// Package config provides configuration management for the thaichat application.
//
// Configuration is parsed from CLI flags with sensible defaults. Any flag
// not given on the command line may instead be set through an environment
// variable named THAICHAT_ followed by the flag name in upper case with
// dashes replaced by underscores, for example THAICHAT_OLLAMA_MODEL.
// The Config struct is passed to components during initialization.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// Version is the thaichat application version
	Version = "0.2.0"

	// EnvPrefix prefixes every environment variable read by Parse
	EnvPrefix = "THAICHAT"

	// Default values for CLI flags
	defaultPort         = 5000
	defaultOllamaURL    = "http://localhost:11434"
	defaultOllamaModel  = "llama3:latest"
	defaultContextMode  = "full"
	defaultDefaultPlace = "Thailand"
	defaultSessionStore = "memory"
	defaultRedisAddr    = "localhost:6379"
	defaultRedisDB      = 0
	defaultSessionTTL   = 24 * time.Hour
	defaultLogLevel     = "info"

	// Validation constraints
	minPort    = 1024
	maxPort    = 65535
	minRedisDB = 0
	maxRedisDB = 15
)

var (
	// ErrInvalidPort is returned when port is out of valid range
	ErrInvalidPort = errors.New("port must be between 1024 and 65535")
	// ErrInvalidOllamaURL is returned when the ollama URL is not an http(s) URL with a host
	ErrInvalidOllamaURL = errors.New("ollama-url must be an http or https URL with a host")
	// ErrMissingModel is returned when no ollama model is configured
	ErrMissingModel = errors.New("ollama-model must not be empty")
	// ErrInvalidContextMode is returned when context mode is not recognized
	ErrInvalidContextMode = errors.New("context-mode must be one of: full, message")
	// ErrInvalidSessionStore is returned when session store is not recognized
	ErrInvalidSessionStore = errors.New("session-store must be one of: memory, redis")
	// ErrMissingRedisAddr is returned when the redis store is selected without an address
	ErrMissingRedisAddr = errors.New("redis-addr is required when session-store is redis")
	// ErrInvalidRedisDB is returned when the redis database index is out of range
	ErrInvalidRedisDB = errors.New("redis-db must be between 0 and 15")
	// ErrInvalidSessionTTL is returned when the session lifetime is not positive
	ErrInvalidSessionTTL = errors.New("session-ttl must be positive")
	// ErrSeedWithoutDatabase is returned when a places seed is given without a database
	ErrSeedWithoutDatabase = errors.New("places-seed requires database-dsn")
	// ErrInvalidLogLevel is returned when log level is not recognized
	ErrInvalidLogLevel = errors.New("log-level must be one of: debug, info, warn, error")
	// ErrShowHelp is returned when --help flag is requested
	ErrShowHelp = errors.New("help requested")
	// ErrShowVersion is returned when --version flag is requested
	ErrShowVersion = errors.New("version requested")
)

// Config holds all configuration values for the thaichat application.
// Values are populated from CLI flags and the environment with defaults applied.
type Config struct {
	// Server configuration
	Port          int
	SecureCookies bool

	// LLM configuration
	OllamaURL   string
	OllamaModel string
	ContextMode string

	// Image lookup configuration
	DatabaseDSN  string
	PlacesSeed   string
	DefaultPlace string

	// Session storage configuration
	SessionStore  string
	SessionTTL    time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Logging configuration
	LogLevel string

	// Internal flags
	showHelp    bool
	showVersion bool
}

// Parse parses CLI flags into a Config struct.
// It returns the parsed Config or an error if validation fails.
// If --help or --version is requested, it prints the output and returns
// ErrShowHelp or ErrShowVersion.
func Parse(args []string, output io.Writer) (*Config, error) {
	c := &Config{}

	fs := flag.NewFlagSet("thaichat", flag.ContinueOnError)
	fs.SetOutput(output)

	// Server flags
	fs.IntVar(&c.Port, "port", defaultPort, "HTTP server port")
	fs.BoolVar(&c.SecureCookies, "secure-cookies", false, "Mark the session cookie Secure (use behind HTTPS)")

	// LLM flags
	fs.StringVar(&c.OllamaURL, "ollama-url", defaultOllamaURL, "Ollama API endpoint URL")
	fs.StringVar(&c.OllamaModel, "ollama-model", defaultOllamaModel, "Ollama model name")
	fs.StringVar(&c.ContextMode, "context-mode", defaultContextMode, "Model context: full history or current message only")

	// Image lookup flags
	fs.StringVar(&c.DatabaseDSN, "database-dsn", "", "PostgreSQL DSN for place images (empty disables pictures)")
	fs.StringVar(&c.PlacesSeed, "places-seed", "", "YAML file of place images loaded at startup")
	fs.StringVar(&c.DefaultPlace, "default-place", defaultDefaultPlace, "Place shown when a picture request names none")

	// Session flags
	fs.StringVar(&c.SessionStore, "session-store", defaultSessionStore, "Session store (memory, redis)")
	fs.DurationVar(&c.SessionTTL, "session-ttl", defaultSessionTTL, "Session cookie and redis key lifetime")
	fs.StringVar(&c.RedisAddr, "redis-addr", defaultRedisAddr, "Redis address for the redis session store")
	fs.StringVar(&c.RedisPassword, "redis-password", "", "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", defaultRedisDB, "Redis database index")

	// Logging flags
	fs.StringVar(&c.LogLevel, "log-level", defaultLogLevel, "Log level (debug, info, warn, error)")

	// Special flags
	fs.BoolVar(&c.showHelp, "help", false, "Show help message")
	fs.BoolVar(&c.showVersion, "version", false, "Show version information")

	// Parse flags
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Handle --help
	if c.showHelp {
		printHelp(output)
		return nil, ErrShowHelp
	}

	// Handle --version
	if c.showVersion {
		printVersion(output)
		return nil, ErrShowVersion
	}

	// Fill flags not given on the command line from the environment
	if err := applyEnv(fs); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// applyEnv sets every flag that was not passed explicitly from its
// THAICHAT_* environment variable, when one is present.
func applyEnv(fs *flag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	var err error
	fs.VisitAll(func(f *flag.Flag) {
		if err != nil || explicit[f.Name] || f.Name == "help" || f.Name == "version" {
			return
		}
		if bindErr := v.BindEnv(f.Name, EnvName(f.Name)); bindErr != nil {
			err = bindErr
			return
		}
		if !v.IsSet(f.Name) {
			return
		}
		if setErr := fs.Set(f.Name, v.GetString(f.Name)); setErr != nil {
			err = fmt.Errorf("invalid value for %s: %w", EnvName(f.Name), setErr)
		}
	})
	return err
}

// EnvName returns the environment variable read for a flag.
func EnvName(flagName string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// validate checks that all configuration values are within valid ranges
func (c *Config) validate() error {
	// Validate port
	if c.Port < minPort || c.Port > maxPort {
		return ErrInvalidPort
	}

	// Validate ollama endpoint
	u, err := url.Parse(c.OllamaURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidOllamaURL
	}
	if strings.TrimSpace(c.OllamaModel) == "" {
		return ErrMissingModel
	}

	// Validate context mode
	switch c.ContextMode {
	case "full", "message":
		// Valid
	default:
		return ErrInvalidContextMode
	}

	if c.PlacesSeed != "" && c.DatabaseDSN == "" {
		return ErrSeedWithoutDatabase
	}

	// Validate session store
	switch c.SessionStore {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return ErrMissingRedisAddr
		}
	default:
		return ErrInvalidSessionStore
	}
	if c.RedisDB < minRedisDB || c.RedisDB > maxRedisDB {
		return ErrInvalidRedisDB
	}
	if c.SessionTTL <= 0 {
		return ErrInvalidSessionTTL
	}

	// Validate log level
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		// Valid
	default:
		return ErrInvalidLogLevel
	}

	return nil
}

// printHelp prints usage information
func printHelp(w io.Writer) {
	fmt.Fprintf(w, `thaichat - Thailand travel chatbot

USAGE:
    thaichat [FLAGS]

FLAGS:
    --port <PORT>              HTTP server port (default: %d)
    --secure-cookies           Mark the session cookie Secure
    --ollama-url <URL>         Ollama API endpoint (default: %s)
    --ollama-model <MODEL>     Ollama model name (default: %s)
    --context-mode <MODE>      full or message (default: %s)
    --database-dsn <DSN>       PostgreSQL DSN for place images (default: disabled)
    --places-seed <FILE>       YAML file of place images to load at startup
    --default-place <NAME>     Place shown when none is named (default: %s)
    --session-store <STORE>    memory or redis (default: %s)
    --session-ttl <DURATION>   Session lifetime (default: %s)
    --redis-addr <ADDR>        Redis address (default: %s)
    --redis-password <PASS>    Redis password
    --redis-db <N>             Redis database index (default: %d)
    --log-level <LEVEL>        Log level: debug, info, warn, error (default: %s)
    --help                     Show this help message
    --version                  Show version information

ENVIRONMENT:
    Every flag can also be set as %s_<FLAG>, upper case with dashes
    replaced by underscores. Command line flags take precedence.

EXAMPLES:
    # Start with defaults
    thaichat

    # Pictures from PostgreSQL, sessions in redis
    thaichat --database-dsn "host=localhost user=chat dbname=chat" \
        --places-seed configs/places.yaml --session-store redis

    # Use a different ollama model
    THAICHAT_OLLAMA_MODEL=llama3.2:3b thaichat

REQUIREMENTS:
    - ollama must be running (default: http://localhost:11434)
`,
		defaultPort, defaultOllamaURL, defaultOllamaModel, defaultContextMode,
		defaultDefaultPlace, defaultSessionStore, defaultSessionTTL, defaultRedisAddr,
		defaultRedisDB, defaultLogLevel, EnvPrefix)
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "thaichat %s\n", Version)
}

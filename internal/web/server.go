// Package web serves the chat UI and carries conversation turns between the
// browser and the chat service.
//
// A browser talks to the server in one of two ways. The page opens a
// websocket on /ws and exchanges send_message and receive_message events;
// while the socket is down the chat form falls back to a plain POST of /,
// which runs the turn and renders the page with the answer. Both paths share
// the session cookie, rate limit and message checks.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Napakamol/ThailandChatbot/internal/chat"
	"github.com/Napakamol/ThailandChatbot/internal/conversation"
	"github.com/Napakamol/ThailandChatbot/internal/logging"
)

//go:embed templates/* static/*
var embeddedFS embed.FS

const (
	// DefaultAddr is the default address the server listens on.
	DefaultAddr = "localhost:5000"

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 15 * time.Second

	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout = 60 * time.Second

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 30 * time.Second

	// MaxRequestBodySize is the maximum size of POST request bodies (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxMessageLength is the maximum length of a chat message (10KB).
	MaxMessageLength = 10 * 1024

	// QueryField is the form field holding the user's message.
	QueryField = "query-input"
)

// refusal is an error whose text is shown to the user as is.
type refusal string

func (r refusal) Error() string { return string(r) }

// Reasons a turn is refused before it starts.
const (
	errEmptyMessage   refusal = "Message cannot be empty."
	errMessageTooLong refusal = "Message is too long. Please shorten your message."
	errRateLimited    refusal = "Too many requests. Please wait a moment."
)

// TurnHandler runs one conversation turn.
type TurnHandler interface {
	HandleMessage(ctx context.Context, sess *conversation.Session, message string) chat.Reply
}

// Options configures a Server.
type Options struct {
	// Addr is the listen address. Empty means DefaultAddr.
	Addr string

	// SessionTTL is the session cookie lifetime.
	SessionTTL time.Duration

	// SecureCookies marks the session cookie HTTPS-only.
	SecureCookies bool

	// ChatRequestsPerMinute limits turns per session. Zero means
	// MaxChatRequestsPerMinute.
	ChatRequestsPerMinute int

	Logger *logging.Logger
}

// Server provides HTTP serving for the chat UI.
type Server struct {
	addr      string
	server    *http.Server
	handler   http.Handler
	templates *template.Template
	logger    *logging.Logger

	turns       TurnHandler
	store       conversation.Store
	rateLimiter *rateLimiter
	upgrader    websocket.Upgrader

	mu      sync.Mutex
	sockets map[*websocket.Conn]context.CancelFunc
}

// pageData is rendered into index.html.
type pageData struct {
	QueryInput string
	Output     template.HTML
	Timestamp  string
	Error      string
}

// NewServer creates a Server that runs turns with turns and keeps sessions
// in store. Returns an error if templates cannot be parsed.
func NewServer(turns TurnHandler, store conversation.Store, opts Options) (*Server, error) {
	if turns == nil {
		return nil, errors.New("turn handler is required")
	}
	if store == nil {
		return nil, errors.New("session store is required")
	}
	addr := opts.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	perMinute := opts.ChatRequestsPerMinute
	if perMinute <= 0 {
		perMinute = MaxChatRequestsPerMinute
	}

	tmpl, err := template.ParseFS(embeddedFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		addr:        addr,
		templates:   tmpl,
		logger:      opts.Logger.With("web"),
		turns:       turns,
		store:       store,
		rateLimiter: newRateLimiter(perMinute),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		sockets: make(map[*websocket.Conn]context.CancelFunc),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.handler = SessionMiddleware(mux, CookieOptions{
		MaxAge: opts.SessionTTL,
		Secure: opts.SecureCookies,
	})

	// No WriteTimeout: a turn waits on the model for as long as it takes.
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.handler,
		ReadTimeout: ReadTimeout,
		IdleTimeout: IdleTimeout,
	}
	s.server.RegisterOnShutdown(s.closeSockets)

	return s, nil
}

// Handler returns the root handler, session middleware included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /{$}", s.handleQuery)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /static/", http.FileServer(http.FS(embeddedFS)))
}

// ListenAndServe starts the HTTP server and blocks until the context is cancelled.
// Returns an error if the server fails to start or encounters a non-graceful shutdown error.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.rateLimiter.startCleanup(ctx)

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("Starting web server on http://%s", s.addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down web server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		s.logger.Info("Web server stopped")
		return nil

	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// handleIndex serves the empty chat page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, pageData{})
}

// handleQuery runs a turn submitted through the chat form and renders the
// page with the answer.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	sessionID := GetSessionID(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	if err := r.ParseForm(); err != nil {
		s.logger.Warn("Failed to parse form for session %s: %v", sessionID, err)
		s.render(w, http.StatusBadRequest, pageData{Error: "Failed to read your message."})
		return
	}

	query := r.FormValue(QueryField)
	reply, err := s.runTurn(r.Context(), sessionID, query)
	if err != nil {
		s.render(w, statusFor(err), pageData{QueryInput: query, Error: err.Error()})
		return
	}

	s.render(w, http.StatusOK, pageData{
		QueryInput: query,
		// The chat service returns formatter output, which is HTML by contract.
		Output:    template.HTML(reply.Message),
		Timestamp: reply.Timestamp,
	})
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// runTurn checks a message and runs it as one turn of the session.
// The returned error is safe to show to the user.
func (s *Server) runTurn(ctx context.Context, sessionID, message string) (chat.Reply, error) {
	if strings.TrimSpace(message) == "" {
		return chat.Reply{}, errEmptyMessage
	}
	if len(message) > MaxMessageLength {
		s.logger.Warn("Message too long for session %s: %d bytes", sessionID, len(message))
		return chat.Reply{}, errMessageTooLong
	}
	if !s.rateLimiter.allowChat(sessionID) {
		s.logger.Warn("Rate limit exceeded for session %s", sessionID)
		return chat.Reply{}, errRateLimited
	}

	sess, err := s.store.Load(ctx, sessionID)
	if err != nil {
		// Answer from a blank history rather than refusing the turn. The
		// stand-in is never saved, so the stored history survives.
		s.logger.Error("Failed to load session %s: %v", sessionID, err)
		sess = conversation.NewTransientSession(sessionID)
	}

	return s.turns.HandleMessage(ctx, sess, message), nil
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		s.logger.Error("Failed to execute template: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errMessageTooLong):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}

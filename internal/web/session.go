package web

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "thaichat_session"

	// DefaultSessionExpiry is how long a session cookie lasts when no
	// lifetime is configured.
	DefaultSessionExpiry = 24 * time.Hour
)

// contextKey is an unexported type for context keys to avoid collisions.
type contextKey int

const (
	sessionIDKey contextKey = iota
)

// CookieOptions controls the session cookie.
type CookieOptions struct {
	// MaxAge is the cookie lifetime. Zero means DefaultSessionExpiry.
	MaxAge time.Duration

	// Secure marks the cookie HTTPS-only.
	Secure bool
}

// GenerateSessionID creates a new random session ID.
func GenerateSessionID() string {
	return uuid.NewString()
}

// GetSessionID retrieves the session ID from the request context.
// Returns an empty string if no session ID exists in the context.
func GetSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(sessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}

// setSessionID stores the session ID in the context.
func setSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// ValidateSessionID reports whether sessionID is a UUID in canonical
// 36-character form.
func ValidateSessionID(sessionID string) bool {
	if len(sessionID) != 36 {
		return false
	}
	_, err := uuid.Parse(sessionID)
	return err == nil
}

// SessionMiddleware ensures every request has a session ID.
// If the request has a valid session cookie, it uses that ID.
// Otherwise, it generates a new ID and sets a cookie.
// The session ID is stored in the request context for handlers to access.
func SessionMiddleware(next http.Handler, opts CookieOptions) http.Handler {
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultSessionExpiry
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sessionID string

		if cookie, err := r.Cookie(SessionCookieName); err == nil && ValidateSessionID(cookie.Value) {
			sessionID = cookie.Value
		}

		if sessionID == "" {
			sessionID = GenerateSessionID()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    sessionID,
				Path:     "/",
				MaxAge:   int(maxAge.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Secure:   opts.Secure,
			})
		}

		next.ServeHTTP(w, r.WithContext(setSessionID(r.Context(), sessionID)))
	})
}

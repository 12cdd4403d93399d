package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/Napakamol/ThailandChatbot/internal/logging"
)

const (
	// SessionInactivityTimeout is how long a session can be inactive before cleanup.
	SessionInactivityTimeout = 24 * time.Hour

	// SessionCleanupInterval is how often to run cleanup.
	SessionCleanupInterval = 1 * time.Hour

	// MaxSessions is the maximum number of sessions before LRU eviction.
	MaxSessions = 1000
)

// Store keeps sessions between turns.
type Store interface {
	// Load returns a copy of the session with the given id, or a new empty
	// session when none is stored.
	Load(ctx context.Context, id string) (*Session, error)

	// Save replaces the stored session with a copy of sess. Transient
	// sessions are not written.
	Save(ctx context.Context, sess *Session) error

	// Delete removes the session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
}

// sessionInfo tracks a session and its last activity time.
type sessionInfo struct {
	session      *Session
	lastActivity time.Time
}

// MemoryStore keeps sessions in process memory.
//
// MemoryStore is safe for concurrent access from multiple goroutines.
// Sessions are dropped after SessionInactivityTimeout of inactivity by a
// background goroutine. If the session count reaches MaxSessions, the least
// recently used session is evicted to make room.
type MemoryStore struct {
	mu            sync.RWMutex
	sessions      map[string]*sessionInfo
	logger        *logging.Logger
	now           func() time.Time
	cancelCleanup context.CancelFunc
	cleanupDone   chan struct{}
}

// NewMemoryStore creates an empty store and starts its cleanup goroutine.
// Call Shutdown to stop it.
func NewMemoryStore(logger *logging.Logger) *MemoryStore {
	ctx, cancel := context.WithCancel(context.Background())

	s := &MemoryStore{
		sessions:      make(map[string]*sessionInfo),
		logger:        logger.With("sessions"),
		now:           time.Now,
		cancelCleanup: cancel,
		cleanupDone:   make(chan struct{}),
	}

	go s.cleanupLoop(ctx)

	return s
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if info, ok := s.sessions[id]; ok {
		info.lastActivity = now
		return info.session.clone(), nil
	}
	return NewSession(id), nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, sess *Session) error {
	if sess.Transient() {
		return nil
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if info, ok := s.sessions[sess.ID]; ok {
		info.session = sess.clone()
		info.lastActivity = now
		return nil
	}

	if len(s.sessions) >= MaxSessions {
		s.evictLRU()
	}

	s.sessions[sess.ID] = &sessionInfo{
		session:      sess.clone(),
		lastActivity: now,
	}
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Count returns the number of stored sessions.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Shutdown stops the cleanup goroutine and waits for it to finish.
func (s *MemoryStore) Shutdown() {
	if s.cancelCleanup != nil {
		s.cancelCleanup()
		<-s.cleanupDone
	}
}

// cleanupLoop runs periodically to remove inactive sessions.
func (s *MemoryStore) cleanupLoop(ctx context.Context) {
	defer close(s.cleanupDone)

	ticker := time.NewTicker(SessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupInactive()
		}
	}
}

// cleanupInactive removes sessions that have been inactive for too long.
func (s *MemoryStore) cleanupInactive() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0

	for id, info := range s.sessions {
		if now.Sub(info.lastActivity) > SessionInactivityTimeout {
			delete(s.sessions, id)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("Cleaned up %d inactive sessions (total: %d)", removed, len(s.sessions))
	}
}

// evictLRU removes the least recently used session.
// Must be called with s.mu held for writing.
func (s *MemoryStore) evictLRU() {
	var oldestID string
	var oldestTime time.Time

	for id, info := range s.sessions {
		if oldestID == "" || info.lastActivity.Before(oldestTime) {
			oldestID = id
			oldestTime = info.lastActivity
		}
	}

	if oldestID != "" {
		delete(s.sessions, oldestID)
		s.logger.Info("Evicted LRU session %s (was inactive for %v)", oldestID, s.now().Sub(oldestTime))
	}
}

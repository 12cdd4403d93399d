// Package conversation holds per-session chat history and the stores that
// keep it between turns.
//
// # History
//
// A Session owns an ordered list of Turns. Insertion order is significant:
// it is replayed to the model as the conversation context on every turn.
// Turns are values and are never modified once appended. History grows
// without bound for the life of the session; there is no trimming.
//
// Turn roles follow the chat UI rather than the model API: the assistant's
// replies are recorded as RoleSystem turns, and BuildContext maps them to
// the model's assistant role.
//
// # Stores
//
// Store loads and saves whole sessions. Load returns a private copy, so a
// caller may mutate it freely and publish the result with Save. Two tabs
// sharing one browser session therefore never race on the same slice; the
// last Save wins.
//
//	store := NewMemoryStore(logger)
//	sess, _ := store.Load(ctx, sessionID)
//	sess.Append(NewTurn(RoleUser, "Where is Wat Arun?", time.Now()))
//	_ = store.Save(ctx, sess)
package conversation

import "time"

// TimestampLayout is the format of Turn.Timestamp and of reply timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// Role identifies who produced a turn.
type Role string

// Turn roles.
const (
	RoleUser   Role = "user"
	RoleSystem Role = "system"
)

// Turn is one message in a session's history.
type Turn struct {
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// NewTurn creates a turn stamped with now in TimestampLayout.
func NewTurn(role Role, text string, now time.Time) Turn {
	return Turn{
		Role:      role,
		Text:      text,
		Timestamp: FormatTimestamp(now),
	}
}

// FormatTimestamp formats t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Session is the conversation state of one browser session.
type Session struct {
	ID      string `json:"id"`
	History []Turn `json:"history"`

	transient bool
}

// NewSession creates an empty session.
func NewSession(id string) *Session {
	return &Session{ID: id}
}

// NewTransientSession creates an empty session that stores never write.
// It stands in for a session whose stored history could not be loaded, so
// saving it cannot replace that history.
func NewTransientSession(id string) *Session {
	return &Session{ID: id, transient: true}
}

// Transient reports whether stores skip saving s.
func (s *Session) Transient() bool {
	return s.transient
}

// Append adds a turn to the end of the history.
func (s *Session) Append(turn Turn) {
	s.History = append(s.History, turn)
}

// Len returns the number of turns in the history.
func (s *Session) Len() int {
	return len(s.History)
}

// Truncate drops every turn after the first n.
// It is used to undo turns appended by a failed exchange.
func (s *Session) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(s.History) {
		s.History = s.History[:n]
	}
}

// Turns returns a copy of the history.
func (s *Session) Turns() []Turn {
	if len(s.History) == 0 {
		return nil
	}
	turns := make([]Turn, len(s.History))
	copy(turns, s.History)
	return turns
}

// clone returns a deep copy of s.
func (s *Session) clone() *Session {
	return &Session{ID: s.ID, History: s.Turns()}
}

// Package chat runs one conversation turn: it records the user's message,
// asks the model for a reply, optionally attaches a picture of the place
// being discussed, converts the reply to HTML and saves the session.
package chat

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/Napakamol/ThailandChatbot/internal/conversation"
	"github.com/Napakamol/ThailandChatbot/internal/format"
	"github.com/Napakamol/ThailandChatbot/internal/gallery"
	"github.com/Napakamol/ThailandChatbot/internal/logging"
	"github.com/Napakamol/ThailandChatbot/internal/ollama"
)

// ErrorMessage is shown to the user whenever a turn fails.
const ErrorMessage = "Sorry, an error occurred while processing your request."

// ImageNotFoundMessage is appended to a reply when a requested picture
// cannot be found.
const ImageNotFoundMessage = "Sorry, I couldn't find a picture of that place."

// DefaultPlace is looked up when a picture request names no place.
const DefaultPlace = "Thailand"

// DefaultTriggers are the phrases that make a message a picture request.
var DefaultTriggers = []string{"show me a picture", "picture", "image", "photo"}

var (
	// ErrModelInvocation is returned when the model call fails.
	ErrModelInvocation = errors.New("model invocation failed")

	// ErrFormatting is returned when converting the reply to HTML panics.
	ErrFormatting = errors.New("formatting failed")

	// ErrPersist is returned when the session cannot be saved.
	ErrPersist = errors.New("saving session failed")
)

// ContextMode selects what the model sees on each turn.
type ContextMode string

const (
	// ModeFull sends the system prompt and the whole session history.
	ModeFull ContextMode = "full"

	// ModeMessage sends only the current message.
	ModeMessage ContextMode = "message"
)

// ParseContextMode validates a context mode name. The empty string is ModeFull.
func ParseContextMode(s string) (ContextMode, error) {
	switch ContextMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeFull:
		return ModeFull, nil
	case ModeMessage:
		return ModeMessage, nil
	}
	return "", fmt.Errorf("unknown context mode %q (want %q or %q)", s, ModeFull, ModeMessage)
}

// Model is the language model used to answer messages.
type Model interface {
	Chat(ctx context.Context, messages []ollama.Message) (string, error)
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Reply is the result of one turn.
type Reply struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Options configures a Service. Zero values select the defaults.
type Options struct {
	SystemPrompt string
	DefaultPlace string
	Mode         ContextMode
	Triggers     []string
	Now          func() time.Time
	Logger       *logging.Logger
}

// Service handles conversation turns.
type Service struct {
	model    Model
	images   gallery.Lookup
	store    conversation.Store
	system   string
	place    string
	mode     ContextMode
	triggers []string
	now      func() time.Time
	logger   *logging.Logger
}

// NewService creates a Service. images may be nil, in which case every
// picture request gets the not-found message.
func NewService(model Model, images gallery.Lookup, store conversation.Store, opts Options) *Service {
	if images == nil {
		images = gallery.Disabled{}
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = ollama.SystemPrompt
	}
	if opts.DefaultPlace == "" {
		opts.DefaultPlace = DefaultPlace
	}
	if opts.Mode == "" {
		opts.Mode = ModeFull
	}
	if len(opts.Triggers) == 0 {
		opts.Triggers = DefaultTriggers
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	triggers := make([]string, len(opts.Triggers))
	for i, t := range opts.Triggers {
		triggers[i] = strings.ToLower(t)
	}

	return &Service{
		model:    model,
		images:   images,
		store:    store,
		system:   opts.SystemPrompt,
		place:    opts.DefaultPlace,
		mode:     opts.Mode,
		triggers: triggers,
		now:      opts.Now,
		logger:   opts.Logger.With("chat"),
	}
}

// HandleMessage runs one turn for sess and returns the HTML reply.
//
// The user's message is always appended to the history. On success the
// model's reply is appended as a system turn and the session is saved, so
// the history grows by two. On failure the user gets ErrorMessage, no
// system turn is kept and the history grows by one.
func (s *Service) HandleMessage(ctx context.Context, sess *conversation.Session, message string) Reply {
	sess.Append(conversation.NewTurn(conversation.RoleUser, message, s.now()))

	output, err := s.respond(ctx, sess, message)
	if err != nil {
		s.logger.Error("Turn failed for session %s: %v", sess.ID, err)
		// Keep the user's turn even though the exchange failed.
		if saveErr := s.store.Save(ctx, sess); saveErr != nil {
			s.logger.Warn("Failed to save session %s after error: %v", sess.ID, saveErr)
		}
		output = ErrorMessage
	}

	return Reply{
		Message:   output,
		Timestamp: conversation.FormatTimestamp(s.now()),
	}
}

func (s *Service) respond(ctx context.Context, sess *conversation.Session, message string) (string, error) {
	reply, err := s.invoke(ctx, sess, message)
	if err != nil {
		return "", err
	}

	if s.wantsPicture(message) {
		reply += s.enrich(ctx, PlaceFromMessage(message, s.triggers, s.place))
	}

	before := sess.Len()
	sess.Append(conversation.NewTurn(conversation.RoleSystem, reply, s.now()))

	output, err := safeFormat(reply)
	if err != nil {
		sess.Truncate(before)
		return "", err
	}

	if err := s.store.Save(ctx, sess); err != nil {
		sess.Truncate(before)
		return "", fmt.Errorf("%w: %v", ErrPersist, err)
	}

	return output, nil
}

func (s *Service) invoke(ctx context.Context, sess *conversation.Session, message string) (string, error) {
	var (
		reply string
		err   error
	)
	switch s.mode {
	case ModeMessage:
		reply, err = s.model.Generate(ctx, s.system, message)
	default:
		reply, err = s.model.Chat(ctx, conversation.BuildContext(s.system, sess.History))
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrModelInvocation, err)
	}
	return reply, nil
}

// enrich returns the HTML fragment appended to a picture request's reply.
// Lookup failures, panics included, are logged and produce the not-found
// fragment.
func (s *Service) enrich(ctx context.Context, place string) string {
	img, err := s.lookup(ctx, place)
	if err != nil {
		s.logger.Warn("Image lookup for %q failed: %v", place, err)
		return notFoundFragment()
	}
	if img == nil || img.URL == "" {
		s.logger.Debug("No image for %q", place)
		return notFoundFragment()
	}
	if strings.ContainsAny(img.URL, "\"<> ") {
		s.logger.Warn("Ignoring malformed image URL for %q", place)
		return notFoundFragment()
	}
	return imageFragment(place, img)
}

// lookup queries the gallery, turning a panic into an error.
func (s *Service) lookup(ctx context.Context, place string) (img *gallery.ImageMetadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("lookup panicked: %v", r)
		}
	}()
	return s.images.Lookup(ctx, place)
}

func (s *Service) wantsPicture(message string) bool {
	lower := strings.ToLower(message)
	for _, t := range s.triggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

func imageFragment(place string, img *gallery.ImageMetadata) string {
	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(format.ImageTag(img.URL, place))
	if img.Description != "" {
		b.WriteString(`<p class="image-description">`)
		b.WriteString(html.EscapeString(img.Description))
		b.WriteString("</p>")
	}
	return b.String()
}

func notFoundFragment() string {
	return "\n\n<p>" + ImageNotFoundMessage + "</p>"
}

// safeFormat converts reply to HTML, turning a panic into ErrFormatting.
func safeFormat(reply string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrFormatting, r)
		}
	}()
	return formatReply(reply), nil
}

// formatReply is replaced in tests.
var formatReply = format.Format

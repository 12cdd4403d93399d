package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Websocket event names.
const (
	EventSendMessage    = "send_message"
	EventReceiveMessage = "receive_message"
	EventError          = "error"
)

const (
	// maxFrameSize bounds one client frame: a maximal message with room for
	// JSON escaping, plus the envelope.
	maxFrameSize = 2*MaxMessageLength + 1024

	// writeWait is the time allowed to write one frame.
	writeWait = 10 * time.Second
)

// Event is the envelope of every websocket frame.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendMessageData is the payload of a send_message event.
type SendMessageData struct {
	Message string `json:"message"`
}

// ErrorData is the payload of an error event.
type ErrorData struct {
	Message string `json:"message"`
}

// outgoing is a frame written to the client.
type outgoing struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// handleWebSocket upgrades the request and runs turns for each
// send_message event until the client goes away. Frames are handled one at a
// time, so turns on one connection never overlap.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := GetSessionID(r.Context())

	// The upgrade response is written by the websocket library, so a cookie
	// set by the session middleware has to be handed over explicitly.
	var header http.Header
	if cookies := w.Header().Values("Set-Cookie"); len(cookies) > 0 {
		header = http.Header{"Set-Cookie": cookies}
	}

	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed for session %s: %v", sessionID, err)
		return
	}
	conn.SetReadLimit(maxFrameSize)

	ctx, cancel := context.WithCancel(r.Context())
	s.trackSocket(conn, cancel)
	defer func() {
		s.untrackSocket(conn)
		cancel()
		conn.Close()
	}()

	s.logger.Debug("WebSocket connected for session %s", sessionID)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket read error for session %s: %v", sessionID, err)
			}
			return
		}

		if err := s.handleFrame(ctx, conn, sessionID, data); err != nil {
			s.logger.Debug("WebSocket write failed for session %s: %v", sessionID, err)
			return
		}
	}
}

// handleFrame processes one client frame and writes the response frame.
// Only write failures are returned.
func (s *Server) handleFrame(ctx context.Context, conn *websocket.Conn, sessionID string, data []byte) error {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return writeEvent(conn, EventError, ErrorData{Message: "Malformed message."})
	}
	if ev.Event != EventSendMessage {
		return writeEvent(conn, EventError, ErrorData{Message: "Unknown event."})
	}

	var payload SendMessageData
	if len(ev.Data) > 0 {
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return writeEvent(conn, EventError, ErrorData{Message: "Malformed message."})
		}
	}

	reply, err := s.runTurn(ctx, sessionID, payload.Message)
	if err != nil {
		var r refusal
		if errors.As(err, &r) {
			return writeEvent(conn, EventError, ErrorData{Message: r.Error()})
		}
		return writeEvent(conn, EventError, ErrorData{Message: "Something went wrong."})
	}

	return writeEvent(conn, EventReceiveMessage, reply)
}

func writeEvent(conn *websocket.Conn, event string, data interface{}) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(outgoing{Event: event, Data: data})
}

func (s *Server) trackSocket(conn *websocket.Conn, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets[conn] = cancel
}

func (s *Server) untrackSocket(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sockets, conn)
}

// closeSockets cancels in-flight turns and closes every open websocket.
// http.Server.Shutdown does not track hijacked connections.
func (s *Server) closeSockets() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn, cancel := range s.sockets {
		cancel()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
	}
	if n := len(s.sockets); n > 0 {
		s.logger.Info("Closed %d websocket connections", n)
	}
}

// openSockets returns the number of connected websockets.
func (s *Server) openSockets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sockets)
}

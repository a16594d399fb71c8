package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Session is one live engine connection. Send methods are safe for
// concurrent use; Events must be consumed by a single goroutine.
type Session struct {
	conn      *websocket.Conn
	sessionID string
	closeCh   chan struct{}
	eventsCh  chan eventOrError
	closeOnce sync.Once
	mu        sync.Mutex
}

type eventOrError struct {
	event *ServerEvent
	err   error
}

func (c *Client) connect(ctx context.Context, config *ConnectConfig) (*Session, error) {
	if c.config.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config == nil {
		config = &ConnectConfig{}
	}
	model := config.Model
	if model == "" {
		model = DefaultModel
	}

	url := fmt.Sprintf("%s?model=%s", c.config.url, model)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.config.apiKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.httpClient.Timeout,
	}
	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, &Error{
				Code:       "connection_failed",
				Message:    fmt.Sprintf("failed to connect: %v", err),
				HTTPStatus: resp.StatusCode,
			}
		}
		return nil, fmt.Errorf("realtime: failed to connect: %w", err)
	}

	s := &Session{
		conn:     conn,
		closeCh:  make(chan struct{}),
		eventsCh: make(chan eventOrError, 100),
	}
	go s.readLoop()
	return s, nil
}

func eventID() string {
	return "evt_" + uuid.New().String()[:12]
}

// UpdateSession sends the session-configuration message. Called once per
// call after session.created arrives.
func (s *Session) UpdateSession(config *SessionConfig) error {
	return s.sendEvent(map[string]any{
		"event_id": eventID(),
		"type":     EventTypeSessionUpdate,
		"session":  config,
	})
}

// AppendAudio appends raw audio to the engine's input buffer. The bytes
// must already be in the session's declared input format; they are base64
// encoded on the wire.
func (s *Session) AppendAudio(audio []byte) error {
	return s.sendEvent(map[string]any{
		"event_id": eventID(),
		"type":     EventTypeInputAudioBufferAppend,
		"audio":    base64.StdEncoding.EncodeToString(audio),
	})
}

// CreateResponse asks the engine to generate a response. Pass nil for
// defaults.
func (s *Session) CreateResponse(opts *ResponseCreateOptions) error {
	event := map[string]any{
		"event_id": eventID(),
		"type":     EventTypeResponseCreate,
	}
	if opts != nil && opts.Instructions != "" {
		event["response"] = map[string]any{
			"instructions": opts.Instructions,
		}
	}
	return s.sendEvent(event)
}

// CancelResponse cancels response generation. responseID tags the cancel so
// a stale cancellation cannot cancel a newer response; empty cancels
// whatever is in flight. Fire-and-forget: the engine's acknowledgment is
// not awaited.
func (s *Session) CancelResponse(responseID string) error {
	event := map[string]any{
		"event_id": eventID(),
		"type":     EventTypeResponseCancel,
	}
	if responseID != "" {
		event["response_id"] = responseID
	}
	return s.sendEvent(event)
}

// AddFunctionCallOutput returns a tool result to the engine.
func (s *Session) AddFunctionCallOutput(callID, output string) error {
	return s.sendEvent(map[string]any{
		"event_id": eventID(),
		"type":     EventTypeConversationItemCreate,
		"item": map[string]any{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  output,
		},
	})
}

// Events returns an iterator over server events. Iteration ends when the
// session closes or after the first error is yielded.
func (s *Session) Events() iter.Seq2[*ServerEvent, error] {
	return func(yield func(*ServerEvent, error) bool) {
		for {
			select {
			case <-s.closeCh:
				return
			case item, ok := <-s.eventsCh:
				if !ok {
					return
				}
				if !yield(item.event, item.err) {
					return
				}
				if item.err != nil {
					return
				}
			}
		}
	}
}

// SessionID returns the server-assigned session ID, or "" before
// session.created.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Close closes the connection. Safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		err = s.conn.Close()
	})
	return err
}

func (s *Session) sendEvent(event map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		if b, err := json.Marshal(event); err == nil {
			msg := string(b)
			if len(msg) > 500 {
				msg = msg[:500] + "..."
			}
			slog.Debug("realtime send", "event", msg)
		}
	}
	return s.conn.WriteJSON(event)
}

func (s *Session) readLoop() {
	defer close(s.eventsCh)

	for {
		select {
		case <-s.closeCh:
			return
		default:
		}

		_, message, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closeCh:
			case s.eventsCh <- eventOrError{err: fmt.Errorf("realtime: read: %w", err)}:
			}
			return
		}

		event, err := parseEvent(message)
		if err != nil {
			// Malformed frames are logged and skipped; the stream continues.
			slog.Warn("realtime: dropping malformed event", "err", err)
			continue
		}

		if event.Type == EventTypeSessionCreated && event.Session != nil {
			s.mu.Lock()
			s.sessionID = event.Session.ID
			s.mu.Unlock()
		}

		select {
		case <-s.closeCh:
			return
		case s.eventsCh <- eventOrError{event: event}:
		}
	}
}

func parseEvent(message []byte) (*ServerEvent, error) {
	var event ServerEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return nil, fmt.Errorf("parse event: %w", err)
	}
	event.Raw = message

	if event.Type == EventTypeResponseAudioDelta && event.Delta != "" {
		decoded, err := base64.StdEncoding.DecodeString(event.Delta)
		if err != nil {
			return nil, fmt.Errorf("decode audio delta: %w", err)
		}
		event.Audio = decoded
	}
	return &event, nil
}

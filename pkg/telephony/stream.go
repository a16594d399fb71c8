package telephony

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tommyd2377/voice-ai-system/pkg/audio/g711"
)

// Conn is the subset of *websocket.Conn the stream needs. Tests substitute
// an in-memory implementation.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

// Stream wraps one media-stream websocket. Read is single-consumer; the
// send methods are safe for concurrent use.
//
// Outbound audio is framed: SendMedia buffers any partial frame remainder
// and only ever puts whole frames on the wire, so the carrier never sees a
// short packet.
type Stream struct {
	conn Conn

	mu        sync.Mutex
	streamSid string
	remainder []byte
}

// NewStream wraps an accepted media-stream connection.
func NewStream(conn Conn) *Stream {
	return &Stream{conn: conn}
}

// Read returns the next well-formed message. Malformed frames are logged
// and skipped; the stream continues. On a start message the stream SID is
// captured for subsequent sends.
func (s *Stream) Read() (*Message, error) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("telephony: read: %w", err)
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("telephony: dropping malformed message", "err", err)
			continue
		}
		if msg.Event == EventStart && msg.Start != nil {
			s.mu.Lock()
			s.streamSid = msg.Start.StreamSid
			s.mu.Unlock()
		}
		return &msg, nil
	}
}

// StreamSid returns the stream SID captured from the start message.
func (s *Stream) StreamSid() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSid
}

// SendMedia queues companded audio for the caller. The audio is split into
// whole frames; a trailing partial frame is held back and prepended to the
// next call.
func (s *Stream) SendMedia(companded []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := append(s.remainder, companded...)
	frames := g711.Chunk(buf, g711.FrameBytes)
	sent := len(frames) * g711.FrameBytes
	s.remainder = append(s.remainder[:0], buf[sent:]...)

	for _, frame := range frames {
		msg := Message{
			Event:     EventMedia,
			StreamSid: s.streamSid,
			Media: &MediaPayload{
				Payload: base64.StdEncoding.EncodeToString(frame),
			},
		}
		if err := s.conn.WriteJSON(&msg); err != nil {
			return fmt.Errorf("telephony: send media: %w", err)
		}
	}
	return nil
}

// SendClear tells the carrier to discard all buffered outbound audio. Any
// locally buffered partial frame is discarded with it.
func (s *Stream) SendClear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remainder = s.remainder[:0]
	msg := Message{Event: EventClear, StreamSid: s.streamSid}
	if err := s.conn.WriteJSON(&msg); err != nil {
		return fmt.Errorf("telephony: send clear: %w", err)
	}
	return nil
}

// SendMark labels the current tail of the outbound queue.
func (s *Stream) SendMark(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := Message{
		Event:     EventMark,
		StreamSid: s.streamSid,
		Mark:      &MarkPayload{Name: name},
	}
	if err := s.conn.WriteJSON(&msg); err != nil {
		return fmt.Errorf("telephony: send mark: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (s *Stream) Close() error {
	return s.conn.Close()
}

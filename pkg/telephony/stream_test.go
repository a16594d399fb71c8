package telephony

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/tommyd2377/voice-ai-system/pkg/audio/g711"
)

// memConn is an in-memory Conn for tests.
type memConn struct {
	inbound []string
	sent    []Message
	closed  bool
}

func (c *memConn) ReadMessage() (int, []byte, error) {
	if len(c.inbound) == 0 {
		return 0, nil, errors.New("closed")
	}
	msg := c.inbound[0]
	c.inbound = c.inbound[1:]
	return 1, []byte(msg), nil
}

func (c *memConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *memConn) Close() error {
	c.closed = true
	return nil
}

func TestReadSkipsMalformed(t *testing.T) {
	conn := &memConn{inbound: []string{
		`{"event":"connected"}`,
		`garbage{{`,
		`{"event":"start","sequenceNumber":"1","start":{"streamSid":"MZ1","callSid":"CA1","customParameters":{"from":"+15550100"}}}`,
	}}
	s := NewStream(conn)

	msg, err := s.Read()
	if err != nil || msg.Event != EventConnected {
		t.Fatalf("first read = %+v, %v", msg, err)
	}

	msg, err = s.Read()
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if msg.Event != EventStart {
		t.Fatalf("second read event = %q, want start (malformed skipped)", msg.Event)
	}
	if got := msg.Start.CallerFrom(); got != "+15550100" {
		t.Errorf("CallerFrom = %q, want +15550100", got)
	}
	if s.StreamSid() != "MZ1" {
		t.Errorf("StreamSid = %q, want MZ1", s.StreamSid())
	}
}

func TestSendMediaFraming(t *testing.T) {
	conn := &memConn{}
	s := NewStream(conn)

	// 100 bytes: under one frame, nothing goes out yet.
	if err := s.SendMedia(make([]byte, 100)); err != nil {
		t.Fatalf("SendMedia: %v", err)
	}
	if len(conn.sent) != 0 {
		t.Fatalf("sent %d messages after 100 bytes, want 0", len(conn.sent))
	}

	// 100 more: 200 total, one frame out, 40 held back.
	if err := s.SendMedia(make([]byte, 100)); err != nil {
		t.Fatalf("SendMedia: %v", err)
	}
	if len(conn.sent) != 1 {
		t.Fatalf("sent %d messages after 200 bytes, want 1", len(conn.sent))
	}

	// 280 more: 40+280 = 320, two frames out.
	if err := s.SendMedia(make([]byte, 280)); err != nil {
		t.Fatalf("SendMedia: %v", err)
	}
	if len(conn.sent) != 3 {
		t.Fatalf("sent %d messages total, want 3", len(conn.sent))
	}

	for i, msg := range conn.sent {
		if msg.Event != EventMedia {
			t.Errorf("message %d event = %q", i, msg.Event)
		}
		payload, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
		if err != nil {
			t.Fatalf("message %d payload: %v", i, err)
		}
		if len(payload) != g711.FrameBytes {
			t.Errorf("message %d payload len = %d, want %d", i, len(payload), g711.FrameBytes)
		}
	}
}

func TestSendClearDropsRemainder(t *testing.T) {
	conn := &memConn{}
	s := NewStream(conn)

	if err := s.SendMedia(make([]byte, 100)); err != nil {
		t.Fatalf("SendMedia: %v", err)
	}
	if err := s.SendClear(); err != nil {
		t.Fatalf("SendClear: %v", err)
	}
	if len(conn.sent) != 1 || conn.sent[0].Event != EventClear {
		t.Fatalf("sent = %+v, want single clear", conn.sent)
	}

	// The held-back 100 bytes must not resurface after the clear.
	if err := s.SendMedia(make([]byte, g711.FrameBytes)); err != nil {
		t.Fatalf("SendMedia: %v", err)
	}
	if len(conn.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(conn.sent))
	}
	payload, _ := base64.StdEncoding.DecodeString(conn.sent[1].Media.Payload)
	if len(payload) != g711.FrameBytes {
		t.Errorf("post-clear payload len = %d, want exactly one frame", len(payload))
	}
}

func TestSendMark(t *testing.T) {
	conn := &memConn{}
	s := NewStream(conn)
	if err := s.SendMark("greeting-done"); err != nil {
		t.Fatalf("SendMark: %v", err)
	}
	if len(conn.sent) != 1 || conn.sent[0].Event != EventMark || conn.sent[0].Mark.Name != "greeting-done" {
		t.Fatalf("sent = %+v", conn.sent)
	}
}

package bridge

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tommyd2377/voice-ai-system/pkg/realtime"
	"github.com/tommyd2377/voice-ai-system/pkg/telephony"
)

// fakeEngine scripts the AI-engine side of a call and records every client
// action in order.
type fakeEngine struct {
	events chan *realtime.ServerEvent

	mu        sync.Mutex
	actions   []string
	closeOnce sync.Once
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{events: make(chan *realtime.ServerEvent, 64)}
}

func (f *fakeEngine) record(action string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
}

func (f *fakeEngine) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.actions...)
}

// waitFor blocks until an action with the given prefix has been recorded.
func (f *fakeEngine) waitFor(t *testing.T, prefix string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, a := range f.recorded() {
			if strings.HasPrefix(a, prefix) {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("action %q never recorded; have %v", prefix, f.recorded())
}

func (f *fakeEngine) UpdateSession(config *realtime.SessionConfig) error {
	f.record("session.update")
	return nil
}

func (f *fakeEngine) AppendAudio(audio []byte) error {
	f.record(fmt.Sprintf("append:%d", len(audio)))
	return nil
}

func (f *fakeEngine) CreateResponse(opts *realtime.ResponseCreateOptions) error {
	f.record("response.create")
	return nil
}

func (f *fakeEngine) CancelResponse(responseID string) error {
	f.record("cancel:" + responseID)
	return nil
}

func (f *fakeEngine) AddFunctionCallOutput(callID, output string) error {
	f.record("output:" + callID + ":" + output)
	return nil
}

func (f *fakeEngine) Events() iter.Seq2[*realtime.ServerEvent, error] {
	return func(yield func(*realtime.ServerEvent, error) bool) {
		for event := range f.events {
			if !yield(event, nil) {
				return
			}
		}
	}
}

func (f *fakeEngine) Close() error {
	f.closeOnce.Do(func() { close(f.events) })
	return nil
}

// fakeStream scripts the telephony leg and records outbound operations.
type fakeStream struct {
	inbound chan *telephony.Message
	closed  chan struct{}

	mu        sync.Mutex
	ops       []string
	media     [][]byte
	closeOnce sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		inbound: make(chan *telephony.Message, 64),
		closed:  make(chan struct{}),
	}
}

func (f *fakeStream) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
}

func (f *fakeStream) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

// waitFor blocks until an op with the given prefix has been recorded.
func (f *fakeStream) waitFor(t *testing.T, prefix string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, op := range f.recorded() {
			if strings.HasPrefix(op, prefix) {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("op %q never recorded; have %v", prefix, f.recorded())
}

func (f *fakeStream) Read() (*telephony.Message, error) {
	select {
	case msg, ok := <-f.inbound:
		if !ok {
			return nil, errors.New("stream ended")
		}
		return msg, nil
	case <-f.closed:
		return nil, errors.New("stream closed")
	}
}

func (f *fakeStream) SendMedia(companded []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, fmt.Sprintf("media:%d", len(companded)))
	f.media = append(f.media, append([]byte(nil), companded...))
	return nil
}

func (f *fakeStream) SendClear() error {
	f.record("clear")
	return nil
}

func (f *fakeStream) SendMark(name string) error {
	f.record("mark:" + name)
	return nil
}

func (f *fakeStream) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func startMessage() *telephony.Message {
	return &telephony.Message{
		Event: telephony.EventStart,
		Start: &telephony.StartPayload{
			StreamSid:        "MZ1",
			CallSid:          "CA1",
			CustomParameters: map[string]string{"from": "+15550100"},
		},
	}
}

func stopMessage() *telephony.Message {
	return &telephony.Message{Event: telephony.EventStop, Stop: &telephony.StopPayload{CallSid: "CA1"}}
}

// runCall drives a call in the background and returns a wait func.
func runCall(t *testing.T, call *Call) func() {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- call.Run(context.Background()) }()
	return func() {
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Run never returned")
		}
	}
}

// activateCall brings a fresh call to Active: engine ack plus carrier start.
func activateCall(t *testing.T, engine *fakeEngine, stream *fakeStream) {
	t.Helper()
	stream.inbound <- startMessage()
	engine.events <- &realtime.ServerEvent{Type: realtime.EventTypeSessionCreated,
		Session: &realtime.SessionResource{ID: "sess_1"}}
	engine.waitFor(t, "session.update")
}

func engineAudio(samples int) []byte {
	// Distinct nonzero content so the pipeline has something to chew on.
	audio := make([]byte, samples*2)
	for i := range audio {
		audio[i] = byte(i % 7)
	}
	return audio
}

func TestBargeInOrdering(t *testing.T) {
	engine := newFakeEngine()
	stream := newFakeStream()
	call := NewCall(stream, engine, nil, Config{Instructions: "test"}, nil)
	wait := runCall(t, call)

	activateCall(t, engine, stream)

	delta := engineAudio(960) // 40 ms at 24 kHz → one whole carrier frame plus remainder

	engine.events <- &realtime.ServerEvent{Type: realtime.EventTypeResponseCreated,
		Response: &realtime.ResponseResource{ID: "resp_1"}}
	engine.events <- &realtime.ServerEvent{Type: realtime.EventTypeSpeechStarted}
	engine.events <- &realtime.ServerEvent{Type: realtime.EventTypeResponseAudioDelta,
		ResponseID: "resp_1", Audio: delta}
	engine.events <- &realtime.ServerEvent{Type: realtime.EventTypeResponseCreated,
		Response: &realtime.ResponseResource{ID: "resp_2"}}
	engine.events <- &realtime.ServerEvent{Type: realtime.EventTypeResponseAudioDelta,
		ResponseID: "resp_2", Audio: delta}

	// The resp_2 delta is the last event with an observable effect; once it
	// lands the whole sequence has been dispatched.
	stream.waitFor(t, "media:")
	stream.inbound <- stopMessage()
	wait()

	var clears, media int
	for _, op := range stream.recorded() {
		switch {
		case op == "clear":
			clears++
		case strings.HasPrefix(op, "media:"):
			media++
		}
	}
	if clears != 1 {
		t.Errorf("clears = %d, want exactly 1", clears)
	}
	// The stale delta for resp_1 is dropped; only the resp_2 delta flows.
	if media != 1 {
		t.Errorf("media sends = %d, want 1 (stale delta dropped)", media)
	}

	var cancels []string
	for _, a := range engine.recorded() {
		if strings.HasPrefix(a, "cancel:") {
			cancels = append(cancels, a)
		}
	}
	if len(cancels) != 1 || cancels[0] != "cancel:resp_1" {
		t.Errorf("cancels = %v, want exactly [cancel:resp_1]", cancels)
	}
}

func TestAudioForwardedWhileResponseActive(t *testing.T) {
	engine := newFakeEngine()
	stream := newFakeStream()
	call := NewCall(stream, engine, nil, Config{Instructions: "test"}, nil)
	wait := runCall(t, call)

	activateCall(t, engine, stream)

	engine.events <- &realtime.ServerEvent{Type: realtime.EventTypeResponseCreated,
		Response: &realtime.ResponseResource{ID: "resp_1"}}
	engine.events <- &realtime.ServerEvent{Type: realtime.EventTypeResponseAudioDelta,
		ResponseID: "resp_1", Audio: engineAudio(960)}

	stream.waitFor(t, "media:")
	stream.inbound <- stopMessage()
	wait()

	var media int
	for _, op := range stream.recorded() {
		if strings.HasPrefix(op, "media:") {
			media++
		}
	}
	if media != 1 {
		t.Errorf("media sends = %d, want 1", media)
	}
}

func TestNoForwardingAfterResponseDone(t *testing.T) {
	engine := newFakeEngine()
	stream := newFakeStream()
	call := NewCall(stream, engine, nil, Config{Instructions: "test"}, nil)
	wait := runCall(t, call)

	activateCall(t, engine, stream)

	engine.events <- &realtime.ServerEvent{Type: realtime.EventTypeResponseCreated,
		Response: &realtime.ResponseResource{ID: "resp_1"}}
	engine.events <- &realtime.ServerEvent{Type: realtime.EventTypeResponseDone,
		Response: &realtime.ResponseResource{ID: "resp_1"}}
	engine.events <- &realtime.ServerEvent{Type: realtime.EventTypeResponseAudioDelta,
		ResponseID: "resp_1", Audio: engineAudio(960)}

	// A tool reply is the next observable effect, proving the dropped delta
	// was dispatched before the call ends.
	engine.events <- &realtime.ServerEvent{Type: realtime.EventTypeFunctionCallArgumentsDone,
		CallID: "sync", Name: "noop"}
	engine.waitFor(t, "output:sync")

	stream.inbound <- stopMessage()
	wait()

	for _, op := range stream.recorded() {
		if strings.HasPrefix(op, "media:") {
			t.Errorf("media sent after response.done: %v", stream.recorded())
		}
	}
}

func TestCallerMediaForwarded(t *testing.T) {
	engine := newFakeEngine()
	stream := newFakeStream()
	call := NewCall(stream, engine, nil, Config{Instructions: "test"}, nil)
	wait := runCall(t, call)

	activateCall(t, engine, stream)

	frame := make([]byte, 160) // one 20 ms carrier frame
	for i := range frame {
		frame[i] = byte(128 + i%64)
	}
	stream.inbound <- &telephony.Message{
		Event: telephony.EventMedia,
		Media: &telephony.MediaPayload{Payload: base64.StdEncoding.EncodeToString(frame)},
	}
	engine.waitFor(t, "append:")

	stream.inbound <- stopMessage()
	wait()

	for _, a := range engine.recorded() {
		if strings.HasPrefix(a, "append:") {
			// 160 μ-law samples at 8 kHz become ~480 samples at 24 kHz,
			// ~960 bytes of PCM16. The external resampler may trim an
			// edge sample.
			var n int
			fmt.Sscanf(a, "append:%d", &n)
			if n < 940 || n > 980 {
				t.Errorf("append = %q, want ~960 bytes", a)
			}
			return
		}
	}
	t.Error("no audio appended")
}

func TestInitTimeoutForcesActive(t *testing.T) {
	engine := newFakeEngine()
	stream := newFakeStream()
	call := NewCall(stream, engine, nil, Config{
		Instructions: "test",
		InitTimeout:  30 * time.Millisecond,
	}, nil)
	wait := runCall(t, call)

	// Engine acks but the carrier start signal never arrives; the session
	// must not hang in setup.
	engine.events <- &realtime.ServerEvent{Type: realtime.EventTypeSessionCreated,
		Session: &realtime.SessionResource{ID: "sess_1"}}

	engine.waitFor(t, "session.update")
	engine.waitFor(t, "response.create")

	stream.inbound <- stopMessage()
	wait()

	if call.State() != StateClosed {
		t.Errorf("final state = %v, want closed", call.State())
	}
}

func TestToolCallSubmit(t *testing.T) {
	engine := newFakeEngine()
	stream := newFakeStream()

	var mu sync.Mutex
	var submitted []*Order
	submitter := SubmitterFunc(func(ctx context.Context, order *Order) error {
		mu.Lock()
		defer mu.Unlock()
		submitted = append(submitted, order)
		return nil
	})

	call := NewCall(stream, engine, submitter, Config{
		Instructions: "test",
		SubmitTool:   "submit_order",
	}, nil)
	wait := runCall(t, call)

	activateCall(t, engine, stream)

	// Argument JSON streams in fragments; nothing is parsed until done.
	engine.events <- &realtime.ServerEvent{Type: realtime.EventTypeFunctionCallArgumentsDelta,
		CallID: "call_1", Delta: `{"item":"la`}
	engine.events <- &realtime.ServerEvent{Type: realtime.EventTypeFunctionCallArgumentsDelta,
		CallID: "call_1", Delta: `rge pizza","qty":2}`}
	engine.events <- &realtime.ServerEvent{Type: realtime.EventTypeFunctionCallArgumentsDone,
		CallID: "call_1", Name: "submit_order"}

	engine.waitFor(t, "output:call_1")

	stream.inbound <- stopMessage()
	wait()

	mu.Lock()
	defer mu.Unlock()
	if len(submitted) != 1 {
		t.Fatalf("submitted %d orders, want exactly 1", len(submitted))
	}
	order := submitted[0]
	if order.CallSid != "CA1" || order.CallerFrom != "+15550100" {
		t.Errorf("order identity = %q/%q", order.CallSid, order.CallerFrom)
	}
	if order.Payload["item"] != "large pizza" {
		t.Errorf("order payload = %v", order.Payload)
	}

	var followups int
	for _, a := range engine.recorded() {
		if a == "response.create" {
			followups++
		}
	}
	// Opening response plus the post-tool continuation.
	if followups != 2 {
		t.Errorf("response.create count = %d, want 2", followups)
	}
}

func TestToolCallRepairedJSON(t *testing.T) {
	engine := newFakeEngine()
	stream := newFakeStream()
	call := NewCall(stream, engine, nil, Config{
		Instructions: "test",
		SubmitTool:   "submit_order",
	}, nil)
	wait := runCall(t, call)

	activateCall(t, engine, stream)

	// Trailing comma: strict parse fails, repair succeeds.
	engine.events <- &realtime.ServerEvent{Type: realtime.EventTypeFunctionCallArgumentsDone,
		CallID: "call_1", Name: "submit_order", Arguments: `{"item":"soup",}`}

	engine.waitFor(t, "output:call_1")
	stream.inbound <- stopMessage()
	wait()

	for _, a := range engine.recorded() {
		if strings.HasPrefix(a, "output:call_1:") && !strings.Contains(a, "confirmed") {
			t.Errorf("tool output = %q, want confirmation", a)
		}
	}
}

func TestBenignCancelErrorIgnored(t *testing.T) {
	engine := newFakeEngine()
	stream := newFakeStream()
	call := NewCall(stream, engine, nil, Config{Instructions: "test"}, nil)
	wait := runCall(t, call)

	activateCall(t, engine, stream)

	engine.events <- &realtime.ServerEvent{Type: realtime.EventTypeError,
		Err: &realtime.Error{Type: "invalid_request_error", Code: "response_cancel_not_active"}}

	// The stream continues: a later response still flows.
	engine.events <- &realtime.ServerEvent{Type: realtime.EventTypeResponseCreated,
		Response: &realtime.ResponseResource{ID: "resp_1"}}
	engine.events <- &realtime.ServerEvent{Type: realtime.EventTypeResponseAudioDelta,
		ResponseID: "resp_1", Audio: engineAudio(960)}

	stream.waitFor(t, "media:")
	stream.inbound <- stopMessage()
	wait()

	var media int
	for _, op := range stream.recorded() {
		if strings.HasPrefix(op, "media:") {
			media++
		}
	}
	if media != 1 {
		t.Errorf("media sends = %d, want 1 after benign cancel error", media)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state CallState
		want  string
	}{
		{state: StateConnecting, want: "connecting"},
		{state: StateSessionInitializing, want: "session_initializing"},
		{state: StateActive, want: "active"},
		{state: StateClosing, want: "closing"},
		{state: StateClosed, want: "closed"},
		{state: CallState(99), want: "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

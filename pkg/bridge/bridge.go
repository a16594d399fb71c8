// Package bridge owns per-call state and routes audio between the telephony
// leg and the AI engine in both directions.
//
// Each call is one Call value driven by a single dispatch loop. Two reader
// goroutines (telephony, engine) feed the loop through one channel, so all
// mutable call state is touched from exactly one goroutine. Calls share
// nothing; they are independently parallel.
package bridge

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/tommyd2377/voice-ai-system/pkg/audio/dsp"
	"github.com/tommyd2377/voice-ai-system/pkg/audio/resample"
	"github.com/tommyd2377/voice-ai-system/pkg/realtime"
	"github.com/tommyd2377/voice-ai-system/pkg/telephony"
)

// DefaultInitTimeout forces SessionInitializing → Active when the carrier's
// start signal is late, so a session can never hang in setup.
const DefaultInitTimeout = 5 * time.Second

// EngineSession is the AI engine connection the bridge drives. Satisfied by
// *realtime.Session.
type EngineSession interface {
	UpdateSession(config *realtime.SessionConfig) error
	AppendAudio(audio []byte) error
	CreateResponse(opts *realtime.ResponseCreateOptions) error
	CancelResponse(responseID string) error
	AddFunctionCallOutput(callID, output string) error
	Events() iter.Seq2[*realtime.ServerEvent, error]
	Close() error
}

// MediaStream is the telephony leg the bridge drives. Satisfied by
// *telephony.Stream.
type MediaStream interface {
	Read() (*telephony.Message, error)
	SendMedia(companded []byte) error
	SendClear() error
	SendMark(name string) error
	Close() error
}

// ToolHandler executes a non-submit tool call and returns the output JSON
// for the engine.
type ToolHandler func(ctx context.Context, call *ToolCall) (string, error)

// Config carries the per-deployment call settings.
type Config struct {
	// Instructions is the engine system prompt for the call.
	Instructions string

	// Greeting, when set, is the response instruction for the opening
	// utterance.
	Greeting string

	// Voice selects the synthesized voice.
	Voice string

	// EngineRate is the engine's PCM rate. Default realtime.PCM16Rate.
	EngineRate int

	// Tools declares the engine-callable functions.
	Tools []realtime.Tool

	// SubmitTool names the tool whose finalized arguments become the
	// call's order payload.
	SubmitTool string

	// ToolHandler runs tools other than SubmitTool. Optional.
	ToolHandler ToolHandler

	// TurnDetection tunes the engine VAD. Optional.
	TurnDetection *realtime.TurnDetection

	// Conditioner holds the DSP tunables for both directions.
	Conditioner dsp.Config

	// InitTimeout bounds SessionInitializing. Default DefaultInitTimeout.
	InitTimeout time.Duration

	// ResampleTimeout bounds one external resampler invocation.
	ResampleTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.EngineRate == 0 {
		c.EngineRate = realtime.PCM16Rate
	}
	if c.InitTimeout <= 0 {
		c.InitTimeout = DefaultInitTimeout
	}
	if c.Conditioner == (dsp.Config{}) {
		c.Conditioner = dsp.DefaultConfig()
	}
	return c
}

// Call is one bridged call. Create with NewCall, drive with Run.
type Call struct {
	cfg       Config
	log       *slog.Logger
	stream    MediaStream
	engine    EngineSession
	submitter Submitter

	resampler resample.Best
	condIn    *dsp.Conditioner // caller → engine, at engine rate
	condOut   *dsp.Conditioner // engine → caller, at engine rate

	state             CallState
	engineReady       bool
	start             *telephony.StartPayload
	callerSpeaking    bool
	responseActive    bool
	currentResponseID string
	tools             toolCalls
	order             *Order
	submitted         bool

	events chan callEvent
	done   chan struct{}
}

type callEvent struct {
	msg         *telephony.Message
	engine      *realtime.ServerEvent
	err         error
	fromEngine  bool
	initTimeout bool
}

// NewCall wires a call over an accepted media stream and a connected engine
// session. submitter may be nil when the deployment has no persistence.
func NewCall(stream MediaStream, engine EngineSession, submitter Submitter, cfg Config, log *slog.Logger) *Call {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Call{
		cfg:       cfg,
		log:       log,
		stream:    stream,
		engine:    engine,
		submitter: submitter,
		resampler: resample.Best{Timeout: cfg.ResampleTimeout},
		condIn:    dsp.NewConditioner(cfg.EngineRate, cfg.Conditioner),
		condOut:   dsp.NewConditioner(cfg.EngineRate, cfg.Conditioner),
		state:     StateConnecting,
		tools:     newToolCalls(),
		events:    make(chan callEvent, 64),
		done:      make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (c *Call) State() CallState {
	return c.state
}

// Run drives the call until the telephony leg disconnects or ctx is
// cancelled. It always leaves the call in StateClosed with both legs
// released.
func (c *Call) Run(ctx context.Context) error {
	// The engine connection is already up, so setup proceeds straight to
	// waiting on the session ack and the carrier start signal.
	c.state = StateSessionInitializing

	go c.readTelephony()
	go c.readEngine()

	initTimer := time.AfterFunc(c.cfg.InitTimeout, func() {
		c.push(callEvent{initTimeout: true})
	})
	defer initTimer.Stop()

	defer c.close(context.WithoutCancel(ctx))

	for c.state != StateClosed {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.events:
			c.dispatch(ctx, ev)
		}
	}
	return nil
}

func (c *Call) push(ev callEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Call) readTelephony() {
	for {
		msg, err := c.stream.Read()
		if err != nil {
			c.push(callEvent{err: err})
			return
		}
		c.push(callEvent{msg: msg})
	}
}

func (c *Call) readEngine() {
	for event, err := range c.engine.Events() {
		if err != nil {
			c.push(callEvent{err: err, fromEngine: true})
			return
		}
		c.push(callEvent{engine: event, fromEngine: true})
	}
}

func (c *Call) dispatch(ctx context.Context, ev callEvent) {
	switch {
	case ev.initTimeout:
		if c.state == StateSessionInitializing {
			c.log.Warn("session init timed out, forcing active",
				"engine_ready", c.engineReady, "have_start", c.start != nil)
			c.activate()
		}
	case ev.err != nil:
		// Either leg ending ends the call.
		c.log.Info("call leg closed", "from_engine", ev.fromEngine, "err", ev.err)
		c.close(ctx)
	case ev.msg != nil:
		c.handleTelephony(ctx, ev.msg)
	case ev.engine != nil:
		c.handleEngine(ctx, ev.engine)
	}
}

func (c *Call) handleTelephony(ctx context.Context, msg *telephony.Message) {
	switch msg.Event {
	case telephony.EventConnected:
		// Handshake preamble, nothing to do.
	case telephony.EventStart:
		c.start = msg.Start
		c.log.Info("media stream started",
			"stream_sid", msg.Start.StreamSid,
			"call_sid", msg.Start.CallSid,
			"from", msg.Start.CallerFrom())
		c.maybeActivate()
	case telephony.EventMedia:
		if c.state != StateActive || msg.Media == nil {
			return
		}
		c.forwardCallerAudio(ctx, msg.Media.Payload)
	case telephony.EventMark:
		c.log.Debug("mark", "name", markName(msg))
	case telephony.EventStop:
		c.log.Info("media stream stopped")
		c.close(ctx)
	default:
		// Unknown control messages are ignored; the stream continues.
		c.log.Debug("ignoring control message", "event", msg.Event)
	}
}

func markName(msg *telephony.Message) string {
	if msg.Mark == nil {
		return ""
	}
	return msg.Mark.Name
}

func (c *Call) handleEngine(ctx context.Context, event *realtime.ServerEvent) {
	switch event.Type {
	case realtime.EventTypeSessionCreated:
		c.engineReady = true
		c.maybeActivate()

	case realtime.EventTypeSpeechStarted:
		c.bargeIn()

	case realtime.EventTypeResponseCreated:
		if event.Response != nil {
			c.currentResponseID = event.Response.ID
		}
		c.responseActive = true
		// A new response is the only thing that resumes audio forwarding
		// after a barge-in.
		c.callerSpeaking = false

	case realtime.EventTypeResponseAudioDelta:
		if !c.canForwardAudio(event.ResponseID) {
			return
		}
		c.forwardEngineAudio(ctx, event.Audio)

	case realtime.EventTypeResponseDone, realtime.EventTypeResponseCancelled:
		if event.Response == nil || event.Response.ID == c.currentResponseID {
			c.responseActive = false
		}

	case realtime.EventTypeFunctionCallArgumentsDelta:
		c.tools.appendDelta(event.CallID, event.Delta)

	case realtime.EventTypeFunctionCallArgumentsDone:
		c.finishToolCall(ctx, event)

	case realtime.EventTypeError:
		if event.Err == nil {
			return
		}
		if realtime.IsBenignCancel(event.Err) {
			// The response we cancelled had already finished.
			c.log.Debug("cancel raced response completion")
			return
		}
		c.log.Warn("engine error event", "err", event.Err)
	}
}

// canForwardAudio gates the engine→caller path: forwarding requires an
// active response, no barge-in suppression, and a delta belonging to the
// current response.
func (c *Call) canForwardAudio(responseID string) bool {
	if c.state != StateActive || c.callerSpeaking || !c.responseActive {
		return false
	}
	return responseID == "" || responseID == c.currentResponseID
}

// bargeIn reacts to caller speech onset: clear the carrier's buffered
// audio first so playback stops immediately, then cancel the in-flight
// response, tagged so a stale cancel cannot hit a newer response.
func (c *Call) bargeIn() {
	if err := c.stream.SendClear(); err != nil {
		c.log.Warn("barge-in clear failed", "err", err)
	}
	if c.responseActive && c.currentResponseID != "" {
		if err := c.engine.CancelResponse(c.currentResponseID); err != nil {
			c.log.Warn("barge-in cancel failed", "err", err)
		}
	}
	c.callerSpeaking = true
}

// maybeActivate transitions to Active once both the engine session ack and
// the carrier start signal have arrived.
func (c *Call) maybeActivate() {
	if c.state != StateSessionInitializing {
		return
	}
	if c.engineReady && c.start != nil {
		c.activate()
	}
}

// activate sends the engine its instructions and triggers the opening
// utterance.
func (c *Call) activate() {
	cfg := &realtime.SessionConfig{
		Modalities:        []string{"text", "audio"},
		Instructions:      c.instructions(),
		Voice:             c.cfg.Voice,
		InputAudioFormat:  realtime.AudioFormatPCM16,
		OutputAudioFormat: realtime.AudioFormatPCM16,
		TurnDetection:     c.cfg.TurnDetection,
		Tools:             c.cfg.Tools,
	}
	if err := c.engine.UpdateSession(cfg); err != nil {
		c.log.Error("session update failed", "err", err)
	}

	var opts *realtime.ResponseCreateOptions
	if c.cfg.Greeting != "" {
		opts = &realtime.ResponseCreateOptions{Instructions: c.cfg.Greeting}
	}
	if err := c.engine.CreateResponse(opts); err != nil {
		c.log.Error("opening response failed", "err", err)
	}

	c.state = StateActive
}

func (c *Call) instructions() string {
	if c.start == nil {
		return c.cfg.Instructions
	}
	from := c.start.CallerFrom()
	if from == "" {
		return c.cfg.Instructions
	}
	return fmt.Sprintf("%s\n\nThe caller's phone number is %s.", c.cfg.Instructions, from)
}

func (c *Call) finishToolCall(ctx context.Context, event *realtime.ServerEvent) {
	call, err := c.tools.finalize(event.CallID, event.Name, event.Arguments)
	if err != nil {
		c.log.Warn("tool call arguments unparsable", "call_id", event.CallID, "err", err)
		c.replyToTool(event.CallID, `{"error":"arguments could not be parsed"}`)
		return
	}

	switch {
	case c.cfg.SubmitTool != "" && call.Name == c.cfg.SubmitTool:
		c.acceptOrder(ctx, call)
		c.replyToTool(call.CallID, `{"status":"confirmed"}`)
	case c.cfg.ToolHandler != nil:
		output, err := c.cfg.ToolHandler(ctx, call)
		if err != nil {
			c.log.Warn("tool handler failed", "tool", call.Name, "err", err)
			output = `{"error":"tool failed"}`
		}
		c.replyToTool(call.CallID, output)
	default:
		c.log.Warn("no handler for tool", "tool", call.Name)
		c.replyToTool(call.CallID, `{"error":"unknown tool"}`)
	}
}

func (c *Call) replyToTool(callID, output string) {
	if err := c.engine.AddFunctionCallOutput(callID, output); err != nil {
		c.log.Warn("tool output send failed", "call_id", callID, "err", err)
		return
	}
	if err := c.engine.CreateResponse(nil); err != nil {
		c.log.Warn("post-tool response failed", "err", err)
	}
}

// acceptOrder records the finalized payload and submits it. Submission
// happens at most once per call; close flushes it if this attempt fails.
func (c *Call) acceptOrder(ctx context.Context, call *ToolCall) {
	order := &Order{
		Payload:   call.Args,
		CreatedAt: time.Now(),
	}
	if c.start != nil {
		order.CallSid = c.start.CallSid
		order.CallerFrom = c.start.CallerFrom()
	}
	c.order = order
	c.submitOrder(ctx)
}

func (c *Call) submitOrder(ctx context.Context) {
	if c.order == nil || c.submitted || c.submitter == nil {
		return
	}
	if err := c.submitter.Submit(ctx, c.order); err != nil {
		c.log.Error("order submit failed", "err", err)
		return
	}
	c.submitted = true
	c.log.Info("order submitted", "call_sid", c.order.CallSid)
}

// close tears the call down: flush the uncommitted order, close the engine
// session, release per-call DSP state, close the telephony leg.
func (c *Call) close(ctx context.Context) {
	if c.state == StateClosing || c.state == StateClosed {
		return
	}
	c.state = StateClosing

	c.submitOrder(ctx)

	if err := c.engine.Close(); err != nil {
		c.log.Debug("engine close", "err", err)
	}
	if err := c.stream.Close(); err != nil {
		c.log.Debug("stream close", "err", err)
	}
	c.condIn = nil
	c.condOut = nil

	c.state = StateClosed
	close(c.done)
	c.log.Info("call closed")
}

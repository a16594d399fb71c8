package realtime

// Client event types (sent to the engine).
const (
	EventTypeSessionUpdate          = "session.update"
	EventTypeInputAudioBufferAppend = "input_audio_buffer.append"
	EventTypeConversationItemCreate = "conversation.item.create"
	EventTypeResponseCreate         = "response.create"
	EventTypeResponseCancel         = "response.cancel"
)

// Server event types (received from the engine).
const (
	EventTypeError = "error"

	EventTypeSessionCreated = "session.created"
	EventTypeSessionUpdated = "session.updated"

	EventTypeSpeechStarted = "input_audio_buffer.speech_started"
	EventTypeSpeechStopped = "input_audio_buffer.speech_stopped"

	EventTypeResponseCreated   = "response.created"
	EventTypeResponseDone      = "response.done"
	EventTypeResponseCancelled = "response.cancelled"

	EventTypeResponseAudioDelta = "response.audio.delta"
	EventTypeResponseAudioDone  = "response.audio.done"

	EventTypeFunctionCallArgumentsDelta = "response.function_call_arguments.delta"
	EventTypeFunctionCallArgumentsDone  = "response.function_call_arguments.done"
)

// ServerEvent is one event received from the engine. Only the fields
// relevant to the event's Type are populated.
type ServerEvent struct {
	// Type is the event type.
	Type string `json:"type"`

	// EventID is the server-assigned event identifier.
	EventID string `json:"event_id,omitempty"`

	// Session carries session info for session.created / session.updated.
	Session *SessionResource `json:"session,omitempty"`

	// Response carries response info for response.* lifecycle events.
	Response *ResponseResource `json:"response,omitempty"`

	// ResponseID identifies the response for streamed delta events.
	ResponseID string `json:"response_id,omitempty"`

	// ItemID identifies the conversation item for item-scoped events.
	ItemID string `json:"item_id,omitempty"`

	// CallID identifies the function call for function_call_arguments.*.
	CallID string `json:"call_id,omitempty"`

	// Name is the function name for function_call_arguments.done.
	Name string `json:"name,omitempty"`

	// Delta is the streamed fragment: base64 audio for audio deltas,
	// argument-JSON text for function call deltas.
	Delta string `json:"delta,omitempty"`

	// Arguments is the full argument JSON for function_call_arguments.done.
	Arguments string `json:"arguments,omitempty"`

	// AudioStartMs is the speech onset for speech_started.
	AudioStartMs int `json:"audio_start_ms,omitempty"`

	// Err carries error detail for error events.
	Err *Error `json:"error,omitempty"`

	// Audio is the decoded audio payload for response.audio.delta.
	Audio []byte `json:"-"`

	// Raw is the original message bytes.
	Raw []byte `json:"-"`
}

// SessionResource describes the engine session.
type SessionResource struct {
	ID    string `json:"id"`
	Model string `json:"model,omitempty"`
}

// ResponseResource describes a response's lifecycle state.
type ResponseResource struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

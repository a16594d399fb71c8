package realtime

import "github.com/google/jsonschema-go/jsonschema"

// DefaultModel is the realtime model used when ConnectConfig.Model is empty.
const DefaultModel = "gpt-4o-realtime-preview"

// Audio formats accepted by the engine.
const (
	// AudioFormatPCM16 is 16-bit little-endian mono PCM at 24 kHz.
	AudioFormatPCM16 = "pcm16"
	// AudioFormatG711ULaw is G.711 μ-law at 8 kHz.
	AudioFormatG711ULaw = "g711_ulaw"
)

// PCM16Rate is the engine's native sample rate for AudioFormatPCM16.
const PCM16Rate = 24000

// ConnectConfig configures the dial.
type ConnectConfig struct {
	// Model is the realtime model ID. Default: DefaultModel.
	Model string
}

// SessionConfig is the session-configuration message sent once per call
// after session.created.
type SessionConfig struct {
	// Modalities selects the output modalities, e.g. ["text", "audio"].
	Modalities []string `json:"modalities,omitempty"`

	// Instructions is the system prompt for the call.
	Instructions string `json:"instructions,omitempty"`

	// Voice selects the synthesized voice.
	Voice string `json:"voice,omitempty"`

	// InputAudioFormat and OutputAudioFormat declare the wire audio
	// formats (see AudioFormat constants).
	InputAudioFormat  string `json:"input_audio_format,omitempty"`
	OutputAudioFormat string `json:"output_audio_format,omitempty"`

	// TurnDetection configures server-side voice activity detection.
	TurnDetection *TurnDetection `json:"turn_detection,omitempty"`

	// Tools declares the functions the model may call.
	Tools []Tool `json:"tools,omitempty"`

	// Temperature controls sampling randomness.
	Temperature *float64 `json:"temperature,omitempty"`
}

// TurnDetection configures the engine's voice activity detector. The
// sensitivity values are deployment tunables, not constants.
type TurnDetection struct {
	// Type is the VAD mode, normally "server_vad".
	Type string `json:"type"`

	// Threshold is the activation threshold in [0, 1].
	Threshold float64 `json:"threshold,omitempty"`

	// PrefixPaddingMs is audio included before detected speech.
	PrefixPaddingMs int `json:"prefix_padding_ms,omitempty"`

	// SilenceDurationMs is the trailing silence that ends a turn.
	SilenceDurationMs int `json:"silence_duration_ms,omitempty"`
}

// Tool declares one callable function to the engine.
type Tool struct {
	// Type is always "function".
	Type string `json:"type"`

	// Name is the function name the model calls.
	Name string `json:"name"`

	// Description tells the model when to call it.
	Description string `json:"description,omitempty"`

	// Parameters is the JSON schema of the argument object.
	Parameters *jsonschema.Schema `json:"parameters,omitempty"`
}

// ResponseCreateOptions customizes a response.create request. Nil means
// engine defaults.
type ResponseCreateOptions struct {
	// Instructions overrides the session instructions for this response.
	Instructions string `json:"instructions,omitempty"`
}

// Package telephony implements the carrier media-stream protocol: framed
// JSON messages over one websocket per call, carrying μ-law audio both ways.
package telephony

// Message event names on the media stream.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventMark      = "mark"
	EventStop      = "stop"
	EventClear     = "clear"
)

// Message is one inbound or outbound media-stream envelope. Only the field
// matching Event is populated.
type Message struct {
	// Event names the message kind (see Event constants).
	Event string `json:"event"`

	// SequenceNumber orders inbound messages. String on the wire.
	SequenceNumber string `json:"sequenceNumber,omitempty"`

	// StreamSid identifies the media stream on every message after start.
	StreamSid string `json:"streamSid,omitempty"`

	Start *StartPayload `json:"start,omitempty"`
	Media *MediaPayload `json:"media,omitempty"`
	Mark  *MarkPayload  `json:"mark,omitempty"`
	Stop  *StopPayload  `json:"stop,omitempty"`
}

// StartPayload carries the session metadata sent once when the carrier
// begins streaming.
type StartPayload struct {
	// StreamSid identifies the media stream.
	StreamSid string `json:"streamSid"`

	// CallSid identifies the call leg.
	CallSid string `json:"callSid"`

	// AccountSid identifies the carrier account.
	AccountSid string `json:"accountSid,omitempty"`

	// Tracks lists the streamed tracks (e.g. ["inbound"]).
	Tracks []string `json:"tracks,omitempty"`

	// MediaFormat declares the codec the carrier streams.
	MediaFormat MediaFormat `json:"mediaFormat"`

	// CustomParameters carries caller metadata wired in by the webhook,
	// including the caller's phone number under "from".
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// MediaFormat describes the carrier's audio encoding.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// MediaPayload carries one chunk of base64 companded audio.
type MediaPayload struct {
	// Track is "inbound" or "outbound".
	Track string `json:"track,omitempty"`

	// Chunk counts media messages on the track.
	Chunk string `json:"chunk,omitempty"`

	// Timestamp is milliseconds since stream start.
	Timestamp string `json:"timestamp,omitempty"`

	// Payload is base64-encoded μ-law audio.
	Payload string `json:"payload"`
}

// MarkPayload labels a point in the outbound audio queue.
type MarkPayload struct {
	Name string `json:"name"`
}

// StopPayload carries the final message of a stream.
type StopPayload struct {
	CallSid string `json:"callSid,omitempty"`
}

// CallerFrom returns the caller's phone number from the start metadata, or
// "" when the webhook did not wire one through. Missing caller identity is
// a degraded condition, not an error.
func (p *StartPayload) CallerFrom() string {
	if p == nil {
		return ""
	}
	return p.CustomParameters["from"]
}

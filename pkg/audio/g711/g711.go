// Package g711 implements the G.711 μ-law companding codec and the fixed
// telephony framing contract.
//
// μ-law maps 16-bit linear PCM onto 8-bit logarithmic codes; the round trip
// is lossy by design. All companded audio in this codebase is implicitly
// 8 kHz mono, one byte per sample.
package g711

import (
	"time"

	"github.com/tommyd2377/voice-ai-system/pkg/audio/pcm"
)

// Telephony carrier contract. These are fixed by the media-stream transport
// and must be referenced, never re-derived.
const (
	// SampleRate is the carrier sample rate in Hz.
	SampleRate = 8000

	// FrameBytes is the size of one media frame in companded bytes.
	FrameBytes = 160

	// FrameDuration is the playback time of one media frame (20 ms).
	FrameDuration = FrameBytes * time.Second / SampleRate
)

const (
	bias = 0x84
	clip = 32635
)

// Decode converts μ-law codes to a linear PCM buffer at the carrier rate.
// Empty input yields an empty buffer.
func Decode(companded []byte) pcm.Buffer {
	samples := make([]int16, len(companded))
	for i, b := range companded {
		samples[i] = decodeSample(b)
	}
	return pcm.New(SampleRate, samples)
}

// Encode converts linear PCM samples to μ-law codes. The input is assumed to
// already be at the carrier rate; no rate conversion happens here.
func Encode(samples []int16) []byte {
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = encodeSample(s)
	}
	return out
}

func decodeSample(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F

	t := (int(mantissa)<<3 + bias) << exponent
	if sign != 0 {
		return int16(bias - t)
	}
	return int16(t - bias)
}

func encodeSample(sample int16) byte {
	s := int(sample)
	sign := byte(0)
	if s < 0 {
		sign = 0x80
		s = -s
	}
	if s > clip {
		s = clip
	}
	s += bias

	// Locate the exponent bracket: highest set bit within the 14-bit window.
	exponent := byte(7)
	for mask := 0x4000; exponent > 0 && s&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte(s>>(exponent+3)) & 0x0F
	return ^(sign | exponent<<4 | mantissa)
}

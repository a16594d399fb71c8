package pcm

import "time"

// Buffer is a mono 16-bit linear PCM buffer tagged with its sample rate.
// Treat it as immutable once constructed.
type Buffer struct {
	// Rate is the sample rate in Hz (e.g., 8000, 24000).
	Rate int

	// Samples holds the signed 16-bit samples.
	Samples []int16
}

// New creates a Buffer over the given samples without copying.
func New(rate int, samples []int16) Buffer {
	return Buffer{Rate: rate, Samples: samples}
}

// FromBytes decodes little-endian 16-bit samples from data. A trailing odd
// byte is truncated rather than rejected: media arrives in carrier-controlled
// chunks and a short byte must never take down the stream.
func FromBytes(rate int, data []byte) Buffer {
	n := len(data) / 2
	samples := make([]int16, n)
	for i := range n {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return Buffer{Rate: rate, Samples: samples}
}

// Bytes encodes the samples as little-endian 16-bit PCM.
func (b Buffer) Bytes() []byte {
	out := make([]byte, len(b.Samples)*2)
	for i, s := range b.Samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// Len returns the number of samples.
func (b Buffer) Len() int {
	return len(b.Samples)
}

// Duration returns the playback duration of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.Rate == 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.Rate)
}

// SamplesInDuration returns the number of samples covering d at rate.
func SamplesInDuration(rate int, d time.Duration) int {
	return int(time.Duration(rate) * d / time.Second)
}

// Floats converts the samples to float64 in [-1, 1].
func (b Buffer) Floats() []float64 {
	out := make([]float64, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = float64(s) / 32768.0
	}
	return out
}

// FromFloats converts float samples in [-1, 1] back to a 16-bit Buffer,
// clamping out-of-range values.
func FromFloats(rate int, in []float64) Buffer {
	samples := make([]int16, len(in))
	for i, f := range in {
		samples[i] = Clamp(f * 32767.0)
	}
	return Buffer{Rate: rate, Samples: samples}
}

// Clamp converts a float sample value (already scaled to the 16-bit range)
// to int16, saturating instead of wrapping.
func Clamp(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

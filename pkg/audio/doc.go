// Package audio is the umbrella for the audio-processing sub-packages:
//
//   - pcm: rate-tagged 16-bit PCM buffers and byte/float conversion
//   - g711: G.711 μ-law codec and telephony frame constants
//   - dsp: per-call signal conditioning (filters, compressor, limiter, AGC)
//   - resample: sample-rate conversion strategies
package audio

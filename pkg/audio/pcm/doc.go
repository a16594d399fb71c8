// Package pcm provides the linear PCM buffer model shared by the audio
// pipeline.
//
// A Buffer is an immutable sequence of signed 16-bit mono samples tagged
// with a sample rate. Transforms elsewhere in the pipeline (resampling,
// conditioning) consume a Buffer and produce a new one; nothing mutates a
// Buffer after construction.
package pcm

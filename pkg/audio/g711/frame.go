package g711

// Chunk splits companded audio into fixed-size frames of frameBytes each.
// Any trailing partial frame is dropped; a caller that needs lossless
// framing buffers the remainder itself and prepends it to the next call.
// Chunk is pure and stateless.
func Chunk(companded []byte, frameBytes int) [][]byte {
	if frameBytes <= 0 {
		return nil
	}
	n := len(companded) / frameBytes
	frames := make([][]byte, 0, n)
	for i := range n {
		frames = append(frames, companded[i*frameBytes:(i+1)*frameBytes])
	}
	return frames
}

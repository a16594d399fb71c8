package g711

import (
	"math"
	"testing"
)

func TestDecodeEmpty(t *testing.T) {
	got := Decode(nil)
	if got.Rate != SampleRate {
		t.Errorf("Decode rate = %d, want %d", got.Rate, SampleRate)
	}
	if len(got.Samples) != 0 {
		t.Errorf("Decode(nil) len = %d, want 0", len(got.Samples))
	}
}

func TestRoundTripError(t *testing.T) {
	// Companding is lossy: verify the mean absolute error stays small
	// instead of expecting bit-exact equality.
	tests := []struct {
		name string
		gen  func(i int) int16
	}{
		{
			name: "sine 440Hz full scale",
			gen: func(i int) int16 {
				return int16(30000 * math.Sin(2*math.Pi*440*float64(i)/SampleRate))
			},
		},
		{
			name: "sine quiet",
			gen: func(i int) int16 {
				return int16(800 * math.Sin(2*math.Pi*200*float64(i)/SampleRate))
			},
		},
		{
			name: "ramp",
			gen: func(i int) int16 {
				return int16(i*8 - 32000)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]int16, SampleRate)
			for i := range in {
				in[i] = tt.gen(i)
			}
			out := Decode(Encode(in))
			if len(out.Samples) != len(in) {
				t.Fatalf("round trip len = %d, want %d", len(out.Samples), len(in))
			}
			var total float64
			for i := range in {
				total += math.Abs(float64(out.Samples[i]) - float64(in[i]))
			}
			if avg := total / float64(len(in)); avg >= 2000 {
				t.Errorf("mean abs error = %.1f, want < 2000", avg)
			}
		})
	}
}

func TestEncodeClipping(t *testing.T) {
	// Extremes must not wrap; they land in the top companding segment.
	for _, s := range []int16{32767, -32768} {
		b := Encode([]int16{s})
		got := Decode(b).Samples[0]
		if s > 0 && got < 30000 {
			t.Errorf("Encode(%d) decoded to %d, want near positive full scale", s, got)
		}
		if s < 0 && got > -30000 {
			t.Errorf("Encode(%d) decoded to %d, want near negative full scale", s, got)
		}
	}
}

func TestDecodeSilence(t *testing.T) {
	// 0xFF is the μ-law code for zero.
	got := Decode([]byte{0xFF}).Samples[0]
	if got != 0 {
		t.Errorf("Decode(0xFF) = %d, want 0", got)
	}
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name       string
		inputLen   int
		wantFrames int
	}{
		{name: "exact multiple", inputLen: 480, wantFrames: 3},
		{name: "trailing partial dropped", inputLen: 500, wantFrames: 3},
		{name: "short of one frame", inputLen: 159, wantFrames: 0},
		{name: "empty", inputLen: 0, wantFrames: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, tt.inputLen)
			for i := range data {
				data[i] = byte(i)
			}
			frames := Chunk(data, FrameBytes)
			if len(frames) != tt.wantFrames {
				t.Fatalf("Chunk len = %d, want %d", len(frames), tt.wantFrames)
			}
			for i, f := range frames {
				if len(f) != FrameBytes {
					t.Errorf("frame %d len = %d, want %d", i, len(f), FrameBytes)
				}
				if f[0] != byte(i*FrameBytes) {
					t.Errorf("frame %d starts with %d, want %d", i, f[0], byte(i*FrameBytes))
				}
			}
		})
	}
}

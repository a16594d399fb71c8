// Package resample converts linear PCM between sample rates.
//
// Three strategies are available, in increasing cost and quality: Linear
// interpolation, a bounded windowed-sinc convolution (Sinc), and an external
// sox process (Sox). Best composes them: it prefers the external process
// when the host has one and degrades silently to Sinc otherwise.
package resample

import (
	"context"
	"math"

	"github.com/tommyd2377/voice-ai-system/pkg/audio/pcm"
)

// DefaultTaps is the half-width of the windowed-sinc kernel in input samples.
const DefaultTaps = 16

// Resampler converts a PCM buffer to a target sample rate.
type Resampler interface {
	Resample(ctx context.Context, in pcm.Buffer, toRate int) (pcm.Buffer, error)
}

// OutLen returns the output sample count for resampling n samples from
// fromRate to toRate.
func OutLen(n, fromRate, toRate int) int {
	return int(math.Round(float64(n) * float64(toRate) / float64(fromRate)))
}

// Linear resamples by linear interpolation between the two bracketing input
// samples. Cheapest strategy; audible aliasing when downsampling wideband
// material.
func Linear(in pcm.Buffer, toRate int) pcm.Buffer {
	if in.Rate == toRate || len(in.Samples) == 0 {
		return pcm.New(toRate, append([]int16(nil), in.Samples...))
	}

	outLen := OutLen(len(in.Samples), in.Rate, toRate)
	out := make([]int16, outLen)
	step := float64(in.Rate) / float64(toRate)
	last := len(in.Samples) - 1

	for i := range out {
		pos := float64(i) * step
		i0 := int(pos)
		if i0 > last {
			i0 = last
		}
		i1 := i0 + 1
		if i1 > last {
			i1 = last
		}
		frac := pos - float64(i0)
		v := float64(in.Samples[i0])*(1-frac) + float64(in.Samples[i1])*frac
		out[i] = pcm.Clamp(math.Round(v))
	}
	return pcm.New(toRate, out)
}

// Sinc resamples by convolving against a Hann-windowed sinc kernel of
// ±DefaultTaps input samples around each fractional source position. The
// kernel is normalized by the weights actually inside the buffer so edge
// truncation does not change amplitude.
func Sinc(in pcm.Buffer, toRate int) pcm.Buffer {
	if in.Rate == toRate || len(in.Samples) == 0 {
		return pcm.New(toRate, append([]int16(nil), in.Samples...))
	}

	outLen := OutLen(len(in.Samples), in.Rate, toRate)
	out := make([]int16, outLen)
	step := float64(in.Rate) / float64(toRate)

	// When downsampling the sinc cutoff drops below Nyquist of the source,
	// acting as the anti-aliasing filter.
	cutoff := 1.0
	if toRate < in.Rate {
		cutoff = float64(toRate) / float64(in.Rate)
	}

	for i := range out {
		pos := float64(i) * step
		center := int(pos)

		lo := center - DefaultTaps
		hi := center + DefaultTaps
		if lo < 0 {
			lo = 0
		}
		if hi > len(in.Samples)-1 {
			hi = len(in.Samples) - 1
		}

		var acc, wsum float64
		for k := lo; k <= hi; k++ {
			d := pos - float64(k)
			w := cutoff * sinc(cutoff*d) * hann(d)
			acc += w * float64(in.Samples[k])
			wsum += w
		}
		if wsum != 0 {
			acc /= wsum
		}
		out[i] = pcm.Clamp(math.Round(acc))
	}
	return pcm.New(toRate, out)
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

func hann(d float64) float64 {
	if d < -DefaultTaps-1 || d > DefaultTaps+1 {
		return 0
	}
	return 0.5 + 0.5*math.Cos(math.Pi*d/(DefaultTaps+1))
}

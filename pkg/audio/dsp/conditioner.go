// Package dsp conditions speech audio for the telephony loudness and
// bandwidth envelope.
//
// A Conditioner runs a fixed chain over each block: DC removal, high-pass,
// low-pass, dynamics compression, peak limiting, and adaptive gain control.
// The chain is stateful; one instance serves exactly one call direction and
// is discarded with the call.
package dsp

import (
	"math"
	"time"

	"github.com/tommyd2377/voice-ai-system/pkg/audio/pcm"
)

// Config holds the conditioner tunables. Loudness targets vary by
// deployment, so they are configuration rather than constants.
type Config struct {
	// DCAlpha is the exponential running-mean coefficient for DC removal.
	DCAlpha float64

	// HighPassHz removes sub-voice-band rumble.
	HighPassHz float64

	// LowPassHz matches the telephony band and strips aliasing energy
	// ahead of narrowband encoding.
	LowPassHz float64

	// CompAttack and CompRelease are the envelope follower time constants.
	CompAttack  time.Duration
	CompRelease time.Duration

	// CompThresholdDB is the compression threshold in dBFS.
	CompThresholdDB float64

	// CompRatio is the compression ratio above the knee (e.g. 2 for 2:1).
	CompRatio float64

	// CompKneeDB is the soft-knee width: signal within this many dB over
	// the threshold is compressed at half ratio.
	CompKneeDB float64

	// LimitCeilingDB is the hard peak ceiling in dBFS.
	LimitCeilingDB float64

	// AGCTargetDB is the loudness target in dBFS.
	AGCTargetDB float64

	// AGCWindow is the sliding RMS window length.
	AGCWindow time.Duration

	// AGCMaxStepDB bounds the applied-gain slew rate, in dB per 100 ms.
	AGCMaxStepDB float64
}

// DefaultConfig returns the telephony-speech defaults.
func DefaultConfig() Config {
	return Config{
		DCAlpha:         0.995,
		HighPassHz:      100,
		LowPassHz:       3400,
		CompAttack:      8 * time.Millisecond,
		CompRelease:     140 * time.Millisecond,
		CompThresholdDB: -18,
		CompRatio:       2,
		CompKneeDB:      2,
		LimitCeilingDB:  -1,
		AGCTargetDB:     -19,
		AGCWindow:       time.Second,
		AGCMaxStepDB:    1,
	}
}

// Conditioner is the per-direction processing chain. Not safe for
// concurrent use; each call direction owns its own instance.
type Conditioner struct {
	cfg  Config
	rate int

	dcMean float64

	hpPrevIn  float64
	hpPrevOut float64
	lpPrev    float64

	compEnv float64

	agc agcState
}

// NewConditioner creates a conditioner for one stream direction at the
// given sample rate.
func NewConditioner(rate int, cfg Config) *Conditioner {
	return &Conditioner{
		cfg:  cfg,
		rate: rate,
		agc:  newAGCState(rate, cfg),
	}
}

// Process runs the chain over one block and returns the conditioned block.
// Stage order is fixed; state carries over to the next block.
func (c *Conditioner) Process(in pcm.Buffer) pcm.Buffer {
	if len(in.Samples) == 0 {
		return in
	}

	buf := in.Floats()

	c.removeDC(buf)
	c.highPass(buf)
	c.lowPass(buf)
	c.compress(buf)

	ceiling := dbToLin(c.cfg.LimitCeilingDB)
	limit(buf, ceiling)
	c.agc.apply(buf)
	limit(buf, ceiling)

	return pcm.FromFloats(in.Rate, buf)
}

func (c *Conditioner) removeDC(buf []float64) {
	alpha := c.cfg.DCAlpha
	for i, x := range buf {
		c.dcMean = alpha*c.dcMean + (1-alpha)*x
		buf[i] = x - c.dcMean
	}
}

func (c *Conditioner) highPass(buf []float64) {
	rc := 1 / (2 * math.Pi * c.cfg.HighPassHz)
	dt := 1 / float64(c.rate)
	a := rc / (rc + dt)
	for i, x := range buf {
		y := a * (c.hpPrevOut + x - c.hpPrevIn)
		c.hpPrevIn = x
		c.hpPrevOut = y
		buf[i] = y
	}
}

func (c *Conditioner) lowPass(buf []float64) {
	rc := 1 / (2 * math.Pi * c.cfg.LowPassHz)
	dt := 1 / float64(c.rate)
	a := dt / (rc + dt)
	for i, x := range buf {
		c.lpPrev += a * (x - c.lpPrev)
		buf[i] = c.lpPrev
	}
}

func (c *Conditioner) compress(buf []float64) {
	attack := coefFor(c.cfg.CompAttack, c.rate)
	release := coefFor(c.cfg.CompRelease, c.rate)

	for i, x := range buf {
		mag := math.Abs(x)
		if mag > c.compEnv {
			c.compEnv += attack * (mag - c.compEnv)
		} else {
			c.compEnv += release * (mag - c.compEnv)
		}

		over := linToDB(c.compEnv) - c.cfg.CompThresholdDB
		if over <= 0 {
			continue
		}

		// Soft knee: the first CompKneeDB over threshold compresses at
		// half ratio, the rest at the full ratio.
		halfRatio := 1 + (c.cfg.CompRatio-1)/2
		var reduction float64
		if over <= c.cfg.CompKneeDB {
			reduction = over * (1 - 1/halfRatio)
		} else {
			reduction = c.cfg.CompKneeDB*(1-1/halfRatio) +
				(over-c.cfg.CompKneeDB)*(1-1/c.cfg.CompRatio)
		}
		buf[i] = x * dbToLin(-reduction)
	}
}

func limit(buf []float64, ceiling float64) {
	for i, x := range buf {
		if x > ceiling {
			buf[i] = ceiling
		} else if x < -ceiling {
			buf[i] = -ceiling
		}
	}
}

// coefFor converts a time constant to a per-sample smoothing coefficient.
func coefFor(tc time.Duration, rate int) float64 {
	if tc <= 0 {
		return 1
	}
	return 1 - math.Exp(-1/(tc.Seconds()*float64(rate)))
}

func dbToLin(db float64) float64 {
	return math.Pow(10, db/20)
}

func linToDB(lin float64) float64 {
	if lin <= 0 {
		return -120
	}
	return 20 * math.Log10(lin)
}

package dsp

import "math"

// agcMaxGainDB bounds the desired gain in either direction.
const agcMaxGainDB = 30

// agcBucket is one processing block's contribution to the sliding energy
// window.
type agcBucket struct {
	energy  float64
	samples int
}

// agcState maintains a sliding RMS window and ramps the applied gain toward
// the target loudness at a bounded rate so gain changes stay inaudible.
type agcState struct {
	rate          int
	targetDB      float64
	maxStepDB     float64 // per 100 ms
	windowSamples int

	gainDB float64

	buckets   []agcBucket
	energySum float64
	sampleSum int
}

func newAGCState(rate int, cfg Config) agcState {
	return agcState{
		rate:          rate,
		targetDB:      cfg.AGCTargetDB,
		maxStepDB:     cfg.AGCMaxStepDB,
		windowSamples: int(float64(rate) * cfg.AGCWindow.Seconds()),
	}
}

func (a *agcState) apply(buf []float64) {
	var energy float64
	for _, x := range buf {
		energy += x * x
	}
	a.push(agcBucket{energy: energy, samples: len(buf)})

	rms := math.Sqrt(a.energySum / float64(a.sampleSum))
	desiredDB := a.targetDB - linToDB(rms)

	// Near-silence drives the desired gain toward +120 dB; cap it so the
	// ramp cannot wander off and amplify line noise into full scale.
	if desiredDB > agcMaxGainDB {
		desiredDB = agcMaxGainDB
	} else if desiredDB < -agcMaxGainDB {
		desiredDB = -agcMaxGainDB
	}

	// Bound the slew to maxStepDB per 100 ms of audio, scaled to this
	// block's duration.
	maxStep := a.maxStepDB * (float64(len(buf)) / float64(a.rate)) / 0.1
	step := desiredDB - a.gainDB
	if step > maxStep {
		step = maxStep
	} else if step < -maxStep {
		step = -maxStep
	}
	a.gainDB += step

	gain := dbToLin(a.gainDB)
	for i := range buf {
		buf[i] *= gain
	}
}

func (a *agcState) push(b agcBucket) {
	a.buckets = append(a.buckets, b)
	a.energySum += b.energy
	a.sampleSum += b.samples

	for len(a.buckets) > 1 && a.sampleSum > a.windowSamples {
		old := a.buckets[0]
		a.buckets = a.buckets[1:]
		a.energySum -= old.energy
		a.sampleSum -= old.samples
	}
}

// GainDB reports the currently applied gain. Exposed for tests and
// diagnostics.
func (a *agcState) GainDB() float64 {
	return a.gainDB
}

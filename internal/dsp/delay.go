// Package dsp implements the primitive building blocks consumed by node
// processors: delay lines, filters, panners, and a resampler (spec §4.4).
package dsp

import "math"

// DelayLine is a crossfading delay: changing Delay begins a linear
// crossfade from the old read position to the new one over
// InterpolationTime seconds, reading both positions with linear
// interpolation in time and mixing by a linear envelope (spec §4.4).
type DelayLine struct {
	sampleRate float64
	buf        []float32
	writePos   int

	delay            float64 // seconds, currently in effect
	interpolationTime float64

	fadeFrom     float64 // old delay, during a crossfade
	fadeTo       float64 // new delay (== delay once fade completes)
	fadeElapsed  float64 // seconds into the current crossfade
	fading       bool
}

// NewDelayLine allocates a delay line supporting delays up to maxDelay
// seconds at sampleRate.
func NewDelayLine(sampleRate, maxDelay float64) *DelayLine {
	n := int(math.Ceil(maxDelay*sampleRate)) + 1
	if n < 1 {
		n = 1
	}
	return &DelayLine{
		sampleRate: sampleRate,
		buf:        make([]float32, n),
	}
}

// SetDelay begins (or redirects) a crossfade to delaySeconds over
// interpolationTime seconds. interpolationTime of 0 jumps immediately
// (spec §4.4: "interpolation_time == 0" is the bit-identical-across-block-
// sizes case referenced by spec §8).
func (d *DelayLine) SetDelay(delaySeconds, interpolationTime float64) {
	if interpolationTime <= 0 {
		d.delay = delaySeconds
		d.fading = false
		return
	}
	d.fadeFrom = d.delay
	d.fadeTo = delaySeconds
	d.fadeElapsed = 0
	d.interpolationTime = interpolationTime
	d.fading = true
}

// Reset clears the delay-line contents (spec §4.2 reset semantics) without
// altering the configured delay.
func (d *DelayLine) Reset() {
	for i := range d.buf {
		d.buf[i] = 0
	}
	d.writePos = 0
}

func (d *DelayLine) readInterpolated(delaySeconds float64) float32 {
	n := len(d.buf)
	delaySamples := delaySeconds * d.sampleRate
	readPos := float64(d.writePos) - delaySamples
	for readPos < 0 {
		readPos += float64(n)
	}
	i0 := int(readPos) % n
	frac := readPos - math.Floor(readPos)
	i1 := (i0 + 1) % n
	return d.buf[i0]*float32(1-frac) + d.buf[i1]*float32(frac)
}

// Process delays in sample-by-sample into out, which must be the same
// length as in. Safe to call with out overlapping in's backing array only
// if they are the identical slice.
func (d *DelayLine) Process(out, in []float32) {
	n := len(d.buf)
	dt := 1.0 / d.sampleRate
	for i, x := range in {
		d.buf[d.writePos] = x

		var sample float32
		if d.fading {
			d.fadeElapsed += dt
			frac := d.fadeElapsed / d.interpolationTime
			if frac >= 1 {
				frac = 1
				d.fading = false
				d.delay = d.fadeTo
			}
			a := d.readInterpolated(d.fadeFrom)
			b := d.readInterpolated(d.fadeTo)
			sample = a*float32(1-frac) + b*float32(frac)
		} else {
			sample = d.readInterpolated(d.delay)
		}
		out[i] = sample

		d.writePos = (d.writePos + 1) % n
	}
}

package dsp

import (
	"math"
	"sort"
)

// SpeakerLayout is an ordered set of (angle, channel) pairs defining a
// speaker ring on the unit circle, angle in degrees, 0 = front, positive =
// clockwise (spec §4.4).
type SpeakerLayout struct {
	Angles   []float64
	Channels int
}

// Standard layouts named in spec §4.4.
var (
	StereoLayout = SpeakerLayout{Angles: []float64{-30, 30}, Channels: 2}
	Layout51     = SpeakerLayout{Angles: []float64{-30, 30, 0, 110, -110}, Channels: 5}
	Layout71     = SpeakerLayout{Angles: []float64{-30, 30, 0, 110, -110, 90, -90}, Channels: 7}
)

// AmplitudePanner distributes a mono signal across a SpeakerLayout using
// constant-power (sin/cos) interpolation between the two speakers adjacent
// to the target azimuth (spec §4.4).
type AmplitudePanner struct {
	layout SpeakerLayout
	sorted []int // indices into layout.Angles, sorted by angle ascending
}

// NewAmplitudePanner builds a panner for layout.
func NewAmplitudePanner(layout SpeakerLayout) *AmplitudePanner {
	idx := make([]int, len(layout.Angles))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return layout.Angles[idx[a]] < layout.Angles[idx[b]] })
	return &AmplitudePanner{layout: layout, sorted: idx}
}

// SetLayout replaces the panner's speaker layout (used when the
// multipanner's strategy property switches among stereo/5.1/7.1, spec
// §4.6).
func (p *AmplitudePanner) SetLayout(layout SpeakerLayout) {
	*p = *NewAmplitudePanner(layout)
}

// wrap180 normalizes deg into [-180, 180), matching the convention in
// which the standard layouts (spec §4.4) are already expressed, so a
// front-quadrant pair like {-30, 30} brackets through the front (the short
// way) rather than through the back via 0/360.
func wrap180(deg float64) float64 {
	deg = math.Mod(deg+180, 360)
	if deg < 0 {
		deg += 360
	}
	return deg - 180
}

// Gains returns one gain per layout channel for azimuth (degrees,
// convention matches spec §4.7: clockwise from +Y). At most two entries
// are nonzero, those of the bracketing speaker pair (one, when azimuth
// falls exactly on a speaker); the constant-power identity
// sum(gain^2) == 1 holds regardless (spec §8).
func (p *AmplitudePanner) Gains(azimuth float64) []float32 {
	gains := make([]float32, p.layout.Channels)
	n := len(p.sorted)
	if n == 0 {
		return gains
	}
	if n == 1 {
		gains[p.sorted[0]] = 1
		return gains
	}

	az := wrap180(azimuth)
	norm := make([]float64, n)
	for i, si := range p.sorted {
		norm[i] = wrap180(p.layout.Angles[si])
	}

	// find bracketing pair i, i+1 (wrapping) such that norm[i] <= az < norm[i+1]
	lo := n - 1
	for i := 0; i < n; i++ {
		if norm[i] <= az {
			lo = i
		}
	}
	hi := (lo + 1) % n

	span := norm[hi] - norm[lo]
	if span <= 0 {
		span += 360
	}
	pos := az - norm[lo]
	if pos < 0 {
		pos += 360
	}
	theta := (pos / span) * (math.Pi / 2)

	gLo := float32(math.Cos(theta))
	gHi := float32(math.Sin(theta))

	gains[p.sorted[lo]] = gLo
	gains[p.sorted[hi]] += gHi
	return gains
}

// Process pans mono input in into out, a slice of p.layout.Channels output
// buffers, for a constant azimuth over the whole block. Callers needing
// a-rate azimuth automation should call Gains per sample instead.
func (p *AmplitudePanner) Process(azimuth float64, in []float32, out [][]float32) {
	gains := p.Gains(azimuth)
	for ch, g := range gains {
		o := out[ch]
		for i, x := range in {
			o[i] = x * g
		}
	}
}

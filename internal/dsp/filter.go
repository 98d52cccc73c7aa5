package dsp

import "math"

// FirstOrderFilter is a one-pole one-zero filter in zero-pole form, with
// per-sample zero/pole position setters and standard analog-prototype
// configuration helpers (spec §4.4).
type FirstOrderFilter struct {
	zero, pole       float64
	gainCompensation float64
	histIn           float32
	histOut          float32
}

// NewFirstOrderFilter creates an allpass-neutral filter (zero = pole = 0).
func NewFirstOrderFilter() *FirstOrderFilter {
	return &FirstOrderFilter{}
}

// SetZeroPosition sets the filter's zero location in [-1, 1].
func (f *FirstOrderFilter) SetZeroPosition(z float64) { f.zero = z }

// SetPolePosition sets the filter's pole location in (-1, 1).
func (f *FirstOrderFilter) SetPolePosition(p float64) { f.pole = p }

// Normalize scales the filter so its DC gain is exactly 1.
func (f *FirstOrderFilter) Normalize() {
	dcGain := (1 - f.zero) / (1 - f.pole)
	if dcGain == 0 {
		return
	}
	f.gainCompensation = 1 / dcGain
}

// ConfigureLowpass sets zero/pole positions for a one-pole lowpass with
// cutoff fc (Hz) at sampleRate, normalized to unity DC gain.
func (f *FirstOrderFilter) ConfigureLowpass(fc, sampleRate float64) {
	x := math.Exp(-2 * math.Pi * fc / sampleRate)
	f.pole = x
	f.zero = 0
	f.Normalize()
}

// ConfigureHighpass sets zero/pole positions for a one-pole highpass with
// cutoff fc (Hz) at sampleRate.
func (f *FirstOrderFilter) ConfigureHighpass(fc, sampleRate float64) {
	x := math.Exp(-2 * math.Pi * fc / sampleRate)
	f.pole = x
	f.zero = 1
	f.Normalize()
}

// ConfigureAllpass sets zero/pole positions for a one-pole allpass with
// corner frequency fc (Hz) at sampleRate. A zero at 1/x and a pole at x give
// a flat magnitude response of 1/x; Normalize scales it to unity gain at
// all frequencies.
func (f *FirstOrderFilter) ConfigureAllpass(fc, sampleRate float64) {
	x := math.Exp(-2 * math.Pi * fc / sampleRate)
	f.pole = x
	f.zero = 1 / x
	f.Normalize()
}

// ResetState clears the filter's history (spec §4.2 reset semantics).
func (f *FirstOrderFilter) ResetState() {
	f.histIn = 0
	f.histOut = 0
}

// Process filters in into out sample by sample.
func (f *FirstOrderFilter) Process(out, in []float32) {
	z, p, g := f.zero, f.pole, f.gainCompensation
	if g == 0 {
		g = 1
	}
	x1, y1 := float64(f.histIn), float64(f.histOut)
	for i, xf := range in {
		x := float64(xf)
		y := x - z*x1 + p*y1
		out[i] = float32(y * g)
		x1, y1 = x, y
	}
	f.histIn, f.histOut = float32(x1), float32(y1)
}

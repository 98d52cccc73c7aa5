package dsp

import "math"

// Resampler converts between sample rates by linear interpolation between
// consecutive input frames, multi-channel, retaining the last input frame
// across calls so block boundaries do not click (spec §4.4). When
// inRate == outRate it is a no_op fast path: Process copies straight
// through without interpolation.
type Resampler struct {
	channels int
	ratio    float64 // inRate / outRate
	noOp     bool

	lastFrame []float32 // last input frame carried across calls, per channel
	pos       float64   // fractional read position in input-frame units
	primed    bool
}

// NewResampler creates a resampler for numChannels interleaved-by-slice
// channels converting from inRate to outRate.
func NewResampler(numChannels int, inRate, outRate float64) *Resampler {
	return &Resampler{
		channels:  numChannels,
		ratio:     inRate / outRate,
		noOp:      inRate == outRate,
		lastFrame: make([]float32, numChannels),
	}
}

// Process resamples in (per-channel slices, all equal length) into out
// (per-channel slices sized for the desired output length).
func (r *Resampler) Process(in [][]float32, out [][]float32) {
	if r.noOp {
		for ch := range in {
			copy(out[ch], in[ch])
		}
		return
	}
	if len(in) == 0 || len(in[0]) == 0 {
		return
	}
	nIn := len(in[0])
	nOut := len(out[0])

	frame := func(idx int, ch int) float32 {
		if idx < 0 {
			return r.lastFrame[ch]
		}
		if idx >= nIn {
			return in[ch][nIn-1]
		}
		return in[ch][idx]
	}

	pos := r.pos
	if !r.primed {
		pos = 0
		r.primed = true
	}
	for i := 0; i < nOut; i++ {
		idx := int(math.Floor(pos))
		frac := float32(pos - math.Floor(pos))
		for ch := 0; ch < r.channels; ch++ {
			x0 := frame(idx, ch)
			x1 := frame(idx+1, ch)
			out[ch][i] = x0 + (x1-x0)*frac
		}
		pos += r.ratio
	}
	// carry the last consumed input frame forward for the next call
	for ch := 0; ch < r.channels; ch++ {
		r.lastFrame[ch] = in[ch][nIn-1]
	}
	r.pos = pos - float64(nIn)
	if r.pos < 0 {
		r.pos = 0
	}
}

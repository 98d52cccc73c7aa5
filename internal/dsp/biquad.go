package dsp

import "math"

// Biquad is a single direct-form-I biquad section with a double-precision
// accumulator — spec §4.4 requires this explicitly: "single precision
// produces audible artefacts."
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64

	x1, x2 float64
	y1, y2 float64
}

// SetCoefficients installs normalized coefficients (a0 already divided
// out).
func (bq *Biquad) SetCoefficients(b0, b1, b2, a1, a2 float64) {
	bq.b0, bq.b1, bq.b2, bq.a1, bq.a2 = b0, b1, b2, a1, a2
}

// SetPeakingEQ configures bq as an RBJ peaking-EQ section at center
// frequency fc (Hz), Q, and linear gain (1.0 = unity).
func (bq *Biquad) SetPeakingEQ(fc, q, gain, sampleRate float64) {
	A := math.Sqrt(gain)
	w0 := 2 * math.Pi * fc / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	b0 := 1 + alpha*A
	b1 := -2 * cosw0
	b2 := 1 - alpha*A
	a0 := 1 + alpha/A
	a1 := -2 * cosw0
	a2 := 1 - alpha/A

	bq.SetCoefficients(b0/a0, b1/a0, b2/a0, a1/a0, a2/a0)
}

// ResetState clears filter history (spec §4.2 reset semantics).
func (bq *Biquad) ResetState() {
	bq.x1, bq.x2, bq.y1, bq.y2 = 0, 0, 0, 0
}

func (bq *Biquad) processSample(x float64) float64 {
	y := bq.b0*x + bq.b1*bq.x1 + bq.b2*bq.x2 - bq.a1*bq.y1 - bq.a2*bq.y2
	bq.x2, bq.x1 = bq.x1, x
	bq.y2, bq.y1 = bq.y1, y
	return y
}

// BiquadBank runs one independent Biquad chain per channel.
type BiquadBank struct {
	channels [][]Biquad // per channel, per section
}

// NewBiquadBank allocates a bank of numChannels independent chains, each
// with sectionsPerChannel cascaded biquad sections.
func NewBiquadBank(numChannels, sectionsPerChannel int) *BiquadBank {
	ch := make([][]Biquad, numChannels)
	for i := range ch {
		ch[i] = make([]Biquad, sectionsPerChannel)
	}
	return &BiquadBank{channels: ch}
}

// Section returns the section-th biquad of channel ch, for configuration.
func (bb *BiquadBank) Section(ch, section int) *Biquad { return &bb.channels[ch][section] }

// ResetState clears every section's history.
func (bb *BiquadBank) ResetState() {
	for _, sections := range bb.channels {
		for i := range sections {
			sections[i].ResetState()
		}
	}
}

// Process filters channel ch's buffer in place through its cascaded
// sections, using a double-precision accumulator per spec §4.4.
func (bb *BiquadBank) Process(ch int, buf []float32) {
	sections := bb.channels[ch]
	for i, xf := range buf {
		acc := float64(xf)
		for s := range sections {
			acc = sections[s].processSample(acc)
		}
		buf[i] = float32(acc)
	}
}

// ThreeBandEQ is the low/mid/high bank named in spec §4.4 ("three-band EQ
// etc."): a BiquadBank with three cascaded peaking sections per channel
// (no shelving sections).
type ThreeBandEQ struct {
	bank *BiquadBank
}

// NewThreeBandEQ creates a flat (unity gain) three-band EQ for numChannels
// channels at sampleRate, with band centers at lowHz/midHz/highHz.
func NewThreeBandEQ(numChannels int, sampleRate, lowHz, midHz, highHz float64) *ThreeBandEQ {
	eq := &ThreeBandEQ{bank: NewBiquadBank(numChannels, 3)}
	for ch := 0; ch < numChannels; ch++ {
		eq.bank.Section(ch, 0).SetPeakingEQ(lowHz, 0.7, 1.0, sampleRate)
		eq.bank.Section(ch, 1).SetPeakingEQ(midHz, 0.7, 1.0, sampleRate)
		eq.bank.Section(ch, 2).SetPeakingEQ(highHz, 0.7, 1.0, sampleRate)
	}
	return eq
}

// SetGain sets the linear gain of channel ch's band (0=low, 1=mid, 2=high)
// to gain, centered at the caller-supplied fc with the constructor's Q of
// 0.7.
func (eq *ThreeBandEQ) SetGain(ch, band int, gain, fc, sampleRate float64) {
	eq.bank.Section(ch, band).SetPeakingEQ(fc, 0.7, gain, sampleRate)
}

// ResetState clears all channels' filter history.
func (eq *ThreeBandEQ) ResetState() { eq.bank.ResetState() }

// Process filters channel ch's buffer in place.
func (eq *ThreeBandEQ) Process(ch int, buf []float32) { eq.bank.Process(ch, buf) }

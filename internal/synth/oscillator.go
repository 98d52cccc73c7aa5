// Package synth provides concrete node processors: an oscillator, a hard
// limiter, a mixer, and a recorder (spec §4.2 expansion), grounded in the
// teacher's fixed-point phase-accumulator oscillator.
package synth

import (
	"sonicgraph/internal/node"
	"sonicgraph/internal/property"
)

// Waveform selects an Oscillator's output shape, matching the teacher's
// AudioChannel.Waveform tag set.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveSquare
	WaveSaw
	WaveNoise
)

// Oscillator property slots.
const (
	SlotFrequency = 0 // Hz, a-rate capable
	SlotPhase     = 1 // initial phase offset in [0,1)
	SlotWaveform  = 2
)

// phaseMax64 mirrors the teacher's apu.PhaseMax: a 32-bit phase accumulator
// wraps at 2^32, representing one full cycle (0 to 2pi).
const phaseMax64 = 0x100000000

// Oscillator drives a 32-bit fixed-point phase accumulator identical in
// spirit to the teacher's PhaseFixed/PhaseIncrementFixed design (spec
// §4.2 expansion), converting to float32 output.
type Oscillator struct {
	*node.Base

	sampleRate  float64
	phaseFixed  uint32
	noiseLFSR   uint16
	lastFreqVer uint64
}

// NewOscillator creates a single-output oscillator rendering blockSize-
// sample blocks at sampleRate, defaulting to a 440Hz sine.
func NewOscillator(blockSize int, sampleRate float64) *Oscillator {
	o := &Oscillator{
		Base:       node.NewBase(0, 1, blockSize),
		sampleRate: sampleRate,
		noiseLFSR:  1,
	}
	o.Impl = o
	freq := property.NewNumeric(property.KindFloat, 440)
	freq.SetRange(0, sampleRate/2)
	o.SetProperty(SlotFrequency, freq)
	o.SetProperty(SlotPhase, property.NewNumeric(property.KindFloat, 0))
	o.SetProperty(SlotWaveform, property.NewNumeric(property.KindInt, float64(WaveSine)))
	return o
}

// phaseIncrement mirrors the teacher's updatePhaseIncrementFixed: a
// 64-bit intermediate avoids the uint32 overflow of frequency*2^32.
func phaseIncrement(freqHz, sampleRate float64) uint32 {
	if sampleRate <= 0 || freqHz <= 0 {
		return 0
	}
	inc := (freqHz * phaseMax64) / sampleRate
	return uint32(uint64(inc))
}

func (o *Oscillator) Process(b *node.Base, out [][]float32, in [][]float32) {
	blockSize := len(out[0])
	freqP := o.Property(SlotFrequency)
	waveform := Waveform(int(o.Property(SlotWaveform).Get()))

	freqSamples := freqP.ReadBlock(b.Now(), blockSize, b.SampleRate(), true)

	buf := out[0]
	for i := range buf {
		inc := phaseIncrement(freqSamples[i], o.sampleRate)
		buf[i] = o.sample(waveform)
		o.phaseFixed += inc
	}
}

func (o *Oscillator) sample(w Waveform) float32 {
	switch w {
	case WaveSquare:
		if o.phaseFixed < 0x80000000 {
			return 1
		}
		return -1
	case WaveSaw:
		return float32(int64(o.phaseFixed>>16)-32768) / 32768.0
	case WaveNoise:
		feedback := (o.noiseLFSR & 1) ^ ((o.noiseLFSR >> 14) & 1)
		o.noiseLFSR = (o.noiseLFSR >> 1) | (feedback << 14)
		if o.noiseLFSR == 0 {
			o.noiseLFSR = 1
		}
		if o.noiseLFSR&1 != 0 {
			return 1
		}
		return -1
	default: // WaveSine
		return sineApprox(uint16(o.phaseFixed >> 16))
	}
}

// sineApprox is a direct adaptation of the teacher's sineFixed polynomial
// approximation, expressed in float32 rather than the teacher's 16-bit
// fixed-point intermediate since this engine's output buffers are float32
// throughout.
func sineApprox(phase uint16) float32 {
	p := float64(phase) / 65536.0 // [0,1)
	if p >= 0.5 {
		p -= 1 // map to [-0.5, 0.5)
	}
	x := p * 2 * 3.14159265358979 // map to [-pi, pi)
	// sin(x) ~= x - x^3/6 + x^5/120, adequate for a lightweight oscillator
	x2 := x * x
	return float32(x * (1 - x2/6*(1-x2/20)))
}

// ResetState resets the phase accumulator and noise generator (spec §4.2
// reset semantics).
func (o *Oscillator) ResetState() {
	phaseOffset := o.Property(SlotPhase).Get()
	o.phaseFixed = uint32(phaseOffset * phaseMax64)
	o.noiseLFSR = 1
}

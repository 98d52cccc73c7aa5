// Package panner implements the Multipanner subgraph: a strategy-switched
// wrapper choosing between stereo/5.1/7.1 amplitude panning and HRTF
// spatialization, forwarding azimuth/elevation/should_crossfade to both
// branches so switching strategy is click-free (spec §4.6).
package panner

import (
	"sonicgraph/internal/dsp"
	"sonicgraph/internal/hrtf"
	"sonicgraph/internal/node"
	"sonicgraph/internal/property"
)

// Strategy selects which branch a Multipanner's output proxies to.
type Strategy int

const (
	StrategyStereo Strategy = iota
	Strategy51
	Strategy71
	StrategyHRTF
)

// Property slots (spec §4.6: azimuth, elevation, strategy, should_crossfade).
const (
	SlotAzimuth         = 0
	SlotElevation       = 1
	SlotStrategy        = 2
	SlotShouldCrossfade = 3
)

func layoutFor(s Strategy) dsp.SpeakerLayout {
	switch s {
	case Strategy51:
		return dsp.Layout51
	case Strategy71:
		return dsp.Layout71
	default:
		return dsp.StereoLayout
	}
}

func channelsFor(s Strategy) int {
	switch s {
	case Strategy51:
		return 5
	case Strategy71:
		return 7
	default:
		return 2 // stereo and HRTF both render to a 2-channel bus
	}
}

// mixerNode sums all connected inputs into a single mono output (spec
// §4.6 "input mixer").
type mixerNode struct {
	*node.Base
}

func newMixerNode(numInputs, blockSize int) *mixerNode {
	m := &mixerNode{Base: node.NewBase(numInputs, 1, blockSize)}
	m.Impl = m
	return m
}

func (m *mixerNode) Process(b *node.Base, out [][]float32, in [][]float32) {
	sum := out[0]
	for i := range sum {
		sum[i] = 0
	}
	for _, src := range in {
		if src == nil {
			continue
		}
		for i, x := range src {
			sum[i] += x
		}
	}
}

// branchNode renders the mono mix through whichever strategy is currently
// selected, exposing an output channel count that matches that strategy's
// speaker layout (2 for stereo/HRTF, 5 for 5.1, 7 for 7.1).
type branchNode struct {
	*node.Base

	blockSize  int
	dataset    *hrtf.Dataset
	ampPanner  *dsp.AmplitudePanner
	strategy   Strategy
	lastStratV uint64
}

func newBranchNode(blockSize int, dataset *hrtf.Dataset) *branchNode {
	n := &branchNode{
		Base:      node.NewBase(1, channelsFor(StrategyStereo), blockSize),
		blockSize: blockSize,
		dataset:   dataset,
		ampPanner: dsp.NewAmplitudePanner(dsp.StereoLayout),
	}
	n.Impl = n
	n.SetProperty(SlotAzimuth, property.NewNumeric(property.KindFloat, 0))
	n.SetProperty(SlotElevation, property.NewNumeric(property.KindFloat, 0))
	n.SetProperty(SlotStrategy, property.NewNumeric(property.KindInt, float64(StrategyStereo)))
	n.SetProperty(SlotShouldCrossfade, property.NewNumeric(property.KindInt, 1))
	return n
}

// reconfigureIfStrategyChanged rebuilds the output buffer count and
// amplitude-panner layout when the strategy property has changed since
// last observed (spec §4.6: "on change, the amplitude panner is
// reconfigured to the standard channel map for the chosen layout").
func (n *branchNode) reconfigureIfStrategyChanged() {
	p := n.Property(SlotStrategy)
	if !p.WasModifiedSince(n.lastStratV) {
		return
	}
	n.lastStratV = p.Version()
	n.strategy = Strategy(int(p.Get()))
	want := channelsFor(n.strategy)
	if n.OutputCount() != want {
		n.rebuildOutputs(want)
	}
	n.ampPanner.SetLayout(layoutFor(n.strategy))
}

func (n *branchNode) rebuildOutputs(channels int) {
	prevSlot := n.InputSlots()[0]
	fresh := node.NewBase(1, channels, n.blockSize)
	fresh.Impl = n
	for slot, p := range map[int]*property.Property{
		SlotAzimuth:         n.Property(SlotAzimuth),
		SlotElevation:       n.Property(SlotElevation),
		SlotStrategy:        n.Property(SlotStrategy),
		SlotShouldCrossfade: n.Property(SlotShouldCrossfade),
		node.MulSlot:        n.Property(node.MulSlot),
		node.AddSlot:        n.Property(node.AddSlot),
	} {
		fresh.SetProperty(slot, p)
	}
	n.Base = fresh
	if prevSlot.Parent != nil {
		n.Base.Connect(0, prevSlot.Parent, prevSlot.ParentOutput)
	}
}

func (n *branchNode) Process(b *node.Base, out [][]float32, in [][]float32) {
	n.reconfigureIfStrategyChanged()

	mono := in[0]
	azimuth := n.Property(SlotAzimuth).Get()
	elevation := n.Property(SlotElevation).Get()

	switch n.strategy {
	case StrategyHRTF:
		if n.dataset == nil || mono == nil {
			for _, o := range out {
				for i := range o {
					o[i] = 0
				}
			}
			return
		}
		left := make([]float32, n.dataset.HRIRLength)
		right := make([]float32, n.dataset.HRIRLength)
		n.dataset.SynthesizeStereo(elevation, azimuth, left, right)
		convolveInto(out[0], mono, left)
		convolveInto(out[1], mono, right)
	default:
		if mono == nil {
			for _, o := range out {
				for i := range o {
					o[i] = 0
				}
			}
			return
		}
		n.ampPanner.Process(azimuth, mono, out)
	}
}

// convolveInto is a short direct-form convolution of mono against ir,
// truncated to len(out): sufficient for the engine's own short HRIRs
// without needing an FFT-based fast convolution path.
func convolveInto(out, mono, ir []float32) {
	for i := range out {
		var acc float32
		for k := 0; k < len(ir) && k <= i; k++ {
			acc += mono[i-k] * ir[k]
		}
		out[i] = acc
	}
}

// Multipanner is the public subgraph node: an input mixer feeding a
// strategy-switched branch (spec §4.6).
type Multipanner struct {
	*node.Subgraph
	mixer  *mixerNode
	branch *branchNode
}

// New creates a Multipanner with numInputs external input slots, rendering
// blockSize-sample blocks. dataset may be nil if the HRTF strategy will
// never be selected.
func New(numInputs, blockSize int, dataset *hrtf.Dataset) *Multipanner {
	mixer := newMixerNode(numInputs, blockSize)
	branch := newBranchNode(blockSize, dataset)
	branch.Connect(0, mixer, 0)

	mp := &Multipanner{
		Subgraph: node.NewSubgraph(mixer, branch, numInputs),
		mixer:    mixer,
		branch:   branch,
	}
	return mp
}

// SetAzimuth forwards azimuth (degrees) to the active branch; because the
// property is shared by both the amplitude and HRTF code paths, switching
// strategy never loses the current azimuth (spec §4.6 "click-free").
func (mp *Multipanner) SetAzimuth(deg float64) error { return mp.branch.Property(SlotAzimuth).Set(deg) }

// SetElevation forwards elevation (degrees) to the active branch.
func (mp *Multipanner) SetElevation(deg float64) error {
	return mp.branch.Property(SlotElevation).Set(deg)
}

// SetStrategy switches which branch the subgraph's output renders from.
// The output channel count and speaker layout are rebuilt immediately, so
// OutputCount reflects the new strategy before the next tick.
func (mp *Multipanner) SetStrategy(s Strategy) error {
	if err := mp.branch.Property(SlotStrategy).Set(float64(s)); err != nil {
		return err
	}
	mp.branch.reconfigureIfStrategyChanged()
	return nil
}

// SetGain scales the branch's output by gain (e.g. an Environment's
// distance-model attenuation). It targets the internal branch node's own
// mul property directly, since Subgraph nodes skip their own post-
// processing step and inherit it from their internal output (spec §4.2
// step 6).
func (mp *Multipanner) SetGain(gain float64) error {
	return mp.branch.Property(node.MulSlot).Set(gain)
}

package synth

import "sonicgraph/internal/node"

// Mixer sums numInputs mono input buffers into a single output (spec §4.2
// expansion), for anywhere several signals need to be summed before further
// processing. The multipanner subgraph does not use it; it has its own
// internal input mixer.
type Mixer struct {
	*node.Base
}

// NewMixer creates a numInputs-input, single-output summing mixer.
func NewMixer(numInputs, blockSize int) *Mixer {
	m := &Mixer{Base: node.NewBase(numInputs, 1, blockSize)}
	m.Impl = m
	return m
}

func (m *Mixer) Process(b *node.Base, out [][]float32, in [][]float32) {
	dst := out[0]
	for i := range dst {
		dst[i] = 0
	}
	for _, src := range in {
		if src == nil {
			continue
		}
		for i, v := range src {
			dst[i] += v
		}
	}
}

package synth

import "sonicgraph/internal/node"

// Limiter is a zero-property node that hard-clamps its input buffer to
// [-1, 1] (spec §4.2 expansion, exercised by end-to-end scenario 1).
type Limiter struct {
	*node.Base
}

// NewLimiter creates a single-input, single-output limiter.
func NewLimiter(blockSize int) *Limiter {
	l := &Limiter{Base: node.NewBase(1, 1, blockSize)}
	l.Impl = l
	return l
}

func (l *Limiter) Process(b *node.Base, out [][]float32, in [][]float32) {
	src := in[0]
	dst := out[0]
	if src == nil {
		for i := range dst {
			dst[i] = 0
		}
		return
	}
	for i, x := range src {
		switch {
		case x > 1:
			dst[i] = 1
		case x < -1:
			dst[i] = -1
		default:
			dst[i] = x
		}
	}
}

package synth

import (
	"sync"

	"sonicgraph/internal/node"
)

// Recorder is an always-playing orphan node: it is never wired into the
// output node's subtree, so it only runs at all because the Server's plan
// includes always-playing nodes regardless of reachability (spec §4.3). It
// appends every processed block to an internal ring buffer for later
// inspection (diagnostics, offline capture of a tap point).
type Recorder struct {
	*node.Base

	mu       sync.Mutex
	capacity int
	ring     []float32
	writePos int
	filled   bool
}

// NewRecorder creates a single-input recorder retaining the most recent
// capacity samples (mono). The node is created in StateAlwaysPlaying so the
// Server's plan ticks it every block even when unreachable from the output.
func NewRecorder(blockSize, capacity int) *Recorder {
	r := &Recorder{
		Base:     node.NewBase(1, 0, blockSize),
		capacity: capacity,
		ring:     make([]float32, capacity),
	}
	r.Impl = r
	r.SetState(node.StateAlwaysPlaying)
	return r
}

func (r *Recorder) Process(b *node.Base, out [][]float32, in [][]float32) {
	src := in[0]
	if src == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range src {
		r.ring[r.writePos] = v
		r.writePos++
		if r.writePos == r.capacity {
			r.writePos = 0
			r.filled = true
		}
	}
}

// Snapshot returns the recorded samples in chronological order (oldest
// first). Safe to call concurrently with Process.
func (r *Recorder) Snapshot() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.filled {
		out := make([]float32, r.writePos)
		copy(out, r.ring[:r.writePos])
		return out
	}
	out := make([]float32, r.capacity)
	n := copy(out, r.ring[r.writePos:])
	copy(out[n:], r.ring[:r.writePos])
	return out
}

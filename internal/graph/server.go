// Package graph implements the Server: it owns the node set, computes the
// execution plan, drives ticks, and owns the output-node pointer and block
// clock (spec §4.3).
package graph

import (
	"math"
	"sync"

	"sonicgraph/internal/clock"
	"sonicgraph/internal/debug"
	"sonicgraph/internal/node"
	"sonicgraph/internal/serr"
)

// MixMatrix is a row-major (out_channels x in_channels) downmix/upmix
// matrix keyed by (in_channels, out_channels) (spec §4.3).
type MixMatrix struct {
	InChannels, OutChannels int
	Coeffs                  []float32 // len == OutChannels*InChannels
}

type mixKey struct{ in, out int }

// Server owns the node graph, the execution plan, and the block clock.
// Go has no recursive mutex, so each public method takes s.mu once and
// never re-locks: GetBlock holds it for the whole block and calls the
// lock-assuming planLocked and mixLocked helpers, which gives the
// atomicity spec §5 requires ("a block sees either the pre-change or
// post-change graph, never a half-applied one") for the Server's own
// methods without a recursive primitive.
type Server struct {
	mu sync.Mutex

	clock *clock.BlockClock
	log   *debug.Logger

	nodes      map[uint64]node.Node
	outputNode node.Node
	outChannel int

	planDirty bool
	plan      []node.Node

	mixMatrices map[mixKey]MixMatrix

	bgTasks  chan func()
	bgWg     sync.WaitGroup
	running  bool
}

// New creates a Server rendering at sampleRate with the given blockSize
// and mixahead depth, and registers the default mix matrices (spec §4.3:
// "mono<->stereo, 5.1 up/downmix, 7.1 up/downmix").
func New(sampleRate, blockSize, mixahead uint32, log *debug.Logger) (*Server, error) {
	c, err := clock.NewBlockClock(sampleRate, blockSize, mixahead)
	if err != nil {
		return nil, err
	}
	s := &Server{
		clock:       c,
		log:         log,
		nodes:       make(map[uint64]node.Node),
		mixMatrices: make(map[mixKey]MixMatrix),
		bgTasks:     make(chan func(), 256),
	}
	registerDefaultMixMatrices(s)
	return s, nil
}

// RegisterNode adds n to the Server's node set and marks the plan dirty.
func (s *Server) RegisterNode(n node.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[n.ID()] = n
	s.planDirty = true
}

// SetOutputNode designates n as the node whose output is pulled by
// GetBlock, rendering outChannels per call.
func (s *Server) SetOutputNode(n node.Node, outChannels int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputNode = n
	s.outChannel = outChannels
	s.planDirty = true
}

// RegisterMixMatrix installs m for the (m.InChannels, m.OutChannels) pair.
func (s *Server) RegisterMixMatrix(m MixMatrix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mixMatrices[mixKey{m.InChannels, m.OutChannels}] = m
}

// EnqueueBackground submits task to the background worker (spec §4.3):
// executed off the audio thread, used for node destructors and other
// non-realtime housekeeping. Submission never blocks the audio thread
// beyond a channel send into a generously buffered queue.
func (s *Server) EnqueueBackground(task func()) {
	s.bgTasks <- task
}

// Start launches the background worker goroutine.
func (s *Server) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.bgWg.Add(1)
	go func() {
		defer s.bgWg.Done()
		for task := range s.bgTasks {
			if task == nil {
				return // termination sentinel (spec §4.3)
			}
			task()
		}
	}()
}

// Stop enqueues the termination sentinel and waits for the background
// worker to exit (spec §5: "thread termination is cooperative via a
// sentinel task").
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.bgTasks <- nil
	s.bgWg.Wait()
}

// planLocked recomputes the execution plan by DFS from the output node,
// emitting nodes in post-order (parents before children), pruning paused
// nodes, and detecting cycles (spec §4.3). Must be called with s.mu held.
func (s *Server) planLocked() error {
	if !s.planDirty {
		return nil
	}
	s.planDirty = false
	if s.outputNode == nil {
		s.plan = nil
		return nil
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[uint64]int)
	var order []node.Node

	var visit func(n node.Node) error
	visit = func(n node.Node) error {
		id := n.ID()
		switch color[id] {
		case gray:
			return serr.New(serr.GraphCycle, "cycle detected at node %d", id)
		case black:
			return nil
		}
		color[id] = gray
		if n.State() != node.StatePaused {
			for _, slot := range n.InputSlots() {
				if slot.Parent != nil {
					if err := visit(slot.Parent); err != nil {
						return err
					}
				}
			}
		}
		color[id] = black
		order = append(order, n)
		return nil
	}

	if err := visit(s.outputNode); err != nil {
		s.planDirty = true // leave dirty so a future fix can recompute
		return err
	}

	// Always-playing orphans (spec §4.3): not reachable from output but
	// still ticked once per block.
	for _, n := range s.nodes {
		if color[n.ID()] == 0 && n.State() == node.StateAlwaysPlaying {
			if err := visit(n); err != nil {
				return err
			}
		}
	}

	s.plan = order
	return nil
}

// GetBlock renders one block into out (channels x blockSize, pre-sized by
// the caller) at the requested channel count, applying a mixing matrix if
// channels differs from the output node's own channel count (spec §4.3).
func (s *Server) GetBlock(out [][]float32, channels int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.planLocked(); err != nil {
		if s.log != nil {
			s.log.LogGraphf(debug.LogLevelError, "get_block: %v", err)
		}
		for _, o := range out {
			for i := range o {
				o[i] = 0
			}
		}
		return err
	}

	tick := s.clock.Advance()
	now := s.clock.TimeAtTick(tick - 1)
	blockSize := int(s.clock.BlockSize)
	sampleRate := float64(s.clock.SampleRate)

	for _, n := range s.plan {
		n.Tick(tick, now, blockSize, sampleRate)
	}

	if s.outputNode == nil {
		for _, o := range out {
			for i := range o {
				o[i] = 0
			}
		}
		return nil
	}

	s.mixLocked(out, channels)
	return nil
}

func (s *Server) mixLocked(out [][]float32, channels int) {
	srcChannels := s.outChannel
	if srcChannels == channels {
		for ch := 0; ch < channels; ch++ {
			copy(out[ch], s.outputNode.OutputBuffer(ch))
		}
		return
	}

	if m, ok := s.mixMatrices[mixKey{srcChannels, channels}]; ok {
		for outCh := 0; outCh < channels; outCh++ {
			dst := out[outCh]
			for i := range dst {
				dst[i] = 0
			}
			for inCh := 0; inCh < srcChannels; inCh++ {
				coeff := m.Coeffs[outCh*srcChannels+inCh]
				if coeff == 0 {
					continue
				}
				src := s.outputNode.OutputBuffer(inCh)
				for i, v := range src {
					dst[i] += v * coeff
				}
			}
		}
		return
	}

	// Fallback: identity on min(in,out) channels, zero-pad/truncate (spec
	// §4.3 "missing (in,out) pairs fall back to identity").
	n := srcChannels
	if channels < n {
		n = channels
	}
	for ch := 0; ch < channels; ch++ {
		if ch < n {
			copy(out[ch], s.outputNode.OutputBuffer(ch))
		} else {
			for i := range out[ch] {
				out[ch][i] = 0
			}
		}
	}
}

func registerDefaultMixMatrices(s *Server) {
	half := float32(math.Sqrt2 / 2)
	s.mixMatrices[mixKey{1, 2}] = MixMatrix{InChannels: 1, OutChannels: 2, Coeffs: []float32{1, 1}}
	s.mixMatrices[mixKey{2, 1}] = MixMatrix{InChannels: 2, OutChannels: 1, Coeffs: []float32{half, half}}
	s.mixMatrices[mixKey{2, 5}] = MixMatrix{
		InChannels: 2, OutChannels: 5,
		Coeffs: []float32{
			1, 0, // L -> L
			0, 1, // R -> R
			half, half, // L,R -> C
			0, 0, // -> Rs (+110)
			0, 0, // -> Ls (-110)
		},
	}
	s.mixMatrices[mixKey{5, 2}] = MixMatrix{
		InChannels: 5, OutChannels: 2,
		Coeffs: []float32{
			1, 0, half, 0, 0.5,
			0, 1, half, 0.5, 0,
		},
	}
	s.mixMatrices[mixKey{2, 7}] = MixMatrix{
		InChannels: 2, OutChannels: 7,
		Coeffs: []float32{
			1, 0,
			0, 1,
			half, half,
			0, 0,
			0, 0,
			0, 0.5,
			0.5, 0,
		},
	}
	s.mixMatrices[mixKey{7, 2}] = MixMatrix{
		InChannels: 7, OutChannels: 2,
		Coeffs: []float32{
			1, 0, half, 0, 0.3, 0, 0.3,
			0, 1, half, 0.3, 0, 0.3, 0,
		},
	}
}

package graph

import (
	"testing"

	"sonicgraph/internal/node"
	"sonicgraph/internal/serr"
)

type countingNode struct {
	*node.Base
	count *int
}

func newCountingNode(numInputs, numOutputs, blockSize int, count *int) *countingNode {
	n := &countingNode{Base: node.NewBase(numInputs, numOutputs, blockSize), count: count}
	n.Impl = n
	return n
}

func (n *countingNode) Process(b *node.Base, out [][]float32, in [][]float32) {
	*n.count++
	for _, o := range out {
		for i := range o {
			o[i] = 1
		}
	}
}

func TestPlanningTopologyOrdersParentsBeforeChildren(t *testing.T) {
	s, err := New(44100, 4, 2, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var c1, c2, c3 int
	a := newCountingNode(0, 1, 4, &c1)
	b := newCountingNode(1, 1, 4, &c2)
	out := newCountingNode(1, 1, 4, &c3)
	b.Connect(0, a, 0)
	out.Connect(0, b, 0)

	s.RegisterNode(a)
	s.RegisterNode(b)
	s.RegisterNode(out)
	s.SetOutputNode(out, 1)

	buf := [][]float32{make([]float32, 4)}
	if err := s.GetBlock(buf, 1); err != nil {
		t.Fatalf("GetBlock failed: %v", err)
	}

	pos := make(map[uint64]int)
	for i, n := range s.plan {
		pos[n.ID()] = i
	}
	if pos[a.ID()] >= pos[b.ID()] || pos[b.ID()] >= pos[out.ID()] {
		t.Fatalf("expected plan order a, b, out; got positions %v", pos)
	}
}

func TestGetBlockDetectsCycle(t *testing.T) {
	s, err := New(44100, 4, 2, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var c1, c2 int
	a := newCountingNode(1, 1, 4, &c1)
	b := newCountingNode(1, 1, 4, &c2)
	a.Connect(0, b, 0)
	b.Connect(0, a, 0)

	s.RegisterNode(a)
	s.RegisterNode(b)
	s.SetOutputNode(a, 1)

	buf := [][]float32{make([]float32, 4)}
	err = s.GetBlock(buf, 1)
	if !serr.Is(err, serr.GraphCycle) {
		t.Fatalf("expected graph_cycle error, got %v", err)
	}
}

func TestAlwaysPlayingOrphanTicksOncePerBlock(t *testing.T) {
	s, err := New(44100, 4, 2, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var orphanCount, outCount int
	orphan := newCountingNode(0, 1, 4, &orphanCount)
	orphan.SetState(node.StateAlwaysPlaying)
	out := newCountingNode(0, 1, 4, &outCount)

	s.RegisterNode(orphan)
	s.RegisterNode(out)
	s.SetOutputNode(out, 1)

	buf := [][]float32{make([]float32, 4)}
	s.GetBlock(buf, 1)
	s.GetBlock(buf, 1)

	if orphanCount != 2 {
		t.Fatalf("expected orphan ticked once per block (2 blocks), got %d", orphanCount)
	}
}

func TestMixMatrixMonoToStereoUpmix(t *testing.T) {
	s, err := New(44100, 4, 2, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var c int
	out := newCountingNode(0, 1, 4, &c)
	s.RegisterNode(out)
	s.SetOutputNode(out, 1)

	buf := [][]float32{make([]float32, 4), make([]float32, 4)}
	if err := s.GetBlock(buf, 2); err != nil {
		t.Fatalf("GetBlock failed: %v", err)
	}
	for ch := range buf {
		for _, v := range buf[ch] {
			if v != 1 {
				t.Fatalf("expected mono->stereo upmix to duplicate channel 1.0, got %v on ch %d", v, ch)
			}
		}
	}
}

func TestBackgroundWorkerRunsTasks(t *testing.T) {
	s, err := New(44100, 4, 2, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.Start()
	done := make(chan struct{})
	s.EnqueueBackground(func() { close(done) })
	<-done
	s.Stop()
}

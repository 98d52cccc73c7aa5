package node

import (
	"testing"

	"sonicgraph/internal/property"
)

// countingProcessor increments Count every time Process runs, so tests can
// assert a node was processed exactly once per tick regardless of how many
// paths reach it (diamond idempotence, spec §8).
type countingProcessor struct {
	Count int
}

func (c *countingProcessor) Process(b *Base, out [][]float32, in [][]float32) {
	c.Count++
	for _, o := range out {
		for i := range o {
			o[i] = 1
		}
	}
}

func newCountingNode(numInputs, numOutputs, blockSize int) (*Base, *countingProcessor) {
	b := NewBase(numInputs, numOutputs, blockSize)
	p := &countingProcessor{}
	b.Impl = p
	return b, p
}

func TestDiamondIdempotence(t *testing.T) {
	// source -> {a, b} -> sink (diamond): source must run exactly once.
	source, srcProc := newCountingNode(0, 1, 4)
	a, _ := newCountingNode(1, 1, 4)
	b, _ := newCountingNode(1, 1, 4)
	sink, _ := newCountingNode(2, 1, 4)

	a.Connect(0, source, 0)
	b.Connect(0, source, 0)
	sink.Connect(0, a, 0)
	sink.Connect(1, b, 0)

	sink.Tick(1, 0, 4, 44100)

	if srcProc.Count != 1 {
		t.Fatalf("expected source to process exactly once, got %d", srcProc.Count)
	}
}

func TestTickSkipsAlreadyProcessedTick(t *testing.T) {
	n, p := newCountingNode(0, 1, 4)
	n.Tick(5, 0, 4, 44100)
	n.Tick(5, 0, 4, 44100)
	if p.Count != 1 {
		t.Fatalf("expected single Process call for repeated tick number, got %d", p.Count)
	}
	n.Tick(6, 0, 4, 44100)
	if p.Count != 2 {
		t.Fatalf("expected new tick number to process again, got %d", p.Count)
	}
}

func TestPausedNodeZeroesOutput(t *testing.T) {
	n, _ := newCountingNode(0, 1, 4)
	n.SetState(StatePaused)
	n.OutputBuffer(0)[0] = 9
	n.Tick(1, 0, 4, 44100)
	for _, v := range n.OutputBuffer(0) {
		if v != 0 {
			t.Fatalf("expected paused node to zero its output, got %v", v)
		}
	}
}

func TestConnectRejectsOutOfRangeSlot(t *testing.T) {
	n, _ := newCountingNode(1, 1, 4)
	parent, _ := newCountingNode(0, 1, 4)
	if err := n.Connect(5, parent, 0); err == nil {
		t.Fatalf("expected error connecting to out-of-range slot")
	}
}

func TestMulAddPostProcessing(t *testing.T) {
	n, _ := newCountingNode(0, 1, 4)
	n.Property(MulSlot).Set(2.0)
	n.Property(AddSlot).Set(1.0)
	n.Tick(1, 0, 4, 44100)
	for _, v := range n.OutputBuffer(0) {
		if v != 3 { // process writes 1.0, then *2 + 1 = 3
			t.Fatalf("expected post-processed value 3, got %v", v)
		}
	}
}

// TestMulRampIsAppliedARate covers spec §8 scenario 5: a linear ramp
// scheduled on mul from 0 to 1 over 1 second must be applied per-sample,
// not once per block, so output[i] == i/sampleRate within 1e-6.
func TestMulRampIsAppliedARate(t *testing.T) {
	const blockSize = 256
	const sampleRate = 44100.0

	n, _ := newCountingNode(0, 1, blockSize)
	n.Property(MulSlot).Set(0)
	n.Property(MulSlot).Schedule(0, property.NewLinearRamp(1.0, 1.0))
	n.Tick(1, 0, blockSize, sampleRate)

	for i, v := range n.OutputBuffer(0) {
		want := float32(float64(i) / sampleRate)
		if diff := v - want; diff > 1e-6 || diff < -1e-6 {
			t.Fatalf("sample %d: expected %v, got %v", i, want, v)
		}
	}
}

func TestSubgraphProxiesOutput(t *testing.T) {
	inner, _ := newCountingNode(1, 1, 4)
	sg := NewSubgraph(inner, inner, 1)

	source, _ := newCountingNode(0, 1, 4)
	sg.Connect(0, source, 0)

	sg.Tick(1, 0, 4, 44100)

	for _, v := range sg.OutputBuffer(0) {
		if v != 1 {
			t.Fatalf("expected subgraph output to proxy internal output, got %v", v)
		}
	}
}

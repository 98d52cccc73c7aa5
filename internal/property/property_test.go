package property

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSetRangeRejectsOutOfDomain(t *testing.T) {
	p := NewNumeric(KindFloat, 0)
	p.SetRange(0, 1)
	if err := p.Set(0.5); err != nil {
		t.Fatalf("in-range Set failed: %v", err)
	}
	if err := p.Set(2.0); err == nil {
		t.Fatalf("expected range error, got nil")
	}
	if p.Get() != 0.5 {
		t.Fatalf("rejected Set must not change the held value, got %v", p.Get())
	}
}

func TestLinearRampReachesTarget(t *testing.T) {
	p := NewNumeric(KindFloat, 0)
	p.Schedule(0, NewLinearRamp(1.0, 1.0))

	got := p.ReadBlock(0, 5, 4, true) // 5 samples at 4Hz: t=0,0.25,0.5,0.75,1.0... (clipped)
	want := []float64{0, 0.25, 0.5, 0.75, 1.0}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Fatalf("sample %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestRampHoldsFinalValueAfterEnd(t *testing.T) {
	p := NewNumeric(KindFloat, 0)
	p.Schedule(0, NewLinearRamp(1.0, 0.5))
	p.ReadBlock(0, 4, 4, true) // covers t in [0, 1)
	v := p.valueAt(2.0)
	if !almostEqual(v, 1.0) {
		t.Fatalf("expected held final value 1.0 after ramp end, got %v", v)
	}
}

// TestAutomatorRestartability verifies that one automator instance,
// scheduled again on a second property with a different baseline, is
// restarted from that new baseline rather than reusing the first one
// (spec §4.1 restartability requirement).
func TestAutomatorRestartability(t *testing.T) {
	a := NewLinearRamp(10, 1.0)

	p1 := NewNumeric(KindFloat, 0)
	p1.Schedule(0, a)
	v1 := p1.ReadBlock(0, 1, 2, true)[0]

	p2 := NewNumeric(KindFloat, 5)
	p2.Schedule(0, a)
	v2 := p2.ReadBlock(0, 1, 2, true)[0]

	if almostEqual(v1, v2) {
		t.Fatalf("restarted automator with different baseline should diverge: got %v and %v", v1, v2)
	}
}

// TestBlockBoundaryInvariance checks that materializing a ramp in one big
// block produces the same samples as materializing it across several
// smaller blocks (spec §8 determinism invariant).
func TestBlockBoundaryInvariance(t *testing.T) {
	sr := 8.0
	total := 8

	whole := NewNumeric(KindFloat, 0)
	whole.Schedule(0, NewLinearRamp(1.0, 1.0))
	oneShot := whole.ReadBlock(0, total, sr, true)

	split := NewNumeric(KindFloat, 0)
	split.Schedule(0, NewLinearRamp(1.0, 1.0))
	var piecewise []float64
	blockSizes := []int{2, 3, 3}
	now := 0.0
	for _, bs := range blockSizes {
		chunk := split.ReadBlock(now, bs, sr, true)
		piecewise = append(piecewise, chunk...)
		now += float64(bs) / sr
	}

	if len(oneShot) != len(piecewise) {
		t.Fatalf("length mismatch: %d vs %d", len(oneShot), len(piecewise))
	}
	for i := range oneShot {
		if !almostEqual(oneShot[i], piecewise[i]) {
			t.Fatalf("sample %d diverged across block split: %v vs %v", i, oneShot[i], piecewise[i])
		}
	}
}

func TestCancelAfterTruncatesTimeline(t *testing.T) {
	p := NewNumeric(KindFloat, 0)
	p.Schedule(0, NewLinearRamp(1.0, 1.0))
	p.CancelAfter(0.5)
	v := p.valueAt(0.5)
	if !almostEqual(v, 0.5) {
		t.Fatalf("expected ramp clipped at cancel point to read 0.5, got %v", v)
	}
	v2 := p.valueAt(0.9)
	if !almostEqual(v2, 0.5) {
		t.Fatalf("expected value to hold at cancel point after truncation, got %v", v2)
	}
}

func TestExponentialRampAvoidsZero(t *testing.T) {
	p := NewNumeric(KindFloat, 0)
	p.Schedule(0, NewExponentialRamp(1.0, 1.0))
	v := p.valueAt(0)
	if v <= 0 {
		t.Fatalf("expected epsilon-nudged positive start, got %v", v)
	}
}

func TestEnvelopeBreakpoints(t *testing.T) {
	env := NewEnvelope(
		EnvelopeBreakpoint{TimeOffset: 0.1, Value: 1.0},
		EnvelopeBreakpoint{TimeOffset: 0.3, Value: 0.0},
	)
	p := NewNumeric(KindFloat, 0)
	p.Schedule(0, env)

	if v := p.valueAt(0.1); !almostEqual(v, 1.0) {
		t.Fatalf("expected attack peak 1.0 at t=0.1, got %v", v)
	}
	if v := p.valueAt(0.2); !almostEqual(v, 0.5) {
		t.Fatalf("expected mid-decay 0.5 at t=0.2, got %v", v)
	}
	if v := p.valueAt(0.3); !almostEqual(v, 0.0) {
		t.Fatalf("expected decay floor 0.0 at t=0.3, got %v", v)
	}
}

func TestWasModifiedSince(t *testing.T) {
	p := NewNumeric(KindFloat, 0)
	v0 := p.Version()
	if p.WasModifiedSince(v0) {
		t.Fatalf("no change yet, should not report modified")
	}
	p.Set(1)
	if !p.WasModifiedSince(v0) {
		t.Fatalf("expected change to bump version past v0")
	}
}

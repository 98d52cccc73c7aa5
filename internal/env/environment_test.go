package env

import (
	"math"
	"runtime"
	"testing"
	"time"
)

func TestWeakRefSweepRemovesDroppedSource(t *testing.T) {
	e := New(256, 44100, nil, func(f func()) { f() })

	func() {
		s := e.NewSource(1)
		_ = s
	}()

	// Force a collection so the source becomes eligible for the weak
	// pointer to resolve to nil (spec §8 "Environment weak-ref sweep").
	runtime.GC()
	runtime.GC()

	deadline := time.Now().Add(2 * time.Second)
	for len(e.sweep()) != 0 && time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(time.Millisecond)
	}

	if live := e.sweep(); len(live) != 0 {
		t.Fatalf("expected source set empty after drop+GC, got %d live", len(live))
	}
}

func TestEnvironmentAzimuthFromListenerSpace(t *testing.T) {
	e := New(256, 44100, nil, func(f func()) {})
	e.SetListener(Vec3{0, 0, 0}, Vec3{0, 0, -1}, Vec3{0, 1, 0})

	buf := make([]float32, 10)
	s := e.PlayAsync(buf, 1, 0, 0)
	e.Tick()

	az := s.Multipanner
	_ = az

	rel := Vec3{X: 1, Y: 0, Z: 0}
	azimuth, _, dist := toListenerSpace(rel, Vec3{0, 0, -1}, Vec3{0, 1, 0})
	if math.Abs(azimuth-90) > 1e-6 {
		t.Fatalf("expected azimuth 90, got %v", azimuth)
	}
	if math.Abs(dist-1) > 1e-6 {
		t.Fatalf("expected distance 1, got %v", dist)
	}
}

func TestPlayAsyncSourceFinishesAndIsRemoved(t *testing.T) {
	removed := make(chan struct{}, 1)
	e := New(4, 44100, nil, func(f func()) {
		f()
		select {
		case removed <- struct{}{}:
		default:
		}
	})

	buf := make([]float32, 4) // exactly one block long
	s := e.PlayAsync(buf, 0, 0, -1)

	preCount := len(e.sweep())

	s.Multipanner.Tick(1, 0, 4, 44100)
	if !s.player.finished() {
		t.Fatalf("expected one-shot buffer to finish after one block")
	}
	e.CheckOneShotCompletion()

	select {
	case <-removed:
	default:
		t.Fatalf("expected background deletion task to run")
	}

	if live := e.sweep(); len(live) != preCount-1 {
		t.Fatalf("expected source set size to return to pre-call value minus one, got %d", len(live))
	}
}

// Package env implements the Environment and Source abstractions: the
// world-to-listener transform, per-tick source position update, and
// asynchronous one-shot playback lifecycle (spec §4.7).
package env

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"weak"

	"sonicgraph/internal/hrtf"
	"sonicgraph/internal/node"
	"sonicgraph/internal/panner"
)

// Vec3 is a world-space position or direction.
type Vec3 struct{ X, Y, Z float64 }

// DistanceModel computes the gain applied to a source at distance d
// (spec §4.7: "e.g. 1/d with configurable rolloff and min-distance floor").
type DistanceModel struct {
	Rolloff     float64
	MinDistance float64
}

// Gain returns the distance-attenuation gain for d under this model.
func (m DistanceModel) Gain(d float64) float64 {
	if d < m.MinDistance {
		d = m.MinDistance
	}
	if d <= 0 {
		return 1
	}
	return 1 / (1 + m.Rolloff*(d-m.MinDistance))
}

var nextSourceID uint64

// Environment owns a world-to-listener transform and a weak-referenced set
// of registered Sources (spec §3, §4.7). Sources hold a strong reference
// back to their Environment, so clients may drop a Source freely while the
// Environment is guaranteed to outlive it (spec §4.7 ownership subtlety).
type Environment struct {
	mu sync.Mutex

	listenerPos Vec3
	listenerFwd Vec3
	listenerUp  Vec3

	distanceModel   DistanceModel
	defaultStrategy panner.Strategy
	dataset         *hrtf.Dataset

	// sources is keyed by a monotonically assigned source id rather than
	// pointer identity, resolving spec §9 Open Question 1: Go's weak
	// package (since 1.24) gives genuine identity-preserving weak
	// references, so this is the literal realization of the source's
	// std::owner_less<weak_ptr>-keyed set, not a simulation of one.
	sources map[uint64]weak.Pointer[Source]

	blockSize  int
	sampleRate float64
	enqueue    func(func())
}

// New creates an Environment rendering blockSize-sample blocks at
// sampleRate. enqueue is the Server's background-worker submission
// function, used to schedule deferred one-shot source teardown (spec
// §4.7 playAsync).
func New(blockSize int, sampleRate float64, dataset *hrtf.Dataset, enqueue func(func())) *Environment {
	return &Environment{
		listenerFwd:     Vec3{0, 0, -1},
		listenerUp:      Vec3{0, 1, 0},
		distanceModel:   DistanceModel{Rolloff: 1, MinDistance: 1},
		defaultStrategy: panner.StrategyStereo,
		dataset:         dataset,
		sources:         make(map[uint64]weak.Pointer[Source]),
		blockSize:       blockSize,
		sampleRate:      sampleRate,
		enqueue:         enqueue,
	}
}

// SetListener sets the listener's world-space position and orientation.
func (e *Environment) SetListener(pos, forward, up Vec3) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listenerPos, e.listenerFwd, e.listenerUp = pos, forward, up
}

// SetDistanceModel replaces the default distance-attenuation model applied
// to newly registered sources.
func (e *Environment) SetDistanceModel(m DistanceModel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.distanceModel = m
}

// RegisterSource adds src to the environment's weak-referenced source set
// and gives src a strong reference back to e.
func (e *Environment) RegisterSource(src *Source) {
	src.env = e
	src.id = atomic.AddUint64(&nextSourceID, 1)
	src.distanceModel = e.distanceModel

	e.mu.Lock()
	e.sources[src.id] = weak.Make(src)
	e.mu.Unlock()

	id := src.id
	runtime.AddCleanup(src, func(envRef *Environment) {
		envRef.mu.Lock()
		delete(envRef.sources, id)
		envRef.mu.Unlock()
	}, e)
}

// NewSource creates a Source with its own internal Multipanner (numInputs
// input slots feeding the pan) and registers it with e.
func (e *Environment) NewSource(numInputs int) *Source {
	mp := panner.New(numInputs, e.blockSize, e.dataset)
	s := &Source{Multipanner: mp}
	e.RegisterSource(s)
	return s
}

// sweep drops weak references that have already resolved to nil, so the
// live-only invariant holds even before a runtime.AddCleanup callback has
// run (spec §4.7 step 2, §8 "Environment weak-ref sweep").
func (e *Environment) sweep() []*Source {
	e.mu.Lock()
	defer e.mu.Unlock()
	live := make([]*Source, 0, len(e.sources))
	for id, wp := range e.sources {
		if s := wp.Value(); s != nil {
			live = append(live, s)
		} else {
			delete(e.sources, id)
		}
	}
	return live
}

// Tick refreshes every live source's spatial properties from the current
// listener transform (spec §4.7). A Bus registered as a Server's output
// node calls this from WillProcessParents, once per block before the tick
// protocol ticks the sources it wires in, so normal use through a Server
// never requires calling this directly; it remains exported for tests and
// other callers driving an Environment without a Bus.
func (e *Environment) Tick() {
	live := e.sweep()
	e.mu.Lock()
	listenerPos, fwd, up := e.listenerPos, e.listenerFwd, e.listenerUp
	e.mu.Unlock()

	for _, s := range live {
		rel := Vec3{
			X: s.Position.X - listenerPos.X,
			Y: s.Position.Y - listenerPos.Y,
			Z: s.Position.Z - listenerPos.Z,
		}
		az, elev, dist := toListenerSpace(rel, fwd, up)
		s.Multipanner.SetAzimuth(az)
		s.Multipanner.SetElevation(elev)
		s.lastGain = s.distanceModel.Gain(dist)
		s.Multipanner.SetGain(s.lastGain)
	}
}

// toListenerSpace converts a world-relative offset into the azimuth
// (degrees, clockwise from +Y... matching spec §4.7's "+Y clockwise"
// front reference when forward is -Z and up is +Y), elevation (degrees
// from horizon), and distance spherical coordinates.
func toListenerSpace(rel, fwd, up Vec3) (azimuth, elevation, distance float64) {
	distance = math.Sqrt(rel.X*rel.X + rel.Y*rel.Y + rel.Z*rel.Z)
	if distance == 0 {
		return 0, 0, 0
	}
	right := cross(fwd, up)
	rightComp := dot(rel, right)
	fwdComp := dot(rel, fwd)
	upComp := dot(rel, up)

	azimuth = math.Atan2(rightComp, fwdComp) * 180 / math.Pi
	horizDist := math.Sqrt(rightComp*rightComp + fwdComp*fwdComp)
	elevation = math.Atan2(upComp, horizDist) * 180 / math.Pi
	return azimuth, elevation, distance
}

func cross(a, b Vec3) Vec3 {
	return Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

func dot(a, b Vec3) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

// PlayAsync creates a transient one-shot Source playing buf (mono samples
// at the environment's sample rate) at world position (x,y,z), attaches it
// to the environment, and arranges for its own deletion via the
// background worker once playback reaches the end of buf (spec §4.7
// playAsync).
func (e *Environment) PlayAsync(buf []float32, x, y, z float64) *Source {
	player := newBufferPlayerNode(buf, e.blockSize)
	s := e.NewSource(1)
	s.Multipanner.Connect(0, player, 0)
	s.Position = Vec3{X: x, Y: y, Z: z}
	s.player = player
	s.oneShot = true
	return s
}

// CheckOneShotCompletion is called once per tick by the owning graph to
// sweep finished one-shot sources off the background worker (spec §4.7:
// "arranges for its own deletion... once the buffer reaches end").
func (e *Environment) CheckOneShotCompletion() {
	for _, s := range e.sweep() {
		if s.oneShot && s.player.finished() {
			e.enqueue(func() {
				e.mu.Lock()
				delete(e.sources, s.id)
				e.mu.Unlock()
			})
		}
	}
}

// Source is a single-channel input with a world-space position and an
// owned internal Multipanner (spec §3). It holds a strong reference back
// to its Environment (ownership subtlety, spec §4.7).
type Source struct {
	*panner.Multipanner

	id            uint64
	env           *Environment
	Position      Vec3
	distanceModel DistanceModel
	lastGain      float64

	player  *bufferPlayerNode
	oneShot bool
}

// bufferPlayerNode streams a fixed buffer once, then holds silence and
// reports itself finished.
type bufferPlayerNode struct {
	*node.Base
	buf []float32
	pos int
}

func newBufferPlayerNode(buf []float32, blockSize int) *bufferPlayerNode {
	n := &bufferPlayerNode{Base: node.NewBase(0, 1, blockSize), buf: buf}
	n.Impl = n
	return n
}

func (n *bufferPlayerNode) Process(b *node.Base, out [][]float32, in [][]float32) {
	o := out[0]
	for i := range o {
		if n.pos < len(n.buf) {
			o[i] = n.buf[n.pos]
			n.pos++
		} else {
			o[i] = 0
		}
	}
}

func (n *bufferPlayerNode) finished() bool { return n.pos >= len(n.buf) }

// Package node implements the Node abstraction and its tick protocol
// (spec §4.2): the unit of work the Server's plan walks once per block.
package node

import (
	"sync/atomic"

	"sonicgraph/internal/property"
	"sonicgraph/internal/serr"
)

// State is a node's processing state.
type State int

const (
	StatePlaying State = iota
	StatePaused
	StateAlwaysPlaying
)

// Reserved property slots for the post-processing step (tick protocol step
// 6): every node, subgraph nodes excepted, is scaled by mul and offset by
// add after Process runs. Negative so they never collide with a concrete
// node's own small non-negative property slots.
const (
	MulSlot = -1
	AddSlot = -2
)

// InputSlot describes one input connection: which parent node and which of
// that parent's outputs feeds this slot.
type InputSlot struct {
	Parent       Node
	ParentOutput int
	Suspended    bool
}

// Node is the capability set every graph participant exposes to the
// Server. Concrete node types obtain it by embedding *Base, which supplies
// the tick-protocol machinery spec §4.2 requires, and overriding Tick (and
// whichever accessors its composite shape demands, as Subgraph does) when
// the default single-node behavior does not apply (spec §9: deep
// inheritance collapses to one capability set with tag-selected behavior).
type Node interface {
	ID() uint64
	Connect(slot int, parent Node, parentOutput int) error
	Disconnect(slot int) error
	InputSlots() []InputSlot
	OutputCount() int
	OutputBuffer(i int) []float32
	State() State
	SetState(s State)
	Reset()
	LastProcessedTick() uint64
	Property(slot int) *property.Property
	SetProperty(slot int, p *property.Property)

	// Tick drives this node's subtree for one block: it is a no-op if
	// already run this tick (diamond idempotence), otherwise it runs the
	// full protocol of spec §4.2.
	Tick(tickNum uint64, now float64, blockSize int, sampleRate float64)
}

// Processor is implemented by a node's concrete behavior: Process reads
// the gathered parent output buffers (and, via the embedding Base,
// materialized properties) and writes this node's output buffers. It must
// not allocate, lock external mutexes, or perform I/O (spec §5).
type Processor interface {
	Process(b *Base, out [][]float32, in [][]float32)
}

// ParentHook is implemented by node behaviors that need to run logic
// before their parents are ticked (spec §4.2 step 2) — environments use
// this to refresh source positions.
type ParentHook interface {
	WillProcessParents(b *Base)
}

// Resetter is implemented by node behaviors that hold state needing
// explicit clearing on Reset (filter histories, delay-line contents,
// automation cursors) beyond what Base already clears.
type Resetter interface {
	ResetState()
}

var nextNodeID uint64

func allocID() uint64 { return atomic.AddUint64(&nextNodeID, 1) }

// Base implements the Node interface's bookkeeping: identity, input slots,
// output buffers, the property map, state, and the tick protocol itself.
// Concrete node types embed *Base and set Impl to their Processor.
type Base struct {
	id      uint64
	slots   []InputSlot
	outputs [][]float32
	props   map[int]*property.Property

	state     State
	suspended bool
	lastTick  uint64

	// isSubgraph marks a node that inherits its post-processing from an
	// internal output node instead of applying mul/add itself (spec §4.2
	// step 6, "subgraph nodes skip this step").
	isSubgraph bool

	// now and sampleRate capture this block's timing context so Processor
	// implementations can materialize a-rate properties without the tick
	// protocol threading them through every call signature.
	now        float64
	sampleRate float64

	// mulScratch and addScratch are reused across ticks by applyMulAdd so
	// a-rate mul/add materialization doesn't allocate once the buffers are
	// sized to the block.
	mulScratch []float64
	addScratch []float64

	Impl Processor
}

// Now returns the wall-clock time, in seconds, of this block's first
// sample — valid for the duration of the current Process call.
func (b *Base) Now() float64 { return b.now }

// SampleRate returns the sample rate this block is being rendered at.
func (b *Base) SampleRate() float64 { return b.sampleRate }

// NewBase allocates a Base with numInputs input slots and numOutputs
// output buffers of blockSize samples each, and default mul=1/add=0
// post-processing properties.
func NewBase(numInputs, numOutputs, blockSize int) *Base {
	outputs := make([][]float32, numOutputs)
	for i := range outputs {
		outputs[i] = make([]float32, blockSize)
	}
	b := &Base{
		id:      allocID(),
		slots:   make([]InputSlot, numInputs),
		outputs: outputs,
		props:   make(map[int]*property.Property),
	}
	b.props[MulSlot] = property.NewNumeric(property.KindFloat, 1.0)
	b.props[AddSlot] = property.NewNumeric(property.KindFloat, 0.0)
	return b
}

// MarkSubgraph flags this node as inheriting post-processing from its
// internal output rather than applying its own mul/add.
func (b *Base) MarkSubgraph() { b.isSubgraph = true }

func (b *Base) ID() uint64 { return b.id }

// Connect wires parent's parentOutput-th output buffer into input slot.
// It takes no lock of its own, and the Server does not call it under its
// lock: a Connect made while a Server is rendering is not serialized
// against that Server's GetBlock.
func (b *Base) Connect(slot int, parent Node, parentOutput int) error {
	if slot < 0 || slot >= len(b.slots) {
		return serr.New(serr.InvalidHandle, "input slot %d out of range", slot)
	}
	if parent == nil || parentOutput < 0 || parentOutput >= parent.OutputCount() {
		return serr.New(serr.InvalidHandle, "parent output %d out of range", parentOutput)
	}
	b.slots[slot].Parent = parent
	b.slots[slot].ParentOutput = parentOutput
	return nil
}

// Disconnect clears input slot, leaving it unconnected (reads as silence).
func (b *Base) Disconnect(slot int) error {
	if slot < 0 || slot >= len(b.slots) {
		return serr.New(serr.InvalidHandle, "input slot %d out of range", slot)
	}
	b.slots[slot] = InputSlot{}
	return nil
}

func (b *Base) InputSlots() []InputSlot { return b.slots }

// SetInputCount resizes the input slot array in place to n slots,
// preserving existing connections at indices < min(old, new) and leaving
// any new slots unconnected. Because this mutates b.slots on the same
// Base rather than replacing Base wholesale, a Tick already in progress
// on this node (e.g. one resizing its own slots from WillProcessParents,
// before the tick protocol's parent-recursion step reads b.slots) sees
// the new slot count immediately instead of operating on a stale copy.
func (b *Base) SetInputCount(n int) {
	if n == len(b.slots) {
		return
	}
	fresh := make([]InputSlot, n)
	copy(fresh, b.slots)
	b.slots = fresh
}

func (b *Base) OutputCount() int { return len(b.outputs) }

func (b *Base) OutputBuffer(i int) []float32 { return b.outputs[i] }

func (b *Base) State() State { return b.state }

func (b *Base) SetState(s State) { b.state = s }

// SetSuspended controls whether this node's input slot traversal and
// processing are skipped for one tick without changing its State (spec
// §4.2 step 3/4: "respecting suspended").
func (b *Base) SetSuspended(v bool) { b.suspended = v }

func (b *Base) LastProcessedTick() uint64 { return b.lastTick }

// Property returns the property bound to slot, or nil if none is bound.
func (b *Base) Property(slot int) *property.Property { return b.props[slot] }

// SetProperty binds p to slot, replacing any existing binding.
func (b *Base) SetProperty(slot int, p *property.Property) { b.props[slot] = p }

// Reset clears automation cursors on every bound property and lets the
// concrete behavior clear its own internal state (filter histories, delay
// contents) via Resetter, but leaves connections and property current
// values intact (spec §4.2 reset semantics).
func (b *Base) Reset() {
	for _, p := range b.props {
		p.CancelAfter(0)
	}
	if r, ok := b.Impl.(Resetter); ok {
		r.ResetState()
	}
}

// Tick implements the protocol of spec §4.2. now is the wall-clock time in
// seconds of this block's first sample, used to materialize properties.
func (b *Base) Tick(tickNum uint64, now float64, blockSize int, sampleRate float64) {
	if b.lastTick == tickNum {
		return // diamond idempotence: already ran this tick
	}
	b.lastTick = tickNum
	b.now = now
	b.sampleRate = sampleRate

	if hook, ok := b.Impl.(ParentHook); ok {
		hook.WillProcessParents(b)
	}

	for i := range b.slots {
		s := &b.slots[i]
		if s.Parent != nil && !s.Suspended {
			s.Parent.Tick(tickNum, now, blockSize, sampleRate)
		}
	}

	if b.state == StatePaused || b.suspended {
		for _, out := range b.outputs {
			for i := range out {
				out[i] = 0
			}
		}
		return
	}

	ins := make([][]float32, len(b.slots))
	for i, s := range b.slots {
		if s.Parent != nil {
			ins[i] = s.Parent.OutputBuffer(s.ParentOutput)
		}
	}

	if b.Impl != nil {
		b.Impl.Process(b, b.outputs, ins)
	}

	if !b.isSubgraph {
		b.applyMulAdd(now, blockSize, sampleRate)
	}
}

// applyMulAdd scales and offsets this tick's output by the mul/add
// properties (spec §4.2 step 6). mul/add are materialized a-rate whenever
// either currently has an automator on its timeline, since a constant
// k-rate sample would flatten an in-progress ramp to its block-start value
// for the whole block (spec §8 scenario 5, "output[i] = i/44100");
// properties with an empty timeline take a k-rate fast path instead, since
// they are certainly constant for the block.
func (b *Base) applyMulAdd(now float64, blockSize int, sampleRate float64) {
	mulP := b.props[MulSlot]
	addP := b.props[AddSlot]
	if mulP == nil && addP == nil {
		return
	}

	if !mulP.HasScheduledAutomation() && !addP.HasScheduledAutomation() {
		mul := mulP.ReadBlock(now, blockSize, sampleRate, false)[0]
		add := addP.ReadBlock(now, blockSize, sampleRate, false)[0]
		if mul == 1.0 && add == 0.0 {
			return
		}
		m, a := float32(mul), float32(add)
		for _, out := range b.outputs {
			for i := range out {
				out[i] = out[i]*m + a
			}
		}
		return
	}

	if len(b.mulScratch) != blockSize {
		b.mulScratch = make([]float64, blockSize)
		b.addScratch = make([]float64, blockSize)
	}
	mulP.ReadBlockInto(b.mulScratch, now, blockSize, sampleRate, true)
	addP.ReadBlockInto(b.addScratch, now, blockSize, sampleRate, true)
	for _, out := range b.outputs {
		for i := range out {
			out[i] = out[i]*float32(b.mulScratch[i]) + float32(b.addScratch[i])
		}
	}
}

package env

import "sonicgraph/internal/node"

// Bus is the Environment's output node: it sums every live source's
// Multipanner output into a single fixed-channel bus, and implements
// node.ParentHook so the Server drives the environment's own per-tick
// refresh (spec §4.2 step 2, §2: "Server advances tick -> invokes pre-tick
// hooks (environments) -> walks the plan"). Without this, a client using
// graph.Server directly would get no source position/gain refresh; with
// it, refreshing and one-shot teardown happen as a side effect of ticking
// the graph, not as something the caller must remember to call.
//
// Bus expects every attached source to render channels output channels
// (e.g. 2 for stereo); a source switched to a strategy with a different
// channel count is silently disconnected until it switches back, rather
// than corrupting the mix.
type Bus struct {
	*node.Base

	env      *Environment
	channels int
	attached map[uint64]int // source id -> first input slot
}

// NewBus creates an output bus rendering channels-channel blocks of
// blockSize samples, summing every source currently or later registered
// with env.
func NewBus(env *Environment, channels, blockSize int) *Bus {
	bus := &Bus{
		Base:     node.NewBase(0, channels, blockSize),
		env:      env,
		channels: channels,
		attached: make(map[uint64]int),
	}
	bus.Impl = bus
	return bus
}

// WillProcessParents refreshes every live source's spatial properties and
// sweeps finished one-shots before the tick protocol ticks this bus's
// parents (spec §4.2 step 2), then reconciles the bus's input slots
// against the current live source set so newly registered sources are
// ticked this same tick and dropped ones stop being read.
func (bus *Bus) WillProcessParents(b *node.Base) {
	bus.env.Tick()
	bus.env.CheckOneShotCompletion()
	bus.syncSources()
}

// syncSources resizes the bus's own input slots in place (via
// Base.SetInputCount, not a Base swap) so the parent-recursion step that
// runs immediately after WillProcessParents sees the updated wiring within
// the same tick.
func (bus *Bus) syncSources() {
	live := bus.env.sweep()
	if bus.unchanged(live) {
		return
	}

	bus.Base.SetInputCount(len(live) * bus.channels)
	attached := make(map[uint64]int, len(live))
	for i, s := range live {
		base := i * bus.channels
		attached[s.id] = base
		match := s.Multipanner.OutputCount() == bus.channels
		for ch := 0; ch < bus.channels; ch++ {
			if match {
				bus.Base.Connect(base+ch, s.Multipanner, ch)
			} else {
				bus.Base.Disconnect(base + ch)
			}
		}
	}
	bus.attached = attached
}

func (bus *Bus) unchanged(live []*Source) bool {
	if len(live) != len(bus.attached) {
		return false
	}
	for _, s := range live {
		base, ok := bus.attached[s.id]
		if !ok {
			return false
		}
		// A source whose channel count changed since it was wired must be
		// rewired (disconnected, or reconnected once it matches again).
		connected := bus.channels > 0 && bus.Base.InputSlots()[base].Parent != nil
		if connected != (s.Multipanner.OutputCount() == bus.channels) {
			return false
		}
	}
	return true
}

// Process sums every attached source's channel outputs into out.
func (bus *Bus) Process(b *node.Base, out [][]float32, in [][]float32) {
	for ch := 0; ch < bus.channels; ch++ {
		dst := out[ch]
		for i := range dst {
			dst[i] = 0
		}
	}
	for slot, src := range in {
		if src == nil {
			continue
		}
		ch := slot % bus.channels
		dst := out[ch]
		for i, v := range src {
			dst[i] += v
		}
	}
}

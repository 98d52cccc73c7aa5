// Package clock tracks the single cadence a Server renders on: the block
// tick. It is the audio-engine analogue of a cycle-accurate scheduler that
// only ever has one subsystem to schedule, so it collapses to a monotonic
// counter plus a mixahead budget.
package clock

import "sonicgraph/internal/serr"

// BlockClock tracks the tick counter a Server advances once per rendered
// block, and records a mixahead depth: how many blocks a host-output
// backend may render in advance of the device's playback pointer. The
// audiodev backend does not read it; it applies its own fixed limit of 4
// queued blocks.
type BlockClock struct {
	// Tick is the number of blocks rendered since the clock was created or
	// last Reset. It is strictly monotonic for the lifetime of a Server.
	Tick uint64

	// SampleRate is the number of samples per second per channel.
	SampleRate uint32

	// BlockSize is the number of samples per channel rendered per tick.
	BlockSize uint32

	// Mixahead is the number of blocks the engine may render ahead of the
	// device's playback pointer to absorb host scheduling jitter.
	Mixahead uint32
}

// NewBlockClock creates a clock for the given sample rate, block size and
// mixahead depth. mixahead of 0 is coerced to 1 (at least one block ahead).
func NewBlockClock(sampleRate, blockSize, mixahead uint32) (*BlockClock, error) {
	if sampleRate == 0 {
		return nil, serr.New(serr.Range, "clock: sample rate must be > 0")
	}
	if blockSize == 0 {
		return nil, serr.New(serr.Range, "clock: block size must be > 0")
	}
	if mixahead == 0 {
		mixahead = 1
	}
	return &BlockClock{
		SampleRate: sampleRate,
		BlockSize:  blockSize,
		Mixahead:   mixahead,
	}, nil
}

// Advance moves the clock forward by one block tick and returns the new
// tick count. Server.GetBlock calls it once per block, after planning
// succeeds and before the plan's nodes are ticked; the returned value is
// that block's tick number.
func (c *BlockClock) Advance() uint64 {
	c.Tick++
	return c.Tick
}

// BlockDuration returns the wall-clock duration of one block in seconds.
func (c *BlockClock) BlockDuration() float64 {
	return float64(c.BlockSize) / float64(c.SampleRate)
}

// TimeAtTick returns tick*BlockDuration in seconds: the time at which the
// block following the given tick begins. Ticks are numbered from 1, so the
// block of tick n starts at TimeAtTick(n-1).
func (c *BlockClock) TimeAtTick(tick uint64) float64 {
	return float64(tick) * c.BlockDuration()
}

// Reset zeroes the tick counter. Connections, properties, and node
// current-values are unaffected; callers reset those independently.
func (c *BlockClock) Reset() {
	c.Tick = 0
}

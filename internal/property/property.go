// Package property implements the typed parameter cells and automation
// timelines that feed every Node in the graph: the per-sample/per-block
// materialization pipeline described in spec §4.1.
package property

import (
	"sonicgraph/internal/serr"
)

// Kind identifies the value domain a Property holds. Automation (Schedule)
// is only meaningful for the numeric kinds (Int, Float, Double); String and
// BufferRef properties are set directly and never materialize a-rate.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindDouble
	KindFloat3
	KindFloat6
	KindString
	KindBufferRef
)

// Range constrains the values a numeric Property may be Set to, and the
// values its automation timeline may produce (automation is clipped, never
// rejected).
type Range struct {
	Min, Max float64
}

func (r Range) contains(v float64) bool { return v >= r.Min && v <= r.Max }

func (r Range) clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Property is a typed, versioned parameter cell with an optional
// automation timeline. All numeric properties (Int/Float/Double) share the
// same float64 storage and automation machinery; Float3/Float6/String/
// BufferRef hold their own value types and are never automated.
type Property struct {
	kind Kind

	numeric float64
	vec3    [3]float64
	vec6    [6]float64
	str     string
	bufRef  interface{}

	hasRange bool
	rng      Range
	def      float64

	onChange func(v float64)

	tl          timeline
	version     uint64
	currentTime float64 // end time of the most recently materialized block
}

// NewNumeric creates a k/a-rate capable numeric Property of the given kind
// (Int, Float, or Double) with initial value def.
func NewNumeric(kind Kind, def float64) *Property {
	return &Property{kind: kind, numeric: def, def: def}
}

// NewFloat3 creates a 3-vector property (e.g. a world-space position).
func NewFloat3(x, y, z float64) *Property {
	return &Property{kind: KindFloat3, vec3: [3]float64{x, y, z}}
}

// NewFloat6 creates a 6-vector property (e.g. a packed transform).
func NewFloat6(v [6]float64) *Property {
	return &Property{kind: KindFloat6, vec6: v}
}

// NewString creates a string property.
func NewString(s string) *Property {
	return &Property{kind: KindString, str: s}
}

// NewBufferRef creates a buffer-reference property.
func NewBufferRef(ref interface{}) *Property {
	return &Property{kind: KindBufferRef, bufRef: ref}
}

// Kind reports the property's value domain.
func (p *Property) Kind() Kind { return p.kind }

// SetRange constrains future Set calls and automation clipping to [min,max].
func (p *Property) SetRange(min, max float64) {
	p.hasRange = true
	p.rng = Range{Min: min, Max: max}
}

// OnChange installs a callback invoked after every successful Set.
func (p *Property) OnChange(fn func(v float64)) { p.onChange = fn }

// Version returns the current change-version counter. Nodes compare this
// against a previously observed value to detect change-edges without the
// Server needing to broadcast events (spec §4.1, was_modified predicate).
func (p *Property) Version() uint64 { return p.version }

// WasModifiedSince reports whether the property has changed since the
// caller last observed lastSeen (typically a Node's own cached Version()).
func (p *Property) WasModifiedSince(lastSeen uint64) bool { return p.version != lastSeen }

// HasScheduledAutomation reports whether the property's timeline currently
// holds any scheduled automator, including ones that have already ended; a
// CancelAfter that removes every entry makes it false again. Callers use
// this to choose a k-rate fast path when a property is certainly constant,
// falling back to a-rate materialization whenever automation might be live
// within the block.
func (p *Property) HasScheduledAutomation() bool { return len(p.tl.entries) > 0 }

// Set writes a new numeric value, enforcing the configured range. It is a
// range error, not a silent clip, when a Set write falls outside range —
// only automation overshoot is clipped (spec §4.1).
func (p *Property) Set(value float64) error {
	if p.kind != KindInt && p.kind != KindFloat && p.kind != KindDouble {
		return serr.New(serr.TypeMismatch, "property is not numeric")
	}
	if p.hasRange && !p.rng.contains(value) {
		return serr.New(serr.Range, "value %v outside range [%v,%v]", value, p.rng.Min, p.rng.Max)
	}
	p.numeric = value
	p.version++
	if p.onChange != nil {
		p.onChange(value)
	}
	return nil
}

// Get returns the property's current base value (ignoring any in-flight
// automation — equivalent to reading at the last materialized block end).
func (p *Property) Get() float64 { return p.numeric }

// SetFloat3 writes a 3-vector value and bumps the version.
func (p *Property) SetFloat3(x, y, z float64) error {
	if p.kind != KindFloat3 {
		return serr.New(serr.TypeMismatch, "property is not float3")
	}
	p.vec3 = [3]float64{x, y, z}
	p.version++
	return nil
}

// GetFloat3 returns the current 3-vector value.
func (p *Property) GetFloat3() [3]float64 { return p.vec3 }

// SetString writes a string value and bumps the version.
func (p *Property) SetString(s string) error {
	if p.kind != KindString {
		return serr.New(serr.TypeMismatch, "property is not a string")
	}
	p.str = s
	p.version++
	return nil
}

// GetString returns the current string value.
func (p *Property) GetString() string { return p.str }

// Schedule adds automator to the timeline with absolute start time
// startTime. If the resulting end time has already fully elapsed relative
// to the most recently materialized block, the automator is silently
// dropped — its final_value is already the property's current value
// (spec §7, partial-failure policy). Any existing automation at or after
// startTime is superseded, keeping the timeline's non-overlap invariant
// trivially true.
func (p *Property) Schedule(startTime float64, a Automator) {
	endTime := startTime + a.Duration()
	if endTime < p.currentTime {
		return
	}
	p.tl.truncateAfter(startTime)
	p.tl.insert(entry{startTime: startTime, endTime: endTime, automator: a})
	p.version++
}

// CancelAfter truncates the automation timeline at t: any automator that
// would start at or after t is removed, and one straddling t has its
// effective end clipped to t, after which the property holds the value that
// automator had reached at t. Connections and the current value are left
// intact (spec §4.1/§4.2 reset semantics analogue for automation alone).
func (p *Property) CancelAfter(t float64) {
	e, clipping := p.tl.entryCovering(t)
	clipping = clipping && e.startTime < t
	var held float64
	if clipping {
		held = p.valueAt(t)
	}
	p.tl.truncateAfter(t)
	if clipping {
		// A zero-length set entry ending at t makes the held value, not the
		// clipped automator's own final value, what lastEndedBefore reports.
		p.tl.insert(entry{startTime: t, endTime: t, automator: &SetAutomator{Target: held}, started: true})
	}
	p.version++
}

// ReadBlock materializes the property for one block starting at time now.
// aRate requests one sample per frame; otherwise a single k-rate sample
// (the value at the block's start) is produced. The returned slice is
// freshly allocated per call: callers on the audio thread should reuse a
// scratch buffer via ReadBlockInto instead.
func (p *Property) ReadBlock(now float64, blockSize int, sampleRate float64, aRate bool) []float64 {
	n := 1
	if aRate {
		n = blockSize
	}
	out := make([]float64, n)
	p.ReadBlockInto(out, now, blockSize, sampleRate, aRate)
	return out
}

// ReadBlockInto is the allocation-free counterpart to ReadBlock: dst must
// have length blockSize when aRate is true, or length >= 1 otherwise.
func (p *Property) ReadBlockInto(dst []float64, now float64, blockSize int, sampleRate float64, aRate bool) {
	dt := 1.0 / sampleRate
	n := 1
	if aRate {
		n = blockSize
	}
	for i := 0; i < n; i++ {
		t := now + float64(i)*dt
		dst[i] = p.valueAt(t)
	}
	p.currentTime = now + float64(blockSize)*dt
	// Advance the held base value to whatever the timeline settles on by
	// the end of this block, so properties with no further automation
	// read back their last automated value via Get().
	p.numeric = p.valueAt(p.currentTime)
}

func (p *Property) valueAt(t float64) float64 {
	for i := range p.tl.entries {
		e := &p.tl.entries[i]
		if t >= e.startTime && t < e.endTime {
			if !e.started {
				baseline := p.tl.baselineAt(e.startTime, p.numeric)
				e.automator.Start(baseline, e.startTime)
				e.started = true
			}
			return p.clamp(e.automator.ValueAt(t))
		}
	}
	if v, ok := p.tl.lastEndedBefore(t); ok {
		return p.clamp(v)
	}
	return p.clamp(p.numeric)
}

func (p *Property) clamp(v float64) float64 {
	if p.hasRange {
		return p.rng.clamp(v)
	}
	return v
}

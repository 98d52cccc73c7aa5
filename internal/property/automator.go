package property

// Automator is a pure function of time bound to a property. Start binds it
// to a baseline (the property's value the instant the automator becomes
// active) and an absolute start time; ValueAt then yields the value at any
// t in [startTime, startTime+Duration()], and FinalValue yields the value
// the automator settles on once it ends. Automators must be restartable:
// calling Start again with a different baseline must produce a consistent,
// independent sequence — callers rely on this to re-schedule the same
// automator value after a cancel.
//
// New variants are added by implementing these four methods; nothing else
// in the timeline or property code needs to change.
type Automator interface {
	// Start binds the automator to the value the property holds at t0 and
	// the absolute time t0 at which this automator becomes active.
	Start(baseline, t0 float64)

	// ValueAt returns the automator's output at absolute time t. Behavior
	// is only defined for t >= the t0 passed to the most recent Start.
	ValueAt(t float64) float64

	// FinalValue returns the value the automator settles on once its
	// Duration has elapsed. It must not depend on when ValueAt is called.
	FinalValue() float64

	// Duration returns the automator's span in seconds from its start
	// time. Zero means the automator takes effect instantaneously.
	Duration() float64
}

// entry is one scheduled automator occupying [startTime, endTime) on a
// property's timeline. entries are kept sorted by startTime and are
// strictly non-overlapping, per the Property invariant.
type entry struct {
	startTime float64
	endTime   float64
	automator Automator
	started   bool
}

// timeline is the ordered sequence of automators scheduled on a property.
type timeline struct {
	entries []entry
}

// insert places a new entry in start-time order. Callers are responsible
// for ensuring the [startTime, endTime) span does not overlap an existing
// entry (Property.Schedule truncates/rejects overlaps before calling this).
func (tl *timeline) insert(e entry) {
	i := 0
	for i < len(tl.entries) && tl.entries[i].startTime < e.startTime {
		i++
	}
	tl.entries = append(tl.entries, entry{})
	copy(tl.entries[i+1:], tl.entries[i:])
	tl.entries[i] = e
}

// truncateAfter removes the portion of the timeline at or after t: entries
// that start at or after t are dropped entirely, and an entry straddling t
// has its endTime clipped to t (cancel_after semantics, spec.md §4.1).
func (tl *timeline) truncateAfter(t float64) {
	kept := tl.entries[:0]
	for _, e := range tl.entries {
		switch {
		case e.startTime >= t:
			// dropped
		case e.endTime > t:
			e.endTime = t
			kept = append(kept, e)
		default:
			kept = append(kept, e)
		}
	}
	tl.entries = kept
}

// entryCovering returns the entry active at time t, if any. Entries are
// half-open [startTime, endTime); a t exactly at an entry's endTime belongs
// to whatever comes next (or the held final value if nothing follows).
func (tl *timeline) entryCovering(t float64) (entry, bool) {
	// Linear scan: per-block timelines are short (a handful of scheduled
	// automators), so this is cheaper and simpler than a binary search and
	// keeps the hot path allocation-free.
	for _, e := range tl.entries {
		if t >= e.startTime && t < e.endTime {
			return e, true
		}
	}
	return entry{}, false
}

// lastEndedBefore returns the final value of the last entry whose endTime
// is <= t, or ok=false if no entry has ended yet by t.
func (tl *timeline) lastEndedBefore(t float64) (float64, bool) {
	found := false
	var v float64
	for _, e := range tl.entries {
		if e.endTime <= t {
			v = e.automator.FinalValue()
			found = true
		}
	}
	return v, found
}

// baselineAt computes the value a new automator starting at t0 should use
// as its baseline: the final value of whatever ended most recently before
// t0, or the property's base/default value if nothing has run yet.
func (tl *timeline) baselineAt(t0, base float64) float64 {
	if v, ok := tl.lastEndedBefore(t0); ok {
		return v
	}
	return base
}

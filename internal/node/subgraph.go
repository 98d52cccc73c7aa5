package node

// Subgraph wraps a hidden internal (input, output) pair of real nodes
// behind a single Node facade (spec §3 "Subgraph node"): setting the
// external input rewires the internal input node's connection, and reading
// the external output proxies straight to the internal output node's
// buffer. Multipanner is built on this.
type Subgraph struct {
	*Base

	// internalIn is the node whose input slots are rewired when a client
	// connects to this Subgraph's external input slots.
	internalIn Node
	// internalOut is the node whose output buffers this Subgraph's
	// OutputBuffer proxies to.
	internalOut Node
}

// NewSubgraph creates a Subgraph with numInputs external input slots that
// proxy straight through to internalIn's own slots 0..numInputs-1, and
// whose outputs proxy to internalOut.
func NewSubgraph(internalIn, internalOut Node, numInputs int) *Subgraph {
	s := &Subgraph{
		Base:        NewBase(numInputs, internalOut.OutputCount(), 0),
		internalIn:  internalIn,
		internalOut: internalOut,
	}
	s.MarkSubgraph()
	return s
}

// Connect rewires the internal input node's corresponding slot instead of
// storing the parent on the Subgraph itself, so the internal graph sees
// the real connection (spec §3: "setting the external input rewires the
// internal input").
func (s *Subgraph) Connect(slot int, parent Node, parentOutput int) error {
	if err := s.internalIn.Connect(slot, parent, parentOutput); err != nil {
		return err
	}
	return s.Base.Connect(slot, parent, parentOutput)
}

func (s *Subgraph) Disconnect(slot int) error {
	if err := s.internalIn.Disconnect(slot); err != nil {
		return err
	}
	return s.Base.Disconnect(slot)
}

// OutputBuffer proxies to the internal output node (spec §3: "reading the
// external output proxies to the internal output").
func (s *Subgraph) OutputBuffer(i int) []float32 { return s.internalOut.OutputBuffer(i) }

func (s *Subgraph) OutputCount() int { return s.internalOut.OutputCount() }

// Tick ticks the internal output node's subtree (which transitively ticks
// internalIn through the graph's own connections), then marks itself
// processed for diamond idempotence at this facade level.
func (s *Subgraph) Tick(tickNum uint64, now float64, blockSize int, sampleRate float64) {
	if s.Base.lastTick == tickNum {
		return
	}
	s.internalOut.Tick(tickNum, now, blockSize, sampleRate)
	s.Base.lastTick = tickNum
}

package hrtf

import (
	"io"
	"os"
	"sync"

	"sonicgraph/internal/serr"
)

type cacheKey struct {
	path     string
	targetSR uint32
}

// Cache deduplicates loaded datasets by (path, target_sr), guarded by its
// own mutex (spec §5: "a process-wide cache guarded by its own mutex" —
// realized here as an explicit, named sync.Mutex rather than sync.Map, so
// the guarding is literal and visible at the call site).
type Cache struct {
	mu   sync.Mutex
	data map[cacheKey]*Dataset
}

// NewCache creates an empty dataset cache.
func NewCache() *Cache {
	return &Cache{data: make(map[cacheKey]*Dataset)}
}

// Get returns the cached dataset for (path, targetSR), loading it from disk
// on first request (linear-phase-converted when linearPhaseConv is set on
// that first request; the flag is not part of the cache key).
func (c *Cache) Get(path string, targetSR uint32, linearPhaseConv bool) (*Dataset, error) {
	key := cacheKey{path: path, targetSR: targetSR}

	c.mu.Lock()
	if ds, ok := c.data[key]; ok {
		c.mu.Unlock()
		return ds, nil
	}
	c.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, serr.Wrap(serr.IO, err, "hrtf: opening %s", path)
	}
	defer f.Close()

	ds, err := Load(f, targetSR, linearPhaseConv)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.data[key]; ok {
		return existing, nil
	}
	c.data[key] = ds
	return ds, nil
}

// LoadReader is like Get but bypasses the path-keyed cache, for callers
// supplying their own io.Reader (e.g. tests, embedded datasets).
func LoadReader(r io.Reader, targetSR uint32, linearPhaseConv bool) (*Dataset, error) {
	return Load(r, targetSR, linearPhaseConv)
}

// scratchPool hands out FFT scratch buffers that linearPhase reuses across
// calls during dataset load, instead of allocating one per HRIR (spec
// §4.5: "per-thread scratch buffers... owned per worker thread"). A
// sync.Pool is shared by all goroutines; it does not bind a buffer to one.
var scratchPool = sync.Pool{
	New: func() interface{} { return make(complexBuf, 0, 4096) },
}

// getScratch fetches a pooled FFT scratch buffer, growing it if
// necessary, sized to length n.
func getScratch(n int) complexBuf {
	buf := scratchPool.Get().(complexBuf)
	if cap(buf) < n {
		buf = make(complexBuf, n)
	} else {
		buf = buf[:n]
	}
	return buf
}

// putScratch returns buf to the pool for reuse.
func putScratch(buf complexBuf) { scratchPool.Put(buf) }

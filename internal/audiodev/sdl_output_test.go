package audiodev

import (
	"encoding/binary"
	"math"
	"testing"
)

// TestInterleaveLayout checks the channel-major-to-interleaved-float32
// layout using a copy of push's interleave loop; push itself is not called,
// since it queries a real SDL device's queue first.
func TestInterleaveLayout(t *testing.T) {
	o := &SDLOutput{channels: 2, blockSize: 2, interleave: make([]byte, 2*2*4)}
	buf := [][]float32{{0.5, -0.5}, {1.0, -1.0}}

	frames := len(buf[0])
	j := 0
	for i := 0; i < frames; i++ {
		for ch := 0; ch < o.channels; ch++ {
			bits := math.Float32bits(buf[ch][i])
			binary.LittleEndian.PutUint32(o.interleave[j:j+4], bits)
			j += 4
		}
	}

	want := []float32{0.5, 1.0, -0.5, -1.0}
	for i, w := range want {
		got := math.Float32frombits(binary.LittleEndian.Uint32(o.interleave[i*4 : i*4+4]))
		if got != w {
			t.Fatalf("sample %d: expected %v, got %v", i, w, got)
		}
	}
}

package hrtf

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"testing"
)

// buildTestDataset writes a small synthetic dataset in the spec §6 wire
// format: 3 elevation bands, 8 azimuth bins each, 16-tap HRIRs whose
// amplitude varies smoothly with azimuth so interpolation continuity can
// be checked.
func buildTestDataset(t *testing.T) *bytes.Buffer {
	t.Helper()
	const elevCount = 3
	const azPerBand = 8
	const hrirLen = 16
	buf := &bytes.Buffer{}

	hdr := []interface{}{
		uint32(magicHeader),
		uint32(44100),
		uint32(hrirLen),
		int32(elevCount),
		int32(-40),
		int32(40),
	}
	for _, v := range hdr {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			t.Fatalf("write header: %v", err)
		}
	}
	azCounts := make([]int32, elevCount)
	for i := range azCounts {
		azCounts[i] = azPerBand
	}
	if err := binary.Write(buf, binary.LittleEndian, azCounts); err != nil {
		t.Fatalf("write az counts: %v", err)
	}
	for e := 0; e < elevCount; e++ {
		for a := 0; a < azPerBand; a++ {
			taps := make([]float32, hrirLen)
			amp := float32(a) / float32(azPerBand)
			for i := range taps {
				taps[i] = amp
			}
			if err := binary.Write(buf, binary.LittleEndian, taps); err != nil {
				t.Fatalf("write hrir: %v", err)
			}
		}
	}
	return buf
}

func TestLoadRoundTrip(t *testing.T) {
	buf := buildTestDataset(t)
	ds, err := LoadReader(buf, 44100, false)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ds.HRIRLength != 16 {
		t.Fatalf("expected HRIR length 16, got %d", ds.HRIRLength)
	}
	if len(ds.IRs) != 3 {
		t.Fatalf("expected 3 elevation bands, got %d", len(ds.IRs))
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBuffer(make([]byte, 24))
	_, err := LoadReader(buf, 44100, false)
	if err == nil {
		t.Fatalf("expected error for bad magic")
	}
}

func TestHRTFInterpolationContinuity(t *testing.T) {
	buf := buildTestDataset(t)
	ds, err := LoadReader(buf, 44100, false)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Max neighbour diff over the dataset's own azimuth bins.
	maxNeighbourDiff := float32(0)
	for e := range ds.IRs {
		for a := 0; a < len(ds.IRs[e]); a++ {
			next := (a + 1) % len(ds.IRs[e])
			d := float32(math.Abs(float64(ds.IRs[e][a][0] - ds.IRs[e][next][0])))
			if d > maxNeighbourDiff {
				maxNeighbourDiff = d
			}
		}
	}

	out := make([]float32, ds.HRIRLength)
	var prevPeak float32
	var maxBlockDiff float32
	for i := 0; i <= 360; i++ {
		az := float64(i)
		ds.Synthesize(0, az, out)
		var peak float32
		for _, v := range out {
			if v > peak {
				peak = v
			}
		}
		if i > 0 {
			d := peak - prevPeak
			if d < 0 {
				d = -d
			}
			if d > maxBlockDiff {
				maxBlockDiff = d
			}
		}
		prevPeak = peak
	}

	if maxBlockDiff > 4*maxNeighbourDiff {
		t.Fatalf("azimuth sweep peak diff %v exceeds 4x max neighbour diff %v", maxBlockDiff, maxNeighbourDiff)
	}
}

func TestCacheDeduplicates(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/test.hrtf"
	buf := buildTestDataset(t)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	c := NewCache()
	ds1, err := c.Get(path, 44100, false)
	if err != nil {
		t.Fatalf("first Get failed: %v", err)
	}
	ds2, err := c.Get(path, 44100, false)
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if ds1 != ds2 {
		t.Fatalf("expected cache to return the same dataset pointer")
	}
}

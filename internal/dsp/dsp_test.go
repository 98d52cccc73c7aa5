package dsp

import (
	"math"
	"testing"
)

func TestDelayIdentity(t *testing.T) {
	sr := 44100.0
	dl := NewDelayLine(sr, 1.0)
	dl.SetDelay(0.01, 0) // interpolation_time == 0 jumps immediately

	in := make([]float32, 1000)
	in[0] = 1.0
	out := make([]float32, 1000)
	dl.Process(out, in)

	first := -1
	for i, v := range out {
		if v != 0 {
			first = i
			break
		}
	}
	if first != 441 {
		t.Fatalf("expected first nonzero sample at index 441, got %d", first)
	}
	if math.Abs(float64(out[441])-1.0) > 1e-6 {
		t.Fatalf("expected impulse value ~1.0, got %v", out[441])
	}
}

func TestThreeBandEQFlatPassthrough(t *testing.T) {
	sr := 44100.0
	eq := NewThreeBandEQ(1, sr, 200, 1000, 5000)
	in := make([]float32, 512)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / sr))
	}
	buf := make([]float32, len(in))
	copy(buf, in)
	eq.Process(0, buf)

	for i := range in {
		if math.Abs(float64(buf[i]-in[i])) > 1e-5 {
			t.Fatalf("sample %d: expected flat passthrough, got %v want %v", i, buf[i], in[i])
		}
	}
}

func TestAmplitudePannerStereoSweep(t *testing.T) {
	p := NewAmplitudePanner(StereoLayout)

	cases := []struct {
		az   float64
		l, r float64
	}{
		{-30, 1, 0},
		{30, 0, 1},
		{0, math.Sqrt(0.5), math.Sqrt(0.5)},
	}
	for _, c := range cases {
		g := p.Gains(c.az)
		if math.Abs(float64(g[0])-c.l) > 1e-6 || math.Abs(float64(g[1])-c.r) > 1e-6 {
			t.Fatalf("az=%v: got L=%v R=%v want L=%v R=%v", c.az, g[0], g[1], c.l, c.r)
		}
	}
}

func TestAmplitudePannerEnergyInvariant(t *testing.T) {
	for _, layout := range []SpeakerLayout{StereoLayout, Layout51, Layout71} {
		p := NewAmplitudePanner(layout)
		for az := -180.0; az < 180; az += 5 {
			g := p.Gains(az)
			var sumSq float64
			for _, v := range g {
				sumSq += float64(v) * float64(v)
			}
			if math.Abs(sumSq-1.0) > 1e-6 {
				t.Fatalf("layout %+v az=%v: sum(gain^2)=%v, want ~1", layout, az, sumSq)
			}
		}
	}
}

func TestResamplerNoOpFastPath(t *testing.T) {
	r := NewResampler(1, 44100, 44100)
	in := [][]float32{{1, 2, 3, 4}}
	out := [][]float32{make([]float32, 4)}
	r.Process(in, out)
	for i := range in[0] {
		if out[0][i] != in[0][i] {
			t.Fatalf("no-op resample mismatch at %d: got %v want %v", i, out[0][i], in[0][i])
		}
	}
}

func TestFirstOrderLowpassUnityDC(t *testing.T) {
	f := NewFirstOrderFilter()
	f.ConfigureLowpass(500, 44100)
	in := make([]float32, 4096)
	for i := range in {
		in[i] = 1.0
	}
	out := make([]float32, len(in))
	f.Process(out, in)
	if math.Abs(float64(out[len(out)-1])-1.0) > 1e-3 {
		t.Fatalf("expected settled DC gain ~1.0, got %v", out[len(out)-1])
	}
}

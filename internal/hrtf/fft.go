package hrtf

import "math"

// fft is a minimal iterative radix-2 Cooley-Tukey transform used only for
// the linear-phase conversion step (spec §4.5: "FFT -> take magnitude as
// real part -> IFFT"). No third-party FFT library appears anywhere in the
// example pack, so this is implemented directly against the standard
// library's complex128 — see DESIGN.md for the justification.
type complexBuf []complex128

// nextPow2 returns the smallest power of two >= n.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func fft(a complexBuf, invert bool) {
	n := len(a)
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			a[i], a[j] = a[j], a[i]
		}
	}
	for length := 2; length <= n; length <<= 1 {
		ang := 2 * math.Pi / float64(length)
		if invert {
			ang = -ang
		}
		wlen := complex(math.Cos(ang), math.Sin(ang))
		for i := 0; i < n; i += length {
			w := complex(1, 0)
			for j := 0; j < length/2; j++ {
				u := a[i+j]
				v := a[i+j+length/2] * w
				a[i+j] = u + v
				a[i+j+length/2] = u - v
				w *= wlen
			}
		}
	}
	if invert {
		for i := range a {
			a[i] /= complex(float64(n), 0)
		}
	}
}

// linearPhase converts the minimum/mixed-phase HRIR taps into their
// linear-phase equivalent by taking the magnitude spectrum as a purely
// real spectrum and inverse-transforming (spec §4.5). taps is modified in
// place and may be zero-padded internally to the next power of two.
func linearPhase(taps []float32) {
	n := nextPow2(len(taps))
	buf := getScratch(n)
	defer putScratch(buf)
	for i := range buf {
		buf[i] = 0
	}
	for i, t := range taps {
		buf[i] = complex(float64(t), 0)
	}
	fft(buf, false)
	for i := range buf {
		buf[i] = complex(real(buf[i])*real(buf[i])+imag(buf[i])*imag(buf[i]), 0)
		buf[i] = complex(math.Sqrt(real(buf[i])), 0)
	}
	fft(buf, true)
	for i := range taps {
		taps[i] = float32(real(buf[i]))
	}
}

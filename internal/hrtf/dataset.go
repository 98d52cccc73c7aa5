// Package hrtf implements HRTF dataset loading and bilinear coefficient
// synthesis (spec §4.5, §6).
package hrtf

import (
	"encoding/binary"
	"io"
	"math"

	"sonicgraph/internal/dsp"
	"sonicgraph/internal/serr"
)

const magicHeader = 0x48525446 // "HRTF" packed big-endian-read as uint32

// Dataset is an immutable, shared HRTF dataset: per-elevation azimuth
// counts and the impulse responses themselves, indexed
// [elevBand][azimuthBin][tap] (spec §3).
type Dataset struct {
	SampleRate    uint32
	HRIRLength    uint32
	MinElevation  int32
	MaxElevation  int32
	AzimuthCounts []int32
	IRs           [][][]float32 // [elev][az][tap]
}

// Load reads a dataset from r in the wire format of spec §6, and resamples
// every HRIR to targetSR if it differs from the file's own sample rate. If
// linearPhaseConv is true, each HRIR's phase is stripped per spec §4.5
// ("keep only amplitude for linear-phase mode").
func Load(r io.Reader, targetSR uint32, linearPhaseConv bool) (*Dataset, error) {
	var hdr struct {
		Magic        uint32
		SampleRate   uint32
		HRIRLength   uint32
		ElevCount    int32
		MinElevation int32
		MaxElevation int32
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, serr.Wrap(serr.IO, err, "hrtf: reading header")
	}
	if hdr.Magic != magicHeader {
		return nil, serr.New(serr.UnknownFormat, "hrtf: bad magic %#x", hdr.Magic)
	}
	if hdr.ElevCount <= 0 {
		return nil, serr.New(serr.UnknownFormat, "hrtf: elev_count must be > 0")
	}

	azCounts := make([]int32, hdr.ElevCount)
	if err := binary.Read(r, binary.LittleEndian, azCounts); err != nil {
		return nil, serr.Wrap(serr.IO, err, "hrtf: reading azimuth_counts")
	}

	irs := make([][][]float32, hdr.ElevCount)
	for e := 0; e < int(hdr.ElevCount); e++ {
		irs[e] = make([][]float32, azCounts[e])
		for a := 0; a < int(azCounts[e]); a++ {
			taps := make([]float32, hdr.HRIRLength)
			if err := binary.Read(r, binary.LittleEndian, taps); err != nil {
				return nil, serr.Wrap(serr.IO, err, "hrtf: reading HRIR [%d][%d]", e, a)
			}
			irs[e][a] = taps
		}
	}

	ds := &Dataset{
		SampleRate:    hdr.SampleRate,
		HRIRLength:    hdr.HRIRLength,
		MinElevation:  hdr.MinElevation,
		MaxElevation:  hdr.MaxElevation,
		AzimuthCounts: azCounts,
		IRs:           irs,
	}

	if targetSR != 0 && targetSR != ds.SampleRate {
		ds.resample(targetSR)
	}
	if linearPhaseConv {
		for e := range ds.IRs {
			for a := range ds.IRs[e] {
				linearPhase(ds.IRs[e][a])
			}
		}
	}
	return ds, nil
}

func (ds *Dataset) resample(targetSR uint32) {
	rs := dsp.NewResampler(1, float64(ds.SampleRate), float64(targetSR))
	newLen := int(math.Round(float64(ds.HRIRLength) * float64(targetSR) / float64(ds.SampleRate)))
	for e := range ds.IRs {
		for a := range ds.IRs[e] {
			in := [][]float32{ds.IRs[e][a]}
			out := [][]float32{make([]float32, newLen)}
			rs.Process(in, out)
			ds.IRs[e][a] = out[0]
		}
	}
	ds.SampleRate = targetSR
	ds.HRIRLength = uint32(newLen)
}

// bandWeight locates the two elevation bands bracketing elevDeg (clamped
// to [MinElevation, MaxElevation]) and the blend weight toward the upper
// band (spec §4.5 step 1).
func (ds *Dataset) bandWeight(elevDeg float64) (lo, hi int, w float64) {
	n := len(ds.AzimuthCounts)
	clamped := elevDeg
	if clamped < float64(ds.MinElevation) {
		clamped = float64(ds.MinElevation)
	}
	if clamped > float64(ds.MaxElevation) {
		clamped = float64(ds.MaxElevation)
	}
	span := float64(ds.MaxElevation - ds.MinElevation)
	if span <= 0 || n == 1 {
		return 0, 0, 0
	}
	pos := (clamped - float64(ds.MinElevation)) / span * float64(n-1)
	lo = int(math.Floor(pos))
	if lo >= n-1 {
		return n - 1, n - 1, 0
	}
	hi = lo + 1
	w = pos - float64(lo)
	return lo, hi, w
}

// azBinWeight locates the two azimuth bins (within elevation band bandIdx)
// bracketing azDeg (wrapped into [0,360)) and the blend weight toward the
// upper bin (spec §4.5 step 2).
func (ds *Dataset) azBinWeight(bandIdx int, azDeg float64) (lo, hi int, w float64) {
	count := int(ds.AzimuthCounts[bandIdx])
	if count <= 1 {
		return 0, 0, 0
	}
	az := math.Mod(azDeg, 360)
	if az < 0 {
		az += 360
	}
	step := 360.0 / float64(count)
	pos := az / step
	lo = int(math.Floor(pos)) % count
	hi = (lo + 1) % count
	w = pos - math.Floor(pos)
	return lo, hi, w
}

// Synthesize bilinearly blends the four bracketing HRIRs for (elevation,
// azimuth) into out, one tap per element of out, so out must not be longer
// than HRIRLength; a length of exactly HRIRLength yields the whole response
// (spec §4.5 steps 1-3).
func (ds *Dataset) Synthesize(elevation, azimuth float64, out []float32) {
	eLo, eHi, we := ds.bandWeight(elevation)
	aLo0, aHi0, wa0 := ds.azBinWeight(eLo, azimuth)
	aLo1, aHi1, wa1 := ds.azBinWeight(eHi, azimuth)

	ir00 := ds.IRs[eLo][aLo0]
	ir01 := ds.IRs[eLo][aHi0]
	ir10 := ds.IRs[eHi][aLo1]
	ir11 := ds.IRs[eHi][aHi1]

	for i := range out {
		lowBand := float64(ir00[i])*(1-wa0) + float64(ir01[i])*wa0
		highBand := float64(ir10[i])*(1-wa1) + float64(ir11[i])*wa1
		out[i] = float32(lowBand*(1-we) + highBand*we)
	}
}

// SynthesizeStereo synthesizes both ears for a listener-relative azimuth,
// applying the mirrored-dataset convention az_right = -az_left (spec §4.5
// step 3).
func (ds *Dataset) SynthesizeStereo(elevation, azimuth float64, left, right []float32) {
	ds.Synthesize(elevation, azimuth, left)
	ds.Synthesize(elevation, -azimuth, right)
}

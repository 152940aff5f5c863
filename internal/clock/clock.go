// Package clock converts between the three time domains the engine
// reasons about: samples (integer, monotonic since engine start),
// musical position (bars + fractional beats), and wall seconds.
package clock

import "math"

// TimeSignature is beatsPerBar over beatUnit, e.g. 4/4 or 3/4.
type TimeSignature struct {
	BeatsPerBar int
	BeatUnit    int
}

// Resolution is a snap grid for rounding a fractional bar position.
type Resolution int

const (
	ResBar Resolution = iota
	ResHalf
	ResQuarter
	ResEighth
	ResSixteenth
	ResTriplet8th
	ResTriplet16th
	ResAdaptive
)

// TimeMap converts among samples, bars, and seconds for a single Song,
// which has a constant tempo and time signature for the lifetime of
// this core (tempo maps are a future extension, out of scope here).
type TimeMap struct {
	SampleRate   float64
	TempoBPM     float64
	TimeSig      TimeSignature
}

// New builds a TimeMap. Panics are never raised here; callers are
// expected to validate sampleRate/tempo/beatsPerBar > 0 before playing
// (score.Validate does not check these), since this type is
// reconstructed on every snapshot install and must stay
// allocation-cheap.
func New(sampleRate, tempoBPM float64, sig TimeSignature) TimeMap {
	return TimeMap{SampleRate: sampleRate, TempoBPM: tempoBPM, TimeSig: sig}
}

// SamplesPerBar returns sampleRate * 60 * beatsPerBar / tempoBpm.
func (t TimeMap) SamplesPerBar() float64 {
	return t.SampleRate * 60.0 * float64(t.TimeSig.BeatsPerBar) / t.TempoBPM
}

// SamplesPerBeat returns the sample length of a single beat.
func (t TimeMap) SamplesPerBeat() float64 {
	return t.SamplesPerBar() / float64(t.TimeSig.BeatsPerBar)
}

// Bar returns the fractional, 1-based bar position at an absolute
// sample count.
func (t TimeMap) Bar(atSample int64) float64 {
	return 1.0 + float64(atSample)/t.SamplesPerBar()
}

// Sample returns the absolute sample position of a fractional, 1-based
// bar position — the inverse of Bar.
func (t TimeMap) Sample(bar float64) int64 {
	return int64(math.Round((bar - 1.0) * t.SamplesPerBar()))
}

// Seconds returns the wall-clock time, in seconds, of an absolute
// sample count.
func (t TimeMap) Seconds(atSample int64) float64 {
	return float64(atSample) / t.SampleRate
}

// SampleAtSeconds is the inverse of Seconds.
func (t TimeMap) SampleAtSeconds(seconds float64) int64 {
	return int64(math.Round(seconds * t.SampleRate))
}

// SnappedBar rounds rawBar to the given grid resolution. Adaptive
// resolution is resolved by the caller (the UI supplies a pixel-width
// threshold that has no meaning in the core); SnappedBar treats
// ResAdaptive as ResSixteenth.
func (t TimeMap) SnappedBar(rawBar float64, res Resolution) float64 {
	div := gridDivisor(res)
	if div <= 0 {
		return rawBar
	}
	whole := math.Floor(rawBar)
	frac := rawBar - whole
	step := 1.0 / div
	snappedFrac := math.Round(frac/step) * step
	if snappedFrac >= 1.0 {
		whole++
		snappedFrac = 0
	}
	return whole + snappedFrac
}

func gridDivisor(res Resolution) float64 {
	switch res {
	case ResBar:
		return 1
	case ResHalf:
		return 2
	case ResQuarter:
		return 4
	case ResEighth:
		return 8
	case ResSixteenth, ResAdaptive:
		return 16
	case ResTriplet8th:
		return 12
	case ResTriplet16th:
		return 24
	default:
		return 1
	}
}

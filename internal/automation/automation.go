// Package automation implements the sample-accurate breakpoint
// evaluator described in §4.6 of the spec: for an active lane, compute
// the parameter value at the start and end of a callback's bar range
// and, if they differ, split the callback into segments at the
// breakpoints that fall inside it.
package automation

import (
	"math"

	"github.com/schollz/looperd/internal/score"
)

// Segment is one emitted setParameter point: the bar at which the
// value takes effect and the interpolated value there.
type Segment struct {
	Bar   float64
	Value float64
}

// ValueAt interpolates lane's piecewise curve at the given bar
// position. Positions before the first breakpoint hold the first
// breakpoint's value; positions after the last hold the last.
func ValueAt(lane score.AutomationLane, bar float64) float64 {
	bps := lane.Breakpoints
	if len(bps) == 0 {
		return 0
	}
	if bar <= bps[0].PositionBars {
		return bps[0].Value
	}
	last := bps[len(bps)-1]
	if bar >= last.PositionBars {
		return last.Value
	}
	for i := 1; i < len(bps); i++ {
		if bar <= bps[i].PositionBars {
			return interpolate(bps[i-1], bps[i], bar)
		}
	}
	return last.Value
}

func interpolate(a, b score.Breakpoint, bar float64) float64 {
	span := b.PositionBars - a.PositionBars
	if span <= 0 {
		return b.Value
	}
	u := (bar - a.PositionBars) / span
	switch b.Curve {
	case score.CurveHold:
		return a.Value
	case score.CurveExponential:
		return expCurve(a.Value, b.Value, u)
	case score.CurveSCurve:
		return sCurve(a.Value, b.Value, u)
	default: // score.CurveLinear
		return a.Value + (b.Value-a.Value)*u
	}
}

func expCurve(a, b, u float64) float64 {
	const epsilon = 1e-6
	lo, hi := a, b
	if lo < epsilon {
		lo = epsilon
	}
	if hi < epsilon {
		hi = epsilon
	}
	return lo * math.Pow(hi/lo, u)
}

func sCurve(a, b, u float64) float64 {
	shaped := u * u * (3 - 2*u) // smoothstep
	return a + (b-a)*shaped
}

// Segments emits the value at startBar, one Segment per breakpoint
// strictly inside (startBar, endBar), and the value at endBar, giving
// the Scheduler a sample-accurate set of setParameter points to apply
// within one callback (§4.6). If the lane is flat across the whole
// range, Segments returns a single point at startBar.
func Segments(lane score.AutomationLane, startBar, endBar float64) []Segment {
	startVal := ValueAt(lane, startBar)
	endVal := ValueAt(lane, endBar)
	if startVal == endVal && !hasBreakpointIn(lane, startBar, endBar) {
		return []Segment{{Bar: startBar, Value: startVal}}
	}

	segs := []Segment{{Bar: startBar, Value: startVal}}
	for _, bp := range lane.Breakpoints {
		if bp.PositionBars > startBar && bp.PositionBars < endBar {
			segs = append(segs, Segment{Bar: bp.PositionBars, Value: bp.Value})
		}
	}
	segs = append(segs, Segment{Bar: endBar, Value: endVal})
	return segs
}

func hasBreakpointIn(lane score.AutomationLane, startBar, endBar float64) bool {
	for _, bp := range lane.Breakpoints {
		if bp.PositionBars > startBar && bp.PositionBars < endBar {
			return true
		}
	}
	return false
}

// ResolvePath checks whether path's effect slot exists in track's
// current effect chain; per §4.6, a lane targeting a missing slot is
// silently inactive for the callback rather than an error.
func ResolvePath(path score.EffectPath, track score.Track) (exists bool) {
	if path.IsInstrument() {
		return true // the instrument slot is implicit and always addressable
	}
	idx := *path.EffectIndex
	return idx >= 0 && idx < len(track.EffectChain)
}

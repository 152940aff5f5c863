package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/looperd/internal/score"
)

func lane(bps ...score.Breakpoint) score.AutomationLane {
	return score.AutomationLane{Breakpoints: bps}
}

func TestValueAtLinear(t *testing.T) {
	l := lane(
		score.Breakpoint{PositionBars: 1, Value: 0, Curve: score.CurveLinear},
		score.Breakpoint{PositionBars: 5, Value: 1, Curve: score.CurveLinear},
	)
	assert.Equal(t, 0.0, ValueAt(l, 1))
	assert.Equal(t, 1.0, ValueAt(l, 5))
	assert.InDelta(t, 0.5, ValueAt(l, 3), 1e-9)
	assert.Equal(t, 0.0, ValueAt(l, 0)) // clamps before first
	assert.Equal(t, 1.0, ValueAt(l, 10)) // clamps after last
}

func TestValueAtHold(t *testing.T) {
	l := lane(
		score.Breakpoint{PositionBars: 1, Value: 0.2},
		score.Breakpoint{PositionBars: 5, Value: 0.9, Curve: score.CurveHold},
	)
	assert.Equal(t, 0.2, ValueAt(l, 3))
}

func TestSegmentsSplitsAtBreakpoints(t *testing.T) {
	l := lane(
		score.Breakpoint{PositionBars: 1, Value: 0},
		score.Breakpoint{PositionBars: 2, Value: 0.5},
		score.Breakpoint{PositionBars: 3, Value: 1},
	)
	segs := Segments(l, 1, 3)
	assert.Len(t, segs, 3)
	assert.Equal(t, 1.0, segs[0].Bar)
	assert.Equal(t, 2.0, segs[1].Bar)
	assert.Equal(t, 3.0, segs[2].Bar)

	// Property 6: on this rising lane the emitted values never decrease.
	for i := 1; i < len(segs); i++ {
		assert.GreaterOrEqual(t, segs[i].Value, segs[i-1].Value)
	}
}

func TestSegmentsFlatRangeReturnsSinglePoint(t *testing.T) {
	l := lane(score.Breakpoint{PositionBars: 1, Value: 0.5})
	segs := Segments(l, 10, 11)
	assert.Len(t, segs, 1)
}

func TestResolvePathMissingSlotIsInactive(t *testing.T) {
	idx := 3
	path := score.EffectPath{EffectIndex: &idx}
	track := score.Track{EffectChain: []score.EffectNode{{}}}
	assert.False(t, ResolvePath(path, track))
}

func TestResolvePathInstrumentAlwaysExists(t *testing.T) {
	path := score.EffectPath{}
	assert.True(t, ResolvePath(path, score.Track{}))
}

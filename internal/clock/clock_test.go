package clock

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSamplesPerBar(t *testing.T) {
	tm := New(48000, 120, TimeSignature{BeatsPerBar: 4, BeatUnit: 4})
	// 48000 * 60 * 4 / 120 = 96000
	assert.Equal(t, 96000.0, tm.SamplesPerBar())
}

func TestBarRoundTrip(t *testing.T) {
	cases := []struct {
		sampleRate float64
		tempo      float64
		sig        TimeSignature
	}{
		{44100, 120, TimeSignature{4, 4}},
		{48000, 95.5, TimeSignature{3, 4}},
		{96000, 174, TimeSignature{7, 8}},
	}
	for _, c := range cases {
		t.Run("", func(t *testing.T) {
			tm := New(c.sampleRate, c.tempo, c.sig)
			for _, s := range []int64{0, 1, 1000, 48000, 123456} {
				bar := tm.Bar(s)
				back := tm.SampleAtSeconds(tm.Seconds(tm.Sample(bar)))
				// Property 2: bar(seconds(bar(s))*sampleRate) == bar(s) within 1 sample.
				assert.InDelta(t, float64(s), float64(back), 1.0)
			}
		})
	}
}

func TestSnappedBar(t *testing.T) {
	tm := New(48000, 120, TimeSignature{4, 4})
	t.Run("snap to sixteenth", func(t *testing.T) {
		got := tm.SnappedBar(1.0+1.0/16.0+0.001, ResSixteenth)
		assert.InDelta(t, 1.0+1.0/16.0, got, 1e-9)
	})
	t.Run("snap rolls into next bar", func(t *testing.T) {
		got := tm.SnappedBar(1.99, ResHalf)
		assert.InDelta(t, 2.0, got, 1e-9)
	})
	t.Run("bar resolution snaps to a whole bar", func(t *testing.T) {
		got := tm.SnappedBar(3.6, ResBar)
		assert.True(t, math.Abs(got-4.0) < 1e-9 || math.Abs(got-3.0) < 1e-9)
	})
}

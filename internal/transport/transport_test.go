package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/looperd/internal/clock"
)

func TestPlayNoCountIn(t *testing.T) {
	tm := clock.New(48000, 120, clock.TimeSignature{4, 4})
	tr := New()
	tr.Play(1, tm)
	assert.Equal(t, Playing, tr.State())
	assert.Equal(t, int64(0), tr.SamplePosition())
}

func TestCountInThenPlayingAtBar1(t *testing.T) {
	// S2: 100 BPM, 3/4, countInBars=2.
	tm := clock.New(48000, 100, clock.TimeSignature{3, 4})
	tr := New()
	tr.SetCountInBars(2)
	tr.Play(1, tm)
	assert.Equal(t, CountIn, tr.State())
	assert.Less(t, tr.SamplePosition(), int64(0))

	samplesPerBar := int(tm.SamplesPerBar())
	// Advance one bar at a time; count-in should end exactly when the
	// pre-roll is consumed, landing the sample counter at 0 (bar 1).
	var result AdvanceResult
	for i := 0; i < 2; i++ {
		result = tr.Advance(samplesPerBar, tm)
	}
	assert.True(t, result.CountInEnded)
	assert.Equal(t, Playing, tr.State())
	assert.Equal(t, int64(0), tr.SamplePosition())
}

func TestLoopWrapsAtExactBoundary(t *testing.T) {
	// S1: 120 BPM 4/4, loop [1,5), playing in one-bar callbacks.
	tm := clock.New(48000, 120, clock.TimeSignature{4, 4})
	tr := New()
	tr.Play(1, tm)
	tr.SetLoop(&LoopRange{Lo: 1, Hi: 5})

	samplesPerBar := int(tm.SamplesPerBar())
	wraps := 0
	for i := 0; i < 12; i++ {
		result := tr.Advance(samplesPerBar, tm)
		if result.LoopWrapped {
			wraps++
			assert.Equal(t, int64(0), tr.SamplePosition())
		}
	}
	assert.Equal(t, 3, wraps)
}

func TestPublishedBarUsesOutputLatency(t *testing.T) {
	tm := clock.New(48000, 120, clock.TimeSignature{4, 4})
	tr := New()
	tr.Play(1, tm)
	tr.SetOutputLatency(int64(tm.SamplesPerBar())) // one full bar of latency
	tr.PublishBar(tm)
	assert.InDelta(t, 2.0, tr.PublishedBar(), 1e-6)
}

func TestSeekWhilePlaying(t *testing.T) {
	tm := clock.New(48000, 120, clock.TimeSignature{4, 4})
	tr := New()
	tr.Play(1, tm)
	tr.Seek(9, tm)
	assert.InDelta(t, 9.0, tm.Bar(tr.SamplePosition()), 1e-9)
}

// Package transport implements the Transport state machine of §4.4:
// play/stop/seek/count-in/loop, the authoritative RT sample position,
// and the output-latency-calibrated bar published for the UI.
package transport

import (
	"math"
	"sync/atomic"

	"github.com/schollz/looperd/internal/clock"
)

// State is one of the Transport's four states.
type State int

const (
	Stopped State = iota
	CountIn
	Playing
	Paused
)

// LoopRange is an armed [Lo, Hi) bar loop.
type LoopRange struct {
	Lo, Hi float64
}

// Transport owns the playhead sample counter and the lock-free cells
// the UI reads without ever touching the audio thread (§9 "explicit
// published state").
type Transport struct {
	state          atomic.Int32
	barsRemaining  atomic.Int32 // valid while state == CountIn
	samplePosition atomic.Int64 // RT sample position: authoritative, advanced every callback
	publishedBar   atomic.Uint64 // math.Float64bits of the UI-facing bar
	loop           atomic.Pointer[LoopRange]
	countInBars    atomic.Int32
	countInEnd     atomic.Int64 // sample of atBar; count-in hands over to Playing here
	outputLatency  atomic.Int64 // samples
}

// New returns a Stopped Transport.
func New() *Transport {
	t := &Transport{}
	t.state.Store(int32(Stopped))
	return t
}

// State reports the current transport state.
func (t *Transport) State() State { return State(t.state.Load()) }

// SamplePosition is the exact sample about to be rendered (authoritative).
func (t *Transport) SamplePosition() int64 { return t.samplePosition.Load() }

// SetCountInBars configures how many metronome-only bars precede Play.
func (t *Transport) SetCountInBars(n int) { t.countInBars.Store(int32(n)) }

// SetLoop arms or clears the loop range.
func (t *Transport) SetLoop(r *LoopRange) { t.loop.Store(r) }

// Loop returns the currently-armed loop range, or nil.
func (t *Transport) Loop() *LoopRange { return t.loop.Load() }

// SetOutputLatency records the audio driver's output latency in
// samples, used to calibrate the published bar (§4.4 "Playhead
// calibration").
func (t *Transport) SetOutputLatency(samples int64) { t.outputLatency.Store(samples) }

// Play transitions Stopped -> CountIn -> Playing (if countInBars>0) or
// Stopped -> Playing directly (if countInBars==0). It is a no-op from
// any other state. atBar is where musical bar 1 of the song should
// land; count-in bars are scheduled as negative sample positions
// before it, so the sample counter reaches exactly atBar's sample at
// the moment count-in ends (§4.4: "recording capture starts exactly
// at musical bar 1 of the song, not at count-in start").
func (t *Transport) Play(atBar float64, tm clock.TimeMap) {
	if t.State() != Stopped {
		return
	}
	songStartSample := tm.Sample(atBar)
	if n := t.countInBars.Load(); n > 0 {
		preRoll := int64(float64(n) * tm.SamplesPerBar())
		t.samplePosition.Store(songStartSample - preRoll)
		t.countInEnd.Store(songStartSample)
		t.barsRemaining.Store(n)
		t.state.Store(int32(CountIn))
	} else {
		t.samplePosition.Store(songStartSample)
		t.state.Store(int32(Playing))
	}
}

// Stop hard-stops the transport from any state.
func (t *Transport) Stop() {
	t.state.Store(int32(Stopped))
}

// Pause transitions Playing -> Paused.
func (t *Transport) Pause() {
	if t.State() == Playing {
		t.state.Store(int32(Paused))
	}
}

// Resume transitions Paused -> Playing.
func (t *Transport) Resume() {
	if t.State() == Paused {
		t.state.Store(int32(Playing))
	}
}

// Seek relocates the playhead to atBar. Seeking while playing is legal
// (§4.3 "Seek while playing"); the caller is responsible for flushing
// per-track ring state and issuing all-notes-off before the next
// callback boundary.
func (t *Transport) Seek(atBar float64, tm clock.TimeMap) {
	t.samplePosition.Store(tm.Sample(atBar))
}

// AdvanceResult reports what happened while advancing by N frames, so
// the Scheduler and Action Dispatcher know whether to emit a count-in
// click, cross into Playing, or wrap a loop.
type AdvanceResult struct {
	CountInEnded bool
	LoopWrapped  bool
	StartSample  int64 // sample position before this advance
	EndSample    int64 // sample position after this advance, pre-wrap
}

// Advance moves the playhead forward by n frames for one callback,
// handling count-in expiry and loop wrap (§4.4). tm converts the new
// position to bars to detect a completed count-in.
func (t *Transport) Advance(n int, tm clock.TimeMap) AdvanceResult {
	start := t.samplePosition.Load()
	result := AdvanceResult{StartSample: start}

	switch t.State() {
	case CountIn:
		end := start + int64(n)
		// Count-in ends, and recording/playback proper begins, exactly
		// when the pre-roll sample counter reaches the sample of the
		// bar Play() was given.
		if end >= t.countInEnd.Load() {
			t.state.Store(int32(Playing))
			result.CountInEnded = true
		}
		t.samplePosition.Store(end)
		result.EndSample = end
		return result

	case Playing:
		end := start + int64(n)
		if loop := t.loop.Load(); loop != nil {
			hi := tm.Sample(loop.Hi)
			if end >= hi {
				lo := tm.Sample(loop.Lo)
				overshoot := end - hi
				end = lo + overshoot
				result.LoopWrapped = true
			}
		}
		t.samplePosition.Store(end)
		result.EndSample = end
		return result

	default:
		result.EndSample = start
		return result
	}
}

// PublishBar is called once per callback by the audio thread with the
// bar corresponding to the sample that will actually be audible —
// i.e. the position already advanced by the driver's output latency
// (§4.4 "moment the buffer is actually audible"). It's a lock-free
// single-writer store; UI reads via PublishedBar at its own cadence.
func (t *Transport) PublishBar(tm clock.TimeMap) {
	audibleSample := t.samplePosition.Load() + t.outputLatency.Load()
	bar := tm.Bar(audibleSample)
	t.publishedBar.Store(math.Float64bits(bar))
}

// PublishedBar returns the most recently published bar (§6
// "Observation (read-only, non-blocking)").
func (t *Transport) PublishedBar() float64 {
	return math.Float64frombits(t.publishedBar.Load())
}

// PublishedSamplePosition returns the raw RT sample position, useful
// for UI that wants to do its own conversion.
func (t *Transport) PublishedSamplePosition() int64 {
	return t.samplePosition.Load()
}

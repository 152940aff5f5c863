package scheduler

import (
	"math"

	"github.com/schollz/looperd/internal/automation"
	"github.com/schollz/looperd/internal/clock"
	"github.com/schollz/looperd/internal/engineerr"
	"github.com/schollz/looperd/internal/ids"
	"github.com/schollz/looperd/internal/score"
)

// containerPlan is one container active within the callback's bar
// range, with its fully-resolved gain envelope (own fades plus any
// crossfade weighting against a sibling) folded into a single
// bar-indexed function (§4.3 step 3a).
type containerPlan struct {
	container score.Container
	gain      func(bar float64) float64
}

func clamp01(u float64) float64 {
	if u < 0 {
		return 0
	}
	if u > 1 {
		return 1
	}
	return u
}

func curveWeight(curve score.CurveKind, u float64) float64 {
	u = clamp01(u)
	switch curve {
	case score.CurveHold:
		if u < 1 {
			return 0
		}
		return 1
	case score.CurveExponential:
		return u * u
	case score.CurveSCurve:
		return u * u * (3 - 2*u)
	default: // score.CurveLinear
		return u
	}
}

func containerFadeGain(c score.Container) func(float64) float64 {
	base := 1.0
	if c.Payload.Kind == score.PayloadAudio {
		base = c.Payload.Gain
	}
	return func(bar float64) float64 {
		g := base
		if c.EnterFade != nil && c.EnterFade.DurationBars > 0 {
			end := float64(c.StartBar) + c.EnterFade.DurationBars
			if bar < end {
				u := (bar - float64(c.StartBar)) / c.EnterFade.DurationBars
				g *= curveWeight(c.EnterFade.Curve, u)
			}
		}
		if c.ExitFade != nil && c.ExitFade.DurationBars > 0 {
			start := float64(c.EndBar()) - c.ExitFade.DurationBars
			if bar > start {
				u := (bar - start) / c.ExitFade.DurationBars
				g *= curveWeight(c.ExitFade.Curve, 1-u)
			}
		}
		return g
	}
}

// resolveActive implements §4.3 step 3a: the set of active containers
// in [startBar, endBar), with the overlap tie-break (later container
// wins, unless a Crossfade joins the pair, in which case both are
// weighted by the crossfade curve across their overlap).
func resolveActive(track score.Track, startBar, endBar float64) []containerPlan {
	cfBetween := func(a, b ids.ContainerID) (score.Crossfade, bool) {
		for _, cf := range track.Crossfades {
			if (cf.ContainerAID == a && cf.ContainerBID == b) || (cf.ContainerAID == b && cf.ContainerBID == a) {
				return cf, true
			}
		}
		return score.Crossfade{}, false
	}

	var candidates []score.Container
	for _, c := range track.Containers {
		if float64(c.EndBar()) <= startBar || float64(c.StartBar) >= endBar {
			continue
		}
		candidates = append(candidates, c)
	}

	plans := make([]containerPlan, len(candidates))
	for i, c := range candidates {
		plans[i] = containerPlan{container: c, gain: containerFadeGain(c)}
	}

	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			a, b := candidates[i], candidates[j]
			overlapStart := math.Max(float64(a.StartBar), float64(b.StartBar))
			overlapEnd := math.Min(float64(a.EndBar()), float64(b.EndBar()))
			if overlapStart >= overlapEnd {
				continue
			}
			if cf, ok := cfBetween(a.ID, b.ID); ok {
				earlierIdx, laterIdx := i, j
				if b.StartBar < a.StartBar {
					earlierIdx, laterIdx = j, i
				}
				earlierGain, laterGain := plans[earlierIdx].gain, plans[laterIdx].gain
				plans[earlierIdx].gain = func(bar float64) float64 {
					g := earlierGain(bar)
					if bar >= overlapStart && bar < overlapEnd {
						u := (bar - overlapStart) / (overlapEnd - overlapStart)
						g *= curveWeight(cf.Curve, 1-u)
					}
					return g
				}
				plans[laterIdx].gain = func(bar float64) float64 {
					g := laterGain(bar)
					if bar >= overlapStart && bar < overlapEnd {
						u := (bar - overlapStart) / (overlapEnd - overlapStart)
						g *= curveWeight(cf.Curve, u)
					}
					return g
				}
			} else {
				// No crossfade: the later-starting container takes
				// over at its own startBar; the earlier one's own exit
				// fade is still evaluated up to that point.
				cutoff := float64(b.StartBar)
				earlierIdx := i
				if b.StartBar < a.StartBar {
					cutoff, earlierIdx = float64(a.StartBar), j
				}
				earlierGain := plans[earlierIdx].gain
				plans[earlierIdx].gain = func(bar float64) float64 {
					if bar >= cutoff {
						return 0
					}
					return earlierGain(bar)
				}
			}
		}
	}
	return plans
}

func effectIndexOf(path score.EffectPath) int {
	if path.IsInstrument() {
		return -1
	}
	return *path.EffectIndex
}

func filterForEffect(list []ParameterAutomation, idx int) []ParameterAutomation {
	var out []ParameterAutomation
	for _, p := range list {
		if p.EffectIndex == idx {
			out = append(out, p)
		}
	}
	return out
}

// renderTrack implements §4.3 steps 3a-3d for one track: resolve
// active containers, read their audio/MIDI payloads, apply fades and
// automation, and run the effect chain (including the hosted
// instrument, EffectIndex == -1).
func (s *Scheduler) renderTrack(track score.Track, startBar, endBar float64, startSample int64, n int, input, out [][]float32, project *score.Project, tm clock.TimeMap) {
	if track.Mute {
		return
	}
	if len(track.Containers) > 0 {
		visible := track.Containers[:0:0]
		for _, c := range track.Containers {
			if !s.isSuppressed(c) {
				visible = append(visible, c)
			}
		}
		track.Containers = visible
	}
	plans := resolveActive(track, startBar, endBar)

	var midiEvents []MIDIEvent
	var paramAutomation []ParameterAutomation

	for _, plan := range plans {
		c := plan.container
		s.reportBarCrossing(track.ID, c, startBar, endBar, startSample, tm)

		switch c.Payload.Kind {
		case score.PayloadAudio:
			s.renderAudioContainer(c, plan.gain, startSample, n, out, project, tm)
		case score.PayloadMIDI:
			midiEvents = append(midiEvents, scheduleMIDI(c, startBar, endBar, startSample, tm)...)
		}

		for _, lane := range c.AutomationLanes {
			if lane.Target.TrackID != track.ID || !automation.ResolvePath(lane.Target, track) {
				continue
			}
			segStart := math.Max(startBar, float64(c.StartBar))
			segEnd := math.Min(endBar, float64(c.EndBar()))
			if segStart >= segEnd {
				continue
			}
			for _, seg := range automation.Segments(lane, segStart, segEnd) {
				offset := int(tm.Sample(seg.Bar) - startSample)
				offset = int(clamp01(float64(offset)/float64(n)) * float64(n))
				paramAutomation = append(paramAutomation, ParameterAutomation{
					EffectIndex:  effectIndexOf(lane.Target),
					Address:      lane.Target.ParameterAddress,
					Value:        seg.Value,
					SampleOffset: offset,
				})
			}
		}
	}

	if track.Kind == score.TrackMIDI && s.MIDIOut != nil {
		for _, ev := range midiEvents {
			_ = s.MIDIOut.RouteToTrack(track.ID, ev.Message, ev.SampleOffset)
		}
	}

	if s.Host == nil {
		return
	}
	if track.Instrument != nil {
		s.processEffect(*track.Instrument, -1, out, midiEvents, paramAutomation)
	}
	for i, node := range track.EffectChain {
		s.processEffect(node, i, out, nil, paramAutomation)
	}
}

func (s *Scheduler) processEffect(node score.EffectNode, index int, buf [][]float32, midiEvents []MIDIEvent, paramAutomation []ParameterAutomation) {
	err := s.Host.Process(node.Handle, buf, buf, midiEvents, filterForEffect(paramAutomation, index), node.Bypass)
	if err != nil && s.Errors != nil {
		engineerr.PluginFailure(s.Errors, node.Handle, err)
	}
}

func (s *Scheduler) reportBarCrossing(trackID ids.TrackID, c score.Container, startBar, endBar float64, startSample int64, tm clock.TimeMap) {
	if s.Actions == nil {
		return
	}
	if cs := float64(c.StartBar); cs >= startBar && cs < endBar {
		s.Actions.HandleBarCrossing(BarCrossing{
			TrackID: trackID, ContainerID: c.ID, Actions: c.OnEnterActions,
			SampleOffset: int(tm.Sample(cs) - startSample), Edge: EdgeEnter,
		})
	}
	if ce := float64(c.EndBar()); ce > startBar && ce <= endBar {
		s.Actions.HandleBarCrossing(BarCrossing{
			TrackID: trackID, ContainerID: c.ID, Actions: c.OnExitActions,
			SampleOffset: int(tm.Sample(ce) - startSample), Edge: EdgeExit,
		})
	}
}

// renderAudioContainer reads the source recording's frames covering
// this callback's portion of c and sums them into out with gain(bar)
// applied per sample (§4.3 step 3b).
func (s *Scheduler) renderAudioContainer(c score.Container, gain func(float64) float64, startSample int64, n int, out [][]float32, project *score.Project, tm clock.TimeMap) {
	rec, ok := project.SourceRecordings[c.Payload.RecordingRef]
	if !ok {
		if s.Errors != nil && !s.reportedMissing[c.ID] {
			engineerr.MissingSource(s.Errors, c.ID)
			s.reportedMissing[c.ID] = true
		}
		return
	}
	samplesPerBar := tm.SamplesPerBar()
	containerStartSample := tm.Sample(float64(c.StartBar))
	// Position within the source: how far into the container we are
	// (startSample - containerStartSample) plus the container's own
	// offset into the source (invariant 2 of §3 bounds this upstream).
	sourceOffset := (startSample - containerStartSample) + int64(math.Round(c.Payload.AudioStartOffsetBars*samplesPerBar))
	// When the source begins partway through this callback, reading
	// starts at source frame 0 and lands at buffer frame lead.
	lead := 0
	if sourceOffset < 0 {
		lead = int(-sourceOffset)
		sourceOffset = 0
	}
	if lead >= n || s.Sources == nil {
		return
	}

	channels := rec.ChannelCount
	if channels <= 0 {
		channels = 2
	}
	readBuf := make([][]float32, channels)
	for ch := range readBuf {
		readBuf[ch] = make([]float32, n-lead)
	}
	frames, err := s.Sources.ReadAt(rec.ID, sourceOffset, readBuf)
	if err != nil || frames <= 0 {
		return
	}

	for i := 0; i < frames; i++ {
		j := lead + i
		sample := startSample + int64(j)
		if sample < containerStartSample || sample >= tm.Sample(float64(c.EndBar())) {
			continue
		}
		bar := tm.Bar(sample)
		g := float32(gain(bar))
		for ch := range out {
			src := readBuf[ch%channels][i]
			out[ch][j] += src * g
		}
	}
}

// scheduleMIDI emits note-on/off events for c's MIDISequence whose
// start/end beat falls within this callback's sample range (§4.3
// step 3c).
func scheduleMIDI(c score.Container, startBar, endBar float64, startSample int64, tm clock.TimeMap) []MIDIEvent {
	var events []MIDIEvent
	for _, note := range c.Payload.SequenceRef.Notes {
		onBar := float64(c.StartBar) + note.StartBeat/beatsInBar(tm)
		offBar := onBar + note.Duration/beatsInBar(tm)
		if onBar >= startBar && onBar < endBar {
			offset := int(tm.Sample(onBar) - startSample)
			events = append(events, MIDIEvent{Message: score.MIDIMessage{0x90 | note.Channel, note.Pitch, note.Velocity}, SampleOffset: offset})
		}
		if offBar >= startBar && offBar < endBar {
			offset := int(tm.Sample(offBar) - startSample)
			events = append(events, MIDIEvent{Message: score.MIDIMessage{0x80 | note.Channel, note.Pitch, 0}, SampleOffset: offset})
		}
	}
	return events
}

func beatsInBar(tm clock.TimeMap) float64 {
	return float64(tm.TimeSig.BeatsPerBar)
}

// captureArmed feeds the portion of input covering each record-armed
// container active this callback to the Recording Manager (§4.7); the
// sink itself is responsible for not blocking the caller.
func (s *Scheduler) captureArmed(song score.Song, startSample int64, n int, input [][]float32, tm clock.TimeMap) {
	startBar := tm.Bar(startSample)
	endBar := tm.Bar(startSample + int64(n))
	for _, track := range song.Tracks {
		for _, c := range track.Containers {
			if !c.IsRecordArmed {
				continue
			}
			if float64(c.EndBar()) <= startBar || float64(c.StartBar) >= endBar {
				continue
			}
			lo := math.Max(startBar, float64(c.StartBar))
			hi := math.Min(endBar, float64(c.EndBar()))
			loSample := tm.Sample(lo)
			hiSample := tm.Sample(hi)
			offsetInBuffer := int(loSample - startSample)
			frames := int(hiSample - loSample)
			if offsetInBuffer < 0 || frames <= 0 {
				continue
			}
			s.Recording.Capture(track.ID, c.ID, input, offsetInBuffer, frames)
		}
	}
}

package scheduler

import (
	"math"
	"sync/atomic"

	"github.com/schollz/looperd/internal/clock"
	"github.com/schollz/looperd/internal/engineerr"
	"github.com/schollz/looperd/internal/ids"
	"github.com/schollz/looperd/internal/rtqueue"
	"github.com/schollz/looperd/internal/score"
	"github.com/schollz/looperd/internal/transport"
)

// EdgeKind tags whether a BarCrossing is a container's entry or exit.
type EdgeKind int

const (
	EdgeEnter EdgeKind = iota
	EdgeExit
)

// BarCrossing is reported once per container whose bar range is
// entered or exited within the current callback, at the crossing's
// sample offset (§4.3 "report every bar-boundary crossing", §4.5).
type BarCrossing struct {
	TrackID      ids.TrackID
	ContainerID  ids.ContainerID
	Actions      []score.ContainerAction
	SampleOffset int
	Edge         EdgeKind
}

// ActionSink receives bar crossings so the Action Dispatcher can run
// onEnter/onExit actions (§4.5).
type ActionSink interface {
	HandleBarCrossing(crossing BarCrossing)
}

// RecordingSink receives the raw input buffer slice for every armed
// container active in the callback (§4.7); capture never touches the
// RT thread beyond this call, which must not block.
type RecordingSink interface {
	Capture(trackID ids.TrackID, containerID ids.ContainerID, input [][]float32, startInBuffer, frames int)
}

// Scheduler implements the per-callback algorithm of §4.3. It is
// driven once per audio callback by the owning engine; all of its
// inputs besides the live snapshot are injected interfaces so it never
// reaches across package boundaries into concrete collaborators.
type Scheduler struct {
	Snapshot  *rtqueue.SnapshotSlot
	Queue     *rtqueue.Queue
	Transport *transport.Transport
	Sources   AudioSourceStore
	Host      PluginHost
	MIDIOut   MIDIOutput
	Actions   ActionSink
	Recording RecordingSink
	Errors    *engineerr.Reporter

	SongID ids.SongID

	underruns       atomic.Uint64
	reportedMissing map[ids.ContainerID]bool
	scratch         map[ids.TrackID][][]float32
	suppressed      map[ids.ContainerID]bool
	suppressionSeen map[ids.ContainerID]bool
}

// SetSuppressed arms or clears a container's runtime stopped mask
// (§4.5 triggerContainer "start"/"stop"). This is transport-run
// transient state, not a ScoreModel edit: it resets to each
// container's DefaultStopped value on the next Play.
func (s *Scheduler) SetSuppressed(id ids.ContainerID, suppressed bool) {
	s.suppressed[id] = suppressed
	s.suppressionSeen[id] = true
}

// isSuppressed reports whether c is currently stopped, initializing
// its runtime state from DefaultStopped on first sight this run.
func (s *Scheduler) isSuppressed(c score.Container) bool {
	if !s.suppressionSeen[c.ID] {
		s.suppressed[c.ID] = c.DefaultStopped
		s.suppressionSeen[c.ID] = true
	}
	return s.suppressed[c.ID]
}

// ReportUnderrun is called by the audio driver when a callback could
// not complete in time and its buffer was zero-filled (§4.3 Failure
// semantics, §7 AudioDeviceUnderrun).
func (s *Scheduler) ReportUnderrun() {
	s.underruns.Add(1)
	if s.Errors != nil {
		engineerr.Underrun(s.Errors)
	}
}

// UnderrunCount is the §9/§6 observation surface for the UI.
func (s *Scheduler) UnderrunCount() uint64 { return s.underruns.Load() }

// New returns a Scheduler ready to Process callbacks once its fields
// (besides the ones set here) are assigned by the composition root.
func New(snap *rtqueue.SnapshotSlot, queue *rtqueue.Queue, tr *transport.Transport) *Scheduler {
	return &Scheduler{
		Snapshot:        snap,
		Queue:           queue,
		Transport:       tr,
		reportedMissing: make(map[ids.ContainerID]bool),
		scratch:         make(map[ids.TrackID][][]float32),
		suppressed:      make(map[ids.ContainerID]bool),
		suppressionSeen: make(map[ids.ContainerID]bool),
	}
}

// drainQueue implements §4.3 step 1: it applies every queued command
// in order. The engine only enqueues CmdInstallSnapshot; the install
// into the slot happens here, on the audio thread, so the active
// snapshot changes only at a callback boundary.
func (s *Scheduler) drainQueue(tm clock.TimeMap) {
	s.Queue.Drain(func(cmd rtqueue.Command) {
		switch cmd.Kind {
		case rtqueue.CmdInstallSnapshot:
			s.Snapshot.Install(cmd.Snapshot)
		case rtqueue.CmdStartTransport:
			s.Transport.Play(cmd.AtBar, tm)
		case rtqueue.CmdStopTransport:
			s.Transport.Stop()
			clear(s.suppressed)
			clear(s.suppressionSeen)
			if s.MIDIOut != nil {
				s.MIDIOut.AllNotesOff()
			}
		case rtqueue.CmdSeekTo:
			s.Transport.Seek(cmd.AtBar, tm)
			if s.MIDIOut != nil {
				s.MIDIOut.AllNotesOff()
			}
		case rtqueue.CmdSetLoop:
			if cmd.Loop.Enabled {
				s.Transport.SetLoop(&transport.LoopRange{Lo: cmd.Loop.Lo, Hi: cmd.Loop.Hi})
			} else {
				s.Transport.SetLoop(nil)
			}
		case rtqueue.CmdSetParameterImmediate:
			if project := s.Snapshot.Load(); s.Host != nil && project != nil {
				song, _ := project.FindSong(s.SongID)
				track, _ := song.FindTrack(cmd.Path.TrackID)
				node := track.Instrument
				if idx := cmd.Path.EffectIndex; idx != nil {
					node = nil
					if *idx >= 0 && *idx < len(track.EffectChain) {
						node = &track.EffectChain[*idx]
					}
				}
				if node != nil {
					_ = s.Host.SetParameterImmediate(node.Handle, cmd.Path.ParameterAddress, cmd.Value)
				}
			}
		case rtqueue.CmdArmRecord:
			// Recording arm/disarm is a ScoreModel edit (a new
			// Container.IsRecordArmed value in the next installed
			// snapshot); nothing to do on the RT side beyond letting
			// the next snapshot take effect.
		case rtqueue.CmdInstallMetronomeConfig, rtqueue.CmdShutdown:
			if cmd.Kind == rtqueue.CmdShutdown {
				s.Transport.Stop()
				if s.MIDIOut != nil {
					s.MIDIOut.AllNotesOff()
				}
			}
		}
	})
}

func (s *Scheduler) trackScratch(id ids.TrackID, channels, frames int) [][]float32 {
	buf, ok := s.scratch[id]
	if !ok || len(buf) != channels || (len(buf) > 0 && len(buf[0]) < frames) {
		buf = make([][]float32, channels)
		for c := range buf {
			buf[c] = make([]float32, frames)
		}
		s.scratch[id] = buf
	}
	for c := range buf {
		for i := 0; i < frames; i++ {
			buf[c][i] = 0
		}
	}
	return buf
}

// Process renders n frames into output (already sized [channels][n])
// starting at the transport's current sample position, consuming
// input (the device's capture buffer, same shape) for armed
// recordings, and advances the transport by n frames.
func (s *Scheduler) Process(n int, input, output [][]float32, tm clock.TimeMap) {
	s.drainQueue(tm)

	for c := range output {
		for i := range output[c] {
			output[c][i] = 0
		}
	}

	project := s.Snapshot.Load()
	if project == nil {
		s.Snapshot.Acknowledge()
		s.Transport.Advance(n, tm)
		return
	}
	song, ok := project.FindSong(s.SongID)
	if !ok {
		s.Snapshot.Acknowledge()
		s.Transport.Advance(n, tm)
		return
	}

	startSample := s.Transport.SamplePosition()
	if s.Transport.State() == transport.Playing {
		startBar := tm.Bar(startSample)
		endBar := tm.Bar(startSample + int64(n))
		order := topologicalOrder(song)
		busAccum := make(map[ids.TrackID][][]float32)

		for _, trackID := range order {
			track, _ := song.FindTrack(trackID)
			trackBuf := s.trackScratch(trackID, 2, n)

			s.renderTrack(track, startBar, endBar, startSample, n, input, trackBuf, project, tm)

			// Topological order guarantees every track that sends to
			// trackID has already run, so incoming bus sends are
			// complete before trackID's own fader/pan and outgoing
			// sends are applied.
			if incoming := busAccum[trackID]; incoming != nil {
				mixInto(trackBuf, incoming, 1.0)
			}

			if track.Kind == score.TrackMaster {
				mixInto(output, trackBuf, 1.0)
				continue
			}
			applyGainPan(trackBuf, track.Mix.GainDB, track.Mix.Pan)
			for _, send := range track.Mix.Sends {
				dest := busAccum[send.DestinationTrackID]
				if dest == nil {
					dest = make([][]float32, 2)
					dest[0] = make([]float32, n)
					dest[1] = make([]float32, n)
					busAccum[send.DestinationTrackID] = dest
				}
				mixInto(dest, trackBuf, dbToLinear(send.GainDB))
			}
		}
	} else if s.Transport.State() == transport.CountIn {
		s.renderMetronome(song, startSample, n, tm)
	}

	if s.Recording != nil && input != nil {
		s.captureArmed(song, startSample, n, input, tm)
	}

	result := s.Transport.Advance(n, tm)
	if result.LoopWrapped && s.MIDIOut != nil {
		s.MIDIOut.AllNotesOff()
	}
	s.Transport.PublishBar(tm)
	s.Snapshot.Acknowledge()
}

// topologicalOrder returns track IDs ordered leaves-before-sends-
// before-master (§4.3 step 3). Tracks that send to no one, or only to
// the master, render before any track that is itself the destination
// of a send.
func topologicalOrder(song score.Song) []ids.TrackID {
	indegree := make(map[ids.TrackID]int, len(song.Tracks))
	for _, t := range song.Tracks {
		if _, ok := indegree[t.ID]; !ok {
			indegree[t.ID] = 0
		}
	}
	for _, t := range song.Tracks {
		for _, send := range t.Mix.Sends {
			indegree[send.DestinationTrackID]++
		}
	}
	var order []ids.TrackID
	visited := make(map[ids.TrackID]bool)
	remaining := len(song.Tracks)
	for remaining > 0 {
		progressed := false
		for _, t := range song.Tracks {
			if visited[t.ID] || indegree[t.ID] > 0 {
				continue
			}
			visited[t.ID] = true
			remaining--
			progressed = true
			order = append(order, t.ID)
			for _, send := range t.Mix.Sends {
				indegree[send.DestinationTrackID]--
			}
		}
		if !progressed {
			// A send cycle is an invalid edit that should have been
			// rejected on the control thread; fall back to slice order
			// for whatever tracks remain so the callback still
			// completes.
			for _, t := range song.Tracks {
				if !visited[t.ID] {
					order = append(order, t.ID)
					visited[t.ID] = true
				}
			}
			break
		}
	}
	return order
}

func mixInto(dst, src [][]float32, gain float32) {
	for c := range dst {
		if c >= len(src) {
			continue
		}
		for i := range dst[c] {
			dst[c][i] += src[c][i] * gain
		}
	}
}

func dbToLinear(db float64) float32 {
	return float32(math.Pow(10, db/20))
}

// applyGainPan applies track gain and a constant-power balance pan
// (-3 dB center) in-place to a stereo buffer (§4.3 step 3e). Mono
// sources already carry identical L/R content from renderAudioContainer,
// so balancing each channel by its own equal-power coefficient pans
// them the same way true amplitude panning would.
func applyGainPan(buf [][]float32, gainDB, pan float64) {
	if len(buf) != 2 {
		return
	}
	gain := dbToLinear(gainDB)
	theta := (pan + 1) * math.Pi / 4
	left := float32(math.Cos(theta)) * gain
	right := float32(math.Sin(theta)) * gain
	for i := range buf[0] {
		buf[0][i] *= left
		buf[1][i] *= right
	}
}

// metronomePort is the reserved external-port display name the audio
// bridge listens on for count-in/metronome clicks; click synthesis
// itself is entirely the bridge's concern (§6 "opaque" audio driver).
const metronomePort = "looperd-metronome"

func (s *Scheduler) renderMetronome(song score.Song, startSample int64, n int, tm clock.TimeMap) {
	if !song.Metronome.Enabled || s.MIDIOut == nil {
		return
	}
	samplesPerBeat := tm.SamplesPerBeat()
	for offset := 0; offset < n; offset++ {
		sample := startSample + int64(offset)
		if sample > 0 {
			continue
		}
		beatFloat := math.Abs(float64(sample)) / samplesPerBeat
		if math.Mod(beatFloat, 1) > 1e-6 {
			continue
		}
		beatIndex := int(math.Round(beatFloat)) % song.TimeSig.BeatsPerBar
		vel := song.Metronome.BeatVelocity
		if beatIndex == 0 {
			vel = song.Metronome.AccentVelocity
		}
		msg := score.MIDIMessage{0x99, 37, vel} // channel 10, rim-click note
		_ = s.MIDIOut.RouteToExternalPort(metronomePort, msg, offset)
	}
}

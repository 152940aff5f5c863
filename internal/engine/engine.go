// Package engine is the composition root (§6): it owns the
// process-wide collaborators wired clock -> score -> rtqueue ->
// scheduler -> transport -> recorder -> dispatch -> midifabric, and
// exposes the control surface and observation getters of §6/§9 as
// plain thread-safe methods. Score edits run on the control thread
// against a private Project copy; a successful edit is validated, then
// published to the audio thread as a new immutable snapshot over the
// RT command queue (§4.2), mirroring the teacher's AutoSave/DoSave
// split between "mutate the in-memory model" and "publish the result".
package engine

import (
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/schollz/looperd/internal/clock"
	"github.com/schollz/looperd/internal/dispatch"
	"github.com/schollz/looperd/internal/engineerr"
	"github.com/schollz/looperd/internal/ids"
	"github.com/schollz/looperd/internal/midifabric"
	"github.com/schollz/looperd/internal/recorder"
	"github.com/schollz/looperd/internal/rtqueue"
	"github.com/schollz/looperd/internal/scheduler"
	"github.com/schollz/looperd/internal/score"
	"github.com/schollz/looperd/internal/transport"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config configures the collaborators New wires together.
type Config struct {
	SampleRate    float64
	QueueCapacity int
	ErrorCapacity int
}

// Engine is the process-wide composition root and control surface.
type Engine struct {
	mu        sync.Mutex
	project   *score.Project
	songID    ids.SongID
	resumeBar float64
	cfg       Config

	Queue      *rtqueue.Queue
	Snapshot   *rtqueue.SnapshotSlot
	Transport  *transport.Transport
	Scheduler  *scheduler.Scheduler
	Dispatcher *dispatch.Dispatcher
	Recording  *recorder.Sink
	Errors     *engineerr.Reporter

	MIDIRouter  *midifabric.Router
	Monitor     *midifabric.Monitor
	Controls    *midifabric.ControlDispatcher
	Parameters  *midifabric.ParameterDispatcher
	Learn       *midifabric.LearnSession
}

// New wires every collaborator and publishes project's initial
// snapshot. sources and host are the opaque §6 audio collaborators
// (e.g. a *sourceaudio.Store and an *audiobridge.Bridge).
func New(cfg Config, project *score.Project, songID ids.SongID, sources scheduler.AudioSourceStore, host scheduler.PluginHost) (*Engine, error) {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 256
	}
	if cfg.ErrorCapacity <= 0 {
		cfg.ErrorCapacity = 64
	}

	queue := rtqueue.NewQueue(cfg.QueueCapacity)
	var slot rtqueue.SnapshotSlot
	tr := transport.New()
	errs := engineerr.NewReporter(cfg.ErrorCapacity)
	midiRouter := midifabric.NewRouter()
	rec := recorder.NewSink(16)

	sched := scheduler.New(&slot, queue, tr)
	sched.Sources = sources
	sched.Host = host
	sched.MIDIOut = midiRouter
	sched.Recording = rec
	sched.SongID = songID
	sched.Errors = errs

	e := &Engine{
		cfg:        cfg,
		songID:     songID,
		resumeBar:  1,
		Queue:      queue,
		Snapshot:   &slot,
		Transport:  tr,
		Scheduler:  sched,
		Recording:  rec,
		Errors:     errs,
		MIDIRouter: midiRouter,
		Monitor:    midifabric.NewMonitor(),
		Controls:   midifabric.NewControlDispatcher(),
		Parameters: midifabric.NewParameterDispatcher(),
	}
	e.Learn = midifabric.NewLearnSession(e.Controls, e.Parameters)
	e.registerMidiHandlers()
	e.Dispatcher = &dispatch.Dispatcher{Queue: queue, MIDI: midiRouter, Tracks: e, Gate: sched, Errors: errs}
	sched.Actions = e.Dispatcher

	cloned, err := cloneProject(project)
	if err != nil {
		return nil, fmt.Errorf("engine: clone initial project: %w", err)
	}
	e.project = cloned
	if err := e.publishLocked(); err != nil {
		return nil, fmt.Errorf("engine: publish initial project: %w", err)
	}
	e.installMidiMappings(cloned.ControlMappings)
	e.installMidiParameterMappings(cloned.ParameterMappings)
	return e, nil
}

// TimeMap builds the clock for the currently active song, using the
// engine's configured sample rate. The audio driver calls this once
// per callback (tempo can change between callbacks via a score edit)
// and passes the result into Scheduler.Process.
func (e *Engine) TimeMap() clock.TimeMap {
	e.mu.Lock()
	defer e.mu.Unlock()
	song, ok := e.project.FindSong(e.songID)
	if !ok {
		return clock.New(e.cfg.SampleRate, 120, clock.TimeSignature{BeatsPerBar: 4, BeatUnit: 4})
	}
	sig := clock.TimeSignature{BeatsPerBar: song.TimeSig.BeatsPerBar, BeatUnit: song.TimeSig.BeatUnit}
	return clock.New(e.cfg.SampleRate, song.TempoBPM, sig)
}

// TrackIDByName implements dispatch.TrackResolver.
func (e *Engine) TrackIDByName(name string) (ids.TrackID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	song, ok := e.project.FindSong(e.songID)
	if !ok {
		return "", false
	}
	for _, t := range song.Tracks {
		if t.Name == name {
			return t.ID, true
		}
	}
	return "", false
}

// ---- Transport control surface (§6) ----

// Play starts playback from the last Seek position (bar 1 if never
// seeked), per Transport.Play's Stopped-only precondition.
func (e *Engine) Play() {
	e.mu.Lock()
	bar := e.resumeBar
	e.mu.Unlock()
	e.Queue.Push(rtqueue.Command{Kind: rtqueue.CmdStartTransport, AtBar: bar})
}

// Stop hard-stops the transport.
func (e *Engine) Stop() {
	e.Queue.Push(rtqueue.Command{Kind: rtqueue.CmdStopTransport})
}

// TogglePlayPause pauses if playing, resumes if paused, or starts
// playback from Stopped. Pause/Resume are plain atomic transitions on
// Transport (no musical-time computation needed), so they are called
// directly rather than queued.
func (e *Engine) TogglePlayPause() {
	switch e.Transport.State() {
	case transport.Playing:
		e.Transport.Pause()
	case transport.Paused:
		e.Transport.Resume()
	case transport.Stopped:
		e.Play()
	}
}

// Seek relocates the playhead and remembers the position for the next
// Play.
func (e *Engine) Seek(bar float64) {
	e.mu.Lock()
	e.resumeBar = bar
	e.mu.Unlock()
	e.Queue.Push(rtqueue.Command{Kind: rtqueue.CmdSeekTo, AtBar: bar})
}

// SetLoop arms or clears the loop range. Pass enabled=false to disable
// looping.
func (e *Engine) SetLoop(lo, hi float64, enabled bool) {
	e.Queue.Push(rtqueue.Command{Kind: rtqueue.CmdSetLoop, Loop: rtqueue.LoopRange{Enabled: enabled, Lo: lo, Hi: hi}})
}

// SetCountInBars configures the pre-roll length for the next Play.
func (e *Engine) SetCountInBars(n int) {
	e.Transport.SetCountInBars(n)
}

// SetMetronomeConfig updates the active song's click settings and
// republishes.
func (e *Engine) SetMetronomeConfig(cfg score.MetronomeConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editSongLocked(func(s *score.Song) error {
		s.Metronome = cfg
		return nil
	})
}

// ToggleMetronome flips the active song's click on or off. It is the
// handler wired to midifabric.ControlMetronomeToggle.
func (e *Engine) ToggleMetronome() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.editSongLocked(func(s *score.Song) error {
		s.Metronome.Enabled = !s.Metronome.Enabled
		return nil
	}); err != nil {
		e.report(engineerr.InvalidEdit, "", err.Error())
	}
}

// ---- Recording (§6) ----

// ArmContainerRecord arms or disarms recording into an existing
// container, editing the ScoreModel and opening/closing the recorder
// sink's capture in step.
func (e *Engine) ArmContainerRecord(containerID ids.ContainerID, armed bool) error {
	e.mu.Lock()
	var trackID ids.TrackID
	var channels int
	err := e.editSongLocked(func(s *score.Song) error {
		for ti := range s.Tracks {
			for ci := range s.Tracks[ti].Containers {
				c := &s.Tracks[ti].Containers[ci]
				if c.ID != containerID {
					continue
				}
				c.IsRecordArmed = armed
				trackID = s.Tracks[ti].ID
				channels = 2
				return nil
			}
		}
		return fmt.Errorf("engine: unknown container %s", containerID)
	})
	e.mu.Unlock()
	if err != nil {
		e.report(engineerr.InvalidEdit, string(containerID), err.Error())
		return err
	}
	if armed {
		e.Recording.Arm(trackID, containerID, channels, e.cfg.SampleRate)
	} else {
		e.Recording.Disarm(containerID)
	}
	e.Queue.Push(rtqueue.Command{Kind: rtqueue.CmdArmRecord, ContainerID: containerID, Armed: armed})
	return nil
}

// ---- MIDI mapping (§6) ----

// registerMidiHandlers records the action each control Engine supports
// runs when fired, the same way a caller would via
// Learn.RegisterControlHandler before ever arming learn mode. Controls
// with no Engine-level handler (per-track or per-song targets, which
// score.MIDIControlMapping carries no track/song reference for) are
// left unregistered: installing a mapping to one of them is a no-op,
// same as Capture's existing "no registered handler" behavior.
func (e *Engine) registerMidiHandlers() {
	e.Learn.RegisterControlHandler(midifabric.ControlPlayPause, func(midifabric.MappableControl) { e.TogglePlayPause() })
	e.Learn.RegisterControlHandler(midifabric.ControlStop, func(midifabric.MappableControl) { e.Stop() })
	e.Learn.RegisterControlHandler(midifabric.ControlMetronomeToggle, func(midifabric.MappableControl) { e.ToggleMetronome() })
}

// installMidiMappings re-binds mappings into e.Controls, using the
// handlers registerMidiHandlers wired up, the same way
// LearnSession.Capture installs a freshly learned mapping. Called
// after every persisted-mapping change and once at construction so a
// loaded project's saved mappings actually dispatch.
func (e *Engine) installMidiMappings(mappings []score.MIDIControlMapping) {
	for _, m := range mappings {
		e.Learn.BindControl(m.TriggerKey, midifabric.MappableControl(m.Control))
	}
}

// installMidiParameterMappings re-binds mappings into e.Parameters, the
// same way LearnSession.Capture installs a learned parameter mapping.
func (e *Engine) installMidiParameterMappings(mappings []score.MIDIParameterMapping) {
	for _, m := range mappings {
		e.Learn.BindParameter(m.TriggerKey, midifabric.ParameterMapping{Path: m.Path, Min: m.Min, Max: m.Max})
	}
}

// SetMidiMappings replaces the project's momentary control mappings
// and re-installs them into the live dispatcher.
func (e *Engine) SetMidiMappings(mappings []score.MIDIControlMapping) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.editProjectLocked(func(p *score.Project) error {
		p.ControlMappings = mappings
		return nil
	}); err != nil {
		return err
	}
	e.installMidiMappings(mappings)
	return nil
}

// SetMidiParameterMappings replaces the project's continuous-control
// parameter mappings and re-installs them into the live dispatcher.
func (e *Engine) SetMidiParameterMappings(mappings []score.MIDIParameterMapping) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.editProjectLocked(func(p *score.Project) error {
		p.ParameterMappings = mappings
		return nil
	}); err != nil {
		return err
	}
	e.installMidiParameterMappings(mappings)
	return nil
}

// StartLearn arms learn mode for target; the next trigger received by
// Controls/Parameters is captured as a mapping (§3.4's "mutually
// exclusive, replaces any existing mapping to the same trigger").
func (e *Engine) StartLearn(target midifabric.LearnTarget) {
	e.Learn.Start(target)
}

// CancelLearn disarms learn mode without capturing anything.
func (e *Engine) CancelLearn() {
	e.Learn.Cancel()
}

// ---- Observation (§9, read-only, non-blocking) ----

func (e *Engine) PublishedBar() float64                { return e.Transport.PublishedBar() }
func (e *Engine) PublishedSamplePosition() int64       { return e.Transport.PublishedSamplePosition() }
func (e *Engine) UnderrunCount() uint64                { return e.Scheduler.UnderrunCount() }
func (e *Engine) RecentMidiLog() []midifabric.LogEntry { return e.Monitor.Recent() }

// RecordingPeaksFor returns the peak overview accumulated so far for
// an in-flight (or just-finished) capture on containerID.
func (e *Engine) RecordingPeaksFor(containerID ids.ContainerID) []float32 {
	return e.Recording.PeaksFor(containerID)
}

// MidiActivityForTrack reports whether a trigger routed to trackID has
// sounded recently enough to still count as "active" for a meter.
func (e *Engine) MidiActivityForTrack(trackID ids.TrackID) bool {
	return e.Monitor.ActiveAt(trackID, time.Now())
}

func (e *Engine) report(kind engineerr.Kind, entity, note string) {
	e.Errors.Report(engineerr.Event{Kind: kind, Entity: entity, Note: note})
}

// ---- Score edits (§6) ----
//
// Every edit runs against e.project under e.mu, validates the result,
// and on success publishes a freshly cloned, clone-resolved snapshot
// to the audio thread (§4.2). On failure e.project is left exactly as
// it was (§7 InvalidEdit policy: "reject on the control thread... ScoreModel
// unchanged").

func (e *Engine) editProjectLocked(fn func(*score.Project) error) error {
	working, err := cloneProject(e.project)
	if err != nil {
		return fmt.Errorf("engine: clone for edit: %w", err)
	}
	if err := fn(working); err != nil {
		e.report(engineerr.InvalidEdit, "", err.Error())
		return err
	}
	if err := score.ValidateProject(*working); err != nil {
		e.report(engineerr.InvalidEdit, "", err.Error())
		return err
	}
	e.project = working
	return e.publishLocked()
}

func (e *Engine) editSongLocked(fn func(*score.Song) error) error {
	return e.editProjectLocked(func(p *score.Project) error {
		for i := range p.Songs {
			if p.Songs[i].ID != e.songID {
				continue
			}
			return fn(&p.Songs[i])
		}
		return fmt.Errorf("engine: unknown song %s", e.songID)
	})
}

// publishLocked resolves clone containers, validates the resolved
// result, and queues it as the new snapshot. Called with e.mu held.
func (e *Engine) publishLocked() error {
	resolved, err := score.ResolveClones(*e.project)
	if err != nil {
		return fmt.Errorf("engine: resolve clones: %w", err)
	}
	if err := score.Validate(resolved); err != nil {
		return fmt.Errorf("engine: validate resolved snapshot: %w", err)
	}
	snap, err := cloneProject(&resolved)
	if err != nil {
		return fmt.Errorf("engine: clone resolved snapshot: %w", err)
	}
	e.Queue.Push(rtqueue.Command{Kind: rtqueue.CmdInstallSnapshot, Snapshot: snap})
	return nil
}

func cloneProject(p *score.Project) (*score.Project, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var out score.Project
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTrack appends a new track to the active song.
func (e *Engine) CreateTrack(kind score.TrackKind, name string) (ids.TrackID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := ids.NewTrackID()
	err := e.editSongLocked(func(s *score.Song) error {
		s.Tracks = append(s.Tracks, score.Track{ID: id, Kind: kind, Name: name})
		return nil
	})
	return id, err
}

// DeleteTrack removes a track by ID.
func (e *Engine) DeleteTrack(trackID ids.TrackID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editSongLocked(func(s *score.Song) error {
		for i, t := range s.Tracks {
			if t.ID == trackID {
				s.Tracks = append(s.Tracks[:i:i], s.Tracks[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("engine: unknown track %s", trackID)
	})
}

// RenameTrack sets a track's display name.
func (e *Engine) RenameTrack(trackID ids.TrackID, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editSongLocked(func(s *score.Song) error {
		for i := range s.Tracks {
			if s.Tracks[i].ID == trackID {
				s.Tracks[i].Name = name
				return nil
			}
		}
		return fmt.Errorf("engine: unknown track %s", trackID)
	})
}

// MoveTrack relocates a track to a new index in the song's track
// order, which doubles as render/send topology priority when ties
// occur (§4.3).
func (e *Engine) MoveTrack(trackID ids.TrackID, toIndex int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editSongLocked(func(s *score.Song) error {
		from := -1
		for i, t := range s.Tracks {
			if t.ID == trackID {
				from = i
				break
			}
		}
		if from < 0 {
			return fmt.Errorf("engine: unknown track %s", trackID)
		}
		if toIndex < 0 || toIndex >= len(s.Tracks) {
			return fmt.Errorf("engine: move index %d out of range", toIndex)
		}
		track := s.Tracks[from]
		s.Tracks = append(s.Tracks[:from:from], s.Tracks[from+1:]...)
		s.Tracks = append(s.Tracks[:toIndex:toIndex], append([]score.Track{track}, s.Tracks[toIndex:]...)...)
		return nil
	})
}

func (e *Engine) findTrackLocked(s *score.Song, trackID ids.TrackID) (*score.Track, error) {
	for i := range s.Tracks {
		if s.Tracks[i].ID == trackID {
			return &s.Tracks[i], nil
		}
	}
	return nil, fmt.Errorf("engine: unknown track %s", trackID)
}

// CreateContainer appends a new container to trackID.
func (e *Engine) CreateContainer(trackID ids.TrackID, startBar, lengthBars int, payload score.ContainerPayload) (ids.ContainerID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := ids.NewContainerID()
	err := e.editSongLocked(func(s *score.Song) error {
		track, err := e.findTrackLocked(s, trackID)
		if err != nil {
			return err
		}
		track.Containers = append(track.Containers, score.Container{
			ID: id, TrackID: trackID, StartBar: startBar, LengthBars: lengthBars, Payload: payload,
		})
		return nil
	})
	return id, err
}

// DeleteContainer removes a container by ID from trackID.
func (e *Engine) DeleteContainer(trackID ids.TrackID, containerID ids.ContainerID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editSongLocked(func(s *score.Song) error {
		track, err := e.findTrackLocked(s, trackID)
		if err != nil {
			return err
		}
		for i, c := range track.Containers {
			if c.ID == containerID {
				track.Containers = append(track.Containers[:i:i], track.Containers[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("engine: unknown container %s", containerID)
	})
}

// MoveContainer relocates a container to a new bar position on the
// same track.
func (e *Engine) MoveContainer(trackID ids.TrackID, containerID ids.ContainerID, newStartBar int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editSongLocked(func(s *score.Song) error {
		track, err := e.findTrackLocked(s, trackID)
		if err != nil {
			return err
		}
		for i := range track.Containers {
			if track.Containers[i].ID == containerID {
				track.Containers[i].StartBar = newStartBar
				return nil
			}
		}
		return fmt.Errorf("engine: unknown container %s", containerID)
	})
}

// CreateSection appends a display-only section label.
func (e *Engine) CreateSection(startBar, endBar int, name, colorHex string) (ids.SectionID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := ids.NewSectionID()
	err := e.editSongLocked(func(s *score.Song) error {
		s.Sections = append(s.Sections, score.SectionRegion{ID: id, StartBar: startBar, EndBar: endBar, Name: name, ColorHex: colorHex})
		return nil
	})
	return id, err
}

// DeleteSection removes a section label by ID.
func (e *Engine) DeleteSection(sectionID ids.SectionID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editSongLocked(func(s *score.Song) error {
		for i, sec := range s.Sections {
			if sec.ID == sectionID {
				s.Sections = append(s.Sections[:i:i], s.Sections[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("engine: unknown section %s", sectionID)
	})
}

// RenameSection relabels a section.
func (e *Engine) RenameSection(sectionID ids.SectionID, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editSongLocked(func(s *score.Song) error {
		for i := range s.Sections {
			if s.Sections[i].ID == sectionID {
				s.Sections[i].Name = name
				return nil
			}
		}
		return fmt.Errorf("engine: unknown section %s", sectionID)
	})
}

// MoveSection relocates a section's bar range.
func (e *Engine) MoveSection(sectionID ids.SectionID, startBar, endBar int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editSongLocked(func(s *score.Song) error {
		for i := range s.Sections {
			if s.Sections[i].ID == sectionID {
				s.Sections[i].StartBar = startBar
				s.Sections[i].EndBar = endBar
				return nil
			}
		}
		return fmt.Errorf("engine: unknown section %s", sectionID)
	})
}

// SetContainerFade replaces both the enter and exit fade of a
// container; passing nil for either removes that fade.
func (e *Engine) SetContainerFade(trackID ids.TrackID, containerID ids.ContainerID, enter, exit *score.Fade) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editSongLocked(func(s *score.Song) error {
		track, err := e.findTrackLocked(s, trackID)
		if err != nil {
			return err
		}
		for i := range track.Containers {
			if track.Containers[i].ID == containerID {
				track.Containers[i].EnterFade = enter
				track.Containers[i].ExitFade = exit
				return nil
			}
		}
		return fmt.Errorf("engine: unknown container %s", containerID)
	})
}

// SetCrossfade joins two sibling containers on trackID with a curve.
func (e *Engine) SetCrossfade(trackID ids.TrackID, containerAID, containerBID ids.ContainerID, curve score.CurveKind) (ids.CrossfadeID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := ids.NewCrossfadeID()
	err := e.editSongLocked(func(s *score.Song) error {
		track, err := e.findTrackLocked(s, trackID)
		if err != nil {
			return err
		}
		track.Crossfades = append(track.Crossfades, score.Crossfade{ID: id, ContainerAID: containerAID, ContainerBID: containerBID, Curve: curve})
		return nil
	})
	return id, err
}

// SetAutomationBreakpoint upserts a breakpoint at positionBars on
// laneID within containerID, keyed by position (an existing breakpoint
// at the same position is replaced), keeping invariant 4's sort order.
func (e *Engine) SetAutomationBreakpoint(trackID ids.TrackID, containerID ids.ContainerID, laneID ids.AutomationLaneID, bp score.Breakpoint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editSongLocked(func(s *score.Song) error {
		track, err := e.findTrackLocked(s, trackID)
		if err != nil {
			return err
		}
		for ci := range track.Containers {
			if track.Containers[ci].ID != containerID {
				continue
			}
			lanes := track.Containers[ci].AutomationLanes
			for li := range lanes {
				if lanes[li].ID != laneID {
					continue
				}
				insertBreakpoint(&lanes[li], bp)
				return nil
			}
			return fmt.Errorf("engine: unknown automation lane %s", laneID)
		}
		return fmt.Errorf("engine: unknown container %s", containerID)
	})
}

func insertBreakpoint(lane *score.AutomationLane, bp score.Breakpoint) {
	for i := range lane.Breakpoints {
		if lane.Breakpoints[i].PositionBars == bp.PositionBars {
			lane.Breakpoints[i] = bp
			return
		}
		if lane.Breakpoints[i].PositionBars > bp.PositionBars {
			lane.Breakpoints = append(lane.Breakpoints[:i], append([]score.Breakpoint{bp}, lane.Breakpoints[i:]...)...)
			return
		}
	}
	lane.Breakpoints = append(lane.Breakpoints, bp)
}

// SetMixParams replaces a track's gain/pan/send settings.
func (e *Engine) SetMixParams(trackID ids.TrackID, mix score.MixParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editSongLocked(func(s *score.Song) error {
		track, err := e.findTrackLocked(s, trackID)
		if err != nil {
			return err
		}
		track.Mix = mix
		return nil
	})
}

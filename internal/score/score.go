// Package score holds the immutable ScoreModel snapshot types: the
// whole musical layout of a Project — songs, tracks, containers,
// automation — as a value that the control thread builds fresh on
// every edit and hands to the audio thread through the RT command
// queue. The audio thread only ever reads a *Project; nothing in this
// package is mutated in place once built.
package score

import "github.com/schollz/looperd/internal/ids"

// TrackKind distinguishes how a Track's payload is interpreted and
// routed.
type TrackKind int

const (
	TrackAudio TrackKind = iota
	TrackMIDI
	TrackBus
	TrackBacking
	TrackMaster
)

// CurveKind is the shape used to interpolate a fade, crossfade, or
// automation breakpoint segment.
type CurveKind int

const (
	CurveLinear CurveKind = iota
	CurveExponential
	CurveSCurve
	CurveHold
)

// LoopPolicy governs whether a Container repeats to fill gaps in its
// track's active range. The core's own Transport-level looping (§4.4
// of the spec) is independent of this per-container policy.
type LoopPolicy int

const (
	LoopNone LoopPolicy = iota
	LoopContainer
)

// MixParams are the per-track gain/pan/send settings applied after the
// effect chain and before the bus sum.
type MixParams struct {
	GainDB float64
	Pan    float64 // -1 (full left) .. +1 (full right), constant-power
	Sends  []Send
}

// Send routes a post-fader tap of a track's bus to another track
// (almost always a Bus or the master) at an independent level.
type Send struct {
	DestinationTrackID ids.TrackID
	GainDB             float64
}

// MIDIInputFilter restricts which incoming MIDI reaches a track's
// instrument: a specific device+channel, or "any" (DeviceID == "" and
// Channel == ChannelAny).
type MIDIInputFilter struct {
	DeviceID string
	Channel  int
}

// ChannelAny matches every MIDI channel.
const ChannelAny = -1

// EffectNode references a host-managed plugin instance by stable
// handle; the instance itself lives in the plugin host (§6), outside
// this core.
type EffectNode struct {
	Handle  ids.PluginHandle
	Bypass  bool
}

// EffectPath uniquely addresses a parameter: either an effect slot by
// index, or the track's instrument (EffectIndex == nil).
type EffectPath struct {
	TrackID          ids.TrackID
	EffectIndex      *int // nil means "instrument"
	ParameterAddress string
}

// IsInstrument reports whether this path targets the track's
// instrument rather than an effect-chain slot.
func (p EffectPath) IsInstrument() bool { return p.EffectIndex == nil }

// Breakpoint is one knot of an AutomationLane's piecewise curve.
type Breakpoint struct {
	PositionBars float64
	Value        float64 // normalized [0,1]
	Curve        CurveKind
}

// AutomationLane is a sample-accurately interpolated envelope driving
// one parameter. Breakpoints are sorted strictly by PositionBars
// (invariant 4 of §3).
type AutomationLane struct {
	ID          ids.AutomationLaneID
	Target      EffectPath
	Breakpoints []Breakpoint
}

// Fade is a gain curve applied at container entry or exit.
type Fade struct {
	DurationBars float64
	Curve        CurveKind
}

// MIDINote is one event in a MIDISequence.
type MIDINote struct {
	Pitch     uint8
	Velocity  uint8
	StartBeat float64
	Duration  float64
	Channel   uint8
}

// MIDISequence is a sorted-by-StartBeat list of note events.
type MIDISequence struct {
	Notes []MIDINote
}

// SourceRecording is an opaque handle to an immutable audio asset plus
// its precomputed peaks. Safely shared across snapshots and threads by
// value of this handle (§5). Its ID is minted per import or capture,
// not derived from the audio content.
type SourceRecording struct {
	ID            ids.SourceRecordingID
	ChannelCount  int
	SampleRate    float64
	DurationSamps int64
	Peaks         []float32
}

// DurationBars reports the source's exact duration in bars under the
// given TimeMap samples-per-bar; container reads must never exceed
// this (invariant 2).
func (s SourceRecording) DurationBars(samplesPerBar float64) float64 {
	if samplesPerBar <= 0 {
		return 0
	}
	return float64(s.DurationSamps) / samplesPerBar
}

// ContainerPayload is the {audio | midi | empty} sum type for a
// Container's content.
type ContainerPayload struct {
	Kind                ContainerPayloadKind
	RecordingRef        ids.SourceRecordingID
	AudioStartOffsetBars float64
	Gain                float64
	SequenceRef         MIDISequence
}

// ContainerPayloadKind tags the active field of ContainerPayload.
type ContainerPayloadKind int

const (
	PayloadEmpty ContainerPayloadKind = iota
	PayloadAudio
	PayloadMIDI
)

// ActionKind tags the variant of a ContainerAction.
type ActionKind int

const (
	ActionSendMIDI ActionKind = iota
	ActionTriggerContainer
	ActionSetParameter
)

// TriggerVerb is the operation a triggerContainer action requests.
type TriggerVerb int

const (
	TriggerStart TriggerVerb = iota
	TriggerStop
	TriggerArmRecord
	TriggerDisarmRecord
)

// MIDIMessage is a raw, timestamp-free MIDI byte sequence to be sent
// with a sample-offset computed at dispatch time.
type MIDIMessage []byte

// ContainerAction is the onEnter/onExit variant described in §3: send
// a MIDI message, trigger another container, or set a parameter.
type ContainerAction struct {
	Kind ActionKind

	// ActionSendMIDI
	Message     MIDIMessage
	Destination string // internal track name, or external port display name

	// ActionTriggerContainer
	TargetContainerID ids.ContainerID
	Verb              TriggerVerb

	// ActionSetParameter
	Path  EffectPath
	Value float64
}

// OverrideSet names which fields of a clone container differ from its
// source, per invariant 3: a clone that isn't marked overridden must
// follow its source's resolved payload.
type OverrideSet struct {
	Payload bool
	Fades   bool
	Actions bool
	Lanes   bool
}

// Container is a bar-aligned region on a single Track.
type Container struct {
	ID             ids.ContainerID
	TrackID        ids.TrackID
	StartBar       int
	LengthBars     int
	Payload        ContainerPayload
	EnterFade      *Fade
	ExitFade       *Fade
	Loop           LoopPolicy
	IsRecordArmed  bool
	// DefaultStopped marks a container that does not auto-play when the
	// playhead reaches its bar range; a triggerContainer(start) action
	// (§4.5) clears this at runtime until the transport stops.
	DefaultStopped bool
	IsClone        bool
	SourceContainerID ids.ContainerID
	Overrides      OverrideSet
	OnEnterActions []ContainerAction
	OnExitActions  []ContainerAction
	AutomationLanes []AutomationLane
}

// EndBar is the exclusive end of this container's bar range.
func (c Container) EndBar() int { return c.StartBar + c.LengthBars }

// Crossfade joins two overlapping sibling containers on the same
// track with a curve; duration is implicit in the overlap.
type Crossfade struct {
	ID           ids.CrossfadeID
	ContainerAID ids.ContainerID
	ContainerBID ids.ContainerID
	Curve        CurveKind
}

// SectionRegion is a bar-range label purely for display; it has no
// scheduling effect.
type SectionRegion struct {
	ID         ids.SectionID
	StartBar   int
	EndBar     int
	Name       string
	ColorHex   string
}

// MetronomeConfig controls count-in / click playback.
type MetronomeConfig struct {
	Enabled      bool
	AccentVelocity uint8
	BeatVelocity   uint8
}

// Track is an ordered sequence of Containers plus its mix/routing
// state.
type Track struct {
	ID           ids.TrackID
	Kind         TrackKind
	Name         string
	Mix          MixParams
	RecordArm    bool
	Mute         bool
	Solo         bool
	EffectChain  []EffectNode
	Instrument   *EffectNode // hosted instrument plugin, addressed by EffectPath.IsInstrument(); nil on tracks with no instrument (audio, bus, master)
	MIDIFilter   MIDIInputFilter
	Containers   []Container
	Crossfades   []Crossfade
}

// TimeSignature mirrors clock.TimeSignature without importing clock,
// keeping score free of the conversion package's math.
type TimeSignature struct {
	BeatsPerBar int
	BeatUnit    int
}

// Song is one bar-aligned arrangement: tempo, time signature, tracks,
// and section labels.
type Song struct {
	ID            ids.SongID
	Name          string
	TimeSig       TimeSignature
	TempoBPM      float64
	CountInBars   int
	Metronome     MetronomeConfig
	Tracks        []Track
	Sections      []SectionRegion
}

// MIDIControlMapping associates a MIDI trigger with a transport/mixer
// control (Control is a midifabric.MappableControl name).
type MIDIControlMapping struct {
	TriggerKey string // midifabric.Trigger.Key()
	Control    string
}

// MIDIParameterMapping associates a MIDI CC trigger with a ranged
// parameter target.
type MIDIParameterMapping struct {
	TriggerKey string
	Path       EffectPath
	Min        float64
	Max        float64
}

// AudioDeviceSettings records the device configuration in effect while
// the Project is open (invariant 6: sample rate/channel count are
// global per Song while playing).
type AudioDeviceSettings struct {
	SampleRate   float64
	BufferSize   int
	InputDevice  string
	OutputDevice string
}

// Project is the top-level persisted document: songs, global mixer
// mappings, device settings, and the pool of immutable source assets.
type Project struct {
	Songs                  []Song
	ControlMappings        []MIDIControlMapping
	ParameterMappings      []MIDIParameterMapping
	AudioDevice            AudioDeviceSettings
	SourceRecordings       map[ids.SourceRecordingID]SourceRecording
}

// FindSong returns the Song with the given ID, or false.
func (p Project) FindSong(id ids.SongID) (Song, bool) {
	for _, s := range p.Songs {
		if s.ID == id {
			return s, true
		}
	}
	return Song{}, false
}

// FindTrack returns the Track with the given ID within Song, or false.
func (s Song) FindTrack(id ids.TrackID) (Track, bool) {
	for _, t := range s.Tracks {
		if t.ID == id {
			return t, true
		}
	}
	return Track{}, false
}

// FindContainer returns the Container with the given ID within Track,
// or false.
func (t Track) FindContainer(id ids.ContainerID) (Container, bool) {
	for _, c := range t.Containers {
		if c.ID == id {
			return c, true
		}
	}
	return Container{}, false
}

// MasterTrack returns the Song's terminal master track (invariant 5:
// exactly one per Song after validation).
func (s Song) MasterTrack() (Track, bool) {
	for _, t := range s.Tracks {
		if t.Kind == TrackMaster {
			return t, true
		}
	}
	return Track{}, false
}

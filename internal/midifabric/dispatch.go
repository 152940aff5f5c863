package midifabric

import (
	"sync"

	"github.com/schollz/looperd/internal/score"
)

// MappableControl is a named transport/mixer action a momentary
// trigger (note-on, CC edge) can fire.
type MappableControl string

const (
	ControlPlayPause       MappableControl = "playPause"
	ControlStop            MappableControl = "stop"
	ControlRecordArm       MappableControl = "recordArm"
	ControlNextSong        MappableControl = "nextSong"
	ControlPreviousSong    MappableControl = "previousSong"
	ControlMetronomeToggle MappableControl = "metronomeToggle"
	ControlTrackMute       MappableControl = "trackMute"
	ControlTrackSolo       MappableControl = "trackSolo"
	ControlTrackSelect     MappableControl = "trackSelect"
	ControlSongSelect      MappableControl = "songSelect"
)

// ContinuousControl is a named mixer parameter driven by a continuous
// trigger (CC, pitch bend) scaled to [0,1]. Per the spec's Open
// Question, a continuous control fires only this path, never
// onControlTriggered.
type ContinuousControl string

const (
	ContinuousTrackVolume ContinuousControl = "trackVolume"
	ContinuousTrackPan    ContinuousControl = "trackPan"
	ContinuousTrackSend   ContinuousControl = "trackSend"
)

// ControlDispatcher fires registered MappableControls and
// ContinuousControls when a matching Trigger arrives.
type ControlDispatcher struct {
	mu         sync.Mutex
	momentary  map[string]func(MappableControl)
	continuous map[string]func(ContinuousControl, float64)
	// triggerControl maps a Trigger.Key() to the control it invokes.
	triggerControl   map[string]MappableControl
	triggerContinuous map[string]ContinuousControl
}

// NewControlDispatcher returns an empty ControlDispatcher.
func NewControlDispatcher() *ControlDispatcher {
	return &ControlDispatcher{
		momentary:         make(map[string]func(MappableControl)),
		continuous:        make(map[string]func(ContinuousControl, float64)),
		triggerControl:    make(map[string]MappableControl),
		triggerContinuous: make(map[string]ContinuousControl),
	}
}

// BindMomentary registers handler to be called whenever triggerKey
// fires, identifying control.
func (d *ControlDispatcher) BindMomentary(triggerKey string, control MappableControl, handler func(MappableControl)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.triggerControl[triggerKey] = control
	d.momentary[triggerKey] = handler
}

// BindContinuous registers handler to be called with the trigger's
// scaled [0,1] value whenever triggerKey fires, identifying control.
func (d *ControlDispatcher) BindContinuous(triggerKey string, control ContinuousControl, handler func(ContinuousControl, float64)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.triggerContinuous[triggerKey] = control
	d.continuous[triggerKey] = handler
}

// Unbind removes any momentary or continuous mapping for triggerKey.
func (d *ControlDispatcher) Unbind(triggerKey string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.momentary, triggerKey)
	delete(d.continuous, triggerKey)
	delete(d.triggerControl, triggerKey)
	delete(d.triggerContinuous, triggerKey)
}

// Dispatch fires any control bound to trig's key. It returns true if a
// handler ran.
func (d *ControlDispatcher) Dispatch(trig Trigger) bool {
	key := trig.Key()
	d.mu.Lock()
	momentary, momentaryOK := d.momentary[key]
	control := d.triggerControl[key]
	continuous, continuousOK := d.continuous[key]
	cc := d.triggerContinuous[key]
	d.mu.Unlock()

	fired := false
	if momentaryOK && isMomentary(trig) {
		momentary(control)
		fired = true
	}
	if continuousOK {
		continuous(cc, trig.Scaled01())
		fired = true
	}
	return fired
}

func isMomentary(trig Trigger) bool {
	switch trig.Kind {
	case TriggerNoteOn, TriggerProgramChange:
		return true
	default:
		return false
	}
}

// ParameterMapping is a resolved {EffectPath, min, max} target for a CC
// trigger (§4.8 part 3).
type ParameterMapping struct {
	Path score.EffectPath
	Min  float64
	Max  float64
}

// ParameterDispatcher maps CC triggers to one or more ranged parameter
// targets and linearly scales incoming values into each target's
// [min,max].
type ParameterDispatcher struct {
	mu       sync.Mutex
	mappings map[string][]ParameterMapping
}

// NewParameterDispatcher returns an empty ParameterDispatcher.
func NewParameterDispatcher() *ParameterDispatcher {
	return &ParameterDispatcher{mappings: make(map[string][]ParameterMapping)}
}

// Bind adds mapping as a target for triggerKey, in addition to any
// mappings already bound to that key.
func (d *ParameterDispatcher) Bind(triggerKey string, mapping ParameterMapping) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mappings[triggerKey] = append(d.mappings[triggerKey], mapping)
}

// Clear removes every mapping bound to triggerKey.
func (d *ParameterDispatcher) Clear(triggerKey string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.mappings, triggerKey)
}

// ResolvedParameter is one setParameter call implied by an incoming CC.
type ResolvedParameter struct {
	Path  score.EffectPath
	Value float64
}

// Resolve returns the setParameter calls implied by trig: one
// (Path, Value) pair per bound mapping, value linearly scaled into
// [Min,Max] (S4: CC 64 with min=0.2,max=0.8 -> 0.2+(64/127)*0.6).
// Returns nil if trig isn't a CC or nothing is bound.
func (d *ParameterDispatcher) Resolve(trig Trigger) []ResolvedParameter {
	if trig.Kind != TriggerCC {
		return nil
	}
	d.mu.Lock()
	mappings := append([]ParameterMapping(nil), d.mappings[trig.Key()]...)
	d.mu.Unlock()

	u := trig.Scaled01()
	resolved := make([]ResolvedParameter, len(mappings))
	for i, m := range mappings {
		resolved[i] = ResolvedParameter{Path: m.Path, Value: m.Min + u*(m.Max-m.Min)}
	}
	return resolved
}

package midifabric

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/looperd/internal/ids"
	"github.com/schollz/looperd/internal/score"
)

func TestDecodeWordNoteOn(t *testing.T) {
	word := uint32(0x90)<<16 | uint32(60)<<8 | uint32(100)
	trig, err := DecodeWord(word)
	assert.NoError(t, err)
	assert.Equal(t, TriggerNoteOn, trig.Kind)
	assert.EqualValues(t, 60, trig.Note)
	assert.EqualValues(t, 100, trig.Velocity)
}

func TestDecodeWordNoteOnZeroVelocityIsNoteOff(t *testing.T) {
	word := uint32(0x90)<<16 | uint32(60)<<8 | uint32(0)
	trig, err := DecodeWord(word)
	assert.NoError(t, err)
	assert.Equal(t, TriggerNoteOff, trig.Kind)
}

func TestDecodeWordCC(t *testing.T) {
	word := uint32(0xB0)<<16 | uint32(11)<<8 | uint32(64)
	trig, err := DecodeWord(word)
	assert.NoError(t, err)
	assert.Equal(t, TriggerCC, trig.Kind)
	assert.EqualValues(t, 11, trig.Controller)
	assert.EqualValues(t, 64, trig.Value)
}

func TestParameterDispatcherScalesLinearly(t *testing.T) {
	// S4: CC#11 ch1 -> EffectPath{trackX, effect=0, param=42}, min=0.2 max=0.8, value=64.
	pd := NewParameterDispatcher()
	path := score.EffectPath{TrackID: ids.NewTrackID(), ParameterAddress: "42"}
	trig := Trigger{Kind: TriggerCC, Channel: 0, Controller: 11, Value: 64}
	pd.Bind(trig.Key(), ParameterMapping{Path: path, Min: 0.2, Max: 0.8})

	resolved := pd.Resolve(trig)
	assert.Len(t, resolved, 1)
	assert.InDelta(t, 0.2+(64.0/127.0)*0.6, resolved[0].Value, 1e-9)
}

func TestMonitorActivityWindow(t *testing.T) {
	m := NewMonitor()
	trackID := ids.NewTrackID()
	now := time.Now()
	m.Record(Trigger{Kind: TriggerNoteOn, Note: 60, Velocity: 100}, "devA", now, []ids.TrackID{trackID})

	assert.True(t, m.ActiveAt(trackID, now.Add(100*time.Millisecond)))
	assert.False(t, m.ActiveAt(trackID, now.Add(400*time.Millisecond)))
	assert.Len(t, m.Recent(), 1)
}

func TestMonitorRingWraps(t *testing.T) {
	m := NewMonitor()
	now := time.Now()
	for i := 0; i < logCapacity+10; i++ {
		m.Record(Trigger{Kind: TriggerCC, Controller: uint8(i % 128)}, "devA", now, nil)
	}
	assert.Len(t, m.Recent(), logCapacity)
}

func TestLearnSessionMomentary(t *testing.T) {
	cd := NewControlDispatcher()
	pd := NewParameterDispatcher()
	session := NewLearnSession(cd, pd)

	fired := ""
	session.RegisterControlHandler(ControlPlayPause, func(c MappableControl) { fired = string(c) })

	session.Start(LearnTarget{Control: ControlPlayPause})
	assert.True(t, session.Active())

	trig := Trigger{Kind: TriggerNoteOn, Channel: 0, Note: 36, Velocity: 127}
	ok := session.Capture(trig)
	assert.True(t, ok)
	assert.False(t, session.Active())

	assert.True(t, cd.Dispatch(trig))
	assert.Equal(t, string(ControlPlayPause), fired)
}

func TestLearnSessionReplacesExistingMapping(t *testing.T) {
	cd := NewControlDispatcher()
	pd := NewParameterDispatcher()
	session := NewLearnSession(cd, pd)

	var lastA, lastB string
	session.RegisterControlHandler(ControlStop, func(c MappableControl) { lastA = string(c) })
	session.RegisterControlHandler(ControlRecordArm, func(c MappableControl) { lastB = string(c) })

	trig := Trigger{Kind: TriggerNoteOn, Channel: 0, Note: 10, Velocity: 127}
	session.Start(LearnTarget{Control: ControlStop})
	session.Capture(trig)

	// Re-learning the same trigger to a different control replaces it.
	session.Start(LearnTarget{Control: ControlRecordArm})
	session.Capture(trig)

	cd.Dispatch(trig)
	assert.Equal(t, "", lastA)
	assert.Equal(t, string(ControlRecordArm), lastB)
}

func TestLearnSessionReplacesAcrossDispatcherTypes(t *testing.T) {
	cd := NewControlDispatcher()
	pd := NewParameterDispatcher()
	session := NewLearnSession(cd, pd)

	fired := false
	session.RegisterContinuousHandler(ContinuousTrackVolume, func(ContinuousControl, float64) { fired = true })

	trig := Trigger{Kind: TriggerCC, Channel: 0, Controller: 20, Value: 64}

	session.Start(LearnTarget{Continuous: ContinuousTrackVolume})
	session.Capture(trig)
	assert.True(t, cd.Dispatch(trig))

	// Re-learning the same trigger to a parameter target must clear the
	// old continuous-control mapping, not just install alongside it.
	path := score.EffectPath{TrackID: ids.TrackID("bass")}
	session.Start(LearnTarget{Parameter: &ParameterMapping{Path: path, Min: 0, Max: 1}})
	session.Capture(trig)

	fired = false
	assert.False(t, cd.Dispatch(trig))
	assert.False(t, fired)

	resolved := pd.Resolve(trig)
	assert.Len(t, resolved, 1)
	assert.Equal(t, path, resolved[0].Path)

	// And learning back to a continuous control must clear the
	// parameter mapping in turn.
	session.Start(LearnTarget{Continuous: ContinuousTrackVolume})
	session.Capture(trig)
	assert.Empty(t, pd.Resolve(trig))
	assert.True(t, cd.Dispatch(trig))
	assert.True(t, fired)
}

func TestTriggerKeyStability(t *testing.T) {
	a := Trigger{Kind: TriggerCC, Channel: 2, Controller: 7}
	b := Trigger{Kind: TriggerCC, Channel: 2, Controller: 7}
	assert.Equal(t, a.Key(), b.Key())
}

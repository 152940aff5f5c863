package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/looperd/internal/ids"
	"github.com/schollz/looperd/internal/midifabric"
	"github.com/schollz/looperd/internal/scheduler"
	"github.com/schollz/looperd/internal/score"
)

type nullSources struct{}

func (nullSources) ReadAt(ids.SourceRecordingID, int64, [][]float32) (int, error) { return 0, nil }
func (nullSources) ChannelCount(ids.SourceRecordingID) int                        { return 2 }

type nullHost struct{}

func (nullHost) Process(ids.PluginHandle, [][]float32, [][]float32, []scheduler.MIDIEvent, []scheduler.ParameterAutomation, bool) error {
	return nil
}
func (nullHost) SetParameterImmediate(ids.PluginHandle, string, float64) error { return nil }

func minimalProject(mappings []score.MIDIControlMapping) (*score.Project, ids.SongID) {
	songID := ids.NewSongID()
	song := score.Song{
		ID:       songID,
		Name:     "test",
		TimeSig:  score.TimeSignature{BeatsPerBar: 4, BeatUnit: 4},
		TempoBPM: 120,
		Tracks:   []score.Track{{ID: ids.NewTrackID(), Kind: score.TrackMaster, Name: "master"}},
	}
	return &score.Project{Songs: []score.Song{song}, ControlMappings: mappings}, songID
}

func newTestEngine(t *testing.T, mappings []score.MIDIControlMapping) *Engine {
	project, songID := minimalProject(mappings)
	eng, err := New(Config{SampleRate: 48000}, project, songID, nullSources{}, nullHost{})
	assert.NoError(t, err)
	return eng
}

func TestSetMidiMappingsInstallsLiveDispatch(t *testing.T) {
	eng := newTestEngine(t, nil)

	trig := midifabric.Trigger{Kind: midifabric.TriggerNoteOn, Channel: 0, Note: 12, Velocity: 127}
	err := eng.SetMidiMappings([]score.MIDIControlMapping{
		{TriggerKey: trig.Key(), Control: string(midifabric.ControlStop)},
	})
	assert.NoError(t, err)

	assert.True(t, eng.Controls.Dispatch(trig))
}

func TestConstructionReplaysPersistedMappings(t *testing.T) {
	trig := midifabric.Trigger{Kind: midifabric.TriggerNoteOn, Channel: 1, Note: 5, Velocity: 127}
	eng := newTestEngine(t, []score.MIDIControlMapping{
		{TriggerKey: trig.Key(), Control: string(midifabric.ControlPlayPause)},
	})

	assert.True(t, eng.Controls.Dispatch(trig))
}

func TestSetMidiMappingsUnknownControlIsNoop(t *testing.T) {
	eng := newTestEngine(t, nil)

	trig := midifabric.Trigger{Kind: midifabric.TriggerNoteOn, Channel: 2, Note: 7, Velocity: 127}
	err := eng.SetMidiMappings([]score.MIDIControlMapping{
		{TriggerKey: trig.Key(), Control: string(midifabric.ControlTrackMute)},
	})
	assert.NoError(t, err)

	assert.False(t, eng.Controls.Dispatch(trig))
}

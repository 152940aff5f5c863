package score

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/looperd/internal/ids"
)

func makeSong(tracks ...Track) Song {
	return Song{
		ID:       ids.NewSongID(),
		Name:     "test",
		TimeSig:  TimeSignature{BeatsPerBar: 4, BeatUnit: 4},
		TempoBPM: 120,
		Tracks:   append(tracks, Track{ID: ids.NewTrackID(), Kind: TrackMaster, Name: "master"}),
	}
}

func TestValidateOverlapWithoutCrossfadeRejected(t *testing.T) {
	trackID := ids.NewTrackID()
	a := Container{ID: ids.NewContainerID(), TrackID: trackID, StartBar: 1, LengthBars: 4}
	b := Container{ID: ids.NewContainerID(), TrackID: trackID, StartBar: 3, LengthBars: 4}
	track := Track{ID: trackID, Kind: TrackAudio, Containers: []Container{a, b}}
	p := Project{Songs: []Song{makeSong(track)}}

	err := Validate(p)
	assert.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "overlap-without-crossfade", verr.Kind)
}

func TestValidateOverlapWithCrossfadeAccepted(t *testing.T) {
	trackID := ids.NewTrackID()
	a := Container{ID: ids.NewContainerID(), TrackID: trackID, StartBar: 1, LengthBars: 8}
	b := Container{ID: ids.NewContainerID(), TrackID: trackID, StartBar: 8, LengthBars: 8}
	xf := Crossfade{ID: ids.NewCrossfadeID(), ContainerAID: a.ID, ContainerBID: b.ID, Curve: CurveLinear}
	track := Track{ID: trackID, Kind: TrackAudio, Containers: []Container{a, b}, Crossfades: []Crossfade{xf}}
	p := Project{Songs: []Song{makeSong(track)}}

	assert.NoError(t, Validate(p))
}

func TestValidateMasterTrackCardinality(t *testing.T) {
	song := Song{ID: ids.NewSongID(), Name: "no master", TimeSig: TimeSignature{4, 4}, TempoBPM: 120}
	p := Project{Songs: []Song{song}}

	err := Validate(p)
	assert.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "master-track-count", verr.Kind)
}

func TestValidateLaneBreakpointsMustBeSorted(t *testing.T) {
	trackID := ids.NewTrackID()
	c := Container{
		ID:      ids.NewContainerID(),
		TrackID: trackID,
		StartBar: 1, LengthBars: 4,
		AutomationLanes: []AutomationLane{{
			ID: ids.NewAutomationLaneID(),
			Breakpoints: []Breakpoint{
				{PositionBars: 2, Value: 0},
				{PositionBars: 1, Value: 1}, // out of order
			},
		}},
	}
	track := Track{ID: trackID, Kind: TrackAudio, Containers: []Container{c}}
	p := Project{Songs: []Song{makeSong(track)}}

	err := Validate(p)
	assert.Error(t, err)
}

func TestValidateProjectAudioReadPastEnd(t *testing.T) {
	trackID := ids.NewTrackID()
	recID := ids.NewSourceRecordingID()
	c := Container{
		ID: ids.NewContainerID(), TrackID: trackID, StartBar: 1, LengthBars: 8,
		Payload: ContainerPayload{Kind: PayloadAudio, RecordingRef: recID, AudioStartOffsetBars: 0},
	}
	track := Track{ID: trackID, Kind: TrackAudio, Containers: []Container{c}}
	song := makeSong(track)
	// Source is only 4 bars at this tempo/signature; container wants 8.
	samplesPerBar := 48000.0 * 60 * 4 / 120
	rec := SourceRecording{ID: recID, SampleRate: 48000, DurationSamps: int64(samplesPerBar * 4)}
	p := Project{Songs: []Song{song}, SourceRecordings: map[ids.SourceRecordingID]SourceRecording{recID: rec}}

	err := ValidateProject(p)
	assert.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "audio-read-past-end", verr.Kind)
}

func TestResolveClonesFollowsSource(t *testing.T) {
	trackID := ids.NewTrackID()
	srcID := ids.NewContainerID()
	cloneID := ids.NewContainerID()
	seq := MIDISequence{Notes: []MIDINote{{Pitch: 60, Velocity: 100, StartBeat: 0, Duration: 1}}}
	src := Container{ID: srcID, TrackID: trackID, StartBar: 1, LengthBars: 4, Payload: ContainerPayload{Kind: PayloadMIDI, SequenceRef: seq}}
	clone := Container{ID: cloneID, TrackID: trackID, StartBar: 5, LengthBars: 4, IsClone: true, SourceContainerID: srcID}
	track := Track{ID: trackID, Kind: TrackMIDI, Containers: []Container{src, clone}}
	p := Project{Songs: []Song{makeSong(track)}}

	resolved, err := ResolveClones(p)
	assert.NoError(t, err)
	gotClone, ok := resolved.Songs[0].Tracks[0].FindContainer(cloneID)
	assert.True(t, ok)
	assert.Equal(t, seq, gotClone.Payload.SequenceRef)
}

func TestResolveClonesDetectsCycle(t *testing.T) {
	trackID := ids.NewTrackID()
	aID := ids.NewContainerID()
	bID := ids.NewContainerID()
	a := Container{ID: aID, TrackID: trackID, StartBar: 1, LengthBars: 4, IsClone: true, SourceContainerID: bID}
	b := Container{ID: bID, TrackID: trackID, StartBar: 5, LengthBars: 4, IsClone: true, SourceContainerID: aID}
	track := Track{ID: trackID, Kind: TrackMIDI, Containers: []Container{a, b}}
	p := Project{Songs: []Song{makeSong(track)}}

	_, err := ResolveClones(p)
	assert.Error(t, err)
}

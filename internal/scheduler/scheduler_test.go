package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/looperd/internal/clock"
	"github.com/schollz/looperd/internal/ids"
	"github.com/schollz/looperd/internal/rtqueue"
	"github.com/schollz/looperd/internal/score"
	"github.com/schollz/looperd/internal/transport"
)

func TestTopologicalOrderSendsBeforeDestination(t *testing.T) {
	bus := ids.NewTrackID()
	master := ids.NewTrackID()
	leaf := ids.NewTrackID()
	song := score.Song{Tracks: []score.Track{
		{ID: leaf, Mix: score.MixParams{Sends: []score.Send{{DestinationTrackID: bus}}}},
		{ID: master, Kind: score.TrackMaster},
		{ID: bus, Kind: score.TrackBus, Mix: score.MixParams{Sends: []score.Send{{DestinationTrackID: master}}}},
	}}
	order := topologicalOrder(song)
	pos := map[ids.TrackID]int{}
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos[leaf], pos[bus])
	assert.Less(t, pos[bus], pos[master])
}

func TestResolveActiveCrossfadeWeightsSumToOne(t *testing.T) {
	// S3: A=[1,9), B=[8,16), linear crossfade.
	a := score.Container{ID: ids.NewContainerID(), StartBar: 1, LengthBars: 8, Payload: score.ContainerPayload{Kind: score.PayloadAudio, Gain: 1}}
	b := score.Container{ID: ids.NewContainerID(), StartBar: 8, LengthBars: 8, Payload: score.ContainerPayload{Kind: score.PayloadAudio, Gain: 1}}
	track := score.Track{
		Containers: []score.Container{a, b},
		Crossfades: []score.Crossfade{{ContainerAID: a.ID, ContainerBID: b.ID, Curve: score.CurveLinear}},
	}
	plans := resolveActive(track, 8, 9)
	assert.Len(t, plans, 2)
	for _, u := range []float64{8.0, 8.25, 8.5, 8.75} {
		var sum float64
		for _, p := range plans {
			sum += p.gain(u)
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestResolveActiveOverlapWithoutCrossfadeLaterWins(t *testing.T) {
	a := score.Container{ID: ids.NewContainerID(), StartBar: 1, LengthBars: 4, Payload: score.ContainerPayload{Kind: score.PayloadAudio, Gain: 1}}
	b := score.Container{ID: ids.NewContainerID(), StartBar: 3, LengthBars: 4, Payload: score.ContainerPayload{Kind: score.PayloadAudio, Gain: 1}}
	track := score.Track{Containers: []score.Container{a, b}}
	plans := resolveActive(track, 1, 7)
	var aGain, bGain func(float64) float64
	for _, p := range plans {
		if p.container.ID == a.ID {
			aGain = p.gain
		} else {
			bGain = p.gain
		}
	}
	assert.Equal(t, 1.0, aGain(2.5))
	assert.Equal(t, 0.0, aGain(3.0))
	assert.Equal(t, 1.0, bGain(3.0))
}

func TestApplyGainPanCenterIsEqualPower(t *testing.T) {
	buf := [][]float32{{1, 1}, {1, 1}}
	applyGainPan(buf, 0, 0)
	assert.InDelta(t, 0.70710678, buf[0][0], 1e-6)
	assert.InDelta(t, 0.70710678, buf[1][0], 1e-6)
}

type constSource struct {
	channels int
	duration int64
	value    float32
}

func (c constSource) ReadAt(id ids.SourceRecordingID, offset int64, dst [][]float32) (int, error) {
	remaining := c.duration - offset
	if remaining <= 0 {
		return 0, nil
	}
	n := len(dst[0])
	if int64(n) > remaining {
		n = int(remaining)
	}
	for ch := range dst {
		for i := 0; i < n; i++ {
			dst[ch][i] = c.value
		}
	}
	return n, nil
}

func (c constSource) ChannelCount(id ids.SourceRecordingID) int { return c.channels }

type recordingActions struct {
	crossings []BarCrossing
}

func (r *recordingActions) HandleBarCrossing(c BarCrossing) { r.crossings = append(r.crossings, c) }

func buildSimpleLoopSong(recID ids.SourceRecordingID, trackID, masterID ids.TrackID) score.Song {
	container := score.Container{
		ID: ids.NewContainerID(), TrackID: trackID, StartBar: 1, LengthBars: 4,
		Payload: score.ContainerPayload{Kind: score.PayloadAudio, RecordingRef: recID, Gain: 1},
	}
	return score.Song{
		TimeSig: score.TimeSignature{BeatsPerBar: 4, BeatUnit: 4}, TempoBPM: 120,
		Tracks: []score.Track{
			{ID: trackID, Kind: score.TrackAudio, Mix: score.MixParams{Sends: []score.Send{{DestinationTrackID: masterID}}}, Containers: []score.Container{container}},
			{ID: masterID, Kind: score.TrackMaster},
		},
	}
}

func TestProcessRendersAudioAndWrapsLoop(t *testing.T) {
	tm := clock.New(48000, 120, clock.TimeSignature{4, 4})
	recID := ids.NewSourceRecordingID()
	trackID := ids.NewTrackID()
	masterID := ids.NewTrackID()
	song := buildSimpleLoopSong(recID, trackID, masterID)
	songID := ids.NewSongID()
	song.ID = songID

	project := &score.Project{
		Songs: []score.Song{song},
		SourceRecordings: map[ids.SourceRecordingID]score.SourceRecording{
			recID: {ID: recID, ChannelCount: 2, SampleRate: 48000, DurationSamps: int64(4 * tm.SamplesPerBar())},
		},
	}

	snap := &rtqueue.SnapshotSlot{}
	snap.Install(project)
	queue := rtqueue.NewQueue(8)
	tr := transport.New()
	tr.Play(1, tm)
	tr.SetLoop(&transport.LoopRange{Lo: 1, Hi: 5})

	actions := &recordingActions{}
	sched := New(snap, queue, tr)
	sched.SongID = songID
	sched.Sources = constSource{channels: 2, duration: int64(4 * tm.SamplesPerBar()), value: 1}
	sched.Actions = actions

	n := int(tm.SamplesPerBar())
	out := [][]float32{make([]float32, n), make([]float32, n)}
	in := [][]float32{make([]float32, n), make([]float32, n)}

	// Center pan (-3 dB) is applied once on the way to the master bus.
	const centerGain = 0.70710678

	for bar := 0; bar < 12; bar++ {
		sched.Process(n, in, out, tm)
		for _, v := range out[0] {
			assert.InDelta(t, centerGain, v, 1e-5)
		}
	}

	var enters, exits int
	for _, c := range actions.crossings {
		if c.Edge == EdgeEnter {
			enters++
		} else {
			exits++
		}
	}
	assert.Equal(t, 3, enters)
}

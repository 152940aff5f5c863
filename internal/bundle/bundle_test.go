package bundle

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/looperd/internal/ids"
	"github.com/schollz/looperd/internal/score"
	"github.com/schollz/looperd/internal/sourceaudio"
)

func TestSaveLoadRoundTripsProjectAndAudio(t *testing.T) {
	dir := t.TempDir()

	recID := ids.NewSourceRecordingID()
	trackID := ids.NewTrackID()
	containerID := ids.NewContainerID()
	songID := ids.NewSongID()

	channels := [][]float32{
		{0.5, -0.5, 0.25, 0},
		{0.5, -0.5, 0.25, 0},
	}

	project := &score.Project{
		Songs: []score.Song{{
			ID:      songID,
			Name:    "song",
			TempoBPM: 120,
			Tracks: []score.Track{{
				ID:   trackID,
				Kind: score.TrackAudio,
				Containers: []score.Container{{
					ID:         containerID,
					TrackID:    trackID,
					StartBar:   0,
					LengthBars: 1,
					Payload: score.ContainerPayload{
						Kind:         score.PayloadAudio,
						RecordingRef: recID,
						Gain:         1,
					},
				}},
			}},
		}},
		SourceRecordings: map[ids.SourceRecordingID]score.SourceRecording{
			recID: {ID: recID, ChannelCount: 2, SampleRate: 48000, DurationSamps: 4},
		},
	}

	store := sourceaudio.NewStore()
	store.Register(recID, channels, 48000)

	require.NoError(t, Save(dir, project, store))
	assert.FileExists(t, filepath.Join(dir, "project.json.gz"))
	assert.FileExists(t, filepath.Join(dir, "audio", string(recID)+".wav"))

	loadStore := sourceaudio.NewStore()
	loaded, err := Load(dir, loadStore)
	require.NoError(t, err)

	require.Len(t, loaded.Songs, 1)
	require.Len(t, loaded.Songs[0].Tracks, 1)
	require.Len(t, loaded.Songs[0].Tracks[0].Containers, 1)

	newRef := loaded.Songs[0].Tracks[0].Containers[0].Payload.RecordingRef
	rec, ok := loaded.SourceRecordings[newRef]
	require.True(t, ok)
	assert.Equal(t, 2, rec.ChannelCount)
	assert.EqualValues(t, 48000, rec.SampleRate)
	assert.Equal(t, int64(4), rec.DurationSamps)

	dst := [][]float32{make([]float32, 4), make([]float32, 4)}
	n, err := loadStore.ReadAt(newRef, 0, dst)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.InDelta(t, 0.5, dst[0][0], 0.01)
	assert.InDelta(t, -0.5, dst[0][1], 0.01)
}

func TestSaveFailsWhenAssetMissing(t *testing.T) {
	dir := t.TempDir()
	recID := ids.NewSourceRecordingID()
	project := &score.Project{
		SourceRecordings: map[ids.SourceRecordingID]score.SourceRecording{
			recID: {ID: recID, ChannelCount: 1, SampleRate: 48000},
		},
	}
	store := sourceaudio.NewStore()
	err := Save(dir, project, store)
	assert.Error(t, err)
}

package sourceaudio

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/looperd/internal/ids"
)

func TestReadAtZeroPadsPastEndOfSource(t *testing.T) {
	s := NewStore()
	id := ids.NewSourceRecordingID()
	s.Register(id, [][]float32{{1, 2, 3}, {4, 5, 6}}, 48000)

	dst := [][]float32{make([]float32, 5), make([]float32, 5)}
	n, err := s.ReadAt(id, 1, dst)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []float32{2, 3, 0, 0, 0}, dst[0])
	assert.Equal(t, []float32{5, 6, 0, 0, 0}, dst[1])
}

func TestReadAtUnknownRecordingErrors(t *testing.T) {
	s := NewStore()
	dst := [][]float32{make([]float32, 2)}
	_, err := s.ReadAt(ids.NewSourceRecordingID(), 0, dst)
	assert.Error(t, err)
}

func TestChannelCountReflectsRegisteredAsset(t *testing.T) {
	s := NewStore()
	id := ids.NewSourceRecordingID()
	s.Register(id, [][]float32{{0}, {0}, {0}}, 44100)
	assert.Equal(t, 3, s.ChannelCount(id))
	assert.Equal(t, 0, s.ChannelCount(ids.NewSourceRecordingID()))
}

func TestReadAtOffsetPastEndReturnsZeroFrames(t *testing.T) {
	s := NewStore()
	id := ids.NewSourceRecordingID()
	s.Register(id, [][]float32{{1, 2}}, 48000)
	dst := [][]float32{make([]float32, 4)}
	n, err := s.ReadAt(id, 10, dst)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, []float32{0, 0, 0, 0}, dst[0])
}

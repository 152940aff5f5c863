package recorder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/looperd/internal/ids"
)

func TestRingPushDrainPreservesOrder(t *testing.T) {
	r := newFrameRing(2, 16)
	src := [][]float32{{1, 2, 3, 4}, {10, 20, 30, 40}}
	n := r.Push(src, 0, 4)
	assert.Equal(t, 4, n)

	var got [][2]float32
	r.Drain(func(frame []float32) { got = append(got, [2]float32{frame[0], frame[1]}) })
	require.Len(t, got, 4)
	assert.Equal(t, [2]float32{1, 10}, got[0])
	assert.Equal(t, [2]float32{4, 40}, got[3])
}

func TestRingPushDropsExcessWhenFull(t *testing.T) {
	r := newFrameRing(1, 4)
	src := [][]float32{{1, 2, 3, 4, 5, 6}}
	n := r.Push(src, 0, 6)
	assert.Equal(t, 4, n)
}

func TestArmCaptureDisarmProducesCompleted(t *testing.T) {
	s := NewSink(4)
	defer s.Close()

	trackID := ids.NewTrackID()
	containerID := ids.NewContainerID()
	s.Arm(trackID, containerID, 2, 48000)

	input := [][]float32{
		make([]float32, 1024),
		make([]float32, 1024),
	}
	for i := range input[0] {
		input[0][i] = 0.5
		input[1][i] = -0.25
	}

	for i := 0; i < 4; i++ {
		s.Capture(trackID, containerID, input, 0, 256)
	}

	s.Disarm(containerID)

	select {
	case completed := <-s.Completed():
		assert.Equal(t, []ids.ContainerID{containerID}, completed.LinkedContainers)
		assert.Equal(t, 2, completed.Recording.ChannelCount)
		assert.EqualValues(t, 48000, completed.Recording.SampleRate)
		assert.Equal(t, int64(1024), completed.Recording.DurationSamps)
		require.NotEmpty(t, completed.Recording.Peaks)
		assert.InDelta(t, 0.5, completed.Recording.Peaks[0], 1e-6)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Completed")
	}
}

func TestCaptureOnUnknownContainerIsIgnored(t *testing.T) {
	s := NewSink(1)
	defer s.Close()
	input := [][]float32{{0, 0}, {0, 0}}
	assert.NotPanics(t, func() {
		s.Capture(ids.NewTrackID(), ids.NewContainerID(), input, 0, 2)
	})
}

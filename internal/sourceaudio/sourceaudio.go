// Package sourceaudio is the asset layer of §6's "Project bundle"
// collaborator: it decodes WAV assets into de-interleaved float32
// buffers, generates the peak overview carried on
// score.SourceRecording, and implements scheduler.AudioSourceStore so
// the Scheduler can read them during playback. Grounded on the
// teacher's internal/getbpm, which already speaks go-audio/wav for
// PCM-length probing; this package generalizes that to a full decode.
package sourceaudio

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-audio/wav"

	"github.com/schollz/looperd/internal/ids"
	"github.com/schollz/looperd/internal/score"
)

// peakWindowFrames matches the resolution recorder.Sink bakes into
// live captures, so imported and recorded assets show comparable
// overview detail.
const peakWindowFrames = 512

type asset struct {
	channels   [][]float32 // [channel][sample], full decode
	sampleRate float64
}

// Store holds decoded assets in memory, keyed by SourceRecordingID,
// and serves scheduler.AudioSourceStore reads against them. Reads are
// lock-free: the asset map is published via an atomic pointer and
// replaced wholesale on Load/Register, so the audio thread never
// blocks behind a control-thread import (§5's snapshot-publication
// idiom applied to the asset layer).
type Store struct {
	assets atomic.Pointer[map[ids.SourceRecordingID]*asset]
	mu     sync.Mutex // serializes writers; readers never take it
}

// NewStore returns an empty Store ready to Load/Register into.
func NewStore() *Store {
	s := &Store{}
	empty := map[ids.SourceRecordingID]*asset{}
	s.assets.Store(&empty)
	return s
}

// Load decodes a PCM WAV file in full, computes its peak overview, and
// registers it under a freshly minted SourceRecordingID.
func (s *Store) Load(path string) (score.SourceRecording, error) {
	f, err := os.Open(path)
	if err != nil {
		return score.SourceRecording{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return score.SourceRecording{}, fmt.Errorf("%s: invalid WAV file", path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return score.SourceRecording{}, fmt.Errorf("decode %s: %w", path, err)
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		return score.SourceRecording{}, fmt.Errorf("%s: invalid channel count %d", path, channels)
	}
	frames := len(buf.Data) / channels
	maxValue := float32(int(1) << (uint(buf.SourceBitDepth) - 1))
	if buf.SourceBitDepth <= 0 {
		maxValue = float32(1 << 15)
	}

	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	peaks := make([]float32, 0, frames/peakWindowFrames+1)
	var windowPeak float32
	var windowFilled int
	for i := 0; i < frames; i++ {
		var framePeak float32
		for c := 0; c < channels; c++ {
			v := float32(buf.Data[i*channels+c]) / maxValue
			out[c][i] = v
			if v < 0 {
				v = -v
			}
			if v > framePeak {
				framePeak = v
			}
		}
		if framePeak > windowPeak {
			windowPeak = framePeak
		}
		windowFilled++
		if windowFilled >= peakWindowFrames {
			peaks = append(peaks, windowPeak)
			windowPeak = 0
			windowFilled = 0
		}
	}
	if windowFilled > 0 {
		peaks = append(peaks, windowPeak)
	}

	id := ids.NewSourceRecordingID()
	rec := score.SourceRecording{
		ID:            id,
		ChannelCount:  channels,
		SampleRate:    float64(buf.Format.SampleRate),
		DurationSamps: int64(frames),
		Peaks:         peaks,
	}
	s.Register(id, out, float64(buf.Format.SampleRate))
	return rec, nil
}

// Register installs a decoded asset directly, bypassing file I/O.
// Used by Load and by tests.
func (s *Store) Register(id ids.SourceRecordingID, channels [][]float32, sampleRate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := *s.assets.Load()
	next := make(map[ids.SourceRecordingID]*asset, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[id] = &asset{channels: channels, sampleRate: sampleRate}
	s.assets.Store(&next)
}

// ReadAt implements scheduler.AudioSourceStore.
func (s *Store) ReadAt(id ids.SourceRecordingID, offsetSamples int64, dst [][]float32) (int, error) {
	assets := *s.assets.Load()
	a, ok := assets[id]
	if !ok {
		return 0, fmt.Errorf("sourceaudio: unknown recording %s", id)
	}
	if offsetSamples < 0 {
		return 0, nil
	}
	frames := 0
	if len(dst) > 0 {
		frames = len(dst[0])
	}
	for c := range dst {
		var src []float32
		if c < len(a.channels) {
			src = a.channels[c]
		}
		n := copy(dst[c], sliceFrom(src, offsetSamples))
		if n < frames {
			for i := n; i < frames; i++ {
				dst[c][i] = 0
			}
		}
	}
	available := int64(len(a.channels[0])) - offsetSamples
	if available < 0 {
		available = 0
	}
	if available < int64(frames) {
		return int(available), nil
	}
	return frames, nil
}

// ChannelCount implements scheduler.AudioSourceStore.
func (s *Store) ChannelCount(id ids.SourceRecordingID) int {
	assets := *s.assets.Load()
	a, ok := assets[id]
	if !ok {
		return 0
	}
	return len(a.channels)
}

// Channels returns the full decoded per-channel sample data for id, or
// nil if unknown. Implements bundle.AssetSource so a Store doubles as
// the asset source a Save call reads from.
func (s *Store) Channels(id ids.SourceRecordingID) [][]float32 {
	assets := *s.assets.Load()
	a, ok := assets[id]
	if !ok {
		return nil
	}
	return a.channels
}

func sliceFrom(src []float32, offset int64) []float32 {
	if offset >= int64(len(src)) {
		return nil
	}
	return src[offset:]
}

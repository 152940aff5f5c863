package recorder

import (
	"sync"

	"github.com/schollz/looperd/internal/ids"
	"github.com/schollz/looperd/internal/score"
)

// ringCapacitySeconds bounds how far a capture's background writer may
// fall behind the audio thread before frames are dropped rather than
// risk an unbounded allocation on the RT path.
const ringCapacitySeconds = 30

// peakWindowFrames is the resolution of the peak overview computed
// while a capture is in flight, used for live level metering (§9) and
// baked into the finalized SourceRecording.
const peakWindowFrames = 512

// Completed reports a capture that has been finalized into a new
// SourceRecording, together with the containers that should be
// repointed at it.
type Completed struct {
	Recording        score.SourceRecording
	LinkedContainers []ids.ContainerID
}

type capture struct {
	trackID      ids.TrackID
	containerIDs []ids.ContainerID // containers sharing one physical take, e.g. overlapping armed layers
	channels     int
	sampleRate   float64
	ring         *frameRing

	// drainMu serializes the two paths that can consume this capture's
	// ring: the background writer loop and a direct Disarm finalize.
	// Everything below it is writer-side state; never touched from
	// Capture.
	drainMu    sync.Mutex
	samples    int64
	peaks      []float32
	peakAccum  float32
	peakFilled int
}

// Sink implements scheduler.RecordingSink. Capture is called from the
// audio thread and must never block or allocate; it only copies into a
// preallocated ring. A single background goroutine drains every active
// capture's ring and accumulates peaks; Disarm assembles a
// SourceRecording and emits it on Completed.
type Sink struct {
	mu       sync.Mutex // guards active, start/stop bookkeeping only; never held by Capture
	active   map[ids.ContainerID]*capture
	done     chan struct{}
	wake     chan struct{}
	wg       sync.WaitGroup
	completed chan Completed
}

// NewSink starts the background writer goroutine. completedCapacity
// sizes the Completed channel; callers on the control thread are
// expected to drain it promptly.
func NewSink(completedCapacity int) *Sink {
	s := &Sink{
		active:    map[ids.ContainerID]*capture{},
		done:      make(chan struct{}),
		wake:      make(chan struct{}, 1),
		completed: make(chan Completed, completedCapacity),
	}
	s.wg.Add(1)
	go s.writerLoop()
	return s
}

// Completed is the channel of finalized recordings; drain it on the
// control thread.
func (s *Sink) Completed() <-chan Completed { return s.completed }

// Close stops the background writer. Any captures still open are
// dropped without finalizing.
func (s *Sink) Close() {
	close(s.done)
	s.wg.Wait()
}

// Arm opens a new capture for containerID on trackID. Safe to call
// only from the control thread (it allocates the ring);
// Engine.ArmContainerRecord calls it alongside its ScoreModel edit.
func (s *Sink) Arm(trackID ids.TrackID, containerID ids.ContainerID, channels int, sampleRate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[containerID] = &capture{
		trackID:      trackID,
		containerIDs: []ids.ContainerID{containerID},
		channels:     channels,
		sampleRate:   sampleRate,
		ring:         newFrameRing(channels, int(ringCapacitySeconds*sampleRate)),
	}
}

// Disarm stops accepting new frames for containerID and finalizes
// whatever was captured so far. Safe to call only from the control
// thread.
func (s *Sink) Disarm(containerID ids.ContainerID) {
	s.mu.Lock()
	c, ok := s.active[containerID]
	if ok {
		delete(s.active, containerID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.drainCapture(c, true)
}

// Capture implements scheduler.RecordingSink. It is called once per
// audio callback for every armed container whose bar range intersects
// the callback, with the full-width channel slice and the in-buffer
// frame range belonging to that container.
func (s *Sink) Capture(trackID ids.TrackID, containerID ids.ContainerID, input [][]float32, startInBuffer, frames int) {
	s.mu.Lock()
	c, ok := s.active[containerID]
	s.mu.Unlock()
	if !ok || frames <= 0 {
		return
	}
	c.ring.Push(input, startInBuffer, frames)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// PeaksFor returns a copy of the in-progress peak overview for an
// armed container, or nil if it is not currently armed. Safe to call
// from the control thread at any time (§9 level metering).
func (s *Sink) PeaksFor(containerID ids.ContainerID) []float32 {
	s.mu.Lock()
	c, ok := s.active[containerID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	c.drainMu.Lock()
	defer c.drainMu.Unlock()
	out := make([]float32, len(c.peaks))
	copy(out, c.peaks)
	return out
}

func (s *Sink) writerLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		s.mu.Lock()
		snapshot := make([]*capture, 0, len(s.active))
		for _, c := range s.active {
			snapshot = append(snapshot, c)
		}
		s.mu.Unlock()
		for _, c := range snapshot {
			s.drainCapture(c, false)
		}
	}
}

// drainCapture pulls whatever frames are currently queued in c's ring
// into its accumulated peak overview. When finalize is true (the
// capture has been disarmed) it also emits a Completed event. The
// captured samples themselves are not kept: only the frame count and
// peak overview reach the SourceRecording, and its new ID is not
// registered with any audio store (§4.7).
func (s *Sink) drainCapture(c *capture, finalize bool) {
	c.drainMu.Lock()
	defer c.drainMu.Unlock()
	c.ring.Drain(func(frame []float32) {
		var peak float32
		for _, v := range frame {
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
		c.samples++
		if peak > c.peakAccum {
			c.peakAccum = peak
		}
		c.peakFilled++
		if c.peakFilled >= peakWindowFrames {
			c.peaks = append(c.peaks, c.peakAccum)
			c.peakAccum = 0
			c.peakFilled = 0
		}
	})
	if !finalize {
		return
	}
	if c.peakFilled > 0 {
		c.peaks = append(c.peaks, c.peakAccum)
	}
	rec := score.SourceRecording{
		ID:            ids.NewSourceRecordingID(),
		ChannelCount:  c.channels,
		SampleRate:    c.sampleRate,
		DurationSamps: c.samples,
		Peaks:         c.peaks,
	}
	// Only Disarm finalizes, so this send runs on the goroutine that
	// called Disarm, never the audio thread. It blocks that caller while
	// Completed is full rather than drop a finished take.
	s.completed <- Completed{Recording: rec, LinkedContainers: c.containerIDs}
}

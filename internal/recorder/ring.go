// Package recorder implements the Recording Manager of §4.7: it
// captures the input buffer into armed containers bounded by their bar
// range, without ever blocking the audio thread, and finalizes
// completed captures into new SourceRecordings in the background.
package recorder

import "sync/atomic"

// frameRing is a bounded single-producer/single-consumer ring of
// interleaved-by-channel float32 samples. The audio thread is the
// producer (Push, never blocks, never allocates); a background
// goroutine is the consumer (Drain). Modeled directly on
// rtqueue.Queue's head/tail atomics, specialized to sample frames
// instead of commands (§4.7 "sinks write to a lock-free ring consumed
// by a background writer").
type frameRing struct {
	channels int
	buf      [][]float32 // [channel][capacity]
	capacity int64
	write    atomic.Int64
	read     atomic.Int64
}

func newFrameRing(channels, capacityFrames int) *frameRing {
	buf := make([][]float32, channels)
	for c := range buf {
		buf[c] = make([]float32, capacityFrames)
	}
	return &frameRing{channels: channels, buf: buf, capacity: int64(capacityFrames)}
}

// Push copies up to frames samples starting at offset within src into
// the ring, starting immediately after whatever is already queued. It
// returns the number of frames actually written, which is less than
// requested only if the ring is full — at which point the caller
// (Capture) drops the remainder rather than blocking, because falling
// behind a background writer must never stall the RT thread.
func (r *frameRing) Push(src [][]float32, offset, frames int) int {
	w := r.write.Load()
	readPos := r.read.Load()
	free := r.capacity - (w - readPos)
	if int64(frames) > free {
		frames = int(free)
	}
	for i := 0; i < frames; i++ {
		slot := (w + int64(i)) % r.capacity
		for c := 0; c < r.channels; c++ {
			var v float32
			if c < len(src) {
				v = src[c][offset+i]
			}
			r.buf[c][slot] = v
		}
	}
	r.write.Store(w + int64(frames))
	return frames
}

// Drain calls fn once per available frame, in order, advancing the
// read cursor. Safe to call only from the single background consumer
// goroutine.
func (r *frameRing) Drain(fn func(frame []float32)) {
	read := r.read.Load()
	write := r.write.Load()
	scratch := make([]float32, r.channels)
	for read < write {
		slot := read % r.capacity
		for c := 0; c < r.channels; c++ {
			scratch[c] = r.buf[c][slot]
		}
		fn(scratch)
		read++
	}
	r.read.Store(read)
}

package rtqueue

import (
	"sync/atomic"

	"github.com/schollz/looperd/internal/score"
)

// SnapshotSlot publishes the currently-active ScoreModel snapshot to
// the audio thread via a single atomic pointer swap (§4.2: "the thread
// publishes a pointer-sized swap"). Go's garbage collector frees the
// old *score.Project once nothing references it, so there is no manual
// deallocation step — but the control thread still needs to know the
// audio thread has moved off a superseded snapshot before it can
// safely assume edits built on top of it are visible everywhere, which
// is what Install/Acknowledge/WaitAcknowledged implement: a hazard-style handshake
// without ever taking a lock on the audio side.
type SnapshotSlot struct {
	current atomic.Pointer[score.Project]
	epoch   atomic.Uint64 // bumped by Install; the "publish" epoch
	seen    atomic.Uint64 // bumped by Acknowledge; the "last epoch the RT thread observed"
}

// Install publishes snap as the new current snapshot and returns the
// epoch number the audio thread must Acknowledge before the control
// thread can be sure snap is actually the one being rendered.
func (s *SnapshotSlot) Install(snap *score.Project) uint64 {
	s.current.Store(snap)
	return s.epoch.Add(1)
}

// Load returns the currently-published snapshot. Safe to call from the
// audio thread with no locking and no allocation.
func (s *SnapshotSlot) Load() *score.Project {
	return s.current.Load()
}

// Acknowledge is called once per callback from the audio thread after
// it has read Load() for that callback, confirming it is no longer
// running against any older snapshot.
func (s *SnapshotSlot) Acknowledge() {
	s.seen.Store(s.epoch.Load())
}

// Acknowledged reports the most recent epoch the audio thread has
// confirmed rendering against.
func (s *SnapshotSlot) Acknowledged() uint64 {
	return s.seen.Load()
}

// WaitAcknowledged reports whether the audio thread has acknowledged
// at least the given epoch. The control thread polls this (§7
// SnapshotReclamationStall: "back-pressure the control thread (block
// edits) rather than free in-use data") before it considers a prior
// snapshot's resources — e.g. a plugin handle it's about to destroy —
// truly unreferenced.
func (s *SnapshotSlot) WaitAcknowledged(epoch uint64) bool {
	return s.seen.Load() >= epoch
}

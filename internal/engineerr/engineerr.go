// Package engineerr implements the non-fatal error event model of §7:
// every RT-thread failure is reported via a lock-free ring rather than
// a panic or blocking call, and is tagged with the policy that governs
// how the engine already responded to it.
package engineerr

import "github.com/schollz/looperd/internal/ids"

// Kind is one of the §7 error kinds.
type Kind string

const (
	MissingSourceRecording Kind = "missing-source-recording"
	PluginProcessFailure   Kind = "plugin-process-failure"
	AudioDeviceUnderrun    Kind = "audio-device-underrun"
	MidiDeviceDisappeared  Kind = "midi-device-disappeared"
	InvalidEdit            Kind = "invalid-edit"
	RecordingSinkFailure   Kind = "recording-sink-failure"
	CorruptImport          Kind = "corrupt-import"
	SnapshotReclamationStall Kind = "snapshot-reclamation-stall"
	Shutdown               Kind = "shutdown"
)

// Event is a single reported failure, already policy-resolved by the
// component that raised it (the RT thread never blocks on reporting).
type Event struct {
	Kind   Kind
	Entity string // opaque entity ID (track/container/plugin handle), may be empty
	Note   string
}

// Reporter is a bounded, non-blocking sink for Events; a full ring
// drops the oldest event rather than stalling the caller (the RT
// thread must never block on reporting per §5/§7).
type Reporter struct {
	ch chan Event
}

// NewReporter returns a Reporter with the given ring capacity.
func NewReporter(capacity int) *Reporter {
	return &Reporter{ch: make(chan Event, capacity)}
}

// Report enqueues ev, dropping the oldest pending event if the ring is
// full so the caller never blocks.
func (r *Reporter) Report(ev Event) {
	select {
	case r.ch <- ev:
	default:
		select {
		case <-r.ch:
		default:
		}
		select {
		case r.ch <- ev:
		default:
		}
	}
}

// Events exposes the channel for the control thread to drain.
func (r *Reporter) Events() <-chan Event { return r.ch }

// MissingSource reports a container that could not find its backing
// SourceRecording; policy is "contribute silence, report once".
func MissingSource(r *Reporter, containerID ids.ContainerID) {
	r.Report(Event{Kind: MissingSourceRecording, Entity: string(containerID), Note: "source recording not found; contributing silence"})
}

// PluginFailure reports a plugin's Process call returning an error;
// policy is "bypass slot for this callback".
func PluginFailure(r *Reporter, handle ids.PluginHandle, err error) {
	r.Report(Event{Kind: PluginProcessFailure, Entity: string(handle), Note: err.Error()})
}

// Underrun reports a callback the driver could not complete in time.
func Underrun(r *Reporter) {
	r.Report(Event{Kind: AudioDeviceUnderrun, Note: "callback underrun; output zero-filled"})
}

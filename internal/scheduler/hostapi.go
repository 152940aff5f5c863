// Package scheduler implements the Playback Scheduler of §4.3: the
// per-callback algorithm that turns a bar-aligned score snapshot into
// sample-accurate audio and MIDI, driven by the opaque collaborators
// of §6 (audio driver, plugin host, MIDI driver).
package scheduler

import (
	"github.com/schollz/looperd/internal/ids"
	"github.com/schollz/looperd/internal/score"
)

// AudioSourceStore resolves a SourceRecording to raw per-channel
// sample frames, the boundary collaborator for reading audio payloads
// (§6 groups this under the opaque "Project bundle" / asset layer).
type AudioSourceStore interface {
	// ReadAt fills dst (per-channel, frames long) starting at
	// offsetSamples into the named recording. It returns the number of
	// frames actually written, which is less than len(dst[0]) only at
	// end of source.
	ReadAt(id ids.SourceRecordingID, offsetSamples int64, dst [][]float32) (int, error)
	ChannelCount(id ids.SourceRecordingID) int
}

// MIDIEvent is a single scheduled MIDI message at a sample offset
// within the current callback buffer (§4.3.c, §6 audio driver
// contract: "N interleaved frames and a host time").
type MIDIEvent struct {
	Message      score.MIDIMessage
	SampleOffset int
}

// ParameterAutomation is one resolved automation value to deliver to a
// plugin instance within the current callback (§4.6). EffectIndex is
// -1 for the track's instrument, matching EffectPath.IsInstrument().
type ParameterAutomation struct {
	EffectIndex  int
	Address      string
	Value        float64
	SampleOffset int
}

// PluginHost is the opaque plugin-hosting collaborator of §6.
type PluginHost interface {
	Process(handle ids.PluginHandle, in, out [][]float32, midi []MIDIEvent, automation []ParameterAutomation, bypass bool) error
	SetParameterImmediate(handle ids.PluginHandle, address string, value float64) error
}

// MIDIOutput is the subset of the MIDI Fabric's routing surface the
// scheduler needs to deliver sendMIDI actions and note events (§4.8
// Output).
type MIDIOutput interface {
	RouteToTrack(trackID ids.TrackID, msg score.MIDIMessage, sampleOffset int) error
	RouteToExternalPort(name string, msg score.MIDIMessage, sampleOffset int) error
	AllNotesOff()
}

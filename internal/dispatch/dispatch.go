// Package dispatch implements the Action Dispatcher of §4.5: it
// receives every bar-boundary crossing the Scheduler reports and
// executes the container's onEnter/onExit actions in order, at the
// crossing's sample offset.
package dispatch

import (
	"fmt"

	"github.com/schollz/looperd/internal/engineerr"
	"github.com/schollz/looperd/internal/ids"
	"github.com/schollz/looperd/internal/rtqueue"
	"github.com/schollz/looperd/internal/score"
	"github.com/schollz/looperd/internal/scheduler"
)

// MIDIRouter is the subset of the MIDI Fabric's output surface needed
// for sendMIDI actions.
type MIDIRouter interface {
	RouteToTrack(trackID ids.TrackID, msg score.MIDIMessage, sampleOffset int) error
	RouteToExternalPort(name string, msg score.MIDIMessage, sampleOffset int) error
}

// TrackResolver finds the track a named destination belongs to, so
// sendMIDI can tell an internal track name apart from an external
// port display name.
type TrackResolver interface {
	TrackIDByName(name string) (ids.TrackID, bool)
}

// ContainerGate is the scheduler's runtime stopped-mask surface
// (§4.5): triggerContainer(start/stop) toggles it directly rather than
// going through a ScoreModel edit, since it is transport-run
// transient state, not persisted layout.
type ContainerGate interface {
	SetSuppressed(id ids.ContainerID, suppressed bool)
}

// Dispatcher executes bar-crossing actions: sendMIDI against a MIDI
// router, triggerContainer against the scheduler's container gate, and
// setParameter via the RT command queue's immediate-set path.
type Dispatcher struct {
	Queue     *rtqueue.Queue
	MIDI      MIDIRouter
	Tracks    TrackResolver
	Gate      ContainerGate
	Errors    *engineerr.Reporter
}

// HandleBarCrossing implements scheduler.ActionSink.
func (d *Dispatcher) HandleBarCrossing(crossing scheduler.BarCrossing) {
	for _, action := range crossing.Actions {
		d.execute(action, crossing.SampleOffset)
	}
}

func (d *Dispatcher) execute(action score.ContainerAction, sampleOffset int) {
	switch action.Kind {
	case score.ActionSendMIDI:
		d.sendMIDI(action, sampleOffset)
	case score.ActionTriggerContainer:
		d.triggerContainer(action)
	case score.ActionSetParameter:
		d.setParameter(action)
	default:
		d.report(fmt.Sprintf("unknown action kind %d skipped", action.Kind))
	}
}

func (d *Dispatcher) sendMIDI(action score.ContainerAction, sampleOffset int) {
	if d.MIDI == nil || len(action.Message) == 0 {
		d.report("malformed sendMIDI action skipped")
		return
	}
	if d.Tracks != nil {
		if trackID, ok := d.Tracks.TrackIDByName(action.Destination); ok {
			if err := d.MIDI.RouteToTrack(trackID, action.Message, sampleOffset); err != nil {
				d.report(err.Error())
			}
			return
		}
	}
	if err := d.MIDI.RouteToExternalPort(action.Destination, action.Message, sampleOffset); err != nil {
		d.report(err.Error())
	}
}

func (d *Dispatcher) triggerContainer(action score.ContainerAction) {
	switch action.Verb {
	case score.TriggerStart:
		if d.Gate != nil {
			d.Gate.SetSuppressed(action.TargetContainerID, false)
		}
	case score.TriggerStop:
		if d.Gate != nil {
			d.Gate.SetSuppressed(action.TargetContainerID, true)
		}
	case score.TriggerArmRecord:
		if d.Queue != nil {
			d.Queue.Push(rtqueue.Command{Kind: rtqueue.CmdArmRecord, ContainerID: action.TargetContainerID, Armed: true})
		}
	case score.TriggerDisarmRecord:
		if d.Queue != nil {
			d.Queue.Push(rtqueue.Command{Kind: rtqueue.CmdArmRecord, ContainerID: action.TargetContainerID, Armed: false})
		}
	default:
		d.report(fmt.Sprintf("malformed triggerContainer verb %d skipped", action.Verb))
	}
}

func (d *Dispatcher) setParameter(action score.ContainerAction) {
	if d.Queue == nil {
		return
	}
	d.Queue.Push(rtqueue.Command{Kind: rtqueue.CmdSetParameterImmediate, Path: action.Path, Value: action.Value})
}

func (d *Dispatcher) report(note string) {
	if d.Errors != nil {
		d.Errors.Report(engineerr.Event{Kind: engineerr.InvalidEdit, Note: note})
	}
}

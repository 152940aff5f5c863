package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/looperd/internal/engineerr"
	"github.com/schollz/looperd/internal/ids"
	"github.com/schollz/looperd/internal/rtqueue"
	"github.com/schollz/looperd/internal/score"
	"github.com/schollz/looperd/internal/scheduler"
)

type testReporter struct{ reporter *engineerr.Reporter }

func newTestReporter() *testReporter { return &testReporter{reporter: engineerr.NewReporter(8)} }

func (r *testReporter) drain() []engineerr.Event {
	var out []engineerr.Event
	for {
		select {
		case ev := <-r.reporter.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

type fakeMIDI struct {
	toTrack []score.MIDIMessage
	toPort  map[string]score.MIDIMessage
}

func newFakeMIDI() *fakeMIDI { return &fakeMIDI{toPort: map[string]score.MIDIMessage{}} }

func (f *fakeMIDI) RouteToTrack(trackID ids.TrackID, msg score.MIDIMessage, sampleOffset int) error {
	f.toTrack = append(f.toTrack, msg)
	return nil
}

func (f *fakeMIDI) RouteToExternalPort(name string, msg score.MIDIMessage, sampleOffset int) error {
	f.toPort[name] = msg
	return nil
}

type fakeGate struct {
	calls map[ids.ContainerID]bool
}

func (g *fakeGate) SetSuppressed(id ids.ContainerID, suppressed bool) {
	g.calls[id] = suppressed
}

func TestSendMIDIRoutesToExternalPortByName(t *testing.T) {
	midi := newFakeMIDI()
	d := &Dispatcher{MIDI: midi}
	action := score.ContainerAction{Kind: score.ActionSendMIDI, Message: score.MIDIMessage{0x90, 60, 100}, Destination: "synth-out"}
	d.HandleBarCrossing(scheduler.BarCrossing{Actions: []score.ContainerAction{action}, SampleOffset: 10})
	assert.Equal(t, score.MIDIMessage{0x90, 60, 100}, midi.toPort["synth-out"])
}

func TestTriggerContainerStartClearsGate(t *testing.T) {
	gate := &fakeGate{calls: map[ids.ContainerID]bool{}}
	d := &Dispatcher{Gate: gate}
	target := ids.NewContainerID()
	action := score.ContainerAction{Kind: score.ActionTriggerContainer, TargetContainerID: target, Verb: score.TriggerStart}
	d.HandleBarCrossing(scheduler.BarCrossing{Actions: []score.ContainerAction{action}})
	assert.False(t, gate.calls[target])
}

func TestSetParameterPushesImmediateCommand(t *testing.T) {
	queue := rtqueue.NewQueue(4)
	d := &Dispatcher{Queue: queue}
	path := score.EffectPath{TrackID: ids.NewTrackID(), ParameterAddress: "cutoff"}
	action := score.ContainerAction{Kind: score.ActionSetParameter, Path: path, Value: 0.5}
	d.HandleBarCrossing(scheduler.BarCrossing{Actions: []score.ContainerAction{action}})
	assert.Equal(t, 1, queue.Pending())
}

func TestMalformedSendMIDISkippedAndReported(t *testing.T) {
	errs := newTestReporter()
	d := &Dispatcher{MIDI: newFakeMIDI(), Errors: errs.reporter}
	action := score.ContainerAction{Kind: score.ActionSendMIDI, Destination: "x"} // no message bytes
	d.HandleBarCrossing(scheduler.BarCrossing{Actions: []score.ContainerAction{action}})
	assert.Len(t, errs.drain(), 1)
}

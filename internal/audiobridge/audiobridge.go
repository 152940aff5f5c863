// Package audiobridge is a concrete implementation of the opaque §6
// collaborators (scheduler.PluginHost, scheduler.MIDIOutput) over OSC,
// generalizing the teacher's SuperCollider bridge in internal/model
// (an *osc.Client talking "/instrument", "/sampler", "/stop" messages
// to a sclang-hosted synth engine) to any OSC-speaking renderer.
//
// The actual signal synthesis for a plugin bridged this way happens
// out of process, in whatever is listening on the OSC port; Process
// itself is a passthrough plus a side-effecting OSC send, matching how
// the teacher's SuperCollider engine owns its own audio output rather
// than handing rendered samples back across the OSC link.
package audiobridge

import (
	"fmt"
	"log"
	"sync"

	"github.com/hypebeast/go-osc/osc"

	"github.com/schollz/looperd/internal/ids"
	"github.com/schollz/looperd/internal/scheduler"
	"github.com/schollz/looperd/internal/score"
)

// Bridge owns one OSC client and fans plugin automation, MIDI routing,
// and metronome clicks out to it. A single *osc.Client is not declared
// concurrency-safe by its package, so every Send goes through mu.
type Bridge struct {
	mu     sync.Mutex
	client *osc.Client
}

// New dials an OSC client at host:port. Dialing an OSC client never
// itself blocks on the network (it is connectionless UDP under the
// hood, per the teacher's osc.NewClient("localhost", oscPort) usage),
// so this never touches the audio thread's timing budget.
func New(host string, port int) *Bridge {
	return &Bridge{client: osc.NewClient(host, port)}
}

func (b *Bridge) send(msg *osc.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client.Send(msg)
}

// Process implements scheduler.PluginHost. It copies in to out
// unchanged — the bridged engine renders its own output independently
// — and forwards every MIDI event and automation value for handle as
// OSC messages at "/plugin/<handle>".
func (b *Bridge) Process(handle ids.PluginHandle, in, out [][]float32, midi []scheduler.MIDIEvent, automation []scheduler.ParameterAutomation, bypass bool) error {
	for c := range out {
		if c < len(in) {
			copy(out[c], in[c])
		}
	}
	if bypass {
		return nil
	}
	address := fmt.Sprintf("/plugin/%s", handle)
	for _, ev := range midi {
		msg := osc.NewMessage(address + "/midi")
		for _, b := range ev.Message {
			msg.Append(int32(b))
		}
		msg.Append(int32(ev.SampleOffset))
		if err := b.sendLogged(msg); err != nil {
			return err
		}
	}
	for _, a := range automation {
		msg := osc.NewMessage(address + "/automation")
		msg.Append(int32(a.EffectIndex))
		msg.Append(a.Address)
		msg.Append(float32(a.Value))
		msg.Append(int32(a.SampleOffset))
		if err := b.sendLogged(msg); err != nil {
			return err
		}
	}
	return nil
}

// SetParameterImmediate implements scheduler.PluginHost's control-rate
// path, for setParameter actions (§4.5) that are not sample-accurate.
func (b *Bridge) SetParameterImmediate(handle ids.PluginHandle, address string, value float64) error {
	msg := osc.NewMessage(fmt.Sprintf("/plugin/%s/set", handle))
	msg.Append(address)
	msg.Append(float32(value))
	return b.sendLogged(msg)
}

// RouteToTrack implements scheduler.MIDIOutput / dispatch.MIDIRouter
// for MIDI destined at an internal track's hosted instrument, mirrors
// the teacher's "/instrument" message shape (track id, note state,
// pitch bytes).
func (b *Bridge) RouteToTrack(trackID ids.TrackID, msg score.MIDIMessage, sampleOffset int) error {
	m := osc.NewMessage("/instrument")
	m.Append(string(trackID))
	for _, by := range msg {
		m.Append(int32(by))
	}
	m.Append(int32(sampleOffset))
	return b.sendLogged(m)
}

// RouteToExternalPort implements scheduler.MIDIOutput /
// dispatch.MIDIRouter for sendMIDI actions addressed by display name
// rather than an internal track.
func (b *Bridge) RouteToExternalPort(name string, msg score.MIDIMessage, sampleOffset int) error {
	m := osc.NewMessage("/midi/" + name)
	for _, by := range msg {
		m.Append(int32(by))
	}
	m.Append(int32(sampleOffset))
	return b.sendLogged(m)
}

// AllNotesOff implements scheduler.MIDIOutput, fired on loop wrap
// (§4.3) so sustained notes do not ring across a seam.
func (b *Bridge) AllNotesOff() {
	_ = b.sendLogged(osc.NewMessage("/stop"))
}

func (b *Bridge) sendLogged(msg *osc.Message) error {
	if err := b.send(msg); err != nil {
		log.Printf("audiobridge: send %s failed: %v", msg.Address, err)
		return err
	}
	return nil
}

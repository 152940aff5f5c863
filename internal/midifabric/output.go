//go:build !windows

// Package midifabric's output side routes sendMIDI actions (§4.5,
// §4.8 "Output") either to an internal track's hosted instrument or to
// a native MIDI output endpoint located by display name. The external-
// port half is grounded directly in the teacher's
// internal/midiconnector package: a process-wide map of opened
// gomidi/v2 output ports, guarded by a mutex, with note-off tracking
// so ExternalPort.AllNotesOff can leave the device silent.
package midifabric

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/schollz/looperd/internal/ids"
	"github.com/schollz/looperd/internal/score"
)

var portsMu sync.Mutex
var openPorts = map[string]drivers.Out{}

// ExternalPort is a single named MIDI output endpoint.
type ExternalPort struct {
	name    string
	notesOn map[uint8]uint8 // note -> channel, for all-notes-off on Close
}

// OpenExternalPort resolves name against the system's MIDI outputs and
// opens it, reusing an already-open port of the same name.
func OpenExternalPort(name string) (*ExternalPort, error) {
	resolved, err := resolvePortName(name)
	if err != nil {
		return nil, err
	}
	portsMu.Lock()
	defer portsMu.Unlock()
	if _, ok := openPorts[resolved]; !ok {
		out, err := midi.FindOutPort(resolved)
		if err != nil {
			return nil, fmt.Errorf("midifabric: find out port %q: %w", resolved, err)
		}
		if err := out.Open(); err != nil {
			return nil, fmt.Errorf("midifabric: open out port %q: %w", resolved, err)
		}
		openPorts[resolved] = out
	}
	return &ExternalPort{name: resolved, notesOn: make(map[uint8]uint8)}, nil
}

func resolvePortName(name string) (string, error) {
	for _, n := range ExternalPortNames() {
		if strings.EqualFold(n, name) {
			return n, nil
		}
	}
	for _, n := range ExternalPortNames() {
		if strings.Contains(strings.ToLower(n), strings.ToLower(name)) {
			return n, nil
		}
	}
	return "", fmt.Errorf("midifabric: no output port matching %q", name)
}

// ExternalPortNames lists the system's available MIDI output display
// names.
func ExternalPortNames() []string {
	var names []string
	for _, out := range midi.GetOutPorts() {
		names = append(names, out.String())
	}
	return names
}

// Send writes a raw message to the port.
func (p *ExternalPort) Send(msg score.MIDIMessage) error {
	portsMu.Lock()
	out, ok := openPorts[p.name]
	portsMu.Unlock()
	if !ok {
		return fmt.Errorf("midifabric: port %q not open", p.name)
	}
	if err := out.Send(msg); err != nil {
		log.Printf("midifabric: send to %s failed: %v", p.name, err)
		return err
	}
	if len(msg) == 3 {
		status := msg[0] & 0xF0
		if status == 0x90 && msg[2] > 0 {
			p.notesOn[msg[1]] = msg[0] & 0x0F
		} else if status == 0x80 || (status == 0x90 && msg[2] == 0) {
			delete(p.notesOn, msg[1])
		}
	}
	return nil
}

// AllNotesOff sends a note-off for every note this port believes is
// currently sounding (§8 property 4).
func (p *ExternalPort) AllNotesOff() {
	for note, ch := range p.notesOn {
		_ = p.Send(score.MIDIMessage{0x80 | ch, note, 0})
	}
	p.notesOn = make(map[uint8]uint8)
}

// CloseAllExternalPorts closes every currently-open output port. It
// sends no note-offs.
func CloseAllExternalPorts() {
	portsMu.Lock()
	defer portsMu.Unlock()
	for name, out := range openPorts {
		out.Close()
		delete(openPorts, name)
	}
}

// InternalInstrument receives a routed MIDI event at a sample-offset
// timestamp within the current callback; it is the instrument plugin
// hosted on a track, reached through the plugin host (§6).
type InternalInstrument interface {
	SendMIDI(msg score.MIDIMessage, sampleOffset int)
	AllNotesOff()
}

// Router dispatches sendMIDI actions to either an internal track's
// instrument or a named external port, per §4.8 "Output".
type Router struct {
	mu        sync.Mutex
	internal  map[ids.TrackID]InternalInstrument
	external  map[string]*ExternalPort
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{
		internal: make(map[ids.TrackID]InternalInstrument),
		external: make(map[string]*ExternalPort),
	}
}

// BindInternalTrack registers the instrument that should receive
// events routed to trackID.
func (r *Router) BindInternalTrack(trackID ids.TrackID, instrument InternalInstrument) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.internal[trackID] = instrument
}

// RouteToTrack sends msg to the instrument hosted on trackID at
// sampleOffset within the current callback.
func (r *Router) RouteToTrack(trackID ids.TrackID, msg score.MIDIMessage, sampleOffset int) error {
	r.mu.Lock()
	instrument, ok := r.internal[trackID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("midifabric: no internal instrument bound for track %s", trackID)
	}
	instrument.SendMIDI(msg, sampleOffset)
	return nil
}

// RouteToExternalPort opens (if needed) and sends msg to the named
// port. sampleOffset is accepted for interface symmetry with
// RouteToTrack; a native MIDI out port has no buffer-relative
// timestamp concept, so the message is sent immediately.
func (r *Router) RouteToExternalPort(name string, msg score.MIDIMessage, sampleOffset int) error {
	_ = sampleOffset
	r.mu.Lock()
	port, ok := r.external[name]
	r.mu.Unlock()
	if !ok {
		opened, err := OpenExternalPort(name)
		if err != nil {
			return err
		}
		r.mu.Lock()
		r.external[name] = opened
		r.mu.Unlock()
		port = opened
	}
	return port.Send(msg)
}

// AllNotesOff sends all-notes-off to every bound internal instrument
// and every opened external port (§4.4 loop wrap, §5 Stop/Shutdown).
func (r *Router) AllNotesOff() {
	r.mu.Lock()
	ports := make([]*ExternalPort, 0, len(r.external))
	for _, p := range r.external {
		ports = append(ports, p)
	}
	instruments := make([]InternalInstrument, 0, len(r.internal))
	for _, in := range r.internal {
		instruments = append(instruments, in)
	}
	r.mu.Unlock()
	for _, p := range ports {
		p.AllNotesOff()
	}
	for _, in := range instruments {
		in.AllNotesOff()
	}
}

//go:build !windows

package midifabric

import (
	"fmt"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/schollz/looperd/internal/ids"
	"github.com/schollz/looperd/internal/score"
)

// TrackFilterSource resolves which tracks' MIDIInputFilter matches a
// given device+channel, so the Monitor can bump the right activity
// timestamps (§4.8 part 1).
type TrackFilterSource interface {
	MatchingTracks(deviceID string, channel uint8) []ids.TrackID
}

// Input owns the live subscriptions to every available MIDI source and
// fans incoming triggers out to the monitor, control dispatcher,
// parameter dispatcher, and learn session, exactly as §4.8 describes.
type Input struct {
	Monitor   *Monitor
	Control   *ControlDispatcher
	Parameter *ParameterDispatcher
	Learn     *LearnSession
	Tracks    TrackFilterSource

	// OnParameter is invoked once per resolved CC mapping with the
	// EffectPath/value pair to apply via the Automation Evaluator's
	// immediate path (§4.5 setParameter).
	OnParameter func(score.EffectPath, float64)

	stops []func()
}

// SubscribeAll opens every available MIDI input port and begins
// fanning its messages through Handle.
func (in *Input) SubscribeAll() error {
	ins := midi.GetInPorts()
	for _, port := range ins {
		if err := in.subscribe(port); err != nil {
			return fmt.Errorf("midifabric: subscribe %s: %w", port.String(), err)
		}
	}
	return nil
}

func (in *Input) subscribe(port drivers.In) error {
	deviceID := port.String()
	stop, err := midi.ListenTo(port, func(msg midi.Message, _ int32) {
		in.Handle(deviceID, packWord(msg), time.Now())
	})
	if err != nil {
		return err
	}
	in.stops = append(in.stops, stop)
	return nil
}

// Unsubscribe tears down every live subscription (§5 Shutdown).
func (in *Input) Unsubscribe() {
	for _, stop := range in.stops {
		stop()
	}
	in.stops = nil
}

func packWord(msg midi.Message) uint32 {
	raw := msg.Bytes()
	var status, d1, d2 uint8
	if len(raw) > 0 {
		status = raw[0]
	}
	if len(raw) > 1 {
		d1 = raw[1]
	}
	if len(raw) > 2 {
		d2 = raw[2]
	}
	return uint32(status)<<16 | uint32(d1)<<8 | uint32(d2)
}

// Handle decodes word and fans it out to every subsystem per §4.8.
// Exported so tests and non-gomidi drivers (e.g. a virtual MIDI source
// in a headless bench run) can feed it directly.
func (in *Input) Handle(deviceID string, word uint32, now time.Time) {
	trig, err := DecodeWord(word)
	if err != nil {
		return
	}

	var matching []ids.TrackID
	if in.Tracks != nil {
		matching = in.Tracks.MatchingTracks(deviceID, trig.Channel)
	}
	if in.Monitor != nil {
		in.Monitor.Record(trig, deviceID, now, matching)
	}

	if in.Learn != nil && in.Learn.Active() {
		in.Learn.Capture(trig)
		return
	}

	if in.Control != nil {
		in.Control.Dispatch(trig)
	}
	if in.Parameter != nil && in.OnParameter != nil {
		for _, resolved := range in.Parameter.Resolve(trig) {
			in.OnParameter(resolved.Path, resolved.Value)
		}
	}
}

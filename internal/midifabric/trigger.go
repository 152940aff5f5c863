// Package midifabric implements the MIDI Routing Fabric of §4.8: input
// parsing into typed triggers, fan-out to a raw activity monitor, a
// control dispatcher, a parameter dispatcher, and a mutually-exclusive
// learn mode, plus output routing to internal track instruments or
// named external ports.
package midifabric

import "fmt"

// TriggerKind tags the variant of a Trigger.
type TriggerKind int

const (
	TriggerNoteOn TriggerKind = iota
	TriggerNoteOff
	TriggerCC
	TriggerProgramChange
	TriggerPitchBend
)

// Trigger is a parsed, typed MIDI event. Channel is 0-based.
type Trigger struct {
	Kind       TriggerKind
	Channel    uint8
	Note       uint8 // NoteOn/NoteOff
	Velocity   uint8 // NoteOn/NoteOff
	Controller uint8 // CC
	Value      uint8 // CC (0-127) or ProgramChange program
	Bend       int16 // PitchBend, -8192..8191
}

// Key is the identity used to key Mappings and Learn captures: for
// NoteOn/NoteOff it is channel+note, so both edges of a note share one
// key; for CC it is channel+controller.
func (t Trigger) Key() string {
	switch t.Kind {
	case TriggerNoteOn, TriggerNoteOff:
		return fmt.Sprintf("note:%d:%d", t.Channel, t.Note)
	case TriggerCC:
		return fmt.Sprintf("cc:%d:%d", t.Channel, t.Controller)
	case TriggerProgramChange:
		return fmt.Sprintf("pc:%d", t.Channel)
	case TriggerPitchBend:
		return fmt.Sprintf("bend:%d", t.Channel)
	default:
		return "unknown"
	}
}

// Scaled01 returns the trigger's value mapped to the continuous range
// [0,1]: velocity for notes, value/127 for CC, (bend+8192)/16383 for
// pitch bend. Program change has no natural scaled value and returns 0.
func (t Trigger) Scaled01() float64 {
	switch t.Kind {
	case TriggerNoteOn, TriggerNoteOff:
		return float64(t.Velocity) / 127.0
	case TriggerCC:
		return float64(t.Value) / 127.0
	case TriggerPitchBend:
		return float64(int(t.Bend)+8192) / 16383.0
	default:
		return 0
	}
}

// DecodeWord parses a 32-bit raw MIDI word from the MIDI driver (§6:
// "Word format is a 32-bit raw encoding") into a Trigger. The packing
// is status<<16 | data1<<8 | data2, the common convention for a
// packed short MIDI message.
func DecodeWord(word uint32) (Trigger, error) {
	status := uint8(word >> 16)
	data1 := uint8(word >> 8)
	data2 := uint8(word)

	channel := status & 0x0F
	switch status & 0xF0 {
	case 0x90:
		if data2 == 0 {
			// Note-on with velocity 0 is conventionally a note-off.
			return Trigger{Kind: TriggerNoteOff, Channel: channel, Note: data1}, nil
		}
		return Trigger{Kind: TriggerNoteOn, Channel: channel, Note: data1, Velocity: data2}, nil
	case 0x80:
		return Trigger{Kind: TriggerNoteOff, Channel: channel, Note: data1, Velocity: data2}, nil
	case 0xB0:
		return Trigger{Kind: TriggerCC, Channel: channel, Controller: data1, Value: data2}, nil
	case 0xC0:
		return Trigger{Kind: TriggerProgramChange, Channel: channel, Value: data1}, nil
	case 0xE0:
		bend := int16(uint16(data1)|uint16(data2)<<7) - 8192
		return Trigger{Kind: TriggerPitchBend, Channel: channel, Bend: bend}, nil
	default:
		return Trigger{}, fmt.Errorf("midifabric: unsupported status byte 0x%02X", status)
	}
}

package score

import (
	"fmt"

	"github.com/schollz/looperd/internal/ids"
)

// ValidationError is returned by Validate when a ScoreModel edit would
// violate an invariant from §3 of the spec. Per §7's InvalidEdit
// policy, the control thread rejects the edit and the ScoreModel is
// left unchanged — Validate never mutates its argument.
type ValidationError struct {
	Kind   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid edit (%s): %s", e.Kind, e.Detail)
}

func invalid(kind, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Validate checks every Song in the Project against invariants 1, 4
// and 5; ValidateProject adds invariant 2, and invariants 3 and 6 are
// not checked here. It does not resolve clones (see ResolveClones) and does not require
// clones to already be resolved — overlap checks operate on declared
// bar ranges, which are defined regardless of payload resolution.
func Validate(p Project) error {
	for _, s := range p.Songs {
		if err := validateSong(s); err != nil {
			return err
		}
	}
	return nil
}

func validateSong(s Song) error {
	masters := 0
	for _, t := range s.Tracks {
		if t.Kind == TrackMaster {
			masters++
		}
		if err := validateTrack(t); err != nil {
			return err
		}
	}
	// Invariant 5: the master track exists exactly once per Song.
	if masters != 1 {
		return invalid("master-track-count", "song %q has %d master tracks, want exactly 1", s.Name, masters)
	}
	return nil
}

func validateTrack(t Track) error {
	// Invariant 5 (continued): master sends nowhere.
	if t.Kind == TrackMaster && len(t.Mix.Sends) > 0 {
		return invalid("master-track-sends", "track %q is master but declares sends", t.ID)
	}

	xfPairs := make(map[[2]ids.ContainerID]Crossfade, len(t.Crossfades))
	for _, xf := range t.Crossfades {
		a, ok1 := t.FindContainer(xf.ContainerAID)
		b, ok2 := t.FindContainer(xf.ContainerBID)
		if !ok1 || !ok2 {
			return invalid("crossfade-dangling", "crossfade %s references missing container", xf.ID)
		}
		lo, hi := overlapRange(a, b)
		if hi <= lo {
			return invalid("crossfade-no-overlap", "crossfade %s containers do not overlap", xf.ID)
		}
		xfPairs[pairKey(xf.ContainerAID, xf.ContainerBID)] = xf
	}

	// Invariant 1: non-overlapping bar ranges unless an explicit
	// Crossfade joins the pair.
	for i := 0; i < len(t.Containers); i++ {
		for j := i + 1; j < len(t.Containers); j++ {
			a, b := t.Containers[i], t.Containers[j]
			lo, hi := overlapRange(a, b)
			if hi <= lo {
				continue // no overlap, fine
			}
			if _, ok := xfPairs[pairKey(a.ID, b.ID)]; !ok {
				return invalid("overlap-without-crossfade",
					"track %s containers %s and %s overlap [%d,%d) without a crossfade", t.ID, a.ID, b.ID, lo, hi)
			}
		}
	}

	for _, c := range t.Containers {
		if err := validateLanes(c); err != nil {
			return err
		}
	}
	return nil
}

// ValidateProject is Validate plus the project-level recording-pool
// check for invariant 2, which needs SourceRecordings to resolve
// durations.
func ValidateProject(p Project) error {
	if err := Validate(p); err != nil {
		return err
	}
	for _, s := range p.Songs {
		for _, t := range s.Tracks {
			for _, c := range t.Containers {
				if c.Payload.Kind != PayloadAudio {
					continue
				}
				rec, ok := p.SourceRecordings[c.Payload.RecordingRef]
				if !ok {
					continue // missing recording is a runtime (MissingSourceRecording) concern, not a validation failure
				}
				samplesPerBar := rec.SampleRate * 60 * float64(s.TimeSig.BeatsPerBar) / s.TempoBPM
				durationBars := rec.DurationBars(samplesPerBar)
				visible := float64(c.LengthBars)
				if c.Payload.AudioStartOffsetBars+visible > durationBars+1e-9 {
					return invalid("audio-read-past-end",
						"container %s reads past end of source %s (%f+%f > %f)",
						c.ID, rec.ID, c.Payload.AudioStartOffsetBars, visible, durationBars)
				}
			}
		}
	}
	return nil
}

func validateLanes(c Container) error {
	for _, lane := range c.AutomationLanes {
		// Invariant 4: breakpoints sorted strictly by PositionBars.
		for i := 1; i < len(lane.Breakpoints); i++ {
			if lane.Breakpoints[i].PositionBars <= lane.Breakpoints[i-1].PositionBars {
				return invalid("lane-unsorted", "lane %s breakpoints not strictly sorted at index %d", lane.ID, i)
			}
		}
	}
	return nil
}

func overlapRange(a, b Container) (lo, hi int) {
	lo = a.StartBar
	if b.StartBar > lo {
		lo = b.StartBar
	}
	hi = a.EndBar()
	if b.EndBar() < hi {
		hi = b.EndBar()
	}
	return
}

func pairKey(a, b ids.ContainerID) [2]ids.ContainerID {
	if a < b {
		return [2]ids.ContainerID{a, b}
	}
	return [2]ids.ContainerID{b, a}
}
